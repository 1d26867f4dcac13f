// Package main runs the swerve drive pipeline against simulated hardware and prints where the
// robot ended up.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/swerve/config"
	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/services/match"
	"go.viam.com/swerve/services/trajectory"
)

const (
	flagConfig     = "config"
	flagDebug      = "debug"
	flagPhase      = "phase"
	flagDuration   = "duration"
	flagTrajectory = "trajectory"
	flagForward    = "forward"
	flagStrafe     = "strafe"
	flagTwist      = "twist"
	flagSlow       = "slow"
	flagDrift      = "drift"
	flagJSON       = "json-logs"
)

func main() {
	app := &cli.App{
		Name:  "swerve-sim",
		Usage: "run the swerve drive control loop against simulated modules and gyro",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`; defaults are used otherwise",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.BoolFlag{
				Name:  flagJSON,
				Usage: "log JSON lines instead of console text",
			},
			&cli.StringFlag{
				Name:  flagPhase,
				Value: match.Teleop.String(),
				Usage: "match phase to simulate (teleop, autonomous or disabled)",
			},
			&cli.DurationFlag{
				Name:  flagDuration,
				Value: 3 * time.Second,
				Usage: "simulated time to run",
			},
			&cli.StringFlag{
				Name:  flagTrajectory,
				Usage: "trajectory `FILE` to replay in autonomous",
			},
			&cli.Float64Flag{
				Name:  flagForward,
				Usage: "left stick forward deflection in [-1, 1]",
			},
			&cli.Float64Flag{
				Name:  flagStrafe,
				Usage: "left stick leftward deflection in [-1, 1]",
			},
			&cli.Float64Flag{
				Name:  flagTwist,
				Usage: "right stick twist in [-1, 1], positive turns clockwise",
			},
			&cli.BoolFlag{
				Name:  flagSlow,
				Usage: "press the slow mode button before driving",
			},
			&cli.Float64Flag{
				Name:  flagDrift,
				Usage: "uncommanded gyro drift in degrees per second",
			},
		},
		Action: runAction,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runAction(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return err
		}
	}

	level, err := logging.LevelFromString(cfg.LogLevel)
	if err != nil {
		return err
	}
	if c.Bool(flagDebug) {
		level = logging.DEBUG
	}
	var logger logging.Logger
	if c.Bool(flagJSON) {
		logger = logging.NewJSONLogger("swerve-sim", level)
	} else {
		logger = logging.NewLogger("swerve-sim")
		logger.SetLevel(level)
	}
	//nolint:errcheck
	defer logger.Sync()

	phase, err := match.ParsePhase(c.String(flagPhase))
	if err != nil {
		return err
	}
	opts := simOptions{
		Phase:    phase,
		Duration: c.Duration(flagDuration),
		Forward:  c.Float64(flagForward),
		Strafe:   c.Float64(flagStrafe),
		Twist:    c.Float64(flagTwist),
		Slow:     c.Bool(flagSlow),
		Drift:    c.Float64(flagDrift),
	}
	if path := c.String(flagTrajectory); path != "" {
		if opts.Trajectory, err = trajectory.ReadFile(path); err != nil {
			return err
		}
	}
	if phase == match.Autonomous && opts.Trajectory == nil {
		return errors.New("autonomous needs --trajectory")
	}

	result, err := simulate(c.Context, cfg, opts, logger)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, result.String())
	return nil
}
