// Package main drives the robot's CAN swerve modules and IMU from a bench stick command or a
// recorded trajectory, in real time, until the duration elapses or it is interrupted.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/swerve/components/base/swerve"
	"go.viam.com/swerve/components/input"
	inputfake "go.viam.com/swerve/components/input/fake"
	"go.viam.com/swerve/config"
	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/robot"
	"go.viam.com/swerve/services/driverinput"
	"go.viam.com/swerve/services/match"
	"go.viam.com/swerve/services/trajectory"
)

const (
	flagConfig     = "config"
	flagDebug      = "debug"
	flagJSON       = "json-logs"
	flagPhase      = "phase"
	flagDuration   = "duration"
	flagTrajectory = "trajectory"
	flagForward    = "forward"
	flagStrafe     = "strafe"
	flagTwist      = "twist"
	flagSlow       = "slow"
	flagWait       = "telemetry-timeout"
)

func main() {
	app := &cli.App{
		Name:  "swerve-robot",
		Usage: "run the swerve drive control loop on the CAN modules and IMU named in the config",
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
				Value: match.Disabled.String(),
				Usage: "match phase to run (teleop, autonomous or disabled)",
			},
			&cli.DurationFlag{
				Name:  flagDuration,
				Usage: "stop after this long; runs until interrupted when zero",
			},
			&cli.StringFlag{
				Name:  flagTrajectory,
				Usage: "trajectory `FILE` to replay in autonomous",
			},
			&cli.Float64Flag{
				Name:  flagForward,
				Usage: "bench stick forward deflection in [-1, 1]",
			},
			&cli.Float64Flag{
				Name:  flagStrafe,
				Usage: "bench stick leftward deflection in [-1, 1]",
			},
			&cli.Float64Flag{
				Name:  flagTwist,
				Usage: "bench stick twist in [-1, 1], positive turns clockwise",
			},
			&cli.BoolFlag{
				Name:  flagSlow,
				Usage: "start in slow mode",
			},
			&cli.DurationFlag{
				Name:  flagWait,
				Value: 2 * time.Second,
				Usage: "how long to wait for every module and the IMU to report before giving up",
			},
		},
		Action: runAction,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newLogger(c *cli.Context, cfg *config.Config) (logging.Logger, error) {
	level, err := logging.LevelFromString(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if c.Bool(flagDebug) {
		level = logging.DEBUG
	}
	if c.Bool(flagJSON) {
		return logging.NewJSONLogger("swerve-robot", level), nil
	}
	logger := logging.NewLogger("swerve-robot")
	logger.SetLevel(level)
	return logger, nil
}

func runAction(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return err
		}
	}
	logger, err := newLogger(c, cfg)
	if err != nil {
		return err
	}
	//nolint:errcheck
	defer logger.Sync()

	phase, err := match.ParsePhase(c.String(flagPhase))
	if err != nil {
		return err
	}
	sticks := benchSticks{
		Forward: c.Float64(flagForward),
		Strafe:  c.Float64(flagStrafe),
		Twist:   c.Float64(flagTwist),
		Slow:    c.Bool(flagSlow),
	}
	if err := sticks.Validate(); err != nil {
		return err
	}
	var follower trajectory.Follower
	if path := c.String(flagTrajectory); path != "" {
		f, err := trajectory.ReadFile(path)
		if err != nil {
			return err
		}
		if follower, err = trajectory.NewReplay(f, logger.Sublogger("trajectory")); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hw, err := openHardware(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := hw.Close(); err != nil {
			logger.Warnw("closing CAN devices", "error", err)
		}
	}()
	if err := hw.waitForTelemetry(ctx, c.Duration(flagWait)); err != nil {
		return err
	}

	stats, err := run(ctx, cfg, hw, match.NewManual(phase), follower, sticks, c.Duration(flagDuration), logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%d cycles, mean %.3f ms, p99 %.3f ms, max %.3f ms\n",
		stats.Cycles, stats.Mean, stats.P99, stats.Max)
	return nil
}

// run drives the hardware on the wall clock until ctx is done or duration elapses.
func run(
	ctx context.Context,
	cfg *config.Config,
	hw *hardware,
	state match.State,
	follower trajectory.Follower,
	sticks benchSticks,
	duration time.Duration,
	logger logging.Logger,
) (robot.CycleStats, error) {
	clk := clock.New()
	drivetrain, err := swerve.New(ctx, cfg, hw.dependencies(state, clk), logger.Sublogger("drivetrain"))
	if err != nil {
		return robot.CycleStats{}, err
	}

	controller := inputfake.NewInputController(
		input.AbsoluteX, input.AbsoluteY, input.AbsoluteRX, input.AbsoluteRY, input.AbsoluteRZ,
		driverinput.SlowModeButton, driverinput.ResetHeadingButton,
	)
	operator, err := driverinput.NewOperator(ctx, controller, logger.Sublogger("operator"))
	if err != nil {
		return robot.CycleStats{}, multierr.Combine(err, drivetrain.Close(ctx))
	}
	shaper, err := driverinput.NewShaper(cfg.Shaper, cfg.Drive)
	if err != nil {
		return robot.CycleStats{}, multierr.Combine(err, operator.Close(ctx), drivetrain.Close(ctx))
	}
	r, err := robot.New(cfg, robot.Dependencies{
		Drivetrain: drivetrain,
		Shaper:     shaper,
		Operator:   operator,
		Match:      state,
		Follower:   follower,
		Clock:      clk,
	}, logger)
	if err != nil {
		return robot.CycleStats{}, multierr.Combine(err, operator.Close(ctx), drivetrain.Close(ctx))
	}

	if err := sticks.Push(ctx, controller, clk.Now()); err != nil {
		return robot.CycleStats{}, multierr.Combine(err, r.Close(ctx))
	}

	logger.Infow("driving", "phase", state.Phase().String(), "duration", duration)
	r.Start()
	if duration > 0 {
		goutils.SelectContextOrWait(ctx, duration)
	} else {
		<-ctx.Done()
	}
	//nolint:contextcheck
	closeErr := r.Close(context.Background())
	stats, err := r.Stats()
	return stats, multierr.Combine(closeErr, err)
}

// benchSticks is a fixed operator command for driving without a gamepad.
type benchSticks struct {
	Forward, Strafe, Twist float64
	Slow                   bool
}

// Validate checks that every deflection is a stick position.
func (s benchSticks) Validate() error {
	for _, v := range []float64{s.Forward, s.Strafe, s.Twist} {
		if v < -1 || v > 1 {
			return errors.Errorf("stick deflection %v is outside [-1, 1]", v)
		}
	}
	return nil
}

// Push sets the controller to the bench command.
func (s benchSticks) Push(ctx context.Context, controller *inputfake.InputController, now time.Time) error {
	events := []input.Event{
		// the stick reads negative when pushed away from the driver
		{Event: input.PositionChangeAbs, Control: input.AbsoluteY, Value: -s.Forward},
		{Event: input.PositionChangeAbs, Control: input.AbsoluteX, Value: -s.Strafe},
		{Event: input.PositionChangeAbs, Control: input.AbsoluteRZ, Value: s.Twist},
	}
	if s.Slow {
		events = append(events, input.Event{Event: input.ButtonPress, Control: driverinput.SlowModeButton, Value: 1})
	}
	for _, ev := range events {
		ev.Time = now
		if err := controller.TriggerEvent(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
