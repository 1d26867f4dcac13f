package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/swerve/components/base/swerve"
	gyrofake "go.viam.com/swerve/components/gyro/fake"
	"go.viam.com/swerve/components/input"
	inputfake "go.viam.com/swerve/components/input/fake"
	"go.viam.com/swerve/components/swervemodule"
	modulefake "go.viam.com/swerve/components/swervemodule/fake"
	"go.viam.com/swerve/config"
	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/robot"
	"go.viam.com/swerve/services/driverinput"
	"go.viam.com/swerve/services/match"
	"go.viam.com/swerve/services/trajectory"
	"go.viam.com/swerve/spatialmath"
	"go.viam.com/swerve/utils"
)

type simOptions struct {
	Phase      match.Phase
	Duration   time.Duration
	Trajectory *trajectory.File

	// stick deflections in [-1, 1]
	Forward, Strafe, Twist float64
	Slow                   bool
	// degrees per second of yaw the robot picks up on its own
	Drift float64
}

type simResult struct {
	Elapsed    time.Duration
	Pose       spatialmath.Pose2D
	Heading    float64
	Velocity   kinematics.ChassisSpeeds
	States     [kinematics.NumModules]kinematics.ModuleState
	Positions  [kinematics.NumModules]kinematics.ModulePosition
	IdleModes  [kinematics.NumModules]swervemodule.IdleMode
	Stats      robot.CycleStats
	SpeedMode  driverinput.SpeedMode
	MatchPhase match.Phase
}

// simulate steps the control loop on a mock clock so the run is deterministic and faster than
// real time. The gyro is driven by the rotation the modules actually produce plus drift.
func simulate(ctx context.Context, cfg *config.Config, opts simOptions, logger logging.Logger) (*simResult, error) {
	clk := clock.NewMock()
	phase := match.NewManual(opts.Phase)
	gyro := gyrofake.NewGyro(clk)

	moduleCfgs, err := cfg.ModuleConfigs("modules")
	if err != nil {
		return nil, err
	}
	modules := lo.Map(kinematics.ModuleIndices[:], func(idx kinematics.ModuleIndex, _ int) *modulefake.Module {
		return modulefake.NewModule(idx.String(), moduleCfgs[idx].AngleOffset, clk, logger.Sublogger(idx.String()))
	})
	deps := swerve.Dependencies{Gyro: gyro, Match: phase, Clock: clk}
	for i, m := range modules {
		deps.Modules[i] = m
	}
	drivetrain, err := swerve.New(ctx, cfg, deps, logger.Sublogger("drivetrain"))
	if err != nil {
		return nil, err
	}

	controller := inputfake.NewInputController(
		input.AbsoluteX, input.AbsoluteY, input.AbsoluteRX, input.AbsoluteRY, input.AbsoluteRZ,
		driverinput.SlowModeButton, driverinput.ResetHeadingButton,
	)
	operator, err := driverinput.NewOperator(ctx, controller, logger.Sublogger("operator"))
	if err != nil {
		return nil, err
	}
	shaper, err := driverinput.NewShaper(cfg.Shaper, cfg.Drive)
	if err != nil {
		return nil, multierr.Combine(err, operator.Close(ctx))
	}

	var follower trajectory.Follower
	if opts.Trajectory != nil {
		replay, err := trajectory.NewReplay(opts.Trajectory, logger.Sublogger("trajectory"))
		if err != nil {
			return nil, multierr.Combine(err, operator.Close(ctx))
		}
		follower = replay
	}

	r, err := robot.New(cfg, robot.Dependencies{
		Drivetrain: drivetrain,
		Shaper:     shaper,
		Operator:   operator,
		Match:      phase,
		Follower:   follower,
		Clock:      clk,
	}, logger)
	if err != nil {
		return nil, multierr.Combine(err, operator.Close(ctx))
	}

	if err := pushSticks(ctx, controller, clk, opts); err != nil {
		return nil, multierr.Combine(err, r.Close(ctx))
	}

	period := cfg.Drive.LoopPeriod
	cycles := int(opts.Duration / period)
	for i := 0; i < cycles; i++ {
		if err := ctx.Err(); err != nil {
			return nil, multierr.Combine(err, r.Close(ctx))
		}
		clk.Add(period)
		if err := r.Cycle(ctx); err != nil {
			logger.Warnw("cycle failed", "cycle", i, "error", err)
		}
		v, err := drivetrain.ChassisVelocity(ctx)
		if err != nil {
			return nil, multierr.Combine(err, r.Close(ctx))
		}
		gyro.SetRate(utils.RadToDeg(v.Omega) + opts.Drift)
	}

	result := &simResult{
		Elapsed:    time.Duration(cycles) * period,
		Pose:       drivetrain.Pose(),
		SpeedMode:  operator.Mode(),
		MatchPhase: phase.Phase(),
	}
	var errs error
	result.Heading, err = drivetrain.Heading(ctx)
	errs = multierr.Append(errs, err)
	result.Velocity, err = drivetrain.ChassisVelocity(ctx)
	errs = multierr.Append(errs, err)
	result.States, err = drivetrain.ModuleStates(ctx)
	errs = multierr.Append(errs, err)
	result.Positions, err = drivetrain.ModulePositions(ctx)
	errs = multierr.Append(errs, err)
	for i, m := range modules {
		result.IdleModes[i], err = m.IdleMode(ctx)
		errs = multierr.Append(errs, err)
	}
	result.Stats, err = r.Stats()
	errs = multierr.Append(errs, err)
	return result, multierr.Combine(errs, r.Close(ctx))
}

func pushSticks(ctx context.Context, controller *inputfake.InputController, clk clock.Clock, opts simOptions) error {
	for _, v := range []float64{opts.Forward, opts.Strafe, opts.Twist} {
		if v < -1 || v > 1 {
			return errors.Errorf("stick deflection %v is outside [-1, 1]", v)
		}
	}
	events := []input.Event{
		// the stick reads negative when pushed away from the driver
		{Event: input.PositionChangeAbs, Control: input.AbsoluteY, Value: -opts.Forward},
		{Event: input.PositionChangeAbs, Control: input.AbsoluteX, Value: -opts.Strafe},
		{Event: input.PositionChangeAbs, Control: input.AbsoluteRZ, Value: opts.Twist},
	}
	if opts.Slow {
		events = append(events, input.Event{Event: input.ButtonPress, Control: driverinput.SlowModeButton, Value: 1})
	}
	for _, ev := range events {
		ev.Time = clk.Now()
		if err := controller.TriggerEvent(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (res *simResult) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Module", "Speed (m/s)", "Angle (deg)", "Distance (m)", "Idle"})
	for _, idx := range kinematics.ModuleIndices {
		t.AppendRow(table.Row{
			idx.String(),
			fmt.Sprintf("%.3f", res.States[idx].Speed),
			fmt.Sprintf("%.1f", utils.NormalizeDegrees(utils.RadToDeg(res.States[idx].Angle))),
			fmt.Sprintf("%.3f", res.Positions[idx].Distance),
			res.IdleModes[idx].String(),
		})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "phase %s, %s mode, %v simulated\n", res.MatchPhase, res.SpeedMode, res.Elapsed)
	fmt.Fprintf(&sb, "pose %s, gyro %.1f°\n", res.Pose, res.Heading)
	fmt.Fprintf(&sb, "velocity %s\n", res.Velocity)
	fmt.Fprintf(&sb, "%d cycles, mean %.3f ms, p99 %.3f ms, max %.3f ms\n",
		res.Stats.Cycles, res.Stats.Mean, res.Stats.P99, res.Stats.Max)
	sb.WriteString(t.Render())
	return sb.String()
}
