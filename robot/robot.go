// Package robot runs the drive pipeline at a fixed rate: read the operator or the trajectory,
// shape, correct, transform and actuate.
package robot

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/swerve/components/base/swerve"
	"go.viam.com/swerve/config"
	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/services/driverinput"
	"go.viam.com/swerve/services/match"
	"go.viam.com/swerve/services/trajectory"
	"go.viam.com/swerve/utils"
)

// keep this many cycle durations for the timing summary
const timingWindow = 1000

// Dependencies are the pieces a Robot drives.
type Dependencies struct {
	Drivetrain *swerve.Drivetrain
	Shaper     *driverinput.Shaper
	Operator   *driverinput.Operator
	Match      match.State

	// Follower is optional; without one the robot sits still in autonomous.
	Follower trajectory.Follower
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// Robot owns the control cycle. Cycle must not be called concurrently with itself or Run.
type Robot struct {
	drivetrain    *swerve.Drivetrain
	shaper        *driverinput.Shaper
	operator      *driverinput.Operator
	match         match.State
	follower      trajectory.Follower
	clk           clock.Clock
	period        time.Duration
	fieldOriented bool
	logger        logging.Logger

	shaperState driverinput.State
	lastPhase   match.Phase
	warnedStop  bool

	timingMu sync.Mutex
	timings  []float64
	cycles   int

	workers utils.StoppableWorkers
}

// New returns a robot ready to cycle.
func New(cfg *config.Config, deps Dependencies, logger logging.Logger) (*Robot, error) {
	if deps.Drivetrain == nil || deps.Shaper == nil || deps.Operator == nil || deps.Match == nil {
		return nil, errors.New("robot needs a drivetrain, a shaper, an operator and a match state")
	}
	if err := cfg.Drive.Validate("drive"); err != nil {
		return nil, err
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Robot{
		drivetrain:    deps.Drivetrain,
		shaper:        deps.Shaper,
		operator:      deps.Operator,
		match:         deps.Match,
		follower:      deps.Follower,
		clk:           clk,
		period:        cfg.Drive.LoopPeriod,
		fieldOriented: cfg.Drive.FieldOriented,
		logger:        logger,
		shaperState:   driverinput.NewState(clk.Now()),
		lastPhase:     deps.Match.Phase(),
	}, nil
}

// Cycle runs the pipeline once.
func (r *Robot) Cycle(ctx context.Context) error {
	// execution time is wall time even when control time is simulated
	wallStart := time.Now()
	defer func() { r.recordTiming(time.Since(wallStart)) }()
	start := r.clk.Now()

	phase := r.match.Phase()
	if phase != r.lastPhase {
		r.logger.Infow("match phase changed", "from", r.lastPhase, "to", phase)
		r.lastPhase = phase
		r.shaperState = driverinput.NewState(start)
	}

	if _, err := r.drivetrain.Heading(ctx); err != nil {
		if errors.Is(err, swerve.ErrNonFiniteHeading) {
			r.logger.Warnw("heading is not finite, stopping the drive", "phase", phase)
			return r.drivetrain.Stop(ctx)
		}
		return multierr.Combine(err, r.drivetrain.Stop(ctx))
	}

	if r.operator.TakeHeadingReset() {
		if err := r.drivetrain.ResetHeading(ctx); err != nil {
			return err
		}
		r.logger.Info("heading reset by operator")
	}

	var err error
	switch phase {
	case match.Teleop:
		err = r.teleop(ctx, start)
	case match.Autonomous:
		err = r.autonomous(ctx, start)
	default:
		err = r.drivetrain.Stop(ctx)
	}
	if err != nil {
		return err
	}

	_, err = r.drivetrain.UpdateOdometry(ctx, start)
	return err
}

func (r *Robot) teleop(ctx context.Context, now time.Time) error {
	if !r.operator.Connected() {
		if !r.warnedStop {
			r.logger.Warn("operator controller disconnected, stopping the drive")
			r.warnedStop = true
		}
		r.shaperState = driverinput.NewState(now)
		return r.drivetrain.Stop(ctx)
	}
	r.warnedStop = false

	axes, err := r.operator.Axes(ctx)
	if err != nil {
		return multierr.Combine(errors.Wrap(err, "reading operator axes"), r.drivetrain.Stop(ctx))
	}
	var cmd driverinput.Command
	cmd, r.shaperState = r.shaper.Shape(r.shaperState, axes, r.operator.Mode(), now)
	return r.drivetrain.Drive(ctx, swerve.TeleopRequest{
		Translation:      cmd.Translation,
		Rotation:         cmd.Rotation,
		CenterOfRotation: cmd.CenterOfRotation,
		FieldOriented:    r.fieldOriented,
	})
}

func (r *Robot) autonomous(ctx context.Context, now time.Time) error {
	if r.follower == nil {
		return r.drivetrain.Stop(ctx)
	}
	velocity, err := r.drivetrain.ChassisVelocity(ctx)
	if err != nil {
		return multierr.Combine(errors.Wrap(err, "cannot measure chassis velocity"), r.drivetrain.Stop(ctx))
	}
	speeds, ok := r.follower.Next(ctx, now, r.drivetrain.Pose(), velocity)
	if !ok {
		return r.drivetrain.Stop(ctx)
	}
	return r.drivetrain.AutoDrive(ctx, speeds)
}

// Run cycles every loop period until ctx is done, then stops the drive. A failed cycle is logged
// and the loop carries on.
func (r *Robot) Run(ctx context.Context) error {
	ticker := r.clk.Ticker(r.period)
	defer ticker.Stop()
	r.logger.Infow("control loop started", "period", r.period)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("control loop stopped")
			//nolint:contextcheck
			return r.drivetrain.Stop(context.Background())
		case <-ticker.C:
		}
		if err := r.Cycle(ctx); err != nil {
			r.logger.Warnw("cycle failed", "error", err)
		}
	}
}

// Start runs the loop in the background until Close.
func (r *Robot) Start() {
	r.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		if err := r.Run(ctx); err != nil {
			r.logger.Errorw("stopping drive", "error", err)
		}
	})
}

// Close stops the background loop, if any, and releases the operator controller and the drive.
func (r *Robot) Close(ctx context.Context) error {
	if r.workers != nil {
		r.workers.Stop()
	}
	return multierr.Combine(r.operator.Close(ctx), r.drivetrain.Close(ctx))
}

func (r *Robot) recordTiming(d time.Duration) {
	r.timingMu.Lock()
	defer r.timingMu.Unlock()
	r.cycles++
	if len(r.timings) == timingWindow {
		r.timings = r.timings[1:]
	}
	r.timings = append(r.timings, float64(d)/float64(time.Millisecond))
}

// CycleStats summarizes recent cycle durations in milliseconds.
type CycleStats struct {
	Cycles int
	Mean   float64
	P99    float64
	Max    float64
}

// Stats returns the timing of recent cycles.
func (r *Robot) Stats() (CycleStats, error) {
	r.timingMu.Lock()
	data := stats.Float64Data(append([]float64(nil), r.timings...))
	cycles := r.cycles
	r.timingMu.Unlock()

	out := CycleStats{Cycles: cycles}
	if len(data) == 0 {
		return out, nil
	}
	var errs error
	var err error
	out.Mean, err = data.Mean()
	errs = multierr.Append(errs, err)
	out.P99, err = data.Percentile(99)
	errs = multierr.Append(errs, err)
	out.Max, err = data.Max()
	errs = multierr.Append(errs, err)
	return out, errs
}
