// Package swerve implements the drive orchestrator of a four-module swerve base: it turns a
// teleop or autonomous velocity request into per-module targets each cycle.
package swerve

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/swerve/components/gyro"
	"go.viam.com/swerve/components/swervemodule"
	"go.viam.com/swerve/config"
	"go.viam.com/swerve/control"
	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/services/match"
	"go.viam.com/swerve/services/poseestimator"
	"go.viam.com/swerve/spatialmath"
	"go.viam.com/swerve/utils"
)

// ErrNonFiniteHeading is returned when the gyro reports NaN or an infinite heading.
var ErrNonFiniteHeading = errors.New("gyro heading is not finite")

// TeleopRequest is the operator's velocity request. Translation is in m/s, Rotation in rad/s
// and CenterOfRotation is an offset from the robot center in meters.
type TeleopRequest struct {
	Translation      r2.Point
	Rotation         float64
	CenterOfRotation r2.Point
	FieldOriented    bool
}

// Dependencies are the collaborators a Drivetrain is built from.
type Dependencies struct {
	Modules [kinematics.NumModules]swervemodule.Actuator
	Gyro    gyro.Gyro
	Match   match.State

	// Estimator defaults to wheel odometry.
	Estimator poseestimator.Estimator
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// Drivetrain coordinates the four modules, the gyro and the pose estimator.
type Drivetrain struct {
	kin       *kinematics.SwerveKinematics
	modules   [kinematics.NumModules]*calibratedModule
	gyro      gyro.Gyro
	estimator poseestimator.Estimator
	match     match.State
	corrector *control.HeadingCorrector
	clk       clock.Clock
	maxSpeed  float64
	logger    logging.Logger

	mu                   sync.Mutex
	headingState         control.HeadingCorrectionState
	useHeadingCorrection bool
	flipped              bool
	latestSpeed          float64
}

// New returns a drivetrain. The configuration is validated here so that no cycle ever sees an
// unusable speed limit or geometry.
func New(ctx context.Context, cfg *config.Config, deps Dependencies, logger logging.Logger) (*Drivetrain, error) {
	if err := cfg.Validate("swerve"); err != nil {
		return nil, err
	}
	moduleCfgs, err := cfg.ModuleConfigs("swerve.modules")
	if err != nil {
		return nil, err
	}
	for i, a := range deps.Modules {
		if a == nil {
			return nil, errors.Errorf("no actuator for %s", kinematics.ModuleIndex(i))
		}
	}
	if deps.Gyro == nil {
		return nil, errors.New("drivetrain needs a gyro")
	}
	if deps.Match == nil {
		return nil, errors.New("drivetrain needs a match state")
	}

	kin, err := kinematics.NewRectangularKinematics(cfg.Drive.WheelBaseMeters, cfg.Drive.TrackWidthMeters)
	if err != nil {
		return nil, err
	}
	corrector, err := control.NewHeadingCorrector(cfg.Heading.CorrectorConfig())
	if err != nil {
		return nil, err
	}

	d := &Drivetrain{
		kin:                  kin,
		gyro:                 deps.Gyro,
		estimator:            deps.Estimator,
		match:                deps.Match,
		corrector:            corrector,
		clk:                  deps.Clock,
		maxSpeed:             cfg.Drive.MaxSpeedMetersPerSec,
		logger:               logger,
		useHeadingCorrection: cfg.Drive.UseHeadingCorrection,
	}
	if d.clk == nil {
		d.clk = clock.New()
	}
	for _, idx := range kinematics.ModuleIndices {
		d.modules[idx] = newCalibratedModule(idx, deps.Modules[idx], moduleCfgs[idx])
	}

	heading, err := d.headingRadians(ctx)
	if err != nil {
		return nil, err
	}
	d.headingState = control.NewHeadingCorrectionState(heading, d.clk.Now())

	if d.estimator == nil {
		positions, err := d.ModulePositions(ctx)
		if err != nil {
			return nil, err
		}
		d.estimator = poseestimator.NewOdometry(kin, heading, positions)
	}

	logger.Infow("drivetrain ready",
		"wheel_base_m", cfg.Drive.WheelBaseMeters,
		"track_width_m", cfg.Drive.TrackWidthMeters,
		"max_speed_mps", d.maxSpeed,
		"heading_correction", d.useHeadingCorrection)
	return d, nil
}

// Kinematics returns the drivetrain's geometry.
func (d *Drivetrain) Kinematics() *kinematics.SwerveKinematics {
	return d.kin
}

// Drive executes a teleop request for one cycle.
func (d *Drivetrain) Drive(ctx context.Context, req TeleopRequest) error {
	if d.match.Phase() == match.Teleop {
		if err := d.ensureIdleMode(ctx, swervemodule.Brake); err != nil {
			return err
		}
	}

	heading, err := d.headingRadians(ctx)
	if err != nil {
		return err
	}

	speeds := kinematics.ChassisSpeeds{Vx: req.Translation.X, Vy: req.Translation.Y, Omega: req.Rotation}

	d.mu.Lock()
	if d.useHeadingCorrection {
		speeds, d.headingState = d.corrector.Correct(d.headingState, speeds, heading, d.clk.Now())
	}
	if req.FieldOriented {
		speeds = kinematics.FieldToRobot(speeds, heading, d.flipped)
	}
	d.latestSpeed = speeds.TranslationSpeed()
	d.mu.Unlock()

	d.logger.Debugw("teleop drive", "speeds", speeds, "center_of_rotation", req.CenterOfRotation)
	return d.setModuleStates(ctx, d.kin.ToModuleStates(speeds, req.CenterOfRotation))
}

// AutoDrive executes a robot-relative command from the trajectory follower for one cycle.
func (d *Drivetrain) AutoDrive(ctx context.Context, speeds kinematics.ChassisSpeeds) error {
	if !speeds.IsFinite() {
		return errors.Errorf("refusing non-finite autonomous command %v", speeds)
	}
	if d.match.Phase() == match.Autonomous {
		if err := d.ensureIdleMode(ctx, swervemodule.Coast); err != nil {
			return err
		}
	}

	target := kinematics.Discretize(speeds, kinematics.LoopPeriod)
	d.mu.Lock()
	d.latestSpeed = target.TranslationSpeed()
	d.mu.Unlock()

	d.logger.Debugw("autonomous drive", "speeds", target)
	return d.setModuleStates(ctx, d.kin.ToModuleStates(target, r2.Point{}))
}

func (d *Drivetrain) setModuleStates(ctx context.Context, states [kinematics.NumModules]kinematics.ModuleState) error {
	states = kinematics.DesaturateWheelSpeeds(states, d.maxSpeed)
	return utils.RunInParallel(ctx, lo.Map(d.modules[:], func(m *calibratedModule, i int) utils.SimpleFunc {
		return func(ctx context.Context) error {
			return m.setDesiredState(ctx, states[m.index])
		}
	}))
}

func (d *Drivetrain) ensureIdleMode(ctx context.Context, mode swervemodule.IdleMode) error {
	var errs error
	var changed []string
	for _, m := range d.modules {
		ok, err := m.ensureIdleMode(ctx, mode)
		errs = multierr.Append(errs, err)
		if ok {
			changed = append(changed, m.index.String())
		}
	}
	if len(changed) > 0 {
		d.logger.Infow("drive idle mode changed", "mode", mode, "modules", changed)
	}
	return errs
}

// Stop stops every module. A failing module does not keep the others running.
func (d *Drivetrain) Stop(ctx context.Context) error {
	var errs error
	for _, m := range d.modules {
		errs = multierr.Append(errs, m.stop(ctx))
	}
	d.mu.Lock()
	d.latestSpeed = 0
	d.mu.Unlock()
	return errs
}

// Speed returns the magnitude of the most recently commanded robot-relative translation.
func (d *Drivetrain) Speed() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latestSpeed
}

// ModuleStates returns the calibrated state of every module.
func (d *Drivetrain) ModuleStates(ctx context.Context) ([kinematics.NumModules]kinematics.ModuleState, error) {
	var out [kinematics.NumModules]kinematics.ModuleState
	for _, m := range d.modules {
		s, err := m.state(ctx)
		if err != nil {
			return out, err
		}
		out[m.index] = s
	}
	return out, nil
}

// ModulePositions returns the calibrated position of every module.
func (d *Drivetrain) ModulePositions(ctx context.Context) ([kinematics.NumModules]kinematics.ModulePosition, error) {
	var out [kinematics.NumModules]kinematics.ModulePosition
	for _, m := range d.modules {
		p, err := m.position(ctx)
		if err != nil {
			return out, err
		}
		out[m.index] = p
	}
	return out, nil
}

// ChassisVelocity returns the robot-relative velocity implied by the measured module states.
func (d *Drivetrain) ChassisVelocity(ctx context.Context) (kinematics.ChassisSpeeds, error) {
	states, err := d.ModuleStates(ctx)
	if err != nil {
		return kinematics.ChassisSpeeds{}, err
	}
	return d.kin.ToChassisSpeeds(states)
}

// Heading returns the gyro heading in degrees in [-180, 180].
func (d *Drivetrain) Heading(ctx context.Context) (float64, error) {
	deg, err := d.gyro.Heading(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "reading gyro")
	}
	if !utils.Finite(deg) {
		return 0, ErrNonFiniteHeading
	}
	return math.Remainder(deg, 360), nil
}

func (d *Drivetrain) headingRadians(ctx context.Context) (float64, error) {
	deg, err := d.Heading(ctx)
	if err != nil {
		return 0, err
	}
	return utils.DegToRad(deg), nil
}

// ResetHeading makes the current direction read as zero. The heading hold restarts from the new
// zero.
func (d *Drivetrain) ResetHeading(ctx context.Context) error {
	if err := d.gyro.Reset(ctx); err != nil {
		return errors.Wrap(err, "resetting gyro")
	}
	return d.restartHeadingHold(ctx)
}

func (d *Drivetrain) restartHeadingHold(ctx context.Context) error {
	heading, err := d.headingRadians(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.headingState = control.NewHeadingCorrectionState(heading, d.clk.Now())
	d.mu.Unlock()
	return nil
}

// ResetPose zeroes the gyro and places the robot at pose.
func (d *Drivetrain) ResetPose(ctx context.Context, pose spatialmath.Pose2D) error {
	if err := d.ResetHeading(ctx); err != nil {
		return err
	}
	heading, err := d.headingRadians(ctx)
	if err != nil {
		return err
	}
	positions, err := d.ModulePositions(ctx)
	if err != nil {
		return err
	}
	d.estimator.Reset(heading, positions, pose)
	d.logger.Infow("pose reset", "pose", pose)
	return nil
}

// Pose returns the latest pose estimate.
func (d *Drivetrain) Pose() spatialmath.Pose2D {
	return d.estimator.Pose()
}

// UpdateOdometry feeds the current readings to the pose estimator.
func (d *Drivetrain) UpdateOdometry(ctx context.Context, ts time.Time) (spatialmath.Pose2D, error) {
	heading, err := d.headingRadians(ctx)
	if err != nil {
		return spatialmath.Pose2D{}, err
	}
	positions, err := d.ModulePositions(ctx)
	if err != nil {
		return spatialmath.Pose2D{}, err
	}
	return d.estimator.Update(ts, heading, positions), nil
}

// SetFlipped sets whether field-oriented driving is mirrored for the far alliance.
func (d *Drivetrain) SetFlipped(flipped bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flipped = flipped
}

// SetFlippedFromPose flips field-oriented driving when the estimated pose faces within 90
// degrees of the field's +X axis.
func (d *Drivetrain) SetFlippedFromPose() {
	flipped := math.Abs(d.Pose().HeadingDegrees()) < 90
	d.SetFlipped(flipped)
}

// Flipped reports whether field-oriented driving is mirrored.
func (d *Drivetrain) Flipped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flipped
}

// SetUseHeadingCorrection enables or disables the heading hold. Enabling it starts a fresh hold
// at the current heading.
func (d *Drivetrain) SetUseHeadingCorrection(ctx context.Context, enable bool) error {
	d.mu.Lock()
	was := d.useHeadingCorrection
	d.useHeadingCorrection = enable
	d.mu.Unlock()
	if enable && !was {
		return d.restartHeadingHold(ctx)
	}
	return nil
}

// Close stops the modules.
func (d *Drivetrain) Close(ctx context.Context) error {
	return d.Stop(ctx)
}
