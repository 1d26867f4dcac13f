package control

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/utils"
)

// HeadingCorrectorConfig tunes the heading hold.
type HeadingCorrectorConfig struct {
	// RotationEpsilon is the commanded angular rate (rad/s) above which the operator is turning.
	RotationEpsilon float64
	// Cooldown is how long after the last commanded turn the hold stays disengaged.
	Cooldown time.Duration
	// StationarySpeed is the translation speed (m/s) below which the robot is considered at rest.
	StationarySpeed float64
	// ToleranceDeg is the heading error below which no correction is applied.
	ToleranceDeg float64
	// Gain is the proportional gain applied to error / dt.
	Gain float64
}

// DefaultHeadingCorrectorConfig returns the tuning used on the competition robot.
func DefaultHeadingCorrectorConfig() HeadingCorrectorConfig {
	return HeadingCorrectorConfig{
		RotationEpsilon: 0.01,
		Cooldown:        500 * time.Millisecond,
		StationarySpeed: 0.05,
		ToleranceDeg:    2,
		Gain:            0.04,
	}
}

// Validate checks that the tuning is usable.
func (cfg HeadingCorrectorConfig) Validate() error {
	if cfg.RotationEpsilon < 0 || cfg.StationarySpeed < 0 || cfg.ToleranceDeg < 0 || cfg.Cooldown < 0 {
		return errors.New("heading corrector thresholds must not be negative")
	}
	if cfg.Gain <= 0 {
		return errors.Errorf("heading corrector gain must be positive, got %v", cfg.Gain)
	}
	return nil
}

// HeadingCorrectionState is the heading hold's memory between cycles.
type HeadingCorrectionState struct {
	// TargetHeading is the heading, in radians, the robot should be holding.
	TargetHeading float64
	// PreviousOmega is the angular rate commanded on the previous cycle.
	PreviousOmega float64
	// LastActiveRotation is when the operator last commanded a turn.
	LastActiveRotation time.Time
	// PreviousCorrection is when a correction was last emitted.
	PreviousCorrection time.Time
	// PreviousCycle is when Correct last ran.
	PreviousCycle time.Time
}

// NewHeadingCorrectionState starts a hold at the given heading. The hold begins in cooldown.
func NewHeadingCorrectionState(heading float64, now time.Time) HeadingCorrectionState {
	return HeadingCorrectionState{
		TargetHeading:      heading,
		LastActiveRotation: now,
		PreviousCorrection: now,
		PreviousCycle:      now,
	}
}

// HeadingCorrector counteracts passive yaw drift while the robot translates without a
// rotation command. It never fights an intentional turn or a robot at rest.
type HeadingCorrector struct {
	cfg HeadingCorrectorConfig
}

// NewHeadingCorrector returns a corrector with the given tuning.
func NewHeadingCorrector(cfg HeadingCorrectorConfig) (*HeadingCorrector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HeadingCorrector{cfg: cfg}, nil
}

// Correct returns the speeds to command this cycle and the state for the next one.
// heading is the measured heading in radians.
func (hc *HeadingCorrector) Correct(
	state HeadingCorrectionState,
	desired kinematics.ChassisSpeeds,
	heading float64,
	now time.Time,
) (kinematics.ChassisSpeeds, HeadingCorrectionState) {
	next := state
	next.PreviousOmega = desired.Omega
	next.PreviousCycle = now

	if math.Abs(desired.Omega) >= hc.cfg.RotationEpsilon {
		next.LastActiveRotation = now
		next.TargetHeading = heading
		return desired, next
	}
	if now.Sub(state.LastActiveRotation) < hc.cfg.Cooldown {
		next.TargetHeading = heading
		return desired, next
	}
	if desired.TranslationSpeed() < hc.cfg.StationarySpeed {
		next.TargetHeading = heading
		return desired, next
	}

	// where the robot would point had it tracked last cycle's rate exactly
	if cycleDt := now.Sub(state.PreviousCycle).Seconds(); cycleDt > 0 && !state.PreviousCycle.IsZero() {
		next.TargetHeading = utils.NormalizeAngle(state.TargetHeading + state.PreviousOmega*cycleDt)
	}

	dt := now.Sub(state.PreviousCorrection).Seconds()
	if dt <= 0 {
		return desired, next
	}
	headingErr := utils.NormalizeAngle(next.TargetHeading - heading)
	if math.Abs(utils.RadToDeg(headingErr)) < hc.cfg.ToleranceDeg {
		return desired, next
	}

	next.PreviousCorrection = now
	return kinematics.ChassisSpeeds{
		Vx:    desired.Vx,
		Vy:    desired.Vy,
		Omega: headingErr / dt * hc.cfg.Gain,
	}, next
}
