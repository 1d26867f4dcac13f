// Package driverinput turns operator joystick readings into a smoothed velocity command.
package driverinput

import (
	"math"
	"time"

	"github.com/golang/geo/r2"

	"go.viam.com/swerve/components/input"
	"go.viam.com/swerve/config"
	"go.viam.com/swerve/control"
	"go.viam.com/swerve/utils"
)

const (
	// below this translation magnitude the direction may change at will
	idleDirectionSlewRate = 500.0
	// near-reversal snaps direction only once the magnitude is this small
	reversalMagnitude = 1e-4

	smallTurn = 0.45 * math.Pi
	largeTurn = 0.85 * math.Pi
)

// SpeedMode scales the operator's command.
type SpeedMode int32

// Speed modes.
const (
	Normal SpeedMode = iota
	Slow
)

func (m SpeedMode) String() string {
	if m == Slow {
		return "slow"
	}
	return "normal"
}

// Command is the operator's request for one cycle. Translation is in m/s and Rotation in
// rad/s; CenterOfRotation is an offset from the robot center in meters.
type Command struct {
	Translation      r2.Point
	Rotation         float64
	CenterOfRotation r2.Point
}

// State is the shaper's memory between cycles.
type State struct {
	// TranslationDir is the smoothed direction of travel in [0, 2π).
	TranslationDir float64
	Magnitude      control.SlewState
	Rotation       control.SlewState
	LastTime       time.Time
}

// NewState returns a shaper state at rest.
func NewState(now time.Time) State {
	return State{
		Magnitude: control.NewSlewState(0, now),
		Rotation:  control.NewSlewState(0, now),
		LastTime:  now,
	}
}

// Shaper converts raw axes into a Command.
type Shaper struct {
	cfg             config.ShaperConfig
	wheelBase       float64
	trackWidth      float64
	maxSpeed        float64
	maxAngularSpeed float64

	magLimiter control.SlewRateLimiter
	rotLimiter control.SlewRateLimiter
}

// NewShaper returns a shaper for a chassis described by drive.
func NewShaper(cfg config.ShaperConfig, drive config.DriveConfig) (*Shaper, error) {
	if err := cfg.Validate("shaper"); err != nil {
		return nil, err
	}
	if err := drive.Validate("drive"); err != nil {
		return nil, err
	}
	return &Shaper{
		cfg:             cfg,
		wheelBase:       drive.WheelBaseMeters,
		trackWidth:      drive.TrackWidthMeters,
		maxSpeed:        drive.MaxSpeedMetersPerSec,
		maxAngularSpeed: drive.MaxAngularSpeedRadsPerSec,
		magLimiter:      control.NewSlewRateLimiter(cfg.MagnitudeSlewRate),
		rotLimiter:      control.NewSlewRateLimiter(cfg.RotationalSlewRate),
	}, nil
}

func (s *Shaper) modeScale(mode SpeedMode) config.SpeedModeConfig {
	if mode == Slow {
		return s.cfg.Slow
	}
	return s.cfg.Normal
}

// Shape computes this cycle's command and the state for the next one. Axes are sanitized
// before use.
func (s *Shaper) Shape(state State, axes input.Axes, mode SpeedMode, now time.Time) (Command, State) {
	axes = axes.Sanitized()
	scale := s.modeScale(mode)

	translation, next := s.translation(state, axes, now)
	rotation, next := s.rotation(next, axes, now)
	next.LastTime = now

	return Command{
		Translation:      translation.Mul(scale.TranslationScale * s.maxSpeed),
		Rotation:         rotation * scale.RotationScale * s.maxAngularSpeed,
		CenterOfRotation: s.centerOfRotation(axes),
	}, next
}

// responseCurve is linear near center and cubic at the extremes.
func (s *Shaper) responseCurve(v float64) float64 {
	if math.Abs(v) < s.cfg.CubeThreshold {
		return v * s.cfg.LinearScale
	}
	return v * v * v
}

func (s *Shaper) translation(state State, axes input.Axes, now time.Time) (r2.Point, State) {
	// stick forward reads negative
	forward := s.responseCurve(utils.Deadband(-axes.LeftY, s.cfg.TranslationDeadband))
	strafe := s.responseCurve(utils.Deadband(-axes.LeftX, s.cfg.TranslationDeadband))

	v := r2.Point{X: forward, Y: strafe}
	next := state
	if s.cfg.UseRateLimit {
		v, next = s.polarSlew(state, v, now)
	}
	return s.outputDeadband(v), next
}

// polarSlew limits how fast the direction and magnitude of travel may change.
func (s *Shaper) polarSlew(state State, requested r2.Point, now time.Time) (r2.Point, State) {
	next := state
	inDir := math.Atan2(requested.Y, requested.X)
	inMag := requested.Norm()

	dirRate := idleDirectionSlewRate
	if state.Magnitude.Value != 0 {
		dirRate = math.Abs(s.cfg.DirectionSlewRate / state.Magnitude.Value)
	}
	elapsed := now.Sub(state.LastTime).Seconds()
	if elapsed < 0 || state.LastTime.IsZero() {
		elapsed = 0
	}

	var mag float64
	switch diff := utils.AngleDifference(inDir, state.TranslationDir); {
	case inMag < reversalMagnitude:
		// a released stick has no direction; keep heading the way we were going
		mag, next.Magnitude = s.magLimiter.Calculate(state.Magnitude, 0, now)
	case diff < smallTurn:
		next.TranslationDir = utils.StepTowardsCircular(state.TranslationDir, inDir, dirRate*elapsed)
		mag, next.Magnitude = s.magLimiter.Calculate(state.Magnitude, inMag, now)
	case diff > largeTurn:
		if state.Magnitude.Value > reversalMagnitude {
			mag, next.Magnitude = s.magLimiter.Calculate(state.Magnitude, 0, now)
		} else {
			next.TranslationDir = utils.WrapAngle(state.TranslationDir + math.Pi)
			mag, next.Magnitude = s.magLimiter.Calculate(state.Magnitude, inMag, now)
		}
	default:
		next.TranslationDir = utils.StepTowardsCircular(state.TranslationDir, inDir, dirRate*elapsed)
		mag, next.Magnitude = s.magLimiter.Calculate(state.Magnitude, 0, now)
	}

	sin, cos := math.Sincos(next.TranslationDir)
	return r2.Point{X: mag * cos, Y: mag * sin}, next
}

// outputDeadband zeroes short vectors and rescales the rest so the response starts at zero
// at the band edge and still reaches full scale.
func (s *Shaper) outputDeadband(v r2.Point) r2.Point {
	db := s.cfg.OutputDeadband
	norm := v.Norm()
	if norm < db || norm == 0 {
		return r2.Point{}
	}
	return v.Mul((norm - db) / norm / (1 - db))
}

func (s *Shaper) rotation(state State, axes input.Axes, now time.Time) (float64, State) {
	d := utils.Deadband(axes.RightTwist, s.cfg.RotationDeadband)
	rot := -d * d * d
	next := state
	if s.cfg.UseRateLimit {
		rot, next.Rotation = s.rotLimiter.Calculate(state.Rotation, rot, now)
	}
	return rot, next
}

// centerOfRotation maps the right stick onto the chassis footprint. When both axes share a sign
// the point is mirrored through the center.
func (s *Shaper) centerOfRotation(axes input.Axes) r2.Point {
	x := axes.RightX * s.wheelBase
	y := axes.RightY * s.trackWidth
	if x*y > 0 {
		x, y = -x, -y
	}
	return r2.Point{X: x, Y: y}.Mul(s.cfg.CenterOfRotationScale)
}
