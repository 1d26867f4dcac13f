package kinematics

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/swerve/spatialmath"
)

// SwerveKinematics holds the geometry of a four-module base. Module locations are offsets from
// the robot center in the chassis frame, in meters.
type SwerveKinematics struct {
	locations [NumModules]r2.Point
	// rows 2i and 2i+1 map a chassis velocity to module i's x and y velocity
	forward *mat.Dense
}

// NewSwerveKinematics returns kinematics for modules at the given locations. At least two
// locations must differ so that rotation can be recovered from module states.
func NewSwerveKinematics(locations [NumModules]r2.Point) (*SwerveKinematics, error) {
	distinct := false
	for _, loc := range locations[1:] {
		if loc != locations[0] {
			distinct = true
			break
		}
	}
	if !distinct {
		return nil, errors.New("swerve module locations must not all coincide")
	}

	m := mat.NewDense(2*NumModules, 3, nil)
	for i, loc := range locations {
		m.SetRow(2*i, []float64{1, 0, -loc.Y})
		m.SetRow(2*i+1, []float64{0, 1, loc.X})
	}
	return &SwerveKinematics{locations: locations, forward: m}, nil
}

// NewRectangularKinematics places the modules at the corners of a wheelBase by trackWidth
// rectangle centered on the robot.
func NewRectangularKinematics(wheelBase, trackWidth float64) (*SwerveKinematics, error) {
	if wheelBase <= 0 || trackWidth <= 0 {
		return nil, errors.Errorf("wheel base and track width must be positive, got %v and %v", wheelBase, trackWidth)
	}
	x, y := wheelBase/2, trackWidth/2
	var locations [NumModules]r2.Point
	locations[FrontLeft] = r2.Point{X: x, Y: y}
	locations[FrontRight] = r2.Point{X: x, Y: -y}
	locations[BackLeft] = r2.Point{X: -x, Y: y}
	locations[BackRight] = r2.Point{X: -x, Y: -y}
	return NewSwerveKinematics(locations)
}

// Locations returns the module offsets.
func (k *SwerveKinematics) Locations() [NumModules]r2.Point {
	return k.locations
}

// ToModuleStates converts a robot-relative command into per-module states, rotating about
// centerOfRotation (an offset from the robot center). A module with zero speed reports an angle
// of zero; callers decide what steering to hold in that case.
func (k *SwerveKinematics) ToModuleStates(speeds ChassisSpeeds, centerOfRotation r2.Point) [NumModules]ModuleState {
	var states [NumModules]ModuleState
	linear := speeds.Translation()
	for i, loc := range k.locations {
		// v = v_chassis + ω × r
		v := linear.Add(loc.Sub(centerOfRotation).Ortho().Mul(speeds.Omega))
		speed := v.Norm()
		angle := 0.0
		if speed != 0 {
			angle = math.Atan2(v.Y, v.X)
		}
		states[i] = ModuleState{Speed: speed, Angle: angle}
	}
	return states
}

// ToChassisSpeeds recovers the chassis velocity that best explains the given module states in
// the least-squares sense.
func (k *SwerveKinematics) ToChassisSpeeds(states [NumModules]ModuleState) (ChassisSpeeds, error) {
	b := mat.NewVecDense(2*NumModules, nil)
	for i, s := range states {
		sin, cos := math.Sincos(s.Angle)
		b.SetVec(2*i, s.Speed*cos)
		b.SetVec(2*i+1, s.Speed*sin)
	}
	x, err := k.solve(b)
	if err != nil {
		return ChassisSpeeds{}, err
	}
	return ChassisSpeeds{Vx: x.AtVec(0), Vy: x.AtVec(1), Omega: x.AtVec(2)}, nil
}

// ToTwist returns the chassis motion between two sets of module positions.
func (k *SwerveKinematics) ToTwist(start, end [NumModules]ModulePosition) (spatialmath.Twist2D, error) {
	b := mat.NewVecDense(2*NumModules, nil)
	for i := range end {
		sin, cos := math.Sincos(end[i].Angle)
		d := end[i].Distance - start[i].Distance
		b.SetVec(2*i, d*cos)
		b.SetVec(2*i+1, d*sin)
	}
	x, err := k.solve(b)
	if err != nil {
		return spatialmath.Twist2D{}, err
	}
	return spatialmath.Twist2D{Dx: x.AtVec(0), Dy: x.AtVec(1), Dtheta: x.AtVec(2)}, nil
}

func (k *SwerveKinematics) solve(b *mat.VecDense) (*mat.VecDense, error) {
	var x mat.VecDense
	if err := x.SolveVec(k.forward, b); err != nil {
		return nil, errors.Wrap(err, "cannot solve forward kinematics")
	}
	return &x, nil
}
