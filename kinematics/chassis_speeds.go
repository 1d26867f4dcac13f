// Package kinematics converts between chassis velocities and the speed and steering
// angle of each swerve module.
package kinematics

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/swerve/spatialmath"
	"go.viam.com/swerve/utils"
)

// LoopPeriod is the nominal control period, in seconds, used to discretize commands.
const LoopPeriod = 0.02

// ChassisSpeeds is a planar velocity command. Vx is forward and Vy is left, in m/s; Omega is
// counter-clockwise in rad/s. Depending on context the frame is either the robot or the field.
type ChassisSpeeds struct {
	Vx, Vy, Omega float64
}

// Translation returns the linear part of the command as a vector.
func (s ChassisSpeeds) Translation() r2.Point {
	return r2.Point{X: s.Vx, Y: s.Vy}
}

// TranslationSpeed returns the magnitude of the linear part of the command.
func (s ChassisSpeeds) TranslationSpeed() float64 {
	return math.Hypot(s.Vx, s.Vy)
}

// IsFinite reports whether every component is a real number.
func (s ChassisSpeeds) IsFinite() bool {
	return utils.Finite(s.Vx, s.Vy, s.Omega)
}

// IsZero reports whether the command asks for no motion at all.
func (s ChassisSpeeds) IsZero() bool {
	return s.Vx == 0 && s.Vy == 0 && s.Omega == 0
}

func (s ChassisSpeeds) String() string {
	return fmt.Sprintf("vx=%.3f vy=%.3f ω=%.3f", s.Vx, s.Vy, s.Omega)
}

// FieldToRobot re-expresses a field-relative command in the robot frame given the robot
// heading in radians. When flipped the field is viewed from the opposite end, which adds
// half a turn to the heading. Omega is unchanged.
func FieldToRobot(speeds ChassisSpeeds, heading float64, flipped bool) ChassisSpeeds {
	if flipped {
		heading += math.Pi
	}
	v := spatialmath.Rotate(speeds.Translation(), -heading)
	return ChassisSpeeds{Vx: v.X, Vy: v.Y, Omega: speeds.Omega}
}

// Discretize compensates a continuous command for being held constant over dt seconds:
// it returns the velocity whose straight-line motion over dt ends where following the
// original command along its arc would.
func Discretize(speeds ChassisSpeeds, dt float64) ChassisSpeeds {
	if dt <= 0 {
		return speeds
	}
	target := spatialmath.NewPose2D(speeds.Vx*dt, speeds.Vy*dt, speeds.Omega*dt)
	twist := spatialmath.NewPose2D(0, 0, 0).Log(target)
	return ChassisSpeeds{Vx: twist.Dx / dt, Vy: twist.Dy / dt, Omega: twist.Dtheta / dt}
}
