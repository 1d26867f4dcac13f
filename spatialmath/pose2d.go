// Package spatialmath defines planar poses and twists for a ground robot.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/swerve/utils"
)

// Pose2D is a position on the field plus a heading in radians.
type Pose2D struct {
	Point r2.Point
	Theta float64
}

// NewPose2D returns a pose at (x, y) with heading theta radians.
func NewPose2D(x, y, theta float64) Pose2D {
	return Pose2D{Point: r2.Point{X: x, Y: y}, Theta: theta}
}

// Twist2D is a change in pose expressed in the pose's own frame along a constant-curvature arc.
type Twist2D struct {
	Dx, Dy, Dtheta float64
}

// Rotate rotates the vector p counter-clockwise by theta radians.
func Rotate(p r2.Point, theta float64) r2.Point {
	sin, cos := math.Sincos(theta)
	return r2.Point{X: p.X*cos - p.Y*sin, Y: p.X*sin + p.Y*cos}
}

// HeadingDegrees returns the heading of the pose normalized to (-180, 180].
func (p Pose2D) HeadingDegrees() float64 {
	return utils.NormalizeDegrees(utils.RadToDeg(p.Theta))
}

// RelativeTo returns p expressed in the frame of other.
func (p Pose2D) RelativeTo(other Pose2D) Pose2D {
	return Pose2D{
		Point: Rotate(p.Point.Sub(other.Point), -other.Theta),
		Theta: utils.NormalizeAngle(p.Theta - other.Theta),
	}
}

// Exp applies a twist to the pose and returns the resulting pose.
func (p Pose2D) Exp(twist Twist2D) Pose2D {
	sinTheta, cosTheta := math.Sincos(twist.Dtheta)

	var s, c float64
	if math.Abs(twist.Dtheta) < 1e-9 {
		s = 1 - twist.Dtheta*twist.Dtheta/6
		c = twist.Dtheta / 2
	} else {
		s = sinTheta / twist.Dtheta
		c = (1 - cosTheta) / twist.Dtheta
	}
	delta := r2.Point{
		X: twist.Dx*s - twist.Dy*c,
		Y: twist.Dx*c + twist.Dy*s,
	}
	return Pose2D{
		Point: p.Point.Add(Rotate(delta, p.Theta)),
		Theta: utils.NormalizeAngle(p.Theta + twist.Dtheta),
	}
}

// Log returns the twist that maps p onto end.
func (p Pose2D) Log(end Pose2D) Twist2D {
	transform := end.RelativeTo(p)
	dtheta := transform.Theta
	halfDtheta := dtheta / 2

	cosMinusOne := math.Cos(dtheta) - 1
	var halfThetaByTanOfHalfDtheta float64
	if math.Abs(cosMinusOne) < 1e-9 {
		halfThetaByTanOfHalfDtheta = 1 - dtheta*dtheta/12
	} else {
		halfThetaByTanOfHalfDtheta = -(halfDtheta * math.Sin(dtheta)) / cosMinusOne
	}

	x, y := transform.Point.X, transform.Point.Y
	return Twist2D{
		Dx:     x*halfThetaByTanOfHalfDtheta + y*halfDtheta,
		Dy:     -x*halfDtheta + y*halfThetaByTanOfHalfDtheta,
		Dtheta: dtheta,
	}
}

func (p Pose2D) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.1f°)", p.Point.X, p.Point.Y, utils.RadToDeg(p.Theta))
}
