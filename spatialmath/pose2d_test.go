package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestRotate(t *testing.T) {
	p := Rotate(r2.Point{X: 1, Y: 0}, math.Pi/2)
	test.That(t, p.X, test.ShouldAlmostEqual, 0)
	test.That(t, p.Y, test.ShouldAlmostEqual, 1)
}

func TestRelativeTo(t *testing.T) {
	origin := NewPose2D(1, 1, math.Pi/2)
	p := NewPose2D(1, 2, math.Pi/2).RelativeTo(origin)
	test.That(t, p.Point.X, test.ShouldAlmostEqual, 1)
	test.That(t, p.Point.Y, test.ShouldAlmostEqual, 0)
	test.That(t, p.Theta, test.ShouldAlmostEqual, 0)
}

func TestExpLogRoundTrip(t *testing.T) {
	start := NewPose2D(0.5, -0.2, 0.3)
	for _, twist := range []Twist2D{
		{Dx: 1, Dy: 0, Dtheta: 0},
		{Dx: 0.3, Dy: -0.4, Dtheta: 0.5},
		{Dx: 0, Dy: 0, Dtheta: -1.2},
	} {
		end := start.Exp(twist)
		back := start.Log(end)
		test.That(t, back.Dx, test.ShouldAlmostEqual, twist.Dx, 1e-9)
		test.That(t, back.Dy, test.ShouldAlmostEqual, twist.Dy, 1e-9)
		test.That(t, back.Dtheta, test.ShouldAlmostEqual, twist.Dtheta, 1e-9)
	}
}

func TestExpQuarterCircle(t *testing.T) {
	// arc of radius 1 turning left through 90 degrees
	end := NewPose2D(0, 0, 0).Exp(Twist2D{Dx: math.Pi / 2, Dtheta: math.Pi / 2})
	test.That(t, end.Point.X, test.ShouldAlmostEqual, 1)
	test.That(t, end.Point.Y, test.ShouldAlmostEqual, 1)
	test.That(t, end.HeadingDegrees(), test.ShouldAlmostEqual, 90)
}
