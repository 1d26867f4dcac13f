package utils

import (
	"math"
	"math/rand"
	"testing"

	"go.viam.com/test"
)

func TestWrapAngle(t *testing.T) {
	test.That(t, WrapAngle(0), test.ShouldEqual, 0)
	test.That(t, WrapAngle(twoPi), test.ShouldEqual, 0)
	test.That(t, WrapAngle(-math.Pi/2), test.ShouldAlmostEqual, 3*math.Pi/2)
	test.That(t, WrapAngle(5*math.Pi), test.ShouldAlmostEqual, math.Pi)
	test.That(t, WrapAngle(-1e-18), test.ShouldBeLessThan, twoPi)

	//nolint:gosec
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 10000; i++ {
		a := (r.Float64() - 0.5) * 1e4
		w := WrapAngle(a)
		test.That(t, w, test.ShouldBeGreaterThanOrEqualTo, 0)
		test.That(t, w, test.ShouldBeLessThan, twoPi)
		test.That(t, WrapAngle(w), test.ShouldEqual, w)
	}
}

func TestNormalizeAngle(t *testing.T) {
	test.That(t, NormalizeAngle(math.Pi), test.ShouldAlmostEqual, math.Pi)
	test.That(t, NormalizeAngle(-math.Pi), test.ShouldAlmostEqual, math.Pi)
	test.That(t, NormalizeAngle(3*math.Pi/2), test.ShouldAlmostEqual, -math.Pi/2)
	test.That(t, NormalizeDegrees(370), test.ShouldAlmostEqual, 10)
	test.That(t, NormalizeDegrees(-190), test.ShouldAlmostEqual, 170)
}

func TestAngleDifference(t *testing.T) {
	test.That(t, AngleDifference(0.1, twoPi-0.1), test.ShouldAlmostEqual, 0.2)
	test.That(t, AngleDifference(0, math.Pi), test.ShouldAlmostEqual, math.Pi)
	test.That(t, AngleDifference(-math.Pi/2, math.Pi/2), test.ShouldAlmostEqual, math.Pi)
	test.That(t, AngleDifference(1, 1.5), test.ShouldAlmostEqual, 0.5)
}

func TestStepTowards(t *testing.T) {
	test.That(t, StepTowards(0, 1, 0.25), test.ShouldEqual, 0.25)
	test.That(t, StepTowards(0, -1, 0.25), test.ShouldEqual, -0.25)
	test.That(t, StepTowards(0.9, 1, 0.25), test.ShouldEqual, 1)
}

func TestStepTowardsCircular(t *testing.T) {
	t.Run("short way forward", func(t *testing.T) {
		test.That(t, StepTowardsCircular(0, 1, 0.25), test.ShouldAlmostEqual, 0.25)
	})
	t.Run("short way across zero", func(t *testing.T) {
		next := StepTowardsCircular(0.1, twoPi-0.5, 0.2)
		test.That(t, next, test.ShouldAlmostEqual, twoPi-0.1)
	})
	t.Run("reach across zero in one step", func(t *testing.T) {
		test.That(t, StepTowardsCircular(0.1, twoPi-0.1, 0.5), test.ShouldAlmostEqual, twoPi-0.1)
	})
	t.Run("inputs outside range", func(t *testing.T) {
		next := StepTowardsCircular(-0.1, 4*math.Pi+0.1, 0.05)
		test.That(t, next, test.ShouldAlmostEqual, twoPi-0.05)
	})
	t.Run("always wrapped", func(t *testing.T) {
		for _, c := range [][3]float64{{0, 3, 1}, {6, 0.5, 0.3}, {-7, 9, 2}, {1, 1, 0}} {
			next := StepTowardsCircular(c[0], c[1], c[2])
			test.That(t, next, test.ShouldBeGreaterThanOrEqualTo, 0)
			test.That(t, next, test.ShouldBeLessThan, twoPi)
		}
	})
}

func TestDeadband(t *testing.T) {
	test.That(t, Deadband(0.3, 0.3), test.ShouldEqual, 0)
	test.That(t, Deadband(-0.3, 0.3), test.ShouldEqual, 0)
	test.That(t, Deadband(0.1, 0.3), test.ShouldEqual, 0)
	test.That(t, Deadband(1, 0.3), test.ShouldAlmostEqual, 1)
	test.That(t, Deadband(-1, 0.3), test.ShouldAlmostEqual, -1)
	test.That(t, Deadband(0.65, 0.3), test.ShouldAlmostEqual, 0.5)

	// no jump just past the edge
	eps := 1e-9
	test.That(t, Deadband(0.3+eps, 0.3), test.ShouldAlmostEqual, 0, 1e-8)
	test.That(t, Deadband(-0.3-eps, 0.3), test.ShouldAlmostEqual, 0, 1e-8)
}

func TestFiniteAndClamp(t *testing.T) {
	test.That(t, Finite(1, 2, 3), test.ShouldBeTrue)
	test.That(t, Finite(1, math.NaN()), test.ShouldBeFalse)
	test.That(t, Finite(math.Inf(-1)), test.ShouldBeFalse)
	test.That(t, Clamp(2, -1, 1), test.ShouldEqual, 1)
	test.That(t, Clamp(-2, -1, 1), test.ShouldEqual, -1)
	test.That(t, Clamp(0.5, -1, 1), test.ShouldEqual, 0.5)
}
