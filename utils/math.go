// Package utils contains the small numeric helpers shared by the drive pipeline.
package utils

import (
	"math"
)

const twoPi = 2 * math.Pi

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// WrapAngle wraps an angle in radians into [0, 2π). It is defined for every finite input.
func WrapAngle(angle float64) float64 {
	wrapped := math.Mod(angle, twoPi)
	if wrapped < 0 {
		wrapped += twoPi
	}
	// math.Mod of a tiny negative value can round back up to exactly 2π.
	if wrapped >= twoPi {
		return 0
	}
	return wrapped
}

// NormalizeAngle wraps an angle in radians into (-π, π].
func NormalizeAngle(angle float64) float64 {
	wrapped := WrapAngle(angle)
	if wrapped > math.Pi {
		return wrapped - twoPi
	}
	return wrapped
}

// NormalizeDegrees wraps an angle in degrees into (-180, 180].
func NormalizeDegrees(degrees float64) float64 {
	return RadToDeg(NormalizeAngle(DegToRad(degrees)))
}

// AngleDifference returns the unsigned minimum difference between two angles in radians,
// measured across zero when that is shorter.
func AngleDifference(a, b float64) float64 {
	diff := math.Abs(WrapAngle(a) - WrapAngle(b))
	if diff > math.Pi {
		return twoPi - diff
	}
	return diff
}

// StepTowards moves current towards target by at most stepSize.
func StepTowards(current, target, stepSize float64) float64 {
	switch {
	case math.Abs(current-target) <= stepSize:
		return target
	case target < current:
		return current - stepSize
	default:
		return current + stepSize
	}
}

// StepTowardsCircular moves the angle current towards target along the shortest path by at
// most stepSize radians. The result is always in [0, 2π).
func StepTowardsCircular(current, target, stepSize float64) float64 {
	current = WrapAngle(current)
	target = WrapAngle(target)

	direction := Sign(target - current)
	diff := math.Abs(current - target)

	switch {
	case diff <= stepSize:
		return target
	case diff > math.Pi:
		// reachable in one step across the wrap point
		if current+twoPi-target < stepSize || target+twoPi-current < stepSize {
			return target
		}
		return WrapAngle(current - direction*stepSize)
	default:
		return WrapAngle(current + direction*stepSize)
	}
}

// Deadband zeroes values inside (-cutoff, cutoff) and rescales the remainder so the output is
// continuous at the band edge and still reaches ±1.
func Deadband(value, cutoff float64) float64 {
	if math.Abs(value) <= cutoff {
		return 0
	}
	if cutoff >= 1 {
		return 0
	}
	return (math.Abs(value) - cutoff) * Sign(value) / (1 - cutoff)
}

// Sign returns -1, 0 or 1 according to the sign of x.
func Sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(x, hi))
}

// Finite reports whether every value is neither NaN nor infinite.
func Finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Square is faster than math.Pow(n, 2).
func Square(n float64) float64 {
	return n * n
}
