package control

import (
	"math"
	"time"

	"go.viam.com/swerve/utils"
)

// SlewState is the memory of a SlewRateLimiter between two calls.
type SlewState struct {
	Value    float64
	LastTime time.Time
}

// NewSlewState returns a limiter state starting at value at time now.
func NewSlewState(value float64, now time.Time) SlewState {
	return SlewState{Value: value, LastTime: now}
}

// SlewRateLimiter bounds how fast a signal can change, in units per second.
// Positive and negative rates may differ; a zero NegativeRate mirrors Rate.
type SlewRateLimiter struct {
	Rate         float64
	NegativeRate float64
}

// NewSlewRateLimiter returns a symmetric limiter.
func NewSlewRateLimiter(rate float64) SlewRateLimiter {
	return SlewRateLimiter{Rate: rate}
}

// Calculate steps the state towards input, limited by the time elapsed since the last call.
// A clock that goes backwards is treated as no elapsed time.
func (l SlewRateLimiter) Calculate(state SlewState, input float64, now time.Time) (float64, SlewState) {
	elapsed := now.Sub(state.LastTime).Seconds()
	if elapsed < 0 || state.LastTime.IsZero() {
		elapsed = 0
	}
	up := math.Abs(l.Rate)
	down := math.Abs(l.NegativeRate)
	if down == 0 {
		down = up
	}
	delta := utils.Clamp(input-state.Value, -down*elapsed, up*elapsed)
	next := SlewState{Value: state.Value + delta, LastTime: now}
	return next.Value, next
}
