// Package fake implements a simulated gyro.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/swerve/components/gyro"
	"go.viam.com/swerve/utils"
)

var _ gyro.Gyro = &Gyro{}

// Gyro integrates a settable yaw rate over its clock.
type Gyro struct {
	mu         sync.Mutex
	clk        clock.Clock
	yaw        float64 // degrees, unwrapped
	rate       float64 // degrees per second
	lastUpdate time.Time
	resets     int
}

// NewGyro returns a gyro reading zero and not rotating.
func NewGyro(clk clock.Clock) *Gyro {
	return &Gyro{clk: clk, lastUpdate: clk.Now()}
}

func (g *Gyro) integrate() {
	now := g.clk.Now()
	g.yaw += g.rate * now.Sub(g.lastUpdate).Seconds()
	g.lastUpdate = now
}

// Heading returns the yaw wrapped to (-180, 180].
func (g *Gyro) Heading(ctx context.Context) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.integrate()
	return utils.NormalizeDegrees(g.yaw), nil
}

// Reset zeroes the yaw.
func (g *Gyro) Reset(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.integrate()
	g.yaw = 0
	g.resets++
	return nil
}

// Resets returns how many times Reset was called.
func (g *Gyro) Resets() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resets
}

// SetYaw sets the yaw in degrees.
func (g *Gyro) SetYaw(degrees float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.integrate()
	g.yaw = degrees
}

// SetRate sets the yaw rate in degrees per second.
func (g *Gyro) SetRate(degreesPerSec float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.integrate()
	g.rate = degreesPerSec
}
