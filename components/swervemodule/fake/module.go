// Package fake implements a simulated swerve module.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/swerve/components/swervemodule"
	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/utils"
)

var _ swervemodule.Actuator = &Module{}

// Module is a swerve module that reaches every target immediately and integrates wheel
// distance over the clock it was given.
type Module struct {
	Name   string
	mu     sync.Mutex
	clk    clock.Clock
	logger logging.Logger

	speed      float64
	angle      float64
	distance   float64
	lastUpdate time.Time
	idle       swervemodule.IdleMode
	stopped    bool

	// SetTargetCount is the number of SetTarget calls.
	SetTargetCount int
	// IdleModeChanges is the number of SetIdleMode calls that changed the mode.
	IdleModeChanges int
}

// NewModule returns a stopped, braking module pointing at angle.
func NewModule(name string, angle float64, clk clock.Clock, logger logging.Logger) *Module {
	return &Module{
		Name:       name,
		clk:        clk,
		logger:     logger,
		angle:      utils.WrapAngle(angle),
		lastUpdate: clk.Now(),
		stopped:    true,
	}
}

// integrate must be called with the lock held.
func (m *Module) integrate() {
	now := m.clk.Now()
	m.distance += m.speed * now.Sub(m.lastUpdate).Seconds()
	m.lastUpdate = now
}

// SetTarget sets the wheel speed and steering angle.
func (m *Module) SetTarget(ctx context.Context, speed, angle float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.integrate()
	m.speed = speed
	m.angle = utils.WrapAngle(angle)
	m.stopped = false
	m.SetTargetCount++
	return nil
}

// Stop zeroes the wheel speed and leaves the steering where it is.
func (m *Module) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.integrate()
	m.speed = 0
	m.stopped = true
	return nil
}

// IsStopped reports whether Stop was called after the last SetTarget.
func (m *Module) IsStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Position returns the integrated wheel distance and the steering angle.
func (m *Module) Position(ctx context.Context) (kinematics.ModulePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.integrate()
	return kinematics.ModulePosition{Distance: m.distance, Angle: m.angle}, nil
}

// State returns the wheel speed and steering angle.
func (m *Module) State(ctx context.Context) (kinematics.ModuleState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return kinematics.ModuleState{Speed: m.speed, Angle: m.angle}, nil
}

// SetIdleMode sets the idle mode.
func (m *Module) SetIdleMode(ctx context.Context, mode swervemodule.IdleMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idle != mode {
		m.IdleModeChanges++
		if m.logger != nil {
			m.logger.Debugf("%s idle mode %s -> %s", m.Name, m.idle, mode)
		}
	}
	m.idle = mode
	return nil
}

// IdleMode returns the idle mode.
func (m *Module) IdleMode(ctx context.Context) (swervemodule.IdleMode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idle, nil
}
