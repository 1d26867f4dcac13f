// Package inject provides test doubles whose methods can be overridden one at a time.
package inject

import (
	"context"

	"go.viam.com/swerve/components/swervemodule"
	"go.viam.com/swerve/kinematics"
)

// Actuator is an injected swervemodule.Actuator.
type Actuator struct {
	swervemodule.Actuator
	SetTargetFunc   func(ctx context.Context, speed, angle float64) error
	StopFunc        func(ctx context.Context) error
	PositionFunc    func(ctx context.Context) (kinematics.ModulePosition, error)
	StateFunc       func(ctx context.Context) (kinematics.ModuleState, error)
	SetIdleModeFunc func(ctx context.Context, mode swervemodule.IdleMode) error
	IdleModeFunc    func(ctx context.Context) (swervemodule.IdleMode, error)
}

// SetTarget calls the injected function or the real version.
func (a *Actuator) SetTarget(ctx context.Context, speed, angle float64) error {
	if a.SetTargetFunc == nil {
		return a.Actuator.SetTarget(ctx, speed, angle)
	}
	return a.SetTargetFunc(ctx, speed, angle)
}

// Stop calls the injected function or the real version.
func (a *Actuator) Stop(ctx context.Context) error {
	if a.StopFunc == nil {
		return a.Actuator.Stop(ctx)
	}
	return a.StopFunc(ctx)
}

// Position calls the injected function or the real version.
func (a *Actuator) Position(ctx context.Context) (kinematics.ModulePosition, error) {
	if a.PositionFunc == nil {
		return a.Actuator.Position(ctx)
	}
	return a.PositionFunc(ctx)
}

// State calls the injected function or the real version.
func (a *Actuator) State(ctx context.Context) (kinematics.ModuleState, error) {
	if a.StateFunc == nil {
		return a.Actuator.State(ctx)
	}
	return a.StateFunc(ctx)
}

// SetIdleMode calls the injected function or the real version.
func (a *Actuator) SetIdleMode(ctx context.Context, mode swervemodule.IdleMode) error {
	if a.SetIdleModeFunc == nil {
		return a.Actuator.SetIdleMode(ctx, mode)
	}
	return a.SetIdleModeFunc(ctx, mode)
}

// IdleMode calls the injected function or the real version.
func (a *Actuator) IdleMode(ctx context.Context) (swervemodule.IdleMode, error) {
	if a.IdleModeFunc == nil {
		return a.Actuator.IdleMode(ctx)
	}
	return a.IdleModeFunc(ctx)
}
