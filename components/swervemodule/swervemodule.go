// Package swervemodule defines the actuator interface of a single swerve module: a drive
// motor under velocity control and a steering motor under position control.
package swervemodule

import (
	"context"

	"go.viam.com/swerve/kinematics"
)

// IdleMode is what the drive motor does when it is not commanded.
type IdleMode int

// Idle modes.
const (
	Brake IdleMode = iota
	Coast
)

func (m IdleMode) String() string {
	switch m {
	case Brake:
		return "brake"
	case Coast:
		return "coast"
	default:
		return "unknown"
	}
}

// Actuator drives one module. Angles are raw actuator angles in radians, before any
// calibration offset is removed; speeds are in m/s and distances in meters.
type Actuator interface {
	// SetTarget commands a wheel speed and steering angle.
	SetTarget(ctx context.Context, speed, angle float64) error

	// Stop releases the drive and steering motors.
	Stop(ctx context.Context) error

	// Position returns the distance the wheel has rolled and the steering angle.
	Position(ctx context.Context) (kinematics.ModulePosition, error)

	// State returns the measured wheel speed and steering angle.
	State(ctx context.Context) (kinematics.ModuleState, error)

	// SetIdleMode sets the drive motor's idle behavior.
	SetIdleMode(ctx context.Context, mode IdleMode) error

	// IdleMode returns the drive motor's idle behavior.
	IdleMode(ctx context.Context) (IdleMode, error)
}
