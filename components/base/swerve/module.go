package swerve

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/swerve/components/swervemodule"
	"go.viam.com/swerve/config"
	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/utils"
)

// calibratedModule hides the mounting offset and drive inversion of one module. Everything
// above it works in chassis angles.
type calibratedModule struct {
	index    kinematics.ModuleIndex
	actuator swervemodule.Actuator
	offset   float64
	inverted bool
}

func newCalibratedModule(
	index kinematics.ModuleIndex,
	actuator swervemodule.Actuator,
	cfg config.ModuleConfig,
) *calibratedModule {
	return &calibratedModule{
		index:    index,
		actuator: actuator,
		offset:   cfg.AngleOffset,
		inverted: cfg.Inverted,
	}
}

func (m *calibratedModule) driveSign() float64 {
	if m.inverted {
		return -1
	}
	return 1
}

func (m *calibratedModule) state(ctx context.Context) (kinematics.ModuleState, error) {
	raw, err := m.actuator.State(ctx)
	if err != nil {
		return kinematics.ModuleState{}, errors.Wrapf(err, "reading %s state", m.index)
	}
	return kinematics.ModuleState{
		Speed: m.driveSign() * raw.Speed,
		Angle: utils.WrapAngle(raw.Angle - m.offset),
	}, nil
}

func (m *calibratedModule) position(ctx context.Context) (kinematics.ModulePosition, error) {
	raw, err := m.actuator.Position(ctx)
	if err != nil {
		return kinematics.ModulePosition{}, errors.Wrapf(err, "reading %s position", m.index)
	}
	return kinematics.ModulePosition{
		Distance: m.driveSign() * raw.Distance,
		Angle:    utils.WrapAngle(raw.Angle - m.offset),
	}, nil
}

// setDesiredState steers along the shortest path and then adds the mounting offset. A module
// asked for zero speed keeps its current steering angle.
func (m *calibratedModule) setDesiredState(ctx context.Context, desired kinematics.ModuleState) error {
	current, err := m.state(ctx)
	if err != nil {
		return err
	}
	if desired.Speed == 0 {
		desired.Angle = current.Angle
	}
	target := kinematics.Optimize(desired, current.Angle)
	raw := utils.WrapAngle(target.Angle + m.offset)
	if err := m.actuator.SetTarget(ctx, m.driveSign()*target.Speed, raw); err != nil {
		return errors.Wrapf(err, "commanding %s", m.index)
	}
	return nil
}

func (m *calibratedModule) stop(ctx context.Context) error {
	return errors.Wrapf(m.actuator.Stop(ctx), "stopping %s", m.index)
}

// ensureIdleMode reports whether the mode had to change.
func (m *calibratedModule) ensureIdleMode(ctx context.Context, mode swervemodule.IdleMode) (bool, error) {
	current, err := m.actuator.IdleMode(ctx)
	if err != nil {
		return false, errors.Wrapf(err, "reading %s idle mode", m.index)
	}
	if current == mode {
		return false, nil
	}
	if err := m.actuator.SetIdleMode(ctx, mode); err != nil {
		return false, errors.Wrapf(err, "setting %s idle mode", m.index)
	}
	return true, nil
}
