package canmodule

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.einride.tech/can"

	"go.viam.com/swerve/components/swervemodule"
	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/logging"
)

// Transmitter sends frames onto the bus.
type Transmitter interface {
	TransmitFrame(ctx context.Context, frame can.Frame) error
}

var _ swervemodule.Actuator = &Module{}

// Module is a swerve module reached over CAN. Measured state comes from the status and
// odometry frames passed to HandleFrame.
type Module struct {
	driveID, turnID int
	tx              Transmitter
	logger          logging.Logger

	mu       sync.Mutex
	speed    float64
	angle    float64
	distance float64
	idle     swervemodule.IdleMode
	heard    bool
}

// New returns a module addressed by its drive and steering controller ids.
func New(tx Transmitter, driveID, turnID int, logger logging.Logger) (*Module, error) {
	if err := validateDeviceID(driveID); err != nil {
		return nil, errors.Wrap(err, "drive controller")
	}
	if err := validateDeviceID(turnID); err != nil {
		return nil, errors.Wrap(err, "turn controller")
	}
	return &Module{driveID: driveID, turnID: turnID, tx: tx, logger: logger}, nil
}

// SetTarget sends a command frame.
func (m *Module) SetTarget(ctx context.Context, speed, angle float64) error {
	if err := m.tx.TransmitFrame(ctx, encodeCommand(m.turnID, speed, angle)); err != nil {
		return errors.Wrapf(err, "cannot command module %d/%d", m.driveID, m.turnID)
	}
	return nil
}

// Stop sends a stop frame to the drive controller.
func (m *Module) Stop(ctx context.Context) error {
	if err := m.tx.TransmitFrame(ctx, encodeControl(m.driveID, opStop)); err != nil {
		return errors.Wrapf(err, "cannot stop module %d/%d", m.driveID, m.turnID)
	}
	return nil
}

// SetIdleMode sends the idle mode to the drive controller. The reported mode follows once the
// controller acknowledges it in its odometry frame.
func (m *Module) SetIdleMode(ctx context.Context, mode swervemodule.IdleMode) error {
	if err := m.tx.TransmitFrame(ctx, encodeIdleMode(m.driveID, mode)); err != nil {
		return errors.Wrapf(err, "cannot set idle mode of module %d/%d", m.driveID, m.turnID)
	}
	m.mu.Lock()
	m.idle = mode
	m.mu.Unlock()
	return nil
}

// IdleMode returns the last known idle mode.
func (m *Module) IdleMode(ctx context.Context) (swervemodule.IdleMode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idle, nil
}

// Position returns the last reported wheel distance and steering angle.
func (m *Module) Position(ctx context.Context) (kinematics.ModulePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return kinematics.ModulePosition{Distance: m.distance, Angle: m.angle}, nil
}

// State returns the last reported wheel speed and steering angle.
func (m *Module) State(ctx context.Context) (kinematics.ModuleState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return kinematics.ModuleState{Speed: m.speed, Angle: m.angle}, nil
}

// Heard reports whether any status has been received from the module.
func (m *Module) Heard() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heard
}

// HandleFrame consumes a frame addressed to this module and reports whether it was.
func (m *Module) HandleFrame(f can.Frame) bool {
	if f.IsExtended || f.IsRemote {
		return false
	}
	switch f.ID {
	case uint32(statusBase + m.turnID):
		speed, angle := decodeStatus(f)
		m.mu.Lock()
		m.speed, m.angle, m.heard = speed, angle, true
		m.mu.Unlock()
		return true
	case uint32(odometryBase + m.driveID):
		distance, mode := decodeOdometry(f)
		m.mu.Lock()
		m.distance, m.heard = distance, true
		if mode != m.idle {
			m.logger.Debugw("idle mode reported by controller", "drive_id", m.driveID, "mode", mode.String())
		}
		m.idle = mode
		m.mu.Unlock()
		return true
	default:
		return false
	}
}
