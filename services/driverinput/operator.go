package driverinput

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/swerve/components/input"
	"go.viam.com/swerve/logging"
)

// Button bindings.
const (
	SlowModeButton     = input.ButtonLT
	ResetHeadingButton = input.ButtonSelect
)

// Operator tracks the driver's controller. Button callbacks only set flags; the control loop
// drains them once per cycle so no drive state is touched from the controller's goroutine.
type Operator struct {
	controller input.Controller
	logger     logging.Logger

	mode         atomic.Int32
	resetPending atomic.Bool
	connected    atomic.Bool

	registered []input.Control
}

// NewOperator registers button callbacks on controller.
func NewOperator(ctx context.Context, controller input.Controller, logger logging.Logger) (*Operator, error) {
	op := &Operator{controller: controller, logger: logger}
	op.connected.Store(true)

	controls, err := controller.Controls(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing operator controls")
	}
	has := make(map[input.Control]bool, len(controls))
	for _, c := range controls {
		has[c] = true
	}

	bind := func(ctrl input.Control, triggers []input.EventType, f input.ControlFunction) error {
		if !has[ctrl] {
			logger.Debugw("controller lacks control, binding skipped", "control", ctrl)
			return nil
		}
		if err := controller.RegisterControlCallback(ctx, ctrl, triggers, f); err != nil {
			return errors.Wrapf(err, "registering %s", ctrl)
		}
		op.registered = append(op.registered, ctrl)
		return nil
	}

	if err := bind(SlowModeButton, []input.EventType{input.ButtonPress}, func(ctx context.Context, ev input.Event) {
		mode := op.ToggleMode()
		logger.Infow("speed mode changed", "mode", mode)
	}); err != nil {
		return nil, err
	}
	if err := bind(ResetHeadingButton, []input.EventType{input.ButtonPress}, func(ctx context.Context, ev input.Event) {
		op.resetPending.Store(true)
	}); err != nil {
		return nil, op.closeWith(ctx, err)
	}
	if err := bind(input.AbsoluteY, []input.EventType{input.Connect, input.Disconnect}, func(ctx context.Context, ev input.Event) {
		connected := ev.Event == input.Connect
		if op.connected.Swap(connected) != connected {
			logger.Infow("operator controller connection changed", "connected", connected)
		}
	}); err != nil {
		return nil, op.closeWith(ctx, err)
	}
	return op, nil
}

// Mode returns the current speed mode.
func (op *Operator) Mode() SpeedMode {
	return SpeedMode(op.mode.Load())
}

// SetMode sets the speed mode.
func (op *Operator) SetMode(mode SpeedMode) {
	op.mode.Store(int32(mode))
}

// ToggleMode flips between normal and slow and returns the new mode.
func (op *Operator) ToggleMode() SpeedMode {
	for {
		old := op.mode.Load()
		next := int32(Slow)
		if SpeedMode(old) == Slow {
			next = int32(Normal)
		}
		if op.mode.CompareAndSwap(old, next) {
			return SpeedMode(next)
		}
	}
}

// TakeHeadingReset reports whether a heading reset was requested since the last call.
func (op *Operator) TakeHeadingReset() bool {
	return op.resetPending.Swap(false)
}

// Connected reports whether the controller was last seen connected.
func (op *Operator) Connected() bool {
	return op.connected.Load()
}

// Axes samples the drive axes.
func (op *Operator) Axes(ctx context.Context) (input.Axes, error) {
	return input.ReadAxes(ctx, op.controller)
}

// Close removes every callback the operator registered.
func (op *Operator) Close(ctx context.Context) error {
	return op.closeWith(ctx, nil)
}

func (op *Operator) closeWith(ctx context.Context, err error) error {
	for _, ctrl := range op.registered {
		err = multierr.Append(err, op.controller.RegisterControlCallback(ctx, ctrl, nil, nil))
	}
	op.registered = nil
	return err
}
