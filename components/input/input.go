// Package input provides operator input devices such as joysticks and gamepads.
package input

import (
	"context"
	"math"
	"time"

	"go.viam.com/swerve/utils"
)

// Controller is a logical container of operator controls. It could be a pair of joysticks,
// a gamepad or a scripted replay.
type Controller interface {
	// Controls returns the controls provided by the controller.
	Controls(ctx context.Context) ([]Control, error)

	// Events returns the most recent event for each control, which should be its current state.
	Events(ctx context.Context) (map[Control]Event, error)

	// RegisterControlCallback registers a callback that fires on the given event types for a
	// control. A nil callback removes the registration.
	RegisterControlCallback(ctx context.Context, control Control, triggers []EventType, ctrlFunc ControlFunction) error
}

// ControlFunction is a callback passed to RegisterControlCallback.
type ControlFunction func(ctx context.Context, ev Event)

// EventType represents the type of input event.
type EventType string

// EventType list.
const (
	// Callbacks registered for this event will be called in ADDITION to other registered event callbacks.
	AllEvents EventType = "AllEvents"
	// Sent at controller initialization, and on reconnects.
	Connect EventType = "Connect"
	// If unplugged, or wireless/network times out.
	Disconnect EventType = "Disconnect"
	// Typical key press.
	ButtonPress EventType = "ButtonPress"
	// Key release.
	ButtonRelease EventType = "ButtonRelease"
	// Both up and down for convenience during registration, not typically emitted.
	ButtonChange EventType = "ButtonChange"
	// Absolute position is reported via Value, a la joysticks.
	PositionChangeAbs EventType = "PositionChangeAbs"
)

// Control identifies the input (specific Axis or Button) of a controller.
type Control string

// Controls used by the drive. The left stick translates, the right stick picks the center of
// rotation and its twist turns the robot.
const (
	// Axes.
	AbsoluteX  Control = "AbsoluteX"
	AbsoluteY  Control = "AbsoluteY"
	AbsoluteRX Control = "AbsoluteRX"
	AbsoluteRY Control = "AbsoluteRY"
	AbsoluteRZ Control = "AbsoluteRZ"

	// Buttons.
	ButtonLT     Control = "ButtonLT"
	ButtonRT     Control = "ButtonRT"
	ButtonSelect Control = "ButtonSelect"
	ButtonStart  Control = "ButtonStart"
	ButtonEStop  Control = "ButtonEStop"
)

// Event is passed to a registered ControlFunction or returned by Events.
type Event struct {
	Time    time.Time
	Event   EventType
	Control Control // Key or Axis
	Value   float64 // 0 or 1 for buttons, -1.0 to +1.0 for axes
}

// Axes is a snapshot of the five analog axes the drive reads, each in [-1, 1].
type Axes struct {
	LeftX, LeftY   float64
	RightX, RightY float64
	RightTwist     float64
}

// Sanitized replaces non-finite readings with zero and clamps the rest to [-1, 1].
func (a Axes) Sanitized() Axes {
	clean := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return utils.Clamp(v, -1, 1)
	}
	return Axes{
		LeftX:      clean(a.LeftX),
		LeftY:      clean(a.LeftY),
		RightX:     clean(a.RightX),
		RightY:     clean(a.RightY),
		RightTwist: clean(a.RightTwist),
	}
}

// ReadAxes samples the current position of every drive axis. Axes the controller has not
// reported yet read as centered.
func ReadAxes(ctx context.Context, c Controller) (Axes, error) {
	events, err := c.Events(ctx)
	if err != nil {
		return Axes{}, err
	}
	value := func(ctrl Control) float64 {
		if ev, ok := events[ctrl]; ok {
			return ev.Value
		}
		return 0
	}
	return Axes{
		LeftX:      value(AbsoluteX),
		LeftY:      value(AbsoluteY),
		RightX:     value(AbsoluteRX),
		RightY:     value(AbsoluteRY),
		RightTwist: value(AbsoluteRZ),
	}.Sanitized(), nil
}
