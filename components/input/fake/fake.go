// Package fake implements a scripted input controller.
package fake

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/swerve/components/input"
)

type callback struct {
	triggers []input.EventType
	ctrlFunc input.ControlFunction
}

// InputController is a fake input controller whose state is set by TriggerEvent.
type InputController struct {
	mu        sync.Mutex
	controls  []input.Control
	events    map[input.Control]input.Event
	callbacks map[input.Control]callback
}

// NewInputController returns a fake controller providing the given controls.
func NewInputController(controls ...input.Control) *InputController {
	return &InputController{
		controls:  controls,
		events:    map[input.Control]input.Event{},
		callbacks: map[input.Control]callback{},
	}
}

// Controls lists the controller's controls.
func (c *InputController) Controls(ctx context.Context) ([]input.Control, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]input.Control, len(c.controls))
	copy(out, c.controls)
	return out, nil
}

// Events returns the last event of each control.
func (c *InputController) Events(ctx context.Context) (map[input.Control]input.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[input.Control]input.Event, len(c.events))
	for k, v := range c.events {
		out[k] = v
	}
	return out, nil
}

// RegisterControlCallback registers or, with a nil function, removes a callback.
func (c *InputController) RegisterControlCallback(
	ctx context.Context,
	control input.Control,
	triggers []input.EventType,
	ctrlFunc input.ControlFunction,
) error {
	if !c.has(control) {
		return errors.Errorf("fake controller has no control %q", control)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctrlFunc == nil {
		delete(c.callbacks, control)
		return nil
	}
	c.callbacks[control] = callback{triggers: triggers, ctrlFunc: ctrlFunc}
	return nil
}

// TriggerEvent records the event as the control's current state and runs any matching callback
// on the caller's goroutine.
func (c *InputController) TriggerEvent(ctx context.Context, event input.Event) error {
	if !c.has(event.Control) {
		return errors.Errorf("fake controller has no control %q", event.Control)
	}
	c.mu.Lock()
	c.events[event.Control] = event
	cb, ok := c.callbacks[event.Control]
	c.mu.Unlock()

	if ok && matches(cb.triggers, event.Event) {
		cb.ctrlFunc(ctx, event)
	}
	return nil
}

func (c *InputController) has(control input.Control) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ctrl := range c.controls {
		if ctrl == control {
			return true
		}
	}
	return false
}

func matches(triggers []input.EventType, got input.EventType) bool {
	for _, t := range triggers {
		switch {
		case t == got, t == input.AllEvents:
			return true
		case t == input.ButtonChange && (got == input.ButtonPress || got == input.ButtonRelease):
			return true
		}
	}
	return false
}
