// Package match tracks which phase of a match the robot is in.
package match

import (
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// Phase is the part of the match that decides who commands the drive.
type Phase int32

// Match phases.
const (
	Disabled Phase = iota
	Autonomous
	Teleop
)

func (p Phase) String() string {
	switch p {
	case Disabled:
		return "disabled"
	case Autonomous:
		return "autonomous"
	case Teleop:
		return "teleop"
	default:
		return "unknown"
	}
}

// ParsePhase parses the name of a phase.
func ParsePhase(s string) (Phase, error) {
	for _, p := range []Phase{Disabled, Autonomous, Teleop} {
		if p.String() == s {
			return p, nil
		}
	}
	return Disabled, errors.Errorf("unknown match phase %q", s)
}

// State reports the current phase.
type State interface {
	Phase() Phase
}

// Manual is a State whose phase is set by hand, as a field management system or a simulator
// would.
type Manual struct {
	phase atomic.Int32
}

// NewManual returns a Manual starting in the given phase.
func NewManual(phase Phase) *Manual {
	m := &Manual{}
	m.phase.Store(int32(phase))
	return m
}

// Phase returns the current phase.
func (m *Manual) Phase() Phase {
	return Phase(m.phase.Load())
}

// SetPhase changes the phase.
func (m *Manual) SetPhase(phase Phase) {
	m.phase.Store(int32(phase))
}
