// Package modefsm implements the BOOT->IDLE->{TELEOP,WANDER}->ERROR
// guard-gated state machine (spec.md §4.6), grounded in
// _examples/original_source/supervisor_v2/core/state_machine.py.
package modefsm

import (
	"errors"

	"github.com/0mdb/robot-buddy-supervisor/internal/state"
)

// ErrInvalidTransition is returned by RequestMode for a transition the
// guards disallow.
var ErrInvalidTransition = errors.New("modefsm: invalid transition")

// ErrSevereFault is returned by ClearError when a severe fault bit is
// still set.
var ErrSevereFault = errors.New("modefsm: severe fault still set")

// SM is the mode state machine, owning the current Mode.
type SM struct {
	mode state.Mode
}

// New returns an SM starting in BOOT.
func New() *SM {
	return &SM{mode: state.Boot}
}

// Mode returns the current mode.
func (s *SM) Mode() state.Mode { return s.mode }

// Update runs the automatic guard transitions (spec.md §4.6): forces
// ERROR on MCU disconnect or a severe fault, and advances BOOT->IDLE
// once the MCU is connected and fault-free.
func (s *SM) Update(mcuConnected bool, faults state.Fault) {
	if s.mode != state.Boot && !mcuConnected {
		s.mode = state.Error
		return
	}
	if faults&state.SevereFaults != 0 {
		s.mode = state.Error
		return
	}
	if s.mode == state.Boot && mcuConnected && faults == 0 {
		s.mode = state.Idle
	}
}

// RequestMode applies a user/planner-requested transition.
//
//   - target == current is accepted as a no-op.
//   - entering a motion mode requires current == IDLE, MCU connected, no faults.
//   - returning to IDLE requires current is a motion mode.
//   - leaving ERROR is only possible via ClearError.
func (s *SM) RequestMode(target state.Mode, mcuConnected bool, faults state.Fault) error {
	if target == s.mode {
		return nil
	}
	if s.mode == state.Error {
		return ErrInvalidTransition
	}
	if state.IsMotionMode(target) {
		if s.mode != state.Idle || !mcuConnected || faults != 0 {
			return ErrInvalidTransition
		}
		s.mode = target
		return nil
	}
	if target == state.Idle {
		if !state.IsMotionMode(s.mode) {
			return ErrInvalidTransition
		}
		s.mode = state.Idle
		return nil
	}
	return ErrInvalidTransition
}

// ClearError leaves ERROR, requiring no severe fault bits remain.
func (s *SM) ClearError(faults state.Fault) error {
	if s.mode != state.Error {
		return ErrInvalidTransition
	}
	if faults&state.SevereFaults != 0 {
		return ErrSevereFault
	}
	s.mode = state.Idle
	return nil
}
