package modefsm

import (
	"testing"

	"github.com/0mdb/robot-buddy-supervisor/internal/state"
)

func TestBootToIdle(t *testing.T) {
	sm := New()
	sm.Update(false, 0)
	if sm.Mode() != state.Boot {
		t.Fatalf("expected BOOT while disconnected, got %v", sm.Mode())
	}
	sm.Update(true, 0)
	if sm.Mode() != state.Idle {
		t.Fatalf("expected IDLE after connect with no faults, got %v", sm.Mode())
	}
}

func TestDisconnectForcesError(t *testing.T) {
	sm := New()
	sm.Update(true, 0)
	sm.Update(false, 0)
	if sm.Mode() != state.Error {
		t.Fatalf("expected ERROR on disconnect, got %v", sm.Mode())
	}
}

func TestSevereFaultForcesError(t *testing.T) {
	sm := New()
	sm.Update(true, 0)
	sm.Update(true, state.FaultEstop)
	if sm.Mode() != state.Error {
		t.Fatalf("expected ERROR on ESTOP, got %v", sm.Mode())
	}
}

func TestRequestMotionModeRequiresIdle(t *testing.T) {
	sm := New()
	sm.Update(true, 0)
	if err := sm.RequestMode(state.Teleop, true, 0); err != nil {
		t.Fatalf("expected TELEOP request to succeed: %v", err)
	}
	if sm.Mode() != state.Teleop {
		t.Fatalf("expected TELEOP, got %v", sm.Mode())
	}
	if err := sm.RequestMode(state.Wander, true, 0); err == nil {
		t.Fatal("expected error requesting WANDER directly from TELEOP")
	}
}

func TestClearErrorRequiresNoSevereFault(t *testing.T) {
	sm := New()
	sm.Update(true, state.FaultEstop)
	if err := sm.ClearError(state.FaultEstop); err == nil {
		t.Fatal("expected ClearError to fail while ESTOP set")
	}
	if err := sm.ClearError(0); err != nil {
		t.Fatalf("expected ClearError to succeed once fault clear: %v", err)
	}
	if sm.Mode() != state.Idle {
		t.Fatalf("expected IDLE after ClearError, got %v", sm.Mode())
	}
}
