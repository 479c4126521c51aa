package conversation

import (
	"math/rand"
	"testing"

	"github.com/0mdb/robot-buddy-supervisor/internal/mcu"
)

func TestAttentionAutoTransitionsToListening(t *testing.T) {
	tr := New(rand.New(rand.NewSource(1)))
	tr.SetPhase(PhaseAttention)
	tr.Update(399)
	if tr.Phase != PhaseAttention {
		t.Fatalf("expected still ATTENTION, got %v", tr.Phase)
	}
	tr.Update(2)
	if tr.Phase != PhaseListening {
		t.Fatalf("expected LISTENING after 400ms, got %v", tr.Phase)
	}
}

func TestAttentionGoesToPTTWhenHeld(t *testing.T) {
	tr := New(rand.New(rand.NewSource(1)))
	tr.PTTHeld = true
	tr.SetPhase(PhaseAttention)
	tr.Update(401)
	if tr.Phase != PhasePTT {
		t.Fatalf("expected PTT, got %v", tr.Phase)
	}
}

func TestErrorFallsBackBySessionState(t *testing.T) {
	tr := New(rand.New(rand.NewSource(1)))
	tr.SetPhase(PhaseAttention) // sets session_active = true
	tr.SetPhase(PhaseError)
	tr.Update(801)
	if tr.Phase != PhaseListening {
		t.Fatalf("expected LISTENING with active session, got %v", tr.Phase)
	}

	tr2 := New(rand.New(rand.NewSource(1)))
	tr2.SetPhase(PhaseError)
	tr2.Update(801)
	if tr2.Phase != PhaseIdle {
		t.Fatalf("expected IDLE without active session, got %v", tr2.Phase)
	}
}

func TestDoneReturnsToIdle(t *testing.T) {
	tr := New(rand.New(rand.NewSource(1)))
	tr.SetPhase(PhaseDone)
	tr.Update(500)
	if tr.Phase != PhaseIdle {
		t.Fatalf("expected IDLE, got %v", tr.Phase)
	}
}

func TestErrorMicroAversionGaze(t *testing.T) {
	tr := New(rand.New(rand.NewSource(1)))
	tr.SetPhase(PhaseError)
	g := tr.GazeOverride()
	if !g.Valid || g.X != -0.3 {
		t.Fatalf("expected micro-aversion gaze, got %+v", g)
	}
	tr.Update(250)
	g = tr.GazeOverride()
	if g.Valid {
		t.Fatalf("expected no gaze override after aversion window, got %+v", g)
	}
}

func TestListeningFlagsDisableWander(t *testing.T) {
	tr := New(rand.New(rand.NewSource(1)))
	tr.SetPhase(PhaseListening)
	if tr.Flags()&int32(mcu.FlagIdleWander) != 0 {
		t.Fatal("expected IDLE_WANDER disabled during LISTENING")
	}
}

func TestChoreographerListeningToThinkingRamp(t *testing.T) {
	c := NewChoreographer()
	c.OnTransition(PhaseListening, PhaseThinking)
	if !c.Active() {
		t.Fatal("expected active immediately after transition load")
	}
	c.Update(300)
	if c.Active() {
		t.Fatal("expected inactive after ramp completes")
	}
}

func TestChoreographerThinkingToSpeakingFiresBlink(t *testing.T) {
	c := NewChoreographer()
	c.OnTransition(PhaseThinking, PhaseSpeaking)
	fired := c.Update(0)
	if len(fired) != 1 || fired[0].Kind != ActionGesture {
		t.Fatalf("expected blink gesture fired at t=0, got %+v", fired)
	}
	if !c.HasBlink() {
		t.Fatal("expected HasBlink true")
	}
}

func TestChoreographerSpeakingToDoneSuppressesMood(t *testing.T) {
	c := NewChoreographer()
	c.OnTransition(PhaseSpeaking, PhaseDone)
	if !c.SuppressMoodPipeline() {
		t.Fatal("expected mood pipeline suppressed immediately")
	}
	c.Update(501)
	if c.SuppressMoodPipeline() {
		t.Fatal("expected suppression to expire after 500ms")
	}
}
