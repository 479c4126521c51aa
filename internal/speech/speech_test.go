package speech

import (
	"testing"

	"github.com/0mdb/robot-buddy-supervisor/internal/eventbus"
)

func TestArbiterAcceptsFirstIntent(t *testing.T) {
	a := NewArbiter()
	accepted, _, preempted := a.Submit(Intent{Text: "hi", Priority: 3})
	if !accepted || preempted {
		t.Fatalf("expected first intent accepted without preemption")
	}
	cur, ok := a.Current()
	if !ok || cur.Text != "hi" {
		t.Fatalf("expected current intent set, got %+v %v", cur, ok)
	}
}

func TestArbiterHigherPriorityPreempts(t *testing.T) {
	a := NewArbiter()
	a.Submit(Intent{Text: "low urgency", Priority: 3})
	accepted, prev, did := a.Submit(Intent{Text: "urgent", Priority: 1})
	if !accepted || !did {
		t.Fatalf("expected priority 1 to preempt priority 3")
	}
	if prev.Text != "low urgency" {
		t.Fatalf("expected preempted intent to be the prior one, got %+v", prev)
	}
	cur, _ := a.Current()
	if cur.Text != "urgent" {
		t.Fatalf("expected urgent now in flight, got %+v", cur)
	}
}

func TestArbiterEqualOrLowerPriorityDropped(t *testing.T) {
	a := NewArbiter()
	a.Submit(Intent{Text: "first", Priority: 2})
	accepted, _, did := a.Submit(Intent{Text: "second", Priority: 2})
	if accepted || did {
		t.Fatalf("expected equal-priority arrival dropped while speaking")
	}
	accepted, _, did = a.Submit(Intent{Text: "third", Priority: 5})
	if accepted || did {
		t.Fatalf("expected lower-priority arrival dropped while speaking")
	}
	cur, _ := a.Current()
	if cur.Text != "first" {
		t.Fatalf("expected original intent to remain, got %+v", cur)
	}
}

func TestArbiterFinishClearsChannel(t *testing.T) {
	a := NewArbiter()
	a.Submit(Intent{Text: "done soon", Priority: 2})
	a.Finish()
	if a.Speaking() {
		t.Fatal("expected channel idle after Finish")
	}
	accepted, _, _ := a.Submit(Intent{Text: "next", Priority: 5})
	if !accepted {
		t.Fatal("expected any priority accepted once channel is idle")
	}
}

func TestPolicyGeneratesBallAcquiredPhrase(t *testing.T) {
	p := NewPolicy()
	events := []eventbus.Event{{Type: "vision.ball_acquired", TMonoMS: 1000}}
	intent, drops := p.Generate(events, false, false, 1000)
	if intent == nil {
		t.Fatalf("expected intent generated, drops=%v", drops)
	}
	if intent.Priority != policyPriority {
		t.Fatalf("expected priority %d, got %d", policyPriority, intent.Priority)
	}
}

func TestPolicyCooldownBlocksRepeat(t *testing.T) {
	p := NewPolicy()
	events := []eventbus.Event{{Type: "fault.raised", TMonoMS: 0}}
	intent, _ := p.Generate(events, false, false, 0)
	if intent == nil {
		t.Fatal("expected first fault.raised to generate a phrase")
	}
	intent, drops := p.Generate(events, false, false, 100)
	if intent != nil {
		t.Fatal("expected second fault.raised within cooldown to be dropped")
	}
	found := false
	for _, d := range drops {
		if d == "policy_cooldown" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected policy_cooldown drop reason, got %v", drops)
	}
}

func TestPolicyFaceBusyDropsEvent(t *testing.T) {
	p := NewPolicy()
	events := []eventbus.Event{{Type: "vision.ball_acquired", TMonoMS: 0}}
	intent, drops := p.Generate(events, true, false, 0)
	if intent != nil {
		t.Fatal("expected no utterance while face is listening")
	}
	if len(drops) != 1 || drops[0] != "policy_face_busy" {
		t.Fatalf("expected policy_face_busy drop, got %v", drops)
	}
}

func TestPolicySkipsActionButtonClick(t *testing.T) {
	p := NewPolicy()
	events := []eventbus.Event{{Type: "face.button.click", Payload: map[string]any{"button": "action"}, TMonoMS: 0}}
	intent, drops := p.Generate(events, false, false, 0)
	if intent != nil || len(drops) != 0 {
		t.Fatalf("expected ACTION button click silently skipped, got intent=%+v drops=%v", intent, drops)
	}
}

func TestPolicyPhraseRotation(t *testing.T) {
	p := NewPolicy()
	seen := map[string]bool{}
	now := int64(0)
	for i := 0; i < 3; i++ {
		events := []eventbus.Event{{Type: "vision.ball_acquired", TMonoMS: now}}
		intent, _ := p.Generate(events, false, false, now)
		if intent == nil {
			t.Fatalf("expected phrase at iteration %d", i)
		}
		seen[intent.Text] = true
		now += 6000
	}
	if len(seen) < 2 {
		t.Fatalf("expected rotation through multiple distinct phrases, got %v", seen)
	}
}

func TestModeChangedKeyDistinguishesTargetMode(t *testing.T) {
	p := NewPolicy()
	events := []eventbus.Event{{Type: "mode.changed", Payload: map[string]any{"to": "WANDER"}, TMonoMS: 0}}
	intent, _ := p.Generate(events, false, false, 0)
	if intent == nil {
		t.Fatal("expected WANDER mode change to generate a phrase")
	}
	events2 := []eventbus.Event{{Type: "mode.changed", Payload: map[string]any{"to": "ERROR"}, TMonoMS: 0}}
	intent2, _ := p.Generate(events2, false, false, 0)
	if intent2 != nil {
		t.Fatal("expected mode change to ERROR to produce no phrase (unmapped key)")
	}
}
