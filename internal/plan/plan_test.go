package plan

import "testing"

func TestValidateDropsUnknownAction(t *testing.T) {
	v := NewValidator()
	out := v.Validate([]RawAction{{Action: "dance"}}, 1000)
	if len(out.Actions) != 0 || out.DroppedActions != 1 {
		t.Fatalf("expected unknown action dropped, got %+v", out)
	}
}

func TestValidateSayTruncates(t *testing.T) {
	v := NewValidator()
	longText := make([]byte, 300)
	for i := range longText {
		longText[i] = 'x'
	}
	out := v.Validate([]RawAction{{Action: "SAY", Text: string(longText)}}, 1000)
	if len(out.Actions) != 1 || len(out.Actions[0].Text) != 200 {
		t.Fatalf("expected say text truncated to 200, got len=%d", len(out.Actions[0].Text))
	}
}

func TestValidateEmoteClampsIntensity(t *testing.T) {
	v := NewValidator()
	out := v.Validate([]RawAction{{Action: "emote", Name: "happy", Intensity: 5, HasIntensity: true}}, 1000)
	if out.Actions[0].Intensity != 1.0 {
		t.Fatalf("expected intensity clamped to 1.0, got %v", out.Actions[0].Intensity)
	}
}

func TestValidateSkillRejectsUnknownName(t *testing.T) {
	v := NewValidator()
	out := v.Validate([]RawAction{{Action: "skill", Name: "backflip"}}, 1000)
	if len(out.Actions) != 0 || out.DroppedActions != 1 {
		t.Fatalf("expected unknown skill dropped, got %+v", out)
	}
}

func TestValidateTTLClamped(t *testing.T) {
	v := NewValidator()
	out := v.Validate(nil, 100)
	if out.TTLMS != minTTLMS {
		t.Fatalf("expected ttl clamped to min, got %d", out.TTLMS)
	}
	out = v.Validate(nil, 100000)
	if out.TTLMS != maxTTLMS {
		t.Fatalf("expected ttl clamped to max, got %d", out.TTLMS)
	}
	out = v.Validate(nil, 0)
	if out.TTLMS != maxTTLMS {
		t.Fatalf("expected invalid ttl to default to max, got %d", out.TTLMS)
	}
}

func TestSchedulerDropsStalePlan(t *testing.T) {
	s := NewScheduler()
	v := Validated{Actions: []Action{{Kind: "say", Text: "hi"}}, TTLMS: 500}
	s.SchedulePlan(v, 10000, 0)
	if s.Snapshot().PlanDroppedStale != 1 {
		t.Fatalf("expected stale drop, got %+v", s.Snapshot())
	}
}

func TestSchedulerSkillSetsActiveImmediately(t *testing.T) {
	s := NewScheduler()
	v := Validated{Actions: []Action{{Kind: "skill", Name: "avoid_obstacle"}}, TTLMS: 5000}
	s.SchedulePlan(v, 0, 0)
	if s.ActiveSkill != "avoid_obstacle" {
		t.Fatalf("expected active skill set, got %s", s.ActiveSkill)
	}
	if s.Snapshot().QueueDepth != 0 {
		t.Fatal("skill actions must not be queued")
	}
}

func TestSchedulerCooldownByType(t *testing.T) {
	s := NewScheduler()
	v := Validated{Actions: []Action{{Kind: "say", Text: "a"}}, TTLMS: 5000}
	s.SchedulePlan(v, 0, 0)
	v2 := Validated{Actions: []Action{{Kind: "say", Text: "b"}}, TTLMS: 5000}
	s.SchedulePlan(v2, 100, 100) // within 3000ms type cooldown
	if s.Snapshot().PlanDroppedCooldown != 1 {
		t.Fatalf("expected type cooldown drop, got %+v", s.Snapshot())
	}
}

func TestPopDueActionsRespectsFaceLocked(t *testing.T) {
	s := NewScheduler()
	v := Validated{Actions: []Action{{Kind: "emote", Name: "happy"}}, TTLMS: 5000}
	s.SchedulePlan(v, 0, 0)
	due := s.PopDueActions(100, true)
	if len(due) != 0 {
		t.Fatalf("expected emote dropped while face locked, got %+v", due)
	}
	if s.Snapshot().PlanDroppedCooldown != 1 {
		t.Fatalf("expected drop counted, got %+v", s.Snapshot())
	}
}

func TestPopDueActionsDropsExpired(t *testing.T) {
	s := NewScheduler()
	v := Validated{Actions: []Action{{Kind: "gesture", Name: "wave"}}, TTLMS: 500}
	s.SchedulePlan(v, 0, 0)
	due := s.PopDueActions(10000, false)
	if len(due) != 0 {
		t.Fatalf("expected expired gesture dropped, got %+v", due)
	}
	if s.Snapshot().PlanDroppedStale != 1 {
		t.Fatalf("expected stale drop counted, got %+v", s.Snapshot())
	}
}
