package router

import (
	"testing"

	"github.com/0mdb/robot-buddy-supervisor/internal/envelope"
	"github.com/0mdb/robot-buddy-supervisor/internal/plan"
	"github.com/0mdb/robot-buddy-supervisor/internal/state"
)

func newRouter() (*Router, *state.World) {
	w := state.NewWorld()
	return New(w, plan.NewScheduler(), plan.NewValidator(), nil), w
}

func TestRouteVisionSnapshot(t *testing.T) {
	r, w := newRouter()
	env := envelope.Envelope{Type: "vision.detection.snapshot", Payload: map[string]any{
		"clear_confidence": 0.8, "ball_confidence": 0.5, "ball_bearing_deg": 12.0, "fps": 15.0, "frame_seq": 42.0,
	}}
	r.Route("vision", env, 1000, 1_000_000)
	snap := w.Snapshot()
	if snap.ClearConfidence != 0.8 || snap.BallConfidence != 0.5 || snap.FrameSeq != 42 {
		t.Fatalf("unexpected world state: %+v", snap)
	}
}

func TestRouteTTSLifecycle(t *testing.T) {
	r, w := newRouter()
	r.Route("tts", envelope.Envelope{Type: "tts.event.started", Payload: map[string]any{}}, 0, 0)
	if !w.Snapshot().Speaking {
		t.Fatal("expected speaking=true after started")
	}
	r.Route("tts", envelope.Envelope{Type: "tts.event.finished", Payload: map[string]any{}}, 0, 0)
	if w.Snapshot().Speaking {
		t.Fatal("expected speaking=false after finished")
	}
}

func TestRouteAudioLinks(t *testing.T) {
	r, w := newRouter()
	r.Route("ear", envelope.Envelope{Type: "system.audio.link.up", Payload: map[string]any{"socket": "mic"}}, 0, 0)
	r.Route("tts", envelope.Envelope{Type: "system.audio.link.up", Payload: map[string]any{"socket": "spk"}}, 0, 0)
	if !w.BothAudioLinksUp() {
		t.Fatal("expected both links up")
	}
	r.Route("ear", envelope.Envelope{Type: "system.audio.link.down", Payload: map[string]any{"socket": "mic", "reason": "eof"}}, 0, 0)
	if w.BothAudioLinksUp() {
		t.Fatal("expected mic link down")
	}
}

func TestPlanDedupDropsDuplicate(t *testing.T) {
	r, w := newRouter()
	env := envelope.Envelope{Type: "ai.plan.received", Payload: map[string]any{
		"plan_id": "p1", "plan_seq": 1.0, "ttl_ms": 2000.0, "actions": []any{},
	}}
	r.Route("ai", env, 0, 0)
	r.Route("ai", env, 10, 10_000_000)
	if w.Snapshot().Plan.LastAcceptedSeq != 1 {
		t.Fatalf("expected first plan accepted, got %+v", w.Snapshot().Plan)
	}
	if r.scheduler.Snapshot().PlanDroppedDuplicate != 1 {
		t.Fatalf("expected duplicate drop, got %+v", r.scheduler.Snapshot())
	}
}

func TestPlanOutOfOrderDropped(t *testing.T) {
	r, w := newRouter()
	r.Route("ai", envelope.Envelope{Type: "ai.plan.received", Payload: map[string]any{
		"plan_id": "p1", "plan_seq": 5.0, "ttl_ms": 2000.0, "actions": []any{},
	}}, 0, 0)
	r.Route("ai", envelope.Envelope{Type: "ai.plan.received", Payload: map[string]any{
		"plan_id": "p2", "plan_seq": 3.0, "ttl_ms": 2000.0, "actions": []any{},
	}}, 10, 10_000_000)
	if w.Snapshot().Plan.LastAcceptedSeq != 5 {
		t.Fatalf("expected seq to stay at 5, got %+v", w.Snapshot().Plan)
	}
	if r.scheduler.Snapshot().PlanDroppedOutOfOrder != 1 {
		t.Fatalf("expected out-of-order drop, got %+v", r.scheduler.Snapshot())
	}
}

func TestPlanSchedulesValidActions(t *testing.T) {
	r, w := newRouter()
	r.Route("ai", envelope.Envelope{Type: "ai.plan.received", Payload: map[string]any{
		"plan_id": "p1", "plan_seq": 1.0, "ttl_ms": 2000.0,
		"actions": []any{map[string]any{"action": "skill", "name": "avoid_obstacle"}},
	}}, 0, 0)
	_ = w
	if r.scheduler.ActiveSkill != "avoid_obstacle" {
		t.Fatalf("expected scheduled skill to become active, got %s", r.scheduler.ActiveSkill)
	}
}
