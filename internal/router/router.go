// Package router dispatches inbound worker envelopes to World mutations
// and runs core-authoritative plan acceptance (spec.md §4.11), grounded
// in _examples/original_source/supervisor/core/event_router.py.
package router

import (
	"log/slog"

	"github.com/0mdb/robot-buddy-supervisor/internal/envelope"
	"github.com/0mdb/robot-buddy-supervisor/internal/plan"
	"github.com/0mdb/robot-buddy-supervisor/internal/state"
)

const (
	planDedupWindow = 256
	planDedupTTLNS  = 60_000_000_000
)

type dedupEntry struct {
	planID string
	tNS    int64
}

// Router routes worker envelopes to world-state mutations.
type Router struct {
	world     *state.World
	scheduler *plan.Scheduler
	validator *plan.Validator
	logger    *slog.Logger

	seenPlans []dedupEntry
	seenIndex map[string]bool
}

// New returns a Router wired to the given World, scheduler, validator.
func New(world *state.World, scheduler *plan.Scheduler, validator *plan.Validator, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		world:     world,
		scheduler: scheduler,
		validator: validator,
		logger:    logger,
		seenIndex: make(map[string]bool),
	}
}

// Route dispatches one inbound envelope from workerName.
func (r *Router) Route(workerName string, env envelope.Envelope, nowMonoMS, nowMonoNS int64) {
	p := env.Payload

	switch env.Type {
	case "vision.detection.snapshot":
		r.world.Update(func(w *state.World) {
			w.ClearConfidence = floatOr(p, "clear_confidence", -1.0)
			w.BallConfidence = floatOr(p, "ball_confidence", 0.0)
			w.BallBearingDeg = floatOr(p, "ball_bearing_deg", 0.0)
			w.VisionFPS = floatOr(p, "fps", 0.0)
			w.VisionRxMonoMS = nowMonoMS
			w.FrameSeq = int64(floatOr(p, "frame_seq", 0))
		})

	case "vision.status.health":
		r.markHeartbeat("vision", nowMonoMS)

	case "tts.event.started":
		r.world.Update(func(w *state.World) {
			w.Speaking = true
			w.SpeechEnergy = 0
		})

	case "tts.event.energy":
		r.world.Update(func(w *state.World) {
			w.SpeechEnergy = uint8(floatOr(p, "energy", 0))
		})

	case "tts.event.finished", "tts.event.cancelled", "tts.event.error":
		r.world.Update(func(w *state.World) {
			w.Speaking = false
			w.SpeechEnergy = 0
		})

	case "tts.status.health":
		r.markHeartbeat("tts", nowMonoMS)

	case "ai.plan.received":
		r.handlePlan(env, nowMonoMS, nowMonoNS)

	case "ai.status.health":
		r.markHeartbeat("ai", nowMonoMS)

	case "ai.lifecycle.started":
		r.markHeartbeat("ai", nowMonoMS)

	case "ai.lifecycle.error":
		// planner connectivity tracked via worker heartbeat liveness, not a
		// dedicated flag: nothing further for the router to do here.

	case "ear.status.health":
		r.markHeartbeat("ear", nowMonoMS)

	case "system.audio.link.up":
		socket := stringOr(p, "socket", "")
		r.world.Update(func(w *state.World) {
			switch socket {
			case "mic":
				w.MicLinkUp = true
			case "spk":
				w.SpkLinkUp = true
			}
		})
		r.logger.Info("audio link up", "socket", socket, "worker", workerName)

	case "system.audio.link.down":
		socket := stringOr(p, "socket", "")
		r.world.Update(func(w *state.World) {
			switch socket {
			case "mic":
				w.MicLinkUp = false
			case "spk":
				w.SpkLinkUp = false
			}
		})
		r.logger.Warn("audio link down", "socket", socket, "worker", workerName, "reason", stringOr(p, "reason", "unknown"))

	case "personality.state.snapshot":
		r.world.Update(func(w *state.World) {
			w.Personality = state.PersonalitySnapshot{
				Mood:         stringOr(p, "mood", "neutral"),
				Intensity:    floatOr(p, "intensity", 0.0),
				Valence:      floatOr(p, "valence", 0.0),
				Arousal:      floatOr(p, "arousal", 0.0),
				Layer:        stringOr(p, "layer", ""),
				IdleState:    stringOr(p, "idle_state", "awake"),
				SessionTimeS: floatOr(p, "session_time_s", 0.0),
				DailyTimeS:   floatOr(p, "daily_time_s", 0.0),
				LimitReached: map[string]bool{
					"session": boolOr(p, "session_limit_reached", false),
					"daily":   boolOr(p, "daily_limit_reached", false),
				},
				RxMonoMS: nowMonoMS,
			}
		})

	case "personality.status.health":
		r.markHeartbeat("personality", nowMonoMS)
	}
}

func (r *Router) markHeartbeat(worker string, nowMonoMS int64) {
	r.world.Update(func(w *state.World) {
		w.Workers[worker] = state.WorkerStatus{Alive: true, LastHeartbeatMS: nowMonoMS}
	})
}

// handlePlan implements core-authoritative plan acceptance (spec.md §4.11).
func (r *Router) handlePlan(env envelope.Envelope, nowMonoMS, nowMonoNS int64) {
	p := env.Payload
	planID := stringOr(p, "plan_id", "")
	planSeq := int64(floatOr(p, "plan_seq", 0))
	ttlMS := int64(floatOr(p, "ttl_ms", 2000))

	r.pruneDedup(nowMonoNS)
	if r.seenIndex[planID] {
		r.scheduler.NoteDuplicateDropped()
		return
	}
	r.seenPlans = append(r.seenPlans, dedupEntry{planID: planID, tNS: nowMonoNS})
	r.seenIndex[planID] = true

	snap := r.world.Snapshot()
	if planSeq <= snap.Plan.LastAcceptedSeq {
		r.scheduler.NoteOutOfOrderDropped()
		return
	}

	rawActions := rawActionsFrom(p["actions"])
	validated := r.validator.Validate(rawActions, ttlMS)
	r.scheduler.SchedulePlan(validated, nowMonoMS, nowMonoMS)

	r.world.Update(func(w *state.World) {
		w.Plan.LastAcceptedSeq = planSeq
		w.Plan.LastPlanMonoMS = nowMonoMS
	})
}

func (r *Router) pruneDedup(nowNS int64) {
	cutoff := nowNS - planDedupTTLNS
	i := 0
	for i < len(r.seenPlans) && r.seenPlans[i].tNS <= cutoff {
		delete(r.seenIndex, r.seenPlans[i].planID)
		i++
	}
	r.seenPlans = r.seenPlans[i:]

	for len(r.seenPlans) > planDedupWindow {
		delete(r.seenIndex, r.seenPlans[0].planID)
		r.seenPlans = r.seenPlans[1:]
	}
}

func rawActionsFrom(v any) []plan.RawAction {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]plan.RawAction, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			out = append(out, plan.RawAction{Action: "\x00invalid"})
			continue
		}
		ra := plan.RawAction{
			Action: stringOr(m, "action", ""),
			Text:   stringOr(m, "text", ""),
			Name:   stringOr(m, "name", ""),
		}
		if iv, ok := m["intensity"]; ok {
			if f, ok := iv.(float64); ok {
				ra.Intensity = f
				ra.HasIntensity = true
			}
		}
		out = append(out, ra)
	}
	return out
}

func floatOr(m map[string]any, key string, def float64) float64 {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return def
}

func stringOr(m map[string]any, key, def string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func boolOr(m map[string]any, key string, def bool) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}
