// Package personality implements the affect-engine worker logic hosted
// by the personality worker subprocess (spec.md §4.17): Layer-0
// deterministic impulse rules, idle-state classification, duration/
// intensity caps, and personality-snapshot emission on top of
// internal/affect's pure math. Grounded in
// _examples/original_source/supervisor/workers/personality_worker.py.
package personality

import (
	"math"
	"math/rand"

	"github.com/0mdb/robot-buddy-supervisor/internal/affect"
	"github.com/0mdb/robot-buddy-supervisor/internal/mcu"
)

const (
	idleDrowsyS             = 300.0
	idleAsleepS             = 900.0
	idleSuppressAfterConvS  = 120.0
)

var durationCapsS = map[mcu.FaceMood]float64{
	mcu.MoodSad:       4.0,
	mcu.MoodScared:    2.0,
	mcu.MoodAngry:     2.0,
	mcu.MoodSurprised: 3.0,
}

var intensityCaps = map[mcu.FaceMood]float64{
	mcu.MoodSad:       0.70,
	mcu.MoodScared:    0.60,
	mcu.MoodAngry:     0.50,
	mcu.MoodSurprised: 0.80,
}

// Snapshot is the personality worker's output, one per tick
// (spec.md §4.17, mirrors state.PersonalitySnapshot's wire shape).
type Snapshot struct {
	Mood               mcu.FaceMood
	Intensity          float64
	Valence            float64
	Arousal            float64
	Layer              int
	ConversationActive bool
	IdleState          string
}

// Engine hosts one robot's continuous affect vector plus the Layer-0
// deterministic rule table (spec.md §4.17).
type Engine struct {
	trait   affect.TraitParameters
	rng     *rand.Rand
	vector  affect.Vector
	pending []affect.Impulse

	currentMood      mcu.FaceMood
	currentIntensity float64

	conversationActive bool
	idleTimerS         float64
	convEndedAgoS      float64 // +Inf until a conversation has ended once

	negativeMoodName  mcu.FaceMood
	negativeMoodTimerS float64
	hasNegativeMood    bool

	cooldowns map[string]float64 // rule id -> seconds-elapsed clock at last fire
	clockS    float64

	bootFired bool
}

// New returns an Engine configured from the five personality axis
// positions (energy, reactivity, initiative, vulnerability,
// predictability), each in [0,1].
func New(energy, reactivity, initiative, vulnerability, predictability float64, rng *rand.Rand) *Engine {
	trait := affect.ComputeTraitParameters(energy, reactivity, initiative, vulnerability, predictability)
	e := &Engine{
		trait:         trait,
		rng:           rng,
		currentMood:   mcu.MoodNeutral,
		convEndedAgoS: math.Inf(1),
		cooldowns:     make(map[string]float64),
	}
	e.vector = affect.Vector{Valence: trait.BaselineValence, Arousal: trait.BaselineArousal}
	return e
}

// FireBoot queues the one-time boot impulse (L0-01); a no-op after the
// first call.
func (e *Engine) FireBoot() {
	if e.bootFired {
		return
	}
	e.bootFired = true
	e.pending = append(e.pending, affect.Impulse{TargetValence: 0.35, TargetArousal: 0.40, Magnitude: 0.50, Source: "system_event"})
}

// Tick1Hz advances idle timers, evaluates idle rules, and runs one full
// process-and-emit cycle (spec.md §4.17; personality_worker.py
// _tick_1hz).
func (e *Engine) Tick1Hz(dtS float64) Snapshot {
	e.clockS += dtS
	e.idleTimerS += dtS
	if !math.IsInf(e.convEndedAgoS, 1) {
		e.convEndedAgoS += dtS
	}
	e.evaluateIdleRules()
	return e.processAndEmit(dtS)
}

// FastPath runs one process-and-emit cycle outside the 1 Hz cadence,
// for event-triggered immediate feedback (spec.md §4.17's "event-
// triggered fast path").
func (e *Engine) FastPath(dtS float64) Snapshot {
	e.clockS += dtS
	return e.processAndEmit(dtS)
}

func (e *Engine) processAndEmit(dtS float64) Snapshot {
	e.pending = affect.Update(&e.vector, e.trait, e.pending, dtS, e.rng)

	e.currentMood, e.currentIntensity = affect.ProjectMood(e.vector, e.currentMood)

	gated := affect.EnforceContextGate(e.currentMood, e.conversationActive)
	if gated != e.currentMood {
		e.currentMood = gated
		_, e.currentIntensity = affect.ProjectMood(e.vector, e.currentMood)
	}

	e.enforceDurationCap(dtS)

	if cap, ok := intensityCaps[e.currentMood]; ok && e.currentIntensity > cap {
		e.currentIntensity = cap
	}

	return Snapshot{
		Mood:               e.currentMood,
		Intensity:          e.currentIntensity,
		Valence:            e.vector.Valence,
		Arousal:            e.vector.Arousal,
		Layer:              0,
		ConversationActive: e.conversationActive,
		IdleState:          e.idleState(),
	}
}

func (e *Engine) evaluateIdleRules() {
	if e.conversationActive {
		return
	}
	if e.convEndedAgoS < idleSuppressAfterConvS {
		return
	}
	if e.idleTimerS > idleDrowsyS && e.checkCooldown("L0-11", 600.0) {
		e.pending = append(e.pending, affect.Impulse{TargetValence: 0.00, TargetArousal: -0.15, Magnitude: 0.30, Source: "idle_rule"})
	}
	if e.idleTimerS > idleAsleepS && e.checkCooldown("L0-12", 1800.0) {
		e.pending = append(e.pending, affect.Impulse{TargetValence: 0.00, TargetArousal: -0.30, Magnitude: 0.40, Source: "idle_rule"})
	}
}

func (e *Engine) idleState() string {
	switch {
	case e.idleTimerS >= idleAsleepS:
		return "asleep"
	case e.idleTimerS >= idleDrowsyS:
		return "drowsy"
	default:
		return "awake"
	}
}

func (e *Engine) enforceDurationCap(dtS float64) {
	cap, capped := durationCapsS[e.currentMood]
	if !capped {
		e.negativeMoodTimerS = 0
		e.hasNegativeMood = false
		return
	}
	if e.hasNegativeMood && e.negativeMoodName == e.currentMood {
		e.negativeMoodTimerS += dtS
	} else {
		e.negativeMoodName = e.currentMood
		e.negativeMoodTimerS = 0
		e.hasNegativeMood = true
	}

	if e.negativeMoodTimerS > cap {
		e.pending = append(e.pending, affect.Impulse{
			TargetValence: e.trait.BaselineValence,
			TargetArousal: e.trait.BaselineArousal,
			Magnitude:     0.40,
			Source:        "system_event",
		})
		e.negativeMoodTimerS = 0
		e.hasNegativeMood = false
	}
}

func (e *Engine) checkCooldown(ruleID string, cooldownS float64) bool {
	last, ok := e.cooldowns[ruleID]
	if ok && e.clockS-last < cooldownS {
		return false
	}
	e.cooldowns[ruleID] = e.clockS
	return true
}

// OnAIEmotion handles an L1 AI-provided emotion label, queuing its
// impulse and running the fast path (spec.md §4.17 last paragraph).
func (e *Engine) OnAIEmotion(label string, intensity float64) Snapshot {
	imp, ok := affect.EmotionImpulse(label, intensity)
	if !ok {
		return e.snapshotOnly()
	}
	e.pending = append(e.pending, imp)
	e.idleTimerS = 0
	return e.FastPath(0)
}

// OnConversationStarted handles L0-06/L0-13 (spec.md §4.17 table).
func (e *Engine) OnConversationStarted(trigger string) Snapshot {
	e.conversationActive = true
	e.idleTimerS = 0
	e.convEndedAgoS = math.Inf(1)
	e.pending = append(e.pending, affect.Impulse{TargetValence: 0.10, TargetArousal: 0.15, Magnitude: 0.30, Source: "system_event"})
	if trigger == "wake_word" && e.checkCooldown("L0-13", 10.0) {
		e.pending = append(e.pending, affect.Impulse{TargetValence: 0.10, TargetArousal: 0.15, Magnitude: 0.25, Source: "system_event"})
	}
	return e.FastPath(0)
}

// OnConversationEnded handles L0-07/L0-08 (spec.md §4.17 table).
func (e *Engine) OnConversationEnded() Snapshot {
	e.conversationActive = false
	e.convEndedAgoS = 0
	if e.vector.Valence > 0 {
		e.pending = append(e.pending, affect.Impulse{TargetValence: 0.20, TargetArousal: -0.05, Magnitude: 0.40, Source: "system_event"})
	} else {
		e.pending = append(e.pending, affect.Impulse{TargetValence: 0.05, TargetArousal: -0.10, Magnitude: 0.30, Source: "system_event"})
	}
	return e.FastPath(0)
}

// OnSystemEvent handles L0-01 through L0-05 (spec.md §4.17 table).
func (e *Engine) OnSystemEvent(event string) Snapshot {
	switch event {
	case "boot":
		e.FireBoot()
	case "low_battery":
		if e.checkCooldown("L0-02", 120.0) {
			e.pending = append(e.pending, affect.Impulse{TargetValence: -0.15, TargetArousal: 0.10, Magnitude: 0.30, Source: "system_event"})
		}
	case "critical_battery":
		e.pending = append(e.pending, affect.Impulse{TargetValence: 0.05, TargetArousal: -0.60, Magnitude: 0.40, Source: "system_event"})
	case "fault_raised":
		if e.checkCooldown("L0-04", 30.0) {
			e.pending = append(e.pending, affect.Impulse{TargetValence: -0.10, TargetArousal: 0.25, Magnitude: 0.40, Source: "system_event"})
		}
	case "fault_cleared":
		e.pending = append(e.pending, affect.Impulse{TargetValence: 0.15, TargetArousal: -0.10, Magnitude: 0.30, Source: "system_event"})
	default:
		return e.snapshotOnly()
	}
	return e.FastPath(0)
}

// OnSpeechActivity handles L0-09 (spec.md §4.17 table).
func (e *Engine) OnSpeechActivity(speaking bool) (Snapshot, bool) {
	if !speaking || !e.checkCooldown("L0-09", 5.0) {
		return Snapshot{}, false
	}
	e.pending = append(e.pending, affect.Impulse{TargetValence: 0.05, TargetArousal: 0.10, Magnitude: 0.20, Source: "speech_signal"})
	e.idleTimerS = 0
	return e.FastPath(0), true
}

// OnButtonPress handles L0-10 (spec.md §4.17 table).
func (e *Engine) OnButtonPress() (Snapshot, bool) {
	if !e.checkCooldown("L0-10", 5.0) {
		return Snapshot{}, false
	}
	e.pending = append(e.pending, affect.Impulse{TargetValence: 0.15, TargetArousal: 0.20, Magnitude: 0.40, Source: "system_event"})
	e.idleTimerS = 0
	return e.FastPath(0), true
}

// OnOverride injects an arbitrary debug impulse (personality.cmd.override_affect).
func (e *Engine) OnOverride(targetV, targetA, magnitude float64) Snapshot {
	e.pending = append(e.pending, affect.Impulse{TargetValence: targetV, TargetArousal: targetA, Magnitude: magnitude, Source: "override"})
	return e.FastPath(0)
}

func (e *Engine) snapshotOnly() Snapshot {
	return Snapshot{
		Mood: e.currentMood, Intensity: e.currentIntensity,
		Valence: e.vector.Valence, Arousal: e.vector.Arousal,
		Layer: 0, ConversationActive: e.conversationActive, IdleState: e.idleState(),
	}
}
