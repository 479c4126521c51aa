// Package conversation implements the conversation phase state machine
// (spec.md §4.12) and its transition choreographer (spec.md §4.14),
// grounded in _examples/original_source/supervisor/core/conv_state.py
// and conv_choreographer.py.
package conversation

import (
	"math/rand"

	"github.com/0mdb/robot-buddy-supervisor/internal/mcu"
)

// Phase is one conversation state (spec.md §4.12).
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseAttention
	PhaseListening
	PhasePTT
	PhaseThinking
	PhaseSpeaking
	PhaseError
	PhaseDone
)

const (
	attentionDurationMS = 400.0
	errorTotalDurationMS = 800.0
	doneFadeDurationMS  = 500.0

	backchannelNodMinMS       = 3000.0
	backchannelNodRangeMS     = 2000.0
	backchannelInterestOnsetMS = 10000.0
	backchannelInterestMaxScale = 1.05
	backchannelInterestRampMS   = 20000.0

	errorAversionDurationMS = 200.0
	errorAversionGazeX      = -0.3
)

// Gaze is a normalized (x, y) gaze target, or absent (no override).
type Gaze struct {
	X, Y  float64
	Valid bool
}

// MoodHint is a suggested (mood, intensity) pair, or absent.
type MoodHint struct {
	Mood      mcu.FaceMood
	Intensity float64
	Valid     bool
}

var convGaze = map[Phase]Gaze{
	PhaseIdle:      {},
	PhaseAttention: {X: 0, Y: 0, Valid: true},
	PhaseListening: {X: 0, Y: 0, Valid: true},
	PhasePTT:       {X: 0, Y: 0, Valid: true},
	PhaseThinking:  {X: 0.5, Y: -0.3, Valid: true},
	PhaseSpeaking:  {X: 0, Y: 0, Valid: true},
	PhaseError:     {},
	PhaseDone:      {},
}

// MoodCurious stands in for the original's dedicated THINKING mood,
// which internal/mcu.FaceMood has no entry for. (internal/affect's
// anchor table carries the thinking coordinates on MoodCalm instead.)
var convMoodHints = map[Phase]MoodHint{
	PhaseListening: {Mood: mcu.MoodNeutral, Intensity: 0.3, Valid: true},
	PhasePTT:       {Mood: mcu.MoodNeutral, Intensity: 0.3, Valid: true},
	PhaseThinking:  {Mood: mcu.MoodCurious, Intensity: 0.5, Valid: true},
}

const (
	flagsDefault           = int32(mcu.FlagIdleWander) | int32(mcu.FlagBlink) | int32(mcu.FlagSparkle) | int32(mcu.FlagBreathing) | int32(mcu.FlagSaccade) | int32(mcu.FlagTrack) | int32(mcu.FlagAfterglow)
	flagsNoWander          = int32(mcu.FlagBlink) | int32(mcu.FlagSparkle) | int32(mcu.FlagBreathing) | int32(mcu.FlagSaccade) | int32(mcu.FlagTrack) | int32(mcu.FlagAfterglow)
	flagsNoWanderNoSparkle = int32(mcu.FlagBlink) | int32(mcu.FlagBreathing) | int32(mcu.FlagSaccade) | int32(mcu.FlagTrack) | int32(mcu.FlagAfterglow)
	flagsNoChange          = -1
)

var convFlags = map[Phase]int32{
	PhaseIdle:      flagsDefault,
	PhaseAttention: flagsNoWander,
	PhaseListening: flagsNoWander,
	PhasePTT:       flagsNoWander,
	PhaseThinking:  flagsNoWanderNoSparkle,
	PhaseSpeaking:  flagsNoWander,
	PhaseError:     flagsNoChange,
	PhaseDone:      flagsDefault,
}

// Tracker is the conversation state machine (spec.md §4.12).
type Tracker struct {
	Phase         Phase
	PrevPhase     Phase
	TimerMS       float64
	SessionActive bool
	PTTHeld       bool

	nextNodMS     float64
	nodPending    bool
	InterestScale float64

	changed bool
	rng     *rand.Rand
}

// New returns a Tracker starting in PhaseIdle, seeded with rng for the
// backchannel nod jitter (injected for determinism in tests).
func New(rng *rand.Rand) *Tracker {
	t := &Tracker{Phase: PhaseIdle, PrevPhase: PhaseIdle, InterestScale: 1.0, rng: rng}
	t.nextNodMS = backchannelNodMinMS + t.rng.Float64()*backchannelNodRangeMS
	return t
}

// SetPhase transitions to a new phase, resetting the timer and
// backchannel schedule.
func (t *Tracker) SetPhase(next Phase) {
	if next == t.Phase {
		return
	}
	t.PrevPhase = t.Phase
	t.Phase = next
	t.TimerMS = 0
	t.changed = true

	switch next {
	case PhaseAttention:
		t.SessionActive = true
	case PhaseIdle:
		t.SessionActive = false
	}

	t.nextNodMS = backchannelNodMinMS + t.rng.Float64()*backchannelNodRangeMS
	t.nodPending = false
	t.InterestScale = 1.0
}

// ConsumeChanged returns true once per state transition.
func (t *Tracker) ConsumeChanged() bool {
	if t.changed {
		t.changed = false
		return true
	}
	return false
}

// Update advances the timer and applies auto-transitions (spec.md §4.12).
func (t *Tracker) Update(dtMS float64) {
	t.TimerMS += dtMS

	switch t.Phase {
	case PhaseAttention:
		if t.TimerMS >= attentionDurationMS {
			if t.PTTHeld {
				t.SetPhase(PhasePTT)
			} else {
				t.SetPhase(PhaseListening)
			}
		}
	case PhaseError:
		if t.TimerMS >= errorTotalDurationMS {
			if t.SessionActive {
				t.SetPhase(PhaseListening)
			} else {
				t.SetPhase(PhaseIdle)
			}
		}
	case PhaseDone:
		if t.TimerMS >= doneFadeDurationMS {
			t.SetPhase(PhaseIdle)
		}
	}

	if t.Phase == PhaseListening {
		if t.TimerMS >= t.nextNodMS {
			t.nodPending = true
			t.nextNodMS = t.TimerMS + backchannelNodMinMS + t.rng.Float64()*backchannelNodRangeMS
		}
		if t.TimerMS > backchannelInterestOnsetMS {
			frac := (t.TimerMS - backchannelInterestOnsetMS) / maxF(1.0, backchannelInterestRampMS)
			if frac > 1.0 {
				frac = 1.0
			}
			t.InterestScale = 1.0 + (backchannelInterestMaxScale-1.0)*frac
		}
	}
}

// GazeOverride returns the current gaze override, including the error
// micro-aversion window.
func (t *Tracker) GazeOverride() Gaze {
	if t.Phase == PhaseError && t.TimerMS < errorAversionDurationMS {
		return Gaze{X: errorAversionGazeX, Y: 0, Valid: true}
	}
	return convGaze[t.Phase]
}

// GazeForSend converts a normalized gaze override into the float space
// FaceClient.SendSetState expects (i8 = int(float*32); MCU divides by
// 127 and multiplies by MAX_GAZE=12, so float = normalized*127/32).
func (t *Tracker) GazeForSend() (float64, float64, bool) {
	g := t.GazeOverride()
	if !g.Valid {
		return 0, 0, false
	}
	const scale = 127.0 / 32.0
	return g.X * scale, g.Y * scale, true
}

// Flags returns the flag bitmask override for the current phase, or -1
// for no change.
func (t *Tracker) Flags() int32 {
	return convFlags[t.Phase]
}

// MoodHintFor returns the mood hint for the current phase, if any.
func (t *Tracker) MoodHintFor() MoodHint {
	return convMoodHints[t.Phase]
}

// ConsumeNod returns true once when a backchannel nod should fire.
func (t *Tracker) ConsumeNod() bool {
	if t.nodPending {
		t.nodPending = false
		return true
	}
	return false
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
