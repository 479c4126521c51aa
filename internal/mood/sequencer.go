// Package mood implements the 4-phase mood crossfade choreography
// (spec.md §4.13), grounded in
// _examples/original_source/supervisor/core/mood_sequencer.py.
package mood

import "github.com/0mdb/robot-buddy-supervisor/internal/mcu"

// Phase is one step of the crossfade sequence.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseAnticipation
	PhaseRampDown
	PhaseSwitch
	PhaseRampUp
)

const (
	anticipationMS = 100.0
	rampDownMS     = 150.0
	rampUpMS       = 200.0
	minHoldMS      = 500.0
	sameMoodEpsilon = 0.01
)

// Sequencer choreographs mood transitions with a blink and crossfade
// (spec.md §4.13). It does not mutate face state directly; the tick
// loop reads MoodID/Intensity/consumed flags each tick.
type Sequencer struct {
	Phase     Phase
	timerMS   float64
	MoodID    mcu.FaceMood
	Intensity float64

	targetMoodID    mcu.FaceMood
	targetIntensity float64
	holdTimerMS     float64
	startIntensity  float64

	queuedMoodID    *mcu.FaceMood
	queuedIntensity float64

	blinkPending bool
	changed      bool
}

// New returns a Sequencer at NEUTRAL intensity 1.0, ready for an
// immediate first transition.
func New() *Sequencer {
	return &Sequencer{
		Intensity:       1.0,
		targetIntensity: 1.0,
		holdTimerMS:     minHoldMS,
	}
}

// Transitioning reports whether any non-IDLE phase is active.
func (s *Sequencer) Transitioning() bool { return s.Phase != PhaseIdle }

// ConsumeBlink returns true once when the ANTICIPATION blink should fire.
func (s *Sequencer) ConsumeBlink() bool {
	if s.blinkPending {
		s.blinkPending = false
		return true
	}
	return false
}

// ConsumeChanged returns true once when mood/intensity changed in IDLE.
func (s *Sequencer) ConsumeChanged() bool {
	if s.changed {
		s.changed = false
		return true
	}
	return false
}

// RequestMood requests a transition to (moodID, intensity), queuing it
// if a transition is already in progress or the minimum hold has not
// yet elapsed since the last one.
func (s *Sequencer) RequestMood(moodID mcu.FaceMood, intensity float64) {
	if moodID == s.MoodID && absF(intensity-s.targetIntensity) < sameMoodEpsilon {
		return
	}
	if s.Phase != PhaseIdle {
		s.queuedMoodID = &moodID
		s.queuedIntensity = intensity
		return
	}
	if s.holdTimerMS < minHoldMS && moodID != s.MoodID {
		s.queuedMoodID = &moodID
		s.queuedIntensity = intensity
		return
	}
	if moodID == s.MoodID {
		s.targetIntensity = intensity
		return
	}
	s.startTransition(moodID, intensity)
}

// Update advances the sequencer by dtMS milliseconds.
func (s *Sequencer) Update(dtMS float64) {
	s.holdTimerMS += dtMS

	if s.Phase == PhaseIdle {
		if absF(s.Intensity-s.targetIntensity) > sameMoodEpsilon {
			rampStep := dtMS / rampUpMS
			if s.Intensity < s.targetIntensity {
				s.Intensity = minF(s.targetIntensity, s.Intensity+rampStep)
			} else {
				s.Intensity = maxF(s.targetIntensity, s.Intensity-rampStep)
			}
			s.changed = true
		}
		if s.queuedMoodID != nil {
			mid, inten := *s.queuedMoodID, s.queuedIntensity
			s.queuedMoodID = nil
			s.RequestMood(mid, inten)
		}
		return
	}

	s.timerMS += dtMS

	switch s.Phase {
	case PhaseAnticipation:
		if s.timerMS == dtMS {
			s.blinkPending = true
		}
		if s.timerMS >= anticipationMS {
			s.Phase = PhaseRampDown
			s.timerMS = 0
		}

	case PhaseRampDown:
		progress := minF(1.0, s.timerMS/rampDownMS)
		s.Intensity = s.startIntensity * (1.0 - progress)
		if s.timerMS >= rampDownMS {
			s.Phase = PhaseSwitch
			s.timerMS = 0
		}

	case PhaseSwitch:
		s.MoodID = s.targetMoodID
		s.Intensity = 0
		s.Phase = PhaseRampUp
		fallthrough // the switch tick's dt counts toward ramp-up

	case PhaseRampUp:
		progress := minF(1.0, s.timerMS/rampUpMS)
		s.Intensity = s.targetIntensity * progress
		if s.timerMS >= rampUpMS {
			s.Intensity = s.targetIntensity
			s.Phase = PhaseIdle
			s.holdTimerMS = 0
			s.changed = true

			if s.queuedMoodID != nil {
				mid, inten := *s.queuedMoodID, s.queuedIntensity
				s.queuedMoodID = nil
				s.startTransition(mid, inten)
			}
		}
	}
}

func (s *Sequencer) startTransition(moodID mcu.FaceMood, intensity float64) {
	s.targetMoodID = moodID
	s.targetIntensity = intensity
	s.startIntensity = s.Intensity
	s.Phase = PhaseAnticipation
	s.timerMS = 0
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
