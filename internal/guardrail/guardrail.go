// Package guardrail implements the tick-loop negative-affect fallback
// guardrails (spec.md §4.15), used only when no fresh personality
// snapshot is available. Grounded in
// _examples/original_source/supervisor/core/guardrails.py.
package guardrail

import "github.com/0mdb/robot-buddy-supervisor/internal/mcu"

var negativeMoods = map[mcu.FaceMood]bool{
	mcu.MoodSad:    true,
	mcu.MoodScared: true,
	mcu.MoodAngry:  true,
}

var intensityCap = map[mcu.FaceMood]float64{
	mcu.MoodAngry:     0.5,
	mcu.MoodScared:    0.6,
	mcu.MoodSad:       0.7,
	mcu.MoodSurprised: 0.8,
}

var maxDurationMS = map[mcu.FaceMood]float64{
	mcu.MoodAngry:     2000,
	mcu.MoodScared:    2000,
	mcu.MoodSad:       4000,
	mcu.MoodSurprised: 3000,
}

// Guardrails enforces negative-affect limits for child safety.
type Guardrails struct {
	moodStartMS    float64
	currentMoodID  mcu.FaceMood
	fired          bool
}

// New returns Guardrails tracking mood changes from NEUTRAL.
func New() *Guardrails {
	return &Guardrails{currentMoodID: mcu.MoodNeutral}
}

// Check applies the three guardrail mechanisms and returns the
// possibly-modified (moodID, intensity). nowMS is monotonic.
func (g *Guardrails) Check(moodID mcu.FaceMood, intensity float64, conversationActive bool, nowMS float64) (mcu.FaceMood, float64) {
	if moodID != g.currentMoodID {
		g.currentMoodID = moodID
		g.moodStartMS = nowMS
		g.fired = false
	}

	if negativeMoods[moodID] && !conversationActive {
		return mcu.MoodNeutral, 0.0
	}

	if cap, ok := intensityCap[moodID]; ok && intensity > cap {
		intensity = cap
	}

	if maxDur, ok := maxDurationMS[moodID]; ok && !g.fired {
		elapsed := nowMS - g.moodStartMS
		if elapsed > maxDur {
			g.fired = true
			return mcu.MoodNeutral, 0.0
		}
	}

	return moodID, intensity
}
