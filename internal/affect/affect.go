// Package affect implements the pure affect-vector math that underlies
// the personality engine (spec.md §4.17): trait derivation, the
// decaying integrator, impulse application, and hysteretic mood
// projection. Grounded directly in
// _examples/original_source/supervisor/personality/affect.py.
//
// No I/O and no randomness source of its own beyond the injected
// *rand.Rand; internal/personality drives the 1 Hz cadence and owns the
// worker-process wiring.
package affect

import (
	"math"
	"math/rand"

	"github.com/0mdb/robot-buddy-supervisor/internal/mcu"
)

// MaxAnchorDistance bounds the VA-space distance used to scale mood
// intensity (spec.md §4.17 step 6).
const MaxAnchorDistance = 1.20

// NegativeMoods is the set of moods the context gate withholds outside
// an active conversation.
var NegativeMoods = map[mcu.FaceMood]bool{
	mcu.MoodSad:    true,
	mcu.MoodScared: true,
	mcu.MoodAngry:  true,
}

// vaPoint is a (valence, arousal) coordinate.
type vaPoint struct{ v, a float64 }

// MoodAnchors are the 13 Russell-circumplex anchors from
// affect.py's MOOD_ANCHORS. mcu.FaceMood has no "love", "silly",
// "thinking" or "sleepy" entries of its own; those four anchors are
// carried over onto the nearest free Go mood name with the VA
// coordinates preserved exactly (see DESIGN.md): love->Content,
// sleepy->Tired, thinking->Calm, silly->Bored. The remaining nine
// names match the original directly.
var MoodAnchors = map[mcu.FaceMood]vaPoint{
	mcu.MoodNeutral:   {0.00, 0.00},
	mcu.MoodHappy:     {0.70, 0.35},
	mcu.MoodExcited:   {0.65, 0.80},
	mcu.MoodCurious:   {0.40, 0.45},
	mcu.MoodContent:   {0.80, 0.15}, // "love"
	mcu.MoodBored:     {0.55, 0.60}, // "silly"
	mcu.MoodCalm:      {0.10, 0.20}, // "thinking"
	mcu.MoodSurprised: {0.15, 0.80},
	mcu.MoodSad:       {-0.60, -0.40},
	mcu.MoodScared:    {-0.70, 0.65},
	mcu.MoodAngry:     {-0.60, 0.70},
	mcu.MoodConfused:  {-0.20, 0.30},
	mcu.MoodTired:     {0.05, -0.80}, // "sleepy"
}

// emotionTarget is (target_v, target_a, base_magnitude) for one
// AI-provided emotion label (spec.md §4.17 last paragraph).
type emotionTarget struct{ v, a, mag float64 }

// EmotionVATargets maps the 13 AI-facing emotion labels to VA impulse
// targets, matching affect.py's EMOTION_VA_TARGETS. Keys are the
// label strings the AI worker sends, not mcu.FaceMood values.
var EmotionVATargets = map[string]emotionTarget{
	"neutral":   {0.00, 0.00, 0.30},
	"happy":     {0.70, 0.35, 0.60},
	"excited":   {0.65, 0.80, 0.70},
	"curious":   {0.40, 0.45, 0.55},
	"love":      {0.80, 0.15, 0.60},
	"silly":     {0.55, 0.60, 0.60},
	"thinking":  {0.10, 0.20, 0.40},
	"surprised": {0.15, 0.80, 0.65},
	"sad":       {-0.60, -0.40, 0.50},
	"scared":    {-0.70, 0.65, 0.50},
	"angry":     {-0.60, 0.70, 0.45},
	"confused":  {-0.20, 0.30, 0.40},
	"sleepy":    {0.05, -0.80, 0.40},
}

// EmotionImpulse returns the impulse for an AI-provided emotion label
// scaled by its reported intensity, or ok=false for an unknown label.
func EmotionImpulse(label string, intensity float64) (Impulse, bool) {
	t, ok := EmotionVATargets[label]
	if !ok {
		return Impulse{}, false
	}
	if intensity < 0 {
		intensity = 0
	}
	if intensity > 1 {
		intensity = 1
	}
	return Impulse{TargetValence: t.v, TargetArousal: t.a, Magnitude: t.mag * intensity, Source: "ai_emotion"}, true
}

// TraitParameters are the 12 static personality parameters derived
// once from the five axis positions (spec.md §4.17).
type TraitParameters struct {
	BaselineValence         float64
	BaselineArousal         float64
	DecayRatePhasic         float64
	DecayMultiplierPositive float64
	DecayMultiplierNegative float64
	ImpulseScalePositive    float64
	ImpulseScaleNegative    float64
	ValenceMin              float64
	ValenceMax              float64
	ArousalMin              float64
	ArousalMax              float64
	NoiseAmplitude          float64
}

// Sigmoid maps an axis position through a logistic curve; k is
// steepness, x0 the midpoint (spec.md §4.17).
func Sigmoid(x, k, x0 float64) float64 {
	return 1.0 / (1.0 + math.Exp(-k*(x-x0)))
}

// ComputeTraitParameters derives the trait parameters from the five
// axis positions, each expected in [0,1] (spec.md §4.17).
func ComputeTraitParameters(energy, reactivity, initiative, vulnerability, predictability float64) TraitParameters {
	_ = initiative // initiative only feeds idle_impulse_magnitude, owned by internal/personality
	sigR := Sigmoid(reactivity, 5.0, 0.5)
	p7 := 0.50 + 1.00*sigR

	return TraitParameters{
		BaselineValence:         0.10,
		BaselineArousal:         0.50 * (energy - 0.50),
		DecayRatePhasic:         0.03 + 0.05*sigR,
		DecayMultiplierPositive: 0.85,
		DecayMultiplierNegative: 1.30,
		ImpulseScalePositive:    p7,
		ImpulseScaleNegative:    p7 * (0.30 + 0.70*vulnerability),
		ValenceMin:              -0.50 - 0.50*vulnerability,
		ValenceMax:              0.95,
		ArousalMin:              -0.90,
		ArousalMax:              0.50 + 0.40*energy,
		NoiseAmplitude:          0.05 * (1.0 - predictability),
	}
}

// Vector is the mutable (valence, arousal) affect state.
type Vector struct {
	Valence float64
	Arousal float64
}

// Impulse is a discrete emotional perturbation from any source.
type Impulse struct {
	TargetValence float64
	TargetArousal float64
	Magnitude     float64
	Source        string
}

// Update runs one tick of the decaying integrator: asymmetric decay,
// drain pending impulses, noise, clamp (spec.md §4.17 steps 1-5).
// Memory bias (the original's optional step 3) has no SPEC_FULL.md
// component producing memories, so it is omitted.
func Update(v *Vector, trait TraitParameters, pending []Impulse, dtS float64, rng *rand.Rand) []Impulse {
	if dtS <= 0 {
		for _, imp := range pending {
			ApplyImpulse(v, imp, trait)
		}
		return pending[:0]
	}

	if v.Valence >= trait.BaselineValence {
		lamV := trait.DecayRatePhasic * trait.DecayMultiplierPositive
		alphaV := 1.0 - math.Exp(-lamV*dtS)
		v.Valence += (trait.BaselineValence - v.Valence) * alphaV
	} else {
		lamV := trait.DecayRatePhasic * trait.DecayMultiplierNegative
		alphaV := 1.0 - math.Exp(-lamV*dtS)
		v.Valence += (trait.BaselineValence - v.Valence) * alphaV
	}

	if v.Arousal >= trait.BaselineArousal {
		lamA := trait.DecayRatePhasic * trait.DecayMultiplierPositive
		alphaA := 1.0 - math.Exp(-lamA*dtS)
		v.Arousal += (trait.BaselineArousal - v.Arousal) * alphaA
	} else {
		lamA := trait.DecayRatePhasic * trait.DecayMultiplierNegative
		alphaA := 1.0 - math.Exp(-lamA*dtS)
		v.Arousal += (trait.BaselineArousal - v.Arousal) * alphaA
	}

	for _, imp := range pending {
		ApplyImpulse(v, imp, trait)
	}
	pending = pending[:0]

	if rng != nil {
		sq := math.Sqrt(dtS)
		v.Valence += rng.NormFloat64() * trait.NoiseAmplitude * sq
		v.Arousal += rng.NormFloat64() * trait.NoiseAmplitude * sq
	}

	v.Valence = clamp(v.Valence, trait.ValenceMin, trait.ValenceMax)
	v.Arousal = clamp(v.Arousal, trait.ArousalMin, trait.ArousalMax)

	return pending
}

// ApplyImpulse displaces v toward the impulse's target, scaled by
// trait-based sensitivity, never overshooting (spec.md §4.17 step 2).
func ApplyImpulse(v *Vector, imp Impulse, trait TraitParameters) {
	dv := imp.TargetValence - v.Valence
	da := imp.TargetArousal - v.Arousal
	norm := math.Sqrt(dv*dv + da*da)
	if norm < 0.001 {
		return
	}

	unitV := dv / norm
	unitA := da / norm

	scale := trait.ImpulseScalePositive
	if imp.TargetValence < v.Valence {
		scale = trait.ImpulseScaleNegative
	}

	displacement := math.Min(imp.Magnitude*scale, norm)
	v.Valence += unitV * displacement
	v.Arousal += unitA * displacement
}

func distance(v, a float64, anchor vaPoint) float64 {
	dv := v - anchor.v
	da := a - anchor.a
	return math.Sqrt(dv*dv + da*da)
}

// hysteresisThreshold returns the distance-gap threshold required to
// switch from current to candidate (spec.md §4.17 step 6): entering a
// negative mood is hardest, leaving one easiest.
func hysteresisThreshold(current, candidate mcu.FaceMood) float64 {
	currNeg := NegativeMoods[current]
	candNeg := NegativeMoods[candidate]
	switch {
	case currNeg && !candNeg:
		return 0.08
	case !currNeg && candNeg:
		return 0.15
	case currNeg && candNeg:
		return 0.10
	default:
		return 0.12
	}
}

// ProjectMood projects v onto the nearest discrete mood anchor with
// asymmetric hysteresis, returning (mood, intensity).
func ProjectMood(v Vector, currentMood mcu.FaceMood) (mcu.FaceMood, float64) {
	dCurrent := distance(v.Valence, v.Arousal, MoodAnchors[currentMood])

	nearest := currentMood
	dNearest := dCurrent
	for mood, anchor := range MoodAnchors {
		d := distance(v.Valence, v.Arousal, anchor)
		if d < dNearest {
			nearest = mood
			dNearest = d
		}
	}

	threshold := hysteresisThreshold(currentMood, nearest)
	if dCurrent-dNearest > threshold {
		currentMood = nearest
		dCurrent = dNearest
	}

	intensity := clamp(1.0-dCurrent/MaxAnchorDistance, 0.0, 1.0)
	return currentMood, math.Round(intensity*100) / 100
}

// EnforceContextGate forces NEUTRAL for a negative mood outside an
// active conversation, else returns mood unchanged (spec.md §4.17
// step 7). It returns no intensity; callers re-project it for the
// returned mood.
func EnforceContextGate(mood mcu.FaceMood, conversationActive bool) mcu.FaceMood {
	if NegativeMoods[mood] && !conversationActive {
		return mcu.MoodNeutral
	}
	return mood
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
