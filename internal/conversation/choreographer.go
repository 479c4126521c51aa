package conversation

import "github.com/0mdb/robot-buddy-supervisor/internal/mcu"

const (
	transLTGazeRampMS      = 300.0
	transTSBlinkDelayMS    = 0.0
	transTSBlinkDurationMS = 180.0
	transTSGazeRampDelayMS = 50.0
	transTSGazeRampMS      = 300.0
	transSLNodDelayMS      = 100.0
	transSLNodDurationMS   = 350.0
	transSDSuppressMS      = 500.0
)

var gazeCenter = Gaze{X: 0, Y: 0, Valid: true}
var gazeThinking = Gaze{X: 0.5, Y: -0.3, Valid: true}

// ActionKind identifies a choreographed action (spec.md §4.14).
type ActionKind string

const (
	ActionGesture   ActionKind = "gesture"
	ActionMoodNudge ActionKind = "mood_nudge"
)

// TransitionAction is one scripted action fired during a transition.
type TransitionAction struct {
	Kind       ActionKind
	DelayMS    float64
	Gesture    mcu.FaceGesture
	Mood       mcu.FaceMood
	Intensity  float64
	Name       string
	DurationMS float64
}

type gazeRamp struct {
	startX, startY float64
	endX, endY     float64
	durationMS     float64
	delayMS        float64
	elapsedMS      float64
}

func (g *gazeRamp) update(dtMS float64) (float64, float64) {
	g.elapsedMS += dtMS
	activeMS := g.elapsedMS - g.delayMS
	if activeMS <= 0 {
		return g.startX, g.startY
	}
	t := 1.0
	if g.durationMS > 0 {
		t = activeMS / g.durationMS
		if t > 1.0 {
			t = 1.0
		}
	}
	tEase := 1.0 - (1.0-t)*(1.0-t)
	return g.startX + (g.endX-g.startX)*tEase, g.startY + (g.endY-g.startY)*tEase
}

func (g *gazeRamp) done() bool {
	return (g.elapsedMS - g.delayMS) >= g.durationMS
}

// Choreographer fires timed action sequences on conversation phase
// transitions (spec.md §4.14). It does not mutate face state itself;
// the tick loop reads its outputs.
type Choreographer struct {
	timerMS         float64
	actions         []TransitionAction
	fired           map[int]bool
	ramp            *gazeRamp
	suppressMoodMS  float64
	totalDurationMS float64
	hasBlink        bool
}

// NewChoreographer returns an idle Choreographer.
func NewChoreographer() *Choreographer {
	return &Choreographer{fired: make(map[int]bool)}
}

// Active reports whether a transition sequence is still playing.
func (c *Choreographer) Active() bool {
	if c.ramp != nil && !c.ramp.done() {
		return true
	}
	if c.suppressMoodMS > 0 && c.timerMS < c.suppressMoodMS {
		return true
	}
	return c.timerMS < c.totalDurationMS
}

// SuppressMoodPipeline reports whether the regular mood pipeline
// should be skipped this tick.
func (c *Choreographer) SuppressMoodPipeline() bool {
	return c.suppressMoodMS > 0 && c.timerMS < c.suppressMoodMS
}

// HasBlink reports whether the current transition includes a blink.
func (c *Choreographer) HasBlink() bool { return c.hasBlink }

// OnTransition loads the choreography for a phase transition, if any
// is defined for that pair.
func (c *Choreographer) OnTransition(prev, next Phase) {
	c.reset()
	switch {
	case prev == PhaseListening && next == PhaseThinking:
		c.setupListeningToThinking()
	case prev == PhaseThinking && next == PhaseSpeaking:
		c.setupThinkingToSpeaking()
	case prev == PhaseSpeaking && next == PhaseListening:
		c.setupSpeakingToListening()
	case prev == PhaseSpeaking && next == PhaseDone:
		c.setupSpeakingToDone()
	}
}

// Update advances the timer and returns the actions newly due this tick.
func (c *Choreographer) Update(dtMS float64) []TransitionAction {
	if len(c.actions) == 0 && c.ramp == nil && c.suppressMoodMS <= 0 {
		return nil
	}
	c.timerMS += dtMS

	var fired []TransitionAction
	for i, a := range c.actions {
		if !c.fired[i] && c.timerMS >= a.DelayMS {
			c.fired[i] = true
			fired = append(fired, a)
		}
	}
	if c.ramp != nil {
		c.ramp.update(dtMS)
	}
	return fired
}

// GazeOverride returns the interpolated gaze if a ramp is live.
func (c *Choreographer) GazeOverride() Gaze {
	if c.ramp == nil || c.ramp.done() {
		return Gaze{}
	}
	x, y := c.ramp.update(0)
	return Gaze{X: x, Y: y, Valid: true}
}

func (c *Choreographer) reset() {
	c.timerMS = 0
	c.actions = nil
	c.fired = make(map[int]bool)
	c.ramp = nil
	c.suppressMoodMS = 0
	c.totalDurationMS = 0
	c.hasBlink = false
}

func (c *Choreographer) setupListeningToThinking() {
	c.ramp = &gazeRamp{
		startX: gazeCenter.X, startY: gazeCenter.Y,
		endX: gazeThinking.X, endY: gazeThinking.Y,
		durationMS: transLTGazeRampMS,
	}
	c.totalDurationMS = transLTGazeRampMS
}

func (c *Choreographer) setupThinkingToSpeaking() {
	c.actions = []TransitionAction{
		{Kind: ActionGesture, DelayMS: transTSBlinkDelayMS, Gesture: mcu.GestureBlink, Name: "blink", DurationMS: transTSBlinkDurationMS},
	}
	c.hasBlink = true
	c.ramp = &gazeRamp{
		startX: gazeThinking.X, startY: gazeThinking.Y,
		endX: gazeCenter.X, endY: gazeCenter.Y,
		durationMS: transTSGazeRampMS,
		delayMS:    transTSGazeRampDelayMS,
	}
	c.totalDurationMS = transTSGazeRampDelayMS + transTSGazeRampMS
}

func (c *Choreographer) setupSpeakingToListening() {
	c.actions = []TransitionAction{
		{Kind: ActionGesture, DelayMS: transSLNodDelayMS, Gesture: mcu.GestureNod, Name: "nod", DurationMS: transSLNodDurationMS},
	}
	c.totalDurationMS = transSLNodDelayMS + transSLNodDurationMS
}

func (c *Choreographer) setupSpeakingToDone() {
	c.actions = []TransitionAction{
		{Kind: ActionMoodNudge, DelayMS: 0, Mood: mcu.MoodNeutral, Intensity: 0},
	}
	c.suppressMoodMS = transSDSuppressMS
	c.totalDurationMS = transSDSuppressMS
}
