package speech

import "github.com/0mdb/robot-buddy-supervisor/internal/eventbus"

// policyPriority is the fixed priority speech-policy utterances enqueue
// at (spec.md §4.16 step 10).
const policyPriority = 3

var cooldownMS = map[string]float64{
	"vision.ball_acquired": 5000.0,
	"mode.changed:WANDER":  7000.0,
	"mode.changed:IDLE":    9000.0,
	"fault.raised":         6000.0,
	"face.button.click":    4000.0,
}

var phrasesByKey = map[string][]string{
	"vision.ball_acquired": {
		"Ooh, I see a ball!",
		"Ball spotted!",
		"I found a ball!",
	},
	"mode.changed:WANDER": {
		"Wander mode on. Let's explore!",
		"I am going exploring now.",
		"Patrol drift started.",
	},
	"mode.changed:IDLE": {
		"Okay, I'll pause in idle mode.",
		"Taking a little rest in idle.",
	},
	"fault.raised": {
		"Uh oh. I need to pause for safety.",
		"I found a fault, stopping now.",
	},
	"face.button.click": {
		"Nice click!",
		"Button press detected.",
		"Boop!",
	},
}

// Policy turns high-signal runtime events into bounded spoken lines
// (spec.md §4.16 step 10, supplemented from speech_policy.py since the
// body of the spec does not enumerate which events become speech).
type Policy struct {
	lastSpokenMS map[string]float64
	phraseIndex  map[string]int
}

// NewPolicy returns an empty Policy with no cooldown history.
func NewPolicy() *Policy {
	return &Policy{
		lastSpokenMS: make(map[string]float64),
		phraseIndex:  make(map[string]int),
	}
}

// Generate scans the recent event tail and returns at most one speech
// intent plus any drop reasons, bounding output to one utterance per
// tick so an event burst can't turn the robot chatty.
func (p *Policy) Generate(events []eventbus.Event, faceListening, faceTalking bool, nowMonoMS int64) (*Intent, []string) {
	var drops []string
	if len(events) == 0 {
		return nil, drops
	}

	for _, evt := range events {
		key := eventKey(evt)
		if key == "" {
			continue
		}

		if key == "face.button.click" && buttonIs(evt, "action") {
			// the face's ACTION button already runs an explicit greet
			// routine; the policy shouldn't double-speak on it.
			continue
		}

		if faceListening || faceTalking {
			drops = append(drops, "policy_face_busy")
			continue
		}

		if p.onCooldown(key, nowMonoMS) {
			drops = append(drops, "policy_cooldown")
			continue
		}

		phrase := p.nextPhrase(key)
		if phrase == "" {
			drops = append(drops, "policy_no_phrase")
			continue
		}

		p.lastSpokenMS[key] = float64(nowMonoMS)
		return &Intent{Text: phrase, Source: "policy:" + evt.Type, Priority: policyPriority, TMonoMS: nowMonoMS}, drops
	}

	return nil, drops
}

func eventKey(evt eventbus.Event) string {
	switch evt.Type {
	case "vision.ball_acquired", "fault.raised", "face.button.click":
		return evt.Type
	case "mode.changed":
		to, _ := evt.Payload["to"].(string)
		switch to {
		case "WANDER":
			return "mode.changed:WANDER"
		case "IDLE":
			return "mode.changed:IDLE"
		}
	}
	return ""
}

func buttonIs(evt eventbus.Event, button string) bool {
	b, _ := evt.Payload["button"].(string)
	return b == button
}

func (p *Policy) onCooldown(key string, nowMonoMS int64) bool {
	cd := cooldownMS[key]
	last, ok := p.lastSpokenMS[key]
	if !ok {
		return false
	}
	return float64(nowMonoMS)-last < cd
}

func (p *Policy) nextPhrase(key string) string {
	phrases := phrasesByKey[key]
	if len(phrases) == 0 {
		return ""
	}
	idx := p.phraseIndex[key]
	phrase := phrases[idx%len(phrases)]
	p.phraseIndex[key] = idx + 1
	return phrase
}
