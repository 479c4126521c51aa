// Package plan implements untrusted-planner-output validation and the
// cooldown-gated action scheduler (spec.md §4.10), grounded in
// _examples/original_source/supervisor/core/action_scheduler.py.
package plan

import (
	"strings"
)

// AllowedSkills is the static set of skill names a "skill" action may
// name (spec.md §4.10).
var AllowedSkills = map[string]bool{
	"patrol_drift":         true,
	"investigate_ball":     true,
	"avoid_obstacle":       true,
	"greet_on_button":      true,
	"scan_for_target":      true,
	"approach_until_range": true,
	"retreat_and_recover":  true,
}

var allowedActions = map[string]bool{
	"say": true, "emote": true, "gesture": true, "skill": true,
}

const (
	minTTLMS    = 500
	maxTTLMS    = 5000
	maxTextLen  = 200
	defaultEmoteIntensity = 0.7
)

// Action is one validated, bounded planner action.
type Action struct {
	Kind      string // "say" | "emote" | "gesture" | "skill"
	Text      string
	Name      string
	Intensity float64
}

// Key returns the cooldown dedup key for this action, or "" if none
// applies (an empty text/name action has no key).
func (a Action) Key() string {
	switch a.Kind {
	case "say":
		if a.Text == "" {
			return ""
		}
		return "say:" + a.Text
	case "emote":
		if a.Name == "" {
			return ""
		}
		return "emote:" + a.Name
	case "gesture":
		if a.Name == "" {
			return ""
		}
		return "gesture:" + a.Name
	case "skill":
		if a.Name == "" {
			return ""
		}
		return "skill:" + a.Name
	}
	return ""
}

// RawAction is the untrusted planner-supplied action before validation.
type RawAction struct {
	Action    string
	Text      string
	Name      string
	Intensity float64
	HasIntensity bool
}

// Validated is the result of validating one plan's action list.
type Validated struct {
	Actions        []Action
	TTLMS          int64
	DroppedActions int
}

// Validator coerces untrusted planner output into bounded actions
// (spec.md §4.10).
type Validator struct {
	minTTLMS   int64
	maxTTLMS   int64
	maxTextLen int
}

// NewValidator returns a Validator with the spec.md §4.10 defaults.
func NewValidator() *Validator {
	return &Validator{minTTLMS: minTTLMS, maxTTLMS: maxTTLMS, maxTextLen: maxTextLen}
}

// Validate validates a raw action list plus a requested TTL.
func (v *Validator) Validate(raw []RawAction, ttlMS int64) Validated {
	ttl := ttlMS
	if ttl <= 0 {
		ttl = v.maxTTLMS
	}
	if ttl < v.minTTLMS {
		ttl = v.minTTLMS
	}
	if ttl > v.maxTTLMS {
		ttl = v.maxTTLMS
	}

	var out Validated
	out.TTLMS = ttl

	for _, r := range raw {
		kind := strings.ToLower(strings.TrimSpace(r.Action))
		if !allowedActions[kind] {
			out.DroppedActions++
			continue
		}

		switch kind {
		case "say":
			text := strings.TrimSpace(r.Text)
			if text == "" {
				out.DroppedActions++
				continue
			}
			if len(text) > v.maxTextLen {
				text = text[:v.maxTextLen]
			}
			out.Actions = append(out.Actions, Action{Kind: "say", Text: text})

		case "emote":
			name := strings.ToLower(strings.TrimSpace(r.Name))
			if name == "" {
				out.DroppedActions++
				continue
			}
			intensity := defaultEmoteIntensity
			if r.HasIntensity {
				intensity = r.Intensity
			}
			out.Actions = append(out.Actions, Action{
				Kind: "emote", Name: name, Intensity: clampF(intensity, 0, 1),
			})

		case "gesture":
			name := strings.ToLower(strings.TrimSpace(r.Name))
			if name == "" {
				out.DroppedActions++
				continue
			}
			out.Actions = append(out.Actions, Action{Kind: "gesture", Name: name})

		case "skill":
			name := strings.ToLower(strings.TrimSpace(r.Name))
			if !AllowedSkills[name] {
				out.DroppedActions++
				continue
			}
			out.Actions = append(out.Actions, Action{Kind: "skill", Name: name})
		}
	}

	return out
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
