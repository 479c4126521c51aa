// Package safety implements the layered speed-cap cascade applied to
// every desired twist before it reaches the MCU (spec.md §4.9),
// grounded in _examples/original_source/supervisor_v2/core/safety.py.
//
// Defense-in-depth above the reflex MCU's own hard-stop safety.
package safety

import (
	"fmt"
	"math"

	"github.com/0mdb/robot-buddy-supervisor/internal/state"
)

// VisionPolicy holds the runtime-reconfigurable vision speed-cap
// thresholds (spec.md §4.9: "reconfigurable at runtime").
type VisionPolicy struct {
	StaleMS   float64
	ClearLow  float64
	ClearHigh float64
}

// DefaultVisionPolicy returns the spec.md §4.9 defaults.
func DefaultVisionPolicy() VisionPolicy {
	return VisionPolicy{StaleMS: 500.0, ClearLow: 0.3, ClearHigh: 0.6}
}

// Apply runs the cascade and returns the capped twist, also resetting
// and repopulating robot's SpeedCaps trace so callers can inspect what
// limited the command this tick.
func Apply(desired state.Twist, mode state.Mode, robot *state.Robot, world state.World, visionAgeMS int64, policy VisionPolicy) state.Twist {
	snap := robot.Snapshot()
	var scale = 1.0
	var caps []state.SpeedCap
	record := func(s float64, reason string) {
		caps = append(caps, state.SpeedCap{Scale: s, Reason: reason})
	}
	finish := func(v, w int16) state.Twist {
		robot.Update(func(r *state.Robot) {
			r.ResetSpeedCaps()
			for _, c := range caps {
				r.AddSpeedCap(c.Scale, c.Reason)
			}
		})
		return state.Twist{VmmS: v, WmradS: w}
	}

	if !state.IsMotionMode(mode) {
		record(0.0, fmt.Sprintf("mode=%s", mode))
		return finish(0, 0)
	}
	if snap.FaultFlags != 0 {
		record(0.0, fmt.Sprintf("fault=0x%04X", uint16(snap.FaultFlags)))
		return finish(0, 0)
	}
	if !snap.MotionConnected {
		record(0.0, "reflex_disconnected")
		return finish(0, 0)
	}

	if snap.RangeStatus == state.RangeOK && snap.RangeMM > 0 {
		switch {
		case snap.RangeMM < 300:
			scale *= 0.25
			record(0.25, fmt.Sprintf("range=%dmm<300", snap.RangeMM))
		case snap.RangeMM < 500:
			scale *= 0.50
			record(0.50, fmt.Sprintf("range=%dmm<500", snap.RangeMM))
		}
	}

	if snap.RangeStatus == state.RangeTimeout || snap.RangeStatus == state.RangeNotReady {
		scale *= 0.50
		record(0.50, fmt.Sprintf("range_stale=%s", snap.RangeStatus))
	}

	if world.ClearConfidence >= 0 {
		switch {
		case visionAgeMS > int64(policy.StaleMS) || visionAgeMS < 0:
			scale *= 0.50
			record(0.50, "vision_stale")
		case world.ClearConfidence < policy.ClearLow:
			scale *= 0.25
			record(0.25, fmt.Sprintf("clear_conf=%.2f<%.2f", world.ClearConfidence, policy.ClearLow))
		case world.ClearConfidence < policy.ClearHigh:
			scale *= 0.50
			record(0.50, fmt.Sprintf("clear_conf=%.2f<%.2f", world.ClearConfidence, policy.ClearHigh))
		}
	}

	return finish(
		int16(math.Round(float64(desired.VmmS)*scale)),
		int16(math.Round(float64(desired.WmradS)*scale)),
	)
}
