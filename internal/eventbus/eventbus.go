// Package eventbus implements the ring buffer of edge-detected planner
// events (spec.md §4.7), grounded directly in
// _examples/original_source/supervisor_v2/core/event_bus.py.
package eventbus

import (
	"github.com/0mdb/robot-buddy-supervisor/internal/state"
)

const (
	defaultMaxEvents      = 100
	ballAcquireConfidence = 0.60
	ballLostConfidence    = 0.35
	ballClearMinConf      = 0.20
	obstacleCloseMM       = 450
	obstacleClearMM       = 650
	visionStaleMS         = 500.0
)

// Event is one typed, timestamped planner event (spec.md §4.7).
type Event struct {
	Type      string
	Payload   map[string]any
	TMonoMS   int64
	Seq       int64
}

// Bus holds a bounded ring of recent events plus the edge-detection
// state needed to emit new ones.
type Bus struct {
	maxEvents int
	events    []Event
	nextSeq   int64

	lastMode      state.Mode
	modeSeen      bool
	ballAboveHigh bool
	obstacleClose bool
	visionStale   bool
	lastFaults    state.Fault
	faultsSeen    bool
	lastButtonTS  map[string]int64
	lastTouchTS   int64
}

// New returns a Bus with the default 100-event ring capacity.
func New() *Bus {
	return &Bus{maxEvents: defaultMaxEvents, lastButtonTS: make(map[string]int64)}
}

func (b *Bus) emit(typ string, payload map[string]any, tMonoMS int64) {
	b.nextSeq++
	ev := Event{Type: typ, Payload: payload, TMonoMS: tMonoMS, Seq: b.nextSeq}
	b.events = append(b.events, ev)
	if len(b.events) > b.maxEvents {
		b.events = b.events[len(b.events)-b.maxEvents:]
	}
}

// IngestMode runs edge detection over the current robot/world snapshot
// and emits any newly-crossed-threshold events (spec.md §4.7 table).
// Mode is supplied explicitly since Robot does not own it (modefsm does).
func (b *Bus) IngestMode(mode state.Mode, robot state.Robot, world state.World, tMonoMS int64) {
	if !b.modeSeen {
		b.modeSeen = true
		b.lastMode = mode
	} else if mode != b.lastMode {
		b.emit("mode.changed", map[string]any{"from": string(b.lastMode), "to": string(mode)}, tMonoMS)
		b.lastMode = mode
	}
	b.ingestRest(robot, world, tMonoMS)
}

func (b *Bus) ingestRest(robot state.Robot, world state.World, tMonoMS int64) {
	visionAge := tMonoMS - world.VisionRxMonoMS
	visionFresh := world.VisionRxMonoMS != 0 && visionAge < visionStaleMS
	clearOK := world.ClearConfidence < 0 || world.ClearConfidence >= ballClearMinConf
	if visionFresh && !b.ballAboveHigh && world.BallConfidence >= ballAcquireConfidence &&
		clearOK && robot.FaultFlags == 0 {
		b.ballAboveHigh = true
		b.emit("vision.ball_acquired", map[string]any{
			"confidence": world.BallConfidence, "bearing": world.BallBearingDeg,
		}, tMonoMS)
	} else if b.ballAboveHigh && world.BallConfidence < ballLostConfidence {
		b.ballAboveHigh = false
		b.emit("vision.ball_lost", map[string]any{"confidence": world.BallConfidence}, tMonoMS)
	}

	closeNow := robot.RangeStatus == state.RangeOK && robot.RangeMM > 0 && robot.RangeMM < obstacleCloseMM
	clearedNow := robot.RangeStatus != state.RangeOK || robot.RangeMM > obstacleClearMM
	if closeNow && !b.obstacleClose {
		b.obstacleClose = true
		b.emit("safety.obstacle_close", map[string]any{"range_mm": robot.RangeMM}, tMonoMS)
	} else if clearedNow && b.obstacleClose {
		b.obstacleClose = false
		b.emit("safety.obstacle_cleared", map[string]any{"range_mm": robot.RangeMM}, tMonoMS)
	}

	if world.VisionRxMonoMS != 0 {
		stale := visionAge > visionStaleMS
		if stale && !b.visionStale {
			b.visionStale = true
			b.emit("vision.stale", map[string]any{"age_ms": visionAge}, tMonoMS)
		} else if !stale && b.visionStale {
			b.visionStale = false
			b.emit("vision.healthy", map[string]any{"age_ms": visionAge}, tMonoMS)
		}
	}

	if !b.faultsSeen {
		b.faultsSeen = true
		b.lastFaults = robot.FaultFlags
	} else if b.lastFaults == 0 && robot.FaultFlags != 0 {
		b.emit("fault.raised", map[string]any{"flags": uint16(robot.FaultFlags), "names": robot.FaultFlags.Names()}, tMonoMS)
		b.lastFaults = robot.FaultFlags
	} else if b.lastFaults != 0 && robot.FaultFlags == 0 {
		b.emit("fault.cleared", map[string]any{"flags": uint16(b.lastFaults), "names": b.lastFaults.Names()}, tMonoMS)
		b.lastFaults = 0
	}
}

// OnFaceButton records an external button event, deduped by timestamp.
func (b *Bus) OnFaceButton(button string, kind string, tMonoMS int64) {
	key := button + ":" + kind
	if b.lastButtonTS[key] == tMonoMS {
		return
	}
	b.lastButtonTS[key] = tMonoMS
	b.emit("face.button."+kind, map[string]any{"button": button}, tMonoMS)
}

// OnFaceTouch records an external touch event, deduped by timestamp.
func (b *Bus) OnFaceTouch(tMonoMS int64) {
	if b.lastTouchTS == tMonoMS {
		return
	}
	b.lastTouchTS = tMonoMS
	b.emit("face.touch", nil, tMonoMS)
}

// Latest returns the most recently emitted event, if any.
func (b *Bus) Latest() (Event, bool) {
	if len(b.events) == 0 {
		return Event{}, false
	}
	return b.events[len(b.events)-1], true
}

// EventsSince returns all events with Seq > seq, in order.
func (b *Bus) EventsSince(seq int64) []Event {
	var out []Event
	for _, ev := range b.events {
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}

// Snapshot returns a copy of the current ring buffer contents.
func (b *Bus) Snapshot() []Event {
	return append([]Event(nil), b.events...)
}
