// Package clocksync implements the per-MCU ping/pong clock offset and
// drift estimator (spec.md §4.4), grounded directly in
// _examples/original_source/supervisor_v2/devices/clock_sync.go's
// Python counterpart (clock_sync.py) for its exact constants and state
// machine.
package clocksync

import (
	"context"
	"encoding/binary"
	"log/slog"
	"sync"
	"time"

	"github.com/0mdb/robot-buddy-supervisor/internal/frame"
	"github.com/0mdb/robot-buddy-supervisor/internal/state"
)

const (
	windowSize                  = 16
	initialHz                   = 5.0
	steadyHz                    = 2.0
	initialSampleCount          = 20
	pingTimeout                 = 500 * time.Millisecond
	rttThresholdNS        int64 = 10_000_000       // 10 ms
	staleTimeoutNS        int64 = 5_000_000_000     // 5 s
	minSamplesForSynced         = 5
	consecutiveBadRTTCap        = 10
	driftAlpha                  = 0.1
	driftWarnThresholdUS        = 100.0
)

type sample struct {
	offsetNS  int64
	rttNS     int64
	recvMonoNS int64
}

// Sender is the transport surface the engine needs to emit ping frames.
type Sender interface {
	Write(b []byte) bool
	Connected() bool
}

// Engine runs the ping/pong clock-sync protocol for one MCU.
type Engine struct {
	name   string
	sender Sender
	nowFn  func() int64 // monotonic nanoseconds
	logger *slog.Logger

	mu sync.Mutex

	nextSeq       uint32
	pendingPings  map[uint32]int64 // seq -> sent mono ns
	samples       []sample         // ring, most-recent last, capped at windowSize
	sampleCount   int
	consecBadRTT  int
	lastGoodMono  int64
	state         state.SyncState
	offsetNS      int64
	rttMinUS      int64
	driftUSPerS   float64
	lastSyncMono  int64
}

// New returns an Engine for one MCU. nowFn defaults to
// time.Now().UnixNano(), a wall-clock reading, when nil; tests inject a
// deterministic clock.
func New(name string, sender Sender, nowFn func() int64, logger *slog.Logger) *Engine {
	if nowFn == nil {
		nowFn = func() int64 { return time.Now().UnixNano() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		name:         name,
		sender:       sender,
		nowFn:        nowFn,
		logger:       logger,
		pendingPings: make(map[uint32]int64),
		state:        state.Unsynced,
	}
}

// Run drives the ping loop and periodic timeout/stale checks until ctx
// is canceled. The ping rate starts at initialHz and drops to steadyHz
// once initialSampleCount samples have been collected.
func (e *Engine) Run(ctx context.Context) {
	interval := time.Duration(float64(time.Second) / initialHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	checkTicker := time.NewTicker(100 * time.Millisecond)
	defer checkTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sendPing()
			if e.currentSampleCount() >= initialSampleCount && interval != time.Duration(float64(time.Second)/steadyHz) {
				interval = time.Duration(float64(time.Second) / steadyHz)
				ticker.Reset(interval)
			}
		case <-checkTicker.C:
			e.checkTimeouts()
			e.checkStale()
		}
	}
}

func (e *Engine) currentSampleCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sampleCount
}

func (e *Engine) sendPing() {
	if !e.sender.Connected() {
		return
	}
	e.mu.Lock()
	e.nextSeq++
	seq := e.nextSeq
	e.pendingPings[seq] = e.nowFn()
	e.mu.Unlock()

	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, seq)
	encoded := frame.EncodeV2(frame.CommonTimeSyncReq, seq, 0, payload)
	e.sender.Write(encoded)
}

// HandlePacket processes a decoded TIME_SYNC_RESP frame: payload is
// ping_seq:u32 ‖ t_src_us:u64 (spec.md §4.4).
func (e *Engine) HandlePacket(pkt frame.Packet) {
	if pkt.Type != frame.CommonTimeSyncResp || len(pkt.Payload) < 12 {
		return
	}
	seq := binary.LittleEndian.Uint32(pkt.Payload[0:4])
	tSrcUS := binary.LittleEndian.Uint64(pkt.Payload[4:12])
	recv := e.nowFn()

	e.mu.Lock()
	defer e.mu.Unlock()

	sentMono, ok := e.pendingPings[seq]
	if !ok {
		return // stale or duplicate response
	}
	delete(e.pendingPings, seq)

	rtt := recv - sentMono
	offset := recv - int64(tSrcUS)*1000 - rtt/2

	e.samples = append(e.samples, sample{offsetNS: offset, rttNS: rtt, recvMonoNS: recv})
	if len(e.samples) > windowSize {
		e.samples = e.samples[len(e.samples)-windowSize:]
	}
	e.sampleCount++

	good := rtt < rttThresholdNS
	if good {
		e.consecBadRTT = 0
		e.lastGoodMono = recv
	} else {
		e.consecBadRTT++
	}

	e.selectOffsetLocked()
	e.updateDriftLocked(offset, recv)
	e.updateStateLocked(recv)
}

// selectOffsetLocked chooses offset from the minimum-RTT sample in the
// window whose RTT is below rttThresholdNS.
func (e *Engine) selectOffsetLocked() {
	bestIdx := -1
	var bestRTT int64
	for i, s := range e.samples {
		if s.rttNS >= rttThresholdNS {
			continue
		}
		if bestIdx == -1 || s.rttNS < bestRTT {
			bestIdx = i
			bestRTT = s.rttNS
		}
	}
	if bestIdx == -1 {
		return
	}
	e.offsetNS = e.samples[bestIdx].offsetNS
	e.rttMinUS = bestRTT / 1000
	e.lastSyncMono = e.samples[bestIdx].recvMonoNS
}

func (e *Engine) updateDriftLocked(newOffset, nowMono int64) {
	if len(e.samples) < 2 {
		return
	}
	prev := e.samples[len(e.samples)-2]
	dtS := float64(nowMono-prev.recvMonoNS) / 1e9
	if dtS <= 0 {
		return
	}
	instDriftUS := float64(newOffset-prev.offsetNS) / 1000.0 / dtS
	e.driftUSPerS = driftAlpha*instDriftUS + (1-driftAlpha)*e.driftUSPerS
	if abs(e.driftUSPerS) > driftWarnThresholdUS {
		e.logger.Warn("clock drift high", "mcu", e.name, "drift_us_per_s", e.driftUSPerS)
	}
}

// hasMinRTTSampleLocked mirrors clock_sync.py's _min_rtt_sample: a
// single good sample anywhere in the window counts, even if every
// sample since has been bad.
func (e *Engine) hasMinRTTSampleLocked() bool {
	for _, s := range e.samples {
		if s.rttNS < rttThresholdNS {
			return true
		}
	}
	return false
}

func (e *Engine) updateStateLocked(nowMono int64) {
	hasGoodSample := e.hasMinRTTSampleLocked()
	switch e.state {
	case state.Unsynced:
		if e.sampleCount >= minSamplesForSynced && hasGoodSample {
			e.state = state.Synced
		}
	case state.Degraded:
		if hasGoodSample {
			e.state = state.Synced
		}
	case state.Synced:
		if e.isDegradedLocked(nowMono) {
			e.state = state.Degraded
		}
	}
}

func (e *Engine) isDegradedLocked(nowMono int64) bool {
	if e.consecBadRTT >= consecutiveBadRTTCap {
		return true
	}
	if e.lastGoodMono != 0 && nowMono-e.lastGoodMono > staleTimeoutNS {
		return true
	}
	return false
}

// checkTimeouts drops pings outstanding longer than pingTimeout without
// changing sync state. No count of timed-out pings is kept.
func (e *Engine) checkTimeouts() {
	now := e.nowFn()
	e.mu.Lock()
	defer e.mu.Unlock()
	for seq, sentMono := range e.pendingPings {
		if time.Duration(now-sentMono) > pingTimeout {
			delete(e.pendingPings, seq)
		}
	}
}

// checkStale demotes synced -> degraded when no response has arrived in
// staleTimeoutNS, independent of the response-driven path.
func (e *Engine) checkStale() {
	now := e.nowFn()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == state.Synced && e.isDegradedLocked(now) {
		e.state = state.Degraded
	}
}

// Snapshot returns the current clock-sync state for RobotState.
func (e *Engine) Snapshot() state.ClockSync {
	e.mu.Lock()
	defer e.mu.Unlock()
	return state.ClockSync{
		State:          e.state,
		OffsetNS:       e.offsetNS,
		RTTMinUS:       e.rttMinUS,
		DriftUSPerS:    e.driftUSPerS,
		SampleCount:    e.sampleCount,
		LastSyncMonoNS: e.lastSyncMono,
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
