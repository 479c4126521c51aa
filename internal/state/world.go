package state

import "sync"

// ClearConfidenceUnknown is the sentinel for "no vision data received
// yet" on World.ClearConfidence. Kept as a sentinel float rather than an
// option type per spec.md §9's open question — see DESIGN.md.
const ClearConfidenceUnknown = -1.0

// CurrentSpeech describes the in-flight speech intent, if any.
type CurrentSpeech struct {
	Source   string
	Priority int
}

// PlannerDropCounters tallies rejected plans/actions by reason (spec.md §7).
type PlannerDropCounters struct {
	Stale       uint64
	Cooldown    uint64
	OutOfOrder  uint64
	Duplicate   uint64
}

// Planner is the planner-facing slice of World (spec.md §3.3).
type Planner struct {
	LastAcceptedSeq int64
	LastPlanMonoMS  int64
	ActiveSkill     string
	Dropped         PlannerDropCounters
}

// Conversation is the conversation-facing slice of World (spec.md §3.3).
type Conversation struct {
	SessionID string
	TurnID    int64
	Trigger   string // "ptt" | "wake_word" | ""
}

// WorkerStatus is the liveness record for one worker subprocess.
type WorkerStatus struct {
	Alive            bool
	LastHeartbeatMS  int64
	LastHealthPayload map[string]any
}

// PersonalitySnapshot mirrors the most recent personality-worker report.
type PersonalitySnapshot struct {
	Mood          string
	Intensity     float64
	Valence       float64
	Arousal       float64
	Layer         string
	IdleState     string
	SessionTimeS  float64
	DailyTimeS    float64
	LimitReached  map[string]bool
	RxMonoMS      int64
}

// World is the worker-sourced state, mutated asynchronously by the event
// router (spec.md §3.3).
//
// Invariants enforced by callers: SessionID != "" iff a conversation is
// active; starting a conversation requires both audio links up.
type World struct {
	mu sync.RWMutex

	ClearConfidence float64 // [-1, 1], -1 = unknown
	BallConfidence  float64 // [0, 1]
	BallBearingDeg  float64
	VisionFPS       float64
	VisionRxMonoMS  int64
	FrameSeq        int64
	LastFrame       []byte

	Speaking       bool
	SpeechEnergy   uint8
	PTTHeld        bool
	Current        CurrentSpeech
	MicLinkUp      bool
	SpkLinkUp      bool

	Plan Planner
	Conv Conversation

	Workers map[string]WorkerStatus

	Personality PersonalitySnapshot
}

// NewWorld returns a World with vision marked unreceived.
func NewWorld() *World {
	return &World{
		ClearConfidence: ClearConfidenceUnknown,
		Workers:         make(map[string]WorkerStatus),
	}
}

// Snapshot returns a shallow copy safe to read without holding a lock.
// Workers is copied; LastFrame is shared (treated as immutable once set).
func (w *World) Snapshot() World {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cp := *w
	cp.Workers = make(map[string]WorkerStatus, len(w.Workers))
	for k, v := range w.Workers {
		cp.Workers[k] = v
	}
	return cp
}

// Update runs fn with the write lock held.
func (w *World) Update(fn func(*World)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w)
}

// VisionAgeMS returns now - VisionRxMonoMS, or -1 if vision was never
// received (spec.md §3.3).
func (w *World) VisionAgeMS(nowMonoMS int64) int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.VisionRxMonoMS == 0 {
		return -1
	}
	return nowMonoMS - w.VisionRxMonoMS
}

// BothAudioLinksUp reports whether mic and speaker sockets are both
// connected, the precondition for starting a conversation.
func (w *World) BothAudioLinksUp() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.MicLinkUp && w.SpkLinkUp
}
