package plan

// cooldownTypeMS/cooldownKeyMS mirror the table in spec.md §4.10.
var cooldownTypeMS = map[string]int64{
	"say": 3000, "emote": 600, "gesture": 800, "skill": 500,
}

var cooldownKeyMS = map[string]int64{
	"say": 12000, "emote": 1800, "gesture": 2000, "skill": 500,
}

const defaultActiveSkill = "patrol_drift"

type queuedAction struct {
	action        Action
	expiresMonoMS int64
}

// Snapshot is the scheduler's externally-observable state.
type Snapshot struct {
	ActiveSkill          string
	QueueDepth           int
	PlanDroppedStale     uint64
	PlanDroppedCooldown  uint64
	PlanDroppedDuplicate uint64
	PlanDroppedOutOfOrder uint64
}

// Scheduler queues validated non-skill actions and tracks the active
// skill, applying cooldowns at enqueue time (spec.md §4.10).
type Scheduler struct {
	queue []queuedAction

	lastActionTypeMS map[string]int64
	lastActionKeyMS  map[string]int64

	droppedStale      uint64
	droppedCooldown   uint64
	droppedDuplicate  uint64
	droppedOutOfOrder uint64

	ActiveSkill string
}

// NewScheduler returns a Scheduler with the default active skill.
func NewScheduler() *Scheduler {
	return &Scheduler{
		lastActionTypeMS: make(map[string]int64),
		lastActionKeyMS:  make(map[string]int64),
		ActiveSkill:      defaultActiveSkill,
	}
}

// SchedulePlan enqueues a validated plan's actions if it isn't stale,
// gating each action by its type/key cooldown.
func (s *Scheduler) SchedulePlan(v Validated, nowMonoMS, issuedMonoMS int64) {
	if nowMonoMS-issuedMonoMS > v.TTLMS {
		s.droppedStale++
		return
	}

	expiresAt := issuedMonoMS + v.TTLMS
	for _, action := range v.Actions {
		if s.onCooldown(action, nowMonoMS) {
			s.droppedCooldown++
			continue
		}
		s.markAction(action, nowMonoMS)

		if action.Kind == "skill" {
			s.ActiveSkill = action.Name
			continue
		}
		s.queue = append(s.queue, queuedAction{action: action, expiresMonoMS: expiresAt})
	}
}

// PopDueActions drains the queue, dropping expired items (stale) and,
// while faceLocked, emote/gesture items (cooldown), returning the rest.
func (s *Scheduler) PopDueActions(nowMonoMS int64, faceLocked bool) []Action {
	var due []Action
	for _, item := range s.queue {
		if item.expiresMonoMS < nowMonoMS {
			s.droppedStale++
			continue
		}
		if faceLocked && (item.action.Kind == "emote" || item.action.Kind == "gesture") {
			s.droppedCooldown++
			continue
		}
		due = append(due, item.action)
	}
	s.queue = s.queue[:0]
	return due
}

// ClearQueuedActions discards the queue, returning how many were dropped.
func (s *Scheduler) ClearQueuedActions() int {
	n := len(s.queue)
	s.queue = s.queue[:0]
	return n
}

// NoteDuplicateDropped records a transport-level dedup rejection
// (spec.md §4.11 step 1), tracked here alongside the other counters.
func (s *Scheduler) NoteDuplicateDropped() { s.droppedDuplicate++ }

// NoteOutOfOrderDropped records a plan_seq <= last_accepted_seq rejection.
func (s *Scheduler) NoteOutOfOrderDropped() { s.droppedOutOfOrder++ }

// Snapshot returns the scheduler's current externally-observable state.
func (s *Scheduler) Snapshot() Snapshot {
	return Snapshot{
		ActiveSkill:           s.ActiveSkill,
		QueueDepth:            len(s.queue),
		PlanDroppedStale:      s.droppedStale,
		PlanDroppedCooldown:   s.droppedCooldown,
		PlanDroppedDuplicate:  s.droppedDuplicate,
		PlanDroppedOutOfOrder: s.droppedOutOfOrder,
	}
}

func (s *Scheduler) onCooldown(action Action, nowMonoMS int64) bool {
	typeCD := cooldownTypeMS[action.Kind]
	lastType, ok := s.lastActionTypeMS[action.Kind]
	if !ok {
		lastType = -1 << 40
	}
	if nowMonoMS-lastType < typeCD {
		return true
	}

	key := action.Key()
	if key != "" {
		keyCD := cooldownKeyMS[action.Kind]
		lastKey, ok := s.lastActionKeyMS[key]
		if !ok {
			lastKey = -1 << 40
		}
		if nowMonoMS-lastKey < keyCD {
			return true
		}
	}
	return false
}

func (s *Scheduler) markAction(action Action, nowMonoMS int64) {
	s.lastActionTypeMS[action.Kind] = nowMonoMS
	if key := action.Key(); key != "" {
		s.lastActionKeyMS[key] = nowMonoMS
	}
}
