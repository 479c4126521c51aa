// Package tick implements the supervisor's 50 Hz core loop (spec.md
// §4.16), the single task that owns RobotState and WorldState and wires
// together every other package: the event bus, the mode state machine,
// the planner-action scheduler, the safety cascade, the conversation
// state machine and its choreographer, the mood sequencer, the
// guardrails, the in-process personality/affect engine, the worker
// supervisor, and the MCU clients. Grounded directly in
// _examples/original_source/supervisor_v2/core/tick_loop.py's per-tick
// ordering, generalized from its asyncio single-task model to a Go
// goroutine driven by a time.Ticker. I/O tasks hand data to the loop
// through thread-safe setters that write a mutex-guarded inbox, which
// each tick drains; they do not touch loop state directly.
package tick

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/0mdb/robot-buddy-supervisor/internal/behavior"
	"github.com/0mdb/robot-buddy-supervisor/internal/conversation"
	"github.com/0mdb/robot-buddy-supervisor/internal/dashboard"
	"github.com/0mdb/robot-buddy-supervisor/internal/envelope"
	"github.com/0mdb/robot-buddy-supervisor/internal/eventbus"
	"github.com/0mdb/robot-buddy-supervisor/internal/guardrail"
	"github.com/0mdb/robot-buddy-supervisor/internal/mcu"
	"github.com/0mdb/robot-buddy-supervisor/internal/modefsm"
	"github.com/0mdb/robot-buddy-supervisor/internal/mood"
	"github.com/0mdb/robot-buddy-supervisor/internal/params"
	"github.com/0mdb/robot-buddy-supervisor/internal/personality"
	"github.com/0mdb/robot-buddy-supervisor/internal/plan"
	"github.com/0mdb/robot-buddy-supervisor/internal/router"
	"github.com/0mdb/robot-buddy-supervisor/internal/safety"
	"github.com/0mdb/robot-buddy-supervisor/internal/skill"
	"github.com/0mdb/robot-buddy-supervisor/internal/speech"
	"github.com/0mdb/robot-buddy-supervisor/internal/state"
	"github.com/0mdb/robot-buddy-supervisor/internal/store"
	"github.com/0mdb/robot-buddy-supervisor/internal/worker"
)

const (
	defaultTickHz      = 50
	defaultTelemetryHz = 20
	speechPolicyPriority = 3
	plannedSayPriority   = 2
	aiQueryIntervalMS    = 5000
	talkingGraceTicks    = 15
	personalityFreshMS   = 3000
)

// ClockSource is the MCU clock-sync pair's externally observable state.
type ClockSource interface {
	Snapshot() state.ClockSync
}

// workerEnvelope pairs an inbound envelope with the worker it arrived from.
type workerEnvelope struct {
	worker string
	env    envelope.Envelope
}

// Deps bundles every subsystem the tick loop wires together. Fields
// left nil degrade gracefully: no MCU means motion/face stay
// disconnected and the mode FSM never leaves BOOT/ERROR; no dashboard
// or store means their broadcast/record calls are skipped.
type Deps struct {
	World  *state.World
	Robot  *state.Robot
	Params *params.Registry

	Bus       *eventbus.Bus
	ModeFSM   *modefsm.SM
	Router    *router.Router
	Scheduler *plan.Scheduler
	Behavior  *behavior.Engine

	Tracker *conversation.Tracker
	Choreo  *conversation.Choreographer
	MoodSeq *mood.Sequencer
	Guard   *guardrail.Guardrails

	Personality *personality.Engine

	SpeechPolicy  *speech.Policy
	SpeechArbiter *speech.Arbiter

	Workers *worker.Manager

	Face         *mcu.FaceClient
	Motion       *mcu.MotionClient
	MotionClock  ClockSource
	FaceClock    ClockSource
	MotionSender mcu.Sender
	FaceSender   mcu.Sender

	Dashboard *dashboard.Server
	Store     *store.Store

	VisionPolicy safety.VisionPolicy
	TickHz       int
	TelemetryHz  int

	Logger *slog.Logger
	Rand   *rand.Rand
}

// Loop is the tick loop's running state: everything in Deps plus the
// small amount of cross-goroutine inbox state fed by I/O tasks
// (worker stdout readers, MCU telemetry callbacks).
type Loop struct {
	Deps

	logger *slog.Logger
	rng    *rand.Rand

	startMonoMS int64
	tickCount   uint64

	mu          sync.Mutex
	envQueue    []workerEnvelope
	motionState mcu.StateTelemetry
	haveMotion  bool
	faceStatus  mcu.FaceStatus
	faceButtons []mcu.ButtonEvent
	faceTouches int

	lastSessionID      string
	aiLastQueryMonoMS  int64
	talkingGraceLeft   int
	wasSpeaking        bool
	lastOverlayMode    mcu.FaceSystemMode
	lastOverlayParam   uint8
	lastConvFlags      int32
	blinkedThisConv    bool
	aiFallbackMood     mcu.FaceMood
	aiFallbackIntensity float64
}

// New returns a Loop ready to Run, defaulting unset rate/logger/rand
// fields.
func New(deps Deps) *Loop {
	if deps.TickHz <= 0 {
		deps.TickHz = defaultTickHz
	}
	if deps.TelemetryHz <= 0 {
		deps.TelemetryHz = defaultTelemetryHz
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Loop{Deps: deps, logger: logger, rng: rng, lastConvFlags: -1}
}

// EnqueueEnvelope is the worker.Manager.OnEnvelope callback target: it
// buffers one inbound envelope for the next tick's step 1 drain. Safe
// for concurrent use from the worker readLoop goroutines.
func (l *Loop) EnqueueEnvelope(name string, env envelope.Envelope) {
	l.mu.Lock()
	l.envQueue = append(l.envQueue, workerEnvelope{worker: name, env: env})
	l.mu.Unlock()
}

// OnMotionState is the MotionClient.OnState callback target.
func (l *Loop) OnMotionState(st mcu.StateTelemetry) {
	l.mu.Lock()
	l.motionState = st
	l.haveMotion = true
	l.mu.Unlock()
}

// OnFaceStatus is the FaceClient.OnStatus callback target.
func (l *Loop) OnFaceStatus(st mcu.FaceStatus) {
	l.mu.Lock()
	l.faceStatus = st
	l.mu.Unlock()
}

// OnFaceButton is the FaceClient.OnButton callback target.
func (l *Loop) OnFaceButton(ev mcu.ButtonEvent) {
	l.mu.Lock()
	l.faceButtons = append(l.faceButtons, ev)
	l.mu.Unlock()
}

// OnFaceTouch is the FaceClient.OnTouch callback target.
func (l *Loop) OnFaceTouch(_ []byte) {
	l.mu.Lock()
	l.faceTouches++
	l.mu.Unlock()
}

func (l *Loop) drainInbox() ([]workerEnvelope, []mcu.ButtonEvent, int, mcu.StateTelemetry, bool, mcu.FaceStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	envs := l.envQueue
	l.envQueue = nil
	buttons := l.faceButtons
	l.faceButtons = nil
	touches := l.faceTouches
	l.faceTouches = 0
	return envs, buttons, touches, l.motionState, l.haveMotion, l.faceStatus
}

// Run drives the tick loop at Deps.TickHz until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.startMonoMS = nowMonoMS()
	l.Personality.FireBoot()

	interval := time.Second / time.Duration(l.Deps.TickHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.step()
		}
	}
}

func nowMonoMS() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// step runs one full tick, implementing spec.md §4.16's 12 ordered steps.
func (l *Loop) step() {
	l.tickCount++
	nowMS := nowMonoMS()
	dtMS := 1000.0 / float64(l.Deps.TickHz)

	// Step 1: drain buffered worker envelopes through the router, the
	// conversation handler branch, and the dashboard log fan-out.
	envs, buttons, touches, motionTel, haveMotion, faceStat := l.drainInbox()
	nowNS := nowMS * int64(time.Millisecond)
	for _, we := range envs {
		l.Router.Route(we.worker, we.env, nowMS, nowNS)
		l.handleConversationEnvelope(we.worker, we.env, nowMS)
		if l.Dashboard != nil {
			l.Dashboard.BroadcastLog(we.worker + ": " + we.env.Type)
		}
	}
	for _, btn := range buttons {
		l.Bus.OnFaceButton(faceButtonName(btn.Button), faceButtonKind(btn.Kind), nowMS)
		if btn.Kind == mcu.ButtonClick {
			if snap, ok := l.Personality.OnButtonPress(); ok {
				l.applyPersonalitySnapshot(snap, nowMS)
			}
		}
	}
	for i := 0; i < touches; i++ {
		l.Bus.OnFaceTouch(nowMS)
	}

	// Step 2: advance conversation state by dt_ms.
	l.Tracker.Update(dtMS)
	if l.Tracker.ConsumeChanged() {
		l.onConversationPhaseChange(nowMS)
	}

	// Step 3: snapshot MCU connection flags and latest telemetry into RobotState.
	motionConnected := l.Deps.MotionSender != nil && l.Deps.MotionSender.Connected()
	faceConnected := l.Deps.FaceSender != nil && l.Deps.FaceSender.Connected()
	l.Robot.Update(func(r *state.Robot) {
		r.MotionConnected = motionConnected
		r.FaceConnected = faceConnected
		r.TickMonoMS = nowMS
		r.DtMS = dtMS
		if l.Deps.MotionClock != nil {
			r.MotionClock = l.Deps.MotionClock.Snapshot()
		}
		if l.Deps.FaceClock != nil {
			r.FaceClock = l.Deps.FaceClock.Snapshot()
		}
		if haveMotion {
			r.WheelL, r.WheelR = motionTel.WheelL, motionTel.WheelR
			r.GyroZ = motionTel.GyroZ
			r.AccelX, r.AccelY, r.AccelZ = motionTel.AccelX, motionTel.AccelY, motionTel.AccelZ
			r.BatteryMV = int(motionTel.BatteryMV)
			r.FaultFlags = motionTel.Faults
			r.RangeMM = int(motionTel.RangeMM)
			r.RangeStatus = motionTel.RangeStatus
		}
		r.Face.MoodID = faceStat.MoodID
		r.Face.GestureID = faceStat.ActiveGesture
		r.Face.SystemModeID = faceStat.SystemMode
	})

	robotSnap := l.Robot.Snapshot()
	worldSnap := l.World.Snapshot()

	// Step 4: event bus ingest(robot, world).
	l.Bus.IngestMode(l.ModeFSM.Mode(), robotSnap, worldSnap, nowMS)

	// Step 5: run mode state machine; emit a personality system event on BOOT->IDLE.
	prevMode := l.ModeFSM.Mode()
	l.ModeFSM.Update(robotSnap.MotionConnected, robotSnap.FaultFlags)
	if prevMode == state.Boot && l.ModeFSM.Mode() == state.Idle {
		snap := l.Personality.OnSystemEvent("boot")
		l.applyPersonalitySnapshot(snap, nowMS)
	}
	mode := l.ModeFSM.Mode()

	// Personality runs its own 1Hz decay/idle-rule cadence independent
	// of the speech/button/AI event impulses that call FastPath directly.
	if uint64(l.Deps.TickHz) > 0 && l.tickCount%uint64(l.Deps.TickHz) == 0 {
		snap := l.Personality.Tick1Hz(1.0)
		l.applyPersonalitySnapshot(snap, nowMS)
	}

	// Step 6: behavior engine step(robot, world, recent_events) -> desired_twist.
	vision := skill.Vision{BallConfidence: worldSnap.BallConfidence, BallBearingDeg: worldSnap.BallBearingDeg}
	activeSkill := skill.Name(l.Scheduler.Snapshot().ActiveSkill)
	desired := l.Behavior.Step(mode, robotSnap, activeSkill, vision)

	// Step 7: safety gate returns capped twist; store both.
	visionAgeMS := l.World.VisionAgeMS(nowMS)
	capped := safety.Apply(desired, mode, l.Robot, worldSnap, visionAgeMS, l.Deps.VisionPolicy)
	l.Robot.Update(func(r *state.Robot) {
		r.Commanded = desired
		r.Capped = capped
	})

	// Step 8: emit MCU outputs.
	if l.Deps.Motion != nil {
		l.Deps.Motion.SendSetTwist(capped.VmmS, capped.WmradS)
	}
	l.composeFace(nowMS, dtMS, robotSnap, worldSnap, mode)

	// Step 9: action scheduler pop_due_actions(now, face_locked).
	faceLocked := !faceConnected
	for _, action := range l.Scheduler.PopDueActions(nowMS, faceLocked) {
		l.dispatchAction(action, nowMS)
	}

	// Step 10: speech policy over the recent event tail, priority 3.
	recent := l.Bus.Snapshot()
	faceListening := l.Tracker.Phase == conversation.PhaseListening
	if intent, drops := l.SpeechPolicy.Generate(recent, faceListening, worldSnap.Speaking, nowMS); intent != nil {
		intent.Priority = speechPolicyPriority
		l.submitSpeech(*intent, nowMS)
		for _, d := range drops {
			l.logger.Debug("speech policy drop", "reason", d)
		}
	}

	// Step 11: planner query throttle.
	if l.Deps.Workers != nil && l.Deps.Workers.WorkerAlive("ai") && nowMS-l.aiLastQueryMonoMS >= aiQueryIntervalMS {
		l.Deps.Workers.SendTo("ai", "core.world.snapshot", worldSnapshotPayload(worldSnap, robotSnap, mode))
		l.aiLastQueryMonoMS = nowMS
	}

	// Step 12: every Nth tick, broadcast a serialized merged state.
	n := uint64(l.Deps.TickHz / l.Deps.TelemetryHz)
	if n == 0 {
		n = 1
	}
	if l.tickCount%n == 0 && l.Deps.Dashboard != nil {
		l.Deps.Dashboard.BroadcastTelemetry()
	}
}

func worldSnapshotPayload(w state.World, r state.Robot, mode state.Mode) map[string]any {
	return map[string]any{
		"mode":             string(mode),
		"ball_confidence":  w.BallConfidence,
		"clear_confidence": w.ClearConfidence,
		"range_mm":         r.RangeMM,
		"battery_mv":       r.BatteryMV,
		"active_skill":     w.Plan.ActiveSkill,
	}
}

func faceButtonName(b mcu.FaceButtonID) string {
	if b == mcu.ButtonPTT {
		return "ptt"
	}
	return "action"
}

func faceButtonKind(k mcu.FaceButtonEventType) string {
	switch k {
	case mcu.ButtonPress:
		return "press"
	case mcu.ButtonRelease:
		return "release"
	case mcu.ButtonToggle:
		return "toggle"
	default:
		return "click"
	}
}

func (l *Loop) dispatchAction(action plan.Action, nowMS int64) {
	switch action.Kind {
	case "say":
		l.submitSpeech(speech.Intent{Text: action.Text, Source: "plan", Priority: plannedSayPriority, TMonoMS: nowMS}, nowMS)
	case "emote":
		if mood, ok := parseMoodName(action.Name); ok {
			l.MoodSeq.RequestMood(mood, action.Intensity)
		}
	case "gesture":
		if g, ok := parseGestureName(action.Name); ok && l.Deps.Face != nil {
			l.Deps.Face.SendGesture(g, 500)
		}
	case "skill":
		// ActiveSkill is already applied by plan.Scheduler.SchedulePlan.
	}
}

func (l *Loop) submitSpeech(intent speech.Intent, nowMS int64) {
	accepted, _, _ := l.SpeechArbiter.Submit(intent)
	if accepted {
		l.World.Update(func(w *state.World) {
			w.Current = state.CurrentSpeech{Source: intent.Source, Priority: intent.Priority}
		})
	}
}

func (l *Loop) applyPersonalitySnapshot(snap personality.Snapshot, nowMS int64) {
	l.World.Update(func(w *state.World) {
		w.Personality = state.PersonalitySnapshot{
			Mood:         snap.Mood.String(),
			Intensity:    snap.Intensity,
			Valence:      snap.Valence,
			Arousal:      snap.Arousal,
			Layer:        "0",
			IdleState:    snap.IdleState,
			LimitReached: map[string]bool{},
			RxMonoMS:     nowMS,
		}
	})
}

func parseMoodName(name string) (mcu.FaceMood, bool) {
	for id := mcu.FaceMood(0); int(id) < 13; id++ {
		if id.String() == name {
			return id, true
		}
	}
	return mcu.MoodNeutral, false
}

func parseGestureName(name string) (mcu.FaceGesture, bool) {
	names := map[string]mcu.FaceGesture{
		"blink": mcu.GestureBlink, "nod": mcu.GestureNod, "shake": mcu.GestureShake,
		"tilt": mcu.GestureTilt, "wink": mcu.GestureWink, "yawn": mcu.GestureYawn,
		"squint": mcu.GestureSquint, "raise_brow": mcu.GestureRaiseBrow,
		"look_around": mcu.GestureLookAround, "sparkle": mcu.GestureSparkle,
		"frown": mcu.GestureFrown, "smile": mcu.GestureSmile, "wiggle": mcu.GestureWiggle,
	}
	g, ok := names[name]
	return g, ok
}
