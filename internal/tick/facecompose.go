package tick

import (
	"context"

	"github.com/google/uuid"

	"github.com/0mdb/robot-buddy-supervisor/internal/conversation"
	"github.com/0mdb/robot-buddy-supervisor/internal/envelope"
	"github.com/0mdb/robot-buddy-supervisor/internal/mcu"
	"github.com/0mdb/robot-buddy-supervisor/internal/state"
)

const lowBatteryThresholdMV = 6600
const lowBatteryFloorMV = 5800

// composeFace implements spec.md §4.16.1's per-tick face pipeline, run
// only when the face MCU is connected and not under a manual lock (a
// manual lock is represented by a nil Face client in tests/headless
// runs; there is no separate operator-lock flag in this module).
func (l *Loop) composeFace(nowMS int64, dtMS float64, robot state.Robot, world state.World, mode state.Mode) {
	if l.Deps.Face == nil || !robot.FaceConnected {
		return
	}

	l.writeSystemOverlay(mode, robot)
	l.writeTalking(world, dtMS)
	l.writeConvState()

	fired := l.Choreo.Update(dtMS)
	for _, action := range fired {
		switch action.Kind {
		case conversation.ActionGesture:
			l.Deps.Face.SendGesture(action.Gesture, uint16(action.DurationMS))
		case conversation.ActionMoodNudge:
			l.MoodSeq.RequestMood(action.Mood, action.Intensity)
		}
	}

	targetMood, targetIntensity := l.resolveFaceTarget(world, nowMS)
	l.MoodSeq.RequestMood(targetMood, targetIntensity)
	l.MoodSeq.Update(dtMS * 1.0)

	if l.MoodSeq.ConsumeBlink() && !l.Choreo.HasBlink() {
		l.Deps.Face.SendGesture(mcu.GestureBlink, 180)
	}

	gazeX, gazeY, gazeActive := l.resolveGaze()

	changed := l.MoodSeq.Transitioning() || l.MoodSeq.ConsumeChanged()
	if changed || gazeActive {
		var gx, gy int8
		if gazeActive {
			gx, gy = int8(gazeX), int8(gazeY)
		}
		l.Deps.Face.SendSetState(l.MoodSeq.MoodID, uint8(l.MoodSeq.Intensity*255), gx, gy, 255)
	}

	l.Robot.Update(func(r *state.Robot) {
		r.Face.Talking = world.Speaking
		r.Face.Listening = l.Tracker.Phase == conversation.PhaseListening
		r.Face.ConvPhaseID = uint8(convStateFor(l.Tracker.Phase))
		r.Face.SeqPhase = uint8(l.MoodSeq.Phase)
		r.Face.SeqMoodID = uint8(l.MoodSeq.MoodID)
		r.Face.SeqIntensity = l.MoodSeq.Intensity
	})
}

// writeSystemOverlay writes SET_SYSTEM only on change of (overlay, param).
func (l *Loop) writeSystemOverlay(mode state.Mode, robot state.Robot) {
	overlay := mcu.SystemNone
	var param uint8
	switch {
	case mode == state.Boot:
		overlay = mcu.SystemBooting
	case mode == state.Error:
		overlay = mcu.SystemErrorDisplay
	case robot.BatteryMV > 0 && robot.BatteryMV < lowBatteryThresholdMV:
		overlay = mcu.SystemLowBattery
		param = batteryFillLevel(robot.BatteryMV)
	}

	if overlay == l.lastOverlayMode && param == l.lastOverlayParam {
		return
	}
	l.lastOverlayMode = overlay
	l.lastOverlayParam = param
	l.Deps.Face.SendSetSystem(overlay, 0, param)
}

func batteryFillLevel(batteryMV int) uint8 {
	if batteryMV <= lowBatteryFloorMV {
		return 0
	}
	if batteryMV >= lowBatteryThresholdMV {
		return 255
	}
	frac := float64(batteryMV-lowBatteryFloorMV) / float64(lowBatteryThresholdMV-lowBatteryFloorMV)
	return uint8(frac * 255)
}

// writeTalking writes SET_TALKING(true, energy) while speaking or
// during a post-finish 15-tick grace, and SET_TALKING(false, 0) once
// on the falling edge.
func (l *Loop) writeTalking(world state.World, dtMS float64) {
	if world.Speaking {
		l.talkingGraceLeft = talkingGraceTicks
		l.Deps.Face.SendSetTalking(true, world.SpeechEnergy)
		l.wasSpeaking = true
		return
	}
	if l.talkingGraceLeft > 0 {
		l.talkingGraceLeft--
		l.Deps.Face.SendSetTalking(true, 0)
		return
	}
	if l.wasSpeaking {
		l.wasSpeaking = false
		l.Deps.Face.SendSetTalking(false, 0)
	}
}

// writeConvState writes the flag mask (on change) and SET_CONV_STATE,
// and notifies the choreographer of the transition.
func (l *Loop) writeConvState() {
	flags := l.Tracker.Flags()
	if flags >= 0 && flags != l.lastConvFlags {
		l.lastConvFlags = flags
		l.Deps.Face.SendSetFlags(uint8(flags))
	}
	l.Deps.Face.SendSetConvState(convStateFor(l.Tracker.Phase))
}

func convStateFor(p conversation.Phase) mcu.FaceConvState {
	switch p {
	case conversation.PhaseAttention:
		return mcu.ConvAttention
	case conversation.PhaseListening:
		return mcu.ConvListening
	case conversation.PhasePTT:
		return mcu.ConvPTT
	case conversation.PhaseThinking:
		return mcu.ConvThinking
	case conversation.PhaseSpeaking:
		return mcu.ConvSpeaking
	case conversation.PhaseError:
		return mcu.ConvError
	case conversation.PhaseDone:
		return mcu.ConvDone
	default:
		return mcu.ConvIdle
	}
}

// onConversationPhaseChange fires the choreographer for the transition
// and drives personality's conversation-start/end impulses.
func (l *Loop) onConversationPhaseChange(nowMS int64) {
	l.Choreo.OnTransition(l.Tracker.PrevPhase, l.Tracker.Phase)
	l.blinkedThisConv = false

	switch {
	case l.Tracker.Phase != conversation.PhaseIdle && l.Tracker.PrevPhase == conversation.PhaseIdle:
		trigger := "ptt"
		if l.Tracker.Phase == conversation.PhaseListening {
			trigger = "wake_word"
		}
		snap := l.Personality.OnConversationStarted(trigger)
		l.applyPersonalitySnapshot(snap, nowMS)
		if l.Deps.Store != nil {
			l.lastSessionID = uuid.NewString()
			_ = l.Deps.Store.RecordSessionStart(context.Background(), l.lastSessionID, trigger, nowMS)
		}
	case l.Tracker.Phase == conversation.PhaseIdle && l.Tracker.PrevPhase != conversation.PhaseIdle:
		snap := l.Personality.OnConversationEnded()
		l.applyPersonalitySnapshot(snap, nowMS)
		if l.Deps.Store != nil && l.lastSessionID != "" {
			_ = l.Deps.Store.RecordSessionEnd(context.Background(), l.lastSessionID, nowMS, 0)
			l.lastSessionID = ""
		}
	}
}

// resolveFaceTarget picks (mood, intensity) by precedence: conversation
// clamp, fresh personality snapshot, AI-emotion fallback (guardrails
// applied only to the fallback branch).
func (l *Loop) resolveFaceTarget(world state.World, nowMS int64) (mcu.FaceMood, float64) {
	if hint := l.Tracker.MoodHintFor(); hint.Valid {
		return hint.Mood, hint.Intensity
	}

	age := nowMS - world.Personality.RxMonoMS
	if world.Personality.RxMonoMS != 0 && age < personalityFreshMS {
		if mood, ok := parseMoodName(world.Personality.Mood); ok {
			return mood, world.Personality.Intensity
		}
	}

	convActive := l.Tracker.Phase != conversation.PhaseIdle
	return l.Guard.Check(l.aiFallbackMood, l.aiFallbackIntensity, convActive, float64(nowMS))
}

// resolveGaze composes gaze: choreographer ramp > conversation-state
// override > (0,0).
func (l *Loop) resolveGaze() (float64, float64, bool) {
	if g := l.Choreo.GazeOverride(); g.Valid {
		return g.X, g.Y, true
	}
	return l.Tracker.GazeForSend()
}

// handleConversationEnvelope advances the conversation tracker and the
// AI-emotion fallback cache from one inbound envelope, a responsibility
// kept here (rather than in internal/router) since it is conversation/
// face-pipeline specific, not a World mutation.
func (l *Loop) handleConversationEnvelope(workerName string, env envelope.Envelope, nowMS int64) {
	switch env.Type {
	case "ear.conversation.wake_word", "ear.conversation.ptt_pressed":
		if env.Type == "ear.conversation.ptt_pressed" {
			l.Tracker.PTTHeld = true
		}
		l.Tracker.SetPhase(conversation.PhaseAttention)
	case "ear.conversation.ptt_released":
		l.Tracker.PTTHeld = false
	case "ear.conversation.speech_started":
		if l.Tracker.Phase == conversation.PhaseListening || l.Tracker.Phase == conversation.PhasePTT {
			l.Tracker.SetPhase(conversation.PhaseThinking)
		}
	case "tts.event.started":
		l.Tracker.SetPhase(conversation.PhaseSpeaking)
	case "tts.event.finished", "tts.event.cancelled":
		l.Tracker.SetPhase(conversation.PhaseDone)
	case "tts.event.error":
		l.Tracker.SetPhase(conversation.PhaseError)
	case "ai.conversation.emotion":
		label, _ := env.Payload["label"].(string)
		intensity, _ := env.Payload["intensity"].(float64)
		snap := l.Personality.OnAIEmotion(label, intensity)
		if mood, ok := parseMoodName(label); ok {
			l.aiFallbackMood = mood
			l.aiFallbackIntensity = intensity
		}
		l.applyPersonalitySnapshot(snap, nowMS)
	}

	if world := l.World.Snapshot(); world.Speaking != l.wasSpeaking {
		if snap, ok := l.Personality.OnSpeechActivity(world.Speaking); ok {
			l.applyPersonalitySnapshot(snap, nowMS)
		}
	}
}
