// Package mcu implements the typed command builders and telemetry
// decoders shared by both MCU clients (motion and face), per spec.md
// §4.3. Wire layouts are grounded in
// _examples/original_source/supervisor_v2/devices/protocol.py.
package mcu

// Motion command/telemetry types (spec.md §4.3).
const (
	CmdSetTwist     uint8 = 0x10
	CmdStop         uint8 = 0x11
	CmdEstop        uint8 = 0x12
	CmdSetLimits    uint8 = 0x13
	CmdClearFaults  uint8 = 0x14
	CmdSetConfig    uint8 = 0x15
	TelState        uint8 = 0x80
)

// Face command/telemetry types.
const (
	FaceCmdSetState     uint8 = 0x20
	FaceCmdGesture      uint8 = 0x21
	FaceCmdSetSystem    uint8 = 0x22
	FaceCmdSetTalking   uint8 = 0x23
	FaceCmdSetFlags     uint8 = 0x24
	FaceCmdSetConvState uint8 = 0x25

	FaceTelStatus    uint8 = 0x90
	FaceTelTouch     uint8 = 0x91
	FaceTelButton    uint8 = 0x92
	FaceTelHeartbeat uint8 = 0x93
)

// FaceButtonID identifies a physical face button.
type FaceButtonID uint8

const (
	ButtonPTT    FaceButtonID = 0
	ButtonAction FaceButtonID = 1
)

// FaceButtonEventType is the kind of button transition reported.
type FaceButtonEventType uint8

const (
	ButtonPress  FaceButtonEventType = 0
	ButtonRelease FaceButtonEventType = 1
	ButtonToggle FaceButtonEventType = 2
	ButtonClick  FaceButtonEventType = 3
)

// FaceMood enumerates the 13 Russell-circumplex mood anchors the face
// can display (the same 13 names internal/affect's anchor table is
// keyed by).
type FaceMood uint8

const (
	MoodNeutral FaceMood = iota
	MoodHappy
	MoodExcited
	MoodContent
	MoodCalm
	MoodTired
	MoodBored
	MoodSad
	MoodScared
	MoodAngry
	MoodSurprised
	MoodCurious
	MoodConfused
)

var moodNames = [...]string{
	MoodNeutral: "neutral", MoodHappy: "happy", MoodExcited: "excited",
	MoodContent: "content", MoodCalm: "calm", MoodTired: "tired",
	MoodBored: "bored", MoodSad: "sad", MoodScared: "scared",
	MoodAngry: "angry", MoodSurprised: "surprised", MoodCurious: "curious",
	MoodConfused: "confused",
}

// String returns the lowercase Go-native anchor name, used when
// serializing a FaceMood onto a wire-facing string field such as
// state.PersonalitySnapshot.Mood.
func (m FaceMood) String() string {
	if int(m) < len(moodNames) {
		return moodNames[m]
	}
	return "unknown"
}

// FaceGesture enumerates one-shot face animations.
type FaceGesture uint8

const (
	GestureBlink FaceGesture = iota
	GestureNod
	GestureShake
	GestureTilt
	GestureWink
	GestureYawn
	GestureSquint
	GestureRaiseBrow
	GestureLookAround
	GestureSparkle
	GestureFrown
	GestureSmile
	GestureWiggle
)

// FaceSystemMode is an overlay drawn on top of the mood face.
type FaceSystemMode uint8

const (
	SystemNone FaceSystemMode = iota
	SystemBooting
	SystemErrorDisplay
	SystemLowBattery
	SystemUpdating
	SystemShuttingDown
)

// FaceConvState mirrors internal/conversation's phase enum on the wire.
type FaceConvState uint8

const (
	ConvIdle FaceConvState = iota
	ConvAttention
	ConvListening
	ConvPTT
	ConvThinking
	ConvSpeaking
	ConvError
	ConvDone
)

// Face feature flags, packed into a single byte (7-bit mask).
const (
	FlagIdleWander uint8 = 1 << 0
	FlagBlink      uint8 = 1 << 1
	FlagSparkle    uint8 = 1 << 2
	FlagBreathing  uint8 = 1 << 3
	FlagSaccade    uint8 = 1 << 4
	FlagTrack      uint8 = 1 << 5
	FlagAfterglow  uint8 = 1 << 6
)

// AllFlags is the default mask with every feature enabled.
const AllFlags = FlagIdleWander | FlagBlink | FlagSparkle | FlagBreathing | FlagSaccade | FlagTrack | FlagAfterglow
