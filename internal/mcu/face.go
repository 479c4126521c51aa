package mcu

import (
	"log/slog"

	"github.com/0mdb/robot-buddy-supervisor/internal/frame"
)

// FaceClient builds face-MCU commands and decodes its telemetry.
type FaceClient struct {
	*client
}

// NewFaceClient returns a client that writes through sender using the
// negotiated frame version.
func NewFaceClient(sender Sender, version frame.Version, logger *slog.Logger) *FaceClient {
	return &FaceClient{client: newClient("face", sender, version, logger)}
}

// SendSetState pushes the current mood/intensity/gaze/brightness. Only
// written when the sequencer is transitioning, changed this tick, or a
// gaze override is active (spec.md §4.16.1).
func (f *FaceClient) SendSetState(mood FaceMood, intensity uint8, gazeX, gazeY int8, brightness uint8) bool {
	payload := []byte{uint8(mood), intensity, uint8(gazeX), uint8(gazeY), brightness}
	return f.send(FaceCmdSetState, payload)
}

// SendGesture triggers a one-shot gesture animation.
func (f *FaceClient) SendGesture(g FaceGesture, durationMS uint16) bool {
	payload := []byte{uint8(g), uint8(durationMS), uint8(durationMS >> 8)}
	return f.send(FaceCmdGesture, payload)
}

// SendSetSystem writes the overlay mode; sent only on change (spec.md §4.3).
func (f *FaceClient) SendSetSystem(mode FaceSystemMode, phase, param uint8) bool {
	return f.send(FaceCmdSetSystem, []byte{uint8(mode), phase, param})
}

// SendSetTalking toggles the talking indicator and energy level.
func (f *FaceClient) SendSetTalking(talking bool, energy uint8) bool {
	var t uint8
	if talking {
		t = 1
	}
	return f.send(FaceCmdSetTalking, []byte{t, energy})
}

// SendSetFlags writes the feature bitmask; sent once on connect and on
// override (spec.md §4.3).
func (f *FaceClient) SendSetFlags(flags uint8) bool {
	return f.send(FaceCmdSetFlags, []byte{flags})
}

// SendSetConvState mirrors the conversation phase to the face MCU.
func (f *FaceClient) SendSetConvState(phase FaceConvState) bool {
	return f.send(FaceCmdSetConvState, []byte{uint8(phase)})
}

// SendSetProtocolVersion negotiates the frame version once after open.
func (f *FaceClient) SendSetProtocolVersion(ver uint8) bool {
	return f.send(frame.CommonSetProtocolVersion, []byte{ver})
}

// FaceStatus is the decoded 4-byte FACE_STATUS payload.
type FaceStatus struct {
	MoodID        uint8
	ActiveGesture uint8
	SystemMode    uint8
	Flags         uint8
}

// ButtonEvent is the decoded BUTTON_EVENT payload.
type ButtonEvent struct {
	Button FaceButtonID
	Kind   FaceButtonEventType
}

// OnStatus registers fn for decoded FACE_STATUS telemetry.
func (f *FaceClient) OnStatus(fn func(FaceStatus)) {
	f.On(FaceTelStatus, func(pkt frame.Packet) {
		p := pkt.Payload
		if len(p) < 4 {
			f.logger.Debug("face status decode error", "error", frame.ErrTooShort)
			return
		}
		fn(FaceStatus{MoodID: p[0], ActiveGesture: p[1], SystemMode: p[2], Flags: p[3]})
	})
}

// OnButton registers fn for decoded BUTTON_EVENT telemetry.
func (f *FaceClient) OnButton(fn func(ButtonEvent)) {
	f.On(FaceTelButton, func(pkt frame.Packet) {
		p := pkt.Payload
		if len(p) < 2 {
			f.logger.Debug("face button decode error", "error", frame.ErrTooShort)
			return
		}
		fn(ButtonEvent{Button: FaceButtonID(p[0]), Kind: FaceButtonEventType(p[1])})
	})
}

// OnTouch registers fn for raw TOUCH_EVENT telemetry payloads.
func (f *FaceClient) OnTouch(fn func(payload []byte)) {
	f.On(FaceTelTouch, func(pkt frame.Packet) { fn(pkt.Payload) })
}

// OnHeartbeat registers fn, invoked (with no payload data needed) every
// time a HEARTBEAT telemetry frame arrives.
func (f *FaceClient) OnHeartbeat(fn func()) {
	f.On(FaceTelHeartbeat, func(frame.Packet) { fn() })
}

// PackFlags ORs the named feature bits into a single byte.
func PackFlags(idleWander, blink, sparkle, breathing, saccade, track, afterglow bool) uint8 {
	var flags uint8
	set := func(b bool, bit uint8) {
		if b {
			flags |= bit
		}
	}
	set(idleWander, FlagIdleWander)
	set(blink, FlagBlink)
	set(sparkle, FlagSparkle)
	set(breathing, FlagBreathing)
	set(saccade, FlagSaccade)
	set(track, FlagTrack)
	set(afterglow, FlagAfterglow)
	return flags
}
