package mcu

import (
	"bytes"
	"testing"

	"github.com/0mdb/robot-buddy-supervisor/internal/frame"
	"github.com/0mdb/robot-buddy-supervisor/internal/state"
)

type fakeSender struct {
	connected bool
	writes    [][]byte
}

func (f *fakeSender) Write(b []byte) bool {
	f.writes = append(f.writes, append([]byte(nil), b...))
	return true
}

func (f *fakeSender) Connected() bool { return f.connected }

// stripDelim undoes EncodeV1/EncodeV2's trailing 0x00 delimiter, mirroring
// what a serial extractor does before handing a frame to Decode.
func stripDelim(b []byte) []byte {
	if len(b) == 0 || b[len(b)-1] != 0x00 {
		return b
	}
	return b[:len(b)-1]
}

func TestMotionClientDropsCommandsWhileDisconnected(t *testing.T) {
	sender := &fakeSender{connected: false}
	m := NewMotionClient(sender, frame.V1, nil)

	if m.SendSetTwist(100, -50) {
		t.Fatal("expected SendSetTwist to report failure while disconnected")
	}
	if len(sender.writes) != 0 {
		t.Fatalf("expected no frames written while disconnected, got %d", len(sender.writes))
	}
}

func TestMotionClientSendSetTwistEncodesLittleEndianPayload(t *testing.T) {
	sender := &fakeSender{connected: true}
	m := NewMotionClient(sender, frame.V1, nil)

	if !m.SendSetTwist(300, -20) {
		t.Fatal("expected SendSetTwist to succeed while connected")
	}
	if len(sender.writes) != 1 {
		t.Fatalf("expected exactly one frame written, got %d", len(sender.writes))
	}

	pkt, err := frame.Decode(frame.V1, stripDelim(sender.writes[0]))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pkt.Type != CmdSetTwist {
		t.Fatalf("type = %#x, want CmdSetTwist", pkt.Type)
	}
	if len(pkt.Payload) != 4 {
		t.Fatalf("payload len = %d, want 4", len(pkt.Payload))
	}
	gotV := int16(pkt.Payload[0]) | int16(pkt.Payload[1])<<8
	gotW := int16(pkt.Payload[2]) | int16(pkt.Payload[3])<<8
	if gotV != 300 || gotW != -20 {
		t.Fatalf("decoded twist = (%d, %d), want (300, -20)", gotV, gotW)
	}
}

func TestMotionClientSeqIncrementsAcrossSends(t *testing.T) {
	sender := &fakeSender{connected: true}
	m := NewMotionClient(sender, frame.V1, nil)

	m.SendSetTwist(0, 0)
	m.SendSetTwist(0, 0)
	m.SendStop(1)

	var seqs []uint8
	for _, w := range sender.writes {
		pkt, err := frame.Decode(frame.V1, stripDelim(w))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		seqs = append(seqs, uint8(pkt.Seq))
	}
	if len(seqs) != 3 || seqs[0] != 1 || seqs[1] != 2 || seqs[2] != 3 {
		t.Fatalf("sequence numbers = %v, want [1 2 3]", seqs)
	}
}

func TestMotionClientOnStateDecodesFullTelemetry(t *testing.T) {
	sender := &fakeSender{connected: true}
	m := NewMotionClient(sender, frame.V1, nil)

	var got StateTelemetry
	var fired bool
	m.OnState(func(st StateTelemetry) {
		got = st
		fired = true
	})

	payload := []byte{
		0x64, 0x00, // wheelL = 100
		0x9c, 0xff, // wheelR = -100
		0x0a, 0x00, // gyroZ = 10
		0x01, 0x00, // accelX = 1
		0x02, 0x00, // accelY = 2
		0x03, 0x00, // accelZ = 3
		0x50, 0x30, // batteryMV = 0x3050
		0x01, 0x00, // faults bit 0
		0xe8, 0x03, // rangeMM = 1000
		0x01, // rangeStatus = 1
	}
	raw := stripDelim(frame.EncodeV1(TelState, 7, payload))
	m.HandleFrame(raw)

	if !fired {
		t.Fatal("expected OnState callback to fire")
	}
	if got.WheelL != 100 || got.WheelR != -100 {
		t.Fatalf("wheel speeds = (%d, %d), want (100, -100)", got.WheelL, got.WheelR)
	}
	if got.RangeMM != 1000 || got.RangeStatus != state.RangeStatus(1) {
		t.Fatalf("range = (%d, %v), want (1000, 1)", got.RangeMM, got.RangeStatus)
	}
	if got.Faults != state.Fault(1) {
		t.Fatalf("faults = %v, want 1", got.Faults)
	}
}

func TestMotionClientOnStateIgnoresShortPayload(t *testing.T) {
	sender := &fakeSender{connected: true}
	m := NewMotionClient(sender, frame.V1, nil)

	fired := false
	m.OnState(func(StateTelemetry) { fired = true })

	raw := stripDelim(frame.EncodeV1(TelState, 1, []byte{0x01, 0x02}))
	m.HandleFrame(raw)

	if fired {
		t.Fatal("expected OnState to not fire for a too-short payload")
	}
}

func TestFaceClientSendSetStateEncodesPayload(t *testing.T) {
	sender := &fakeSender{connected: true}
	f := NewFaceClient(sender, frame.V1, nil)

	if !f.SendSetState(MoodHappy, 200, -5, 10, 255) {
		t.Fatal("expected SendSetState to succeed")
	}
	pkt, err := frame.Decode(frame.V1, stripDelim(sender.writes[0]))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []byte{uint8(MoodHappy), 200, 0xFB, 10, 255} // 0xFB is int8(-5) as a byte
	if !bytes.Equal(pkt.Payload, want) {
		t.Fatalf("payload = %v, want %v", pkt.Payload, want)
	}
}

func TestFaceClientOnStatusAndOnButtonDecode(t *testing.T) {
	sender := &fakeSender{connected: true}
	f := NewFaceClient(sender, frame.V1, nil)

	var status FaceStatus
	f.OnStatus(func(s FaceStatus) { status = s })
	statusRaw := stripDelim(frame.EncodeV1(FaceTelStatus, 1, []byte{uint8(MoodCurious), 3, uint8(SystemLowBattery), AllFlags}))
	f.HandleFrame(statusRaw)
	if status.MoodID != uint8(MoodCurious) || status.SystemMode != uint8(SystemLowBattery) {
		t.Fatalf("status = %+v, unexpected decode", status)
	}

	var btn ButtonEvent
	f.OnButton(func(b ButtonEvent) { btn = b })
	btnRaw := stripDelim(frame.EncodeV1(FaceTelButton, 2, []byte{uint8(ButtonAction), uint8(ButtonClick)}))
	f.HandleFrame(btnRaw)
	if btn.Button != ButtonAction || btn.Kind != ButtonClick {
		t.Fatalf("button = %+v, want {Action Click}", btn)
	}
}

func TestFaceClientOnTouchPassesRawPayload(t *testing.T) {
	sender := &fakeSender{connected: true}
	f := NewFaceClient(sender, frame.V1, nil)

	var got []byte
	f.OnTouch(func(payload []byte) { got = payload })
	raw := stripDelim(frame.EncodeV1(FaceTelTouch, 1, []byte{0x01, 0x02, 0x03}))
	f.HandleFrame(raw)

	if !bytes.Equal(got, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("touch payload = %v, want [1 2 3]", got)
	}
}

func TestHandleFrameWithUnknownTypeDoesNotPanic(t *testing.T) {
	sender := &fakeSender{connected: true}
	f := NewFaceClient(sender, frame.V1, nil)
	raw := stripDelim(frame.EncodeV1(0xAB, 1, nil))
	f.HandleFrame(raw) // no subscriber registered; must be a silent drop
}

func TestPackFlagsCombinesBits(t *testing.T) {
	got := PackFlags(true, false, true, false, false, true, false)
	want := FlagIdleWander | FlagSparkle | FlagTrack
	if got != want {
		t.Fatalf("PackFlags = %#b, want %#b", got, want)
	}
}

func TestFaceMoodStringNamesAllAnchorsAndFallsBackForUnknown(t *testing.T) {
	if MoodSad.String() != "sad" {
		t.Fatalf("MoodSad.String() = %q, want %q", MoodSad.String(), "sad")
	}
	if got := FaceMood(255).String(); got != "unknown" {
		t.Fatalf("FaceMood(255).String() = %q, want %q", got, "unknown")
	}
}
