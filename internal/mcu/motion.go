package mcu

import (
	"encoding/binary"
	"log/slog"

	"github.com/0mdb/robot-buddy-supervisor/internal/frame"
	"github.com/0mdb/robot-buddy-supervisor/internal/state"
)

// MotionClient builds motion-MCU commands and decodes its telemetry.
type MotionClient struct {
	*client
}

// NewMotionClient returns a client that writes through sender using the
// negotiated frame version.
func NewMotionClient(sender Sender, version frame.Version, logger *slog.Logger) *MotionClient {
	return &MotionClient{client: newClient("motion", sender, version, logger)}
}

// SendSetTwist refreshes the MCU's command-timeout watchdog; sent every
// tick regardless of whether the twist changed (spec.md §4.3).
func (m *MotionClient) SendSetTwist(v, w int16) bool {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint16(payload[0:2], uint16(v))
	binary.LittleEndian.PutUint16(payload[2:4], uint16(w))
	return m.send(CmdSetTwist, payload)
}

// SendStop requests an immediate, graceful stop.
func (m *MotionClient) SendStop(reason uint8) bool {
	return m.send(CmdStop, []byte{reason})
}

// SendEstop requests an immediate hardware-level stop.
func (m *MotionClient) SendEstop() bool {
	return m.send(CmdEstop, nil)
}

// SendClearFaults clears the fault bits named in mask.
func (m *MotionClient) SendClearFaults(mask uint16) bool {
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, mask)
	return m.send(CmdClearFaults, payload)
}

// SendSetConfig writes one 4-byte config parameter by id.
func (m *MotionClient) SendSetConfig(paramID uint8, value [4]byte) bool {
	payload := append([]byte{paramID}, value[:]...)
	return m.send(CmdSetConfig, payload)
}

// SendSetProtocolVersion negotiates the frame version once after open
// (spec.md §6).
func (m *MotionClient) SendSetProtocolVersion(ver uint8) bool {
	return m.send(frame.CommonSetProtocolVersion, []byte{ver})
}

// StateTelemetry is the decoded 19-byte STATE payload (spec.md §4.3):
// wheel speeds ×2, gyro_z, accel xyz, battery, faults, range, range_status.
// Wire layout is little-endian `hhhhhhHHHB` (6×i16, 3×u16, 1×u8).
type StateTelemetry struct {
	WheelL, WheelR int16
	GyroZ          int16
	AccelX, AccelY, AccelZ int16
	BatteryMV      uint16
	Faults         state.Fault
	RangeMM        uint16
	RangeStatus    state.RangeStatus
}

// OnState registers fn for decoded STATE telemetry.
func (m *MotionClient) OnState(fn func(StateTelemetry)) {
	m.On(TelState, func(pkt frame.Packet) {
		st, err := decodeState(pkt.Payload)
		if err != nil {
			m.logger.Debug("motion state decode error", "error", err)
			return
		}
		fn(st)
	})
}

func decodeState(p []byte) (StateTelemetry, error) {
	if len(p) < 19 {
		return StateTelemetry{}, frame.ErrTooShort
	}
	return StateTelemetry{
		WheelL:      int16(binary.LittleEndian.Uint16(p[0:2])),
		WheelR:      int16(binary.LittleEndian.Uint16(p[2:4])),
		GyroZ:       int16(binary.LittleEndian.Uint16(p[4:6])),
		AccelX:      int16(binary.LittleEndian.Uint16(p[6:8])),
		AccelY:      int16(binary.LittleEndian.Uint16(p[8:10])),
		AccelZ:      int16(binary.LittleEndian.Uint16(p[10:12])),
		BatteryMV:   binary.LittleEndian.Uint16(p[12:14]),
		Faults:      state.Fault(binary.LittleEndian.Uint16(p[14:16])),
		RangeMM:     binary.LittleEndian.Uint16(p[16:18]),
		RangeStatus: state.RangeStatus(p[18]),
	}, nil
}
