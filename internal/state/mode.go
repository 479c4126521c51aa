// Package state holds the two state containers the tick loop owns:
// Robot (rebuilt each tick from MCU telemetry) and World (mutated
// asynchronously by the event router on worker input).
package state

// Mode is the robot's high-level operational state.
type Mode string

const (
	Boot   Mode = "BOOT"
	Idle   Mode = "IDLE"
	Teleop Mode = "TELEOP"
	Wander Mode = "WANDER"
	Error  Mode = "ERROR"
)

// MotionModes are the modes in which the behavior/safety pipeline may
// produce nonzero twist.
var MotionModes = map[Mode]bool{
	Teleop: true,
	Wander: true,
}

// IsMotionMode reports whether m is a motion mode.
func IsMotionMode(m Mode) bool {
	return MotionModes[m]
}

// Fault is a bitfield of MCU-reported fault conditions.
type Fault uint16

const (
	FaultCmdTimeout Fault = 1 << 0
	FaultEstop      Fault = 1 << 1
	FaultTilt       Fault = 1 << 2
	FaultStall      Fault = 1 << 3
	FaultImuFail    Fault = 1 << 4
	FaultBrownout   Fault = 1 << 5
	FaultObstacle   Fault = 1 << 6
)

// SevereFaults forces an immediate transition to Error and blocks
// clear_error until clear.
const SevereFaults = FaultEstop | FaultTilt | FaultBrownout

// Names returns the set bit names of f in declaration order.
func (f Fault) Names() []string {
	var names []string
	for _, p := range []struct {
		bit  Fault
		name string
	}{
		{FaultCmdTimeout, "CMD_TIMEOUT"},
		{FaultEstop, "ESTOP"},
		{FaultTilt, "TILT"},
		{FaultStall, "STALL"},
		{FaultImuFail, "IMU_FAIL"},
		{FaultBrownout, "BROWNOUT"},
		{FaultObstacle, "OBSTACLE"},
	} {
		if f&p.bit != 0 {
			names = append(names, p.name)
		}
	}
	return names
}

// RangeStatus is the range sensor's health/validity tag.
type RangeStatus uint8

const (
	RangeOK RangeStatus = iota
	RangeTimeout
	RangeOutOfRange
	RangeNotReady
)

func (s RangeStatus) String() string {
	switch s {
	case RangeOK:
		return "OK"
	case RangeTimeout:
		return "TIMEOUT"
	case RangeOutOfRange:
		return "OUT_OF_RANGE"
	case RangeNotReady:
		return "NOT_READY"
	default:
		return "UNKNOWN"
	}
}

// Twist is a commanded or measured motion: linear mm/s, angular mrad/s.
type Twist struct {
	VmmS    int16
	WmradS  int16
}

// Zero reports whether the twist is exactly (0,0).
func (t Twist) Zero() bool {
	return t.VmmS == 0 && t.WmradS == 0
}

// SpeedCap is one layer's contribution to the safety cascade, recorded
// for telemetry.
type SpeedCap struct {
	Scale  float64
	Reason string
}
