package state

import "sync"

// ButtonEvent records the most recent face-button event.
type ButtonEvent struct {
	Button  uint8
	Kind    uint8
	TmonoMS int64
}

// FaceMirror is the tick loop's view of what the face MCU is currently
// displaying, kept in sync by the face composition pipeline.
type FaceMirror struct {
	MoodID        uint8
	GestureID     uint8
	SystemModeID  uint8
	Touching      bool
	Talking       bool
	Listening     bool
	ConvPhaseID   uint8
	SeqPhase      uint8
	SeqMoodID     uint8
	SeqIntensity  float64
	LastButton    ButtonEvent
}

// Robot is the MCU-sourced state, rebuilt every tick (spec.md §3.2).
//
// Invariants enforced by callers, not here: |Capped| <= |Commanded|;
// mode not in motion modes => Commanded == Capped == (0,0); FaultFlags
// != 0 => Capped == (0,0).
type Robot struct {
	mu sync.RWMutex

	Commanded Twist
	Capped    Twist

	WheelL, WheelR int16 // measured wheel speeds
	MeasuredW      int16 // measured angular velocity, mrad/s

	AccelX, AccelY, AccelZ int16 // milli-g
	GyroZ                  int16 // mrad/s
	TiltAngleRad           float64
	TiltMagnitude          float64

	BatteryMV int

	RangeMM     int
	RangeStatus RangeStatus

	FaultFlags Fault

	MotionConnected bool
	FaceConnected   bool
	MotionClock     ClockSync
	FaceClock       ClockSync

	Face FaceMirror

	SpeedCaps []SpeedCap

	TickMonoMS int64
	DtMS       float64
}

// NewRobot returns a Robot in its BOOT-time zero state.
func NewRobot() *Robot {
	return &Robot{
		MotionClock: ClockSync{State: Unsynced},
		FaceClock:   ClockSync{State: Unsynced},
	}
}

// Snapshot returns a copy of the current state, safe to read without
// holding any lock.
func (r *Robot) Snapshot() Robot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := *r
	cp.SpeedCaps = append([]SpeedCap(nil), r.SpeedCaps...)
	return cp
}

// Update runs fn with the write lock held, for the tick loop's exclusive
// per-tick rebuild of derived fields.
func (r *Robot) Update(fn func(*Robot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

// ResetSpeedCaps clears the accumulated safety-cascade trace; called at
// the start of each safety gate evaluation.
func (r *Robot) ResetSpeedCaps() {
	r.SpeedCaps = r.SpeedCaps[:0]
}

// AddSpeedCap appends one layer's contribution to the cascade trace.
func (r *Robot) AddSpeedCap(scale float64, reason string) {
	r.SpeedCaps = append(r.SpeedCaps, SpeedCap{Scale: scale, Reason: reason})
}
