package safety

import (
	"testing"

	"github.com/0mdb/robot-buddy-supervisor/internal/state"
)

func newConnectedRobot() *state.Robot {
	r := state.NewRobot()
	r.Update(func(r *state.Robot) {
		r.MotionConnected = true
		r.RangeStatus = state.RangeOK
	})
	return r
}

func TestModeGateZerosOutsideMotionModes(t *testing.T) {
	r := newConnectedRobot()
	world := state.World{ClearConfidence: state.ClearConfidenceUnknown}
	out := Apply(state.Twist{VmmS: 200}, state.Idle, r, world, 0, DefaultVisionPolicy())
	if out.VmmS != 0 {
		t.Fatalf("expected zero twist outside motion modes, got %v", out)
	}
}

func TestFaultGateZeros(t *testing.T) {
	r := newConnectedRobot()
	r.Update(func(r *state.Robot) { r.FaultFlags = state.FaultStall })
	world := state.World{ClearConfidence: state.ClearConfidenceUnknown}
	out := Apply(state.Twist{VmmS: 200}, state.Wander, r, world, 0, DefaultVisionPolicy())
	if out.VmmS != 0 {
		t.Fatalf("expected zero twist on fault, got %v", out)
	}
}

func TestRangeBoundaries(t *testing.T) {
	world := state.World{ClearConfidence: state.ClearConfidenceUnknown}
	cases := []struct {
		rangeMM int
		want    int16
	}{
		{299, 25}, // 100 * 0.25
		{300, 50}, // 100 * 0.50
		{499, 50},
		{500, 100}, // no cap
	}
	for _, c := range cases {
		r := newConnectedRobot()
		r.Update(func(r *state.Robot) { r.RangeMM = c.rangeMM })
		out := Apply(state.Twist{VmmS: 100}, state.Wander, r, world, 0, DefaultVisionPolicy())
		if out.VmmS != c.want {
			t.Errorf("range=%d: expected v=%d, got %d", c.rangeMM, c.want, out.VmmS)
		}
	}
}

func TestVisionStaleHalves(t *testing.T) {
	r := newConnectedRobot()
	r.Update(func(r *state.Robot) { r.RangeMM = 1000 })
	world := state.World{ClearConfidence: 0.9}
	out := Apply(state.Twist{VmmS: 100}, state.Wander, r, world, 600, DefaultVisionPolicy())
	if out.VmmS != 50 {
		t.Fatalf("expected stale vision to halve speed, got %v", out)
	}
}

func TestClearConfidenceLowQuarters(t *testing.T) {
	r := newConnectedRobot()
	r.Update(func(r *state.Robot) { r.RangeMM = 1000 })
	world := state.World{ClearConfidence: 0.1}
	out := Apply(state.Twist{VmmS: 100}, state.Wander, r, world, 0, DefaultVisionPolicy())
	if out.VmmS != 25 {
		t.Fatalf("expected low clear confidence to quarter speed, got %v", out)
	}
}

func TestSpeedCapsRecorded(t *testing.T) {
	r := newConnectedRobot()
	r.Update(func(r *state.Robot) { r.RangeMM = 200 })
	world := state.World{ClearConfidence: state.ClearConfidenceUnknown}
	Apply(state.Twist{VmmS: 100}, state.Wander, r, world, 0, DefaultVisionPolicy())
	caps := r.Snapshot().SpeedCaps
	if len(caps) != 1 || caps[0].Reason == "" {
		t.Fatalf("expected one recorded speed cap, got %+v", caps)
	}
}
