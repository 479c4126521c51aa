package skill

import (
	"testing"

	"github.com/0mdb/robot-buddy-supervisor/internal/state"
)

func TestPatrolDriftFlipsSign(t *testing.T) {
	e := New(DefaultConfig())
	t1 := e.Step(state.Robot{TickMonoMS: 0}, PatrolDrift, Vision{})
	t2 := e.Step(state.Robot{TickMonoMS: 4000}, PatrolDrift, Vision{})
	if t1.WmradS == t2.WmradS {
		t.Fatalf("expected yaw sign flip across 4s boundary: %v vs %v", t1, t2)
	}
	if t1.VmmS != 80 || t2.VmmS != 80 {
		t.Fatalf("expected 80mm/s forward, got %v %v", t1, t2)
	}
}

func TestObstacleCloseOverridesAnySkill(t *testing.T) {
	e := New(DefaultConfig())
	robot := state.Robot{RangeStatus: state.RangeOK, RangeMM: 200}
	out := e.Step(robot, PatrolDrift, Vision{})
	if out.VmmS != -120 || out.WmradS != 400 {
		t.Fatalf("expected hard avoid_obstacle twist, got %v", out)
	}
}

func TestScanSwitchesToInvestigate(t *testing.T) {
	e := New(DefaultConfig())
	out := e.Step(state.Robot{}, ScanForTarget, Vision{BallConfidence: 0.9, BallBearingDeg: 0})
	if out.VmmS != 120 {
		t.Fatalf("expected investigate forward speed, got %v", out)
	}
}

func TestApproachHardStopBacksOff(t *testing.T) {
	e := New(DefaultConfig())
	robot := state.Robot{RangeStatus: state.RangeOK, RangeMM: 200}
	out := e.Step(robot, ApproachUntilRange, Vision{BallConfidence: 0.9, BallBearingDeg: 0})
	if out.VmmS != -80 {
		t.Fatalf("expected hard backoff -80mm/s, got %v", out)
	}
}

func TestRetreatCyclePhases(t *testing.T) {
	e := New(DefaultConfig())
	rev := e.Step(state.Robot{TickMonoMS: 0}, RetreatAndRecover, Vision{})
	if rev.VmmS != -120 {
		t.Fatalf("expected reverse phase, got %v", rev)
	}
	turn := e.Step(state.Robot{TickMonoMS: 950}, RetreatAndRecover, Vision{})
	if turn.WmradS == 0 {
		t.Fatalf("expected turn phase nonzero yaw, got %v", turn)
	}
	pause := e.Step(state.Robot{TickMonoMS: 2100}, RetreatAndRecover, Vision{})
	if pause.VmmS != 0 || pause.WmradS != 0 {
		t.Fatalf("expected pause phase zero twist, got %v", pause)
	}
}

func TestGreetOnButtonIsZeroTwist(t *testing.T) {
	e := New(DefaultConfig())
	robot := state.Robot{RangeStatus: state.RangeOK, RangeMM: 100}
	out := e.Step(robot, GreetOnButton, Vision{})
	if out.VmmS != 0 || out.WmradS != 0 {
		t.Fatalf("expected zero twist for greet_on_button even when obstacle close, got %v", out)
	}
}
