package behavior

import (
	"testing"

	"github.com/0mdb/robot-buddy-supervisor/internal/skill"
	"github.com/0mdb/robot-buddy-supervisor/internal/state"
)

func TestTeleopPassesThroughCommandedTwist(t *testing.T) {
	e := New(skill.New(skill.DefaultConfig()))
	e.SetTeleopTwist(state.Twist{VmmS: 150, WmradS: -200})
	out := e.Step(state.Teleop, state.Robot{}, "", skill.Vision{})
	if out.VmmS != 150 || out.WmradS != -200 {
		t.Fatalf("expected teleop twist passthrough, got %v", out)
	}
}

func TestWanderDelegatesToSkill(t *testing.T) {
	e := New(skill.New(skill.DefaultConfig()))
	out := e.Step(state.Wander, state.Robot{TickMonoMS: 0}, skill.PatrolDrift, skill.Vision{})
	if out.VmmS != 80 {
		t.Fatalf("expected patrol_drift forward speed, got %v", out)
	}
}

func TestIdleAndBootProduceZeroTwist(t *testing.T) {
	e := New(skill.New(skill.DefaultConfig()))
	e.SetTeleopTwist(state.Twist{VmmS: 999})
	for _, m := range []state.Mode{state.Boot, state.Idle, state.Error} {
		out := e.Step(m, state.Robot{}, "", skill.Vision{})
		if out.VmmS != 0 || out.WmradS != 0 {
			t.Fatalf("mode %v: expected zero twist, got %v", m, out)
		}
	}
}
