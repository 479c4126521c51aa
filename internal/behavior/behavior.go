// Package behavior selects the desired twist source for the current
// mode (spec.md §4.6/§4.8), grounded in
// _examples/original_source/supervisor_v2/core/behavior_engine.py.
package behavior

import (
	"github.com/0mdb/robot-buddy-supervisor/internal/skill"
	"github.com/0mdb/robot-buddy-supervisor/internal/state"
)

// Engine picks TELEOP passthrough, WANDER skill output, or zero twist.
type Engine struct {
	skill        *skill.Executor
	teleopTwist  state.Twist
}

// New returns an Engine driving the given skill executor.
func New(exec *skill.Executor) *Engine {
	return &Engine{skill: exec}
}

// SetTeleopTwist records the latest operator-commanded twist.
func (e *Engine) SetTeleopTwist(t state.Twist) {
	e.teleopTwist = t
}

// Step returns the desired twist for this tick.
func (e *Engine) Step(mode state.Mode, robot state.Robot, activeSkill skill.Name, vision skill.Vision) state.Twist {
	switch mode {
	case state.Teleop:
		return e.teleopTwist
	case state.Wander:
		return e.skill.Step(robot, activeSkill, vision)
	default:
		return state.Twist{}
	}
}
