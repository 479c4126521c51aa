// Package skill implements the deterministic motion policies used in
// WANDER mode (spec.md §4.8), grounded directly in
// _examples/original_source/supervisor/core/skill_executor.go.
package skill

import "github.com/0mdb/robot-buddy-supervisor/internal/state"

// Name identifies one of the static skills (spec.md §4.10 allowed set).
type Name string

const (
	PatrolDrift         Name = "patrol_drift"
	ScanForTarget        Name = "scan_for_target"
	InvestigateBall      Name = "investigate_ball"
	ApproachUntilRange   Name = "approach_until_range"
	RetreatAndRecover    Name = "retreat_and_recover"
	AvoidObstacle        Name = "avoid_obstacle"
	GreetOnButton        Name = "greet_on_button"
)

// Vision is the subset of World the executor reads.
type Vision struct {
	BallConfidence float64
	BallBearingDeg float64
}

// Config holds the tunable constants for every skill, defaulted to the
// values in spec.md §4.8.
type Config struct {
	PatrolVmmS          int16
	PatrolWmradS        int16
	PatrolTurnFlipMS    int64
	InvestigateVmmS     int16
	InvestigateTurnGain float64
	InvestigateDeadbandDeg float64
	InvestigateMinConf  float64
	ScanTurnMradS       int16
	ScanFlipMS          int64
	ApproachVmmS        int16
	ApproachVCautiousMmS int16
	ApproachTurnGain    float64
	ApproachDeadbandDeg float64
	ApproachMinConf     float64
	ApproachRangeMinMM  int
	ApproachRangeMaxMM  int
	ApproachHardStopMM  int
	ApproachBackoffMmS  int16
	RetreatReverseMmS   int16
	RetreatReverseMS    int64
	RetreatTurnMradS    int16
	RetreatTurnMS       int64
	RetreatPauseMS      int64
	ObstacleCloseMM     int
	ObstacleVeryCloseMM int
	AvoidReverseMmS     int16
	AvoidTurnMradS      int16
}

// DefaultConfig returns the spec.md §4.8 defaults.
func DefaultConfig() Config {
	return Config{
		PatrolVmmS:             80,
		PatrolWmradS:           120,
		PatrolTurnFlipMS:       4000,
		InvestigateVmmS:        120,
		InvestigateTurnGain:    22.0,
		InvestigateDeadbandDeg: 12.0,
		InvestigateMinConf:     0.80,
		ScanTurnMradS:          260,
		ScanFlipMS:             1400,
		ApproachVmmS:           110,
		ApproachVCautiousMmS:   70,
		ApproachTurnGain:       18.0,
		ApproachDeadbandDeg:    8.0,
		ApproachMinConf:        0.70,
		ApproachRangeMinMM:     380,
		ApproachRangeMaxMM:     650,
		ApproachHardStopMM:     260,
		ApproachBackoffMmS:     -80,
		RetreatReverseMmS:      -120,
		RetreatReverseMS:       900,
		RetreatTurnMradS:       420,
		RetreatTurnMS:          1100,
		RetreatPauseMS:         350,
		ObstacleCloseMM:        450,
		ObstacleVeryCloseMM:    300,
		AvoidReverseMmS:        -120,
		AvoidTurnMradS:         400,
	}
}

// Executor computes the desired twist for the currently active skill.
type Executor struct {
	cfg             Config
	activeSkill     Name
	activeSkillSinceMS int64
}

// New returns an Executor with the given config.
func New(cfg Config) *Executor {
	return &Executor{cfg: cfg}
}

// Step computes the desired twist. Every skill is preempted by
// avoid_obstacle when the range is close, except greet_on_button and
// retreat_and_recover/approach_until_range which have their own
// obstacle handling (greet is a zero-twist tag; approach reasons about
// range itself).
func (e *Executor) Step(robot state.Robot, active Name, vision Vision) state.Twist {
	elapsed := e.onSkillTick(active, robot.TickMonoMS)

	switch active {
	case GreetOnButton:
		return state.Twist{}
	case RetreatAndRecover:
		return e.retreatAndRecover(elapsed)
	case ApproachUntilRange:
		return e.approachUntilRange(robot, vision, elapsed)
	}

	if e.obstacleClose(robot) {
		return e.avoidObstacle(robot)
	}

	switch active {
	case AvoidObstacle:
		return e.avoidObstacle(robot)
	case ScanForTarget:
		return e.scanForTarget(robot, vision, elapsed)
	case InvestigateBall:
		if vision.BallConfidence >= e.cfg.InvestigateMinConf {
			return e.investigateBall(vision)
		}
	}

	return e.patrolDrift(robot)
}

func (e *Executor) onSkillTick(active Name, tickMonoMS int64) int64 {
	if active != e.activeSkill {
		e.activeSkill = active
		e.activeSkillSinceMS = tickMonoMS
	}
	elapsed := tickMonoMS - e.activeSkillSinceMS
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func (e *Executor) obstacleClose(robot state.Robot) bool {
	if robot.RangeStatus != state.RangeOK {
		return false
	}
	return robot.RangeMM > 0 && robot.RangeMM < e.cfg.ObstacleCloseMM
}

func (e *Executor) avoidObstacle(robot state.Robot) state.Twist {
	if robot.RangeMM > 0 && robot.RangeMM < e.cfg.ObstacleVeryCloseMM {
		return state.Twist{VmmS: e.cfg.AvoidReverseMmS, WmradS: e.cfg.AvoidTurnMradS}
	}
	return state.Twist{WmradS: e.cfg.AvoidTurnMradS}
}

func (e *Executor) scanForTarget(robot state.Robot, vision Vision, elapsedMS int64) state.Twist {
	if vision.BallConfidence >= e.cfg.InvestigateMinConf {
		return e.investigateBall(vision)
	}
	phase := (elapsedMS / e.cfg.ScanFlipMS) % 2
	sign := int16(1)
	if phase != 0 {
		sign = -1
	}
	return state.Twist{WmradS: sign * e.cfg.ScanTurnMradS}
}

func (e *Executor) approachUntilRange(robot state.Robot, vision Vision, elapsedMS int64) state.Twist {
	if vision.BallConfidence < e.cfg.ApproachMinConf {
		return e.scanForTarget(robot, vision, elapsedMS)
	}

	turn := e.bearingTurn(vision, e.cfg.ApproachTurnGain, 500)
	bearing := absF(vision.BallBearingDeg)

	if robot.RangeStatus == state.RangeOK && robot.RangeMM > 0 {
		switch {
		case robot.RangeMM <= e.cfg.ApproachHardStopMM:
			return state.Twist{VmmS: e.cfg.ApproachBackoffMmS, WmradS: turn}
		case robot.RangeMM < e.cfg.ApproachRangeMinMM:
			return state.Twist{VmmS: int16(float64(e.cfg.ApproachBackoffMmS) * 0.5), WmradS: turn}
		case robot.RangeMM <= e.cfg.ApproachRangeMaxMM:
			if bearing <= e.cfg.ApproachDeadbandDeg {
				return state.Twist{}
			}
			return state.Twist{WmradS: turn}
		default:
			forward := e.cfg.ApproachVmmS
			if bearing > e.cfg.ApproachDeadbandDeg {
				forward = e.cfg.ApproachVCautiousMmS
			}
			return state.Twist{VmmS: forward, WmradS: turn}
		}
	}

	if bearing > e.cfg.ApproachDeadbandDeg {
		return state.Twist{WmradS: turn}
	}
	return state.Twist{VmmS: e.cfg.ApproachVCautiousMmS, WmradS: turn}
}

func (e *Executor) retreatAndRecover(elapsedMS int64) state.Twist {
	cycleMS := e.cfg.RetreatReverseMS + e.cfg.RetreatTurnMS + e.cfg.RetreatPauseMS
	if cycleMS <= 0 {
		return state.Twist{}
	}
	phaseMS := elapsedMS % cycleMS
	cycleIdx := elapsedMS / cycleMS
	turnSign := int16(1)
	if cycleIdx%2 != 0 {
		turnSign = -1
	}

	switch {
	case phaseMS < e.cfg.RetreatReverseMS:
		return state.Twist{VmmS: e.cfg.RetreatReverseMmS}
	case phaseMS < e.cfg.RetreatReverseMS+e.cfg.RetreatTurnMS:
		return state.Twist{WmradS: turnSign * e.cfg.RetreatTurnMradS}
	default:
		return state.Twist{}
	}
}

func (e *Executor) investigateBall(vision Vision) state.Twist {
	bearing := absF(vision.BallBearingDeg)
	turn := e.bearingTurn(vision, e.cfg.InvestigateTurnGain, 600)
	if bearing > e.cfg.InvestigateDeadbandDeg {
		return state.Twist{WmradS: turn}
	}
	return state.Twist{VmmS: e.cfg.InvestigateVmmS, WmradS: turn}
}

func (e *Executor) patrolDrift(robot state.Robot) state.Twist {
	phase := (robot.TickMonoMS / e.cfg.PatrolTurnFlipMS) % 2
	sign := int16(1)
	if phase != 0 {
		sign = -1
	}
	return state.Twist{VmmS: e.cfg.PatrolVmmS, WmradS: sign * e.cfg.PatrolWmradS}
}

func (e *Executor) bearingTurn(vision Vision, gain float64, maxAbs int16) int16 {
	v := vision.BallBearingDeg * gain
	return clampI16(v, -maxAbs, maxAbs)
}

func clampI16(v float64, lo, hi int16) int16 {
	if v < float64(lo) {
		return lo
	}
	if v > float64(hi) {
		return hi
	}
	return int16(v)
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
