package dashboard

import (
	"net/http"
	"strings"

	"github.com/0mdb/robot-buddy-supervisor/internal/state"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
)

type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Clients: s.hub.ClientCount()})
}

// robotStatus mirrors the subset of state.Robot/state.World a dashboard
// client needs, flattened the way supervisor_v2's /status combines
// robot.to_dict() and world.to_dict().
type robotStatus struct {
	Mode       string `json:"mode"`
	FaultNames []string `json:"fault_names"`

	Commanded state.Twist `json:"commanded"`
	Capped    state.Twist `json:"capped"`
	BatteryMV int         `json:"battery_mv"`
	RangeMM   int         `json:"range_mm"`

	MotionConnected bool `json:"motion_connected"`
	FaceConnected   bool `json:"face_connected"`

	ClearConfidence float64 `json:"clear_confidence"`
	BallConfidence  float64 `json:"ball_confidence"`
	VisionFPS       float64 `json:"vision_fps"`

	Speaking  bool   `json:"speaking"`
	PTTHeld   bool   `json:"ptt_held"`
	MicLinkUp bool   `json:"mic_link_up"`
	SpkLinkUp bool   `json:"spk_link_up"`
	ActiveSkill string `json:"active_skill"`

	PersonalityMood string  `json:"personality_mood"`
	PersonalityIntensity float64 `json:"personality_intensity"`
	IdleState       string  `json:"idle_state"`

	Uptime string `json:"uptime"`
}

func (s *Server) buildStatus() robotStatus {
	robot := s.deps.Robot.Snapshot()
	world := s.deps.World.Snapshot()
	mode := state.Boot
	if s.deps.ModeFSM != nil {
		mode = s.deps.ModeFSM.Mode()
	}
	return robotStatus{
		Mode:            string(mode),
		FaultNames:      robot.FaultFlags.Names(),
		Commanded:       robot.Commanded,
		Capped:          robot.Capped,
		BatteryMV:       robot.BatteryMV,
		RangeMM:         robot.RangeMM,
		MotionConnected: robot.MotionConnected,
		FaceConnected:   robot.FaceConnected,
		ClearConfidence: world.ClearConfidence,
		BallConfidence:  world.BallConfidence,
		VisionFPS:       world.VisionFPS,
		Speaking:        world.Speaking,
		PTTHeld:         world.PTTHeld,
		MicLinkUp:       world.MicLinkUp,
		SpkLinkUp:       world.SpkLinkUp,
		ActiveSkill:     world.Plan.ActiveSkill,
		PersonalityMood: world.Personality.Mood,
		PersonalityIntensity: world.Personality.Intensity,
		IdleState:       world.Personality.IdleState,
		Uptime:          humanize.Time(s.startedAt),
	}
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.buildStatus())
}

func (s *Server) handleWorkers(c echo.Context) error {
	if s.deps.Workers == nil {
		return c.JSON(http.StatusOK, map[string]any{})
	}
	return c.JSON(http.StatusOK, s.deps.Workers.WorkerSnapshot())
}

func (s *Server) handleGetParams(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Params.GetAll())
}

type setParamsRequest struct {
	Items map[string]any `json:"items"`
}

type setParamResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleSetParams(c echo.Context) error {
	var req setParamsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(req.Items) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "no items"})
	}

	errs := s.deps.Params.BulkSet(req.Items)
	results := make(map[string]setParamResult, len(errs))
	allOK := true
	for name, err := range errs {
		if err != nil {
			results[name] = setParamResult{OK: false, Reason: err.Error()}
			allOK = false
		} else {
			results[name] = setParamResult{OK: true}
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusUnprocessableEntity
	}
	return c.JSON(status, results)
}

type actionRequest struct {
	Action string `json:"action"`
	Mode   string `json:"mode"`
}

type actionResponse struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// handleAction implements the narrow operator-action surface
// supervisor_v2's http_server.py exposes: set_mode, e_stop,
// clear_e_stop. Anything else is rejected.
func (s *Server) handleAction(c echo.Context) error {
	var req actionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, actionResponse{OK: false, Reason: "invalid request body"})
	}

	switch req.Action {
	case "set_mode":
		target := state.Mode(strings.ToUpper(strings.TrimSpace(req.Mode)))
		if s.deps.ModeFSM == nil {
			return c.JSON(http.StatusServiceUnavailable, actionResponse{OK: false, Reason: "mode fsm not wired"})
		}
		robot := s.deps.Robot.Snapshot()
		if err := s.deps.ModeFSM.RequestMode(target, robot.MotionConnected, robot.FaultFlags); err != nil {
			return c.JSON(http.StatusBadRequest, actionResponse{OK: false, Reason: err.Error()})
		}
		return c.JSON(http.StatusOK, actionResponse{OK: true})

	case "e_stop":
		if s.deps.SendEstop != nil {
			s.deps.SendEstop()
		}
		return c.JSON(http.StatusOK, actionResponse{OK: true, Reason: "e_stop sent"})

	case "clear_e_stop":
		if s.deps.ModeFSM == nil {
			return c.JSON(http.StatusServiceUnavailable, actionResponse{OK: false, Reason: "mode fsm not wired"})
		}
		robot := s.deps.Robot.Snapshot()
		if err := s.deps.ModeFSM.ClearError(robot.FaultFlags); err != nil {
			return c.JSON(http.StatusBadRequest, actionResponse{OK: false, Reason: err.Error()})
		}
		return c.JSON(http.StatusOK, actionResponse{OK: true})

	default:
		return c.JSON(http.StatusBadRequest, actionResponse{OK: false, Reason: "unknown action: " + req.Action})
	}
}
