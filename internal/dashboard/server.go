// Package dashboard implements the supervisor's HTTP/WebSocket
// telemetry + control surface (spec.md §6: "the dashboard is out of
// core... their presence does not affect core behavior"), grounded in
// the teacher's internal/httpapi (Echo app, request-logger middleware,
// recover middleware) and internal/ws (gorilla/websocket per-connection
// hub), generalized from chat-room REST/WS routes to the robot's
// status/params/actions surface described in
// _examples/original_source/supervisor_v2/api/http_server.py.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/0mdb/robot-buddy-supervisor/internal/modefsm"
	"github.com/0mdb/robot-buddy-supervisor/internal/params"
	"github.com/0mdb/robot-buddy-supervisor/internal/state"
	"github.com/0mdb/robot-buddy-supervisor/internal/worker"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Deps bundles the core subsystems the dashboard reads and, for the
// actions route, nudges. The dashboard never mutates World/Robot
// directly; mode requests and e-stop/clear go through the mode state
// machine and an operator-supplied estop hook, matching the
// supervisor_v2 http_server.py's narrow action surface (set_mode,
// e_stop, clear_e_stop).
type Deps struct {
	World    *state.World
	Robot    *state.Robot
	Params   *params.Registry
	Workers  *worker.Manager
	ModeFSM  *modefsm.SM
	SendEstop func()
}

// Server is the Echo application serving the dashboard.
type Server struct {
	echo      *echo.Echo
	deps      Deps
	hub       *hub
	startedAt time.Time
}

// New constructs the dashboard's Echo app and websocket hub.
func New(deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	s := &Server{echo: e, deps: deps, hub: newHub(), startedAt: time.Now()}
	s.hub.onCmd = s.handleWSCommand
	s.registerRoutes()
	return s
}

// handleWSCommand processes an inbound websocket command, mirroring
// supervisor_v2's _handle_ws_cmd but limited to set_mode/e_stop/clear,
// the same surface the REST /api/actions route exposes.
func (s *Server) handleWSCommand(cmd clientCmd) {
	switch cmd.Type {
	case "set_mode":
		if s.deps.ModeFSM == nil {
			return
		}
		target := state.Mode(cmd.Mode)
		robot := s.deps.Robot.Snapshot()
		if err := s.deps.ModeFSM.RequestMode(target, robot.MotionConnected, robot.FaultFlags); err != nil {
			slog.Debug("dashboard ws set_mode rejected", "mode", cmd.Mode, "err", err)
		}
	case "e_stop":
		if s.deps.SendEstop != nil {
			s.deps.SendEstop()
		}
	case "clear":
		if s.deps.ModeFSM == nil {
			return
		}
		robot := s.deps.Robot.Snapshot()
		if err := s.deps.ModeFSM.ClearError(robot.FaultFlags); err != nil {
			slog.Debug("dashboard ws clear rejected", "err", err)
		}
	}
}

// requestLogger returns Echo middleware that logs each HTTP request via slog.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			path := req.URL.Path
			if path == "/ws" || path == "/health" {
				slog.Debug("dashboard request", "method", req.Method, "path", path,
					"status", c.Response().Status, "duration_ms", time.Since(start).Milliseconds())
			} else {
				slog.Info("dashboard request", "method", req.Method, "path", path,
					"status", c.Response().Status, "duration_ms", time.Since(start).Milliseconds(),
					"remote", c.RealIP())
			}
			return nil
		}
	}
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/status", s.handleStatus)
	s.echo.GET("/api/params", s.handleGetParams)
	s.echo.POST("/api/params", s.handleSetParams)
	s.echo.POST("/api/actions", s.handleAction)
	s.echo.GET("/api/workers", s.handleWorkers)
	s.echo.GET("/ws", s.hub.HandleWebSocket)
}

// Run starts Echo and blocks until ctx cancellation or startup failure.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down dashboard server")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		slog.Info("dashboard server stopped")
		return nil
	}
}

// BroadcastTelemetry pushes a status snapshot to every connected
// websocket client. A no-op when no clients are connected (spec.md §6's
// "capture fan-out is a no-op at zero clients").
func (s *Server) BroadcastTelemetry() {
	if s.hub.ClientCount() == 0 {
		return
	}
	s.hub.Broadcast(telemetryMessage{Type: "telemetry", Status: s.buildStatus()})
}

// BroadcastLog forwards one log line to every connected client's
// log-tail channel.
func (s *Server) BroadcastLog(line string) {
	if s.hub.ClientCount() == 0 {
		return
	}
	s.hub.Broadcast(telemetryMessage{Type: "log", Log: line})
}
