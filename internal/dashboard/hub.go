package dashboard

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const writeTimeout = 5 * time.Second

// telemetryMessage is the single WS message envelope the dashboard
// pushes to clients: either a "telemetry" status snapshot or a "log"
// tail line.
type telemetryMessage struct {
	Type   string      `json:"type"`
	Status robotStatus `json:"status,omitempty"`
	Log    string      `json:"log,omitempty"`
}

// clientCmd is an inbound WS message, mirroring supervisor_v2's
// websocket_endpoint command dispatch but limited to the actions this
// dashboard actually exposes.
type clientCmd struct {
	Type   string `json:"type"`
	Mode   string `json:"mode"`
}

type wsSession struct {
	conn *websocket.Conn
	send chan telemetryMessage
}

// hub tracks connected dashboard websocket clients and fans out
// telemetry/log broadcasts. Grounded in the teacher's internal/ws
// per-session Send-channel pump, generalized from chat messages to
// telemetry/log frames.
type hub struct {
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*wsSession]struct{}

	onCmd func(clientCmd)
}

func newHub() *hub {
	return &hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		sessions: make(map[*wsSession]struct{}),
	}
}

// ClientCount reports the number of connected websocket clients.
func (h *hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Broadcast sends msg to every connected client, dropping it for any
// client whose send buffer is full rather than blocking.
func (h *hub) Broadcast(msg telemetryMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sess := range h.sessions {
		select {
		case sess.send <- msg:
		default:
			slog.Debug("dashboard: dropping telemetry frame, client send buffer full")
		}
	}
}

// HandleWebSocket upgrades one request and serves it until disconnect.
func (h *hub) HandleWebSocket(c echo.Context) error {
	remoteAddr := c.RealIP()
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("dashboard ws upgrade failed", "remote", remoteAddr, "err", err)
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	h.serveConn(conn, remoteAddr)
	return nil
}

func (h *hub) serveConn(conn *websocket.Conn, remoteAddr string) {
	defer conn.Close()
	conn.SetReadLimit(1 << 16)

	sess := &wsSession{conn: conn, send: make(chan telemetryMessage, 32)}
	h.mu.Lock()
	h.sessions[sess] = struct{}{}
	h.mu.Unlock()
	slog.Info("dashboard ws connected", "remote", remoteAddr)

	defer func() {
		h.mu.Lock()
		delete(h.sessions, sess)
		h.mu.Unlock()
		slog.Info("dashboard ws disconnected", "remote", remoteAddr)
	}()

	go func() {
		for msg := range sess.send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				slog.Debug("dashboard ws write error", "remote", remoteAddr, "err", err)
				return
			}
		}
	}()

	for {
		var cmd clientCmd
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("dashboard ws unexpected close", "remote", remoteAddr, "err", err)
			}
			return
		}
		if h.onCmd != nil {
			h.onCmd(cmd)
		}
	}
}
