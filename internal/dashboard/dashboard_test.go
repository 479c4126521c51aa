package dashboard

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/0mdb/robot-buddy-supervisor/internal/modefsm"
	"github.com/0mdb/robot-buddy-supervisor/internal/params"
	"github.com/0mdb/robot-buddy-supervisor/internal/state"
)

func newTestServer() (*Server, *state.World, *state.Robot) {
	world := state.NewWorld()
	robot := &state.Robot{}
	reg := params.DefaultRegistry()
	fsm := modefsm.New()
	s := New(Deps{World: world, Robot: robot, Params: reg, ModeFSM: fsm})
	return s, world, robot
}

func TestHealthReportsZeroClients(t *testing.T) {
	s, _, _ := newTestServer()
	ts := httptest.NewServer(s.Echo())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" || health.Clients != 0 {
		t.Fatalf("unexpected health payload: %#v", health)
	}
}

func TestStatusReflectsWorldAndRobot(t *testing.T) {
	s, world, robot := newTestServer()
	world.Update(func(w *state.World) { w.BallConfidence = 0.75 })
	robot.Update(func(r *state.Robot) { r.BatteryMV = 7400 })

	ts := httptest.NewServer(s.Echo())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()
	var status robotStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.BallConfidence != 0.75 || status.BatteryMV != 7400 {
		t.Fatalf("unexpected status payload: %#v", status)
	}
	if status.Mode != "BOOT" {
		t.Fatalf("expected BOOT mode, got %v", status.Mode)
	}
}

func TestGetParamsReturnsRegistryContents(t *testing.T) {
	s, _, _ := newTestServer()
	ts := httptest.NewServer(s.Echo())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/params")
	if err != nil {
		t.Fatalf("GET /api/params: %v", err)
	}
	defer resp.Body.Close()
	var defs []params.Def
	if err := json.NewDecoder(resp.Body).Decode(&defs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(defs) == 0 {
		t.Fatal("expected non-empty params list")
	}
}

func TestSetParamsRejectsOutOfRange(t *testing.T) {
	s, _, _ := newTestServer()
	ts := httptest.NewServer(s.Echo())
	defer ts.Close()

	body, _ := json.Marshal(setParamsRequest{Items: map[string]any{"telemetry_hz": 9999}})
	resp, err := http.Post(ts.URL+"/api/params", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/params: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestSetParamsAppliesValidValue(t *testing.T) {
	s, _, _ := newTestServer()
	ts := httptest.NewServer(s.Echo())
	defer ts.Close()

	body, _ := json.Marshal(setParamsRequest{Items: map[string]any{"telemetry_hz": 30}})
	resp, err := http.Post(ts.URL+"/api/params", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/params: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	d, _ := s.deps.Params.Get("telemetry_hz")
	if d.Value != int64(30) {
		t.Fatalf("expected applied value 30, got %v", d.Value)
	}
}

func TestActionSetModeRequiresIdleFirst(t *testing.T) {
	s, _, _ := newTestServer()
	ts := httptest.NewServer(s.Echo())
	defer ts.Close()

	body, _ := json.Marshal(actionRequest{Action: "set_mode", Mode: "teleop"})
	resp, err := http.Post(ts.URL+"/api/actions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/actions: %v", err)
	}
	defer resp.Body.Close()
	var ar actionResponse
	json.NewDecoder(resp.Body).Decode(&ar)
	if ar.OK {
		t.Fatal("expected set_mode to TELEOP from BOOT to be rejected by the guard")
	}
}

func TestActionUnknownRejected(t *testing.T) {
	s, _, _ := newTestServer()
	ts := httptest.NewServer(s.Echo())
	defer ts.Close()

	body, _ := json.Marshal(actionRequest{Action: "do_a_flip"})
	resp, err := http.Post(ts.URL+"/api/actions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/actions: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestBroadcastTelemetryNoopWithZeroClients(t *testing.T) {
	s, _, _ := newTestServer()
	s.BroadcastTelemetry() // must not panic with zero clients
	s.BroadcastLog("hello")
}
