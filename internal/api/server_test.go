package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verdantlabs/pestguard-core/internal/history"
	"github.com/verdantlabs/pestguard-core/internal/infrastructure/config"
	"github.com/verdantlabs/pestguard-core/internal/infrastructure/logging"
	"github.com/verdantlabs/pestguard-core/internal/orchestrator"
)

// mockRepository is an in-memory history store for handler tests.
type mockRepository struct {
	mu         sync.Mutex
	executions []history.Execution
	detections []history.Detection
}

func (m *mockRepository) RecordExecution(_ context.Context, exec *history.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions = append(m.executions, *exec)
	return nil
}

func (m *mockRepository) ListExecutions(_ context.Context, f history.ExecutionFilter) (*history.ExecutionList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []history.Execution
	for _, e := range m.executions {
		if f.Kind != "" && e.Kind != f.Kind {
			continue
		}
		out = append(out, e)
	}
	return &history.ExecutionList{Executions: out, Total: len(out)}, nil
}

func (m *mockRepository) RecordDetection(_ context.Context, det *history.Detection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if det.ID == "" {
		det.ID = "det-test"
	}
	m.detections = append(m.detections, *det)
	return nil
}

func (m *mockRepository) ListDetections(_ context.Context, f history.DetectionFilter) (*history.DetectionList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []history.Detection
	for _, d := range m.detections {
		if f.Tier != "" && d.Tier != f.Tier {
			continue
		}
		out = append(out, d)
	}
	return &history.DetectionList{Detections: out, Total: len(out)}, nil
}

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    0,
		Timeouts: config.APITimeoutConfig{
			Read:  5,
			Write: 5,
			Idle:  30,
		},
		WebSocket: config.WebSocketConfig{
			PingInterval:   30,
			PongTimeout:    60,
			MaxMessageSize: 65536,
		},
	}
}

func testSystemConfig() *config.Config {
	return &config.Config{
		Site: config.SiteConfig{ID: "rig-test"},
		Actuators: config.ActuatorsConfig{
			Channels: []int{0, 1},
			Roles:    config.ActuatorRoles{Pump: 0, Trap: 1},
		},
		Motors: config.MotorsConfig{
			Stepper: config.StepperConfig{StepDelayMS: 1},
		},
		Sensors: []config.SensorConfig{
			{ID: "temp_1", Type: "temperature", Unit: "celsius", IntervalMS: 50},
		},
		Risk: config.RiskConfig{HighRisk: 0.8, MediumRisk: 0.5, LowRisk: 0.3},
	}
}

// newTestServer starts a running orchestrator system behind the API
// router and returns the test HTTP server.
func newTestServer(t *testing.T) (*httptest.Server, *Server, *mockRepository) {
	t.Helper()

	sys, err := orchestrator.New(testSystemConfig(), nil)
	if err != nil {
		t.Fatalf("orchestrator.New failed: %v", err)
	}

	repo := &mockRepository{}
	sys.SetHistory(repo)

	if err := sys.Start(); err != nil {
		t.Fatalf("system start failed: %v", err)
	}
	t.Cleanup(func() { sys.Stop() })

	srv, err := New(Deps{
		Config:  testAPIConfig(),
		Logger:  logging.Default(),
		System:  sys,
		History: repo,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("api.New failed: %v", err)
	}

	srv.hub = NewHub(srv.cfg.WebSocket, srv.logger)
	ctx, cancel := context.WithCancel(context.Background())
	go srv.hub.Run(ctx)
	t.Cleanup(cancel)

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	return ts, srv, repo
}

func getJSON(t *testing.T, ts *httptest.Server, path string, wantStatus int) map[string]any {
	t.Helper()

	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: expected status %d, got %d", path, wantStatus, resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding %s response: %v", path, err)
	}
	return body
}

func postJSON(t *testing.T, ts *httptest.Server, path, payload string, wantStatus int) map[string]any {
	t.Helper()

	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("POST %s: expected status %d, got %d", path, wantStatus, resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding %s response: %v", path, err)
	}
	return body
}

// ─── Health and Status ───────────────────────────────────────────────

func TestHandleHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	body := getJSON(t, ts, "/api/v1/health", http.StatusOK)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}

	components, ok := body["components"].(map[string]any)
	if !ok {
		t.Fatal("expected components map in health response")
	}
	if components["system"] != "ok" {
		t.Errorf("expected system ok, got %v", components["system"])
	}
}

func TestHandleSystemStatus(t *testing.T) {
	ts, _, _ := newTestServer(t)

	body := getJSON(t, ts, "/api/v1/system/status", http.StatusOK)
	if body["site_id"] != "rig-test" {
		t.Errorf("expected site_id rig-test, got %v", body["site_id"])
	}
	if body["running"] != true {
		t.Errorf("expected running true, got %v", body["running"])
	}
}

// ─── Manual Actions ──────────────────────────────────────────────────

func TestHandleSystemAction(t *testing.T) {
	ts, _, _ := newTestServer(t)

	body := postJSON(t, ts, "/api/v1/system/action",
		`{"kind":"spray_pesticide","duration_seconds":0.05}`, http.StatusAccepted)
	if body["queued"] != true {
		t.Errorf("expected queued true, got %v", body["queued"])
	}
	if body["kind"] != "spray_pesticide" {
		t.Errorf("expected kind spray_pesticide, got %v", body["kind"])
	}
}

func TestHandleSystemAction_UnknownKind(t *testing.T) {
	ts, _, _ := newTestServer(t)

	postJSON(t, ts, "/api/v1/system/action",
		`{"kind":"launch_drone"}`, http.StatusBadRequest)
}

func TestHandleSystemAction_DurationOutOfRange(t *testing.T) {
	ts, _, _ := newTestServer(t)

	postJSON(t, ts, "/api/v1/system/action",
		`{"kind":"spray_pesticide","duration_seconds":900}`, http.StatusBadRequest)
}

func TestHandleSystemAction_InvalidBody(t *testing.T) {
	ts, _, _ := newTestServer(t)

	postJSON(t, ts, "/api/v1/system/action", `{not json`, http.StatusBadRequest)
}

// ─── Pest Response ───────────────────────────────────────────────────

func TestHandlePestResponse(t *testing.T) {
	ts, _, repo := newTestServer(t)

	body := postJSON(t, ts, "/api/v1/system/pest-response",
		`{"pest_type":"aphid","confidence":0.9}`, http.StatusOK)

	if body["tier"] != "high" {
		t.Errorf("expected tier high, got %v", body["tier"])
	}
	if body["queued"].(float64) != 2 {
		t.Errorf("expected 2 queued actions, got %v", body["queued"])
	}

	repo.mu.Lock()
	detections := len(repo.detections)
	repo.mu.Unlock()
	if detections != 1 {
		t.Errorf("expected 1 recorded detection, got %d", detections)
	}
}

func TestHandlePestResponse_InvalidConfidence(t *testing.T) {
	ts, _, _ := newTestServer(t)

	postJSON(t, ts, "/api/v1/system/pest-response",
		`{"pest_type":"aphid","confidence":1.5}`, http.StatusBadRequest)
}

// ─── Sensors ─────────────────────────────────────────────────────────

func TestHandleListSensors(t *testing.T) {
	ts, _, _ := newTestServer(t)

	body := getJSON(t, ts, "/api/v1/sensors/", http.StatusOK)
	sensors, ok := body["sensors"].([]any)
	if !ok {
		t.Fatal("expected sensors array")
	}
	if len(sensors) != 1 {
		t.Fatalf("expected 1 sensor, got %d", len(sensors))
	}
	first, ok := sensors[0].(map[string]any)
	if !ok {
		t.Fatal("expected sensor object")
	}
	if first["id"] != "temp_1" {
		t.Errorf("expected sensor temp_1, got %v", first["id"])
	}
}

func TestHandleGetSensor_Unknown(t *testing.T) {
	ts, _, _ := newTestServer(t)

	getJSON(t, ts, "/api/v1/sensors/nope", http.StatusNotFound)
}

// ─── History ─────────────────────────────────────────────────────────

func TestHandleListExecutions(t *testing.T) {
	ts, _, repo := newTestServer(t)

	repo.executions = append(repo.executions, history.Execution{
		ID:     "act-1",
		Kind:   "spray_pesticide",
		Status: "completed",
	})

	body := getJSON(t, ts, "/api/v1/history/actions?kind=spray_pesticide", http.StatusOK)
	execs, ok := body["executions"].([]any)
	if !ok {
		t.Fatal("expected executions array")
	}
	if len(execs) != 1 {
		t.Errorf("expected 1 execution, got %d", len(execs))
	}
}

func TestHandleListDetections(t *testing.T) {
	ts, _, repo := newTestServer(t)

	repo.detections = append(repo.detections,
		history.Detection{ID: "det-1", PestType: "aphid", Tier: "high"},
		history.Detection{ID: "det-2", PestType: "mite", Tier: "low"},
	)

	body := getJSON(t, ts, "/api/v1/detections?tier=high", http.StatusOK)
	dets, ok := body["detections"].([]any)
	if !ok {
		t.Fatal("expected detections array")
	}
	if len(dets) != 1 {
		t.Errorf("expected 1 detection, got %d", len(dets))
	}
}

// ─── WebSocket ───────────────────────────────────────────────────────

func TestWebSocket_SubscribeAndBroadcast(t *testing.T) {
	ts, srv, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	sub := `{"type":"subscribe","payload":{"channels":["detection"]}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(sub)); err != nil {
		t.Fatalf("subscribe write failed: %v", err)
	}

	// Wait for the subscribe acknowledgement so the broadcast cannot
	// race the subscription.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack map[string]any
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("reading subscribe ack: %v", err)
	}
	if ack["type"] != WSTypeResponse {
		t.Fatalf("expected response ack, got %v", ack["type"])
	}

	srv.hub.Broadcast("detection", map[string]string{"pest_type": "aphid"})

	var event map[string]any
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("reading broadcast event: %v", err)
	}
	if event["type"] != WSTypeEvent {
		t.Errorf("expected event type, got %v", event["type"])
	}
	if event["channel"] != "detection" {
		t.Errorf("expected detection channel, got %v", event["channel"])
	}
}

func TestWebSocket_UnsubscribedChannelNotDelivered(t *testing.T) {
	ts, srv, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	sub := `{"type":"subscribe","payload":{"channels":["relay"]}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(sub)); err != nil {
		t.Fatalf("subscribe write failed: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack map[string]any
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("reading subscribe ack: %v", err)
	}

	srv.hub.Broadcast("detection", map[string]string{"pest_type": "aphid"})
	srv.hub.Broadcast("relay", map[string]any{"channel": 0})

	var event map[string]any
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if event["channel"] != "relay" {
		t.Errorf("expected only the relay event, got channel %v", event["channel"])
	}
}

func TestHubClientCount(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{PingInterval: 30, PongTimeout: 60, MaxMessageSize: 65536}, logging.Default())

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}

	c := &WSClient{hub: hub, send: make(chan []byte, 1), channels: map[string]struct{}{}}
	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", hub.ClientCount())
	}

	hub.Unregister(c)
	hub.Unregister(c) // second call is a no-op
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients after unregister, got %d", hub.ClientCount())
	}
}
