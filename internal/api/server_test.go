package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-discovery/internal/device"
	"github.com/nerrad567/gray-logic-discovery/internal/discovery"
	"github.com/nerrad567/gray-logic-discovery/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-discovery/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-discovery/internal/infrastructure/logging"
	_ "github.com/nerrad567/gray-logic-discovery/migrations"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// staticTopics is a fixed TopicSource.
type staticTopics []string

func (t staticTopics) TopicsOfInterest() []string { return t }

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, config.VerbosityNormal, "test")
}

// testRegistry opens a migrated SQLite database in a temp dir and returns
// a registry over it.
func testRegistry(t *testing.T) *device.Registry {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "api.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}

	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}
	return registry
}

// testServer creates a Server with a real device registry.
func testServer(t *testing.T, secret string) (*Server, *device.Registry, *discovery.Stats) {
	t.Helper()

	registry := testRegistry(t)
	stats := &discovery.Stats{}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security:  config.SecurityConfig{JWT: config.JWTConfig{Secret: secret}},
		Logger:    testLogger(),
		Registry:  registry,
		Topics:    staticTopics{"homeassistant/#", "stat/dev1/POWER"},
		Stats:     stats,
		ConnState: func() discovery.ConnState { return discovery.StateSubscribed },
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, registry, stats
}

func addDevice(t *testing.T, reg *device.Registry, identity, category string) *device.Device {
	t.Helper()
	d := &device.Device{
		Identity:    identity,
		Name:        identity,
		Component:   "light",
		Category:    category,
		TypeCode:    244,
		SubtypeCode: 73,
		Config:      json.RawMessage(`{"cmd_t":"cmnd/x/POWER"}`),
		Used:        true,
	}
	if err := reg.CreateDevice(context.Background(), d); err != nil {
		t.Fatalf("CreateDevice(%s) error: %v", identity, err)
	}
	return d
}

func get(t *testing.T, h http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// ─── Construction ──────────────────────────────────────────────────

func TestNew_RequiredDeps(t *testing.T) {
	log := testLogger()
	reg := testRegistry(t)
	topics := staticTopics{}

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Registry: reg, Topics: topics}},
		{"no registry", Deps{Logger: log, Topics: topics}},
		{"no topics", Deps{Logger: log, Registry: reg}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _, _ := testServer(t, "")
	w := get(t, srv.buildRouter(), "/api/v1/health")

	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
	if resp["mqtt"] != "subscribed" {
		t.Errorf("mqtt = %v, want subscribed", resp["mqtt"])
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID(t *testing.T) {
	srv, _, _ := testServer(t, "")
	router := srv.buildRouter()

	if got := get(t, router, "/api/v1/health").Header().Get("X-Request-ID"); got == "" {
		t.Error("expected X-Request-ID header to be set")
	}
	if got := get(t, router, "/api/v1/health", "X-Request-ID", "client-123").Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv, _, _ := testServer(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/devices", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want http://localhost:3000", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	srv, _, _ := testServer(t, "")
	srv.cfg.CORS.AllowedOrigins = []string{"http://panel.local"}

	w := get(t, srv.buildRouter(), "/api/v1/health", "Origin", "http://evil.example")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty", got)
	}
}

func TestNotFound(t *testing.T) {
	srv, _, _ := testServer(t, "")

	if w := get(t, srv.buildRouter(), "/api/v1/nonexistent"); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Device Endpoint Tests ─────────────────────────────────────────

func TestListDevices_Empty(t *testing.T) {
	srv, _, _ := testServer(t, "")
	w := get(t, srv.buildRouter(), "/api/v1/devices")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Devices []device.Device `json:"devices"`
		Count   int             `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 0 || resp.Devices == nil {
		t.Errorf("response = %s, want empty device list", w.Body.String())
	}
}

func TestListDevices_Filters(t *testing.T) {
	srv, reg, _ := testServer(t, "")
	addDevice(t, reg, "dev1/light_1", "dimmer")
	addDevice(t, reg, "dev2/light_1", "color_light:rgb")
	offline := addDevice(t, reg, "dev3/light_1", "color_light:rgbww")
	timedOut := true
	if _, err := reg.UpdateDevice(context.Background(), offline.ID, device.DeviceUpdate{TimedOut: &timedOut}); err != nil {
		t.Fatalf("UpdateDevice() error: %v", err)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"dev1/light_1", "dev2/light_1", "dev3/light_1"}},
		{"?category=dimmer", []string{"dev1/light_1"}},
		{"?category=color_light", []string{"dev2/light_1", "dev3/light_1"}},
		{"?category=color_light:rgb", []string{"dev2/light_1"}},
		{"?timed_out=true", []string{"dev3/light_1"}},
		{"?category=switch", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := get(t, srv.buildRouter(), "/api/v1/devices"+tt.query)
			var resp struct {
				Devices []device.Device `json:"devices"`
				Count   int             `json:"count"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Count != len(tt.want) {
				t.Fatalf("count = %d, want %d", resp.Count, len(tt.want))
			}
			for i, identity := range tt.want {
				if resp.Devices[i].Identity != identity {
					t.Errorf("devices[%d] = %q, want %q", i, resp.Devices[i].Identity, identity)
				}
			}
		})
	}
}

func TestGetDevice(t *testing.T) {
	srv, reg, _ := testServer(t, "")
	d := addDevice(t, reg, "dev1/light_1", "switch")

	w := get(t, srv.buildRouter(), "/api/v1/devices/"+d.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got device.Device
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Identity != "dev1/light_1" || got.SignalLevel != device.SignalUnknown {
		t.Errorf("device = %+v", got)
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	srv, _, _ := testServer(t, "")
	w := get(t, srv.buildRouter(), "/api/v1/devices/missing")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var apiErr ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if apiErr.Code != ErrCodeDeviceNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, ErrCodeDeviceNotFound)
	}
	if apiErr.RequestID == "" || apiErr.RequestID != w.Header().Get("X-Request-ID") {
		t.Errorf("request_id = %q, want the X-Request-ID header", apiErr.RequestID)
	}
}

func TestDeviceStats(t *testing.T) {
	srv, reg, _ := testServer(t, "")
	addDevice(t, reg, "dev1/a", "switch")
	addDevice(t, reg, "dev1/b", "switch")
	addDevice(t, reg, "dev1/c", "dimmer")

	w := get(t, srv.buildRouter(), "/api/v1/devices/stats")
	var stats device.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.TotalDevices != 3 || stats.ByCategory["switch"] != 2 || stats.ByCategory["dimmer"] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestListTopics(t *testing.T) {
	srv, _, _ := testServer(t, "")
	w := get(t, srv.buildRouter(), "/api/v1/topics")

	var resp struct {
		Topics []string `json:"topics"`
		Count  int      `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 2 || resp.Topics[0] != "homeassistant/#" {
		t.Errorf("topics = %v", resp.Topics)
	}
}

// ─── Auth Tests ────────────────────────────────────────────────────

func TestAuth(t *testing.T) {
	srv, _, _ := testServer(t, testSecret)
	router := srv.buildRouter()

	valid, err := GenerateToken("dashboard", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	expired, _ := GenerateToken("dashboard", testSecret, -time.Minute)
	foreign, _ := GenerateToken("dashboard", "another-secret-key-at-least-32-characters", time.Hour)
	noSubject, _ := GenerateToken("", testSecret, time.Hour)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
		{"no subject", "Bearer " + noSubject, http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w *httptest.ResponseRecorder
			if tt.header == "" {
				w = get(t, router, "/api/v1/devices")
			} else {
				w = get(t, router, "/api/v1/devices", "Authorization", tt.header)
			}
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	// Health and metrics stay open.
	if w := get(t, router, "/api/v1/health"); w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
	if w := get(t, router, "/metrics"); w.Code != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", w.Code)
	}
}

// ─── Metrics Tests ─────────────────────────────────────────────────

func TestMetrics(t *testing.T) {
	srv, reg, stats := testServer(t, "")
	addDevice(t, reg, "dev1/a", "switch")
	addDevice(t, reg, "dev1/b", "switch")
	stats.MessagesReceived.Add(3)
	stats.SuppressedUpdates.Add(1)

	w := get(t, srv.buildRouter(), "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()

	for _, want := range []string{
		"graylogic_discovery_messages_received_total 3",
		"graylogic_discovery_suppressed_updates_total 1",
		"graylogic_discovery_devices 2",
		"graylogic_discovery_subscribed_topics 2",
		"graylogic_discovery_mqtt_connection_state 3",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

type fakeSink struct{ queued, failed uint64 }

func (f fakeSink) PointsQueued() uint64 { return f.queued }
func (f fakeSink) WriteErrors() uint64  { return f.failed }

func TestMetrics_Sink(t *testing.T) {
	srv, _, _ := testServer(t, "")
	if body := get(t, srv.buildRouter(), "/metrics").Body.String(); strings.Contains(body, "influxdb_write_errors_total") {
		t.Error("sink metrics exported without a sink")
	}

	srv.sink = fakeSink{queued: 12, failed: 2}
	srv.metrics = newMetricsRegistry(srv)
	body := get(t, srv.buildRouter(), "/metrics").Body.String()
	for _, want := range []string{
		"graylogic_discovery_influxdb_points_total 12",
		"graylogic_discovery_influxdb_write_errors_total 2",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

// ─── Hub Tests ─────────────────────────────────────────────────────

func newTestClient(hub *Hub, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	return &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
	}
}

func receive(t *testing.T, client *WSClient) WSMessage {
	t.Helper()
	select {
	case data := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast message")
		return WSMessage{}
	}
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	subscribed := newTestClient(hub, ChannelDeviceStateChanged)
	other := newTestClient(hub, ChannelDeviceDiscovered)
	hub.Register(subscribed)
	hub.Register(other)

	hub.Broadcast(ChannelDeviceStateChanged, map[string]any{"identity": "dev1/light_1"})

	if msg := receive(t, subscribed); msg.EventType != ChannelDeviceStateChanged {
		t.Errorf("event_type = %q, want %q", msg.EventType, ChannelDeviceStateChanged)
	}
	select {
	case <-other.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	client := newTestClient(hub)

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
	// A second unregister must not double-close the send channel.
	hub.Unregister(client)
}

func TestHub_DeviceDiscovered(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	client := newTestClient(hub, ChannelDeviceDiscovered)
	hub.Register(client)

	hub.DeviceDiscovered(discovery.Entry{
		Identity:       "dev1/light_1",
		Component:      "light",
		Handle:         "id-1",
		Classification: discovery.Classification{Category: discovery.Category{Kind: discovery.CategoryDimmer}},
	})

	msg := receive(t, client)
	payload, ok := msg.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload = %T, want object", msg.Payload)
	}
	if payload["identity"] != "dev1/light_1" || payload["device_id"] != "id-1" || payload["category"] != "dimmer" {
		t.Errorf("payload = %v", payload)
	}
}

func TestHub_StateChanged(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	client := newTestClient(hub, ChannelDeviceStateChanged)
	hub.Register(client)

	on := true
	level := 40
	hub.StateChanged(discovery.Entry{Identity: "dev1/light_1", Handle: "id-1"}, discovery.StateUpdate{On: &on, Level: &level})

	msg := receive(t, client)
	payload := msg.Payload.(map[string]any)
	state, ok := payload["state"].(map[string]any)
	if !ok {
		t.Fatalf("state = %T, want object", payload["state"])
	}
	if state["on"] != true || state["level"] != float64(40) {
		t.Errorf("state = %v, want on=true level=40", state)
	}
	if _, ok := state["temperature"]; ok {
		t.Error("unset fields must be omitted")
	}
}

func TestStateFields(t *testing.T) {
	temp := 21.5
	cover := discovery.CoverClosed
	desc := "IP: 10.0.0.7"
	available := false

	got := stateFields(discovery.StateUpdate{
		Temperature: &temp,
		Cover:       &cover,
		Description: &desc,
		Available:   &available,
	})

	want := map[string]any{
		"temperature": 21.5,
		"cover":       "closed",
		"description": "IP: 10.0.0.7",
		"available":   false,
	}
	if len(got) != len(want) {
		t.Fatalf("stateFields() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

// ─── WebSocket Tests ───────────────────────────────────────────────

func TestWebSocket_StreamsEvents(t *testing.T) {
	srv, _, _ := testServer(t, testSecret)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	// Without a token the upgrade is refused.
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial without token should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("dial without token response = %v, want 401", resp)
	}

	token, _ := GenerateToken("panel", testSecret, time.Hour)
	ws, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelDeviceStateChanged}},
	}); err != nil {
		t.Fatalf("write subscribe message: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var response WSMessage
	if err := ws.ReadJSON(&response); err != nil {
		t.Fatalf("read response: %v", err)
	}
	if response.Type != WSTypeResponse || response.ID != "sub-1" {
		t.Errorf("response = %+v, want response to sub-1", response)
	}

	level := 60
	srv.Hub().StateChanged(discovery.Entry{Identity: "dev1/light_1", Handle: "id-1"}, discovery.StateUpdate{Level: &level})

	var event WSMessage
	if err := ws.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != ChannelDeviceStateChanged {
		t.Errorf("event = %+v", event)
	}
}

// ─── Lifecycle Tests ───────────────────────────────────────────────

func TestServer_StartAndClose(t *testing.T) {
	srv, _, _ := testServer(t, "")
	port := 19080
	srv.cfg.Port = port

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() before Start() should fail")
	}
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := srv.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error: %v", err)
	}

	addr := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	var resp *http.Response
	var err error
	for i := 0; i < 20; i++ {
		if resp, err = http.Get(addr); err == nil {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health check status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if _, err := http.Get(addr); err == nil {
		t.Error("server still responding after Close()")
	}
}
