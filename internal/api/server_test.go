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

	"github.com/Moudilu/audio-controller/internal/audit"
	"github.com/Moudilu/audio-controller/internal/events"
	"github.com/Moudilu/audio-controller/internal/infrastructure/config"
	"github.com/Moudilu/audio-controller/internal/infrastructure/logging"
)

// ─── Test Helpers ───────────────────────────────────────────────────────────

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		Path:         "/api/v1/ws",
		PingInterval: 30,
		WriteTimeout: 10,
		SendBuffer:   16,
	}
}

// newTestServer builds a Server around a live bus with routing started and
// returns the chi handler for httptest.
func newTestServer(t *testing.T, repo audit.Repository) (*Server, http.Handler, *events.Bus) {
	t.Helper()

	bus := events.NewBus(nil)
	bus.StartRouting()

	s, err := New(Deps{
		Config:  config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:      testWSConfig(),
		Logger:  logging.Default(),
		Bus:     bus,
		Audit:   repo,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(ctx)
	if err := bus.Subscribe(s.hub,
		events.PlaybackStart,
		events.PlaybackStop,
		events.KeyOpenClose,
		events.KeyOpenCloseLong,
		events.APIBluetoothOn,
		events.APIBluetoothOff,
		events.APIBluetoothDiscoverable,
	); err != nil {
		t.Fatalf("subscribing hub: %v", err)
	}

	return s, s.buildRouter(), bus
}

// recordingHandler captures events delivered by the bus.
type recordingHandler struct {
	mu    sync.Mutex
	seen  []events.Event
	origs []string
}

func (h *recordingHandler) HandleEvent(_ context.Context, event events.Event, origin string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, event)
	h.origs = append(h.origs, origin)
	return nil
}

func (h *recordingHandler) snapshot() ([]events.Event, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.Event(nil), h.seen...), append([]string(nil), h.origs...)
}

type stubRepo struct {
	result *audit.ListResult
	err    error
	gotFil audit.Filter
}

func (r *stubRepo) Create(context.Context, *audit.PairingRecord) error { return nil }

func (r *stubRepo) List(_ context.Context, filter audit.Filter) (*audit.ListResult, error) {
	r.gotFil = filter
	return r.result, r.err
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Deps{Bus: events.NewBus(nil)}); err == nil {
		t.Error("New without logger should fail")
	}
	if _, err := New(Deps{Logger: logging.Default()}); err == nil {
		t.Error("New without bus should fail")
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, handler, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
	if body["routing"] != true {
		t.Errorf("routing = %v, want true on a started bus", body["routing"])
	}
}

func TestBluetoothEndpointsFireEvents(t *testing.T) {
	tests := []struct {
		path string
		want events.Event
	}{
		{"/api/v1/bluetooth/on", events.APIBluetoothOn},
		{"/api/v1/bluetooth/off", events.APIBluetoothOff},
		{"/api/v1/bluetooth/discoverable", events.APIBluetoothDiscoverable},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			_, handler, bus := newTestServer(t, nil)
			rh := &recordingHandler{}
			if err := bus.Subscribe(rh, tc.want); err != nil {
				t.Fatal(err)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
			}
			seen, origins := rh.snapshot()
			if len(seen) != 1 || seen[0] != tc.want {
				t.Fatalf("delivered %v, want [%s]", seen, tc.want)
			}
			if !strings.HasPrefix(origins[0], "REST API call from ") {
				t.Errorf("origin = %q", origins[0])
			}
		})
	}
}

func TestBluetoothEndpointUnavailableBeforeRouting(t *testing.T) {
	bus := events.NewBus(nil) // gate stays closed
	s, err := New(Deps{
		Config:  config.APIConfig{},
		WS:      testWSConfig(),
		Logger:  logging.Default(),
		Bus:     bus,
		Version: "test",
	})
	if err != nil {
		t.Fatal(err)
	}
	s.hub = NewHub(s.wsCfg, s.logger)
	handler := s.buildRouter()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bluetooth/on", nil).WithContext(ctx)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 while the gate is closed", rec.Code)
	}
}

func TestListPairings(t *testing.T) {
	repo := &stubRepo{result: &audit.ListResult{
		Records: []audit.PairingRecord{{ID: "aud-1", Decision: audit.DecisionGranted}},
		Total:   1,
		Limit:   50,
	}}
	_, handler, _ := newTestServer(t, repo)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pairings?decision=granted&limit=10&offset=5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if repo.gotFil.Decision != audit.DecisionGranted || repo.gotFil.Limit != 10 || repo.gotFil.Offset != 5 {
		t.Errorf("filter = %+v", repo.gotFil)
	}

	var result audit.ListResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if result.Total != 1 || len(result.Records) != 1 || result.Records[0].ID != "aud-1" {
		t.Errorf("result = %+v", result)
	}
}

func TestListPairingsRejectsBadDecision(t *testing.T) {
	_, handler, _ := newTestServer(t, &stubRepo{result: &audit.ListResult{}})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pairings?decision=maybe", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListPairingsWithoutRepository(t *testing.T) {
	_, handler, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pairings", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when audit is disabled", rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	_, handler, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response missing generated X-Request-ID")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-chosen")
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-chosen" {
		t.Errorf("X-Request-ID = %q, want the client's value echoed", got)
	}
}

func TestWebSocketReceivesEvents(t *testing.T) {
	s, handler, bus := newTestServer(t, nil)

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	resp.Body.Close()

	// Registration happens on the server side just after the handshake;
	// wait for it before firing.
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.hub.ClientCount() == 0 {
		t.Fatal("client never registered with the hub")
	}

	if err := bus.Fire(context.Background(), events.PlaybackStart, "test fixture"); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading websocket message: %v", err)
	}

	var msg WSEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decoding message %s: %v", data, err)
	}
	if msg.Type != "event" || msg.Event != "playback_start" || msg.Origin != "test fixture" {
		t.Errorf("message = %+v", msg)
	}
	if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC3339", msg.Timestamp)
	}
}

func TestHubClientLifecycle(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Default())

	c := &wsClient{hub: hub, send: make(chan []byte, 1)}
	hub.register(c)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d, want 1", hub.ClientCount())
	}

	hub.unregister(c)
	if hub.ClientCount() != 0 {
		t.Fatalf("ClientCount = %d, want 0", hub.ClientCount())
	}
	// Unregistering twice must not double-close the send channel.
	hub.unregister(c)
}

func TestHubSkipsSlowClients(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Default())

	// Zero-capacity channel with no reader: every send must be dropped,
	// never blocked on.
	c := &wsClient{hub: hub, send: make(chan []byte)}
	hub.register(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := hub.HandleEvent(context.Background(), events.PlaybackStart, "test"); err != nil {
			t.Errorf("HandleEvent: %v", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}
