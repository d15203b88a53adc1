package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// ─── Mock Handlers ──────────────────────────────────────────────────────────

// recordingHandler records every event it receives.
type recordingHandler struct {
	mu       sync.Mutex
	received []receivedEvent
	err      error // returned from HandleEvent if set
	panics   bool  // panic instead of returning
}

type receivedEvent struct {
	Event  Event
	Origin string
}

func (h *recordingHandler) HandleEvent(_ context.Context, event Event, origin string) error {
	if h.panics {
		panic("handler exploded")
	}
	h.mu.Lock()
	h.received = append(h.received, receivedEvent{Event: event, Origin: origin})
	h.mu.Unlock()
	return h.err
}

func (h *recordingHandler) events() []receivedEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	cpy := make([]receivedEvent, len(h.received))
	copy(cpy, h.received)
	return cpy
}

// ─── Subscription Tests ─────────────────────────────────────────────────────

func TestSubscribeNilHandler(t *testing.T) {
	bus := NewBus(nil)
	if err := bus.Subscribe(nil, PlaybackStart); !errors.Is(err, ErrNilHandler) {
		t.Fatalf("expected ErrNilHandler, got %v", err)
	}
}

func TestSubscribeDuplicateIsIdempotent(t *testing.T) {
	bus := NewBus(nil)
	h := &recordingHandler{}

	if err := bus.Subscribe(h, PlaybackStart); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := bus.Subscribe(h, PlaybackStart); err != nil {
		t.Fatalf("subscribe again: %v", err)
	}

	bus.StartRouting()
	if err := bus.Fire(context.Background(), PlaybackStart, "test"); err != nil {
		t.Fatalf("fire: %v", err)
	}

	if got := len(h.events()); got != 1 {
		t.Fatalf("handler invoked %d times, want 1 (set semantics)", got)
	}
}

func TestSubscribeMultipleEventsOneCall(t *testing.T) {
	bus := NewBus(nil)
	h := &recordingHandler{}

	if err := bus.Subscribe(h, KeyOpenClose, APIBluetoothOn); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	bus.StartRouting()
	_ = bus.Fire(context.Background(), KeyOpenClose, "remote")
	_ = bus.Fire(context.Background(), APIBluetoothOn, "api")
	_ = bus.Fire(context.Background(), APIBluetoothOff, "api") // not subscribed

	got := h.events()
	if len(got) != 2 {
		t.Fatalf("received %d events, want 2", len(got))
	}
	if got[0].Event != KeyOpenClose || got[1].Event != APIBluetoothOn {
		t.Fatalf("unexpected events: %+v", got)
	}
}

// ─── Gate Tests ─────────────────────────────────────────────────────────────

func TestFireSuspendsUntilRoutingStarts(t *testing.T) {
	bus := NewBus(nil)
	h := &recordingHandler{}
	if err := bus.Subscribe(h, PlaybackStart); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	const fires = 10
	var wg sync.WaitGroup
	for i := 0; i < fires; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bus.Fire(context.Background(), PlaybackStart, "early"); err != nil {
				t.Errorf("fire: %v", err)
			}
		}()
	}

	// Nothing may be delivered while the gate is closed.
	time.Sleep(50 * time.Millisecond)
	if got := len(h.events()); got != 0 {
		t.Fatalf("%d events delivered before StartRouting", got)
	}

	bus.StartRouting()
	wg.Wait()

	if got := len(h.events()); got != fires {
		t.Fatalf("received %d events after gate opened, want %d", got, fires)
	}
}

func TestStartRoutingIsIdempotent(t *testing.T) {
	bus := NewBus(nil)
	bus.StartRouting()
	bus.StartRouting() // must not panic (double close)

	if !bus.Started() {
		t.Fatal("bus should report started")
	}
}

func TestFireCancelledBeforeGateOpens(t *testing.T) {
	bus := NewBus(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.Fire(ctx, PlaybackStop, "test")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStartedBeforeGateOpens(t *testing.T) {
	bus := NewBus(nil)
	if bus.Started() {
		t.Fatal("bus should not report started before StartRouting")
	}
}

// ─── Fan-out Isolation Tests ────────────────────────────────────────────────

func TestHandlerErrorDoesNotStopFanOut(t *testing.T) {
	bus := NewBus(nil)
	failing := &recordingHandler{err: errors.New("boom")}
	healthy := &recordingHandler{}

	if err := bus.Subscribe(failing, PlaybackStop); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := bus.Subscribe(healthy, PlaybackStop); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	bus.StartRouting()
	if err := bus.Fire(context.Background(), PlaybackStop, "test"); err != nil {
		t.Fatalf("fire: %v", err)
	}

	if got := len(healthy.events()); got != 1 {
		t.Fatalf("healthy handler received %d events, want 1", got)
	}
}

func TestHandlerPanicDoesNotStopFanOut(t *testing.T) {
	bus := NewBus(nil)
	panicking := &recordingHandler{panics: true}
	healthy := &recordingHandler{}

	if err := bus.Subscribe(panicking, KeyOpenCloseLong); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := bus.Subscribe(healthy, KeyOpenCloseLong); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	bus.StartRouting()
	if err := bus.Fire(context.Background(), KeyOpenCloseLong, "test"); err != nil {
		t.Fatalf("fire: %v", err)
	}

	if got := len(healthy.events()); got != 1 {
		t.Fatalf("healthy handler received %d events, want 1", got)
	}
}

// ─── Event String Tests ─────────────────────────────────────────────────────

func TestEventStringNames(t *testing.T) {
	want := map[Event]string{
		PlaybackStart:            "playback_start",
		PlaybackStop:             "playback_stop",
		KeyOpenClose:             "key_openclose",
		KeyOpenCloseLong:         "key_openclose_long",
		APIBluetoothOn:           "api_bluetooth_on",
		APIBluetoothOff:          "api_bluetooth_off",
		APIBluetoothDiscoverable: "api_bluetooth_discoverable",
	}
	for e, name := range want {
		if e.String() != name {
			t.Errorf("%d.String() = %q, want %q", int(e), e.String(), name)
		}
	}
	if Event(99).String() != "unknown" {
		t.Errorf("out-of-range event should stringify as unknown")
	}
}
