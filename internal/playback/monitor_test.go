package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Moudilu/audio-controller/internal/events"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

// scriptedProbe returns a fixed sequence of states, then repeats the last.
type scriptedProbe struct {
	mu     sync.Mutex
	states []State
	errs   []error
	idx    int
	owner  string
}

func (p *scriptedProbe) State(_ context.Context) (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.idx
	if i >= len(p.states) {
		i = len(p.states) - 1
	} else {
		p.idx++
	}
	var err error
	if i < len(p.errs) {
		err = p.errs[i]
	}
	return p.states[i], err
}

func (p *scriptedProbe) Owner(_ context.Context) string {
	if p.owner == "" {
		return "UNKNOWN"
	}
	return p.owner
}

// captureBus records fired events; the gate is always open.
type captureBus struct {
	mu    sync.Mutex
	fired []firedEvent
}

type firedEvent struct {
	Event  events.Event
	Origin string
}

func (b *captureBus) Fire(_ context.Context, event events.Event, origin string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fired = append(b.fired, firedEvent{Event: event, Origin: origin})
	return nil
}

func (b *captureBus) events() []firedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	cpy := make([]firedEvent, len(b.fired))
	copy(cpy, b.fired)
	return cpy
}

func (b *captureBus) waitFor(t *testing.T, n int) []firedEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := b.events(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, have %d", n, len(b.events()))
	return nil
}

func runMonitor(t *testing.T, m *Monitor) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestMonitorAnnouncesInitialStateAndTransitions(t *testing.T) {
	probe := &scriptedProbe{
		states: []State{StateClosed, StateClosed, StateOpen, StateOpen, StateClosed},
	}
	bus := &captureBus{}
	m := NewMonitor("DAC.0", probe, bus, 10*time.Millisecond, nil)
	runMonitor(t, m)

	// One initial announcement plus one event per state change:
	// STOP (baseline), START (closed→open), STOP (open→closed).
	got := bus.waitFor(t, 3)[:3]

	want := []events.Event{events.PlaybackStop, events.PlaybackStart, events.PlaybackStop}
	for i, e := range want {
		if got[i].Event != e {
			t.Errorf("event[%d] = %s, want %s", i, got[i].Event, e)
		}
	}
	if got[0].Origin != "DAC.0 PCM device" {
		t.Errorf("origin = %q", got[0].Origin)
	}

	// No further transitions: event count must settle at 3.
	time.Sleep(50 * time.Millisecond)
	if n := len(bus.events()); n != 3 {
		t.Errorf("received %d events, want exactly 3", n)
	}
}

func TestMonitorAnnouncesOpenAtStartup(t *testing.T) {
	probe := &scriptedProbe{states: []State{StateOpen}, owner: "mpd --no-daemon"}
	bus := &captureBus{}
	m := NewMonitor("DAC.0", probe, bus, 10*time.Millisecond, nil)
	runMonitor(t, m)

	got := bus.waitFor(t, 1)
	if got[0].Event != events.PlaybackStart {
		t.Fatalf("initial event = %s, want playback_start", got[0].Event)
	}
}

func TestMonitorTreatsProbeErrorAsClosed(t *testing.T) {
	readErr := errors.New("status file vanished")
	probe := &scriptedProbe{
		states: []State{StateOpen, StateClosed, StateOpen},
		errs:   []error{nil, readErr, nil},
	}
	bus := &captureBus{}
	m := NewMonitor("DAC.0", probe, bus, 10*time.Millisecond, nil)
	runMonitor(t, m)

	// START (initial), STOP (probe error → closed), START (recovered).
	// The loop must survive the error and keep polling.
	got := bus.waitFor(t, 3)[:3]
	want := []events.Event{events.PlaybackStart, events.PlaybackStop, events.PlaybackStart}
	for i, e := range want {
		if got[i].Event != e {
			t.Errorf("event[%d] = %s, want %s", i, got[i].Event, e)
		}
	}
}

func TestMonitorStopsOnCancel(t *testing.T) {
	probe := &scriptedProbe{states: []State{StateClosed}}
	bus := &captureBus{}
	m := NewMonitor("DAC.0", probe, bus, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()

	bus.waitFor(t, 1)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
