package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/Moudilu/audio-controller/internal/events"
)

// State is the observed state of a PCM device.
type State int

const (
	// StateClosed means no process has the device open for playback.
	StateClosed State = iota

	// StateOpen means playback is running (or starting/closing).
	StateOpen
)

// String returns "closed" or "open".
func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// Probe reads the current state of one PCM device.
type Probe interface {
	// State returns the device state. Implementations fail soft: a missing
	// or unreadable status source returns StateClosed alongside the error.
	State(ctx context.Context) (State, error)

	// Owner returns the command line of the process currently using the
	// device, or "UNKNOWN" if it cannot be determined. Best effort only.
	Owner(ctx context.Context) string
}

// EventBus is the interface the monitor needs from the event bus.
type EventBus interface {
	Fire(ctx context.Context, event events.Event, origin string) error
}

// Logger is the logging interface for the monitor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Monitor polls one PCM device and fires playback events on transitions.
//
// The state machine is UNKNOWN → {CLOSED, OPEN} at startup, then moves only
// between CLOSED and OPEN. The startup state is announced as an event even
// when it is CLOSED, so downstream consumers always have a baseline.
type Monitor struct {
	name   string
	probe  Probe
	bus    EventBus
	period time.Duration
	logger Logger

	lastState State
}

// NewMonitor creates a monitor for one device.
//
// Parameters:
//   - name: Device label used in logs and event origins (e.g. "DAC.0")
//   - probe: State source for the device
//   - bus: Event bus to fire playback events on
//   - period: Poll interval
//   - logger: Logger (may be nil)
func NewMonitor(name string, probe Probe, bus EventBus, period time.Duration, logger Logger) *Monitor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Monitor{
		name:   name,
		probe:  probe,
		bus:    bus,
		period: period,
		logger: logger,
	}
}

// Run polls the device until ctx is cancelled.
//
// It first announces the current state, then fires PlaybackStart or
// PlaybackStop on every transition. Probe failures are logged and treated
// as CLOSED; the loop never terminates on them.
//
// Returns:
//   - error: ctx.Err() on shutdown; Run has no other exit path
func (m *Monitor) Run(ctx context.Context) error {
	m.lastState = m.readState(ctx)
	m.logger.Info("starting playback monitor",
		"device", m.name,
		"state", m.lastState.String(),
		"period", m.period,
	)
	if err := m.announce(ctx, m.lastState); err != nil {
		return err
	}

	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("stopping playback monitor", "device", m.name)
			return ctx.Err()
		case <-ticker.C:
			state := m.readState(ctx)
			if state == m.lastState {
				continue
			}
			if err := m.announce(ctx, state); err != nil {
				return err
			}
			m.lastState = state
		}
	}
}

// readState probes the device, degrading to CLOSED on failure.
func (m *Monitor) readState(ctx context.Context) State {
	state, err := m.probe.State(ctx)
	if err != nil {
		m.logger.Warn("probing PCM device failed, assuming closed",
			"device", m.name,
			"error", err,
		)
		return StateClosed
	}
	return state
}

// announce fires the event matching state.
//
// The only error it can return is a cancelled gate wait during shutdown.
func (m *Monitor) announce(ctx context.Context, state State) error {
	origin := fmt.Sprintf("%s PCM device", m.name)

	if state == StateClosed {
		m.logger.Info("playback stopped", "device", m.name)
		return m.bus.Fire(ctx, events.PlaybackStop, origin)
	}

	// Owner lookup is observability only; it degrades to UNKNOWN and must
	// never delay or abort the event.
	m.logger.Info("playback started",
		"device", m.name,
		"process", m.probe.Owner(ctx),
	)
	return m.bus.Fire(ctx, events.PlaybackStart, origin)
}
