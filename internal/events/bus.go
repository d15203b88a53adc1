package events

import (
	"context"
	"fmt"
	"sync"
)

// Logger is the logging interface the Bus needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

// Bus is the in-process publish/subscribe broker for domain events.
//
// A Bus starts with its gate closed: Fire calls suspend until StartRouting
// is called. The gate opens at most once and never closes again.
//
// Thread Safety: all methods are safe for concurrent use from multiple
// goroutines. The subscription table is mutex-protected; the gate is a
// channel closed exactly once.
type Bus struct {
	logger Logger

	mu       sync.RWMutex
	handlers map[Event]map[Handler]struct{}

	gateOnce sync.Once
	gate     chan struct{}
}

// NewBus creates a new event bus with a closed gate.
//
// Parameters:
//   - logger: Logger for delivery diagnostics (may be nil)
func NewBus(logger Logger) *Bus {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bus{
		logger:   logger,
		handlers: make(map[Event]map[Handler]struct{}),
		gate:     make(chan struct{}),
	}
}

// Subscribe registers handler for every event in evs.
//
// Subscriptions are purely additive and live for the process lifetime.
// Registering the same handler for the same event twice is a no-op:
// handlers form a set per event, not a list.
//
// Returns:
//   - error: ErrNilHandler if handler is nil
func (b *Bus) Subscribe(handler Handler, evs ...Event) error {
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range evs {
		set, ok := b.handlers[e]
		if !ok {
			set = make(map[Handler]struct{})
			b.handlers[e] = set
		}
		set[handler] = struct{}{}
		b.logger.Debug("subscribed handler", "event", e.String(), "handler", fmt.Sprintf("%T", handler))
	}
	return nil
}

// Fire delivers event to every handler currently subscribed for it.
//
// If routing has not started yet, Fire suspends until StartRouting is
// called (or ctx is cancelled); no event is ever dropped while waiting for
// the gate. The subscription snapshot is taken at delivery time, after the
// gate opens.
//
// Handlers run synchronously in the caller's goroutine, in unspecified
// order. A handler error or panic is logged and does not prevent delivery
// to the remaining handlers.
//
// Parameters:
//   - ctx: cancels the wait for the gate (shutdown)
//   - event: the event to deliver
//   - origin: free-text label of who fired the event
//
// Returns:
//   - error: ctx.Err() if cancelled before the gate opened, nil otherwise
func (b *Bus) Fire(ctx context.Context, event Event, origin string) error {
	select {
	case <-b.gate:
	case <-ctx.Done():
		return fmt.Errorf("events: fire %s from %s: %w", event, origin, ctx.Err())
	}

	b.mu.RLock()
	snapshot := make([]Handler, 0, len(b.handlers[event]))
	for h := range b.handlers[event] {
		snapshot = append(snapshot, h)
	}
	b.mu.RUnlock()

	for _, h := range snapshot {
		b.invoke(ctx, h, event, origin)
	}

	b.logger.Debug("event delivered",
		"event", event.String(),
		"origin", origin,
		"handlers", len(snapshot),
	)
	return nil
}

// invoke calls a single handler, isolating errors and panics so one
// misbehaving handler cannot break fan-out to its peers.
func (b *Bus) invoke(ctx context.Context, h Handler, event Event, origin string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", event.String(),
				"origin", origin,
				"handler", fmt.Sprintf("%T", h),
				"panic", r,
			)
		}
	}()

	if err := h.HandleEvent(ctx, event, origin); err != nil {
		b.logger.Error("event handler failed",
			"event", event.String(),
			"origin", origin,
			"handler", fmt.Sprintf("%T", h),
			"error", err,
		)
	}
}

// StartRouting opens the gate and releases all suspended Fire calls.
//
// Must be called exactly once by the bootstrap, after every component has
// subscribed. Further calls are no-ops.
func (b *Bus) StartRouting() {
	b.gateOnce.Do(func() {
		close(b.gate)
		b.logger.Debug("event routing started")
	})
}

// Started reports whether the gate has opened.
//
// Intended for health reporting; components should never poll this before
// firing (Fire already waits for the gate).
func (b *Bus) Started() bool {
	select {
	case <-b.gate:
		return true
	default:
		return false
	}
}
