package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/Moudilu/audio-controller/internal/events"
)

// KeyState is the transition reported for a key.
type KeyState int

// Key transition values, matching the kernel's event values.
const (
	KeyUp   KeyState = 0
	KeyDown KeyState = 1
)

// KeyEvent is one key transition from the input device.
type KeyEvent struct {
	// Names holds the candidate key names for the received key code. A
	// code can map to several names; the classifier deterministically
	// takes the first one.
	Names []string

	// State is the transition (down or up).
	State KeyState

	// Time is the kernel timestamp of the transition. Press duration is
	// computed from these timestamps, not from wall-clock reads.
	Time time.Time
}

// Source yields key transitions from an input device.
//
// The stream is infinite and restartable only by process restart; a Source
// error is fatal for the classifier.
type Source interface {
	Next(ctx context.Context) (KeyEvent, error)
}

// EventBus is the interface the classifier needs from the event bus.
type EventBus interface {
	Fire(ctx context.Context, event events.Event, origin string) error
}

// Logger is the logging interface for the classifier.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// DefaultKeyMap returns the press mappings for the stock remote: the CD
// tray key drives the Bluetooth controller.
func DefaultKeyMap() (press, longPress map[string]events.Event) {
	press = map[string]events.Event{
		"KEY_EJECTCLOSECD": events.KeyOpenClose,
	}
	longPress = map[string]events.Event{
		"KEY_EJECTCLOSECD": events.KeyOpenCloseLong,
	}
	return press, longPress
}

// Classifier consumes key transitions and fires press events.
//
// Run is the only goroutine touching the tracker, so it needs no locking.
type Classifier struct {
	origin    string
	source    Source
	bus       EventBus
	threshold time.Duration
	logger    Logger

	// press maps key names to the event fired on release. If the key also
	// has a longPress mapping and was held at least threshold, that event
	// is fired instead.
	press     map[string]events.Event
	longPress map[string]events.Event

	// downAt tracks when keys with a long-press mapping were last pressed.
	// Entries are removed unconditionally when the key is released.
	downAt map[string]time.Time
}

// NewClassifier creates a classifier with the given mappings.
//
// Parameters:
//   - origin: Label used as the event origin (e.g. "evdev0")
//   - source: Key transition source
//   - bus: Event bus to fire press events on
//   - threshold: Minimum hold duration for a long press
//   - press, longPress: Key name → event mappings
//   - logger: Logger (may be nil)
func NewClassifier(origin string, source Source, bus EventBus, threshold time.Duration,
	press, longPress map[string]events.Event, logger Logger,
) *Classifier {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Classifier{
		origin:    origin,
		source:    source,
		bus:       bus,
		threshold: threshold,
		logger:    logger,
		press:     press,
		longPress: longPress,
		downAt:    make(map[string]time.Time),
	}
}

// Run consumes the source until ctx is cancelled or the source fails.
//
// Returns:
//   - error: ctx.Err() on shutdown, or the source failure. A source
//     failure silently removes the remote control capability, so callers
//     must treat it as fatal and loud.
func (c *Classifier) Run(ctx context.Context) error {
	c.logger.Info("reading key events", "source", c.origin, "threshold", c.threshold)

	for {
		ev, err := c.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("stopping key classifier", "source", c.origin)
				return ctx.Err()
			}
			return fmt.Errorf("remote: reading key events: %w", err)
		}
		if err := c.handle(ctx, ev); err != nil {
			return err
		}
	}
}

// handle classifies a single transition.
func (c *Classifier) handle(ctx context.Context, ev KeyEvent) error {
	if len(ev.Names) == 0 {
		return nil
	}

	// A code can map to several key names; take the first deterministically.
	name := ev.Names[0]
	if len(ev.Names) > 1 {
		c.logger.Warn("key with several names received, using first",
			"names", ev.Names,
			"using", name,
		)
	}

	switch ev.State {
	case KeyDown:
		// Only keys with a long-press mapping need duration tracking.
		if _, ok := c.longPress[name]; ok {
			c.downAt[name] = ev.Time
		}
		return nil

	case KeyUp:
		// Remove the tracker entry no matter what gets fired below.
		downAt, tracked := c.downAt[name]
		delete(c.downAt, name)

		if tracked && ev.Time.Sub(downAt) >= c.threshold {
			c.logger.Info("key long pressed", "key", name)
			return c.bus.Fire(ctx, c.longPress[name], c.origin)
		}
		if event, ok := c.press[name]; ok {
			c.logger.Info("key pressed", "key", name)
			return c.bus.Fire(ctx, event, c.origin)
		}
		return nil

	default:
		// Repeats and anything else the kernel may grow.
		return nil
	}
}
