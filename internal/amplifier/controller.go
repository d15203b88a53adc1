package amplifier

import (
	"context"
	"sync"
	"time"

	"github.com/Moudilu/audio-controller/internal/events"
)

// Sender transmits a single infrared command.
type Sender interface {
	Send(ctx context.Context, remote, command string) error
}

// EventBus is the interface the controller needs from the event bus.
type EventBus interface {
	Subscribe(handler events.Handler, evs ...events.Event) error
}

// Logger is the logging interface for the controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Controller debounces playback transitions into amplifier power commands.
//
// Thread Safety: safe for concurrent use; the shutdown timer is guarded by
// a mutex and re-armed cancel-then-arm so at most one is ever pending.
type Controller struct {
	sender        Sender
	bus           EventBus
	remote        string
	powerOnCmd    string
	powerOffCmd   string
	shutdownDelay time.Duration
	logger        Logger

	mu            sync.Mutex
	shutdownTimer *time.Timer
}

// NewController creates an amplifier controller.
//
// Parameters:
//   - sender: Infrared transmitter
//   - bus: Event bus to subscribe on
//   - remote: Remote name as configured in lircd (e.g. "HK970")
//   - powerOnCmd: Key name that wakes the amplifier
//   - powerOffCmd: Key name that puts it to sleep
//   - shutdownDelay: Quiet time after playback stop before power-off
//   - logger: Logger (may be nil)
func NewController(sender Sender, bus EventBus, remote, powerOnCmd, powerOffCmd string, shutdownDelay time.Duration, logger Logger) *Controller {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Controller{
		sender:        sender,
		bus:           bus,
		remote:        remote,
		powerOnCmd:    powerOnCmd,
		powerOffCmd:   powerOffCmd,
		shutdownDelay: shutdownDelay,
		logger:        logger,
	}
}

// Init sends the baseline power-off and subscribes to playback events.
//
// The amplifier's true state is unknowable at startup; forcing it off
// keeps the controller's assumption honest until the first playback.
func (c *Controller) Init(ctx context.Context) error {
	c.powerOff(ctx)
	return c.bus.Subscribe(c, events.PlaybackStart, events.PlaybackStop)
}

// HandleEvent implements events.Handler.
func (c *Controller) HandleEvent(ctx context.Context, event events.Event, origin string) error {
	switch event {
	case events.PlaybackStart:
		c.cancelShutdown()
		c.powerOn(ctx)
	case events.PlaybackStop:
		c.armShutdown()
	}
	return nil
}

// Close cancels any pending shutdown timer.
func (c *Controller) Close() {
	c.cancelShutdown()
}

// armShutdown schedules the delayed power-off, replacing any pending one.
func (c *Controller) armShutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdownTimer != nil {
		c.shutdownTimer.Stop()
	}
	c.logger.Debug("scheduling amplifier shutdown", "delay", c.shutdownDelay)
	c.shutdownTimer = time.AfterFunc(c.shutdownDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		c.logger.Info("playback quiet, shutting amplifier down", "delay", c.shutdownDelay)
		c.powerOff(ctx)
	})
}

// sendTimeout bounds sends made from timer callbacks, which have no
// caller-supplied context.
const sendTimeout = 10 * time.Second

func (c *Controller) cancelShutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdownTimer != nil {
		c.shutdownTimer.Stop()
		c.shutdownTimer = nil
	}
}

func (c *Controller) powerOn(ctx context.Context) {
	c.logger.Info("powering amplifier on")
	if err := c.sender.Send(ctx, c.remote, c.powerOnCmd); err != nil {
		c.logger.Error("failed to send power-on", "remote", c.remote, "command", c.powerOnCmd, "error", err)
	}
}

func (c *Controller) powerOff(ctx context.Context) {
	c.logger.Info("powering amplifier off")
	if err := c.sender.Send(ctx, c.remote, c.powerOffCmd); err != nil {
		c.logger.Error("failed to send power-off", "remote", c.remote, "command", c.powerOffCmd, "error", err)
	}
}
