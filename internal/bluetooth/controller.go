package bluetooth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Moudilu/audio-controller/internal/audit"
	"github.com/Moudilu/audio-controller/internal/events"
)

// Adapter is the capability interface over the Bluetooth radio.
//
// The controller never caches adapter state beyond the startup
// normalization; it only requests transitions.
type Adapter interface {
	Powered(ctx context.Context) (bool, error)
	SetPowered(ctx context.Context, on bool) error
	SetDiscoverable(ctx context.Context, on bool) error
	SetPairable(ctx context.Context, on bool) error
	SetDiscoverableTimeout(ctx context.Context, seconds uint32) error

	// TrustDevice marks the device (by object path) as trusted.
	TrustDevice(ctx context.Context, device string) error

	// RemoveDevice erases all registration state for the device so a
	// later pairing attempt is not blocked by stale half-registered state.
	RemoveDevice(ctx context.Context, device string) error
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

// Controller drives the adapter through three states: powered off, powered
// on, and powered on with an open pairing window.
//
// Thread Safety: all methods are safe for concurrent use; the pairing
// window (flag plus its expiry timer) is guarded by a mutex so at most one
// timer is ever live.
type Controller struct {
	adapter  Adapter
	bus      EventBus
	recorder audit.Repository // may be nil
	window   time.Duration
	logger   Logger

	mu           sync.Mutex
	allowPairing bool
	windowTimer  *time.Timer
}

// NewController creates a pairing controller.
//
// Parameters:
//   - adapter: Radio capability interface
//   - bus: Event bus to subscribe on
//   - recorder: Pairing audit repository (may be nil)
//   - window: Pairing window duration (90s in production)
//   - logger: Logger (may be nil)
func NewController(adapter Adapter, bus EventBus, recorder audit.Repository, window time.Duration, logger Logger) *Controller {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Controller{
		adapter:  adapter,
		bus:      bus,
		recorder: recorder,
		window:   window,
		logger:   logger,
	}
}

// Init normalizes the adapter and subscribes to the controller's events.
//
// The adapter is made pairable, gets the discoverable timeout, and is
// forced to powered off regardless of its prior state: the controller
// always starts from a known baseline.
//
// Returns:
//   - error: If any adapter call or the subscription fails
func (c *Controller) Init(ctx context.Context) error {
	// The adapter should always be pairable in this scenario; the pairing
	// window is what actually gates access.
	if err := c.adapter.SetPairable(ctx, true); err != nil {
		return fmt.Errorf("bluetooth: setting pairable: %w", err)
	}
	if err := c.adapter.SetDiscoverableTimeout(ctx, uint32(c.window/time.Second)); err != nil {
		return fmt.Errorf("bluetooth: setting discoverable timeout: %w", err)
	}

	powered, err := c.adapter.Powered(ctx)
	if err != nil {
		return fmt.Errorf("bluetooth: reading power state: %w", err)
	}
	c.logger.Info("adapter found at startup", "powered", powered)
	if powered {
		if err := c.PowerOff(ctx); err != nil {
			return err
		}
	}

	if err := c.bus.Subscribe(c,
		events.KeyOpenClose,
		events.KeyOpenCloseLong,
		events.APIBluetoothOn,
		events.APIBluetoothOff,
		events.APIBluetoothDiscoverable,
	); err != nil {
		return fmt.Errorf("bluetooth: subscribing: %w", err)
	}
	return nil
}

// HandleEvent implements events.Handler.
func (c *Controller) HandleEvent(ctx context.Context, event events.Event, origin string) error {
	switch event {
	case events.KeyOpenClose, events.APIBluetoothOn:
		return c.PowerOn(ctx)
	case events.KeyOpenCloseLong, events.APIBluetoothDiscoverable:
		return c.MakeDiscoverable(ctx)
	case events.APIBluetoothOff:
		return c.PowerOff(ctx)
	default:
		return nil
	}
}

// PowerOn powers the adapter without opening a pairing window.
func (c *Controller) PowerOn(ctx context.Context) error {
	c.logger.Info("turning adapter on")
	if err := c.adapter.SetPowered(ctx, true); err != nil {
		return fmt.Errorf("bluetooth: powering on: %w", err)
	}
	return nil
}

// PowerOff powers the adapter down and cancels any open pairing window.
func (c *Controller) PowerOff(ctx context.Context) error {
	c.logger.Info("turning adapter off")
	c.stopWindow()
	if err := c.adapter.SetPowered(ctx, false); err != nil {
		return fmt.Errorf("bluetooth: powering off: %w", err)
	}
	return nil
}

// MakeDiscoverable powers the adapter, makes it discoverable and opens the
// pairing window.
//
// The window closes on the first granted authorization or when its expiry
// timer fires, whichever comes first.
func (c *Controller) MakeDiscoverable(ctx context.Context) error {
	c.logger.Info("opening pairing window",
		"duration", c.window,
	)
	c.startWindow()

	if err := c.adapter.SetPowered(ctx, true); err != nil {
		return fmt.Errorf("bluetooth: powering on: %w", err)
	}
	if err := c.adapter.SetDiscoverable(ctx, true); err != nil {
		return fmt.Errorf("bluetooth: setting discoverable: %w", err)
	}
	return nil
}

// Authorize decides a pairing request from the protocol stack.
//
// Inside an open window the device is trusted, the window closes early and
// discoverability stops. Outside a window the device's half-registered
// state is removed and ErrPairingRejected is returned; the caller must
// surface it as a protocol-level rejection, not merely log it.
//
// Parameters:
//   - ctx: Request context from the stack
//   - device: Object path of the requesting device
//   - service: UUID of the service being authorized
//
// Returns:
//   - error: nil on grant, ErrPairingRejected on denial
func (c *Controller) Authorize(ctx context.Context, device, service string) error {
	c.mu.Lock()
	allowed := c.allowPairing
	if allowed {
		// One successful pairing consumes the window.
		c.stopWindowLocked()
	}
	c.mu.Unlock()

	if !allowed {
		c.logger.Info("denied pairing request",
			"device", device,
			"service", service,
		)
		c.record(ctx, device, service, audit.DecisionDenied, false)
		if err := c.adapter.RemoveDevice(ctx, device); err != nil {
			c.logger.Warn("failed to remove denied device", "device", device, "error", err)
		}
		return ErrPairingRejected
	}

	c.logger.Info("authorized pairing request",
		"device", device,
		"service", service,
	)
	c.record(ctx, device, service, audit.DecisionGranted, true)

	if err := c.adapter.TrustDevice(ctx, device); err != nil {
		c.logger.Error("failed to trust paired device", "device", device, "error", err)
	}
	if err := c.adapter.SetDiscoverable(ctx, false); err != nil {
		c.logger.Warn("failed to stop discoverability", "error", err)
	}
	return nil
}

// PairingAllowed reports whether a pairing window is currently open.
func (c *Controller) PairingAllowed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allowPairing
}

// Close cancels any pending window timer.
func (c *Controller) Close() {
	c.stopWindow()
}

// startWindow opens the pairing window, replacing any previous timer.
//
// Cancel-then-arm keeps the invariant that at most one expiry timer is
// ever live, no matter how often windows are requested.
func (c *Controller) startWindow() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopWindowLocked()
	c.allowPairing = true
	c.windowTimer = time.AfterFunc(c.window, c.expireWindow)
}

// expireWindow closes the window when the timer fires: no further pairing,
// no discoverability, but the adapter stays powered.
func (c *Controller) expireWindow() {
	c.mu.Lock()
	wasOpen := c.allowPairing
	c.allowPairing = false
	c.windowTimer = nil
	c.mu.Unlock()

	if !wasOpen {
		return
	}

	c.logger.Info("pairing window expired")
	ctx, cancel := context.WithTimeout(context.Background(), adapterCallTimeout)
	defer cancel()
	if err := c.adapter.SetDiscoverable(ctx, false); err != nil {
		c.logger.Warn("failed to stop discoverability", "error", err)
	}
}

// adapterCallTimeout bounds adapter calls made from timer callbacks, which
// have no caller-supplied context.
const adapterCallTimeout = 10 * time.Second

// stopWindow closes the window and cancels its timer.
func (c *Controller) stopWindow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopWindowLocked()
}

// stopWindowLocked requires c.mu held.
func (c *Controller) stopWindowLocked() {
	c.allowPairing = false
	if c.windowTimer != nil {
		c.windowTimer.Stop()
		c.windowTimer = nil
	}
}

// record writes an audit entry; failures are logged, never escalated.
func (c *Controller) record(ctx context.Context, device, service string, decision audit.Decision, windowOpen bool) {
	if c.recorder == nil {
		return
	}
	rec := &audit.PairingRecord{
		Device:     device,
		Service:    service,
		Decision:   decision,
		WindowOpen: windowOpen,
	}
	if err := c.recorder.Create(ctx, rec); err != nil {
		c.logger.Warn("failed to record pairing decision", "error", err)
	}
}
