package bluetooth

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// BlueZ D-Bus names and paths.
const (
	bluezService = "org.bluez"

	adapterIface = "org.bluez.Adapter1"
	deviceIface  = "org.bluez.Device1"
	agentIface   = "org.bluez.Agent1"

	agentManagerIface = "org.bluez.AgentManager1"
	agentManagerPath  = dbus.ObjectPath("/org/bluez")

	// agentPath is where this process exports its pairing agent.
	agentPath = dbus.ObjectPath("/ch/audioctl/agent")

	// agentCapability tells BlueZ the box has no display and no keyboard,
	// which selects the just-works association model.
	agentCapability = "NoInputNoOutput"

	rejectedError = "org.bluez.Error.Rejected"
)

// BlueZAdapter implements Adapter over the org.bluez system bus API.
type BlueZAdapter struct {
	conn   *dbus.Conn
	path   dbus.ObjectPath
	logger Logger
}

// NewBlueZAdapter connects to the system bus and binds to a BlueZ adapter.
//
// Parameters:
//   - adapter: Adapter name under /org/bluez (e.g. "hci0")
//   - logger: Logger (may be nil)
//
// Returns:
//   - *BlueZAdapter: Connected adapter proxy
//   - error: If the system bus is unreachable or the adapter is absent
func NewBlueZAdapter(adapter string, logger Logger) (*BlueZAdapter, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("bluetooth: connecting to system bus: %w", err)
	}

	path := dbus.ObjectPath("/org/bluez/" + adapter)
	a := &BlueZAdapter{conn: conn, path: path, logger: logger}

	// Probe the adapter so a typo in the name fails at startup, not on the
	// first event.
	if _, err := a.Powered(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bluetooth: adapter %s not available: %w", adapter, err)
	}
	return a, nil
}

// Close releases the bus connection.
func (a *BlueZAdapter) Close() error {
	return a.conn.Close()
}

func (a *BlueZAdapter) object() dbus.BusObject {
	return a.conn.Object(bluezService, a.path)
}

func (a *BlueZAdapter) setProperty(ctx context.Context, name string, value any) error {
	call := a.object().CallWithContext(ctx,
		"org.freedesktop.DBus.Properties.Set", 0,
		adapterIface, name, dbus.MakeVariant(value),
	)
	if call.Err != nil {
		return fmt.Errorf("bluetooth: setting %s.%s: %w", adapterIface, name, call.Err)
	}
	return nil
}

// Powered implements Adapter.
func (a *BlueZAdapter) Powered(ctx context.Context) (bool, error) {
	var v dbus.Variant
	err := a.object().CallWithContext(ctx,
		"org.freedesktop.DBus.Properties.Get", 0,
		adapterIface, "Powered",
	).Store(&v)
	if err != nil {
		return false, fmt.Errorf("bluetooth: reading Powered: %w", err)
	}
	on, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("bluetooth: Powered has unexpected type %T", v.Value())
	}
	return on, nil
}

// SetPowered implements Adapter.
func (a *BlueZAdapter) SetPowered(ctx context.Context, on bool) error {
	return a.setProperty(ctx, "Powered", on)
}

// SetDiscoverable implements Adapter.
func (a *BlueZAdapter) SetDiscoverable(ctx context.Context, on bool) error {
	return a.setProperty(ctx, "Discoverable", on)
}

// SetPairable implements Adapter.
func (a *BlueZAdapter) SetPairable(ctx context.Context, on bool) error {
	return a.setProperty(ctx, "Pairable", on)
}

// SetDiscoverableTimeout implements Adapter.
func (a *BlueZAdapter) SetDiscoverableTimeout(ctx context.Context, seconds uint32) error {
	return a.setProperty(ctx, "DiscoverableTimeout", seconds)
}

// TrustDevice implements Adapter. The device is addressed by its D-Bus
// object path as handed to the agent.
func (a *BlueZAdapter) TrustDevice(ctx context.Context, device string) error {
	call := a.conn.Object(bluezService, dbus.ObjectPath(device)).CallWithContext(ctx,
		"org.freedesktop.DBus.Properties.Set", 0,
		deviceIface, "Trusted", dbus.MakeVariant(true),
	)
	if call.Err != nil {
		return fmt.Errorf("bluetooth: trusting %s: %w", device, call.Err)
	}
	return nil
}

// RemoveDevice implements Adapter.
func (a *BlueZAdapter) RemoveDevice(ctx context.Context, device string) error {
	call := a.object().CallWithContext(ctx,
		adapterIface+".RemoveDevice", 0,
		dbus.ObjectPath(device),
	)
	if call.Err != nil {
		return fmt.Errorf("bluetooth: removing %s: %w", device, call.Err)
	}
	return nil
}

// Authorizer decides pairing requests delivered by the agent.
type Authorizer interface {
	Authorize(ctx context.Context, device, service string) error
}

// Agent is the org.bluez.Agent1 implementation exported on the bus.
//
// Only AuthorizeService carries logic; with the NoInputNoOutput capability
// BlueZ never asks for PINs or passkeys, so the remaining methods exist to
// satisfy the interface and log when they are unexpectedly hit.
type Agent struct {
	authorizer Authorizer
	logger     Logger
}

// RegisterAgent exports the pairing agent on the adapter's bus connection
// and makes it the default agent.
//
// Returns:
//   - *Agent: The exported agent
//   - error: If exporting or registering fails
func RegisterAgent(a *BlueZAdapter, authorizer Authorizer, logger Logger) (*Agent, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	agent := &Agent{authorizer: authorizer, logger: logger}

	if err := a.conn.Export(agent, agentPath, agentIface); err != nil {
		return nil, fmt.Errorf("bluetooth: exporting agent: %w", err)
	}

	manager := a.conn.Object(bluezService, agentManagerPath)
	if call := manager.Call(agentManagerIface+".RegisterAgent", 0, agentPath, agentCapability); call.Err != nil {
		return nil, fmt.Errorf("bluetooth: registering agent: %w", call.Err)
	}
	if call := manager.Call(agentManagerIface+".RequestDefaultAgent", 0, agentPath); call.Err != nil {
		return nil, fmt.Errorf("bluetooth: making agent default: %w", call.Err)
	}

	logger.Info("pairing agent registered", "path", string(agentPath), "capability", agentCapability)
	return agent, nil
}

// AuthorizeService handles the pairing decision for an incoming service
// connection. Denials surface as org.bluez.Error.Rejected.
func (ag *Agent) AuthorizeService(device dbus.ObjectPath, uuid string) *dbus.Error {
	if err := ag.authorizer.Authorize(context.Background(), string(device), uuid); err != nil {
		return dbus.NewError(rejectedError, []any{err.Error()})
	}
	return nil
}

// RequestAuthorization handles bare pairing requests that carry no service
// UUID. Same decision path as AuthorizeService.
func (ag *Agent) RequestAuthorization(device dbus.ObjectPath) *dbus.Error {
	if err := ag.authorizer.Authorize(context.Background(), string(device), ""); err != nil {
		return dbus.NewError(rejectedError, []any{err.Error()})
	}
	return nil
}

// Release is called when BlueZ unregisters the agent. That only happens if
// another agent displaces this one, which breaks pairing entirely.
func (ag *Agent) Release() *dbus.Error {
	ag.logger.Error("pairing agent released by bluetooth service")
	return nil
}

// Cancel is called when BlueZ abandons an in-flight request.
func (ag *Agent) Cancel() *dbus.Error {
	ag.logger.Warn("pairing request cancelled by bluetooth service")
	return nil
}
