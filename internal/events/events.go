package events

import "context"

// Event identifies a domain event routed by the Bus.
//
// The set is closed and known at compile time. Handlers switch over the
// event exhaustively and treat unknown tags as a no-op; adding a tag here
// means revisiting every handler site.
type Event int

const (
	// PlaybackStart is fired when playback starts on a monitored PCM device.
	PlaybackStart Event = iota

	// PlaybackStop is fired when playback stops on a monitored PCM device.
	PlaybackStop

	// KeyOpenClose is fired on a short press of the open/close key.
	KeyOpenClose

	// KeyOpenCloseLong is fired on a long press of the open/close key.
	KeyOpenCloseLong

	// APIBluetoothOn is fired when the REST API requests Bluetooth power on.
	APIBluetoothOn

	// APIBluetoothOff is fired when the REST API requests Bluetooth power off.
	APIBluetoothOff

	// APIBluetoothDiscoverable is fired when the REST API requests a
	// pairing window.
	APIBluetoothDiscoverable
)

// String returns the stable wire name of the event.
//
// These names are part of the external contract (logs, WebSocket stream)
// and must not change.
func (e Event) String() string {
	switch e {
	case PlaybackStart:
		return "playback_start"
	case PlaybackStop:
		return "playback_stop"
	case KeyOpenClose:
		return "key_openclose"
	case KeyOpenCloseLong:
		return "key_openclose_long"
	case APIBluetoothOn:
		return "api_bluetooth_on"
	case APIBluetoothOff:
		return "api_bluetooth_off"
	case APIBluetoothDiscoverable:
		return "api_bluetooth_discoverable"
	default:
		return "unknown"
	}
}

// Handler receives events from the Bus.
//
// Handler identity is interface equality: subscribing the same handler
// value twice for the same event registers it once. Components therefore
// implement Handler on a pointer receiver.
//
// A returned error is logged by the Bus and does not affect delivery to
// the remaining handlers.
type Handler interface {
	HandleEvent(ctx context.Context, event Event, origin string) error
}
