// Package bluetooth manages the Bluetooth radio's power and pairing
// lifecycle.
//
// The controller implements the "just works" association model: while an
// operator-opened pairing window is active, any device requesting to pair
// is granted and trusted; outside the window every request is rejected at
// the protocol level. The window is the sole access control, matching a
// physical button on the box.
//
// The BlueZ stack (bluez.go) talks to org.bluez over the system D-Bus and
// exports the authorization agent that routes pairing requests to the
// controller.
//
// In case pairing fails, the remote device may linger in a half-registered
// state on the adapter. Denied requests therefore remove the device record
// so a later legitimate attempt starts clean.
package bluetooth
