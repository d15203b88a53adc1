package bluetooth

import "errors"

// Domain-specific errors for Bluetooth operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrPairingRejected is returned by Authorize when a pairing request
	// arrives outside an open pairing window. The agent surfaces it to the
	// protocol stack as org.bluez.Error.Rejected.
	ErrPairingRejected = errors.New("bluetooth: not in pairing mode")
)
