// Package api provides the HTTP REST API and WebSocket event stream for
// the audio controller.
//
// The REST surface is intentionally small: health, the three Bluetooth
// controls and the pairing audit trail. Controls do not act on hardware
// directly; they fire events on the bus, same as a remote keypress, so
// every consumer sees one uniform event stream regardless of origin.
//
// The server follows the same lifecycle pattern as other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
