// Package amplifier keeps an infrared-controlled amplifier in step with
// playback.
//
// The amplifier powers on the moment playback starts and powers off only
// after playback has been stopped for a configurable delay, so track
// changes and short pauses never cycle the hardware. Commands go out as
// one-shot infrared sends through the lircd socket.
//
// The device offers no way to read its power state back, so the
// controller sends power-off at startup to establish a known baseline and
// treats every send as fire-and-forget: failures are logged, never
// escalated, because a missed infrared frame must not take the event loop
// down.
package amplifier
