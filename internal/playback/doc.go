// Package playback monitors ALSA PCM devices and publishes playback
// start/stop events.
//
// One Monitor runs per configured device. It polls a Probe at a fixed
// interval, announces the state it finds at startup, and fires an event on
// every closed/open transition after that. Probe failures are treated as
// "not playing" so a yanked USB DAC reads as a playback stop, never as a
// dead monitor.
package playback
