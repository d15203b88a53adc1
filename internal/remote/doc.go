// Package remote turns raw key transitions from an input device into
// domain events.
//
// Each completed physical press is classified exactly once: keys with a
// registered long-press mapping are timed from key-down to key-up and emit
// the long-press event at or above the threshold, the plain event below
// it. Keys without a long-press mapping emit their plain event regardless
// of how long they were held.
//
// The evdev source reads the kernel input_event stream directly; only key
// events reach the classifier, everything else is filtered at the source.
package remote
