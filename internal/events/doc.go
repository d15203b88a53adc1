// Package events provides the domain event vocabulary and the in-process
// event bus that connects the audio controller's components.
//
// Components never call each other directly. Each one subscribes to the
// events it cares about and fires events describing what it observed; the
// bus fans every event out to the handlers registered for its tag.
//
// Delivery is gated: nothing is routed until StartRouting is called, which
// the bootstrap does once every component has subscribed. Fire calls issued
// before that suspend and are delivered once routing starts, so components
// may begin observing hardware before the rest of the system is wired up.
package events
