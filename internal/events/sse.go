package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards events of type T into ch without blocking.
// Events are dropped while ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// SubscribeAll forwards every bridge event type into ch and returns a
// function that removes all of the subscriptions.
func SubscribeAll(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[SessionPreparedEvent](bus, ch),
		SubscribeToChannel[StreamStartedEvent](bus, ch),
		SubscribeToChannel[StreamStoppedEvent](bus, ch),
		SubscribeToChannel[StreamFailedEvent](bus, ch),
		SubscribeToChannel[ProcessExitedEvent](bus, ch),
		SubscribeToChannel[DoorbellTriggeredEvent](bus, ch),
		SubscribeToChannel[SettingsChangedEvent](bus, ch),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
