package metrics

import (
	"github.com/smazurov/bellbridge/internal/events"
)

// Subscriber is the part of the event bus the metrics listen on.
type Subscriber interface {
	Subscribe(handler any) func()
}

// Attach keeps the metrics in step with bus events. The returned function
// detaches them.
func Attach(bus Subscriber) func() {
	unsubs := []func(){
		bus.Subscribe(func(events.SessionPreparedEvent) {
			RecordSessionPrepared()
		}),
		bus.Subscribe(func(e events.StreamStartedEvent) {
			RecordStreamStarted(e.SessionID, e.Mode)
		}),
		bus.Subscribe(func(e events.StreamStoppedEvent) {
			RecordStreamStopped(e.SessionID, e.Reason)
		}),
		bus.Subscribe(func(e events.StreamFailedEvent) {
			RecordStreamFailed(e.Code)
		}),
		bus.Subscribe(func(e events.ProcessExitedEvent) {
			RecordProcessExit(e.Expected)
		}),
		bus.Subscribe(func(e events.DoorbellTriggeredEvent) {
			RecordTrigger(e.Doorbell, e.Kind, e.Source)
		}),
		bus.Subscribe(func(e events.SettingsChangedEvent) {
			SetMaxHeight(e.Doorbell, e.MaxHeight)
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
