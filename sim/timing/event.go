package timing

import "github.com/sarchlab/simmem/sim/hooking"

// HookPosBeforeEvent marks the moment before an event is handled.
var HookPosBeforeEvent = &hooking.HookPos{Name: "Before Event"}

// HookPosAfterEvent marks the moment after an event is handled.
var HookPosAfterEvent = &hooking.HookPos{Name: "After Event"}

// Handler processes events of various types. Events are plain data; handlers
// type-switch on them:
//
//	func (h *MyHandler) Handle(event any) error {
//	    switch e := event.(type) {
//	    case TickEvent:
//	        // handle tick
//	    default:
//	        return fmt.Errorf("unknown event type: %T", event)
//	    }
//	    return nil
//	}
type Handler interface {
	Handle(event any) error
}

// TimeTeller exposes the current simulation cycle.
type TimeTeller interface {
	CurrentTime() VTimeInCycle
}

// EventScheduler schedules events in the simulation timeline.
type EventScheduler interface {
	TimeTeller
	Schedule(event ScheduledEvent)
}

// ScheduledEvent is the engine-facing wrapper for user-defined events.
type ScheduledEvent struct {
	// Event is the data payload delivered to the handler.
	Event any

	// Time is the cycle when the event should be processed.
	Time VTimeInCycle

	// Handler is the component that will process this event.
	Handler Handler

	// IsSecondary events run after all primary events of the same cycle.
	IsSecondary bool

	seq uint64
}
