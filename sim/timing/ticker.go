package timing

import (
	"fmt"
	"sync"
)

// TickEvent asks a handler to update its state for one cycle.
type TickEvent struct {
	Time VTimeInCycle
}

// A Ticker is an object that updates states with ticks.
type Ticker interface {
	Tick() (madeProgress bool)
}

// TickScheduler can help schedule tick events. It never schedules two ticks
// for the same cycle.
type TickScheduler struct {
	lock      sync.Mutex
	handler   Handler
	engine    EventScheduler
	secondary bool

	scheduled    bool
	nextTickTime VTimeInCycle
}

// NewTickScheduler creates a scheduler for tick events.
func NewTickScheduler(handler Handler, engine EventScheduler) *TickScheduler {
	return &TickScheduler{
		handler: handler,
		engine:  engine,
	}
}

// NewSecondaryTickScheduler creates a scheduler that always schedules
// secondary tick events.
func NewSecondaryTickScheduler(
	handler Handler,
	engine EventScheduler,
) *TickScheduler {
	t := NewTickScheduler(handler, engine)
	t.secondary = true

	return t
}

// TickNow schedules a tick at the current cycle.
func (t *TickScheduler) TickNow() {
	t.tickAt(t.engine.CurrentTime())
}

// TickLater schedules a tick at the cycle after the current one.
func (t *TickScheduler) TickLater() {
	t.tickAt(NCyclesLater(t.engine.CurrentTime(), 1))
}

func (t *TickScheduler) tickAt(time VTimeInCycle) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.scheduled && t.nextTickTime >= time {
		return
	}

	t.scheduled = true
	t.nextTickTime = time

	t.engine.Schedule(ScheduledEvent{
		Event:       TickEvent{Time: time},
		Time:        time,
		Handler:     t.handler,
		IsSecondary: t.secondary,
	})
}

// TickingComponent turns a Ticker into an event handler that keeps ticking
// every cycle for as long as the ticker makes progress.
type TickingComponent struct {
	*TickScheduler

	ticker Ticker
}

// NewTickingComponent wraps the ticker.
func NewTickingComponent(
	engine EventScheduler,
	ticker Ticker,
) *TickingComponent {
	tc := &TickingComponent{ticker: ticker}
	tc.TickScheduler = NewTickScheduler(tc, engine)

	return tc
}

// Handle ticks the wrapped ticker.
func (c *TickingComponent) Handle(e any) error {
	if _, ok := e.(TickEvent); !ok {
		return fmt.Errorf("timing: unexpected event type %T", e)
	}

	if c.ticker.Tick() {
		c.TickLater()
	}

	return nil
}
