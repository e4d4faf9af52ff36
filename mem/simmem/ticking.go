package simmem

import "github.com/sarchlab/simmem/sim/timing"

// A Driver acts on the ports of a Comp. Drivers run before the Comp ticks,
// so what they send is staged for the same cycle.
type Driver interface {
	Drive(c *Comp) (madeProgress bool)
}

// TickingComp ticks a Comp and its drivers on an engine, once per cycle, for
// as long as any of them makes progress.
type TickingComp struct {
	*timing.TickingComponent

	comp     *Comp
	drivers  []Driver
	abortErr error
}

// NewTickingComp wraps the comp and its drivers. Drivers run in the given
// order.
func NewTickingComp(
	engine timing.EventScheduler,
	comp *Comp,
	drivers ...Driver,
) *TickingComp {
	tc := &TickingComp{
		comp:    comp,
		drivers: drivers,
	}
	tc.TickingComponent = timing.NewTickingComponent(engine, tc)
	tc.TickScheduler = timing.NewTickScheduler(tc, engine)

	return tc
}

// Comp returns the wrapped emulator.
func (tc *TickingComp) Comp() *Comp {
	return tc.comp
}

// AddDriver appends a driver. It runs after the ones already added.
func (tc *TickingComp) AddDriver(d Driver) {
	tc.drivers = append(tc.drivers, d)
}

// Name returns the name of the wrapped emulator.
func (tc *TickingComp) Name() string {
	return tc.comp.Name()
}

// Status takes a snapshot of the wrapped emulator.
func (tc *TickingComp) Status() Status {
	return tc.comp.Status()
}

// Abort makes the next tick fail with err, which stops the engine.
func (tc *TickingComp) Abort(err error) {
	if tc.abortErr == nil {
		tc.abortErr = err
	}
}

// Handle ticks the drivers and the emulator unless the run was aborted.
func (tc *TickingComp) Handle(e any) error {
	if tc.abortErr != nil {
		return tc.abortErr
	}

	return tc.TickingComponent.Handle(e)
}

// Tick runs every driver and then the emulator.
func (tc *TickingComp) Tick() (madeProgress bool) {
	for _, d := range tc.drivers {
		madeProgress = d.Drive(tc.comp) || madeProgress
	}

	madeProgress = tc.comp.Tick() || madeProgress

	return madeProgress
}

var _ timing.Ticker = (*TickingComp)(nil)
