// Package wdataorder absorbs the skew between write addresses and write data.
// Beats may arrive before or after their address. The adapter makes sure the
// scheduler is only told about beats that really arrived, and that every
// beat is credited to the oldest address still owed data.
package wdataorder

import (
	"fmt"

	"github.com/sarchlab/simmem/mem/simmem/internal/signal"
)

// An Adapter counts write beats that arrived ahead of their address (spare)
// and beats that accepted addresses still wait for (owed).
type Adapter struct {
	spareCapacity int
	spare         int
	owed          int
}

// New creates an Adapter that holds at most spareCapacity early beats.
func New(spareCapacity int) (*Adapter, error) {
	if spareCapacity <= 0 {
		return nil, fmt.Errorf("%w: spare capacity must be positive, got %d",
			signal.ErrMisconfiguration, spareCapacity)
	}

	return &Adapter{spareCapacity: spareCapacity}, nil
}

// AcceptAddr registers a write address and returns how many of its beats
// already arrived.
func (a *Adapter) AcceptAddr(burstLen int) (alreadyArrived int) {
	alreadyArrived = min(a.spare, burstLen)
	a.spare -= alreadyArrived
	a.owed += burstLen - alreadyArrived

	return alreadyArrived
}

// CanAcceptData tells if a beat would be taken now.
func (a *Adapter) CanAcceptData() bool {
	return a.owed > 0 || a.spare < a.spareCapacity
}

// AcceptData registers a write beat. It returns true if the beat belongs to
// an accepted address and must be reported to the scheduler now.
func (a *Adapter) AcceptData() (forward bool, err error) {
	if a.owed > 0 {
		a.owed--
		return true, nil
	}

	if a.spare >= a.spareCapacity {
		return false, fmt.Errorf("%w: %d early write beats buffered",
			signal.ErrResourceExhausted, a.spare)
	}

	a.spare++

	return false, nil
}

// Spare returns the number of beats waiting for their address.
func (a *Adapter) Spare() int {
	return a.spare
}

// Owed returns the number of beats accepted addresses still wait for.
func (a *Adapter) Owed() int {
	return a.owed
}
