// Package simmem provides a memory timing emulator. It sits between a bus
// master and a real memory that answers immediately, and holds every
// response back until a simulated DRAM would have produced it, while keeping
// the responses of each originator id in order.
package simmem

import (
	"github.com/sarchlab/simmem/mem/simmem/internal/delaybank"
	"github.com/sarchlab/simmem/mem/simmem/internal/signal"
	"github.com/sarchlab/simmem/sim/idgen"
	"github.com/sarchlab/simmem/sim/timing"
)

// Errors reported by the emulator. Use errors.Is to test for them.
var (
	ErrResourceExhausted = signal.ErrResourceExhausted
	ErrProtocolViolation = signal.ErrProtocolViolation
	ErrMisconfiguration  = signal.ErrMisconfiguration
)

// Kind tells writes from reads.
type Kind = signal.Kind

// Transaction kinds.
const (
	KindWrite = signal.KindWrite
	KindRead  = signal.KindRead
)

// TieBreakPolicy chooses between a write and a read of equal cost.
type TieBreakPolicy = delaybank.TieBreakPolicy

// Tie-break policies.
const (
	TieBreakFavorWrite = delaybank.TieBreakFavorWrite
	TieBreakFavorRead  = delaybank.TieBreakFavorRead
	TieBreakOldest     = delaybank.TieBreakOldest
)

// ParseTieBreakPolicy parses "favor-write", "favor-read" or "oldest".
func ParseTieBreakPolicy(s string) (TieBreakPolicy, error) {
	return delaybank.ParseTieBreakPolicy(s)
}

// WriteAddr starts a write burst.
type WriteAddr struct {
	ID        int
	Addr      uint64
	BurstLen  int
	BurstSize int
	Tag       uint64
}

// ReadAddr starts a read burst.
type ReadAddr struct {
	ID        int
	Addr      uint64
	BurstLen  int
	BurstSize int
	Tag       uint64
}

// WriteData is one beat of write data.
type WriteData struct {
	Data uint64
	Last bool
}

// WriteRsp acknowledges a whole write burst.
type WriteRsp struct {
	ID  int
	Tag uint64
}

// ReadData is one beat of a read response. Beat is the position of the beat
// within its burst.
type ReadData struct {
	ID   int
	Data uint64
	Beat int
	Last bool
	Tag  uint64
}

// Transaction describes an accepted address request. It is the item of the
// emulator's hooks.
type Transaction struct {
	ID         idgen.ID
	Kind       Kind
	AXIID      int
	Addr       uint64
	BurstLen   int
	BurstSize  int
	Tag        uint64
	InternalID int
	AcceptedAt timing.VTimeInCycle
}

// Release is the detail of a HookPosRspReleased hook.
type Release struct {
	Beat int
	Last bool
	At   timing.VTimeInCycle
}
