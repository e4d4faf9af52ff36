package simmem

import (
	"fmt"

	"github.com/sarchlab/simmem/mem/simmem/internal/delaybank"
	"github.com/sarchlab/simmem/sim/timing"
)

// releaseStages is the number of registers between the scheduler and the
// release counters. Together with the one-cycle read latency of the response
// store it matches delaybank.CompletionLead.
const releaseStages = delaybank.CompletionLead - 1

// Spec holds immutable configuration values for the emulator.
type Spec struct {
	// Originators
	NumIDs int

	// Response stores, in cells. A write cell holds one acknowledgement, a
	// read cell holds a whole burst.
	WriteRspCapacity int
	ReadDataCapacity int

	// Scheduler
	NumWriteSlots  int
	NumReadSlots   int
	MaxBurstLen    int
	MaxBurstSize   int
	RowBufferBytes uint64
	RowHitCost     int
	ActivationCost int
	PrechargeCost  int
	NumRanks       int
	TieBreak       TieBreakPolicy

	// Ports
	ForwardBufSize         int
	EarlyWriteDataCapacity int

	Freq timing.FreqInHz
}

// Defaults returns a Spec with sane defaults.
func Defaults() Spec {
	return Spec{
		NumIDs:                 4,
		WriteRspCapacity:       8,
		ReadDataCapacity:       8,
		NumWriteSlots:          8,
		NumReadSlots:           8,
		MaxBurstLen:            4,
		MaxBurstSize:           2,
		RowBufferBytes:         2048,
		RowHitCost:             3,
		ActivationCost:         3,
		PrechargeCost:          3,
		NumRanks:               1,
		TieBreak:               TieBreakFavorWrite,
		ForwardBufSize:         8,
		EarlyWriteDataCapacity: 16,
		Freq:                   1 * timing.GHz,
	}
}

// Validate rejects a Spec that cannot be built.
func (s Spec) Validate() error {
	if s.NumIDs <= 0 {
		return fmt.Errorf("%w: NumIDs must be > 0", ErrMisconfiguration)
	}

	if s.WriteRspCapacity <= 0 || s.ReadDataCapacity <= 0 {
		return fmt.Errorf("%w: response capacities must be > 0",
			ErrMisconfiguration)
	}

	if s.ForwardBufSize <= 0 || s.EarlyWriteDataCapacity <= 0 {
		return fmt.Errorf("%w: port buffer sizes must be > 0",
			ErrMisconfiguration)
	}

	if err := s.Freq.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMisconfiguration, err)
	}

	return s.schedulerConfig().Validate()
}

func (s Spec) schedulerConfig() delaybank.Config {
	return delaybank.Config{
		NumWriteSlots:  s.NumWriteSlots,
		NumReadSlots:   s.NumReadSlots,
		MaxBurstLen:    s.MaxBurstLen,
		MaxBurstSize:   s.MaxBurstSize,
		RowBufferBytes: s.RowBufferBytes,
		RowHitCost:     s.RowHitCost,
		ActivationCost: s.ActivationCost,
		PrechargeCost:  s.PrechargeCost,
		NumRanks:       s.NumRanks,
		TieBreak:       s.TieBreak,
	}
}
