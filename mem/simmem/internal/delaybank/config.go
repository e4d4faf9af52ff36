// Package delaybank emulates DRAM access timing with a first-ready,
// first-come-first-served scheduler. It decides when each element of an
// accepted transaction has been served, and reports completions that the
// response store turns into release permissions.
package delaybank

import (
	"fmt"

	"github.com/sarchlab/simmem/mem/simmem/internal/signal"
)

// CompletionLead is the number of cycles before the end of a service at
// which the element is reported done. Two cycles carry the completion to the
// response store and one more is the store's read latency, so the response
// leaves exactly when the service ends.
const CompletionLead = 3

// MaxBurstSizeLimit is the largest supported log2 of the element size.
const MaxBurstSizeLimit = 7

// TieBreakPolicy picks between the best write and the best read candidate
// when both fall into the same cost category.
type TieBreakPolicy int

// Tie-break policies.
const (
	TieBreakFavorWrite TieBreakPolicy = iota
	TieBreakFavorRead
	TieBreakOldest
)

func (p TieBreakPolicy) String() string {
	switch p {
	case TieBreakFavorWrite:
		return "favor-write"
	case TieBreakFavorRead:
		return "favor-read"
	case TieBreakOldest:
		return "oldest"
	default:
		return fmt.Sprintf("TieBreakPolicy(%d)", int(p))
	}
}

// ParseTieBreakPolicy converts the names printed by String back to a policy.
func ParseTieBreakPolicy(s string) (TieBreakPolicy, error) {
	for _, p := range []TieBreakPolicy{
		TieBreakFavorWrite, TieBreakFavorRead, TieBreakOldest,
	} {
		if p.String() == s {
			return p, nil
		}
	}

	return 0, fmt.Errorf("%w: unknown tie-break policy %q",
		signal.ErrMisconfiguration, s)
}

// Config describes the simulated DRAM and the scheduler's capacity.
type Config struct {
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
}

// DefaultConfig returns a single-rank configuration with 3-cycle steps.
func DefaultConfig() Config {
	return Config{
		NumWriteSlots:  8,
		NumReadSlots:   8,
		MaxBurstLen:    4,
		MaxBurstSize:   2,
		RowBufferBytes: 2048,
		RowHitCost:     3,
		ActivationCost: 3,
		PrechargeCost:  3,
		NumRanks:       1,
		TieBreak:       TieBreakFavorWrite,
	}
}

// Validate rejects configurations the scheduler cannot run.
func (c Config) Validate() error {
	switch {
	case c.NumWriteSlots <= 0 || c.NumReadSlots <= 0:
		return fmt.Errorf("%w: slot counts must be positive, got %d/%d",
			signal.ErrMisconfiguration, c.NumWriteSlots, c.NumReadSlots)
	case c.MaxBurstLen <= 0:
		return fmt.Errorf("%w: MaxBurstLen must be positive, got %d",
			signal.ErrMisconfiguration, c.MaxBurstLen)
	case c.MaxBurstSize < 0 || c.MaxBurstSize > MaxBurstSizeLimit:
		return fmt.Errorf("%w: MaxBurstSize must be in [0, %d], got %d",
			signal.ErrMisconfiguration, MaxBurstSizeLimit, c.MaxBurstSize)
	case c.RowBufferBytes == 0:
		return fmt.Errorf("%w: RowBufferBytes must be positive",
			signal.ErrMisconfiguration)
	case c.RowHitCost < CompletionLead:
		return fmt.Errorf("%w: RowHitCost must be at least %d, got %d",
			signal.ErrMisconfiguration, CompletionLead, c.RowHitCost)
	case c.ActivationCost < 0 || c.PrechargeCost < 0:
		return fmt.Errorf("%w: costs must not be negative",
			signal.ErrMisconfiguration)
	case c.NumRanks <= 0:
		return fmt.Errorf("%w: NumRanks must be positive, got %d",
			signal.ErrMisconfiguration, c.NumRanks)
	case c.TieBreak < TieBreakFavorWrite || c.TieBreak > TieBreakOldest:
		return fmt.Errorf("%w: unknown tie-break policy %d",
			signal.ErrMisconfiguration, c.TieBreak)
	}

	return nil
}

// CostCategory classifies an access by the state of its rank's row buffer.
type CostCategory int

// Cost categories, cheapest first.
const (
	RowHit CostCategory = iota
	RowMissNoOpen
	RowMissOtherOpen
)

func (c CostCategory) String() string {
	switch c {
	case RowHit:
		return "row-hit"
	case RowMissNoOpen:
		return "row-miss-no-open"
	case RowMissOtherOpen:
		return "row-miss-other-open"
	default:
		return fmt.Sprintf("CostCategory(%d)", int(c))
	}
}

// Cost returns the number of cycles a rank is busy serving an access of the
// category.
func (c Config) Cost(cat CostCategory) int {
	switch cat {
	case RowHit:
		return c.RowHitCost
	case RowMissNoOpen:
		return c.RowHitCost + c.ActivationCost
	default:
		return c.RowHitCost + c.ActivationCost + c.PrechargeCost
	}
}
