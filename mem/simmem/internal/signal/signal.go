// Package signal holds the values exchanged between the parts of the
// simulated memory: transaction kinds, completion notices and the error
// categories every part reports.
package signal

import "errors"

var (
	// ErrResourceExhausted means no cell or slot is free this cycle. The
	// caller should retry on a later cycle.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrProtocolViolation means a caller broke the port contract.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrMisconfiguration means a parameter is rejected at construction time.
	ErrMisconfiguration = errors.New("misconfiguration")
)

// Kind tells whether a transaction is a write or a read.
type Kind int

// Transaction kinds.
const (
	KindWrite Kind = iota
	KindRead
)

func (k Kind) String() string {
	switch k {
	case KindWrite:
		return "write"
	case KindRead:
		return "read"
	default:
		return "unknown"
	}
}

// A Completion reports that the simulated DRAM finished serving part of a
// transaction. InternalID is the response cell reserved for it.
type Completion struct {
	Kind       Kind
	InternalID int
}
