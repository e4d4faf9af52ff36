// Package timing provides the cycle-based event engine that drives the
// simulation.
package timing

import (
	"errors"
	"math"
)

// FreqInHz defines frequency in the unit of Hertz (cycles per second).
type FreqInHz uint64

// Commonly used frequencies.
const (
	Hz  = FreqInHz(1)
	KHz = FreqInHz(1000 * Hz)
	MHz = FreqInHz(1000 * KHz)
	GHz = FreqInHz(1000 * MHz)
)

// VTimeInCycle is the time quantum used by the engine. All timestamps are
// multiples of a cycle.
type VTimeInCycle uint64

// VTimeInSec is a wall-clock-like duration derived from cycles.
type VTimeInSec float64

// ErrZeroFrequency indicates that a clock with zero frequency was requested.
var ErrZeroFrequency = errors.New("timing: frequency must be greater than zero")

// MaxCycle is the largest representable cycle.
const MaxCycle = VTimeInCycle(math.MaxUint64)

// Validate checks if the frequency can drive a clock.
func (f FreqInHz) Validate() error {
	if f == 0 {
		return ErrZeroFrequency
	}

	return nil
}

// Period returns the length of one cycle in seconds.
func (f FreqInHz) Period() VTimeInSec {
	if f == 0 {
		return 0
	}

	return VTimeInSec(1.0 / float64(f))
}

// CyclesToSeconds converts a number of cycles of this clock to seconds.
func (f FreqInHz) CyclesToSeconds(cycles VTimeInCycle) VTimeInSec {
	if f == 0 {
		return 0
	}

	return VTimeInSec(float64(cycles) / float64(f))
}

// NCyclesLater returns the cycle n cycles after now, saturating at MaxCycle.
func NCyclesLater(now VTimeInCycle, n uint64) VTimeInCycle {
	if uint64(now) > math.MaxUint64-n {
		return MaxCycle
	}

	return now + VTimeInCycle(n)
}
