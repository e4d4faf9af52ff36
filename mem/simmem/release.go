package simmem

import (
	"log"

	"github.com/sarchlab/simmem/mem/simmem/internal/rspbank"
)

// releaseCounter holds, per response cell, how many stored elements the
// scheduler has declared served and that have not left yet.
type releaseCounter struct {
	name   string
	counts []int
}

func newReleaseCounter(name string, numCells int) *releaseCounter {
	return &releaseCounter{
		name:   name,
		counts: make([]int, numCells),
	}
}

func (r *releaseCounter) ReleasableCount(cell int) int {
	return r.counts[cell]
}

func (r *releaseCounter) Released(cell int) {
	if r.counts[cell] <= 0 {
		log.Panicf("%s: cell %d released without permission", r.name, cell)
	}

	r.counts[cell]--
}

func (r *releaseCounter) grant(cell int) {
	r.counts[cell]++
}

func (r *releaseCounter) pending() int {
	n := 0
	for _, c := range r.counts {
		n += c
	}

	return n
}

var _ rspbank.ReleaseEnabler = (*releaseCounter)(nil)
