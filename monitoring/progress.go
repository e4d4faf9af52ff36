package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/simmem/mem/simmem"
	"github.com/sarchlab/simmem/sim/hooking"
)

// A ProgressBar is a tracker of the progress
type ProgressBar struct {
	sync.Mutex
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// IncrementInProgress adds the number of in-progress element.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress += amount
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// MoveInProgressToFinished reduces the number of in progress item by a certain
// amount and increase the finished item by the same amount.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress -= amount
	b.Finished += amount
}

// Snapshot returns the finished and in-progress counts.
func (b *ProgressBar) Snapshot() (finished, inProgress uint64) {
	b.Lock()
	defer b.Unlock()

	return b.Finished, b.InProgress
}

// NewProgressHook returns a hook that counts the transactions of an emulator
// on the bar. A transaction is in progress from its address until its last
// response beat is taken.
func NewProgressHook(bar *ProgressBar) hooking.Hook {
	return hooking.HookFunc(func(ctx hooking.HookCtx) {
		switch ctx.Pos {
		case simmem.HookPosAddrAccepted:
			bar.IncrementInProgress(1)
		case simmem.HookPosRspReleased:
			if ctx.Detail.(simmem.Release).Last {
				bar.MoveInProgressToFinished(1)
			}
		}
	})
}
