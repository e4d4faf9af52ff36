package tracing

import "github.com/sarchlab/simmem/sim/timing"

// A Task is a piece of work that starts and ends at known cycles. Accepted
// transactions are tasks; the DRAM service of each of their elements is a
// subtask.
type Task struct {
	ID        string              `json:"id"`
	ParentID  string              `json:"parent_id"`
	Kind      string              `json:"kind"`
	What      string              `json:"what"`
	Where     string              `json:"where"`
	StartTime timing.VTimeInCycle `json:"start_time"`
	EndTime   timing.VTimeInCycle `json:"end_time"`
	Detail    any                 `json:"-"`
}

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t Task) bool

// Task kinds.
const (
	KindWrite   = "write"
	KindRead    = "read"
	KindElement = "element"
)
