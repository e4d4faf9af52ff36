package delaybank

import "github.com/sarchlab/simmem/mem/simmem/internal/signal"

// SlotState is a snapshot of a scheduler slot.
type SlotState struct {
	Valid      bool
	InternalID int
	Addr       uint64
	BurstLen   int
	BurstSize  int
	NumArrived int
	Arrived    []bool
	InFlight   []bool
	Done       []bool
}

// RankState is a snapshot of a rank.
type RankState struct {
	RowOpen bool
	OpenRow uint64
	Delay   int
	Busy    bool
	Elem    Element
}

func (s *Scheduler) lowestFreeSlot(kind signal.Kind) int {
	for i := range s.pools[kind] {
		if !s.pools[kind][i].valid {
			return i
		}
	}

	return -1
}

// NumLiveSlots returns the number of valid slots of the kind.
func (s *Scheduler) NumLiveSlots(kind signal.Kind) int {
	n := 0

	for i := range s.pools[kind] {
		if s.pools[kind][i].valid {
			n++
		}
	}

	return n
}

// SlotState returns a copy of the committed state of a slot.
func (s *Scheduler) SlotState(kind signal.Kind, i int) SlotState {
	sl := &s.pools[kind][i]

	return SlotState{
		Valid:      sl.valid,
		InternalID: sl.internalID,
		Addr:       sl.addr,
		BurstLen:   sl.burstLen,
		BurstSize:  sl.burstSize,
		NumArrived: sl.numArrived(),
		Arrived:    append([]bool(nil), sl.arrived...),
		InFlight:   append([]bool(nil), sl.inFlight...),
		Done:       append([]bool(nil), sl.done...),
	}
}

// RankState returns the committed state of rank r.
func (s *Scheduler) RankState(r int) RankState {
	rk := s.ranks[r]

	return RankState{
		RowOpen: rk.rowOpen,
		OpenRow: rk.openRow,
		Delay:   rk.delay,
		Busy:    rk.busy,
		Elem:    rk.elem,
	}
}

// Idle tells if no slot is live, nothing is staged and every rank has
// finished counting down.
func (s *Scheduler) Idle() bool {
	if s.NumLiveSlots(signal.KindWrite) > 0 || s.NumLiveSlots(signal.KindRead) > 0 {
		return false
	}

	if s.stagedAccept[signal.KindWrite] != nil ||
		s.stagedAccept[signal.KindRead] != nil ||
		len(s.stagedBeats) > 0 {
		return false
	}

	for i := range s.ranks {
		if s.ranks[i].delay > 0 {
			return false
		}
	}

	return true
}
