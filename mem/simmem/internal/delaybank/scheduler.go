package delaybank

import (
	"fmt"

	"github.com/sarchlab/simmem/mem/simmem/internal/signal"
	"github.com/sarchlab/simmem/sim/hooking"
	"github.com/sarchlab/simmem/sim/naming"
)

// HookPosElementServiced marks when a rank starts serving an element.
var HookPosElementServiced = &hooking.HookPos{Name: "Element Serviced"}

// HookPosElementDone marks when an element is reported done.
var HookPosElementDone = &hooking.HookPos{Name: "Element Done"}

// Request is an accepted transaction handed to the scheduler.
type Request struct {
	Kind       signal.Kind
	InternalID int
	Addr       uint64
	BurstLen   int
	BurstSize  int

	// Arrived is the number of write beats received before the address.
	Arrived int
}

// Element identifies one beat of a transaction while it is being served.
type Element struct {
	Kind       signal.Kind
	Slot       int
	Index      int
	InternalID int
	Addr       uint64
	Row        uint64
	Rank       int
	Category   CostCategory
	Cost       int
	Age        uint64
}

type slot struct {
	valid      bool
	internalID int
	addr       uint64
	burstLen   int
	burstSize  int
	arrived    []bool
	inFlight   []bool
	done       []bool
	age        []uint64
}

func (s *slot) allDone() bool {
	for _, d := range s.done {
		if !d {
			return false
		}
	}

	return true
}

func (s *slot) numArrived() int {
	n := 0

	for i := 0; i < s.burstLen; i++ {
		if s.arrived[i] {
			n++
		}
	}

	return n
}

type rank struct {
	rowOpen bool
	openRow uint64
	delay   int
	busy    bool
	elem    Element
}

type dataWait struct {
	slot    int
	missing int
}

// A Scheduler decides, cycle by cycle, which element each rank serves.
type Scheduler struct {
	naming.NamedBase
	*hooking.HookableBase

	cfg Config

	pools [2][]slot
	ranks []rank
	age   uint64

	stagedAccept [2]*stagedAccept
	stagedBeats  []int
	awaitData    []dataWait
}

type stagedAccept struct {
	slot int
	req  Request
}

// New creates a Scheduler.
func New(name string, cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler %s: %w", name, err)
	}

	s := &Scheduler{
		NamedBase:    naming.MakeNamedBase(name),
		HookableBase: hooking.NewHookableBase(),
		cfg:          cfg,
		ranks:        make([]rank, cfg.NumRanks),
	}

	s.pools[signal.KindWrite] = s.makePool(cfg.NumWriteSlots)
	s.pools[signal.KindRead] = s.makePool(cfg.NumReadSlots)

	return s, nil
}

func (s *Scheduler) makePool(n int) []slot {
	pool := make([]slot, n)
	for i := range pool {
		pool[i].arrived = make([]bool, s.cfg.MaxBurstLen)
		pool[i].inFlight = make([]bool, s.cfg.MaxBurstLen)
		pool[i].done = make([]bool, s.cfg.MaxBurstLen)
		pool[i].age = make([]uint64, s.cfg.MaxBurstLen)
	}

	return pool
}

// Config returns the configuration of the scheduler.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// CanAccept tells if a request of the kind would find a free slot now.
func (s *Scheduler) CanAccept(kind signal.Kind) bool {
	return s.stagedAccept[kind] == nil && s.lowestFreeSlot(kind) >= 0
}

// Accept allocates a slot for the request. The slot takes part in scheduling
// from the next cycle on.
func (s *Scheduler) Accept(req Request) (int, error) {
	if err := s.checkRequest(req); err != nil {
		return 0, err
	}

	if s.stagedAccept[req.Kind] != nil {
		return 0, fmt.Errorf("%w: %s: second %s accept in one cycle",
			signal.ErrProtocolViolation, s.Name(), req.Kind)
	}

	free := s.lowestFreeSlot(req.Kind)
	if free < 0 {
		return 0, fmt.Errorf("%w: %s: no free %s slot",
			signal.ErrResourceExhausted, s.Name(), req.Kind)
	}

	s.stagedAccept[req.Kind] = &stagedAccept{slot: free, req: req}

	if req.Kind == signal.KindWrite && req.Arrived < req.BurstLen {
		s.awaitData = append(s.awaitData,
			dataWait{slot: free, missing: req.BurstLen - req.Arrived})
	}

	return free, nil
}

func (s *Scheduler) checkRequest(req Request) error {
	if req.Kind != signal.KindWrite && req.Kind != signal.KindRead {
		return fmt.Errorf("%w: %s: unknown kind %d",
			signal.ErrProtocolViolation, s.Name(), req.Kind)
	}

	if req.BurstLen < 1 || req.BurstLen > s.cfg.MaxBurstLen {
		return fmt.Errorf("%w: %s: burst length %d outside [1, %d]",
			signal.ErrProtocolViolation, s.Name(), req.BurstLen, s.cfg.MaxBurstLen)
	}

	if req.BurstSize < 0 || req.BurstSize > s.cfg.MaxBurstSize {
		return fmt.Errorf("%w: %s: burst size %d outside [0, %d]",
			signal.ErrProtocolViolation, s.Name(), req.BurstSize, s.cfg.MaxBurstSize)
	}

	if req.InternalID < 0 {
		return fmt.Errorf("%w: %s: negative internal id",
			signal.ErrProtocolViolation, s.Name())
	}

	if req.Arrived < 0 || req.Arrived > req.BurstLen {
		return fmt.Errorf("%w: %s: %d beats arrived for a burst of %d",
			signal.ErrProtocolViolation, s.Name(), req.Arrived, req.BurstLen)
	}

	if req.Kind == signal.KindRead && req.Arrived != 0 {
		return fmt.Errorf("%w: %s: data arrived for a read",
			signal.ErrProtocolViolation, s.Name())
	}

	return nil
}

// WriteDataArrived records one write beat. It belongs to the oldest accepted
// write that still misses data.
func (s *Scheduler) WriteDataArrived() error {
	if len(s.awaitData) == 0 {
		return fmt.Errorf("%w: %s: write data without a waiting address",
			signal.ErrProtocolViolation, s.Name())
	}

	w := &s.awaitData[0]
	s.stagedBeats = append(s.stagedBeats, w.slot)
	w.missing--

	if w.missing == 0 {
		s.awaitData = s.awaitData[1:]
	}

	return nil
}

// Tick advances the ranks by one cycle and returns the completions reported
// in this cycle.
func (s *Scheduler) Tick() []signal.Completion {
	var completions []signal.Completion

	for r := range s.ranks {
		rk := &s.ranks[r]

		if rk.busy && rk.delay == CompletionLead {
			completions = s.complete(rk, completions)
		}

		if rk.delay > 0 {
			rk.delay--
		}

		if rk.delay == 0 {
			s.serve(r)
		}
	}

	s.commitAccepts()
	s.commitBeats()

	return completions
}

func (s *Scheduler) complete(
	rk *rank,
	completions []signal.Completion,
) []signal.Completion {
	e := rk.elem
	sl := &s.pools[e.Kind][e.Slot]

	sl.inFlight[e.Index] = false
	sl.done[e.Index] = true
	rk.busy = false

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosElementDone,
		Item:   e,
	})

	if e.Kind == signal.KindRead {
		completions = append(completions, signal.Completion{
			Kind:       signal.KindRead,
			InternalID: sl.internalID,
		})
	}

	if !sl.allDone() {
		return completions
	}

	if e.Kind == signal.KindWrite {
		completions = append(completions, signal.Completion{
			Kind:       signal.KindWrite,
			InternalID: sl.internalID,
		})
	}

	sl.valid = false

	return completions
}

func (s *Scheduler) serve(r int) {
	w, wOK := s.bestCandidate(signal.KindWrite, r)
	rd, rOK := s.bestCandidate(signal.KindRead, r)

	var chosen Element

	switch {
	case !wOK && !rOK:
		return
	case !rOK:
		chosen = w
	case !wOK:
		chosen = rd
	default:
		chosen = s.breakTie(w, rd)
	}

	rk := &s.ranks[r]
	rk.busy = true
	rk.delay = chosen.Cost
	rk.rowOpen = true
	rk.openRow = chosen.Row
	rk.elem = chosen

	s.pools[chosen.Kind][chosen.Slot].inFlight[chosen.Index] = true

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosElementServiced,
		Item:   chosen,
	})
}

func (s *Scheduler) breakTie(w, rd Element) Element {
	if w.Category != rd.Category {
		if w.Category < rd.Category {
			return w
		}

		return rd
	}

	switch s.cfg.TieBreak {
	case TieBreakFavorRead:
		return rd
	case TieBreakOldest:
		if rd.Age < w.Age {
			return rd
		}

		return w
	default:
		return w
	}
}

// bestCandidate returns the cheapest, then oldest, schedulable element of
// the pool that maps to rank r.
func (s *Scheduler) bestCandidate(kind signal.Kind, r int) (Element, bool) {
	var (
		best  Element
		found bool
	)

	pool := s.pools[kind]
	for i := range pool {
		sl := &pool[i]
		if !sl.valid {
			continue
		}

		for j := 0; j < sl.burstLen; j++ {
			if !sl.arrived[j] || sl.inFlight[j] || sl.done[j] {
				continue
			}

			e := s.element(kind, i, j)
			if e.Rank != r {
				continue
			}

			if !found || e.Category < best.Category ||
				(e.Category == best.Category && e.Age < best.Age) {
				best = e
				found = true
			}
		}
	}

	return best, found
}

func (s *Scheduler) element(kind signal.Kind, slotIdx, index int) Element {
	sl := &s.pools[kind][slotIdx]
	addr := sl.addr + uint64(index)<<uint(sl.burstSize)
	row := addr / s.cfg.RowBufferBytes
	r := int(row % uint64(s.cfg.NumRanks))
	cat := s.classify(r, row)

	return Element{
		Kind:       kind,
		Slot:       slotIdx,
		Index:      index,
		InternalID: sl.internalID,
		Addr:       addr,
		Row:        row,
		Rank:       r,
		Category:   cat,
		Cost:       s.cfg.Cost(cat),
		Age:        sl.age[index],
	}
}

func (s *Scheduler) classify(r int, row uint64) CostCategory {
	rk := &s.ranks[r]

	switch {
	case !rk.rowOpen:
		return RowMissNoOpen
	case rk.openRow == row:
		return RowHit
	default:
		return RowMissOtherOpen
	}
}

func (s *Scheduler) commitAccepts() {
	for kind, a := range s.stagedAccept {
		if a == nil {
			continue
		}

		sl := &s.pools[kind][a.slot]
		sl.valid = true
		sl.internalID = a.req.InternalID
		sl.addr = a.req.Addr
		sl.burstLen = a.req.BurstLen
		sl.burstSize = a.req.BurstSize

		for i := range sl.done {
			sl.arrived[i] = false
			sl.inFlight[i] = false
			sl.done[i] = i >= a.req.BurstLen
			sl.age[i] = 0
		}

		arrived := a.req.Arrived
		if a.req.Kind == signal.KindRead {
			arrived = a.req.BurstLen
		}

		s.markArrived(sl, arrived)

		s.stagedAccept[kind] = nil
	}
}

func (s *Scheduler) commitBeats() {
	for _, slotIdx := range s.stagedBeats {
		s.markArrived(&s.pools[signal.KindWrite][slotIdx], 1)
	}

	s.stagedBeats = s.stagedBeats[:0]
}

// markArrived marks the next n elements of the slot as arrived, each younger
// than everything alive.
func (s *Scheduler) markArrived(sl *slot, n int) {
	for i := 0; i < sl.burstLen && n > 0; i++ {
		if sl.arrived[i] {
			continue
		}

		sl.arrived[i] = true
		sl.age[i] = s.age
		s.age++
		n--
	}
}
