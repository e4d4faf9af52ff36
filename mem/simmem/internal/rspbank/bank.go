// Package rspbank implements a multi-queue response store. Each originator id
// owns a FIFO of cells drawn from one shared pool. A cell is reserved when a
// request is accepted, filled as the response arrives, and drained once an
// external release-enable allows it.
//
// All operations are staged against the state committed at the previous
// cycle boundary and take effect in Tick.
package rspbank

import (
	"fmt"

	"github.com/sarchlab/simmem/mem/simmem/internal/signal"
	"github.com/sarchlab/simmem/sim/naming"
)

// A ReleaseEnabler decides whether the stored content of a cell may leave the
// bank.
type ReleaseEnabler interface {
	// ReleasableCount returns how many elements of the cell may be emitted.
	ReleasableCount(cell int) int

	// Released is called once for every element emitted from the cell.
	Released(cell int)
}

// Config sets the size of a Bank.
type Config struct {
	NumIDs      int
	Capacity    int
	MaxBurstLen int
}

// Validate checks that all sizes are positive.
func (c Config) Validate() error {
	if c.NumIDs <= 0 {
		return fmt.Errorf("%w: NumIDs must be positive, got %d",
			signal.ErrMisconfiguration, c.NumIDs)
	}

	if c.Capacity <= 0 {
		return fmt.Errorf("%w: Capacity must be positive, got %d",
			signal.ErrMisconfiguration, c.Capacity)
	}

	if c.MaxBurstLen <= 0 {
		return fmt.Errorf("%w: MaxBurstLen must be positive, got %d",
			signal.ErrMisconfiguration, c.MaxBurstLen)
	}

	return nil
}

// Output is an element that leaves the bank.
type Output[T any] struct {
	ID     int
	Cell   int
	Offset int
	Last   bool
	Elem   T
}

type cell[T any] struct {
	id            int
	burstLen      int
	reservedCount int
	storedCount   int
	next          int
	seq           uint64
	elems         []T
}

func (c *cell[T]) valid() bool {
	return c.reservedCount > 0 || c.storedCount > 0
}

func (c *cell[T]) inputOffset() int {
	return c.burstLen - c.reservedCount
}

func (c *cell[T]) outputOffset() int {
	return c.burstLen - c.reservedCount - c.storedCount
}

type idQueue struct {
	rsvHead   int
	rspHead   int
	preTail   int
	tail      int
	rsvLen    int
	storedLen int
}

func (q *idQueue) empty() bool {
	return q.rsvLen == 0 && q.storedLen == 0
}

type stagedReservation struct {
	id       int
	burstLen int
	cell     int

	prevHead int
	wasEmpty bool
}

type stagedPush[T any] struct {
	id   int
	cell int
	elem T
}

type outputRegister[T any] struct {
	valid  bool
	popped bool
	out    Output[T]
}

// A Bank is a reservation-and-release multi-queue over a fixed pool of
// burst-sized cells.
type Bank[T any] struct {
	naming.NamedBase

	cfg     Config
	enabler ReleaseEnabler

	cells  []cell[T]
	queues []idQueue
	nextRR int
	seq    uint64

	reg outputRegister[T]

	rsv  *stagedReservation
	push *stagedPush[T]
}

// New creates a Bank. The enabler is consulted every cycle.
func New[T any](name string, cfg Config, enabler ReleaseEnabler) (*Bank[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bank %s: %w", name, err)
	}

	if enabler == nil {
		return nil, fmt.Errorf("bank %s: %w: release enabler is required",
			name, signal.ErrMisconfiguration)
	}

	b := &Bank[T]{
		NamedBase: naming.MakeNamedBase(name),
		cfg:       cfg,
		enabler:   enabler,
		cells:     make([]cell[T], cfg.Capacity),
		queues:    make([]idQueue, cfg.NumIDs),
	}

	for i := range b.cells {
		b.cells[i].next = i
		b.cells[i].elems = make([]T, cfg.MaxBurstLen)
	}

	return b, nil
}

// Config returns the configuration of the bank.
func (b *Bank[T]) Config() Config {
	return b.cfg
}

// Reserve claims the lowest free cell for a burst of burstLen elements of the
// given id. The cell joins the id's queue at the next Tick.
func (b *Bank[T]) Reserve(id, burstLen int) (int, error) {
	if err := b.checkID(id); err != nil {
		return 0, err
	}

	if burstLen < 1 || burstLen > b.cfg.MaxBurstLen {
		return 0, fmt.Errorf("%w: %s: burst length %d outside [1, %d]",
			signal.ErrProtocolViolation, b.Name(), burstLen, b.cfg.MaxBurstLen)
	}

	if b.rsv != nil {
		return 0, fmt.Errorf("%w: %s: second reservation in one cycle",
			signal.ErrProtocolViolation, b.Name())
	}

	free := b.lowestFreeCell()
	if free < 0 {
		return 0, fmt.Errorf("%w: %s: no free cell",
			signal.ErrResourceExhausted, b.Name())
	}

	b.rsv = &stagedReservation{id: id, burstLen: burstLen, cell: free}

	return free, nil
}

// CanReserve tells if Reserve would succeed now.
func (b *Bank[T]) CanReserve() bool {
	return b.rsv == nil && b.lowestFreeCell() >= 0
}

// Push stores the next element of the oldest unfilled reservation of the id
// and returns its offset within the burst.
func (b *Bank[T]) Push(id int, elem T) (int, error) {
	if err := b.checkID(id); err != nil {
		return 0, err
	}

	q := &b.queues[id]
	if q.rsvLen == 0 {
		return 0, fmt.Errorf("%w: %s: push for id %d without reservation",
			signal.ErrProtocolViolation, b.Name(), id)
	}

	if b.push != nil {
		return 0, fmt.Errorf("%w: %s: second push in one cycle",
			signal.ErrProtocolViolation, b.Name())
	}

	c := &b.cells[q.rspHead]
	offset := c.inputOffset()
	b.push = &stagedPush[T]{id: id, cell: q.rspHead, elem: elem}

	return offset, nil
}

// Peek returns the prepared output while its cell is still release-enabled.
func (b *Bank[T]) Peek() (Output[T], bool) {
	if !b.reg.valid || b.reg.popped {
		return Output[T]{}, false
	}

	if b.enabler.ReleasableCount(b.reg.out.Cell) <= 0 {
		return Output[T]{}, false
	}

	return b.reg.out, true
}

// Pop accepts the output returned by Peek. The element leaves the bank at the
// next Tick.
func (b *Bank[T]) Pop() (Output[T], error) {
	out, ok := b.Peek()
	if !ok {
		return Output[T]{}, fmt.Errorf("%w: %s: pop without a valid output",
			signal.ErrProtocolViolation, b.Name())
	}

	b.reg.popped = true

	return out, nil
}

// Tick commits the staged operations and prepares the output of the next
// cycle.
func (b *Bank[T]) Tick() (madeProgress bool) {
	madeProgress = b.resolveReservation() || madeProgress
	madeProgress = b.resolvePush() || madeProgress
	madeProgress = b.resolveOutput() || madeProgress
	madeProgress = b.prepare() || madeProgress

	b.commitLink()

	b.rsv = nil
	b.push = nil

	return madeProgress
}

// successor returns where a pointer goes after leaving cell c. Past the
// committed reservation head, the link is not written yet, so the pointer
// follows the reservation head resolved in this cycle.
func (b *Bank[T]) successor(id, c int) int {
	committed := b.queues[id].rsvHead
	reserving := b.rsv != nil && b.rsv.id == id

	if reserving {
		committed = b.rsv.prevHead
	}

	if c != committed {
		return b.cells[c].next
	}

	if reserving {
		return b.rsv.cell
	}

	return c
}

func (b *Bank[T]) resolveReservation() bool {
	if b.rsv == nil {
		return false
	}

	r := b.rsv
	c := &b.cells[r.cell]
	c.id = r.id
	c.burstLen = r.burstLen
	c.reservedCount = r.burstLen
	c.storedCount = 0
	c.next = r.cell
	c.seq = b.seq
	b.seq++

	q := &b.queues[r.id]
	r.prevHead = q.rsvHead
	r.wasEmpty = q.empty()

	if r.wasEmpty {
		q.rsvHead = r.cell
		q.rspHead = r.cell
		q.preTail = r.cell
		q.tail = r.cell
	} else {
		q.rsvHead = r.cell
	}

	q.rsvLen++

	return true
}

func (b *Bank[T]) resolvePush() bool {
	progress := false

	if b.push != nil {
		p := b.push
		c := &b.cells[p.cell]
		c.elems[c.inputOffset()] = p.elem
		c.reservedCount--
		c.storedCount++

		q := &b.queues[p.id]
		if c.storedCount == 1 {
			q.storedLen++
		}

		if c.reservedCount == 0 {
			q.rsvLen--
		}

		progress = true
	}

	for id := range b.queues {
		q := &b.queues[id]
		if q.empty() {
			continue
		}

		if b.cells[q.rspHead].reservedCount == 0 {
			q.rspHead = b.successor(id, q.rspHead)
		}
	}

	return progress
}

func (b *Bank[T]) resolveOutput() bool {
	if !b.reg.valid {
		return false
	}

	out := b.reg.out
	q := &b.queues[out.ID]

	if b.reg.popped {
		b.emit(out)
		b.reg = outputRegister[T]{}

		return true
	}

	if b.enabler.ReleasableCount(out.Cell) <= 0 {
		q.preTail = q.tail
		b.reg = outputRegister[T]{}

		return true
	}

	return false
}

func (b *Bank[T]) emit(out Output[T]) {
	c := &b.cells[out.Cell]
	q := &b.queues[out.ID]

	c.storedCount--
	if c.storedCount == 0 {
		q.storedLen--
	}

	b.enabler.Released(out.Cell)

	if !out.Last {
		return
	}

	next := q.preTail
	if next == out.Cell {
		next = b.successor(out.ID, out.Cell)
	}

	q.tail = next
	q.preTail = next
}

func (b *Bank[T]) prepare() bool {
	if b.reg.valid {
		return false
	}

	n := len(b.queues)
	for i := 0; i < n; i++ {
		id := (b.nextRR + i) % n
		if !b.canPrepare(id) {
			continue
		}

		q := &b.queues[id]
		c := &b.cells[q.tail]
		offset := c.outputOffset()
		last := offset == c.burstLen-1

		b.reg = outputRegister[T]{
			valid: true,
			out: Output[T]{
				ID:     id,
				Cell:   q.tail,
				Offset: offset,
				Last:   last,
				Elem:   c.elems[offset],
			},
		}

		if last {
			q.preTail = b.successor(id, q.tail)
		} else {
			q.preTail = q.tail
		}

		b.nextRR = (id + 1) % n

		return true
	}

	return false
}

func (b *Bank[T]) canPrepare(id int) bool {
	q := &b.queues[id]
	if q.storedLen == 0 {
		return false
	}

	c := &b.cells[q.tail]

	visible := c.storedCount
	if b.push != nil && b.push.cell == q.tail {
		visible--
	}

	if visible <= 0 {
		return false
	}

	return b.enabler.ReleasableCount(q.tail) > 0
}

func (b *Bank[T]) commitLink() {
	if b.rsv == nil {
		return
	}

	if b.rsv.wasEmpty {
		return
	}

	b.cells[b.rsv.prevHead].next = b.rsv.cell
}

func (b *Bank[T]) lowestFreeCell() int {
	for i := range b.cells {
		if !b.cells[i].valid() {
			return i
		}
	}

	return -1
}

func (b *Bank[T]) checkID(id int) error {
	if id < 0 || id >= b.cfg.NumIDs {
		return fmt.Errorf("%w: %s: id %d outside [0, %d)",
			signal.ErrProtocolViolation, b.Name(), id, b.cfg.NumIDs)
	}

	return nil
}
