package rspbank

import "fmt"

// QueueState is a snapshot of the pointers of one id queue.
type QueueState struct {
	RsvHead   int
	RspHead   int
	PreTail   int
	Tail      int
	RsvLen    int
	StoredLen int
}

// Empty tells if the queue holds no cell.
func (s QueueState) Empty() bool {
	return s.RsvLen == 0 && s.StoredLen == 0
}

// CellState is a snapshot of one pool cell.
type CellState struct {
	Valid         bool
	ID            int
	BurstLen      int
	ReservedCount int
	StoredCount   int
	Next          int
}

// Queue returns the committed pointers of the id queue.
func (b *Bank[T]) Queue(id int) QueueState {
	q := b.queues[id]

	return QueueState{
		RsvHead:   q.rsvHead,
		RspHead:   q.rspHead,
		PreTail:   q.preTail,
		Tail:      q.tail,
		RsvLen:    q.rsvLen,
		StoredLen: q.storedLen,
	}
}

// CellState returns the committed state of a pool cell.
func (b *Bank[T]) CellState(i int) CellState {
	c := b.cells[i]

	return CellState{
		Valid:         c.valid(),
		ID:            c.id,
		BurstLen:      c.burstLen,
		ReservedCount: c.reservedCount,
		StoredCount:   c.storedCount,
		Next:          c.next,
	}
}

// NumFreeCells returns the number of cells that can be reserved.
func (b *Bank[T]) NumFreeCells() int {
	n := 0

	for i := range b.cells {
		if !b.cells[i].valid() {
			n++
		}
	}

	return n
}

// NumLiveElements returns the number of elements reserved or stored.
func (b *Bank[T]) NumLiveElements() int {
	n := 0

	for i := range b.cells {
		n += b.cells[i].reservedCount + b.cells[i].storedCount
	}

	return n
}

// CheckInvariants walks every id queue from tail to reservation head and
// verifies that the pointers appear in order, that the lengths match the
// cells, and that no cell holds more than its burst.
func (b *Bank[T]) CheckInvariants() error {
	for i := range b.cells {
		c := &b.cells[i]
		if c.reservedCount < 0 || c.storedCount < 0 ||
			c.reservedCount+c.storedCount > c.burstLen {
			return fmt.Errorf("%s: cell %d: burst %d, reserved %d, stored %d",
				b.Name(), i, c.burstLen, c.reservedCount, c.storedCount)
		}
	}

	if b.NumLiveElements() > b.cfg.Capacity*b.cfg.MaxBurstLen {
		return fmt.Errorf("%s: more live elements than capacity", b.Name())
	}

	for id := range b.queues {
		if err := b.checkQueue(id); err != nil {
			return err
		}
	}

	return nil
}

func (b *Bank[T]) checkQueue(id int) error {
	q := &b.queues[id]
	if q.empty() {
		if q.rsvHead != q.rspHead || q.rspHead != q.preTail ||
			q.preTail != q.tail {
			return fmt.Errorf("%s: empty queue %d has diverged pointers %+v",
				b.Name(), id, b.Queue(id))
		}

		return nil
	}

	pos := map[int]int{}
	rsvLen, storedLen := 0, 0
	lastSeq := uint64(0)
	c := q.tail

	for n := 0; ; n++ {
		if n >= len(b.cells) {
			return fmt.Errorf("%s: queue %d does not reach its head", b.Name(), id)
		}

		cell := &b.cells[c]
		if !cell.valid() || cell.id != id {
			return fmt.Errorf("%s: queue %d links to foreign cell %d",
				b.Name(), id, c)
		}

		if n > 0 && cell.seq <= lastSeq {
			return fmt.Errorf("%s: queue %d visits cell %d out of age order",
				b.Name(), id, c)
		}

		pos[c] = n
		lastSeq = cell.seq

		if cell.reservedCount > 0 {
			rsvLen++
		}

		if cell.storedCount > 0 {
			storedLen++
		}

		if c == q.rsvHead {
			break
		}

		c = cell.next
	}

	if rsvLen != q.rsvLen || storedLen != q.storedLen {
		return fmt.Errorf("%s: queue %d lengths %d/%d, counted %d/%d",
			b.Name(), id, q.rsvLen, q.storedLen, rsvLen, storedLen)
	}

	order := []int{q.tail, q.preTail, q.rspHead, q.rsvHead}
	for i := 1; i < len(order); i++ {
		prev, okPrev := pos[order[i-1]]
		cur, okCur := pos[order[i]]

		if !okPrev || !okCur || cur < prev {
			return fmt.Errorf("%s: queue %d pointers out of order %+v",
				b.Name(), id, b.Queue(id))
		}
	}

	return nil
}
