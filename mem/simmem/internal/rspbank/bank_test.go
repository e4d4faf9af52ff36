package rspbank

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/simmem/mem/simmem/internal/signal"
)

type counterEnabler struct {
	counts map[int]int
}

func newCounterEnabler() *counterEnabler {
	return &counterEnabler{counts: map[int]int{}}
}

func (e *counterEnabler) ReleasableCount(cell int) int {
	return e.counts[cell]
}

func (e *counterEnabler) Released(cell int) {
	if e.counts[cell] > 0 {
		e.counts[cell]--
	}
}

func tickAndCheck(b *Bank[string]) {
	b.Tick()
	ExpectWithOffset(1, b.CheckInvariants()).To(Succeed())
}

func drain(b *Bank[string], maxCycles int) []Output[string] {
	var outs []Output[string]

	for i := 0; i < maxCycles; i++ {
		if _, ok := b.Peek(); ok {
			out, err := b.Pop()
			ExpectWithOffset(1, err).NotTo(HaveOccurred())
			outs = append(outs, out)
		}

		tickAndCheck(b)
	}

	return outs
}

var _ = Describe("Bank", func() {
	var (
		en   *counterEnabler
		bank *Bank[string]
	)

	BeforeEach(func() {
		var err error

		en = newCounterEnabler()
		bank, err = New[string]("Bank", Config{
			NumIDs:      4,
			Capacity:    4,
			MaxBurstLen: 4,
		}, en)
		Expect(err).NotTo(HaveOccurred())
	})

	Context("when configured", func() {
		It("should reject non-positive sizes", func() {
			_, err := New[int]("Bank", Config{NumIDs: 0, Capacity: 1, MaxBurstLen: 1}, en)
			Expect(err).To(MatchError(signal.ErrMisconfiguration))

			_, err = New[int]("Bank", Config{NumIDs: 1, Capacity: 0, MaxBurstLen: 1}, en)
			Expect(err).To(MatchError(signal.ErrMisconfiguration))

			_, err = New[int]("Bank", Config{NumIDs: 1, Capacity: 1, MaxBurstLen: 0}, en)
			Expect(err).To(MatchError(signal.ErrMisconfiguration))
		})

		It("should require an enabler", func() {
			_, err := New[int]("Bank", Config{NumIDs: 1, Capacity: 1, MaxBurstLen: 1}, nil)
			Expect(err).To(MatchError(signal.ErrMisconfiguration))
		})
	})

	Context("when reserving", func() {
		It("should hand out the lowest free cell", func() {
			cell, err := bank.Reserve(2, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(cell).To(Equal(0))
			tickAndCheck(bank)

			cell, err = bank.Reserve(1, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(cell).To(Equal(1))
			tickAndCheck(bank)

			Expect(bank.NumFreeCells()).To(Equal(2))
			Expect(bank.Queue(2)).To(Equal(QueueState{RsvLen: 1}))
			Expect(bank.Queue(1)).To(Equal(QueueState{
				RsvHead: 1, RspHead: 1, PreTail: 1, Tail: 1, RsvLen: 1,
			}))
		})

		It("should allow only one reservation per cycle", func() {
			_, err := bank.Reserve(0, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(bank.CanReserve()).To(BeFalse())

			_, err = bank.Reserve(1, 1)
			Expect(err).To(MatchError(signal.ErrProtocolViolation))
		})

		It("should reject bad ids and burst lengths", func() {
			_, err := bank.Reserve(4, 1)
			Expect(err).To(MatchError(signal.ErrProtocolViolation))

			_, err = bank.Reserve(0, 0)
			Expect(err).To(MatchError(signal.ErrProtocolViolation))

			_, err = bank.Reserve(0, 5)
			Expect(err).To(MatchError(signal.ErrProtocolViolation))
		})

		It("should report exhaustion when the pool is full", func() {
			for i := 0; i < 4; i++ {
				_, err := bank.Reserve(i%2, 2)
				Expect(err).NotTo(HaveOccurred())
				tickAndCheck(bank)
			}

			Expect(bank.CanReserve()).To(BeFalse())
			_, err := bank.Reserve(3, 1)
			Expect(err).To(MatchError(signal.ErrResourceExhausted))
		})
	})

	Context("when pushing", func() {
		It("should reject a push without reservation", func() {
			_, err := bank.Push(0, "x")
			Expect(err).To(MatchError(signal.ErrProtocolViolation))
		})

		It("should not see a reservation staged in the same cycle", func() {
			_, err := bank.Reserve(0, 1)
			Expect(err).NotTo(HaveOccurred())

			_, err = bank.Push(0, "x")
			Expect(err).To(MatchError(signal.ErrProtocolViolation))
		})

		It("should allow only one push per cycle", func() {
			bank.Reserve(0, 2)
			tickAndCheck(bank)

			_, err := bank.Push(0, "a")
			Expect(err).NotTo(HaveOccurred())

			_, err = bank.Push(0, "b")
			Expect(err).To(MatchError(signal.ErrProtocolViolation))
		})

		It("should not pop when nothing is prepared", func() {
			_, err := bank.Pop()
			Expect(err).To(MatchError(signal.ErrProtocolViolation))
		})
	})

	It("should release a whole burst in order and free the cell", func() {
		cell, _ := bank.Reserve(2, 4)
		tickAndCheck(bank)

		gaps := []int{0, 1, 2, 0}
		for i, gap := range gaps {
			offset, err := bank.Push(2, []string{"d0", "d1", "d2", "d3"}[i])
			Expect(err).NotTo(HaveOccurred())
			Expect(offset).To(Equal(i))
			tickAndCheck(bank)

			for g := 0; g < gap; g++ {
				tickAndCheck(bank)
			}
		}

		Expect(bank.CellState(cell)).To(Equal(CellState{
			Valid: true, ID: 2, BurstLen: 4, StoredCount: 4, Next: cell,
		}))

		en.counts[cell] = 4
		tickAndCheck(bank)

		for i := 0; i < 4; i++ {
			out, ok := bank.Peek()
			Expect(ok).To(BeTrue())
			Expect(out.ID).To(Equal(2))
			Expect(out.Offset).To(Equal(i))
			Expect(out.Elem).To(Equal([]string{"d0", "d1", "d2", "d3"}[i]))
			Expect(out.Last).To(Equal(i == 3))

			_, err := bank.Pop()
			Expect(err).NotTo(HaveOccurred())

			tickAndCheck(bank)

			Expect(bank.CellState(cell).Valid).To(Equal(i < 3))
		}

		Expect(bank.NumFreeCells()).To(Equal(4))
		Expect(bank.Queue(2).Empty()).To(BeTrue())
		Expect(en.counts[cell]).To(Equal(0))
	})

	It("should release elements as they arrive when enabled early", func() {
		cell, _ := bank.Reserve(2, 4)
		en.counts[cell] = 4
		tickAndCheck(bank)

		var outs []Output[string]
		pushes := map[int]string{0: "d0", 3: "d1", 4: "d2", 9: "d3"}

		for cycle := 0; cycle < 20; cycle++ {
			if out, ok := bank.Peek(); ok {
				bank.Pop()
				outs = append(outs, out)
			}

			if d, ok := pushes[cycle]; ok {
				_, err := bank.Push(2, d)
				Expect(err).NotTo(HaveOccurred())
			}

			tickAndCheck(bank)
		}

		Expect(outs).To(HaveLen(4))
		for i, out := range outs {
			Expect(out.Offset).To(Equal(i))
		}
		Expect(bank.CellState(cell).Valid).To(BeFalse())
	})

	It("should not expose an element pushed in the same cycle", func() {
		cell, _ := bank.Reserve(0, 1)
		en.counts[cell] = 1
		tickAndCheck(bank)

		bank.Push(0, "x")
		tickAndCheck(bank)

		_, ok := bank.Peek()
		Expect(ok).To(BeFalse())

		tickAndCheck(bank)

		out, ok := bank.Peek()
		Expect(ok).To(BeTrue())
		Expect(out.Elem).To(Equal("x"))
	})

	Context("when reservations are back to back", func() {
		It("should move the response head through an uncommitted link", func() {
			first, _ := bank.Reserve(1, 1)
			tickAndCheck(bank)

			second, err := bank.Reserve(1, 1)
			Expect(err).NotTo(HaveOccurred())
			offset, err := bank.Push(1, "x")
			Expect(err).NotTo(HaveOccurred())
			Expect(offset).To(Equal(0))
			tickAndCheck(bank)

			Expect(bank.Queue(1)).To(Equal(QueueState{
				RsvHead: second, RspHead: second,
				PreTail: first, Tail: first,
				RsvLen: 1, StoredLen: 1,
			}))

			offset, err = bank.Push(1, "y")
			Expect(err).NotTo(HaveOccurred())
			Expect(offset).To(Equal(0))
			tickAndCheck(bank)

			Expect(bank.CellState(first).StoredCount).To(Equal(1))
			Expect(bank.CellState(second).StoredCount).To(Equal(1))

			en.counts[first] = 1
			en.counts[second] = 1
			outs := drain(bank, 5)

			Expect(outs).To(HaveLen(2))
			Expect(outs[0].Elem).To(Equal("x"))
			Expect(outs[0].Cell).To(Equal(first))
			Expect(outs[1].Elem).To(Equal("y"))
			Expect(outs[1].Cell).To(Equal(second))
			Expect(bank.Queue(1).Empty()).To(BeTrue())
		})

		It("should wake a parked response head on a new reservation", func() {
			first, _ := bank.Reserve(3, 1)
			tickAndCheck(bank)
			bank.Push(3, "x")
			tickAndCheck(bank)

			Expect(bank.Queue(3).RspHead).To(Equal(first))
			Expect(bank.Queue(3).RsvLen).To(Equal(0))

			second, _ := bank.Reserve(3, 2)
			tickAndCheck(bank)

			Expect(bank.Queue(3).RspHead).To(Equal(second))
			Expect(bank.Queue(3).Tail).To(Equal(first))

			offset, err := bank.Push(3, "y")
			Expect(err).NotTo(HaveOccurred())
			Expect(offset).To(Equal(0))
			tickAndCheck(bank)

			Expect(bank.CellState(second).StoredCount).To(Equal(1))
		})

		It("should follow a reservation made while the queue drains", func() {
			first, _ := bank.Reserve(0, 1)
			tickAndCheck(bank)
			bank.Push(0, "x")
			tickAndCheck(bank)
			en.counts[first] = 1
			tickAndCheck(bank)

			_, err := bank.Pop()
			Expect(err).NotTo(HaveOccurred())
			second, err := bank.Reserve(0, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).NotTo(Equal(first))
			tickAndCheck(bank)

			Expect(bank.CellState(first).Valid).To(BeFalse())
			Expect(bank.Queue(0)).To(Equal(QueueState{
				RsvHead: second, RspHead: second,
				PreTail: second, Tail: second,
				RsvLen: 1,
			}))
		})
	})

	It("should serve ids round-robin", func() {
		a, _ := bank.Reserve(0, 2)
		tickAndCheck(bank)
		b, _ := bank.Reserve(1, 2)
		tickAndCheck(bank)

		for _, p := range []struct {
			id   int
			elem string
		}{{0, "a0"}, {0, "a1"}, {1, "b0"}, {1, "b1"}} {
			bank.Push(p.id, p.elem)
			tickAndCheck(bank)
		}

		en.counts[a] = 2
		en.counts[b] = 2
		outs := drain(bank, 6)

		elems := make([]string, 0, len(outs))
		for _, o := range outs {
			elems = append(elems, o.Elem)
		}
		Expect(elems).To(Equal([]string{"a0", "b0", "a1", "b1"}))
	})

	It("should keep per-id order and conserve elements under random traffic", func() {
		const numIDs, capacity, stopAt, cycles = 4, 6, 2000, 3000

		rng := rand.New(rand.NewSource(1))
		en := newCounterEnabler()
		b, err := New[int]("Bank", Config{
			NumIDs: numIDs, Capacity: capacity, MaxBurstLen: 4,
		}, en)
		Expect(err).NotTo(HaveOccurred())

		pushed := make([][]int, numIDs)
		released := make([][]int, numIDs)
		nextOffset := map[int]int{}
		next := 0

		for cycle := 0; cycle < cycles; cycle++ {
			for i := 0; i < capacity; i++ {
				st := b.CellState(i)
				if !st.Valid {
					en.counts[i] = 0
					continue
				}

				r := rng.Intn(20)
				switch {
				case cycle >= stopAt || r < 6:
					en.counts[i] = st.StoredCount
				case r == 6:
					en.counts[i] = 0
				}
			}

			if out, ok := b.Peek(); ok && (cycle >= stopAt || rng.Intn(4) != 0) {
				_, err := b.Pop()
				Expect(err).NotTo(HaveOccurred())
				Expect(out.Offset).To(Equal(nextOffset[out.Cell]))

				released[out.ID] = append(released[out.ID], out.Elem)
				if out.Last {
					delete(nextOffset, out.Cell)
				} else {
					nextOffset[out.Cell]++
				}
			}

			if cycle < stopAt && rng.Intn(3) == 0 && b.CanReserve() {
				_, err := b.Reserve(rng.Intn(numIDs), 1+rng.Intn(4))
				Expect(err).NotTo(HaveOccurred())
			}

			var waiting []int
			for id := 0; id < numIDs; id++ {
				if b.Queue(id).RsvLen > 0 {
					waiting = append(waiting, id)
				}
			}

			if len(waiting) > 0 && rng.Intn(2) == 0 {
				id := waiting[rng.Intn(len(waiting))]
				_, err := b.Push(id, next)
				Expect(err).NotTo(HaveOccurred())
				pushed[id] = append(pushed[id], next)
				next++
			}

			b.Tick()
			Expect(b.CheckInvariants()).To(Succeed())
			Expect(b.NumLiveElements()).To(BeNumerically("<=", capacity*4))
		}

		Expect(next).To(BeNumerically(">", 100))
		Expect(released).To(Equal(pushed))
		Expect(b.NumFreeCells()).To(Equal(capacity))
	})
})

var _ = Describe("Bank with a withdrawn release-enable", func() {
	var (
		mockCtrl *gomock.Controller
		enabler  *MockReleaseEnabler
		bank     *Bank[string]
		allowed  int
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		enabler = NewMockReleaseEnabler(mockCtrl)
		enabler.EXPECT().
			ReleasableCount(0).
			DoAndReturn(func(int) int { return allowed }).
			AnyTimes()

		var err error
		bank, err = New[string]("Bank", Config{
			NumIDs: 1, Capacity: 2, MaxBurstLen: 2,
		}, enabler)
		Expect(err).NotTo(HaveOccurred())

		allowed = 0
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should discard the prepared output and prepare it again", func() {
		enabler.EXPECT().Released(0).Times(1)

		bank.Reserve(0, 1)
		tickAndCheck(bank)
		bank.Push(0, "x")
		tickAndCheck(bank)

		allowed = 1
		tickAndCheck(bank)

		_, ok := bank.Peek()
		Expect(ok).To(BeTrue())

		allowed = 0
		_, ok = bank.Peek()
		Expect(ok).To(BeFalse())
		tickAndCheck(bank)

		allowed = 1
		_, ok = bank.Peek()
		Expect(ok).To(BeFalse())
		tickAndCheck(bank)

		out, ok := bank.Peek()
		Expect(ok).To(BeTrue())
		Expect(out.Offset).To(Equal(0))
		Expect(out.Elem).To(Equal("x"))

		_, err := bank.Pop()
		Expect(err).NotTo(HaveOccurred())
		tickAndCheck(bank)

		Expect(bank.Queue(0).Empty()).To(BeTrue())
	})

	It("should never emit a withdrawn element", func() {
		bank.Reserve(0, 1)
		tickAndCheck(bank)
		bank.Push(0, "x")
		tickAndCheck(bank)

		allowed = 1
		tickAndCheck(bank)

		allowed = 0
		for i := 0; i < 5; i++ {
			_, err := bank.Pop()
			Expect(err).To(MatchError(signal.ErrProtocolViolation))
			tickAndCheck(bank)
		}

		Expect(bank.CellState(0).StoredCount).To(Equal(1))
	})
})
