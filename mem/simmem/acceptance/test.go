package acceptance

import (
	"errors"
	"fmt"

	"github.com/sarchlab/simmem/mem/simmem"
	"github.com/sarchlab/simmem/sim/timing"
)

// ErrMismatch is reported when a response does not match what was sent.
var ErrMismatch = errors.New("response mismatch")

type outstanding struct {
	tag      uint64
	addr     uint64
	burstLen int
	beat     int
	sentAt   timing.VTimeInCycle
}

// Summary gives the counts and delays of a finished run.
type Summary struct {
	Cycles       timing.VTimeInCycle
	NumWrites    int
	NumReads     int
	NumReadBeats int

	MeanWriteDelay float64
	MeanReadDelay  float64
	MaxWriteDelay  uint64
	MaxReadDelay   uint64
}

// A Test checks the responses of a run against the requests. Responses of
// the same id must come back in request order, exactly once, with their
// beats in order.
type Test struct {
	minDelay uint64

	writes [][]outstanding
	reads  [][]outstanding
	errs   []error

	writeDelays []uint64
	readDelays  []uint64
	numReads    int
}

// NewTest creates a Test for numIDs ids. No response may come back earlier
// than minDelay cycles after its request.
func NewTest(numIDs int, minDelay uint64) *Test {
	return &Test{
		minDelay: minDelay,
		writes:   make([][]outstanding, numIDs),
		reads:    make([][]outstanding, numIDs),
	}
}

// RecordWriteAddr registers an accepted write.
func (t *Test) RecordWriteAddr(a simmem.WriteAddr, at timing.VTimeInCycle) {
	t.writes[a.ID] = append(t.writes[a.ID], outstanding{
		tag:      a.Tag,
		addr:     a.Addr,
		burstLen: a.BurstLen,
		sentAt:   at,
	})
}

// RecordReadAddr registers an accepted read.
func (t *Test) RecordReadAddr(a simmem.ReadAddr, at timing.VTimeInCycle) {
	t.reads[a.ID] = append(t.reads[a.ID], outstanding{
		tag:      a.Tag,
		addr:     a.Addr,
		burstLen: a.BurstLen,
		sentAt:   at,
	})
}

// CheckWriteRsp matches a write response with the oldest write of its id.
func (t *Test) CheckWriteRsp(rsp simmem.WriteRsp, at timing.VTimeInCycle) {
	if len(t.writes[rsp.ID]) == 0 {
		t.fail("write response %d on id %d without request", rsp.Tag, rsp.ID)
		return
	}

	w := t.writes[rsp.ID][0]
	t.writes[rsp.ID] = t.writes[rsp.ID][1:]

	if rsp.Tag != w.tag {
		t.fail("id %d: write response %d, want %d", rsp.ID, rsp.Tag, w.tag)
	}

	t.writeDelays = append(t.writeDelays, t.delay(w.sentAt, at))
}

// CheckReadData matches a read beat with the oldest read of its id.
func (t *Test) CheckReadData(d simmem.ReadData, at timing.VTimeInCycle) {
	if len(t.reads[d.ID]) == 0 {
		t.fail("read data %d on id %d without request", d.Tag, d.ID)
		return
	}

	r := &t.reads[d.ID][0]

	if d.Tag != r.tag {
		t.fail("id %d: read data of %d, want %d", d.ID, d.Tag, r.tag)
	}

	if d.Beat != r.beat {
		t.fail("id %d, read %d: beat %d, want %d", d.ID, r.tag, d.Beat, r.beat)
	}

	if want := r.addr + uint64(r.beat); d.Data != want {
		t.fail("id %d, read %d: data %#x, want %#x", d.ID, r.tag, d.Data, want)
	}

	last := r.beat == r.burstLen-1
	if d.Last != last {
		t.fail("id %d, read %d: last is %t on beat %d",
			d.ID, r.tag, d.Last, r.beat)
	}

	t.readDelays = append(t.readDelays, t.delay(r.sentAt, at))

	r.beat++
	if r.beat == r.burstLen {
		t.reads[d.ID] = t.reads[d.ID][1:]
		t.numReads++
	}
}

func (t *Test) delay(sentAt, at timing.VTimeInCycle) uint64 {
	d := uint64(at - sentAt)
	if d < t.minDelay {
		t.fail("response after %d cycles, at least %d expected", d, t.minDelay)
	}

	return d
}

func (t *Test) fail(format string, args ...any) {
	t.errs = append(t.errs,
		fmt.Errorf("%w: "+format, append([]any{ErrMismatch}, args...)...))
}

// Outstanding returns the number of requests still waiting for a response.
func (t *Test) Outstanding() int {
	n := 0

	for id := range t.writes {
		n += len(t.writes[id]) + len(t.reads[id])
	}

	return n
}

// Err returns every mismatch found so far.
func (t *Test) Err() error {
	return errors.Join(t.errs...)
}

// Summary summarizes the delays observed so far.
func (t *Test) Summary(cycles timing.VTimeInCycle) Summary {
	r := Summary{
		Cycles:       cycles,
		NumWrites:    len(t.writeDelays),
		NumReads:     t.numReads,
		NumReadBeats: len(t.readDelays),
	}

	r.MeanWriteDelay, r.MaxWriteDelay = summarize(t.writeDelays)
	r.MeanReadDelay, r.MaxReadDelay = summarize(t.readDelays)

	return r
}

func summarize(delays []uint64) (mean float64, maxDelay uint64) {
	if len(delays) == 0 {
		return 0, 0
	}

	var sum uint64
	for _, d := range delays {
		sum += d
		maxDelay = max(maxDelay, d)
	}

	return float64(sum) / float64(len(delays)), maxDelay
}
