package acceptance

import (
	"math/rand"

	"github.com/sarchlab/simmem/mem/simmem"
	"github.com/sarchlab/simmem/sim/timing"
)

// An Agent plays the bus master. Until the traffic window closes it flips a
// coin per channel and cycle to offer a write address, a read address and a
// write beat. Beats of a write may be offered before its address. The agent
// is always ready to take responses.
type Agent struct {
	cfg  Config
	rng  *rand.Rand
	test *Test

	nextTag uint64
	write   *simmem.WriteAddr
	read    *simmem.ReadAddr

	// Burst lengths of generated writes whose beats are not all sent.
	dataBursts []int
	beat       int
}

// NewAgent creates an agent that reports to test.
func NewAgent(cfg Config, test *Test) *Agent {
	return &Agent{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		test: test,
	}
}

// Done tells if all generated traffic was sent and answered.
func (a *Agent) Done() bool {
	return a.write == nil &&
		a.read == nil &&
		len(a.dataBursts) == 0 &&
		a.test.Outstanding() == 0
}

// Drive takes the offered responses and offers new requests.
func (a *Agent) Drive(c *simmem.Comp) (madeProgress bool) {
	now := c.CurrentCycle()

	madeProgress = a.takeResponses(c, now) || madeProgress

	if now < timing.VTimeInCycle(a.cfg.NumCycles) {
		a.generate()
	}

	madeProgress = a.sendWriteAddr(c, now) || madeProgress
	madeProgress = a.sendReadAddr(c, now) || madeProgress
	madeProgress = a.sendWriteData(c) || madeProgress

	return madeProgress || !a.Done()
}

func (a *Agent) takeResponses(c *simmem.Comp, now timing.VTimeInCycle) bool {
	progress := false

	if rsp, ok := c.TakeWriteRsp(); ok {
		a.test.CheckWriteRsp(rsp, now)
		progress = true
	}

	if d, ok := c.TakeReadData(); ok {
		a.test.CheckReadData(d, now)
		progress = true
	}

	return progress
}

func (a *Agent) generate() {
	if a.write == nil {
		w := simmem.WriteAddr{
			ID:        a.rng.Intn(a.cfg.Spec.NumIDs),
			Addr:      a.randomAddr(),
			BurstLen:  1 + a.rng.Intn(a.cfg.MaxBurstLen),
			BurstSize: a.cfg.BurstSize,
			Tag:       a.tag(),
		}
		a.write = &w
		a.dataBursts = append(a.dataBursts, w.BurstLen)
	}

	if a.read == nil {
		r := simmem.ReadAddr{
			ID:        a.rng.Intn(a.cfg.Spec.NumIDs),
			Addr:      a.randomAddr(),
			BurstLen:  1 + a.rng.Intn(a.cfg.MaxBurstLen),
			BurstSize: a.cfg.BurstSize,
			Tag:       a.tag(),
		}
		a.read = &r
	}
}

func (a *Agent) sendWriteAddr(c *simmem.Comp, now timing.VTimeInCycle) bool {
	if a.write == nil || !a.coin() || !c.SendWriteAddr(*a.write) {
		return false
	}

	a.test.RecordWriteAddr(*a.write, now)
	a.write = nil

	return true
}

func (a *Agent) sendReadAddr(c *simmem.Comp, now timing.VTimeInCycle) bool {
	if a.read == nil || !a.coin() || !c.SendReadAddr(*a.read) {
		return false
	}

	a.test.RecordReadAddr(*a.read, now)
	a.read = nil

	return true
}

func (a *Agent) sendWriteData(c *simmem.Comp) bool {
	if len(a.dataBursts) == 0 || !a.coin() {
		return false
	}

	last := a.beat == a.dataBursts[0]-1
	if !c.SendWriteData(simmem.WriteData{Data: a.rng.Uint64(), Last: last}) {
		return false
	}

	a.beat++
	if last {
		a.dataBursts = a.dataBursts[1:]
		a.beat = 0
	}

	return true
}

func (a *Agent) randomAddr() uint64 {
	align := uint64(1) << uint(a.cfg.BurstSize)
	return (a.rng.Uint64() % a.cfg.AddrSpace) &^ (align - 1)
}

func (a *Agent) tag() uint64 {
	a.nextTag++
	return a.nextTag
}

func (a *Agent) coin() bool {
	return a.rng.Intn(2) == 1
}

var _ simmem.Driver = (*Agent)(nil)
