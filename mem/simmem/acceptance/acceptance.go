// Package acceptance runs the emulator against an instantaneous memory and a
// random bus master, and checks that every response comes back in order,
// exactly once and no earlier than the DRAM allows.
package acceptance

import (
	"errors"
	"fmt"

	"github.com/sarchlab/simmem/mem/simmem"
	"github.com/sarchlab/simmem/mem/simmem/realmem"
	"github.com/sarchlab/simmem/sim/hooking"
	"github.com/sarchlab/simmem/sim/timing"
)

// ErrTimeout is reported when a run does not drain in time.
var ErrTimeout = errors.New("run did not drain")

// Config sets up a randomized run.
type Config struct {
	Seed int64

	// NumCycles is how long new traffic is generated. MaxCycles bounds the
	// whole run, including the drain.
	NumCycles int
	MaxCycles int

	MaxBurstLen int
	BurstSize   int
	AddrSpace   uint64

	Spec simmem.Spec
}

// DefaultConfig returns a short run over eight DRAM rows.
func DefaultConfig() Config {
	spec := simmem.Defaults()

	return Config{
		Seed:        1,
		NumCycles:   400,
		MaxCycles:   20000,
		MaxBurstLen: spec.MaxBurstLen,
		BurstSize:   spec.MaxBurstSize,
		AddrSpace:   8 * spec.RowBufferBytes,
		Spec:        spec,
	}
}

// Validate checks that the traffic fits the emulator.
func (c Config) Validate() error {
	switch {
	case c.NumCycles < 0 || c.MaxCycles <= c.NumCycles:
		return fmt.Errorf("%w: need 0 <= NumCycles < MaxCycles, got %d and %d",
			simmem.ErrMisconfiguration, c.NumCycles, c.MaxCycles)
	case c.MaxBurstLen < 1 || c.MaxBurstLen > c.Spec.MaxBurstLen:
		return fmt.Errorf("%w: MaxBurstLen %d outside [1, %d]",
			simmem.ErrMisconfiguration, c.MaxBurstLen, c.Spec.MaxBurstLen)
	case c.BurstSize < 0 || c.BurstSize > c.Spec.MaxBurstSize:
		return fmt.Errorf("%w: BurstSize %d outside [0, %d]",
			simmem.ErrMisconfiguration, c.BurstSize, c.Spec.MaxBurstSize)
	case c.AddrSpace == 0:
		return fmt.Errorf("%w: AddrSpace must be positive",
			simmem.ErrMisconfiguration)
	}

	return nil
}

// Sim holds everything a run needs.
type Sim struct {
	Engine  *timing.SerialEngine
	Comp    *simmem.Comp
	Ticking *simmem.TickingComp
	Mem     *realmem.Controller
	Agent   *Agent
	Test    *Test
}

// Build wires an engine, an emulator, a real memory and an agent. The hooks
// are attached to the emulator.
func Build(cfg Config, hooks ...hooking.Hook) (*Sim, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := simmem.MakeBuilder().WithSpec(cfg.Spec)
	for _, h := range hooks {
		b = b.WithHook(h)
	}

	comp, err := b.Build("SimMem")
	if err != nil {
		return nil, err
	}

	s := &Sim{
		Engine: timing.NewSerialEngine(),
		Comp:   comp,
		Mem:    realmem.New("RealMem", cfg.Spec.NumIDs),
		Test:   NewTest(cfg.Spec.NumIDs, uint64(cfg.Spec.RowHitCost)),
	}
	s.Agent = NewAgent(cfg, s.Test)

	w := &watchdog{maxCycles: timing.VTimeInCycle(cfg.MaxCycles)}
	s.Ticking = simmem.NewTickingComp(s.Engine, comp, s.Mem, s.Agent, w)
	w.tc = s.Ticking

	return s, nil
}

// Run ticks the simulation until it drains and checks the outcome.
func (s *Sim) Run() (Summary, error) {
	s.Ticking.TickNow()

	if err := s.Engine.Run(); err != nil {
		return s.Test.Summary(s.Comp.CurrentCycle()), err
	}

	report := s.Test.Summary(s.Comp.CurrentCycle())

	if err := s.Test.Err(); err != nil {
		return report, err
	}

	if !s.Agent.Done() || !s.Comp.Idle() || s.Mem.Pending() {
		return report, fmt.Errorf("%w: %d requests outstanding",
			ErrTimeout, s.Test.Outstanding())
	}

	return report, nil
}

// Run builds and runs a simulation.
func Run(cfg Config, hooks ...hooking.Hook) (Summary, error) {
	s, err := Build(cfg, hooks...)
	if err != nil {
		return Summary{}, err
	}

	return s.Run()
}

// watchdog stops the run when the queue structure breaks or the cycle budget
// is spent.
type watchdog struct {
	tc        *simmem.TickingComp
	maxCycles timing.VTimeInCycle
}

func (w *watchdog) Drive(c *simmem.Comp) bool {
	if err := c.CheckInvariants(); err != nil {
		w.tc.Abort(err)
	}

	if c.CurrentCycle() >= w.maxCycles {
		w.tc.Abort(fmt.Errorf("%w after %d cycles", ErrTimeout, w.maxCycles))
	}

	return false
}
