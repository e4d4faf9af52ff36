package simmem

import (
	"fmt"

	"github.com/sarchlab/simmem/mem/simmem/internal/delaybank"
	"github.com/sarchlab/simmem/mem/simmem/internal/rspbank"
	"github.com/sarchlab/simmem/mem/simmem/internal/signal"
	"github.com/sarchlab/simmem/mem/simmem/internal/wdataorder"
	"github.com/sarchlab/simmem/sim/hooking"
	"github.com/sarchlab/simmem/sim/idgen"
	"github.com/sarchlab/simmem/sim/naming"
	"github.com/sarchlab/simmem/sim/queueing"
	"github.com/sarchlab/simmem/sim/timing"
)

// Builder can build memory timing emulators.
type Builder struct {
	spec  Spec
	hooks []hooking.Hook
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{spec: Defaults()}
}

// WithSpec replaces the whole spec.
func (b Builder) WithSpec(spec Spec) Builder {
	b.spec = spec
	return b
}

// WithNumIDs sets the number of originator ids.
func (b Builder) WithNumIDs(n int) Builder {
	b.spec.NumIDs = n
	return b
}

// WithWriteRspCapacity sets the number of write-response cells.
func (b Builder) WithWriteRspCapacity(n int) Builder {
	b.spec.WriteRspCapacity = n
	return b
}

// WithReadDataCapacity sets the number of read-data cells.
func (b Builder) WithReadDataCapacity(n int) Builder {
	b.spec.ReadDataCapacity = n
	return b
}

// WithNumSlots sets the number of write and read scheduler slots.
func (b Builder) WithNumSlots(write, read int) Builder {
	b.spec.NumWriteSlots = write
	b.spec.NumReadSlots = read

	return b
}

// WithMaxBurstLen sets the longest burst, in elements.
func (b Builder) WithMaxBurstLen(n int) Builder {
	b.spec.MaxBurstLen = n
	return b
}

// WithMaxBurstSize sets the largest log2 element size.
func (b Builder) WithMaxBurstSize(n int) Builder {
	b.spec.MaxBurstSize = n
	return b
}

// WithRowBufferBytes sets the size of a DRAM row.
func (b Builder) WithRowBufferBytes(n uint64) Builder {
	b.spec.RowBufferBytes = n
	return b
}

// WithCosts sets the row-hit, activation and precharge costs in cycles.
func (b Builder) WithCosts(rowHit, activation, precharge int) Builder {
	b.spec.RowHitCost = rowHit
	b.spec.ActivationCost = activation
	b.spec.PrechargeCost = precharge

	return b
}

// WithNumRanks sets the number of independently scheduled ranks.
func (b Builder) WithNumRanks(n int) Builder {
	b.spec.NumRanks = n
	return b
}

// WithTieBreak sets how equally cheap writes and reads are ordered.
func (b Builder) WithTieBreak(p TieBreakPolicy) Builder {
	b.spec.TieBreak = p
	return b
}

// WithForwardBufSize sets the depth of the FIFOs toward the real memory.
func (b Builder) WithForwardBufSize(n int) Builder {
	b.spec.ForwardBufSize = n
	return b
}

// WithEarlyWriteDataCapacity sets how many write beats may arrive ahead of
// their address.
func (b Builder) WithEarlyWriteDataCapacity(n int) Builder {
	b.spec.EarlyWriteDataCapacity = n
	return b
}

// WithFreq sets the frequency the emulator is ticked at.
func (b Builder) WithFreq(f timing.FreqInHz) Builder {
	b.spec.Freq = f
	return b
}

// WithHook registers a hook on the built emulator.
func (b Builder) WithHook(h hooking.Hook) Builder {
	b.hooks = append(b.hooks[:len(b.hooks):len(b.hooks)], h)
	return b
}

// Build creates an emulator with the given name.
func (b Builder) Build(name string) (*Comp, error) {
	if err := naming.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMisconfiguration, err)
	}

	if err := b.spec.Validate(); err != nil {
		return nil, fmt.Errorf("simmem %s: %w", name, err)
	}

	c := &Comp{
		NamedBase:    naming.MakeNamedBase(name),
		HookableBase: hooking.NewHookableBase(),
		spec:         b.spec,
		ids:          idgen.New(),
	}

	if err := b.buildCore(c); err != nil {
		return nil, err
	}

	b.buildPorts(c)

	for _, h := range b.hooks {
		c.AcceptHook(h)
	}

	return c, nil
}

func (b Builder) buildCore(c *Comp) error {
	var err error

	name := c.Name()

	c.writeRelease = newReleaseCounter(
		naming.BuildName(name, "WriteRelease"), b.spec.WriteRspCapacity)
	c.readRelease = newReleaseCounter(
		naming.BuildName(name, "ReadRelease"), b.spec.ReadDataCapacity)

	c.writeRsp, err = rspbank.New[WriteRsp](
		naming.BuildName(name, "WriteRspBank"),
		rspbank.Config{
			NumIDs:      b.spec.NumIDs,
			Capacity:    b.spec.WriteRspCapacity,
			MaxBurstLen: 1,
		},
		c.writeRelease,
	)
	if err != nil {
		return err
	}

	c.readData, err = rspbank.New[ReadData](
		naming.BuildName(name, "ReadDataBank"),
		rspbank.Config{
			NumIDs:      b.spec.NumIDs,
			Capacity:    b.spec.ReadDataCapacity,
			MaxBurstLen: b.spec.MaxBurstLen,
		},
		c.readRelease,
	)
	if err != nil {
		return err
	}

	c.sched, err = delaybank.New(
		naming.BuildName(name, "Scheduler"), b.spec.schedulerConfig())
	if err != nil {
		return err
	}

	c.sched.AcceptHook(hooking.HookFunc(c.relaySchedulerHook))

	c.wdata, err = wdataorder.New(b.spec.EarlyWriteDataCapacity)
	if err != nil {
		return err
	}

	c.releasePipe = queueing.MakePipelineBuilder[signal.Completion]().
		WithNumStage(releaseStages).
		Build(naming.BuildName(name, "ReleasePipeline"))

	return nil
}

func (b Builder) buildPorts(c *Comp) {
	name := c.Name()
	size := b.spec.ForwardBufSize

	c.fwdWriteAddr = queueing.NewBuffer[WriteAddr](
		naming.BuildName(name, "FwdWriteAddr"), size)
	c.fwdWriteData = queueing.NewBuffer[WriteData](
		naming.BuildName(name, "FwdWriteData"), size)
	c.fwdReadAddr = queueing.NewBuffer[ReadAddr](
		naming.BuildName(name, "FwdReadAddr"), size)

	c.txns[KindWrite] = make([]*Transaction, b.spec.WriteRspCapacity)
	c.txns[KindRead] = make([]*Transaction, b.spec.ReadDataCapacity)
}
