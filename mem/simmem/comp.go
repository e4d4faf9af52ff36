package simmem

import (
	"errors"
	"log"

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

// HookPosAddrAccepted marks when a write or read address is accepted. The
// item is the *Transaction.
var HookPosAddrAccepted = &hooking.HookPos{Name: "Addr Accepted"}

// HookPosRspReleased marks when a response beat is taken by the requester.
// The item is the *Transaction and the detail is a Release.
var HookPosRspReleased = &hooking.HookPos{Name: "Rsp Released"}

// Scheduler hook positions, relayed by the Comp with an Element item.
var (
	HookPosElementServiced = delaybank.HookPosElementServiced
	HookPosElementDone     = delaybank.HookPosElementDone
)

// Element is one beat of a transaction as seen by the DRAM scheduler.
type Element = delaybank.Element

// Comp is a memory timing emulator. The requester side takes addresses and
// write data and returns responses. The real-memory side forwards the
// requests to an immediate memory and stores its answers until the
// simulated DRAM releases them.
type Comp struct {
	naming.NamedBase
	*hooking.HookableBase

	spec Spec

	writeRsp *rspbank.Bank[WriteRsp]
	readData *rspbank.Bank[ReadData]
	sched    *delaybank.Scheduler
	wdata    *wdataorder.Adapter

	writeRelease *releaseCounter
	readRelease  *releaseCounter
	releasePipe  *queueing.Pipeline[signal.Completion]

	fwdWriteAddr *queueing.Buffer[WriteAddr]
	fwdWriteData *queueing.Buffer[WriteData]
	fwdReadAddr  *queueing.Buffer[ReadAddr]

	stagedWriteAddr *WriteAddr
	stagedWriteData *WriteData
	stagedReadAddr  *ReadAddr

	deliveredWriteRsp bool
	deliveredReadData bool

	txns  [2][]*Transaction
	ids   idgen.Generator
	cycle timing.VTimeInCycle
}

// Spec returns the configuration the emulator was built with.
func (c *Comp) Spec() Spec {
	return c.spec
}

// CurrentCycle returns the number of ticks so far.
func (c *Comp) CurrentCycle() timing.VTimeInCycle {
	return c.cycle
}

// SendWriteAddr offers a write address. It returns false if the address
// cannot be taken in this cycle.
func (c *Comp) SendWriteAddr(a WriteAddr) bool {
	c.mustBeValidBurst("write", a.ID, a.BurstLen, a.BurstSize)

	if c.stagedWriteAddr != nil ||
		!c.fwdWriteAddr.CanPush() ||
		!c.writeRsp.CanReserve() ||
		!c.sched.CanAccept(KindWrite) {
		return false
	}

	cell, err := c.writeRsp.Reserve(a.ID, 1)
	c.mustNotFail(err)

	arrived := c.wdata.AcceptAddr(a.BurstLen)

	_, err = c.sched.Accept(delaybank.Request{
		Kind:       KindWrite,
		InternalID: cell,
		Addr:       a.Addr,
		BurstLen:   a.BurstLen,
		BurstSize:  a.BurstSize,
		Arrived:    arrived,
	})
	c.mustNotFail(err)

	c.stagedWriteAddr = &a
	c.track(&Transaction{
		Kind:       KindWrite,
		AXIID:      a.ID,
		Addr:       a.Addr,
		BurstLen:   a.BurstLen,
		BurstSize:  a.BurstSize,
		Tag:        a.Tag,
		InternalID: cell,
	})

	return true
}

// SendWriteData offers one write beat. Beats may come before or after their
// address.
func (c *Comp) SendWriteData(d WriteData) bool {
	if c.stagedWriteData != nil ||
		!c.fwdWriteData.CanPush() ||
		!c.wdata.CanAcceptData() {
		return false
	}

	forward, err := c.wdata.AcceptData()
	c.mustNotFail(err)

	if forward {
		c.mustNotFail(c.sched.WriteDataArrived())
	}

	c.stagedWriteData = &d

	return true
}

// SendReadAddr offers a read address. It returns false if the address
// cannot be taken in this cycle.
func (c *Comp) SendReadAddr(a ReadAddr) bool {
	c.mustBeValidBurst("read", a.ID, a.BurstLen, a.BurstSize)

	if c.stagedReadAddr != nil ||
		!c.fwdReadAddr.CanPush() ||
		!c.readData.CanReserve() ||
		!c.sched.CanAccept(KindRead) {
		return false
	}

	cell, err := c.readData.Reserve(a.ID, a.BurstLen)
	c.mustNotFail(err)

	_, err = c.sched.Accept(delaybank.Request{
		Kind:       KindRead,
		InternalID: cell,
		Addr:       a.Addr,
		BurstLen:   a.BurstLen,
		BurstSize:  a.BurstSize,
	})
	c.mustNotFail(err)

	c.stagedReadAddr = &a
	c.track(&Transaction{
		Kind:       KindRead,
		AXIID:      a.ID,
		Addr:       a.Addr,
		BurstLen:   a.BurstLen,
		BurstSize:  a.BurstSize,
		Tag:        a.Tag,
		InternalID: cell,
	})

	return true
}

// PeekWriteRsp returns the write response offered in this cycle.
func (c *Comp) PeekWriteRsp() (WriteRsp, bool) {
	out, ok := c.writeRsp.Peek()
	if !ok {
		return WriteRsp{}, false
	}

	return c.writeRspOf(out), true
}

// TakeWriteRsp accepts the write response offered in this cycle.
func (c *Comp) TakeWriteRsp() (WriteRsp, bool) {
	out, err := c.writeRsp.Pop()
	if err != nil {
		return WriteRsp{}, false
	}

	c.released(KindWrite, out.Cell, out.Offset, out.Last)

	return c.writeRspOf(out), true
}

func (c *Comp) writeRspOf(out rspbank.Output[WriteRsp]) WriteRsp {
	return WriteRsp{
		ID:  out.ID,
		Tag: c.txns[KindWrite][out.Cell].Tag,
	}
}

// PeekReadData returns the read beat offered in this cycle.
func (c *Comp) PeekReadData() (ReadData, bool) {
	out, ok := c.readData.Peek()
	if !ok {
		return ReadData{}, false
	}

	return c.readDataOf(out), true
}

// TakeReadData accepts the read beat offered in this cycle.
func (c *Comp) TakeReadData() (ReadData, bool) {
	out, err := c.readData.Pop()
	if err != nil {
		return ReadData{}, false
	}

	c.released(KindRead, out.Cell, out.Offset, out.Last)

	return c.readDataOf(out), true
}

func (c *Comp) readDataOf(out rspbank.Output[ReadData]) ReadData {
	return ReadData{
		ID:   out.ID,
		Data: out.Elem.Data,
		Beat: out.Offset,
		Last: out.Last,
		Tag:  c.txns[KindRead][out.Cell].Tag,
	}
}

// TakeForwardedWriteAddr hands the oldest accepted write address to the
// real memory.
func (c *Comp) TakeForwardedWriteAddr() (WriteAddr, bool) {
	return c.fwdWriteAddr.Pop()
}

// TakeForwardedWriteData hands the oldest accepted write beat to the real
// memory.
func (c *Comp) TakeForwardedWriteData() (WriteData, bool) {
	return c.fwdWriteData.Pop()
}

// TakeForwardedReadAddr hands the oldest accepted read address to the real
// memory.
func (c *Comp) TakeForwardedReadAddr() (ReadAddr, bool) {
	return c.fwdReadAddr.Pop()
}

// DeliverWriteRsp stores the real memory's answer to a write. One response
// is taken per cycle.
func (c *Comp) DeliverWriteRsp(rsp WriteRsp) bool {
	if c.deliveredWriteRsp {
		return false
	}

	_, err := c.writeRsp.Push(rsp.ID, rsp)
	c.mustNotFail(err)

	c.deliveredWriteRsp = true

	return true
}

// DeliverReadData stores one beat of the real memory's answer to a read. One
// beat is taken per cycle.
func (c *Comp) DeliverReadData(d ReadData) bool {
	if c.deliveredReadData {
		return false
	}

	_, err := c.readData.Push(d.ID, d)
	c.mustNotFail(err)

	c.deliveredReadData = true

	return true
}

// Tick moves the emulator to the next cycle.
func (c *Comp) Tick() (madeProgress bool) {
	madeProgress = c.releaseServed() || madeProgress
	madeProgress = c.schedule() || madeProgress
	madeProgress = c.writeRsp.Tick() || madeProgress
	madeProgress = c.readData.Tick() || madeProgress
	madeProgress = c.forward() || madeProgress

	c.deliveredWriteRsp = false
	c.deliveredReadData = false
	c.cycle++

	return madeProgress || !c.Idle()
}

func (c *Comp) releaseServed() bool {
	served := c.releasePipe.Tick()

	for _, s := range served {
		switch s.Kind {
		case KindWrite:
			c.writeRelease.grant(s.InternalID)
		case KindRead:
			c.readRelease.grant(s.InternalID)
		}
	}

	return len(served) > 0
}

func (c *Comp) schedule() bool {
	completions := c.sched.Tick()

	for _, done := range completions {
		c.releasePipe.Accept(done)
	}

	return len(completions) > 0 || !c.sched.Idle()
}

func (c *Comp) forward() bool {
	progress := false

	if c.stagedWriteAddr != nil {
		c.fwdWriteAddr.Push(*c.stagedWriteAddr)
		c.stagedWriteAddr = nil
		progress = true
	}

	if c.stagedWriteData != nil {
		c.fwdWriteData.Push(*c.stagedWriteData)
		c.stagedWriteData = nil
		progress = true
	}

	if c.stagedReadAddr != nil {
		c.fwdReadAddr.Push(*c.stagedReadAddr)
		c.stagedReadAddr = nil
		progress = true
	}

	return progress
}

// Idle tells if nothing is stored, scheduled or waiting inside the
// emulator.
func (c *Comp) Idle() bool {
	return c.sched.Idle() &&
		c.releasePipe.NumInFlight() == 0 &&
		c.writeRelease.pending() == 0 &&
		c.readRelease.pending() == 0 &&
		c.writeRsp.NumFreeCells() == c.spec.WriteRspCapacity &&
		c.readData.NumFreeCells() == c.spec.ReadDataCapacity &&
		c.fwdWriteAddr.Size() == 0 &&
		c.fwdWriteData.Size() == 0 &&
		c.fwdReadAddr.Size() == 0 &&
		c.wdata.Spare() == 0 &&
		c.wdata.Owed() == 0
}

// CheckInvariants verifies the queue structure of both response stores.
func (c *Comp) CheckInvariants() error {
	return errors.Join(
		c.writeRsp.CheckInvariants(),
		c.readData.CheckInvariants(),
	)
}

func (c *Comp) track(t *Transaction) {
	t.ID = c.ids.Generate()
	t.AcceptedAt = c.cycle
	c.txns[t.Kind][t.InternalID] = t

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosAddrAccepted,
		Item:   t,
	})
}

func (c *Comp) released(kind Kind, cell, beat int, last bool) {
	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosRspReleased,
		Item:   c.txns[kind][cell],
		Detail: Release{Beat: beat, Last: last, At: c.cycle},
	})
}

func (c *Comp) relaySchedulerHook(ctx hooking.HookCtx) {
	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    ctx.Pos,
		Item:   ctx.Item,
		Detail: c.cycle,
	})
}

func (c *Comp) mustBeValidBurst(kind string, id, burstLen, burstSize int) {
	switch {
	case id < 0 || id >= c.spec.NumIDs:
		log.Panicf("%s: %s id %d outside [0, %d)",
			c.Name(), kind, id, c.spec.NumIDs)
	case burstLen < 1 || burstLen > c.spec.MaxBurstLen:
		log.Panicf("%s: %s burst length %d outside [1, %d]",
			c.Name(), kind, burstLen, c.spec.MaxBurstLen)
	case burstSize < 0 || burstSize > c.spec.MaxBurstSize:
		log.Panicf("%s: %s burst size %d outside [0, %d]",
			c.Name(), kind, burstSize, c.spec.MaxBurstSize)
	}
}

func (c *Comp) mustNotFail(err error) {
	if err != nil {
		log.Panicf("%s: %v", c.Name(), err)
	}
}
