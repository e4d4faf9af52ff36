// Package realmem provides an instantaneous memory controller that sits
// behind the timing emulator. It answers every request as soon as it can, so
// all visible latency comes from the emulator.
package realmem

import (
	"github.com/sarchlab/simmem/mem/simmem"
	"github.com/sarchlab/simmem/sim/naming"
)

// Stats counts the traffic seen by a Controller.
type Stats struct {
	ReadAddrs  int
	ReadBeats  int
	WriteAddrs int
	WriteBeats int
	WriteRsps  int
}

// A Controller answers reads with data equal to the burst address plus the
// beat index, and acknowledges a write once all of its beats were
// received. Write beats are matched with addresses in arrival order.
type Controller struct {
	naming.NamedBase

	readData   [][]simmem.ReadData
	writeRsps  []int
	waiting    []simmem.WriteAddr
	spareBeats int
	stats      Stats
}

// New creates a Controller for numIDs originator ids.
func New(name string, numIDs int) *Controller {
	naming.NameMustBeValid(name)

	return &Controller{
		NamedBase: naming.MakeNamedBase(name),
		readData:  make([][]simmem.ReadData, numIDs),
		writeRsps: make([]int, numIDs),
	}
}

// Stats returns the traffic counters.
func (m *Controller) Stats() Stats {
	return m.stats
}

// Drive answers pending requests, lowest id first, and then takes what the
// emulator forwarded in the previous cycle.
func (m *Controller) Drive(c *simmem.Comp) (madeProgress bool) {
	madeProgress = m.deliverWriteRsp(c) || madeProgress
	madeProgress = m.deliverReadData(c) || madeProgress
	madeProgress = m.takeReadAddr(c) || madeProgress
	madeProgress = m.takeWriteAddr(c) || madeProgress
	madeProgress = m.takeWriteData(c) || madeProgress

	return madeProgress
}

// Pending tells if some response has not been delivered yet.
func (m *Controller) Pending() bool {
	for id := range m.readData {
		if len(m.readData[id]) > 0 || m.writeRsps[id] > 0 {
			return true
		}
	}

	return len(m.waiting) > 0
}

func (m *Controller) deliverWriteRsp(c *simmem.Comp) bool {
	for id, n := range m.writeRsps {
		if n == 0 {
			continue
		}

		if !c.DeliverWriteRsp(simmem.WriteRsp{ID: id}) {
			return false
		}

		m.writeRsps[id]--
		m.stats.WriteRsps++

		return true
	}

	return false
}

func (m *Controller) deliverReadData(c *simmem.Comp) bool {
	for id, q := range m.readData {
		if len(q) == 0 {
			continue
		}

		if !c.DeliverReadData(q[0]) {
			return false
		}

		m.readData[id] = q[1:]
		m.stats.ReadBeats++

		return true
	}

	return false
}

func (m *Controller) takeReadAddr(c *simmem.Comp) bool {
	a, ok := c.TakeForwardedReadAddr()
	if !ok {
		return false
	}

	for i := 0; i < a.BurstLen; i++ {
		m.readData[a.ID] = append(m.readData[a.ID], simmem.ReadData{
			ID:   a.ID,
			Data: a.Addr + uint64(i),
			Last: i == a.BurstLen-1,
		})
	}

	m.stats.ReadAddrs++

	return true
}

func (m *Controller) takeWriteAddr(c *simmem.Comp) bool {
	a, ok := c.TakeForwardedWriteAddr()
	if !ok {
		return false
	}

	m.waiting = append(m.waiting, a)
	m.stats.WriteAddrs++
	m.settleWrites()

	return true
}

func (m *Controller) takeWriteData(c *simmem.Comp) bool {
	if _, ok := c.TakeForwardedWriteData(); !ok {
		return false
	}

	m.stats.WriteBeats++
	m.spareBeats++
	m.settleWrites()

	return true
}

// settleWrites acknowledges the oldest writes whose beats have all arrived.
func (m *Controller) settleWrites() {
	for len(m.waiting) > 0 && m.spareBeats >= m.waiting[0].BurstLen {
		w := m.waiting[0]
		m.spareBeats -= w.BurstLen
		m.writeRsps[w.ID]++
		m.waiting = m.waiting[1:]
	}
}

var _ simmem.Driver = (*Controller)(nil)
