package simmem

import "github.com/sarchlab/simmem/sim/naming"

// Level is the occupancy of one storage structure inside the emulator.
type Level struct {
	Name     string `json:"name"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
}

// Percent returns how full the structure is, between 0 and 1.
func (l Level) Percent() float64 {
	if l.Capacity == 0 {
		return 0
	}

	return float64(l.Size) / float64(l.Capacity)
}

// Status is a snapshot of the emulator between two ticks.
type Status struct {
	Name  string `json:"name"`
	Cycle uint64 `json:"cycle"`
	Idle  bool   `json:"idle"`

	InFlightReleases int `json:"in_flight_releases"`
	PendingReleases  int `json:"pending_releases"`
	EarlyWriteBeats  int `json:"early_write_beats"`
	OwedWriteBeats   int `json:"owed_write_beats"`

	Levels []Level `json:"levels"`
}

// Levels lists the occupancy of every store, slot pool and forward FIFO.
func (c *Comp) Levels() []Level {
	name := c.Name()

	return []Level{
		{
			Name:     c.writeRsp.Name(),
			Size:     c.spec.WriteRspCapacity - c.writeRsp.NumFreeCells(),
			Capacity: c.spec.WriteRspCapacity,
		},
		{
			Name:     c.readData.Name(),
			Size:     c.spec.ReadDataCapacity - c.readData.NumFreeCells(),
			Capacity: c.spec.ReadDataCapacity,
		},
		{
			Name:     naming.BuildName(c.sched.Name(), "WriteSlots"),
			Size:     c.sched.NumLiveSlots(KindWrite),
			Capacity: c.spec.NumWriteSlots,
		},
		{
			Name:     naming.BuildName(c.sched.Name(), "ReadSlots"),
			Size:     c.sched.NumLiveSlots(KindRead),
			Capacity: c.spec.NumReadSlots,
		},
		{
			Name:     naming.BuildName(name, "EarlyWriteData"),
			Size:     c.wdata.Spare(),
			Capacity: c.spec.EarlyWriteDataCapacity,
		},
		bufferLevel(c.fwdWriteAddr),
		bufferLevel(c.fwdWriteData),
		bufferLevel(c.fwdReadAddr),
	}
}

type sizedBuffer interface {
	Name() string
	Size() int
	Capacity() int
}

func bufferLevel(b sizedBuffer) Level {
	return Level{Name: b.Name(), Size: b.Size(), Capacity: b.Capacity()}
}

// Status takes a snapshot of the emulator.
func (c *Comp) Status() Status {
	return Status{
		Name:             c.Name(),
		Cycle:            uint64(c.cycle),
		Idle:             c.Idle(),
		InFlightReleases: c.releasePipe.NumInFlight(),
		PendingReleases:  c.writeRelease.pending() + c.readRelease.pending(),
		EarlyWriteBeats:  c.wdata.Spare(),
		OwedWriteBeats:   c.wdata.Owed(),
		Levels:           c.Levels(),
	}
}
