package analysis

import "github.com/sarchlab/simmem/mem/simmem"

// LevelAnalyzer samples the occupancy of every store, slot pool and FIFO of
// an emulator once per cycle and logs the average of each period.
type LevelAnalyzer struct {
	logger PerfLogger
	period uint64

	periodStart uint64
	nextCycle   uint64
	sampled     bool
	samples     uint64
	sums        map[string]uint64
	order       []string
}

// Drive samples the emulator. It runs as a driver and never makes progress
// on its own.
func (a *LevelAnalyzer) Drive(c *simmem.Comp) bool {
	now := uint64(c.CurrentCycle())

	if a.usePeriod() && a.sampled && now >= a.periodStart+a.period {
		a.summarize(a.periodStart + a.period)
		a.periodStart = now - now%a.period
	}

	for _, l := range c.Levels() {
		if _, ok := a.sums[l.Name]; !ok {
			a.order = append(a.order, l.Name)
		}

		a.sums[l.Name] += uint64(l.Size)
	}

	a.samples++
	a.sampled = true
	a.nextCycle = now + 1

	return false
}

// Finish logs the period that is still open.
func (a *LevelAnalyzer) Finish() {
	if !a.sampled {
		return
	}

	a.summarize(a.nextCycle)
}

func (a *LevelAnalyzer) usePeriod() bool {
	return a.period > 0
}

func (a *LevelAnalyzer) summarize(end uint64) {
	for _, name := range a.order {
		sum := a.sums[name]
		if sum == 0 {
			continue
		}

		a.logger.AddDataEntry(PerfAnalyzerEntry{
			Start:     a.periodStart,
			End:       end,
			Where:     name,
			What:      "Level",
			EntryType: "Buffer",
			Value:     float64(sum) / float64(a.samples),
		})

		a.sums[name] = 0
	}

	a.samples = 0
	a.sampled = false
}

// LevelAnalyzerBuilder can build a LevelAnalyzer.
type LevelAnalyzerBuilder struct {
	perfLogger PerfLogger
	period     uint64
}

// MakeLevelAnalyzerBuilder creates a LevelAnalyzerBuilder.
func MakeLevelAnalyzerBuilder() LevelAnalyzerBuilder {
	return LevelAnalyzerBuilder{}
}

// WithPerfLogger sets the PerfLogger to use.
func (b LevelAnalyzerBuilder) WithPerfLogger(
	perfLogger PerfLogger,
) LevelAnalyzerBuilder {
	b.perfLogger = perfLogger
	return b
}

// WithPeriod sets the length of a period in cycles. Without a period the
// whole run is summarized by Finish.
func (b LevelAnalyzerBuilder) WithPeriod(cycles uint64) LevelAnalyzerBuilder {
	b.period = cycles
	return b
}

// Build creates a LevelAnalyzer.
func (b LevelAnalyzerBuilder) Build() *LevelAnalyzer {
	if b.perfLogger == nil {
		panic("perfLogger is not set")
	}

	return &LevelAnalyzer{
		logger: b.perfLogger,
		period: b.period,
		sums:   make(map[string]uint64),
	}
}

var _ simmem.Driver = (*LevelAnalyzer)(nil)
