// Package analysis summarizes how full the structures of an emulator are
// over time.
package analysis

import "github.com/sarchlab/simmem/datarecording"

// PerfTable is the table a DBPerfLogger writes to.
const PerfTable = "perf"

// PerfAnalyzerEntry is a value measured over the cycles [Start, End).
type PerfAnalyzerEntry struct {
	Start     uint64
	End       uint64
	Where     string
	What      string
	EntryType string
	Value     float64
	Unit      string
}

// PerfLogger is the interface that provide the service that can record
// performance data entries.
type PerfLogger interface {
	AddDataEntry(entry PerfAnalyzerEntry)
}

// DBPerfLogger records entries into a DataRecorder.
type DBPerfLogger struct {
	recorder datarecording.DataRecorder
}

// NewDBPerfLogger creates the perf table and a logger that fills it.
func NewDBPerfLogger(recorder datarecording.DataRecorder) *DBPerfLogger {
	recorder.CreateTable(PerfTable, PerfAnalyzerEntry{})

	return &DBPerfLogger{recorder: recorder}
}

// AddDataEntry buffers the entry in the recorder.
func (l *DBPerfLogger) AddDataEntry(entry PerfAnalyzerEntry) {
	l.recorder.InsertData(PerfTable, entry)
}
