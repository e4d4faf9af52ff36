package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/simmem/analysis"
	"github.com/sarchlab/simmem/datarecording"
	"github.com/sarchlab/simmem/mem/simmem"
	"github.com/sarchlab/simmem/mem/simmem/acceptance"
	"github.com/sarchlab/simmem/monitoring"
	"github.com/sarchlab/simmem/sim/hooking"
	"github.com/sarchlab/simmem/tracing"
)

type runOptions struct {
	seed      int64
	numCycles int
	maxCycles int
	burstSize int
	numRows   uint64
	tieBreak  string
	logTxns   bool

	spec simmem.Spec

	record      bool
	recordPath  string
	levelPeriod uint64

	monitor     bool
	monitorPort int
	openBrowser bool
}

func defaultRunOptions() *runOptions {
	cfg := acceptance.DefaultConfig()

	return &runOptions{
		seed:      cfg.Seed,
		numCycles: cfg.NumCycles,
		maxCycles: cfg.MaxCycles,
		burstSize: cfg.BurstSize,
		numRows:   cfg.AddrSpace / cfg.Spec.RowBufferBytes,
		tieBreak:  cfg.Spec.TieBreak.String(),
		spec:      cfg.Spec,
	}
}

func newRunCmd() *cobra.Command {
	return newRunCmdWith(defaultRunOptions())
}

func newRunCmdWith(o *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run random traffic through the emulator.",
		Long: "Run random write and read bursts through the emulator for a " +
			"number of cycles, wait for every response, and check their order " +
			"and timing.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd.OutOrStdout())
		},
	}

	o.bindFlags(cmd)

	return cmd
}

func (o *runOptions) bindFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	f.Int64Var(&o.seed, "seed", o.seed, "seed of the random traffic")
	f.IntVar(&o.numCycles, "cycles", o.numCycles,
		"number of cycles new requests are generated")
	f.IntVar(&o.maxCycles, "max-cycles", o.maxCycles,
		"cycle budget of the whole run, including the drain")
	f.IntVar(&o.burstSize, "burst-size", o.burstSize,
		"log2 of the bytes per element of the generated bursts")
	f.Uint64Var(&o.numRows, "rows", o.numRows,
		"number of DRAM rows the traffic spreads over")
	f.StringVar(&o.tieBreak, "tie-break", o.tieBreak,
		"order of equally cheap writes and reads: favor-write, favor-read or oldest")
	f.BoolVar(&o.logTxns, "log-txns", false,
		"print every accepted and completed transaction to stderr")

	s := &o.spec
	f.IntVar(&s.NumIDs, "ids", s.NumIDs, "number of originator ids")
	f.IntVar(&s.WriteRspCapacity, "write-rsp-cells", s.WriteRspCapacity,
		"number of write-response cells")
	f.IntVar(&s.ReadDataCapacity, "read-data-cells", s.ReadDataCapacity,
		"number of read-data cells")
	f.IntVar(&s.NumWriteSlots, "write-slots", s.NumWriteSlots,
		"number of write scheduler slots")
	f.IntVar(&s.NumReadSlots, "read-slots", s.NumReadSlots,
		"number of read scheduler slots")
	f.IntVar(&s.MaxBurstLen, "max-burst-len", s.MaxBurstLen,
		"longest burst, in elements")
	f.IntVar(&s.MaxBurstSize, "max-burst-size", s.MaxBurstSize,
		"largest log2 element size")
	f.Uint64Var(&s.RowBufferBytes, "row-bytes", s.RowBufferBytes,
		"bytes per DRAM row")
	f.IntVar(&s.RowHitCost, "row-hit-cost", s.RowHitCost,
		"cycles to serve an element in the open row")
	f.IntVar(&s.ActivationCost, "activation-cost", s.ActivationCost,
		"extra cycles to open a row")
	f.IntVar(&s.PrechargeCost, "precharge-cost", s.PrechargeCost,
		"extra cycles to close the open row")
	f.IntVar(&s.NumRanks, "ranks", s.NumRanks,
		"number of independently scheduled ranks")
	f.IntVar(&s.ForwardBufSize, "forward-buf", s.ForwardBufSize,
		"depth of the FIFOs toward the memory")
	f.IntVar(&s.EarlyWriteDataCapacity, "early-write-data", s.EarlyWriteDataCapacity,
		"write beats that may arrive ahead of their address")

	f.BoolVar(&o.record, "record", false,
		"record the trace of every transaction into SQLite")
	f.StringVar(&o.recordPath, "record-path", "",
		"database name without extension, random if empty")
	f.Uint64Var(&o.levelPeriod, "level-period", 100,
		"cycles over which recorded occupancies are averaged, 0 for the whole run")

	f.BoolVar(&o.monitor, "monitor", false, "serve the monitoring pages")
	f.IntVar(&o.monitorPort, "monitor-port", 0,
		"port of the monitoring server, random if 0")
	f.BoolVar(&o.openBrowser, "open-browser", false,
		"open the monitoring pages in a browser")
}

func (o *runOptions) config() (acceptance.Config, error) {
	tieBreak, err := simmem.ParseTieBreakPolicy(o.tieBreak)
	if err != nil {
		return acceptance.Config{}, err
	}

	spec := o.spec
	spec.TieBreak = tieBreak

	if err := spec.Validate(); err != nil {
		return acceptance.Config{}, err
	}

	cfg := acceptance.Config{
		Seed:        o.seed,
		NumCycles:   o.numCycles,
		MaxCycles:   o.maxCycles,
		MaxBurstLen: spec.MaxBurstLen,
		BurstSize:   o.burstSize,
		AddrSpace:   o.numRows * spec.RowBufferBytes,
		Spec:        spec,
	}

	return cfg, cfg.Validate()
}

func (o *runOptions) run(out io.Writer) error {
	cfg, err := o.config()
	if err != nil {
		return err
	}

	var (
		hooks   []hooking.Hook
		monitor *monitoring.Monitor
		bar     *monitoring.ProgressBar
	)

	if o.logTxns {
		hooks = append(hooks, simmem.NewTxnLogger(log.New(os.Stderr, "", 0)))
	}

	if o.monitor {
		monitor = monitoring.NewMonitor().
			WithPortNumber(o.monitorPort).
			WithBrowser(o.openBrowser)
		bar = monitor.CreateProgressBar("Transactions", 0)
		hooks = append(hooks, monitoring.NewProgressHook(bar))
	}

	s, err := acceptance.Build(cfg, hooks...)
	if err != nil {
		return err
	}

	writeTime := tracing.NewAverageTimeTracer(
		func(t tracing.Task) bool { return t.Kind == tracing.KindWrite })
	readTime := tracing.NewAverageTimeTracer(
		func(t tracing.Task) bool { return t.Kind == tracing.KindRead })
	tracing.CollectTrace(s.Comp, writeTime)
	tracing.CollectTrace(s.Comp, readTime)

	var (
		recorder datarecording.DataRecorder
		dbTracer *tracing.DBTracer
		levels   *analysis.LevelAnalyzer
	)

	if o.record {
		recorder = datarecording.New(o.recordPath)
		dbTracer = tracing.NewDBTracer(recorder)
		tracing.CollectTrace(s.Comp, dbTracer)

		levels = analysis.MakeLevelAnalyzerBuilder().
			WithPerfLogger(analysis.NewDBPerfLogger(recorder)).
			WithPeriod(o.levelPeriod).
			Build()
		s.Ticking.AddDriver(levels)
	}

	if monitor != nil {
		monitor.RegisterEngine(s.Engine)
		monitor.RegisterComponent(s.Ticking)
		monitor.StartServer()
	}

	report, runErr := s.Run()

	if dbTracer != nil {
		levels.Finish()
		dbTracer.Terminate()

		if err := recorder.Close(); err != nil && runErr == nil {
			runErr = err
		}
	}

	if monitor != nil {
		monitor.CompleteProgressBar(bar)
	}

	printReport(out, report, writeTime, readTime)

	return runErr
}

func printReport(
	out io.Writer,
	r acceptance.Summary,
	writeTime, readTime *tracing.AverageTimeTracer,
) {
	fmt.Fprintf(out, "cycles: %d\n", r.Cycles)
	fmt.Fprintf(out, "writes: %d, mean delay %.2f, max delay %d\n",
		r.NumWrites, r.MeanWriteDelay, r.MaxWriteDelay)
	fmt.Fprintf(out, "reads: %d (%d beats), mean delay %.2f, max delay %d\n",
		r.NumReads, r.NumReadBeats, r.MeanReadDelay, r.MaxReadDelay)
	fmt.Fprintf(out, "write lifetime: mean %.2f, max %d cycles\n",
		writeTime.AverageTime(), writeTime.MaxTime())
	fmt.Fprintf(out, "read lifetime: mean %.2f, max %d cycles\n",
		readTime.AverageTime(), readTime.MaxTime())
}
