package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/simmem/analysis"
	"github.com/sarchlab/simmem/datarecording"
	"github.com/sarchlab/simmem/mem/simmem"
	"github.com/sarchlab/simmem/tracing"
)

var _ = Describe("Command", func() {
	var out *bytes.Buffer

	execute := func(args ...string) error {
		root := newRootCmd()
		root.SetOut(out)
		root.SetErr(out)
		root.SetArgs(args)

		return root.Execute()
	}

	BeforeEach(func() {
		out = new(bytes.Buffer)

		wd, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(GinkgoT().TempDir())).To(Succeed())
		DeferCleanup(os.Chdir, wd)
	})

	It("should print the version", func() {
		Expect(execute("version")).To(Succeed())
		Expect(out.String()).To(HavePrefix("simmem dev"))
	})

	It("should turn flags into a run configuration", func() {
		o := defaultRunOptions()
		cmd := newRunCmdWith(o)
		Expect(cmd.ParseFlags([]string{
			"--seed", "7",
			"--cycles", "50",
			"--ids", "2",
			"--tie-break", "oldest",
			"--rows", "4",
			"--row-bytes", "1024",
		})).To(Succeed())

		cfg, err := o.config()

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Seed).To(Equal(int64(7)))
		Expect(cfg.NumCycles).To(Equal(50))
		Expect(cfg.Spec.NumIDs).To(Equal(2))
		Expect(cfg.Spec.TieBreak).To(Equal(simmem.TieBreakOldest))
		Expect(cfg.AddrSpace).To(Equal(uint64(4096)))
		Expect(cfg.MaxBurstLen).To(Equal(cfg.Spec.MaxBurstLen))
	})

	It("should take defaults from the environment", func() {
		GinkgoT().Setenv("SIMMEM_MAX_CYCLES", "1234")
		GinkgoT().Setenv("SIMMEM_CYCLES", "10")

		o := defaultRunOptions()
		cmd := newRunCmdWith(o)
		Expect(cmd.ParseFlags([]string{"--cycles", "20"})).To(Succeed())
		Expect(applyEnvDefaults(cmd)).To(Succeed())

		cfg, err := o.config()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.MaxCycles).To(Equal(1234))
		Expect(cfg.NumCycles).To(Equal(20))
	})

	It("should read defaults from a .env file", func() {
		Expect(os.WriteFile(".env", []byte("SIMMEM_SEED=99\n"), 0o600)).
			To(Succeed())
		DeferCleanup(os.Unsetenv, "SIMMEM_SEED")

		o := defaultRunOptions()
		Expect(applyEnvDefaults(newRunCmdWith(o))).To(Succeed())

		Expect(o.seed).To(Equal(int64(99)))
	})

	It("should reject malformed environment values", func() {
		GinkgoT().Setenv("SIMMEM_IDS", "four")

		Expect(applyEnvDefaults(newRunCmd())).NotTo(Succeed())
	})

	It("should reject an unknown tie-break policy", func() {
		err := execute("run", "--tie-break", "random")

		Expect(err).To(MatchError(simmem.ErrMisconfiguration))
	})

	It("should reject an invalid spec", func() {
		err := execute("run", "--ids", "0")

		Expect(err).To(MatchError(simmem.ErrMisconfiguration))
	})

	It("should run and report", func() {
		Expect(execute("run", "--cycles", "100", "--seed", "3")).To(Succeed())

		Expect(out.String()).To(ContainSubstring("writes: "))
		Expect(out.String()).To(ContainSubstring("read lifetime: mean "))
	})

	It("should record the trace of a run", func() {
		path := filepath.Join(GinkgoT().TempDir(), "trace")

		Expect(execute("run", "--cycles", "50",
			"--record", "--record-path", path)).To(Succeed())

		Expect(path + ".sqlite3").To(BeAnExistingFile())

		reader, err := datarecording.NewReader(path + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		reader.MapTable(tracing.TraceTable, tracing.TaskTableEntry{})
		_, count, err := reader.Query(context.Background(), tracing.TraceTable,
			datarecording.QueryParams{
				Where: "Kind = ?",
				Args:  []any{tracing.KindWrite},
			})
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(BeNumerically(">", 0))

		reader.MapTable(analysis.PerfTable, analysis.PerfAnalyzerEntry{})
		_, count, err = reader.Query(context.Background(), analysis.PerfTable,
			datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(BeNumerically(">", 0))
	})
})
