package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/simmem/mem/simmem"
	"github.com/sarchlab/simmem/sim/hooking"
	"github.com/sarchlab/simmem/sim/timing"
)

type fakeEngine struct {
	paused    bool
	pauses    int
	continues int
	now       timing.VTimeInCycle
}

func (e *fakeEngine) Pause() {
	e.paused = true
	e.pauses++
}

func (e *fakeEngine) Continue() {
	e.paused = false
	e.continues++
}

func (e *fakeEngine) IsPaused() bool {
	return e.paused
}

func (e *fakeEngine) CurrentTime() timing.VTimeInCycle {
	return e.now
}

var _ = Describe("Monitor", func() {
	var (
		m       *Monitor
		engine  *fakeEngine
		comp    *simmem.Comp
		handler http.Handler
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		return rec
	}

	BeforeEach(func() {
		var err error

		comp, err = simmem.MakeBuilder().WithForwardBufSize(2).Build("SimMem")
		Expect(err).NotTo(HaveOccurred())

		engine = &fakeEngine{now: 42}
		m = NewMonitor()
		m.RegisterEngine(engine)
		m.RegisterComponent(comp)
		handler = m.Handler()
	})

	It("should fall back to a random port below 1000", func() {
		Expect(m.WithPortNumber(80).portNumber).To(Equal(0))
		Expect(m.WithPortNumber(8080).portNumber).To(Equal(8080))
	})

	It("should list components", func() {
		rec := get("/api/list_components")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`["SimMem"]`))
	})

	It("should report the current cycle", func() {
		rec := get("/api/now")

		Expect(rec.Body.String()).To(MatchJSON(`{"now":42,"paused":false}`))
	})

	It("should pause and continue the engine", func() {
		get("/api/pause")
		Expect(engine.IsPaused()).To(BeTrue())

		get("/api/continue")
		Expect(engine.IsPaused()).To(BeFalse())
	})

	It("should report the status of a component with the engine paused", func() {
		Expect(comp.SendReadAddr(simmem.ReadAddr{ID: 0, BurstLen: 1})).To(BeTrue())
		comp.Tick()

		rec := get("/api/status/SimMem")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var status simmem.Status
		Expect(json.Unmarshal(rec.Body.Bytes(), &status)).To(Succeed())
		Expect(status.Name).To(Equal("SimMem"))
		Expect(status.Cycle).To(Equal(uint64(1)))
		Expect(status.Idle).To(BeFalse())
		Expect(engine.pauses).To(Equal(1))
		Expect(engine.continues).To(Equal(1))
		Expect(engine.IsPaused()).To(BeFalse())
	})

	It("should leave a paused engine paused", func() {
		engine.Pause()

		get("/api/status/SimMem")

		Expect(engine.IsPaused()).To(BeTrue())
		Expect(engine.continues).To(Equal(0))
	})

	It("should answer 404 for unknown components", func() {
		Expect(get("/api/status/Nobody").Code).To(Equal(http.StatusNotFound))
		Expect(get("/api/tick/Nobody").Code).To(Equal(http.StatusNotFound))
	})

	It("should refuse to tick a component without a ticker", func() {
		Expect(get("/api/tick/SimMem").Code).
			To(Equal(http.StatusMethodNotAllowed))
	})

	It("should tick a ticking component", func() {
		serial := timing.NewSerialEngine()
		tc := simmem.NewTickingComp(serial, comp)

		m = NewMonitor()
		m.RegisterEngine(serial)
		m.RegisterComponent(tc)
		handler = m.Handler()

		Expect(get("/api/tick/SimMem").Code).To(Equal(http.StatusOK))
		Expect(serial.Run()).To(Succeed())
		Expect(comp.CurrentCycle()).To(Equal(timing.VTimeInCycle(1)))
	})

	It("should reject bad field requests", func() {
		rec := get("/api/field/" + url.PathEscape("{not json"))

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	Context("when listing buffers", func() {
		BeforeEach(func() {
			Expect(comp.SendReadAddr(simmem.ReadAddr{ID: 0, BurstLen: 1})).
				To(BeTrue())
			comp.Tick()
		})

		It("should put the fullest structure first", func() {
			rec := get("/api/hangdetector/buffers?limit=2")

			var rsp []bufferRsp
			Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
			Expect(rsp).To(HaveLen(2))
			Expect(rsp[0]).To(Equal(
				bufferRsp{Buffer: "SimMem.FwdReadAddr", Level: 1, Cap: 2}))
		})

		It("should sort by level", func() {
			rec := get("/api/hangdetector/buffers?sort=level")

			var rsp []bufferRsp
			Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
			Expect(rsp).To(HaveLen(len(comp.Levels())))

			for i := 1; i < len(rsp); i++ {
				Expect(rsp[i-1].Level).To(BeNumerically(">=", rsp[i].Level))
			}
		})

		It("should skip past the offset", func() {
			rec := get("/api/hangdetector/buffers?offset=100")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`[]`))
		})

		It("should reject an unknown sort method", func() {
			rec := get("/api/hangdetector/buffers?sort=name")

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should reject a malformed limit", func() {
			rec := get("/api/hangdetector/buffers?limit=many")

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	It("should count transactions on a progress bar", func() {
		bar := m.CreateProgressBar("Transactions", 0)
		hook := NewProgressHook(bar)
		txn := &simmem.Transaction{Kind: simmem.KindRead, BurstLen: 2}

		hook.Func(hooking.HookCtx{Pos: simmem.HookPosAddrAccepted, Item: txn})
		hook.Func(hooking.HookCtx{
			Pos:    simmem.HookPosRspReleased,
			Item:   txn,
			Detail: simmem.Release{Beat: 0},
		})

		rec := get("/api/progress")
		var bars []progressBarRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("Transactions"))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))
		Expect(bars[0].Finished).To(Equal(uint64(0)))

		hook.Func(hooking.HookCtx{
			Pos:    simmem.HookPosRspReleased,
			Item:   txn,
			Detail: simmem.Release{Beat: 1, Last: true},
		})

		finished, inProgress := bar.Snapshot()
		Expect(finished).To(Equal(uint64(1)))
		Expect(inProgress).To(Equal(uint64(0)))

		m.CompleteProgressBar(bar)
		Expect(get("/api/progress").Body.String()).To(MatchJSON(`[]`))
	})

	It("should serve the index page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("simmem monitor"))
	})
})
