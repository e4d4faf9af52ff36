package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("DBTracer", func() {
	var (
		mockCtrl *gomock.Controller
		backend  *MockDataRecorder
		tracer   *DBTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		backend = NewMockDataRecorder(mockCtrl)

		backend.EXPECT().CreateTable(TraceTable, TaskTableEntry{})
		tracer = NewDBTracer(backend)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should write a task when it ends", func() {
		backend.EXPECT().InsertData(TraceTable, TaskTableEntry{
			ID:        "1",
			ParentID:  "",
			Kind:      KindWrite,
			What:      "id0@0x0",
			Location:  "SimMem",
			StartTime: 3,
			EndTime:   17,
		})

		tracer.StartTask(Task{
			ID: "1", Kind: KindWrite, What: "id0@0x0", Where: "SimMem",
			StartTime: 3,
		})
		tracer.EndTask(Task{ID: "1", EndTime: 17})
	})

	It("should ignore tasks it did not see start", func() {
		tracer.EndTask(Task{ID: "1", EndTime: 17})
	})

	It("should write a task only once", func() {
		backend.EXPECT().InsertData(TraceTable, gomock.Any()).Times(1)

		tracer.StartTask(Task{ID: "1", Kind: KindRead, Where: "SimMem"})
		tracer.EndTask(Task{ID: "1", EndTime: 5})
		tracer.EndTask(Task{ID: "1", EndTime: 6})
	})

	It("should reject incomplete tasks", func() {
		Expect(func() { tracer.StartTask(Task{Kind: KindRead, Where: "A"}) }).
			To(Panic())
		Expect(func() { tracer.StartTask(Task{ID: "1", Where: "A"}) }).
			To(Panic())
		Expect(func() { tracer.StartTask(Task{ID: "1", Kind: KindRead}) }).
			To(Panic())
	})

	It("should flush on terminate", func() {
		backend.EXPECT().Flush()

		tracer.StartTask(Task{ID: "1", Kind: KindRead, Where: "SimMem"})
		tracer.Terminate()
		tracer.EndTask(Task{ID: "1", EndTime: 5})
	})
})

var _ = Describe("AverageTimeTracer", func() {
	It("should average the tasks that pass the filter", func() {
		t := NewAverageTimeTracer(func(task Task) bool {
			return task.Kind == KindRead
		})

		t.StartTask(Task{ID: "1", Kind: KindRead, StartTime: 0})
		t.StartTask(Task{ID: "2", Kind: KindRead, StartTime: 2})
		t.StartTask(Task{ID: "3", Kind: KindWrite, StartTime: 0})
		t.EndTask(Task{ID: "1", EndTime: 10})
		t.EndTask(Task{ID: "2", EndTime: 6})
		t.EndTask(Task{ID: "3", EndTime: 100})

		Expect(t.TotalCount()).To(Equal(uint64(2)))
		Expect(t.AverageTime()).To(Equal(7.0))
		Expect(t.MaxTime()).To(BeEquivalentTo(10))
	})
})
