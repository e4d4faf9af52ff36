package realmem

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/simmem/mem/simmem"
)

var _ = Describe("Controller", func() {
	var (
		comp *simmem.Comp
		mem  *Controller
	)

	run := func(n int) {
		for i := 0; i < n; i++ {
			mem.Drive(comp)
			comp.Tick()
		}
	}

	BeforeEach(func() {
		var err error

		comp, err = simmem.MakeBuilder().Build("SimMem")
		Expect(err).NotTo(HaveOccurred())

		mem = New("RealMem", comp.Spec().NumIDs)
	})

	It("should answer a read one beat per cycle", func() {
		Expect(comp.SendReadAddr(simmem.ReadAddr{
			ID: 2, Addr: 0x100, BurstLen: 3, BurstSize: 2,
		})).To(BeTrue())

		run(2)
		Expect(mem.Stats().ReadAddrs).To(Equal(1))
		Expect(mem.Stats().ReadBeats).To(Equal(0))

		run(1)
		Expect(mem.Stats().ReadBeats).To(Equal(1))

		run(2)
		Expect(mem.Stats().ReadBeats).To(Equal(3))
		Expect(mem.Pending()).To(BeFalse())

		var data []uint64
		for i := 0; i < 40; i++ {
			if d, ok := comp.TakeReadData(); ok {
				data = append(data, d.Data)
			}

			run(1)
		}

		Expect(data).To(Equal([]uint64{0x100, 0x101, 0x102}))
	})

	It("should acknowledge a write once all of its beats arrived", func() {
		Expect(comp.SendWriteAddr(simmem.WriteAddr{
			ID: 1, Addr: 0x20, BurstLen: 2,
		})).To(BeTrue())

		run(3)
		Expect(mem.Stats().WriteAddrs).To(Equal(1))
		Expect(mem.Stats().WriteRsps).To(Equal(0))
		Expect(mem.Pending()).To(BeTrue())

		Expect(comp.SendWriteData(simmem.WriteData{Data: 1})).To(BeTrue())
		run(3)
		Expect(mem.Stats().WriteBeats).To(Equal(1))
		Expect(mem.Stats().WriteRsps).To(Equal(0))

		Expect(comp.SendWriteData(simmem.WriteData{Data: 2, Last: true})).
			To(BeTrue())
		run(3)
		Expect(mem.Stats().WriteBeats).To(Equal(2))
		Expect(mem.Stats().WriteRsps).To(Equal(1))
		Expect(mem.Pending()).To(BeFalse())
	})

	It("should match early beats with the next address", func() {
		Expect(comp.SendWriteData(simmem.WriteData{})).To(BeTrue())
		run(1)
		Expect(comp.SendWriteData(simmem.WriteData{Last: true})).To(BeTrue())
		run(3)
		Expect(mem.Stats().WriteBeats).To(Equal(2))
		Expect(mem.Stats().WriteRsps).To(Equal(0))

		Expect(comp.SendWriteAddr(simmem.WriteAddr{
			ID: 0, Addr: 0x40, BurstLen: 2,
		})).To(BeTrue())

		got := false
		for i := 0; i < 40 && !got; i++ {
			run(1)
			_, got = comp.TakeWriteRsp()
		}

		Expect(got).To(BeTrue())
		Expect(mem.Stats().WriteRsps).To(Equal(1))
	})
})
