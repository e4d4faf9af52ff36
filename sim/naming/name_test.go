package naming

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Name", func() {
	It("should accept hierarchical names", func() {
		Expect(ValidateName("SimMem")).To(Succeed())
		Expect(ValidateName("SimMem.WriteRspBank")).To(Succeed())
		Expect(ValidateName("GPU[1].SimMem[2].Bank")).To(Succeed())
	})

	It("should reject malformed names", func() {
		Expect(ValidateName("SimMem.")).NotTo(Succeed())
		Expect(ValidateName("SimMem..Bank")).NotTo(Succeed())
		Expect(ValidateName("simMem")).NotTo(Succeed())
		Expect(ValidateName("Sim_Mem")).NotTo(Succeed())
		Expect(ValidateName("Bank[a]")).NotTo(Succeed())
		Expect(ValidateName("Bank[1")).NotTo(Succeed())
	})

	It("should panic on invalid names", func() {
		Expect(func() { NameMustBeValid("sim") }).To(Panic())
		Expect(func() { NameMustBeValid("Sim") }).NotTo(Panic())
	})

	It("should build names", func() {
		Expect(BuildName("", "SimMem")).To(Equal("SimMem"))
		Expect(BuildName("Top", "SimMem")).To(Equal("Top.SimMem"))
		Expect(BuildNameWithIndex("Top", "Bank", 3)).To(Equal("Top.Bank[3]"))
	})
})
