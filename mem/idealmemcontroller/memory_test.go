package idealmemcontroller

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Memory", func() {
	var (
		m *Memory
	)

	BeforeEach(func() {
		m = MakeBuilder().WithLatency(50).Build("Memory")
	})

	It("should use the configured latency", func() {
		Expect(m.Latency()).To(Equal(50))
		Expect(MakeBuilder().Build("Memory").Latency()).To(Equal(100))
	})

	It("should place the synthetic value at the word offset", func() {
		Expect(m.Read(5, 4)).To(Equal([]int{0, 1, 0, 0}))
		Expect(m.Read(8, 4)).To(Equal([]int{2, 0, 0, 0}))
		Expect(m.Reads()).To(Equal(uint64(2)))
	})

	It("should count writes", func() {
		m.Write(0, []int{1, 2})
		m.Read(0, 2)

		Expect(m.Writes()).To(Equal(uint64(1)))
		Expect(m.Accesses()).To(Equal(uint64(2)))
	})

	It("should restart the synthetic values on reset", func() {
		m.Read(0, 2)
		m.Reset()

		Expect(m.Read(1, 2)).To(Equal([]int{0, 1}))
		Expect(m.Reads()).To(Equal(uint64(1)))
	})
})
