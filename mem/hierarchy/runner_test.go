package hierarchy

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/mem/mem"
	"github.com/sarchlab/cachesim/sim"
)

var _ = Describe("Runner", func() {
	var (
		h      *ParallelMemoryHierarchy
		runner *Runner
	)

	BeforeEach(func() {
		cfg := DefaultConfig()
		h = buildParallel(cfg)
		runner = NewRunner(h)
	})

	It("should finish an empty run after one cycle", func() {
		elapsed, err := runner.Run(context.Background(), nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(elapsed).To(Equal(sim.Cycle(1)))
	})

	It("should run every request", func() {
		reqs := []*mem.Request{
			readAt("r1", 0, 0),
			writeAt("w1", 4, 99, 0),
			readAt("r2", 0, 3),
			readAt("r3", 64, 40),
		}

		completed := 0
		h.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			if ctx.Pos == HookPosReqComplete {
				completed++
			}
		}))

		elapsed, err := runner.Run(context.Background(), reqs)

		Expect(err).NotTo(HaveOccurred())
		Expect(elapsed).To(Equal(runner.Now()))
		Expect(elapsed).To(BeNumerically(">", sim.Cycle(40)))
		Expect(completed).To(Equal(4))

		admitted, total := runner.Progress()
		Expect(admitted).To(Equal(4))
		Expect(total).To(Equal(4))

		stats := runner.Levels()
		Expect(stats).To(HaveLen(2))
		Expect(stats[0].Name).To(Equal("H.L1"))
		Expect(stats[0].Accesses).To(BeNumerically(">=", uint64(4)))
		Expect(stats[0].Outstanding).To(Equal(0))
	})

	It("should give a snapshot of a level", func() {
		_, err := runner.Run(context.Background(),
			[]*mem.Request{readAt("r1", 0, 0)})
		Expect(err).NotTo(HaveOccurred())

		snapshot, found := runner.Level("H.L2")

		Expect(found).To(BeTrue())
		Expect(snapshot.Lines).To(HaveLen(16))
		Expect(snapshot.Stats.Misses).To(Equal(uint64(1)))

		_, found = runner.Level("H.L3")
		Expect(found).To(BeFalse())
	})

	It("should stop at the cycle limit", func() {
		runner.MaxCycles = 10

		elapsed, err := runner.Run(context.Background(),
			[]*mem.Request{readAt("r1", 0, 0)})

		Expect(err).To(HaveOccurred())
		Expect(elapsed).To(Equal(sim.Cycle(10)))
	})

	It("should stop when the context is canceled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := runner.Run(ctx, []*mem.Request{readAt("r1", 0, 0)})

		Expect(err).To(MatchError(context.Canceled))
	})
})
