package hierarchy

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/mem"
	"github.com/sarchlab/cachesim/sim"
)

func readAt(id string, addr uint64, t sim.Cycle) *mem.Request {
	return mem.ReadReqBuilder{}.
		WithID(id).
		WithAddress(addr).
		WithReadyTime(t).
		Build()
}

func writeAt(id string, addr uint64, data int, t sim.Cycle) *mem.Request {
	return mem.WriteReqBuilder{}.
		WithID(id).
		WithAddress(addr).
		WithData(data).
		WithReadyTime(t).
		Build()
}

func buildParallel(cfg Config) *ParallelMemoryHierarchy {
	h, err := MakeBuilder().
		WithConfig(cfg).
		WithIDGenerator(sim.NewPrefixedIDGenerator("wb-")).
		BuildParallel("H")
	Expect(err).NotTo(HaveOccurred())

	return h
}

// drive runs the hierarchy the way Runner does and calls check after every
// cycle.
func drive(
	h *ParallelMemoryHierarchy,
	reqs []*mem.Request,
	check func(),
) sim.Cycle {
	var current *mem.Request

	next := 0

	for now := sim.Cycle(0); now < 10000; now++ {
		if current == nil && next < len(reqs) && reqs[next].ReadyTime <= now {
			current = reqs[next]
			next++
		}

		status := h.Cycle(current, now)

		if check != nil {
			check()
		}

		if status == Consumed {
			current = nil
		}

		if status == Complete && current == nil && next == len(reqs) {
			return now + 1
		}
	}

	Fail("the hierarchy did not become idle")

	return 0
}

func validLinesWithTag(c *cache.Cache, addr uint64) int {
	loc := c.Locate(addr)
	n := 0

	for _, l := range c.Set(loc.Index) {
		if l.IsValid && l.Tag == loc.Tag {
			n++
		}
	}

	return n
}

var _ = Describe("ParallelMemoryHierarchy", func() {
	var (
		cfg Config
	)

	BeforeEach(func() {
		cfg = Config{
			BlockSize:     2,
			Policy:        cache.WriteBackAllocate,
			MemoryLatency: 100,
			Levels: []LevelConfig{
				{Size: 4, Ways: 2, Latency: 1},
			},
		}
	})

	Context("with hooks", func() {
		var (
			mockCtrl *gomock.Controller
			hook     *MockHook
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			hook = NewMockHook(mockCtrl)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should answer a read from memory", func() {
			h := buildParallel(cfg)
			h.AcceptHook(hook)

			req := readAt("r1", 0, 0)

			var positions []*sim.HookPos

			hook.EXPECT().Func(gomock.Any()).
				Do(func(ctx sim.HookCtx) {
					positions = append(positions, ctx.Pos)

					if ctx.Pos == HookPosReqComplete {
						Expect(ctx.Item).To(BeIdenticalTo(req))
						Expect(ctx.Detail).To(Equal(AccessDetail{
							Level:   1,
							Latency: 102,
						}))
					}
				}).
				Times(3)

			elapsed := drive(h, []*mem.Request{req}, nil)

			Expect(elapsed).To(Equal(sim.Cycle(103)))
			Expect(positions).To(Equal([]*sim.HookPos{
				HookPosReqStart, HookPosMemRead, HookPosReqComplete,
			}))

			l, hit := h.Levels()[0].Read(0)
			Expect(hit).To(BeTrue())
			Expect(l.Block).To(Equal([]int{1, 0}))
			Expect(h.Levels()[0].NumCurrMisses()).To(Equal(0))
		})
	})

	It("should miss on every read of competing blocks", func() {
		h := buildParallel(cfg)

		drive(h, []*mem.Request{
			readAt("r1", 0, 0),
			readAt("r2", 4, 1),
			readAt("r3", 8, 2),
			readAt("r4", 12, 3),
		}, nil)

		l1 := h.Levels()[0]
		Expect(l1.Accesses()).To(Equal(uint64(4)))
		Expect(l1.MissRate()).To(Equal(1.0))
		Expect(h.Memory().Reads()).To(Equal(uint64(4)))
	})

	It("should fill the front level from a deeper hit", func() {
		cfg.Levels = []LevelConfig{
			{Size: 4, Ways: 2, Latency: 1},
			{Size: 8, Ways: 2, Latency: 2},
		}
		h := buildParallel(cfg)
		h.Levels()[1].Install(6, []int{7, 8}, false)

		elapsed := drive(h, []*mem.Request{readAt("r1", 6, 0)}, nil)

		Expect(elapsed).To(Equal(sim.Cycle(5)))
		Expect(h.Memory().Reads()).To(Equal(uint64(0)))
		Expect(validLinesWithTag(h.Levels()[0], 6)).To(Equal(1))
		Expect(h.Levels()[0].NumCurrMisses()).To(Equal(0))

		l, hit := h.Levels()[0].Read(7)
		Expect(hit).To(BeTrue())
		Expect(l.Block).To(Equal([]int{7, 8}))
	})

	It("should track the same miss at every level it passed", func() {
		cfg.Levels = []LevelConfig{
			{Size: 4, Ways: 2, Latency: 1},
			{Size: 8, Ways: 2, Latency: 2},
		}
		h := buildParallel(cfg)
		l1, l2 := h.Levels()[0], h.Levels()[1]

		Expect(h.Cycle(readAt("r1", 0, 0), 0)).To(Equal(Consumed))
		Expect(l1.ContainsMiss("r1")).To(BeTrue())
		Expect(l2.ContainsMiss("r1")).To(BeFalse())

		h.Cycle(nil, 1)
		Expect(l1.ContainsMiss("r1")).To(BeTrue())
		Expect(l2.ContainsMiss("r1")).To(BeTrue())

		for now := sim.Cycle(2); now < 200; now++ {
			h.Cycle(nil, now)
		}

		Expect(l1.NumCurrMisses()).To(Equal(0))
		Expect(l2.NumCurrMisses()).To(Equal(0))
	})

	It("should never exceed the miss limit", func() {
		cfg.MaxOutstandingMisses = 1
		cfg.MemoryLatency = 10
		h := buildParallel(cfg)

		notified := 0
		h.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			if ctx.Pos == HookPosMaxOutstanding {
				notified++
			}
		}))

		drive(h, []*mem.Request{
			readAt("r1", 0, 0),
			readAt("r2", 2, 0),
			readAt("r3", 4, 0),
		}, func() {
			Expect(h.Levels()[0].NumCurrMisses()).To(BeNumerically("<=", 1))
		})

		Expect(notified).To(Equal(3))
		Expect(h.Memory().Reads()).To(Equal(uint64(3)))
	})

	It("should serve a ready fill while an earlier fill is still pending", func() {
		cfg.MaxOutstandingMisses = 2
		cfg.Levels = []LevelConfig{
			{Size: 4, Ways: 2, Latency: 1},
			{Size: 8, Ways: 2, Latency: 2},
		}
		h := buildParallel(cfg)
		h.Levels()[1].Install(8, []int{7, 8}, false)
		l1 := h.Levels()[0]

		Expect(h.Cycle(readAt("r1", 0, 0), 0)).To(Equal(Consumed))
		Expect(h.Cycle(readAt("r2", 8, 1), 1)).To(Equal(Consumed))
		Expect(l1.MaxOutstandingReached()).To(BeTrue())

		for now := sim.Cycle(2); now <= 5; now++ {
			h.Cycle(nil, now)
		}

		Expect(validLinesWithTag(l1, 8)).To(Equal(1))
		Expect(validLinesWithTag(l1, 0)).To(Equal(0))
		Expect(l1.NumCurrMisses()).To(Equal(1))
		Expect(l1.ContainsMiss("r1")).To(BeTrue())
	})

	It("should hold a new request while the first level is at its limit", func() {
		cfg.MaxOutstandingMisses = 1
		cfg.MemoryLatency = 10
		h := buildParallel(cfg)

		Expect(h.Cycle(readAt("r1", 0, 0), 0)).To(Equal(Consumed))

		r2 := readAt("r2", 2, 0)
		for now := sim.Cycle(1); now < 11; now++ {
			Expect(h.Cycle(r2, now)).To(Equal(Draining))
		}

		Expect(h.Cycle(r2, 11)).To(Equal(Draining))
		Expect(h.Cycle(r2, 12)).To(Equal(Consumed))
	})

	It("should write dirty victims of the last level to memory", func() {
		cfg.Levels = []LevelConfig{{Size: 2, Ways: 2, Latency: 1}}
		h := buildParallel(cfg)

		var written []interface{}
		h.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			if ctx.Pos == HookPosMemWrite {
				written = append(written, ctx.Item)
			}
		}))

		drive(h, []*mem.Request{
			writeAt("w1", 0, 100, 0),
			writeAt("w2", 2, 99, 1),
			writeAt("w3", 4, 98, 2),
		}, nil)

		Expect(written).To(Equal([]interface{}{uint64(0)}))
		Expect(h.Memory().Writes()).To(Equal(uint64(1)))
	})

	It("should cascade a dirty victim evicted again at a deeper level instead of raising an invariant violation", func() {
		cfg.Levels = []LevelConfig{
			{Size: 2, Ways: 2, Latency: 1},
			{Size: 2, Ways: 2, Latency: 1},
		}
		h := buildParallel(cfg)

		drive(h, []*mem.Request{
			writeAt("w1", 0, 100, 0),
			writeAt("w2", 2, 99, 1),
			writeAt("w3", 4, 98, 2),
		}, nil)

		Expect(h.Memory().Writes()).To(Equal(uint64(2)))

		l2 := h.Levels()[1]
		Expect(validLinesWithTag(l2, 0)).To(Equal(1))
		Expect(validLinesWithTag(l2, 4)).To(Equal(1))

		for _, l := range l2.Lines() {
			Expect(l.IsDirty).To(BeTrue())
		}
	})

	It("should not keep two lines for the same block", func() {
		cfg.Levels = []LevelConfig{
			{Size: 4, Ways: 2, Latency: 1},
			{Size: 4, Ways: 2, Latency: 1},
		}
		h := buildParallel(cfg)

		drive(h, []*mem.Request{
			writeAt("w1", 0, 100, 0),
			writeAt("w2", 4, 99, 1),
			writeAt("w3", 8, 98, 2),
			readAt("r1", 0, 3),
		}, nil)

		for _, c := range h.Levels() {
			Expect(validLinesWithTag(c, 0)).To(BeNumerically("<=", 1))
		}
	})

	It("should write through to memory", func() {
		cfg.Policy = cache.WriteThroughNoAllocate
		cfg.Levels = []LevelConfig{
			{Size: 4, Ways: 2, Latency: 1},
			{Size: 8, Ways: 2, Latency: 2},
		}
		h := buildParallel(cfg)

		drive(h, []*mem.Request{writeAt("w1", 0, 100, 0)}, nil)

		Expect(h.Memory().Writes()).To(Equal(uint64(1)))

		for _, c := range h.Levels() {
			Expect(c.Misses()).To(Equal(uint64(1)))

			for _, l := range c.Lines() {
				Expect(l.IsValid).To(BeFalse())
			}
		}
	})

	It("should not admit a request before it arrives", func() {
		h := buildParallel(cfg)

		Expect(h.Cycle(readAt("r1", 0, 5), 0)).To(Equal(Draining))
		Expect(h.Levels()[0].Accesses()).To(Equal(uint64(0)))
	})

	It("should report completion when idle", func() {
		h := buildParallel(cfg)

		Expect(h.Cycle(nil, 0)).To(Equal(Complete))
		Expect(h.Now()).To(Equal(sim.Cycle(0)))
	})

	It("should panic when a write reaches memory as a read", func() {
		h := buildParallel(cfg)

		Expect(func() {
			h.resolveFromMemory(writeAt("w1", 0, 1, 0), 0)
		}).To(PanicWith(BeAssignableToTypeOf(cache.InvariantViolation{})))
	})
})
