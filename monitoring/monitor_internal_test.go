package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/mem/hierarchy"
	"github.com/sarchlab/cachesim/mem/mem"
	"github.com/sarchlab/cachesim/sim"
)

type sampleTarget struct {
	now    sim.Cycle
	levels []hierarchy.LevelStats
}

func (t *sampleTarget) Now() sim.Cycle {
	return t.now
}

func (t *sampleTarget) Levels() []hierarchy.LevelStats {
	return t.levels
}

func (t *sampleTarget) Level(name string) (hierarchy.LevelSnapshot, bool) {
	for _, l := range t.levels {
		if l.Name == name {
			return hierarchy.LevelSnapshot{
				Stats:       l,
				Outstanding: []string{"r1"},
			}, true
		}
	}

	return hierarchy.LevelSnapshot{}, false
}

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		target *sampleTarget
	)

	get := func(url string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		m.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

		return rec
	}

	BeforeEach(func() {
		target = &sampleTarget{
			now: 42,
			levels: []hierarchy.LevelStats{
				{Name: "H.L1", Accesses: 4, Misses: 1, HitRate: 0.75, MissRate: 0.25},
				{Name: "H.L2", Accesses: 1, Misses: 1, MissRate: 1},
			},
		}

		m = NewMonitor()
		m.RegisterTarget(target)
	})

	It("should use a random port for reserved port numbers", func() {
		m.WithPortNumber(80)
		Expect(m.portNumber).To(Equal(0))

		m.WithPortNumber(32000)
		Expect(m.portNumber).To(Equal(32000))
	})

	It("should report the current cycle", func() {
		rec := get("/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal(`{"now":42}`))
	})

	It("should list levels", func() {
		rec := get("/api/levels")

		var levels []hierarchy.LevelStats
		Expect(json.Unmarshal(rec.Body.Bytes(), &levels)).To(Succeed())
		Expect(levels).To(Equal(target.levels))
	})

	It("should serialize a level", func() {
		rec := get("/api/level/H.L1")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should respond 404 for an unknown level", func() {
		rec := get("/api/level/H.L3")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should report resource usage", func() {
		rec := get("/api/resource")

		var rsp resourceRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve the web page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should refuse to open a browser before the server starts", func() {
		Expect(m.OpenInBrowser()).NotTo(Succeed())
	})

	Context("progress bars", func() {
		It("should list and remove bars", func() {
			bar := m.CreateProgressBar("requests", 3)
			bar.IncrementInProgress(2)
			bar.MoveInProgressToFinished(1)

			var bars []map[string]interface{}
			Expect(json.Unmarshal(get("/api/progress").Body.Bytes(), &bars)).
				To(Succeed())
			Expect(bars).To(HaveLen(1))
			Expect(bars[0]["name"]).To(Equal("requests"))
			Expect(bars[0]["finished"]).To(BeEquivalentTo(1))
			Expect(bars[0]["in_progress"]).To(BeEquivalentTo(1))

			m.CompleteProgressBar(bar)
			Expect(m.progressBars).To(BeEmpty())
		})

		It("should follow requests through a hook", func() {
			bar := m.CreateProgressBar("requests", 2)
			hook := ProgressHook(bar)
			req := mem.ReadReqBuilder{}.WithID("r1").Build()

			hook.Func(sim.HookCtx{Pos: hierarchy.HookPosReqStart, Item: req})
			Expect(bar.InProgress).To(Equal(uint64(1)))

			hook.Func(sim.HookCtx{Pos: hierarchy.HookPosMemRead, Item: uint64(0)})
			hook.Func(sim.HookCtx{Pos: hierarchy.HookPosReqComplete, Item: req})
			Expect(bar.InProgress).To(Equal(uint64(0)))
			Expect(bar.Finished).To(Equal(uint64(1)))
		})
	})
})
