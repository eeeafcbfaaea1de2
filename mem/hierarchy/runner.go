package hierarchy

import (
	"context"
	"fmt"
	"sync"

	"github.com/sarchlab/cachesim/mem/mem"
	"github.com/sarchlab/cachesim/sim"
)

// A Runner drives a ParallelMemoryHierarchy through a list of requests. It
// offers one request at a time in arrival order and keeps offering it until
// the hierarchy admits it. The run ends when every request is admitted and
// the hierarchy is idle.
//
// The state of the hierarchy can be read from other goroutines while the
// runner is running.
type Runner struct {
	hierarchy *ParallelMemoryHierarchy

	// MaxCycles stops the run with an error once reached. Zero means no
	// limit.
	MaxCycles sim.Cycle

	mu       sync.Mutex
	now      sim.Cycle
	admitted int
	total    int
}

// NewRunner creates a runner for a hierarchy.
func NewRunner(h *ParallelMemoryHierarchy) *Runner {
	return &Runner{hierarchy: h}
}

// Hierarchy returns the hierarchy driven by the runner.
func (r *Runner) Hierarchy() *ParallelMemoryHierarchy {
	return r.hierarchy
}

// Run serves the requests in order and returns the number of cycles the whole
// run took. A request is not offered before its ReadyTime, and neither is any
// request that follows it.
func (r *Runner) Run(ctx context.Context, reqs []*mem.Request) (sim.Cycle, error) {
	r.mu.Lock()
	r.total = len(reqs)
	r.admitted = 0
	r.mu.Unlock()

	var (
		current *mem.Request
		now     sim.Cycle
		next    int
	)

	for {
		if err := ctx.Err(); err != nil {
			return now, err
		}

		if r.MaxCycles > 0 && now >= r.MaxCycles {
			return now, fmt.Errorf(
				"hierarchy not idle after %d cycles, %d of %d requests admitted",
				now, next, len(reqs))
		}

		if current == nil && next < len(reqs) && reqs[next].ReadyTime <= now {
			current = reqs[next]
			next++
		}

		status := r.step(current, now)
		now++

		switch status {
		case Consumed:
			current = nil
		case Complete:
			if current == nil && next == len(reqs) {
				return now, nil
			}
		}
	}
}

func (r *Runner) step(req *mem.Request, now sim.Cycle) CycleStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := r.hierarchy.Cycle(req, now)

	r.now = now + 1
	if status == Consumed {
		r.admitted++
	}

	return status
}

// Now returns the number of cycles simulated so far.
func (r *Runner) Now() sim.Cycle {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.now
}

// Progress returns how many requests have entered the hierarchy and how many
// the run has in total.
func (r *Runner) Progress() (admitted, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.admitted, r.total
}

// Levels returns the statistics of every level.
func (r *Runner) Levels() []LevelStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make([]LevelStats, len(r.hierarchy.levels))
	for i, c := range r.hierarchy.levels {
		stats[i] = StatsOf(c)
	}

	return stats
}

// Level returns a copy of the state of the level with the given name.
func (r *Runner) Level(name string) (LevelSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.hierarchy.levels {
		if c.Name() == name {
			return snapshotOf(c), true
		}
	}

	return LevelSnapshot{}, false
}
