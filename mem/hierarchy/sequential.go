package hierarchy

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/idealmemcontroller"
	"github.com/sarchlab/cachesim/mem/mem"
	"github.com/sarchlab/cachesim/sim"
)

// MemoryHierarchy serves each access to completion before the next one starts.
// Latency is accounted per level rather than simulated cycle by cycle.
type MemoryHierarchy struct {
	sim.HookableBase

	name      string
	policy    cache.WritePolicy
	blockSize int
	levels    []*cache.Cache
	memory    *idealmemcontroller.Memory

	memLatency      uint64
	reportedLatency uint64
}

// Name returns the name of the hierarchy.
func (h *MemoryHierarchy) Name() string {
	return h.name
}

// Levels returns the caches from the closest to the farthest.
func (h *MemoryHierarchy) Levels() []*cache.Cache {
	return h.levels
}

// Memory returns the backing memory.
func (h *MemoryHierarchy) Memory() *idealmemcontroller.Memory {
	return h.memory
}

// Read returns the block holding addr and the index of the first level that
// had it. The index equals the number of levels if the block came from
// memory. Every level in front of the hit level receives a clean copy.
func (h *MemoryHierarchy) Read(addr uint64) (block []int, hitLevel int) {
	for hitLevel = 0; hitLevel < len(h.levels); hitLevel++ {
		if line, hit := h.levels[hitLevel].Read(addr); hit {
			block = line.Block
			break
		}
	}

	if hitLevel == len(h.levels) {
		block = h.memory.Read(addr, h.blockSize)
		h.chargeMemoryAccess()
		h.invokeHook(HookPosMemRead, addr)
	}

	for i := 0; i < hitLevel; i++ {
		victim, evicted := h.levels[i].Install(addr, block, false)
		if evicted {
			h.writeBackVictim(i, victim)
		}
	}

	return block, hitLevel
}

// Write stores one word. Under write-back, the write stops at the first level
// if it hits there and otherwise allocates in every level. Under
// write-through, every level that holds the block is updated and the word is
// written to memory.
func (h *MemoryHierarchy) Write(addr uint64, data int) {
	if h.policy == cache.WriteThroughNoAllocate {
		for _, c := range h.levels {
			c.WriteThrough(addr, data)
		}

		h.writeMemory(addr, []int{data})

		return
	}

	for i, c := range h.levels {
		victim, allocated := c.WriteBack(addr, data)
		if !allocated {
			if i == 0 {
				return
			}

			continue
		}

		h.writeBackVictim(i, victim)
	}
}

// writeBackVictim pushes a dirty victim one level deeper. The deeper level may
// in turn replace a dirty line, which keeps moving until the memory takes it.
func (h *MemoryHierarchy) writeBackVictim(level int, victim cache.Line) {
	for victim.IsValid && victim.IsDirty {
		addr := h.levels[level].LineAddress(victim)

		if level == len(h.levels)-1 {
			h.writeMemory(addr, victim.Block)
			return
		}

		level++

		var evicted bool

		victim, evicted = h.levels[level].Install(addr, victim.Block, true)
		if !evicted {
			return
		}
	}
}

func (h *MemoryHierarchy) writeMemory(addr uint64, block []int) {
	h.memory.Write(addr, block)
	h.chargeMemoryAccess()

	logrus.WithField("address", addr).Debug("memory write")

	h.invokeHook(HookPosMemWrite, addr)
}

func (h *MemoryHierarchy) chargeMemoryAccess() {
	h.memLatency += uint64(h.memory.Latency() + h.levels[len(h.levels)-1].Latency())
}

// Now returns the latency accumulated so far, which is the time seen by the
// next access.
func (h *MemoryHierarchy) Now() sim.Cycle {
	return sim.Cycle(h.Latency())
}

// Latency returns the cycles spent in all levels and in memory so far.
func (h *MemoryHierarchy) Latency() uint64 {
	latency := h.memLatency
	for _, c := range h.levels {
		latency += c.TotalLatency()
	}

	return latency
}

// CurrentLatency returns the cycles spent since the previous call.
func (h *MemoryHierarchy) CurrentLatency() uint64 {
	latency := h.Latency()
	delta := latency - h.reportedLatency
	h.reportedLatency = latency

	return delta
}

// Replay serves the requests in order. The latency of each access is reported
// through HookPosReqComplete.
func (h *MemoryHierarchy) Replay(
	ctx context.Context,
	reqs []*mem.Request,
) (uint64, error) {
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return h.Latency(), err
		}

		h.invokeHook(HookPosReqStart, req)

		level := len(h.levels)

		switch req.Kind {
		case mem.ReadReq:
			_, level = h.Read(req.Address)
		case mem.WriteReq:
			h.Write(req.Address, req.Data)
			level = 0
		default:
			return h.Latency(), fmt.Errorf(
				"request %s: cannot replay %s requests", req.ID, req.Kind)
		}

		h.invokeHookWithDetail(HookPosReqComplete, req, AccessDetail{
			Level:   level,
			Latency: sim.Cycle(h.CurrentLatency()),
		})
	}

	return h.Latency(), nil
}

func (h *MemoryHierarchy) invokeHook(pos *sim.HookPos, item interface{}) {
	h.invokeHookWithDetail(pos, item, nil)
}

func (h *MemoryHierarchy) invokeHookWithDetail(
	pos *sim.HookPos,
	item interface{},
	detail interface{},
) {
	if h.NumHooks() == 0 {
		return
	}

	h.InvokeHook(sim.HookCtx{
		Domain: h,
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}

// Reset empties every level and restarts the memory and the latency counters.
func (h *MemoryHierarchy) Reset() {
	for _, c := range h.levels {
		c.Reset()
	}

	h.memory.Reset()
	h.memLatency = 0
	h.reportedLatency = 0
}
