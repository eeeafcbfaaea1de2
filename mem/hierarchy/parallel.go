// Package hierarchy connects cache levels and a backing memory into a memory
// hierarchy. ParallelMemoryHierarchy advances all levels one cycle at a time
// and lets misses of different requests overlap. MemoryHierarchy serves each
// access to completion before the next one.
package hierarchy

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/idealmemcontroller"
	"github.com/sarchlab/cachesim/mem/mem"
	"github.com/sarchlab/cachesim/sim"
)

// CycleStatus tells what the hierarchy did in one cycle.
type CycleStatus int

const (
	// Consumed means that the offered request entered the hierarchy.
	Consumed CycleStatus = iota

	// Draining means that some level still has work to do.
	Draining

	// Complete means that every level is idle and nothing was offered.
	Complete
)

func (s CycleStatus) String() string {
	switch s {
	case Consumed:
		return "Consumed"
	case Draining:
		return "Draining"
	case Complete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// ParallelMemoryHierarchy is the cycle-accurate hierarchy. Each level serves
// at most one request per cycle and then stays busy for its latency. Misses
// are tracked per level and a level that reaches its miss limit only serves
// the requests that answer its tracked misses.
type ParallelMemoryHierarchy struct {
	sim.HookableBase

	name      string
	policy    cache.WritePolicy
	blockSize int
	levels    []*cache.Cache
	memory    *idealmemcontroller.Memory
	idGen     sim.IDGenerator

	// levelLatency is the sum of the latencies of all levels.
	levelLatency int

	now sim.Cycle
}

// Name returns the name of the hierarchy.
func (h *ParallelMemoryHierarchy) Name() string {
	return h.name
}

// Levels returns the caches from the closest to the farthest.
func (h *ParallelMemoryHierarchy) Levels() []*cache.Cache {
	return h.levels
}

// Memory returns the backing memory.
func (h *ParallelMemoryHierarchy) Memory() *idealmemcontroller.Memory {
	return h.memory
}

// Now returns the cycle most recently passed to Cycle.
func (h *ParallelMemoryHierarchy) Now() sim.Cycle {
	return h.now
}

// Cycle advances every level by one cycle. newReq, if not nil, is offered to
// the first level. It is admitted only if it has arrived, the first level is
// free, no earlier queued request is due, and the first level is below its
// miss limit. The caller must offer the same request again until Cycle
// returns Consumed.
func (h *ParallelMemoryHierarchy) Cycle(
	newReq *mem.Request,
	now sim.Cycle,
) CycleStatus {
	h.now = now

	consumed := false
	complete := true

	var forwarded []*mem.Request

	for i, c := range h.levels {
		for _, req := range forwarded {
			c.AddOutstandingRequest(req)
		}

		forwarded = nil

		if c.Busy() {
			c.TickTimer()
			complete = false

			continue
		}

		var offered *mem.Request
		if i == 0 {
			offered = newReq
		}

		req, isNew := h.selectRequest(i, offered, now)
		if req == nil {
			if offered != nil || c.NumOutstandingRequests() > 0 {
				complete = false
			}

			continue
		}

		complete = false

		if isNew {
			consumed = true
			req.StartTime = now
			h.invokeHook(HookPosReqStart, req, nil)
		}

		outcome := serve(c, h.policy, req)
		c.RemoveCurrMiss(req.ID)

		forwarded = h.handleOutcome(i, outcome, now)
	}

	for _, req := range forwarded {
		h.resolveFromMemory(req, now)
	}

	switch {
	case consumed:
		return Consumed
	case complete && newReq == nil:
		return Complete
	default:
		return Draining
	}
}

func (h *ParallelMemoryHierarchy) selectRequest(
	level int,
	offered *mem.Request,
	now sim.Cycle,
) (req *mem.Request, isNew bool) {
	c := h.levels[level]

	if c.MaxOutstandingReached() {
		if old := c.SelectOldMissReadyBy(now); old != nil {
			return old, false
		}

		if offered != nil || c.NumOutstandingRequests() > 0 {
			h.notifyMaxOutstanding(level, now)
		}

		return nil, false
	}

	head := c.PeekOutstandingRequest()

	if offered != nil && offered.ReadyTime <= now &&
		(head == nil || head.ReadyTime >= now) {
		return offered, true
	}

	if head != nil && head.ReadyTime <= now {
		return c.PopOutstandingRequest(), false
	}

	return nil, false
}

func (h *ParallelMemoryHierarchy) notifyMaxOutstanding(
	level int,
	now sim.Cycle,
) {
	c := h.levels[level]
	if !c.NotifyMaxOutstanding() {
		return
	}

	logrus.WithFields(logrus.Fields{
		"cache": c.Name(),
		"cycle": now,
	}).Infof("at %d outstanding misses, holding new requests until a miss is filled",
		c.MaxOutstandingMisses())

	h.invokeHook(HookPosMaxOutstanding, c, nil)
}

// handleOutcome applies the consequences of serving a request at a level and
// returns the requests that must go to the next level, or to memory after the
// last level.
func (h *ParallelMemoryHierarchy) handleOutcome(
	level int,
	o Outcome,
	now sim.Cycle,
) []*mem.Request {
	c := h.levels[level]
	ready := now + sim.Cycle(c.Latency())
	req := o.Request

	switch o.Code {
	case ReadHit:
		h.complete(req, level, now-req.StartTime+sim.Cycle(c.Latency()))
		h.fillShallower(level, req, o.Line.Block, ready)

		return nil
	case ReadMiss:
		fwd := req.Clone()
		fwd.ReadyTime = ready
		c.AddCurrMiss(fwd)

		return []*mem.Request{fwd}
	case WriteComplete:
		h.completeWrite(level, req, now)
		return h.propagateWrite(level, req, ready)
	case WriteCompleteWithEviction:
		h.completeWrite(level, req, now)
		fwd := h.propagateWrite(level, req, ready)

		return append(fwd, h.writeBackVictim(level, o.Line, now)...)
	case EvictionOnly:
		return h.writeBackVictim(level, o.Line, now)
	default:
		violate("%s: unknown outcome %s", c.Name(), o.Code)
	}

	return nil
}

func (h *ParallelMemoryHierarchy) isLastLevel(level int) bool {
	return level == len(h.levels)-1
}

// completeWrite reports an external write as done once the first level has
// applied it. Deeper levels receive copies that share the same ID.
func (h *ParallelMemoryHierarchy) completeWrite(
	level int,
	req *mem.Request,
	now sim.Cycle,
) {
	if level != 0 {
		return
	}

	latency := now - req.StartTime + sim.Cycle(h.levels[0].Latency())
	h.complete(req, level, latency)
}

func (h *ParallelMemoryHierarchy) propagateWrite(
	level int,
	req *mem.Request,
	ready sim.Cycle,
) []*mem.Request {
	if !h.isLastLevel(level) {
		fwd := req.Clone()
		fwd.ReadyTime = ready

		return []*mem.Request{fwd}
	}

	if h.policy == cache.WriteThroughNoAllocate {
		h.writeMemory(req.Address, []int{req.Data})
	}

	return nil
}

// writeBackVictim sends a replaced line that holds modified data to the next
// level, or to memory from the last level. Clean and invalid victims are
// dropped.
func (h *ParallelMemoryHierarchy) writeBackVictim(
	level int,
	victim *cache.Line,
	now sim.Cycle,
) []*mem.Request {
	if victim == nil || !victim.IsValid || !victim.IsDirty {
		return nil
	}

	c := h.levels[level]
	addr := c.LineAddress(*victim)

	if h.isLastLevel(level) {
		h.writeMemory(addr, victim.Block)
		return nil
	}

	wb := mem.EvictReqBuilder{}.
		WithID(h.idGen.Generate()).
		WithAddress(addr).
		WithBlock(victim.Block).
		AsWriteBack().
		WithReadyTime(now + sim.Cycle(c.Latency())).
		WithStartTime(now).
		Build()

	return []*mem.Request{wb}
}

// fillShallower hands the block found at a level to every level in front of
// it, so that they do not fetch it again.
func (h *ParallelMemoryHierarchy) fillShallower(
	level int,
	req *mem.Request,
	block []int,
	ready sim.Cycle,
) {
	for i := 0; i < level; i++ {
		h.levels[i].AddOutstandingRequest(h.fillFor(req, block, ready))
	}
}

func (h *ParallelMemoryHierarchy) fillFor(
	req *mem.Request,
	block []int,
	ready sim.Cycle,
) *mem.Request {
	return mem.EvictReqBuilder{}.
		WithID(req.ID).
		WithAddress(req.Address).
		WithBlock(block).
		WithReadyTime(ready).
		WithStartTime(req.StartTime).
		Build()
}

// resolveFromMemory answers a read that missed in every level and sends the
// fetched block to all levels.
func (h *ParallelMemoryHierarchy) resolveFromMemory(
	req *mem.Request,
	now sim.Cycle,
) {
	if req.Kind != mem.ReadReq {
		violate("%s: %s request %s reached memory", h.name, req.Kind, req.ID)
	}

	lastLatency := h.levels[len(h.levels)-1].Latency()
	block := h.memory.Read(req.Address, h.blockSize)

	logrus.WithFields(logrus.Fields{
		"address": req.Address,
		"cycle":   now,
	}).Debug("memory read")

	h.invokeHook(HookPosMemRead, req.Address, nil)

	latency := now - req.StartTime +
		sim.Cycle(h.levelLatency+h.memory.Latency()+lastLatency)
	h.complete(req, len(h.levels), latency)

	ready := now + sim.Cycle(h.memory.Latency()+lastLatency)
	for _, c := range h.levels {
		c.AddOutstandingRequest(h.fillFor(req, block, ready))
	}
}

func (h *ParallelMemoryHierarchy) writeMemory(addr uint64, block []int) {
	h.memory.Write(addr, block)

	logrus.WithFields(logrus.Fields{
		"address": addr,
		"cycle":   h.now,
	}).Debug("memory write")

	h.invokeHook(HookPosMemWrite, addr, nil)
}

func (h *ParallelMemoryHierarchy) complete(
	req *mem.Request,
	level int,
	latency sim.Cycle,
) {
	logrus.WithFields(logrus.Fields{
		"request":   req.ID,
		"hit_level": level,
		"cycle":     h.now,
	}).Debugf("access complete in %d cycles", latency)

	h.invokeHook(HookPosReqComplete, req, AccessDetail{
		Level:   level,
		Latency: latency,
	})
}

func (h *ParallelMemoryHierarchy) invokeHook(
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

// Reset empties every level and restarts the memory.
func (h *ParallelMemoryHierarchy) Reset() {
	for _, c := range h.levels {
		c.Reset()
	}

	h.memory.Reset()
	h.now = 0
}
