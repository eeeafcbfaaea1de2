// Package cache models one set-associative cache level with LRU replacement.
package cache

import (
	"github.com/sarchlab/cachesim/mem/cache/internal/mshr"
	"github.com/sarchlab/cachesim/mem/mem"
	"github.com/sarchlab/cachesim/sim"
)

// HookPosReadHit marks a read that finds its line.
var HookPosReadHit = &sim.HookPos{Name: "Cache Read Hit"}

// HookPosReadMiss marks a read that does not find its line.
var HookPosReadMiss = &sim.HookPos{Name: "Cache Read Miss"}

// HookPosWriteHit marks a write that finds its line.
var HookPosWriteHit = &sim.HookPos{Name: "Cache Write Hit"}

// HookPosWriteMiss marks a write that does not find its line.
var HookPosWriteMiss = &sim.HookPos{Name: "Cache Write Miss"}

// HookPosEvict marks the replacement of a line. The hook item is the victim.
var HookPosEvict = &sim.HookPos{Name: "Cache Evict"}

// A Cache is one level of the hierarchy. Line i*indexCount+j holds way i of
// index j.
type Cache struct {
	sim.HookableBase

	name       string
	numLines   int
	numWays    int
	indexCount int
	blockSize  int
	latency    int
	offsetBits uint
	indexBits  uint

	lines    []Line
	accesses uint64
	misses   uint64

	mshr           *mshr.MSHR
	maxOutstanding int
	maxNotified    bool
	busyCycles     int
}

// Name returns the name of the cache.
func (c *Cache) Name() string {
	return c.name
}

// NumLines returns the total number of lines.
func (c *Cache) NumLines() int {
	return c.numLines
}

// NumWays returns the associativity.
func (c *Cache) NumWays() int {
	return c.numWays
}

// IndexCount returns the number of indices.
func (c *Cache) IndexCount() int {
	return c.indexCount
}

// BlockSize returns the number of words in a block.
func (c *Cache) BlockSize() int {
	return c.blockSize
}

// Latency returns the number of cycles one access occupies the cache.
func (c *Cache) Latency() int {
	return c.latency
}

func (c *Cache) line(way, index int) *Line {
	return &c.lines[way*c.indexCount+index]
}

func (c *Cache) findWay(loc Location) (int, bool) {
	for way := 0; way < c.numWays; way++ {
		l := c.line(way, loc.Index)
		if l.IsValid && l.Tag == loc.Tag {
			return way, true
		}
	}

	return 0, false
}

// promote moves a way to rank 0 and ages every way that was more recent than
// it. It is the only place where ranks change, so the ranks of an index stay
// a permutation of 0..numWays-1.
func (c *Cache) promote(index, way int) {
	prior := c.line(way, index).LRURank

	for w := 0; w < c.numWays; w++ {
		l := c.line(w, index)
		if w != way && l.LRURank < prior {
			l.LRURank++
		}
	}

	c.line(way, index).LRURank = 0
}

func (c *Cache) victimWay(index int) int {
	for way := 0; way < c.numWays; way++ {
		if c.line(way, index).LRURank == c.numWays-1 {
			return way
		}
	}

	violate("%s: no way at index %d has rank %d", c.name, index, c.numWays-1)

	return 0
}

// Read looks up the line holding addr and returns a copy of it on a hit. Reads
// never change the LRU ranks.
func (c *Cache) Read(addr uint64) (Line, bool) {
	c.accesses++
	loc := c.Locate(addr)

	way, hit := c.findWay(loc)
	if !hit {
		c.misses++
		c.invokeHook(HookPosReadMiss, addr, nil)

		return Line{}, false
	}

	l := c.line(way, loc.Index).Clone()
	c.invokeHook(HookPosReadHit, addr, l)

	return l, true
}

// WriteBack writes one word with the write-back, write-allocate policy. On a
// miss, a block filled with data is allocated dirty and the replaced line is
// returned with allocated set to true.
func (c *Cache) WriteBack(addr uint64, data int) (victim Line, allocated bool) {
	c.accesses++
	loc := c.Locate(addr)

	if way, hit := c.findWay(loc); hit {
		c.writeHit(loc, way, data)
		c.invokeHook(HookPosWriteHit, addr, nil)

		return Line{}, false
	}

	c.misses++
	c.invokeHook(HookPosWriteMiss, addr, nil)

	block := make([]int, c.blockSize)
	for i := range block {
		block[i] = data
	}

	victim = c.EvictRow(addr, block)
	c.line(victim.WayID, loc.Index).IsDirty = true

	return victim, true
}

// WriteThrough writes one word with the write-through, no-allocate policy. A
// miss changes no line; it only reports false.
func (c *Cache) WriteThrough(addr uint64, data int) bool {
	c.accesses++
	loc := c.Locate(addr)

	way, hit := c.findWay(loc)
	if !hit {
		c.misses++
		c.invokeHook(HookPosWriteMiss, addr, nil)

		return false
	}

	c.writeHit(loc, way, data)
	c.invokeHook(HookPosWriteHit, addr, nil)

	return true
}

func (c *Cache) writeHit(loc Location, way int, data int) {
	l := c.line(way, loc.Index)
	l.IsDirty = true
	l.Block[loc.Offset] = data
	c.promote(loc.Index, way)
}

// EvictRow replaces the least recently used way of the index addr maps to.
// The new line holds block, is clean, and becomes the most recently used way.
// The returned copy is the line as it was before replacement.
func (c *Cache) EvictRow(addr uint64, block []int) Line {
	loc := c.Locate(addr)
	way := c.victimWay(loc.Index)

	l := c.line(way, loc.Index)
	victim := l.Clone()

	c.promote(loc.Index, way)

	l.Tag = loc.Tag
	l.IsValid = true
	l.IsDirty = false
	copyBlock(l.Block, block)

	c.invokeHook(HookPosEvict, addr, victim)

	return victim
}

// Install places a whole block at addr. If the line is already present its
// block is overwritten in place; otherwise EvictRow makes room and the
// replaced line is returned with evicted set to true. A dirty install keeps
// the line dirty.
func (c *Cache) Install(
	addr uint64,
	block []int,
	dirty bool,
) (victim Line, evicted bool) {
	loc := c.Locate(addr)

	if way, hit := c.findWay(loc); hit {
		l := c.line(way, loc.Index)
		copyBlock(l.Block, block)
		l.IsDirty = l.IsDirty || dirty
		c.promote(loc.Index, way)

		return Line{}, false
	}

	victim = c.EvictRow(addr, block)
	if dirty {
		c.line(victim.WayID, loc.Index).IsDirty = true
	}

	return victim, true
}

func copyBlock(dst, src []int) {
	n := copy(dst, src)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// Lines returns a copy of every line, way by way.
func (c *Cache) Lines() []Line {
	lines := make([]Line, len(c.lines))
	for i, l := range c.lines {
		lines[i] = l.Clone()
	}

	return lines
}

// Set returns a copy of the lines of one index, ordered by way.
func (c *Cache) Set(index int) []Line {
	set := make([]Line, c.numWays)
	for way := range set {
		set[way] = c.line(way, index).Clone()
	}

	return set
}

// Accesses returns the number of reads and writes served.
func (c *Cache) Accesses() uint64 {
	return c.accesses
}

// Misses returns the number of reads and writes that missed.
func (c *Cache) Misses() uint64 {
	return c.misses
}

// HitRate returns the fraction of accesses that hit, or 0 before the first
// access.
func (c *Cache) HitRate() float64 {
	if c.accesses == 0 {
		return 0
	}

	return float64(c.accesses-c.misses) / float64(c.accesses)
}

// MissRate returns the fraction of accesses that missed, or 0 before the first
// access.
func (c *Cache) MissRate() float64 {
	if c.accesses == 0 {
		return 0
	}

	return float64(c.misses) / float64(c.accesses)
}

// TotalLatency returns the cycles spent serving accesses.
func (c *Cache) TotalLatency() uint64 {
	return uint64(c.latency) * c.accesses
}

func (c *Cache) invokeHook(pos *sim.HookPos, addr uint64, detail interface{}) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   addr,
		Detail: detail,
	})
}

// AddOutstandingRequest appends a request to the tail of the waiting queue.
func (c *Cache) AddOutstandingRequest(req *mem.Request) {
	c.mshr.Push(req)
}

// PopOutstandingRequest removes and returns the head of the waiting queue, or
// nil.
func (c *Cache) PopOutstandingRequest() *mem.Request {
	return c.mshr.Pop()
}

// PeekOutstandingRequest returns the head of the waiting queue, or nil.
func (c *Cache) PeekOutstandingRequest() *mem.Request {
	return c.mshr.Peek()
}

// NumOutstandingRequests returns the length of the waiting queue.
func (c *Cache) NumOutstandingRequests() int {
	return c.mshr.Len()
}

// OutstandingRequests returns the waiting queue in order.
func (c *Cache) OutstandingRequests() []*mem.Request {
	return c.mshr.Requests()
}

// AddCurrMiss registers a miss this level waits on.
func (c *Cache) AddCurrMiss(req *mem.Request) {
	if c.MaxOutstandingReached() {
		violate("%s: miss %s exceeds the limit of %d outstanding misses",
			c.name, req.ID, c.maxOutstanding)
	}

	if err := c.mshr.AddMiss(req); err != nil {
		violate("%s: %v", c.name, err)
	}
}

// RemoveCurrMiss drops a miss once its fill is served. It reports whether the
// miss was registered.
func (c *Cache) RemoveCurrMiss(id string) bool {
	removed := c.mshr.RemoveMiss(id)

	if !c.MaxOutstandingReached() {
		c.maxNotified = false
	}

	return removed
}

// ContainsMiss tells if this level waits on a miss with the given ID.
func (c *Cache) ContainsMiss(id string) bool {
	return c.mshr.ContainsMiss(id)
}

// NumCurrMisses returns the number of misses this level waits on.
func (c *Cache) NumCurrMisses() int {
	return c.mshr.NumMisses()
}

// SelectOldMiss removes and returns the earliest queued request that answers
// a miss this level waits on, or nil.
func (c *Cache) SelectOldMiss() *mem.Request {
	return c.mshr.SelectOldMiss()
}

// SelectOldMissReadyBy removes and returns the earliest queued request that
// answers a miss this level waits on and is ready at now, or nil.
func (c *Cache) SelectOldMissReadyBy(now sim.Cycle) *mem.Request {
	return c.mshr.SelectOldMissReadyBy(now)
}

// PeekOldMiss returns what SelectOldMiss would return without removing it.
func (c *Cache) PeekOldMiss() *mem.Request {
	return c.mshr.PeekOldMiss()
}

// MaxOutstandingMisses returns the miss limit. Zero means unlimited.
func (c *Cache) MaxOutstandingMisses() int {
	return c.maxOutstanding
}

// MaxOutstandingReached tells if no new miss may be accepted.
func (c *Cache) MaxOutstandingReached() bool {
	return c.maxOutstanding > 0 && c.mshr.NumMisses() >= c.maxOutstanding
}

// NotifyMaxOutstanding returns true the first time it is called after the miss
// limit is reached. It returns false again until the number of misses drops
// below the limit and reaches it once more.
func (c *Cache) NotifyMaxOutstanding() bool {
	if !c.MaxOutstandingReached() || c.maxNotified {
		return false
	}

	c.maxNotified = true

	return true
}

// Busy tells if the cache is still serving an earlier access.
func (c *Cache) Busy() bool {
	return c.busyCycles > 0
}

// BusyCycles returns the number of cycles left before the cache is free.
func (c *Cache) BusyCycles() int {
	return c.busyCycles
}

// StartService occupies the cache for its latency, counting the current cycle.
func (c *Cache) StartService() {
	c.busyCycles = c.latency - 1
}

// TickTimer counts down one busy cycle.
func (c *Cache) TickTimer() {
	if c.busyCycles > 0 {
		c.busyCycles--
	}
}

// Reset invalidates every line, clears the statistics, and drops all queued
// requests and in-flight misses.
func (c *Cache) Reset() {
	for way := 0; way < c.numWays; way++ {
		for index := 0; index < c.indexCount; index++ {
			*c.line(way, index) = Line{
				LRURank: way,
				WayID:   way,
				Index:   index,
				Block:   make([]int, c.blockSize),
			}
		}
	}

	c.accesses = 0
	c.misses = 0
	c.mshr.Reset()
	c.maxNotified = false
	c.busyCycles = 0
}
