package cache

import (
	"fmt"

	"github.com/sarchlab/cachesim/mem/cache/internal/mshr"
)

// Builder can build caches.
type Builder struct {
	numLines       int
	numWays        int
	blockSize      int
	latency        int
	maxOutstanding int
}

// MakeBuilder creates a new builder with a small default geometry.
func MakeBuilder() Builder {
	return Builder{
		numLines:  8,
		numWays:   4,
		blockSize: 2,
		latency:   1,
	}
}

// WithNumLines sets the total number of lines.
func (b Builder) WithNumLines(n int) Builder {
	b.numLines = n
	return b
}

// WithWayAssociativity sets the number of ways per index.
func (b Builder) WithWayAssociativity(n int) Builder {
	b.numWays = n
	return b
}

// WithBlockSize sets the number of words per block.
func (b Builder) WithBlockSize(n int) Builder {
	b.blockSize = n
	return b
}

// WithLatency sets the number of cycles an access occupies the cache.
func (b Builder) WithLatency(cycles int) Builder {
	b.latency = cycles
	return b
}

// WithMaxOutstandingMisses sets how many misses may be in flight at once.
// Zero means unlimited.
func (b Builder) WithMaxOutstandingMisses(n int) Builder {
	b.maxOutstanding = n
	return b
}

// Build builds a cache. The geometry must already be valid; an invalid one
// panics.
func (b Builder) Build(name string) *Cache {
	b.mustBeValidGeometry()

	c := &Cache{
		name:           name,
		numLines:       b.numLines,
		numWays:        b.numWays,
		indexCount:     b.numLines / b.numWays,
		blockSize:      b.blockSize,
		latency:        b.latency,
		maxOutstanding: b.maxOutstanding,
		lines:          make([]Line, b.numLines),
		mshr:           mshr.NewMSHR(),
	}

	c.offsetBits = log2Ceil(c.blockSize)
	c.indexBits = log2Ceil(c.indexCount)

	c.Reset()

	return c
}

func (b Builder) mustBeValidGeometry() {
	switch {
	case !IsPowerOfTwo(b.numWays):
		panic(fmt.Sprintf("associativity %d is not a power of 2", b.numWays))
	case b.numLines <= 0 || b.numLines%b.numWays != 0:
		panic(fmt.Sprintf("%d lines cannot be split into %d ways",
			b.numLines, b.numWays))
	case !IsPowerOfTwo(b.blockSize):
		panic(fmt.Sprintf("block size %d is not a power of 2", b.blockSize))
	case b.latency < 1:
		panic(fmt.Sprintf("latency %d is less than 1 cycle", b.latency))
	case b.maxOutstanding < 0:
		panic(fmt.Sprintf("negative outstanding miss limit %d",
			b.maxOutstanding))
	}
}
