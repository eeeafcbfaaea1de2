package sim

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator can generate IDs.
type IDGenerator interface {
	// Generate an ID
	Generate() string
}

// NewSequentialIDGenerator returns a generator that yields "1", "2", ... in
// order. Each simulation should own its generator so that runs are
// reproducible.
func NewSequentialIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

// NewPrefixedIDGenerator returns a sequential generator whose IDs carry a
// fixed prefix, e.g. "evict-1".
func NewPrefixedIDGenerator(prefix string) IDGenerator {
	return &sequentialIDGenerator{prefix: prefix}
}

// NewParallelIDGenerator returns a generator backed by xid. The IDs are unique
// but not deterministic.
func NewParallelIDGenerator() IDGenerator {
	return parallelIDGenerator{}
}

type sequentialIDGenerator struct {
	prefix string
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)

	return g.prefix + strconv.FormatUint(idNumber, 10)
}

type parallelIDGenerator struct {
}

func (g parallelIDGenerator) Generate() string {
	return xid.New().String()
}
