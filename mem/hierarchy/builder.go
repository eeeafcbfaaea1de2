package hierarchy

import (
	"fmt"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/idealmemcontroller"
	"github.com/sarchlab/cachesim/sim"
)

// Builder can build both forms of the hierarchy.
type Builder struct {
	config Config
	idGen  sim.IDGenerator
	memory *idealmemcontroller.Memory
}

// MakeBuilder creates a builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		config: DefaultConfig(),
	}
}

// WithConfig sets the configuration of the hierarchy.
func (b Builder) WithConfig(c Config) Builder {
	b.config = c
	return b
}

// WithIDGenerator sets the generator of the IDs of write-back requests. By
// default each hierarchy gets its own sequential generator.
func (b Builder) WithIDGenerator(g sim.IDGenerator) Builder {
	b.idGen = g
	return b
}

// WithMemory sets the backing memory. By default a memory with the configured
// latency is created.
func (b Builder) WithMemory(m *idealmemcontroller.Memory) Builder {
	b.memory = m
	return b
}

func (b Builder) buildLevels(name string) ([]*cache.Cache, error) {
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	levels := make([]*cache.Cache, len(b.config.Levels))
	for i, l := range b.config.Levels {
		levels[i] = cache.MakeBuilder().
			WithNumLines(l.Size).
			WithWayAssociativity(l.Ways).
			WithBlockSize(b.config.BlockSize).
			WithLatency(l.Latency).
			WithMaxOutstandingMisses(b.config.MaxOutstandingMisses).
			Build(fmt.Sprintf("%s.L%d", name, i+1))
	}

	return levels, nil
}

func (b Builder) buildMemory(name string) *idealmemcontroller.Memory {
	if b.memory != nil {
		return b.memory
	}

	return idealmemcontroller.MakeBuilder().
		WithLatency(b.config.MemoryLatency).
		Build(name + ".Memory")
}

func (b Builder) idGenerator(name string) sim.IDGenerator {
	if b.idGen != nil {
		return b.idGen
	}

	return sim.NewPrefixedIDGenerator(name + ".wb-")
}

// BuildParallel creates a cycle-accurate hierarchy.
func (b Builder) BuildParallel(name string) (*ParallelMemoryHierarchy, error) {
	levels, err := b.buildLevels(name)
	if err != nil {
		return nil, err
	}

	h := &ParallelMemoryHierarchy{
		name:         name,
		policy:       b.config.Policy,
		blockSize:    b.config.BlockSize,
		levels:       levels,
		memory:       b.buildMemory(name),
		idGen:        b.idGenerator(name),
		levelLatency: b.config.totalLatency(),
	}

	return h, nil
}

// BuildSequential creates a hierarchy that serves each access to completion
// before the next one.
func (b Builder) BuildSequential(name string) (*MemoryHierarchy, error) {
	levels, err := b.buildLevels(name)
	if err != nil {
		return nil, err
	}

	h := &MemoryHierarchy{
		name:      name,
		policy:    b.config.Policy,
		blockSize: b.config.BlockSize,
		levels:    levels,
		memory:    b.buildMemory(name),
	}

	return h, nil
}
