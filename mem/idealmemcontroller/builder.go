package idealmemcontroller

// Builder can build memories.
type Builder struct {
	latency int
}

// MakeBuilder returns a new Builder
func MakeBuilder() Builder {
	return Builder{
		latency: 100,
	}
}

// WithLatency sets the fixed number of cycles of a memory access.
func (b Builder) WithLatency(latency int) Builder {
	b.latency = latency
	return b
}

// Build creates a new Memory.
func (b Builder) Build(name string) *Memory {
	return &Memory{
		name:    name,
		latency: b.latency,
		next:    1,
	}
}
