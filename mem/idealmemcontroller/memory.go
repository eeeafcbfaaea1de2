// Package idealmemcontroller provides the backing store at the end of a cache
// hierarchy. It always answers in a fixed number of cycles and holds no real
// data: every read returns a freshly synthesized block.
package idealmemcontroller

// A Memory is an ideal backing store.
type Memory struct {
	name    string
	latency int

	// next is the synthetic value returned by the next read.
	next int

	reads  uint64
	writes uint64
}

// Name returns the name of the memory.
func (m *Memory) Name() string {
	return m.name
}

// Latency returns the number of cycles one access takes.
func (m *Memory) Latency() int {
	return m.latency
}

// Read returns the block holding addr. The word at addr carries a value that
// grows by one with every read; every other word is zero.
func (m *Memory) Read(addr uint64, blockSize int) []int {
	block := make([]int, blockSize)
	block[addr&uint64(blockSize-1)] = m.next

	m.next++
	m.reads++

	return block
}

// Write accepts a block written back from the last cache level.
func (m *Memory) Write(addr uint64, block []int) {
	m.writes++
}

// Reads returns the number of reads served.
func (m *Memory) Reads() uint64 {
	return m.reads
}

// Writes returns the number of writes accepted.
func (m *Memory) Writes() uint64 {
	return m.writes
}

// Accesses returns the number of reads and writes.
func (m *Memory) Accesses() uint64 {
	return m.reads + m.writes
}

// Reset restores the memory to its initial state.
func (m *Memory) Reset() {
	m.next = 1
	m.reads = 0
	m.writes = 0
}
