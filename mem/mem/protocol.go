// Package mem defines the requests that travel through a memory hierarchy.
package mem

import (
	"fmt"

	"github.com/sarchlab/cachesim/sim"
)

// RequestKind tells what a request asks a cache level to do.
type RequestKind int

const (
	// ReadReq fetches the word at an address.
	ReadReq RequestKind = iota

	// WriteReq stores a single word at an address.
	WriteReq

	// EvictReq installs a whole block at an address. Fills coming back from a
	// deeper level and dirty victims written back to a deeper level are both
	// EvictReqs.
	EvictReq
)

func (k RequestKind) String() string {
	switch k {
	case ReadReq:
		return "Read"
	case WriteReq:
		return "Write"
	case EvictReq:
		return "Evict"
	default:
		return fmt.Sprintf("RequestKind(%d)", int(k))
	}
}

// A Request is one pending operation on the hierarchy. Only ReadyTime and
// StartTime change after a request is queued.
type Request struct {
	ID      string
	Kind    RequestKind
	Address uint64

	// Data is the word carried by a WriteReq.
	Data int

	// Block is the block carried by an EvictReq.
	Block []int

	// Dirty marks an EvictReq that writes back modified data, so the
	// receiving level must keep the installed line dirty.
	Dirty bool

	// ReadyTime is the earliest cycle at which a level may serve the request.
	ReadyTime sim.Cycle

	// StartTime is the cycle at which the request entered the hierarchy.
	StartTime sim.Cycle
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	c := *r

	if r.Block != nil {
		c.Block = make([]int, len(r.Block))
		copy(c.Block, r.Block)
	}

	return &c
}

func (r *Request) String() string {
	return fmt.Sprintf(
		"ID: %s | %s | Address: %d | Data: %d | Time: %d",
		r.ID, r.Kind, r.Address, r.Data, r.ReadyTime,
	)
}

// ReadReqBuilder can build read requests.
type ReadReqBuilder struct {
	id        string
	address   uint64
	readyTime sim.Cycle
}

// WithID sets the ID of the request to build.
func (b ReadReqBuilder) WithID(id string) ReadReqBuilder {
	b.id = id
	return b
}

// WithAddress sets the address of the request to build.
func (b ReadReqBuilder) WithAddress(address uint64) ReadReqBuilder {
	b.address = address
	return b
}

// WithReadyTime sets the arrival cycle of the request to build.
func (b ReadReqBuilder) WithReadyTime(t sim.Cycle) ReadReqBuilder {
	b.readyTime = t
	return b
}

// Build creates a new read request.
func (b ReadReqBuilder) Build() *Request {
	return &Request{
		ID:        b.id,
		Kind:      ReadReq,
		Address:   b.address,
		ReadyTime: b.readyTime,
		StartTime: b.readyTime,
	}
}

// WriteReqBuilder can build write requests.
type WriteReqBuilder struct {
	id        string
	address   uint64
	data      int
	readyTime sim.Cycle
}

// WithID sets the ID of the request to build.
func (b WriteReqBuilder) WithID(id string) WriteReqBuilder {
	b.id = id
	return b
}

// WithAddress sets the address of the request to build.
func (b WriteReqBuilder) WithAddress(address uint64) WriteReqBuilder {
	b.address = address
	return b
}

// WithData sets the word to write.
func (b WriteReqBuilder) WithData(data int) WriteReqBuilder {
	b.data = data
	return b
}

// WithReadyTime sets the arrival cycle of the request to build.
func (b WriteReqBuilder) WithReadyTime(t sim.Cycle) WriteReqBuilder {
	b.readyTime = t
	return b
}

// Build creates a new write request.
func (b WriteReqBuilder) Build() *Request {
	return &Request{
		ID:        b.id,
		Kind:      WriteReq,
		Address:   b.address,
		Data:      b.data,
		ReadyTime: b.readyTime,
		StartTime: b.readyTime,
	}
}

// EvictReqBuilder can build block-installing requests.
type EvictReqBuilder struct {
	id        string
	address   uint64
	block     []int
	dirty     bool
	readyTime sim.Cycle
	startTime sim.Cycle
}

// WithID sets the ID of the request to build.
func (b EvictReqBuilder) WithID(id string) EvictReqBuilder {
	b.id = id
	return b
}

// WithAddress sets the address of the request to build.
func (b EvictReqBuilder) WithAddress(address uint64) EvictReqBuilder {
	b.address = address
	return b
}

// WithBlock sets the block to install. The block is copied.
func (b EvictReqBuilder) WithBlock(block []int) EvictReqBuilder {
	b.block = make([]int, len(block))
	copy(b.block, block)

	return b
}

// AsWriteBack marks the block as modified data that must stay dirty.
func (b EvictReqBuilder) AsWriteBack() EvictReqBuilder {
	b.dirty = true
	return b
}

// WithReadyTime sets the cycle at which the block becomes available.
func (b EvictReqBuilder) WithReadyTime(t sim.Cycle) EvictReqBuilder {
	b.readyTime = t
	return b
}

// WithStartTime sets the cycle at which the request is created.
func (b EvictReqBuilder) WithStartTime(t sim.Cycle) EvictReqBuilder {
	b.startTime = t
	return b
}

// Build creates a new evict request.
func (b EvictReqBuilder) Build() *Request {
	return &Request{
		ID:        b.id,
		Kind:      EvictReq,
		Address:   b.address,
		Block:     b.block,
		Dirty:     b.dirty,
		ReadyTime: b.readyTime,
		StartTime: b.startTime,
	}
}
