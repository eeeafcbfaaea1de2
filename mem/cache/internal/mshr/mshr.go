// Package mshr keeps track of the requests waiting at a cache level and of the
// misses that level has sent deeper and not yet seen filled.
package mshr

import (
	"fmt"

	"github.com/google/btree"

	"github.com/sarchlab/cachesim/mem/mem"
	"github.com/sarchlab/cachesim/sim"
)

type queueEntry struct {
	seq uint64
	req *mem.Request
}

func (e *queueEntry) Less(than btree.Item) bool {
	return e.seq < than.(*queueEntry).seq
}

// MSHR combines the arrival-ordered queue of outstanding requests with the
// registry of in-flight misses. Queued requests are indexed by ID so that a
// request answering a tracked miss can be found without scanning the queue.
type MSHR struct {
	queue   *btree.BTree
	nextSeq uint64
	seqByID map[string][]uint64

	inFlight map[string]*mem.Request
}

// NewMSHR creates an empty MSHR.
func NewMSHR() *MSHR {
	m := &MSHR{}
	m.Reset()

	return m
}

// Push appends a request to the tail of the queue.
func (m *MSHR) Push(req *mem.Request) {
	e := &queueEntry{seq: m.nextSeq, req: req}
	m.nextSeq++

	m.queue.ReplaceOrInsert(e)
	m.seqByID[req.ID] = append(m.seqByID[req.ID], e.seq)
}

// Peek returns the head of the queue without removing it, or nil.
func (m *MSHR) Peek() *mem.Request {
	item := m.queue.Min()
	if item == nil {
		return nil
	}

	return item.(*queueEntry).req
}

// Pop removes and returns the head of the queue, or nil.
func (m *MSHR) Pop() *mem.Request {
	item := m.queue.Min()
	if item == nil {
		return nil
	}

	e := item.(*queueEntry)
	m.remove(e)

	return e.req
}

// Len returns the number of queued requests.
func (m *MSHR) Len() int {
	return m.queue.Len()
}

// Requests returns the queued requests in service order.
func (m *MSHR) Requests() []*mem.Request {
	reqs := make([]*mem.Request, 0, m.queue.Len())

	m.queue.Ascend(func(item btree.Item) bool {
		reqs = append(reqs, item.(*queueEntry).req)
		return true
	})

	return reqs
}

// AddMiss registers a request as an in-flight miss.
func (m *MSHR) AddMiss(req *mem.Request) error {
	if _, found := m.inFlight[req.ID]; found {
		return fmt.Errorf("miss %s is already in flight", req.ID)
	}

	m.inFlight[req.ID] = req

	return nil
}

// RemoveMiss drops the in-flight miss with the given ID. It reports whether
// the miss was registered.
func (m *MSHR) RemoveMiss(id string) bool {
	if _, found := m.inFlight[id]; !found {
		return false
	}

	delete(m.inFlight, id)

	return true
}

// ContainsMiss tells if a miss with the given ID is in flight.
func (m *MSHR) ContainsMiss(id string) bool {
	_, found := m.inFlight[id]
	return found
}

// NumMisses returns the number of in-flight misses.
func (m *MSHR) NumMisses() int {
	return len(m.inFlight)
}

// PeekOldMiss returns the earliest-queued request whose ID matches an
// in-flight miss, without removing it.
func (m *MSHR) PeekOldMiss() *mem.Request {
	e := m.oldestMatchingEntry(nil)
	if e == nil {
		return nil
	}

	return e.req
}

// SelectOldMiss removes and returns the earliest-queued request whose ID
// matches an in-flight miss. It returns nil if there is none.
func (m *MSHR) SelectOldMiss() *mem.Request {
	return m.selectMatching(nil)
}

// SelectOldMissReadyBy is SelectOldMiss restricted to requests whose
// ReadyTime is not after now. A request that is not ready does not hide a
// later one that is.
func (m *MSHR) SelectOldMissReadyBy(now sim.Cycle) *mem.Request {
	return m.selectMatching(func(req *mem.Request) bool {
		return req.ReadyTime <= now
	})
}

func (m *MSHR) selectMatching(accept func(*mem.Request) bool) *mem.Request {
	e := m.oldestMatchingEntry(accept)
	if e == nil {
		return nil
	}

	m.remove(e)

	return e.req
}

// oldestMatchingEntry finds the queued entry with the lowest sequence number
// among the entries of in-flight IDs that accept allows. A nil accept allows
// every entry.
func (m *MSHR) oldestMatchingEntry(
	accept func(*mem.Request) bool,
) *queueEntry {
	var oldest *queueEntry

	for id := range m.inFlight {
		for _, seq := range m.seqByID[id] {
			if oldest != nil && seq >= oldest.seq {
				break
			}

			e := m.queue.Get(&queueEntry{seq: seq}).(*queueEntry)
			if accept == nil || accept(e.req) {
				oldest = e
				break
			}
		}
	}

	return oldest
}

func (m *MSHR) remove(e *queueEntry) {
	m.queue.Delete(e)

	seqs := m.seqByID[e.req.ID]
	for i, s := range seqs {
		if s == e.seq {
			seqs = append(seqs[:i], seqs[i+1:]...)
			break
		}
	}

	if len(seqs) == 0 {
		delete(m.seqByID, e.req.ID)
	} else {
		m.seqByID[e.req.ID] = seqs
	}
}

// Reset drops every queued request and every in-flight miss.
func (m *MSHR) Reset() {
	m.queue = btree.New(2)
	m.nextSeq = 0
	m.seqByID = make(map[string][]uint64)
	m.inFlight = make(map[string]*mem.Request)
}
