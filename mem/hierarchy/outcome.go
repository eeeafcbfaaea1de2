package hierarchy

import (
	"fmt"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/mem"
)

// OutcomeCode classifies what happened when a level served a request.
type OutcomeCode int

const (
	ReadHit OutcomeCode = iota
	ReadMiss
	WriteComplete
	WriteCompleteWithEviction
	EvictionOnly
)

func (c OutcomeCode) String() string {
	switch c {
	case EvictionOnly:
		return "EvictionOnly"
	case ReadHit:
		return "ReadHit"
	case ReadMiss:
		return "ReadMiss"
	case WriteComplete:
		return "WriteComplete"
	case WriteCompleteWithEviction:
		return "WriteCompleteWithEviction"
	default:
		return fmt.Sprintf("OutcomeCode(%d)", int(c))
	}
}

// An Outcome is the result of serving one request at one level. Line is the
// fetched line of a ReadHit or the replaced line of an eviction, and nil
// otherwise.
type Outcome struct {
	Request *mem.Request
	Line    *cache.Line
	Code    OutcomeCode
}

// serve applies a request to a cache and occupies the cache for its latency.
func serve(
	c *cache.Cache,
	policy cache.WritePolicy,
	req *mem.Request,
) Outcome {
	c.StartService()

	switch req.Kind {
	case mem.ReadReq:
		return serveRead(c, req)
	case mem.WriteReq:
		return serveWrite(c, policy, req)
	case mem.EvictReq:
		victim, evicted := c.Install(req.Address, req.Block, req.Dirty)
		if !evicted {
			return Outcome{Request: req, Code: EvictionOnly}
		}

		return Outcome{Request: req, Line: &victim, Code: EvictionOnly}
	default:
		violate("%s: cannot serve request of kind %s", c.Name(), req.Kind)
	}

	return Outcome{}
}

func serveRead(c *cache.Cache, req *mem.Request) Outcome {
	line, hit := c.Read(req.Address)
	if !hit {
		return Outcome{Request: req, Code: ReadMiss}
	}

	return Outcome{Request: req, Line: &line, Code: ReadHit}
}

func serveWrite(
	c *cache.Cache,
	policy cache.WritePolicy,
	req *mem.Request,
) Outcome {
	if policy == cache.WriteThroughNoAllocate {
		c.WriteThrough(req.Address, req.Data)
		return Outcome{Request: req, Code: WriteComplete}
	}

	victim, allocated := c.WriteBack(req.Address, req.Data)
	if !allocated {
		return Outcome{Request: req, Code: WriteComplete}
	}

	return Outcome{Request: req, Line: &victim, Code: WriteCompleteWithEviction}
}
