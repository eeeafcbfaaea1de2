// Package trace provides hooks that trace the accesses served by a memory
// hierarchy.
package trace

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/hierarchy"
	"github.com/sarchlab/cachesim/mem/mem"
	"github.com/sarchlab/cachesim/sim"
)

// accessEntry represents an access in the database
type accessEntry struct {
	ID        string
	Kind      string
	Address   uint64
	StartTime uint64
	EndTime   uint64
	Latency   uint64
	Level     int
}

// memoryAccessEntry represents a backing memory access in the database
type memoryAccessEntry struct {
	Time    uint64
	Kind    string
	Address uint64
}

// levelEntry represents the final statistics of a level in the database
type levelEntry struct {
	Name         string
	Accesses     uint64
	Misses       uint64
	TotalLatency uint64
	HitRate      float64
	MissRate     float64
}

// A logTracer is a hook that writes the events of a hierarchy to a logger.
type logTracer struct {
	timeTeller sim.TimeTeller
	logger     *logrus.Logger
}

// NewLogTracer creates a hook that logs every completed access at Info
// level and every other event at Debug level.
func NewLogTracer(logger *logrus.Logger, timeTeller sim.TimeTeller) sim.Hook {
	return &logTracer{
		timeTeller: timeTeller,
		logger:     logger,
	}
}

func (t *logTracer) Func(ctx sim.HookCtx) {
	entry := t.logger.WithField("cycle", uint64(t.timeTeller.Now()))

	switch ctx.Pos {
	case hierarchy.HookPosReqStart:
		req := ctx.Item.(*mem.Request)
		entry.WithFields(requestFields(req)).Debug("request sent")
	case hierarchy.HookPosReqComplete:
		req := ctx.Item.(*mem.Request)
		detail := ctx.Detail.(hierarchy.AccessDetail)
		entry.WithFields(requestFields(req)).
			WithField("hit_level", detail.Level).
			Infof("access complete in %d cycles", detail.Latency)
	case hierarchy.HookPosMemRead:
		entry.WithField("address", ctx.Item).Debug("memory read")
	case hierarchy.HookPosMemWrite:
		entry.WithField("address", ctx.Item).Debug("memory write")
	case hierarchy.HookPosMaxOutstanding:
		c := ctx.Item.(*cache.Cache)
		entry.WithField("cache", c.Name()).
			Infof("at %d outstanding misses", c.MaxOutstandingMisses())
	}
}

func requestFields(req *mem.Request) logrus.Fields {
	return logrus.Fields{
		"id":      req.ID,
		"kind":    req.Kind.String(),
		"address": req.Address,
	}
}

// A dbTracer is a hook that records the accesses of a hierarchy into a
// database using the data recorder.
type dbTracer struct {
	timeTeller   sim.TimeTeller
	dataRecorder datarecording.DataRecorder
	pending      map[string]*accessEntry
}

// NewDBTracer creates a hook that records accesses into the "accesses" table
// and backing memory traffic into the "memory_accesses" table.
func NewDBTracer(
	dataRecorder datarecording.DataRecorder,
	timeTeller sim.TimeTeller,
) sim.Hook {
	t := &dbTracer{
		timeTeller:   timeTeller,
		dataRecorder: dataRecorder,
		pending:      make(map[string]*accessEntry),
	}

	t.dataRecorder.CreateTable("accesses", accessEntry{})
	t.dataRecorder.CreateTable("memory_accesses", memoryAccessEntry{})

	return t
}

func (t *dbTracer) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case hierarchy.HookPosReqStart:
		t.startAccess(ctx.Item.(*mem.Request))
	case hierarchy.HookPosReqComplete:
		t.endAccess(
			ctx.Item.(*mem.Request),
			ctx.Detail.(hierarchy.AccessDetail),
		)
	case hierarchy.HookPosMemRead:
		t.memoryAccess("read", ctx.Item.(uint64))
	case hierarchy.HookPosMemWrite:
		t.memoryAccess("write", ctx.Item.(uint64))
	}
}

func (t *dbTracer) startAccess(req *mem.Request) {
	t.pending[req.ID] = &accessEntry{
		ID:        req.ID,
		Kind:      req.Kind.String(),
		Address:   req.Address,
		StartTime: uint64(t.timeTeller.Now()),
	}
}

func (t *dbTracer) endAccess(req *mem.Request, detail hierarchy.AccessDetail) {
	entry, exists := t.pending[req.ID]
	if !exists {
		return
	}

	entry.Latency = uint64(detail.Latency)
	entry.EndTime = entry.StartTime + entry.Latency
	entry.Level = detail.Level
	t.dataRecorder.InsertData("accesses", *entry)

	delete(t.pending, req.ID)
}

func (t *dbTracer) memoryAccess(kind string, addr uint64) {
	t.dataRecorder.InsertData("memory_accesses", memoryAccessEntry{
		Time:    uint64(t.timeTeller.Now()),
		Kind:    kind,
		Address: addr,
	})
}

// RecordLevels writes the statistics of every level into the "levels" table.
func RecordLevels(
	dataRecorder datarecording.DataRecorder,
	stats []hierarchy.LevelStats,
) {
	dataRecorder.CreateTable("levels", levelEntry{})

	for _, s := range stats {
		dataRecorder.InsertData("levels", levelEntry{
			Name:         s.Name,
			Accesses:     s.Accesses,
			Misses:       s.Misses,
			TotalLatency: s.TotalLatency,
			HitRate:      s.HitRate,
			MissRate:     s.MissRate,
		})
	}
}
