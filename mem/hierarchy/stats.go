package hierarchy

import "github.com/sarchlab/cachesim/mem/cache"

// LevelStats summarizes one level for reports.
type LevelStats struct {
	Name         string  `json:"name"`
	Accesses     uint64  `json:"accesses"`
	Misses       uint64  `json:"misses"`
	TotalLatency uint64  `json:"total_latency"`
	HitRate      float64 `json:"hit_rate"`
	MissRate     float64 `json:"miss_rate"`
	Outstanding  int     `json:"outstanding"`
	InFlight     int     `json:"in_flight"`
	BusyCycles   int     `json:"busy_cycles"`
}

// StatsOf reads the statistics of a cache.
func StatsOf(c *cache.Cache) LevelStats {
	return LevelStats{
		Name:         c.Name(),
		Accesses:     c.Accesses(),
		Misses:       c.Misses(),
		TotalLatency: c.TotalLatency(),
		HitRate:      c.HitRate(),
		MissRate:     c.MissRate(),
		Outstanding:  c.NumOutstandingRequests(),
		InFlight:     c.NumCurrMisses(),
		BusyCycles:   c.BusyCycles(),
	}
}

// A LevelSnapshot is a copy of the full state of one level.
type LevelSnapshot struct {
	Stats       LevelStats
	Lines       []cache.Line
	Outstanding []string
}

func snapshotOf(c *cache.Cache) LevelSnapshot {
	s := LevelSnapshot{
		Stats: StatsOf(c),
		Lines: c.Lines(),
	}

	for _, req := range c.OutstandingRequests() {
		s.Outstanding = append(s.Outstanding, req.String())
	}

	return s
}
