package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/hierarchy"
	"github.com/sarchlab/cachesim/mem/trace"
)

var heading = color.New(color.FgCyan, color.Bold)

func writeReport(
	out io.Writer,
	levels []*cache.Cache,
	totalLabel string,
	total uint64,
) {
	for _, c := range levels {
		writeLevel(out, c)
	}

	heading.Fprintf(out, "%s: %d\n", totalLabel, total)
}

func writeLevel(out io.Writer, c *cache.Cache) {
	s := hierarchy.StatsOf(c)

	heading.Fprintln(out, s.Name)
	fmt.Fprintf(out, "total latency: %d\n", s.TotalLatency)
	fmt.Fprintf(out, "hit rate: %.4f\n", s.HitRate)
	fmt.Fprintf(out, "miss rate: %.4f\n", s.MissRate)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Valid\tDirty\tWay\tIndex\tLRU\tTag\tBlock")

	for _, l := range c.Lines() {
		fmt.Fprintf(tw, "%t\t%t\t%d\t%d\t%d\t%d\t%v\n",
			l.IsValid, l.IsDirty, l.WayID, l.Index, l.LRURank, l.Tag, l.Block)
	}

	tw.Flush()
	fmt.Fprintln(out)
}

func recordLevels(recorder datarecording.DataRecorder, levels []*cache.Cache) {
	if recorder == nil {
		return
	}

	stats := make([]hierarchy.LevelStats, len(levels))
	for i, c := range levels {
		stats[i] = hierarchy.StatsOf(c)
	}

	trace.RecordLevels(recorder, stats)
}
