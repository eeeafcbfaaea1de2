package cache

// A Line is one storage slot of a cache: the block of one way at one index.
type Line struct {
	IsValid bool
	IsDirty bool

	// LRURank orders the ways of an index by recency. Rank 0 is the most
	// recently used way and rank numWays-1 is the next victim.
	LRURank int

	Tag   uint64
	WayID int
	Index int
	Block []int
}

// Clone returns a copy of the line that does not share the block.
func (l Line) Clone() Line {
	c := l
	c.Block = make([]int, len(l.Block))
	copy(c.Block, l.Block)

	return c
}
