package cache

import "math/bits"

// A Location is an address split into the fields a cache looks at.
type Location struct {
	Tag    uint64
	Index  int
	Offset int
}

// Locate decomposes an address into tag, index, and block offset.
func (c *Cache) Locate(addr uint64) Location {
	return Location{
		Offset: int(addr & uint64(c.blockSize-1)),
		Index:  int((addr >> c.offsetBits) & uint64(c.indexCount-1)),
		Tag:    addr >> (c.offsetBits + c.indexBits),
	}
}

// LineAddress rebuilds the address of the first word held by a line.
func (c *Cache) LineAddress(l Line) uint64 {
	return ((l.Tag << c.indexBits) | uint64(l.Index)) << c.offsetBits
}

// log2Ceil returns the smallest k such that 1<<k >= n. Sizes that are not
// powers of two therefore lose the addresses above the last full power.
func log2Ceil(n int) uint {
	if n <= 1 {
		return 0
	}

	return uint(bits.Len(uint(n - 1)))
}

// IsPowerOfTwo tells if n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
