package tagging

import (
	"math/rand/v2"
)

// A VictimFinder decides which block should be evicted. It also keeps the
// per-way bookkeeping that its decision depends on.
type VictimFinder interface {
	// FindVictim returns the way that should hold the next block.
	FindVictim(set *Set) int

	// Visit is called when a valid block is hit.
	Visit(set *Set, wayID int)

	// Fill is called when a new block is placed into a way.
	Fill(set *Set, wayID int)
}

// firstInvalidWay returns the lowest invalid way of the set.
func firstInvalidWay(set *Set) (int, bool) {
	for i, block := range set.Blocks {
		if !block.IsValid {
			return i, true
		}
	}

	return 0, false
}

// stampClock hands out monotonically increasing stamps. One clock is shared
// by all the sets of a tag array.
type stampClock struct {
	now uint64
}

func (c *stampClock) next() uint64 {
	c.now++
	return c.now
}

// LRUVictimFinder evicts the least recently used block.
type LRUVictimFinder struct {
	clock stampClock
}

// NewLRUVictimFinder returns a newly constructed lru evictor
func NewLRUVictimFinder() *LRUVictimFinder {
	return new(LRUVictimFinder)
}

// FindVictim returns the least recently used block in a set
func (e *LRUVictimFinder) FindVictim(set *Set) int {
	// First try evicting an empty block
	if wayID, ok := firstInvalidWay(set); ok {
		return wayID
	}

	victim := 0
	for i, block := range set.Blocks {
		if block.RecencyStamp < set.Blocks[victim].RecencyStamp {
			victim = i
		}
	}

	return victim
}

// Visit marks the block as the most recently used one.
func (e *LRUVictimFinder) Visit(set *Set, wayID int) {
	set.Blocks[wayID].RecencyStamp = e.clock.next()
}

// Fill marks the new block as the most recently used one.
func (e *LRUVictimFinder) Fill(set *Set, wayID int) {
	stamp := e.clock.next()
	set.Blocks[wayID].RecencyStamp = stamp
	set.Blocks[wayID].InsertionStamp = stamp
}

// FIFOVictimFinder evicts the block that was filled the earliest. Hits do not
// change the order.
type FIFOVictimFinder struct {
	clock stampClock
}

// NewFIFOVictimFinder returns a newly constructed fifo evictor
func NewFIFOVictimFinder() *FIFOVictimFinder {
	return new(FIFOVictimFinder)
}

// FindVictim returns the oldest block in a set.
func (e *FIFOVictimFinder) FindVictim(set *Set) int {
	if wayID, ok := firstInvalidWay(set); ok {
		return wayID
	}

	victim := 0
	for i, block := range set.Blocks {
		if block.InsertionStamp < set.Blocks[victim].InsertionStamp {
			victim = i
		}
	}

	return victim
}

// Visit does nothing.
func (e *FIFOVictimFinder) Visit(_ *Set, _ int) {}

// Fill records the insertion order of the new block.
func (e *FIFOVictimFinder) Fill(set *Set, wayID int) {
	stamp := e.clock.next()
	set.Blocks[wayID].RecencyStamp = stamp
	set.Blocks[wayID].InsertionStamp = stamp
}

// RandomVictimFinder evicts a uniformly chosen block once the set is full.
type RandomVictimFinder struct {
	rng *rand.Rand
}

// NewRandomVictimFinder returns a random evictor. The same seed always
// produces the same sequence of victims.
func NewRandomVictimFinder(seed uint64) *RandomVictimFinder {
	return &RandomVictimFinder{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// FindVictim returns an empty block if there is one, or a random block.
func (e *RandomVictimFinder) FindVictim(set *Set) int {
	if wayID, ok := firstInvalidWay(set); ok {
		return wayID
	}

	return e.rng.IntN(len(set.Blocks))
}

// Visit does nothing.
func (e *RandomVictimFinder) Visit(_ *Set, _ int) {}

// Fill does nothing.
func (e *RandomVictimFinder) Fill(_ *Set, _ int) {}
