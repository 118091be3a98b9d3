package tagging

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func fullSet(numWays int) *Set {
	set := &Set{Blocks: make([]Block, numWays)}
	for i := range set.Blocks {
		set.Blocks[i] = Block{WayID: i}
	}

	return set
}

var _ = Describe("LRUVictimFinder", func() {
	var (
		finder *LRUVictimFinder
		set    *Set
	)

	BeforeEach(func() {
		finder = NewLRUVictimFinder()
		set = fullSet(4)
	})

	It("should prefer the lowest empty way", func() {
		set.Blocks[0].IsValid = true
		set.Blocks[2].IsValid = true

		Expect(finder.FindVictim(set)).To(Equal(1))
	})

	It("should evict the least recently used way", func() {
		for i := range 4 {
			set.Blocks[i].IsValid = true
			finder.Fill(set, i)
		}

		finder.Visit(set, 0)

		Expect(finder.FindVictim(set)).To(Equal(1))
	})

	It("should use a global clock across sets", func() {
		other := fullSet(4)

		finder.Fill(set, 0)
		finder.Fill(other, 0)
		finder.Visit(set, 0)

		Expect(other.Blocks[0].RecencyStamp).To(Equal(uint64(2)))
		Expect(set.Blocks[0].RecencyStamp).To(Equal(uint64(3)))
	})
})

var _ = Describe("FIFOVictimFinder", func() {
	var (
		finder *FIFOVictimFinder
		set    *Set
	)

	BeforeEach(func() {
		finder = NewFIFOVictimFinder()
		set = fullSet(2)
	})

	It("should prefer the lowest empty way", func() {
		set.Blocks[0].IsValid = true

		Expect(finder.FindVictim(set)).To(Equal(1))
	})

	It("should evict the earliest filled way even after hits", func() {
		set.Blocks[0].IsValid = true
		finder.Fill(set, 0)
		set.Blocks[1].IsValid = true
		finder.Fill(set, 1)

		finder.Visit(set, 0)
		finder.Visit(set, 0)

		Expect(set.Blocks[0].InsertionStamp).To(Equal(uint64(1)))
		Expect(finder.FindVictim(set)).To(Equal(0))
	})
})

var _ = Describe("RandomVictimFinder", func() {
	It("should prefer the lowest empty way", func() {
		finder := NewRandomVictimFinder(1)
		set := fullSet(8)
		for i := range 5 {
			set.Blocks[i].IsValid = true
		}

		Expect(finder.FindVictim(set)).To(Equal(5))
	})

	It("should pick ways within range and repeat for the same seed", func() {
		a := NewRandomVictimFinder(42)
		b := NewRandomVictimFinder(42)
		set := fullSet(8)
		for i := range 8 {
			set.Blocks[i].IsValid = true
		}

		seen := map[int]bool{}
		for range 200 {
			victim := a.FindVictim(set)
			Expect(victim).To(BeNumerically(">=", 0))
			Expect(victim).To(BeNumerically("<", 8))
			Expect(b.FindVictim(set)).To(Equal(victim))
			seen[victim] = true
		}

		Expect(len(seen)).To(BeNumerically(">", 1))
	})
})
