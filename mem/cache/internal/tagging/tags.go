package tagging

import (
	"fmt"
	"slices"
)

// TagArray keeps track of which memory block lives in each way of each set.
type TagArray interface {
	Lookup(setID int, tag uint64) (Block, bool)
	Update(block Block)
	Visit(setID, wayID int)
	FindVictim(setID int) Block
	Fill(setID, wayID int, tag uint64) Block
	GetSet(setID int) *Set
	Sets() []Set
	NumSets() int
	NumWays() int
	BlockSize() int
	TotalSize() uint64
	Reset()
}

// NewTagArray creates a tag array in which every way is invalid.
func NewTagArray(
	numSets int,
	numWays int,
	blockSize int,
	victimFinder VictimFinder,
) TagArray {
	t := &tagArrayImpl{
		numSets:      numSets,
		numWays:      numWays,
		blockSize:    blockSize,
		victimFinder: victimFinder,
	}

	t.Reset()

	return t
}

// A Block of a cache is the information that is associated with a cache line.
//
// Blocks returned from a TagArray are copies. Changing them has no effect
// until they are passed back through Update.
type Block struct {
	Tag            uint64
	SetID          int
	WayID          int
	IsValid        bool
	IsDirty        bool
	Data           []byte
	RecencyStamp   uint64
	InsertionStamp uint64
}

func (b Block) clone() Block {
	b.Data = slices.Clone(b.Data)
	return b
}

// A Set is a list of blocks where a certain piece memory can be stored at.
type Set struct {
	Blocks []Block
}

type tagArrayImpl struct {
	numSets      int
	numWays      int
	blockSize    int
	victimFinder VictimFinder
	sets         []Set
}

func (t *tagArrayImpl) NumSets() int {
	return t.numSets
}

func (t *tagArrayImpl) NumWays() int {
	return t.numWays
}

func (t *tagArrayImpl) BlockSize() int {
	return t.blockSize
}

// TotalSize returns the maximum number of bytes can be stored in the cache
func (t *tagArrayImpl) TotalSize() uint64 {
	return uint64(t.numSets) * uint64(t.numWays) * uint64(t.blockSize)
}

// GetSet returns the set with the given index. The returned pointer refers
// to the live set.
func (t *tagArrayImpl) GetSet(setID int) *Set {
	t.setIDMustBeValid(setID)

	return &t.sets[setID]
}

// Lookup finds the valid block in the set that holds the tag.
func (t *tagArrayImpl) Lookup(setID int, tag uint64) (Block, bool) {
	set := t.GetSet(setID)

	found := -1
	for i, block := range set.Blocks {
		if !block.IsValid || block.Tag != tag {
			continue
		}

		t.mustNotHaveDuplicateTag(setID, tag, found, i)
		found = i
	}

	if found < 0 {
		return Block{}, false
	}

	return set.Blocks[found].clone(), true
}

func (t *tagArrayImpl) mustNotHaveDuplicateTag(setID int, tag uint64, a, b int) {
	if a >= 0 {
		panic(fmt.Sprintf(
			"set %d holds tag 0x%x in both way %d and way %d", setID, tag, a, b))
	}
}

// Update writes the block back to the position given by its SetID and WayID.
// The stamps are owned by the victim finder and are not changed.
func (t *tagArrayImpl) Update(block Block) {
	set := t.GetSet(block.SetID)
	t.wayIDMustBeValid(block.WayID)

	if len(block.Data) != t.blockSize {
		panic(fmt.Sprintf("block data must be %d bytes, got %d",
			t.blockSize, len(block.Data)))
	}

	stored := &set.Blocks[block.WayID]
	data := stored.Data
	copy(data, block.Data)

	block.Data = data
	block.RecencyStamp = stored.RecencyStamp
	block.InsertionStamp = stored.InsertionStamp
	*stored = block
}

// Visit tells the victim finder that a block has been accessed.
func (t *tagArrayImpl) Visit(setID, wayID int) {
	t.wayIDMustBeValid(wayID)
	t.victimFinder.Visit(t.GetSet(setID), wayID)
}

// FindVictim returns the block that should hold the next block fetched into
// the set.
func (t *tagArrayImpl) FindVictim(setID int) Block {
	set := t.GetSet(setID)
	wayID := t.victimFinder.FindVictim(set)
	t.wayIDMustBeValid(wayID)

	return set.Blocks[wayID].clone()
}

// Fill places a new, clean, zero-filled block with the given tag into a way.
func (t *tagArrayImpl) Fill(setID, wayID int, tag uint64) Block {
	set := t.GetSet(setID)
	t.wayIDMustBeValid(wayID)

	block := &set.Blocks[wayID]
	block.Tag = tag
	block.IsValid = true
	block.IsDirty = false
	clear(block.Data)

	t.victimFinder.Fill(set, wayID)

	return block.clone()
}

// Sets returns a deep copy of all the sets.
func (t *tagArrayImpl) Sets() []Set {
	sets := make([]Set, len(t.sets))
	for i, set := range t.sets {
		sets[i].Blocks = make([]Block, len(set.Blocks))
		for j, block := range set.Blocks {
			sets[i].Blocks[j] = block.clone()
		}
	}

	return sets
}

// Reset will mark all the blocks in the directory invalid
func (t *tagArrayImpl) Reset() {
	t.sets = make([]Set, t.numSets)
	for i := 0; i < t.numSets; i++ {
		t.sets[i].Blocks = make([]Block, t.numWays)
		for j := 0; j < t.numWays; j++ {
			t.sets[i].Blocks[j] = Block{
				SetID: i,
				WayID: j,
				Data:  make([]byte, t.blockSize),
			}
		}
	}
}

func (t *tagArrayImpl) setIDMustBeValid(setID int) {
	if setID < 0 || setID >= t.numSets {
		panic(fmt.Sprintf("set %d out of range [0, %d)", setID, t.numSets))
	}
}

func (t *tagArrayImpl) wayIDMustBeValid(wayID int) {
	if wayID < 0 || wayID >= t.numWays {
		panic(fmt.Sprintf("way %d out of range [0, %d)", wayID, t.numWays))
	}
}
