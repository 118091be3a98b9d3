package cache

import (
	"encoding/json"

	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
)

// BlockData is the content of a block. It is serialized as a list of
// numbers rather than base64 text.
type BlockData []byte

// MarshalJSON writes the bytes as a JSON array of numbers.
func (d BlockData) MarshalJSON() ([]byte, error) {
	values := make([]int, len(d))
	for i, b := range d {
		values[i] = int(b)
	}

	return json.Marshal(values)
}

// UnmarshalJSON reads a JSON array of numbers.
func (d *BlockData) UnmarshalJSON(data []byte) error {
	var values []uint8
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}

	*d = BlockData(values)

	return nil
}

// BlockState is a snapshot of one way.
type BlockState struct {
	Valid          bool      `json:"valid"`
	Dirty          bool      `json:"dirty"`
	Tag            uint64    `json:"tag"`
	Data           BlockData `json:"data"`
	RecencyStamp   uint64    `json:"recencyStamp"`
	InsertionStamp uint64    `json:"insertionStamp"`
}

// SetState is a snapshot of one set.
type SetState struct {
	Index  int          `json:"index"`
	Blocks []BlockState `json:"cacheBlocks"`
}

// CacheState is a snapshot of the geometry and the content of a cache.
type CacheState struct {
	Config        Config     `json:"config"`
	NumSets       int        `json:"numSets"`
	BlockSize     int        `json:"blockSize"`
	Associativity int        `json:"associativity"`
	Sets          []SetState `json:"sets"`
}

func snapshotSets(sets []tagging.Set) []SetState {
	states := make([]SetState, len(sets))
	for i, set := range sets {
		states[i].Index = i
		states[i].Blocks = make([]BlockState, len(set.Blocks))

		for j, block := range set.Blocks {
			states[i].Blocks[j] = BlockState{
				Valid:          block.IsValid,
				Dirty:          block.IsDirty,
				Tag:            block.Tag,
				Data:           BlockData(block.Data),
				RecencyStamp:   block.RecencyStamp,
				InsertionStamp: block.InsertionStamp,
			}
		}
	}

	return states
}
