package cache

import (
	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
)

func (c *Comp) handleReadHit(t *transaction, block tagging.Block) {
	c.state.tags.Visit(block.SetID, block.WayID)

	t.result.WayIndex = block.WayID
	t.result.Value = block.Data[t.addr.Offset]
	t.result.Action = ActionReadHit
}

// handleReadMiss loads the block regardless of the write policies. The
// backing store is not simulated, so the block arrives zero-filled.
func (c *Comp) handleReadMiss(t *transaction) {
	block := c.allocate(t)

	t.result.Value = block.Data[t.addr.Offset]
	t.result.Action = ActionReadMiss
}
