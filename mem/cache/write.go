package cache

import (
	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
)

// A writeStrategy applies a write to a block that is present in the cache.
type writeStrategy interface {
	hitAction() Action
	writeBlock(t *transaction, block tagging.Block) tagging.Block
}

var (
	theWriteBackStrategy    writeStrategy = writeBackStrategy{}
	theWriteThroughStrategy writeStrategy = writeThroughStrategy{}
)

func writeStrategyFor(p WritePolicy) writeStrategy {
	if p == WriteThrough {
		return theWriteThroughStrategy
	}

	return theWriteBackStrategy
}

// writeBackStrategy keeps the new data in the cache only and marks the block
// dirty.
type writeBackStrategy struct{}

func (writeBackStrategy) hitAction() Action {
	return ActionWriteHitWriteBack
}

func (writeBackStrategy) writeBlock(
	t *transaction,
	block tagging.Block,
) tagging.Block {
	block.Data[t.addr.Offset] = t.req.value
	block.IsDirty = true

	return block
}

// writeThroughStrategy sends every write to the backing store, so the block
// stays clean.
type writeThroughStrategy struct{}

func (writeThroughStrategy) hitAction() Action {
	return ActionWriteHitWriteThrough
}

func (writeThroughStrategy) writeBlock(
	t *transaction,
	block tagging.Block,
) tagging.Block {
	block.Data[t.addr.Offset] = t.req.value
	block.IsDirty = false

	t.store(StoreWriteThrough, t.addr.Address, []byte{t.req.value})

	return block
}

func (c *Comp) handleWriteHit(t *transaction, block tagging.Block) {
	block = t.writer.writeBlock(t, block)
	c.state.tags.Update(block)
	c.state.tags.Visit(block.SetID, block.WayID)

	t.result.WayIndex = block.WayID
	t.result.Value = t.req.value
	t.result.Action = t.writer.hitAction()
}

func (c *Comp) handleWriteMiss(t *transaction) {
	t.result.Value = t.req.value

	if t.req.missPolicy == NoWriteAllocate {
		t.store(StoreNoWriteAllocate, t.addr.Address, []byte{t.req.value})
		t.result.Action = ActionWriteMissNoAllocate

		return
	}

	block := c.allocate(t)
	block = t.writer.writeBlock(t, block)
	c.state.tags.Update(block)

	t.result.Action = ActionWriteMissAllocate
}
