package cache

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
	"github.com/sarchlab/cachesim/sim/hooking"
)

type accessRequest struct {
	op          Operation
	address     uint64
	value       byte
	writePolicy WritePolicy
	missPolicy  WriteMissPolicy
}

// A transaction carries one access through the cache. Nothing it collects
// becomes visible until commit.
type transaction struct {
	req    accessRequest
	addr   DecodedAddress
	writer writeStrategy
	result AccessResult
	stores []StoreEvent
}

func (t *transaction) store(kind StoreKind, addr uint64, data []byte) {
	t.stores = append(t.stores, StoreEvent{
		AccessID: t.result.ID,
		Kind:     kind,
		Address:  addr,
		Data:     BlockData(data),
	})
}

// access runs decode, lookup, the hit or miss path, and commit while holding
// the lock. Every check that can fail runs before the tag array is touched.
func (c *Comp) access(req accessRequest) (AccessResult, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	s := c.state

	t := &transaction{req: req}
	if req.op == OpWrite {
		if err := c.resolveWritePolicies(t); err != nil {
			return AccessResult{}, err
		}
	}

	decoded, err := s.decoder.Decode(req.address)
	if err != nil {
		logrus.WithError(err).WithField("cache", c.name).
			Warn("rejected cache access")

		return AccessResult{}, err
	}

	t.addr = decoded
	t.result = AccessResult{
		ID:        c.idGenerator.Generate(),
		Address:   decoded.Address,
		Operation: req.op,
		Tag:       decoded.Tag,
		SetIndex:  decoded.SetIndex,
		Offset:    decoded.Offset,
		WayIndex:  -1,
	}

	if req.op == OpWrite {
		t.result.WritePolicy = t.req.writePolicy
		t.result.WriteMissPolicy = t.req.missPolicy
	}

	block, hit := s.tags.Lookup(decoded.SetIndex, decoded.Tag)

	switch {
	case req.op == OpRead && hit:
		c.handleReadHit(t, block)
	case req.op == OpRead:
		c.handleReadMiss(t)
	case hit:
		c.handleWriteHit(t, block)
	default:
		c.handleWriteMiss(t)
	}

	t.result.Hit = hit
	c.commit(t)

	return t.result, nil
}

func (c *Comp) resolveWritePolicies(t *transaction) error {
	if t.req.writePolicy == "" {
		t.req.writePolicy = c.state.config.WritePolicy
	}

	if t.req.missPolicy == "" {
		t.req.missPolicy = c.state.config.WriteMissPolicy
	}

	if !t.req.writePolicy.valid() {
		return fmt.Errorf("%w: write policy %q", ErrUnknownPolicy,
			t.req.writePolicy)
	}

	if !t.req.missPolicy.valid() {
		return fmt.Errorf("%w: write miss policy %q", ErrUnknownPolicy,
			t.req.missPolicy)
	}

	t.writer = writeStrategyFor(t.req.writePolicy)

	return nil
}

// allocate places the block of the transaction into its set, evicting a
// victim if the set is full. A dirty victim is written back.
func (c *Comp) allocate(t *transaction) tagging.Block {
	s := c.state
	setID := t.addr.SetIndex

	victim := s.tags.FindVictim(setID)
	if victim.IsValid {
		t.result.Evicted = true
		t.result.EvictedTag = victim.Tag
		t.result.EvictedDirty = victim.IsDirty

		if victim.IsDirty {
			t.store(StoreEvictWriteBack,
				s.decoder.Encode(victim.Tag, setID, 0), victim.Data)
		}
	}

	block := s.tags.Fill(setID, victim.WayID, t.addr.Tag)
	t.result.WayIndex = block.WayID

	return block
}

func (c *Comp) commit(t *transaction) {
	c.stats.recordAccess(t.req.op, t.result.Hit)

	if t.result.Evicted {
		c.stats.Evictions++
	}

	for _, e := range t.stores {
		if e.Kind == StoreEvictWriteBack {
			c.stats.WriteBacks++
		} else {
			c.stats.StoreEvents++
		}
	}

	t.result.Hits = c.stats.Hits
	t.result.Misses = c.stats.Misses

	for _, e := range t.stores {
		c.invokeStoreHook(e)
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosAccess,
		Item:   t.result,
	})
}
