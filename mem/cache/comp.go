package cache

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
	"github.com/sarchlab/cachesim/sim/hooking"
	"github.com/sarchlab/cachesim/sim/id"
)

// state is everything that is replaced as a whole when the cache is
// reconfigured.
type state struct {
	config  Config
	decoder Decoder
	tags    tagging.TagArray
}

// A Comp is a simulated cache. All the methods are safe for concurrent use;
// accesses, flushes and reconfigurations are applied one at a time.
type Comp struct {
	hooking.HookableBase

	name        string
	idGenerator id.IDGenerator

	lock  sync.Mutex
	state *state
	stats Statistics
}

// Name returns the name of the cache.
func (c *Comp) Name() string {
	return c.name
}

// Config returns the config currently in effect.
func (c *Comp) Config() Config {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.config
}

// Decoder returns the address decoder of the current geometry.
func (c *Comp) Decoder() Decoder {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.decoder
}

// Stats returns a copy of the statistics.
func (c *Comp) Stats() Statistics {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.stats
}

// ResetStats clears the statistics. The cache content is kept.
func (c *Comp) ResetStats() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.stats = Statistics{}
}

// State returns a deep copy of the geometry and of every way.
func (c *Comp) State() CacheState {
	c.lock.Lock()
	defer c.lock.Unlock()

	s := c.state

	return CacheState{
		Config:        s.config,
		NumSets:       s.tags.NumSets(),
		BlockSize:     s.tags.BlockSize(),
		Associativity: s.tags.NumWays(),
		Sets:          snapshotSets(s.tags.Sets()),
	}
}

// Read reads the byte at the address.
func (c *Comp) Read(addr uint64) (AccessResult, error) {
	return c.access(accessRequest{
		op:      OpRead,
		address: addr,
	})
}

// Write writes the byte to the address with the given policies. Empty
// policies fall back to the ones in the config.
func (c *Comp) Write(
	addr uint64,
	value byte,
	writePolicy WritePolicy,
	missPolicy WriteMissPolicy,
) (AccessResult, error) {
	return c.access(accessRequest{
		op:          OpWrite,
		address:     addr,
		value:       value,
		writePolicy: writePolicy,
		missPolicy:  missPolicy,
	})
}

// WriteDefault writes the byte to the address with the configured policies.
func (c *Comp) WriteDefault(addr uint64, value byte) (AccessResult, error) {
	return c.Write(addr, value, "", "")
}

// Reconfigure replaces the cache with an empty one of the new geometry. If
// the config is invalid, the error wraps ErrInvalidConfig and the cache is
// not changed.
func (c *Comp) Reconfigure(config Config) error {
	s, err := MakeBuilder().WithConfig(config).buildState()
	if err != nil {
		logrus.WithError(err).WithField("cache", c.name).
			Warn("rejected cache reconfiguration")

		return err
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	c.state = s
	if config.ResetStatsOnReconfigure {
		c.stats = Statistics{}
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosReconfigure,
		Item:   config,
	})

	logrus.WithFields(logrus.Fields{
		"cache":         c.name,
		"size":          config.CacheSizeBytes,
		"blockSize":     config.BlockSizeBytes,
		"associativity": config.Associativity,
		"numSets":       config.NumSets(),
		"replacement":   config.ReplacementPolicy,
	}).Info("cache reconfigured")

	return nil
}

// FlushResult reports what a flush did.
type FlushResult struct {
	FlushedBlocks int `json:"flushedBlocks"`
}

// Flush writes every dirty block back to the backing store and marks it
// clean. The blocks stay valid.
func (c *Comp) Flush() FlushResult {
	c.lock.Lock()
	defer c.lock.Unlock()

	s := c.state

	var events []StoreEvent
	for setID, set := range s.tags.Sets() {
		for _, block := range set.Blocks {
			if !block.IsValid || !block.IsDirty {
				continue
			}

			events = append(events, StoreEvent{
				Kind:    StoreFlushWriteBack,
				Address: s.decoder.Encode(block.Tag, setID, 0),
				Data:    BlockData(block.Data),
			})

			block.IsDirty = false
			s.tags.Update(block)
			c.stats.WriteBacks++
		}
	}

	for _, e := range events {
		c.invokeStoreHook(e)
	}

	return FlushResult{FlushedBlocks: len(events)}
}

func (c *Comp) invokeStoreHook(e StoreEvent) {
	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosStore,
		Item:   e,
	})
}
