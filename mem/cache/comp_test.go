package cache

import (
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cachesim/sim/hooking"
)

func buildCache(size, blockSize, assoc int, p ReplacementPolicy) *Comp {
	c, err := MakeBuilder().
		WithCacheSize(size).
		WithBlockSize(blockSize).
		WithAssociativity(assoc).
		WithReplacementPolicy(p).
		Build("Cache")
	Expect(err).NotTo(HaveOccurred())

	return c
}

func mustRead(c *Comp, addr uint64) AccessResult {
	r, err := c.Read(addr)
	Expect(err).NotTo(HaveOccurred())

	return r
}

func mustWrite(
	c *Comp,
	addr uint64,
	value byte,
	wp WritePolicy,
	wmp WriteMissPolicy,
) AccessResult {
	r, err := c.Write(addr, value, wp, wmp)
	Expect(err).NotTo(HaveOccurred())

	return r
}

var _ = Describe("Builder", func() {
	It("should build the default cache", func() {
		c, err := MakeBuilder().Build("Cache")

		Expect(err).NotTo(HaveOccurred())
		Expect(c.Name()).To(Equal("Cache"))

		state := c.State()
		Expect(state.NumSets).To(Equal(8))
		Expect(state.Associativity).To(Equal(4))
		Expect(state.BlockSize).To(Equal(32))
		Expect(state.Sets).To(HaveLen(8))
		for _, set := range state.Sets {
			Expect(set.Blocks).To(HaveLen(4))
			for _, block := range set.Blocks {
				Expect(block.Valid).To(BeFalse())
				Expect(block.Data).To(HaveLen(32))
			}
		}
	})

	It("should refuse an invalid config", func() {
		_, err := MakeBuilder().WithBlockSize(24).Build("Cache")

		Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue())
	})

	It("should not share hooks between builders", func() {
		base := MakeBuilder().WithHook(hooking.NewCountingHook())
		b1 := base.WithHook(hooking.NewCountingHook())
		b2 := base.WithHook(hooking.NewCountingHook())

		c1, err := b1.Build("C1")
		Expect(err).NotTo(HaveOccurred())
		c2, err := b2.Build("C2")
		Expect(err).NotTo(HaveOccurred())

		Expect(c1.NumHooks()).To(Equal(2))
		Expect(c2.NumHooks()).To(Equal(2))
		Expect(c1.Hooks()[1]).NotTo(BeIdenticalTo(c2.Hooks()[1]))
	})
})

var _ = Describe("Comp", func() {
	Context("direct mapped", func() {
		var c *Comp

		BeforeEach(func() {
			c = buildCache(64, 16, 1, ReplacementLRU)
		})

		It("should miss and then hit", func() {
			r := mustRead(c, 0)
			Expect(r.Hit).To(BeFalse())
			Expect(r.Action).To(Equal(ActionReadMiss))
			Expect(r.WayIndex).To(Equal(0))
			Expect(r.Evicted).To(BeFalse())
			Expect(r.Value).To(Equal(byte(0)))

			r = mustRead(c, 0)
			Expect(r.Hit).To(BeTrue())
			Expect(r.Action).To(Equal(ActionReadHit))
			Expect(r.WayIndex).To(Equal(0))
			Expect(r.Hits).To(Equal(uint64(1)))
			Expect(r.Misses).To(Equal(uint64(1)))
		})

		It("should hit on another byte of the same block", func() {
			mustRead(c, 0x20)

			r := mustRead(c, 0x2f)

			Expect(r.Hit).To(BeTrue())
			Expect(r.SetIndex).To(Equal(2))
			Expect(r.Offset).To(Equal(0xf))
		})

		It("should evict the block of a conflicting address", func() {
			mustRead(c, 0)

			r := mustRead(c, 64)

			Expect(r.Hit).To(BeFalse())
			Expect(r.Tag).To(Equal(uint64(1)))
			Expect(r.Evicted).To(BeTrue())
			Expect(r.EvictedTag).To(Equal(uint64(0)))
			Expect(r.EvictedDirty).To(BeFalse())
			Expect(c.Stats().Evictions).To(Equal(uint64(1)))
		})

		It("should reject an address wider than the address width", func() {
			mustRead(c, 0)
			before := c.State()

			_, err := c.Read(1 << 40)

			Expect(errors.Is(err, ErrInvalidAddress)).To(BeTrue())
			Expect(c.State()).To(Equal(before))
			Expect(c.Stats().Accesses()).To(Equal(uint64(1)))
		})

		It("should assign a new id to every access", func() {
			r1 := mustRead(c, 0)
			r2 := mustRead(c, 0)

			Expect(r1.ID).NotTo(BeEmpty())
			Expect(r1.ID).NotTo(Equal(r2.ID))
		})
	})

	Context("2-way set associative", func() {
		// Addresses 0, 32 and 64 all map to set 0 with tags 0, 1 and 2.

		It("should evict the oldest block under FIFO", func() {
			c := buildCache(64, 16, 2, ReplacementFIFO)

			mustRead(c, 0)
			mustRead(c, 32)
			Expect(mustRead(c, 0).Hit).To(BeTrue())

			r := mustRead(c, 64)

			Expect(r.Evicted).To(BeTrue())
			Expect(r.EvictedTag).To(Equal(uint64(0)))
			Expect(r.WayIndex).To(Equal(0))
		})

		It("should evict the least recently used block under LRU", func() {
			c := buildCache(64, 16, 2, ReplacementLRU)

			mustRead(c, 0)
			mustRead(c, 32)
			Expect(mustRead(c, 0).Hit).To(BeTrue())

			r := mustRead(c, 64)

			Expect(r.Evicted).To(BeTrue())
			Expect(r.EvictedTag).To(Equal(uint64(1)))
			Expect(r.WayIndex).To(Equal(1))
		})

		It("should treat a write hit as a use under LRU", func() {
			c := buildCache(64, 16, 2, ReplacementLRU)

			mustRead(c, 0)
			mustRead(c, 32)
			mustWrite(c, 0, 1, WriteBack, WriteAllocate)

			r := mustRead(c, 64)

			Expect(r.EvictedTag).To(Equal(uint64(1)))
		})

		It("should pick the same victims for the same random seed", func() {
			run := func() []uint64 {
				c, err := MakeBuilder().
					WithCacheSize(64).
					WithBlockSize(16).
					WithAssociativity(4).
					WithReplacementPolicy(ReplacementRandom).
					WithRandomSeed(7).
					Build("Cache")
				Expect(err).NotTo(HaveOccurred())

				var evicted []uint64
				for i := range uint64(32) {
					r := mustRead(c, i*16)
					if r.Evicted {
						evicted = append(evicted, r.EvictedTag)
					}
				}

				return evicted
			}

			first := run()

			Expect(first).To(HaveLen(28))
			Expect(run()).To(Equal(first))
		})
	})

	Context("writes", func() {
		var c *Comp

		BeforeEach(func() {
			c = buildCache(64, 16, 2, ReplacementFIFO)
		})

		It("should allocate on a write miss and mark the block dirty", func() {
			r := mustWrite(c, 3, 0x5a, WriteBack, WriteAllocate)

			Expect(r.Hit).To(BeFalse())
			Expect(r.Action).To(Equal(ActionWriteMissAllocate))
			Expect(r.WayIndex).To(Equal(0))
			Expect(r.WritePolicy).To(Equal(WriteBack))
			Expect(r.WriteMissPolicy).To(Equal(WriteAllocate))

			block := c.State().Sets[0].Blocks[0]
			Expect(block.Valid).To(BeTrue())
			Expect(block.Dirty).To(BeTrue())
			Expect(block.Data[3]).To(Equal(byte(0x5a)))

			read := mustRead(c, 3)
			Expect(read.Hit).To(BeTrue())
			Expect(read.Value).To(Equal(byte(0x5a)))
		})

		It("should report a dirty eviction", func() {
			mustWrite(c, 0, 5, WriteBack, WriteAllocate)
			mustRead(c, 32)

			r := mustRead(c, 64)

			Expect(r.Evicted).To(BeTrue())
			Expect(r.EvictedTag).To(Equal(uint64(0)))
			Expect(r.EvictedDirty).To(BeTrue())
			Expect(c.Stats().WriteBacks).To(Equal(uint64(1)))
		})

		It("should keep a block clean on a write-through hit", func() {
			mustRead(c, 16)

			r := mustWrite(c, 17, 9, WriteThrough, WriteAllocate)

			Expect(r.Hit).To(BeTrue())
			Expect(r.Action).To(Equal(ActionWriteHitWriteThrough))

			block := c.State().Sets[1].Blocks[0]
			Expect(block.Dirty).To(BeFalse())
			Expect(block.Data[1]).To(Equal(byte(9)))
			Expect(c.Stats().StoreEvents).To(Equal(uint64(1)))
		})

		It("should allocate a clean block on a write-through miss", func() {
			var stores []StoreEvent
			c.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				if ctx.Pos == HookPosStore {
					stores = append(stores, ctx.Item.(StoreEvent))
				}
			}))

			r := mustWrite(c, 18, 0x33, WriteThrough, WriteAllocate)

			Expect(r.Hit).To(BeFalse())
			Expect(r.Action).To(Equal(ActionWriteMissAllocate))
			Expect(r.WayIndex).To(Equal(0))

			block := c.State().Sets[1].Blocks[0]
			Expect(block.Valid).To(BeTrue())
			Expect(block.Dirty).To(BeFalse())
			Expect(block.Data[2]).To(Equal(byte(0x33)))

			Expect(stores).To(HaveLen(1))
			Expect(stores[0].Kind).To(Equal(StoreWriteThrough))
			Expect(stores[0].Address).To(Equal(uint64(18)))
			Expect(stores[0].Data).To(Equal(BlockData{0x33}))
			Expect(stores[0].AccessID).To(Equal(r.ID))
			Expect(c.Stats().StoreEvents).To(Equal(uint64(1)))
		})

		It("should mark the block dirty on a write-back hit", func() {
			mustRead(c, 16)

			r := mustWrite(c, 17, 9, WriteBack, WriteAllocate)

			Expect(r.Action).To(Equal(ActionWriteHitWriteBack))
			Expect(c.State().Sets[1].Blocks[0].Dirty).To(BeTrue())
		})

		It("should leave the cache unchanged without write allocate", func() {
			mustRead(c, 0)
			before := c.State()

			r := mustWrite(c, 16, 4, WriteBack, NoWriteAllocate)

			Expect(r.Hit).To(BeFalse())
			Expect(r.Action).To(Equal(ActionWriteMissNoAllocate))
			Expect(r.WayIndex).To(Equal(-1))
			Expect(r.Evicted).To(BeFalse())
			Expect(c.State()).To(Equal(before))
			Expect(c.Stats().Misses).To(Equal(uint64(2)))
		})

		It("should use the configured policies when none are given", func() {
			r, err := c.WriteDefault(0, 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(r.WritePolicy).To(Equal(WriteBack))
			Expect(r.WriteMissPolicy).To(Equal(WriteAllocate))
		})

		It("should reject an unknown policy without changing anything", func() {
			before := c.State()

			_, err := c.Write(0, 1, "WRITE_AROUND", WriteAllocate)
			Expect(errors.Is(err, ErrUnknownPolicy)).To(BeTrue())

			_, err = c.Write(0, 1, WriteBack, "ALLOCATE")
			Expect(errors.Is(err, ErrUnknownPolicy)).To(BeTrue())

			Expect(c.State()).To(Equal(before))
			Expect(c.Stats()).To(Equal(Statistics{}))
		})
	})

	It("should compute the hit rate", func() {
		c := buildCache(64, 16, 1, ReplacementLRU)

		mustRead(c, 0)
		mustRead(c, 0)
		mustRead(c, 16)

		stats := c.Stats()
		Expect(stats.Hits).To(Equal(uint64(1)))
		Expect(stats.Misses).To(Equal(uint64(2)))
		Expect(stats.Reads).To(Equal(uint64(3)))
		Expect(stats.HitRate()).To(BeNumerically("~", 1.0/3.0, 1e-9))
		Expect(stats.HitRate() + stats.MissRate()).To(BeNumerically("~", 1, 1e-9))
	})

	It("should report zero hit rate before any access", func() {
		Expect(Statistics{}.HitRate()).To(BeZero())
		Expect(Statistics{}.MissRate()).To(BeZero())
	})

	Context("reconfigure", func() {
		var c *Comp

		BeforeEach(func() {
			c = buildCache(64, 16, 2, ReplacementFIFO)
			mustWrite(c, 0, 1, WriteBack, WriteAllocate)
			mustRead(c, 0)
		})

		It("should keep everything when the config is invalid", func() {
			stateBefore := c.State()
			statsBefore := c.Stats()

			cfg := DefaultConfig()
			cfg.BlockSizeBytes = 24
			err := c.Reconfigure(cfg)

			Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue())
			Expect(c.State()).To(Equal(stateBefore))
			Expect(c.Stats()).To(Equal(statsBefore))
		})

		It("should start over with the new geometry", func() {
			cfg := DefaultConfig()
			cfg.CacheSizeBytes = 256
			cfg.BlockSizeBytes = 8
			cfg.Associativity = 8

			Expect(c.Reconfigure(cfg)).To(Succeed())

			state := c.State()
			Expect(state.NumSets).To(Equal(4))
			Expect(state.Config).To(Equal(cfg))
			for _, set := range state.Sets {
				for _, block := range set.Blocks {
					Expect(block.Valid).To(BeFalse())
				}
			}
			Expect(c.Stats()).To(Equal(Statistics{}))
			Expect(mustRead(c, 0).Hit).To(BeFalse())
		})

		It("should keep the statistics if asked to", func() {
			cfg := DefaultConfig()
			cfg.ResetStatsOnReconfigure = false

			Expect(c.Reconfigure(cfg)).To(Succeed())

			Expect(c.Stats().Accesses()).To(Equal(uint64(2)))
		})
	})

	Context("flush", func() {
		It("should write back every dirty block", func() {
			c := buildCache(64, 16, 2, ReplacementFIFO)
			mustWrite(c, 0, 1, WriteBack, WriteAllocate)
			mustWrite(c, 16, 2, WriteBack, WriteAllocate)
			mustRead(c, 32)

			Expect(c.Flush().FlushedBlocks).To(Equal(2))

			for _, set := range c.State().Sets {
				for _, block := range set.Blocks {
					Expect(block.Dirty).To(BeFalse())
				}
			}
			Expect(mustRead(c, 0).Hit).To(BeTrue())
			Expect(c.Stats().WriteBacks).To(Equal(uint64(2)))
			Expect(c.Flush().FlushedBlocks).To(Equal(0))
		})
	})

	Context("hooks", func() {
		var (
			mockCtrl *gomock.Controller
			hook     *MockHook
			c        *Comp
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			hook = NewMockHook(mockCtrl)

			var err error
			c, err = MakeBuilder().
				WithCacheSize(64).
				WithBlockSize(16).
				WithAssociativity(1).
				WithHook(hook).
				Build("Cache")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should invoke the access hook with the result", func() {
			hook.EXPECT().Func(gomock.Any()).Do(func(ctx hooking.HookCtx) {
				Expect(ctx.Pos).To(BeIdenticalTo(HookPosAccess))
				Expect(ctx.Domain).To(BeIdenticalTo(c))

				r := ctx.Item.(AccessResult)
				Expect(r.Action).To(Equal(ActionReadMiss))
			})

			mustRead(c, 0)
		})

		It("should report the write-back before the access", func() {
			hook.EXPECT().Func(gomock.Any())
			mustWrite(c, 0, 7, WriteBack, WriteAllocate)

			gomock.InOrder(
				hook.EXPECT().Func(gomock.Any()).Do(func(ctx hooking.HookCtx) {
					Expect(ctx.Pos).To(BeIdenticalTo(HookPosStore))

					e := ctx.Item.(StoreEvent)
					Expect(e.Kind).To(Equal(StoreEvictWriteBack))
					Expect(e.Address).To(Equal(uint64(0)))
					Expect(e.Data[0]).To(Equal(byte(7)))
					Expect(e.Data).To(HaveLen(16))
				}),
				hook.EXPECT().Func(gomock.Any()).Do(func(ctx hooking.HookCtx) {
					Expect(ctx.Pos).To(BeIdenticalTo(HookPosAccess))
					Expect(ctx.Item.(AccessResult).EvictedDirty).To(BeTrue())
				}),
			)

			mustRead(c, 64)
		})

		It("should report a no-allocate write as a store", func() {
			gomock.InOrder(
				hook.EXPECT().Func(gomock.Any()).Do(func(ctx hooking.HookCtx) {
					e := ctx.Item.(StoreEvent)
					Expect(e.Kind).To(Equal(StoreNoWriteAllocate))
					Expect(e.Address).To(Equal(uint64(0x21)))
					Expect(e.Data).To(Equal(BlockData{3}))
				}),
				hook.EXPECT().Func(gomock.Any()),
			)

			mustWrite(c, 0x21, 3, WriteBack, NoWriteAllocate)
		})

		It("should not invoke hooks for a rejected access", func() {
			_, err := c.Read(1 << 33)

			Expect(err).To(HaveOccurred())
		})

		It("should invoke the reconfigure hook", func() {
			cfg := DefaultConfig()

			hook.EXPECT().Func(gomock.Any()).Do(func(ctx hooking.HookCtx) {
				Expect(ctx.Pos).To(BeIdenticalTo(HookPosReconfigure))
				Expect(ctx.Item).To(Equal(cfg))
			})

			Expect(c.Reconfigure(cfg)).To(Succeed())
		})
	})

	It("should count every concurrent access exactly once", func() {
		c := buildCache(1024, 32, 4, ReplacementLRU)

		const numWorkers = 8
		const numAccesses = 200

		var wg sync.WaitGroup
		for w := range numWorkers {
			wg.Add(1)

			go func() {
				defer GinkgoRecover()
				defer wg.Done()

				for i := range numAccesses {
					addr := uint64((w*numAccesses + i) * 8 % 4096)
					if i%2 == 0 {
						_, err := c.Read(addr)
						Expect(err).NotTo(HaveOccurred())
					} else {
						_, err := c.WriteDefault(addr, byte(i))
						Expect(err).NotTo(HaveOccurred())
					}
				}
			}()
		}
		wg.Wait()

		stats := c.Stats()
		Expect(stats.Accesses()).To(Equal(uint64(numWorkers * numAccesses)))
		Expect(stats.Reads + stats.Writes).To(Equal(stats.Accesses()))

		for _, set := range c.State().Sets {
			tags := map[uint64]bool{}
			for _, block := range set.Blocks {
				if !block.Valid {
					continue
				}
				Expect(tags).NotTo(HaveKey(block.Tag))
				tags[block.Tag] = true
			}
		}
	})
})
