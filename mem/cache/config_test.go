package cache

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	It("should accept the default config", func() {
		c := DefaultConfig()

		Expect(c.Validate()).To(Succeed())
		Expect(c.NumSets()).To(Equal(8))
	})

	DescribeTable("valid geometries fill the cache exactly",
		func(cacheSize, blockSize, assoc int) {
			c := DefaultConfig()
			c.CacheSizeBytes = cacheSize
			c.BlockSizeBytes = blockSize
			c.Associativity = assoc

			Expect(c.Validate()).To(Succeed())
			Expect(c.NumSets() * c.Associativity * c.BlockSizeBytes).
				To(Equal(c.CacheSizeBytes))
		},
		Entry("direct mapped", 64, 16, 1),
		Entry("2-way", 64, 16, 2),
		Entry("fully associative", 64, 16, 4),
		Entry("large", 32768, 64, 8),
	)

	DescribeTable("invalid geometries",
		func(mutate func(*Config), message string) {
			c := DefaultConfig()
			mutate(&c)

			err := c.Validate()

			Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring(message))
		},
		Entry("zero cache size",
			func(c *Config) { c.CacheSizeBytes = 0 }, "cache size"),
		Entry("negative block size",
			func(c *Config) { c.BlockSizeBytes = -4 }, "block size"),
		Entry("block size not a power of two",
			func(c *Config) { c.BlockSizeBytes = 24 }, "power of two"),
		Entry("associativity zero",
			func(c *Config) { c.Associativity = 0 }, "associativity"),
		Entry("associativity above block count",
			func(c *Config) { c.Associativity = 64 }, "associativity"),
		Entry("partial set",
			func(c *Config) { c.CacheSizeBytes = 96; c.Associativity = 2 },
			"multiple of the set size"),
		Entry("sets not a power of two",
			func(c *Config) {
				c.CacheSizeBytes = 96
				c.BlockSizeBytes = 16
				c.Associativity = 2
			},
			"number of sets"),
		Entry("address width zero",
			func(c *Config) { c.AddressWidth = 0 }, "address width"),
		Entry("address width too small",
			func(c *Config) { c.AddressWidth = 7 }, "address width"),
		Entry("unknown replacement",
			func(c *Config) { c.ReplacementPolicy = "MRU" }, "replacement"),
		Entry("unknown write policy",
			func(c *Config) { c.WritePolicy = "WRITE_AROUND" }, "write policy"),
		Entry("unknown write miss policy",
			func(c *Config) { c.WriteMissPolicy = "" }, "write miss policy"),
	)
})

var _ = Describe("Policy names", func() {
	It("should parse names case-insensitively", func() {
		r, err := ParseReplacementPolicy("lru")
		Expect(err).NotTo(HaveOccurred())
		Expect(r).To(Equal(ReplacementLRU))

		w, err := ParseWritePolicy("write-through")
		Expect(err).NotTo(HaveOccurred())
		Expect(w).To(Equal(WriteThrough))

		m, err := ParseWriteMissPolicy(" No_Write_Allocate ")
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(Equal(NoWriteAllocate))
	})

	It("should reject unknown names", func() {
		_, err := ParseReplacementPolicy("clock")
		Expect(errors.Is(err, ErrUnknownPolicy)).To(BeTrue())

		_, err = ParseWritePolicy("")
		Expect(errors.Is(err, ErrUnknownPolicy)).To(BeTrue())

		_, err = ParseWriteMissPolicy("allocate")
		Expect(errors.Is(err, ErrUnknownPolicy)).To(BeTrue())
	})
})
