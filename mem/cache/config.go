package cache

import (
	"fmt"
	"math/bits"
)

// DefaultAddressWidth is the number of address bits used when a config does
// not set one.
const DefaultAddressWidth = 32

// Config describes the geometry and the policies of a cache.
type Config struct {
	CacheSizeBytes    int               `json:"cacheSizeBytes" yaml:"cacheSizeBytes"`
	BlockSizeBytes    int               `json:"blockSizeBytes" yaml:"blockSizeBytes"`
	Associativity     int               `json:"associativity" yaml:"associativity"`
	ReplacementPolicy ReplacementPolicy `json:"replacementPolicy" yaml:"replacementPolicy"`
	WritePolicy       WritePolicy       `json:"writePolicy" yaml:"writePolicy"`
	WriteMissPolicy   WriteMissPolicy   `json:"writeMissPolicy" yaml:"writeMissPolicy"`

	// AddressWidth is the number of bits an address may use.
	AddressWidth int `json:"addressWidth" yaml:"addressWidth"`

	// RandomSeed seeds the RANDOM replacement policy.
	RandomSeed uint64 `json:"randomSeed" yaml:"randomSeed"`

	// ResetStatsOnReconfigure clears the statistics when this config is
	// applied to an existing cache.
	ResetStatsOnReconfigure bool `json:"resetStatsOnReconfigure" yaml:"resetStatsOnReconfigure"`
}

// DefaultConfig returns a 1 KiB, 4-way cache with 32-byte blocks, FIFO
// replacement, write-back and write-allocate.
func DefaultConfig() Config {
	return Config{
		CacheSizeBytes:          1024,
		BlockSizeBytes:          32,
		Associativity:           4,
		ReplacementPolicy:       ReplacementFIFO,
		WritePolicy:             WriteBack,
		WriteMissPolicy:         WriteAllocate,
		AddressWidth:            DefaultAddressWidth,
		ResetStatsOnReconfigure: true,
	}
}

// NumBlocks returns the total number of blocks the cache can hold.
func (c Config) NumBlocks() int {
	if c.BlockSizeBytes <= 0 {
		return 0
	}

	return c.CacheSizeBytes / c.BlockSizeBytes
}

// NumSets returns the number of sets.
func (c Config) NumSets() int {
	setSize := c.BlockSizeBytes * c.Associativity
	if setSize <= 0 {
		return 0
	}

	return c.CacheSizeBytes / setSize
}

// OffsetBits returns the number of address bits that select a byte in a
// block.
func (c Config) OffsetBits() int {
	return log2(c.BlockSizeBytes)
}

// SetIndexBits returns the number of address bits that select a set. It is
// 0 for a fully associative cache.
func (c Config) SetIndexBits() int {
	return log2(c.NumSets())
}

// Validate checks every geometry and policy constraint. The returned error
// wraps ErrInvalidConfig and names the first violated constraint.
func (c Config) Validate() error {
	checks := []func() error{
		c.sizesMustBePositive,
		c.blockSizeMustBePowerOfTwo,
		c.associativityMustBeInRange,
		c.mustBeFullSets,
		c.numSetsMustBePowerOfTwo,
		c.addressWidthMustFitGeometry,
		c.policiesMustBeKnown,
	}

	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}

	return nil
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func (c Config) sizesMustBePositive() error {
	if c.CacheSizeBytes <= 0 {
		return invalidConfig("cache size must be positive, got %d",
			c.CacheSizeBytes)
	}

	if c.BlockSizeBytes <= 0 {
		return invalidConfig("block size must be positive, got %d",
			c.BlockSizeBytes)
	}

	return nil
}

func (c Config) blockSizeMustBePowerOfTwo() error {
	if !isPowerOfTwo(c.BlockSizeBytes) {
		return invalidConfig("block size %d is not a power of two",
			c.BlockSizeBytes)
	}

	return nil
}

func (c Config) associativityMustBeInRange() error {
	if c.Associativity < 1 || c.Associativity > c.NumBlocks() {
		return invalidConfig("associativity %d must be between 1 and %d",
			c.Associativity, c.NumBlocks())
	}

	return nil
}

func (c Config) mustBeFullSets() error {
	setSize := c.BlockSizeBytes * c.Associativity
	if c.CacheSizeBytes%setSize != 0 {
		return invalidConfig(
			"cache size %d is not a multiple of the set size %d",
			c.CacheSizeBytes, setSize)
	}

	return nil
}

func (c Config) numSetsMustBePowerOfTwo() error {
	if !isPowerOfTwo(c.NumSets()) {
		return invalidConfig("number of sets %d is not a power of two",
			c.NumSets())
	}

	return nil
}

func (c Config) addressWidthMustFitGeometry() error {
	if c.AddressWidth < 1 || c.AddressWidth > 64 {
		return invalidConfig("address width %d must be between 1 and 64",
			c.AddressWidth)
	}

	if c.OffsetBits()+c.SetIndexBits() > c.AddressWidth {
		return invalidConfig(
			"address width %d cannot hold %d offset bits and %d set bits",
			c.AddressWidth, c.OffsetBits(), c.SetIndexBits())
	}

	return nil
}

func (c Config) policiesMustBeKnown() error {
	if !c.ReplacementPolicy.valid() {
		return invalidConfig("unknown replacement policy %q",
			c.ReplacementPolicy)
	}

	if !c.WritePolicy.valid() {
		return invalidConfig("unknown write policy %q", c.WritePolicy)
	}

	if !c.WriteMissPolicy.valid() {
		return invalidConfig("unknown write miss policy %q", c.WriteMissPolicy)
	}

	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func log2(n int) int {
	if n <= 0 {
		return 0
	}

	return bits.TrailingZeros(uint(n))
}
