package cache

import (
	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
	"github.com/sarchlab/cachesim/sim/hooking"
	"github.com/sarchlab/cachesim/sim/id"
)

// Builder can build caches.
type Builder struct {
	config      Config
	idGenerator id.IDGenerator
	hooks       []hooking.Hook
}

// MakeBuilder creates a new builder with the default config.
func MakeBuilder() Builder {
	return Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole config of the builder.
func (b Builder) WithConfig(config Config) Builder {
	b.config = config
	return b
}

// WithCacheSize sets the total capacity in bytes.
func (b Builder) WithCacheSize(byteSize int) Builder {
	b.config.CacheSizeBytes = byteSize
	return b
}

// WithBlockSize sets the size of a cache line in bytes.
func (b Builder) WithBlockSize(byteSize int) Builder {
	b.config.BlockSizeBytes = byteSize
	return b
}

// WithAssociativity sets the number of ways per set.
func (b Builder) WithAssociativity(numWays int) Builder {
	b.config.Associativity = numWays
	return b
}

// WithReplacementPolicy sets how victims are chosen.
func (b Builder) WithReplacementPolicy(p ReplacementPolicy) Builder {
	b.config.ReplacementPolicy = p
	return b
}

// WithWritePolicy sets the default write policy.
func (b Builder) WithWritePolicy(p WritePolicy) Builder {
	b.config.WritePolicy = p
	return b
}

// WithWriteMissPolicy sets the default write-miss policy.
func (b Builder) WithWriteMissPolicy(p WriteMissPolicy) Builder {
	b.config.WriteMissPolicy = p
	return b
}

// WithAddressWidth sets the number of address bits.
func (b Builder) WithAddressWidth(width int) Builder {
	b.config.AddressWidth = width
	return b
}

// WithRandomSeed sets the seed of the RANDOM replacement policy.
func (b Builder) WithRandomSeed(seed uint64) Builder {
	b.config.RandomSeed = seed
	return b
}

// WithStatsResetOnReconfigure sets whether applying this config to an
// existing cache clears its statistics.
func (b Builder) WithStatsResetOnReconfigure(reset bool) Builder {
	b.config.ResetStatsOnReconfigure = reset
	return b
}

// WithIDGenerator sets the generator that names accesses. A sequential
// generator is used if none is given.
func (b Builder) WithIDGenerator(g id.IDGenerator) Builder {
	b.idGenerator = g
	return b
}

// WithHook registers a hook on the cache being built.
func (b Builder) WithHook(hook hooking.Hook) Builder {
	b.hooks = append(b.hooks[:len(b.hooks):len(b.hooks)], hook)
	return b
}

// Build builds a cache. It fails with ErrInvalidConfig if the config
// violates any constraint.
func (b Builder) Build(name string) (*Comp, error) {
	s, err := b.buildState()
	if err != nil {
		return nil, err
	}

	comp := &Comp{
		name:        name,
		idGenerator: b.idGenerator,
		state:       s,
	}

	if comp.idGenerator == nil {
		comp.idGenerator = id.NewSequentialIDGenerator()
	}

	for _, hook := range b.hooks {
		comp.AcceptHook(hook)
	}

	return comp, nil
}

func (b Builder) buildState() (*state, error) {
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	tags := tagging.NewTagArray(
		b.config.NumSets(),
		b.config.Associativity,
		b.config.BlockSizeBytes,
		b.createVictimFinder(),
	)

	s := &state{
		config:  b.config,
		decoder: NewDecoder(b.config),
		tags:    tags,
	}

	return s, nil
}

func (b Builder) createVictimFinder() tagging.VictimFinder {
	var victimFinder tagging.VictimFinder

	switch b.config.ReplacementPolicy {
	case ReplacementLRU:
		victimFinder = tagging.NewLRUVictimFinder()
	case ReplacementFIFO:
		victimFinder = tagging.NewFIFOVictimFinder()
	case ReplacementRandom:
		victimFinder = tagging.NewRandomVictimFinder(b.config.RandomSeed)
	default:
		panic("unknown replace strategy: " + string(b.config.ReplacementPolicy))
	}

	return victimFinder
}
