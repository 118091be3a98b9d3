package cache

import (
	"fmt"
	"strings"
)

// ReplacementPolicy names the strategy used to pick a victim in a full set.
type ReplacementPolicy string

// Supported replacement policies.
const (
	ReplacementLRU    ReplacementPolicy = "LRU"
	ReplacementFIFO   ReplacementPolicy = "FIFO"
	ReplacementRandom ReplacementPolicy = "RANDOM"
)

// WritePolicy decides whether a write hit is propagated to the backing store
// immediately.
type WritePolicy string

// Supported write policies.
const (
	WriteBack    WritePolicy = "WRITE_BACK"
	WriteThrough WritePolicy = "WRITE_THROUGH"
)

// WriteMissPolicy decides whether a write miss brings the block into the
// cache.
type WriteMissPolicy string

// Supported write-miss policies.
const (
	WriteAllocate   WriteMissPolicy = "WRITE_ALLOCATE"
	NoWriteAllocate WriteMissPolicy = "NO_WRITE_ALLOCATE"
)

// Operation is the kind of a memory access.
type Operation string

// Supported operations.
const (
	OpRead  Operation = "READ"
	OpWrite Operation = "WRITE"
)

func normalizePolicyName(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "-", "_")
}

// ParseReplacementPolicy converts a case-insensitive name to a
// ReplacementPolicy.
func ParseReplacementPolicy(s string) (ReplacementPolicy, error) {
	p := ReplacementPolicy(normalizePolicyName(s))
	if !p.valid() {
		return "", fmt.Errorf("%w: replacement policy %q", ErrUnknownPolicy, s)
	}

	return p, nil
}

func (p ReplacementPolicy) valid() bool {
	switch p {
	case ReplacementLRU, ReplacementFIFO, ReplacementRandom:
		return true
	}

	return false
}

// ParseWritePolicy converts a case-insensitive name to a WritePolicy.
func ParseWritePolicy(s string) (WritePolicy, error) {
	p := WritePolicy(normalizePolicyName(s))
	if !p.valid() {
		return "", fmt.Errorf("%w: write policy %q", ErrUnknownPolicy, s)
	}

	return p, nil
}

func (p WritePolicy) valid() bool {
	return p == WriteBack || p == WriteThrough
}

// ParseWriteMissPolicy converts a case-insensitive name to a
// WriteMissPolicy.
func ParseWriteMissPolicy(s string) (WriteMissPolicy, error) {
	p := WriteMissPolicy(normalizePolicyName(s))
	if !p.valid() {
		return "", fmt.Errorf("%w: write miss policy %q", ErrUnknownPolicy, s)
	}

	return p, nil
}

func (p WriteMissPolicy) valid() bool {
	return p == WriteAllocate || p == NoWriteAllocate
}
