package cache

import (
	"fmt"
	"strconv"
	"strings"
)

// DecodedAddress is an address split into the fields that locate it in the
// cache.
type DecodedAddress struct {
	Address  uint64
	Tag      uint64
	SetIndex int
	Offset   int
}

// A Decoder splits addresses according to a cache geometry.
type Decoder struct {
	offsetBits   int
	setIndexBits int
	addressWidth int
}

// NewDecoder creates a decoder for the geometry of the config. The config
// must be valid.
func NewDecoder(c Config) Decoder {
	return Decoder{
		offsetBits:   c.OffsetBits(),
		setIndexBits: c.SetIndexBits(),
		addressWidth: c.AddressWidth,
	}
}

// MaxAddress returns the largest address that fits the address width.
func (d Decoder) MaxAddress() uint64 {
	if d.addressWidth >= 64 {
		return ^uint64(0)
	}

	return 1<<d.addressWidth - 1
}

// Decode splits the address into tag, set index and offset.
func (d Decoder) Decode(addr uint64) (DecodedAddress, error) {
	if addr > d.MaxAddress() {
		return DecodedAddress{}, fmt.Errorf(
			"%w: 0x%x does not fit into %d bits",
			ErrInvalidAddress, addr, d.addressWidth)
	}

	offsetMask := uint64(1)<<d.offsetBits - 1
	setMask := uint64(1)<<d.setIndexBits - 1

	return DecodedAddress{
		Address:  addr,
		Offset:   int(addr & offsetMask),
		SetIndex: int((addr >> d.offsetBits) & setMask),
		Tag:      addr >> (d.offsetBits + d.setIndexBits),
	}, nil
}

// Encode is the inverse of Decode.
func (d Decoder) Encode(tag uint64, setIndex, offset int) uint64 {
	return tag<<(d.offsetBits+d.setIndexBits) |
		uint64(setIndex)<<d.offsetBits |
		uint64(offset)
}

// ParseAddress converts caller input to an address. It accepts decimal
// numbers and hex numbers prefixed with 0x.
func ParseAddress(s string) (uint64, error) {
	return parseUnsigned(s, 64, "address", ErrInvalidAddress)
}

// ParseValue converts caller input to the byte to write. It accepts the same
// forms as ParseAddress, limited to 0..255.
func ParseValue(s string) (byte, error) {
	v, err := parseUnsigned(s, 8, "value", ErrInvalidValue)
	return byte(v), err
}

func parseUnsigned(
	s string,
	bitSize int,
	what string,
	sentinel error,
) (uint64, error) {
	trimmed := strings.TrimSpace(s)

	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty %s", sentinel, what)
	}

	if strings.HasPrefix(trimmed, "-") {
		return 0, fmt.Errorf("%w: %q is negative", sentinel, s)
	}

	digits, base := trimmed, 10
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		digits, base = trimmed[2:], 16
	}

	if digits == "" || strings.HasPrefix(digits, "+") {
		return 0, fmt.Errorf("%w: %q", sentinel, s)
	}

	v, err := strconv.ParseUint(digits, base, bitSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", sentinel, s, err)
	}

	return v, nil
}
