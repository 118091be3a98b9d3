package cache

import "errors"

var (
	// ErrInvalidAddress is returned when an address is negative, malformed,
	// or does not fit into the configured address width. No state is changed.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidValue is returned when a value to write is malformed or does
	// not fit into a byte.
	ErrInvalidValue = errors.New("invalid value")

	// ErrInvalidConfig is returned when a cache geometry or policy violates
	// a constraint. The existing cache is left untouched.
	ErrInvalidConfig = errors.New("invalid cache configuration")

	// ErrUnknownPolicy is returned when a policy name cannot be parsed.
	ErrUnknownPolicy = errors.New("unknown policy")
)
