package types

import "errors"

var (
	// ErrInvalidOperation is returned when a value cannot take part in the
	// requested operation, such as coercing a Quantum Other state to a
	// boolean or number.
	ErrInvalidOperation = errors.New("invalid operation for value")
)
