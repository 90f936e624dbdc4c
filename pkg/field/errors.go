package field

import "errors"

var (
	// ErrValueTooLong is returned when a value cannot fit the field width
	ErrValueTooLong = errors.New("value too long for field")
	// ErrNumericOverflow is returned when a number needs more digits than
	// the field provides
	ErrNumericOverflow = errors.New("numeric value overflows field")
	// ErrUnknownType is returned for a type tag the dialect does not
	// support
	ErrUnknownType = errors.New("unknown field type")
)
