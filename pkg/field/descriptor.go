// Package field implements the scalar codec: pure conversions between the
// fixed-width bytes of one row field and typed Go values, driven by the
// dialect capability table. Memo-class fields resolve their payload through
// a memo.Store.
package field

import "github.com/xbasedb/xbase/pkg/dialect"

// Flag bits stored in byte 18 of a field descriptor.
type Flag byte

const (
	// FlagSystem marks hidden fields such as the null bitmap
	FlagSystem Flag = 0x01
	// FlagNullable marks fields that may hold null (Visual FoxPro)
	FlagNullable Flag = 0x02
	// FlagBinary suppresses text decoding for Character and Memo fields
	FlagBinary Flag = 0x04
)

// Descriptor describes one field of the row layout.
type Descriptor struct {
	// Name is the upper-cased field name, at most 10 bytes on disk
	Name string
	// Type is the single-letter type tag
	Type dialect.Type
	// Offset is the field's byte offset within the row, including the
	// leading deletion flag byte
	Offset int
	// Length is the field's byte width
	Length int
	// Decimals is the digit count right of the decimal point
	Decimals int
	// Flags carries the nullable, binary and system bits
	Flags Flag
}

// Nullable reports whether the field may hold null.
func (d Descriptor) Nullable() bool {
	return d.Flags&FlagNullable != 0
}

// Binary reports whether the field holds raw bytes rather than text.
func (d Descriptor) Binary() bool {
	return d.Flags&FlagBinary != 0
}

// System reports whether the field is hidden from user schemas.
func (d Descriptor) System() bool {
	return d.Flags&FlagSystem != 0
}

// End returns the exclusive end offset of the field within the row.
func (d Descriptor) End() int {
	return d.Offset + d.Length
}
