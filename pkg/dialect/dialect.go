// Package dialect describes the xBase format variants supported by this
// module: header version bytes, field type sets, fixed widths, null support
// and memo file layout. Codec and table code consult a Dialect instead of
// branching on version bytes directly.
package dialect

// Type is the single-letter field type tag stored in a field descriptor.
type Type byte

const (
	Character Type = 'C'
	Currency  Type = 'Y'
	Date      Type = 'D'
	DateTime  Type = 'T'
	Double    Type = 'B'
	Float     Type = 'F'
	General   Type = 'G'
	Integer   Type = 'I'
	Logical   Type = 'L'
	Memo      Type = 'M'
	Numeric   Type = 'N'
	Picture   Type = 'P'
	// NullFlag tags the hidden system field holding the per-record null
	// bitmap in null-capable dialects.
	NullFlag Type = '0'
)

// String returns the type letter as a string.
func (t Type) String() string {
	return string(rune(t))
}

// MemoFormat selects the companion memo file layout.
type MemoFormat int

const (
	// MemoNone means the dialect has no memo support.
	MemoNone MemoFormat = iota
	// MemoDbt is the dBase III .dbt layout: 512-byte blocks, data
	// terminated by two 0x1A bytes.
	MemoDbt
	// MemoFpt is the FoxPro/Visual FoxPro .fpt layout: configurable block
	// size, 8-byte big-endian length header per memo.
	MemoFpt
)

// Dialect is the capability table for one format variant.
type Dialect struct {
	// Name identifies the dialect in logs and errors
	Name string
	// Version is the header version byte for a table without memo fields
	Version byte
	// MemoVersion is the header version byte once memo fields are present
	MemoVersion byte
	// NullSupport reports whether fields may carry the nullable flag
	NullSupport bool
	// ExplicitOffsets reports whether field descriptors store the field's
	// byte offset (Visual FoxPro); other dialects recompute offsets
	ExplicitOffsets bool
	// BinaryMemoRef reports whether a memo reference is a little-endian
	// int32 block number instead of right-justified ASCII digits
	BinaryMemoRef bool
	// MaxNameLength is the longest permitted field name
	MaxNameLength int
	// MaxCharacterWidth is the widest permitted Character field
	MaxCharacterWidth int
	// MemoFormat is the companion file layout, MemoNone if unsupported
	MemoFormat MemoFormat
	// MemoExt is the conventional companion file extension
	MemoExt string
	// MemoBlockSize is the default memo block size at creation
	MemoBlockSize int

	fieldTypes  map[Type]bool
	fixedWidths map[Type]int
}

// Supports reports whether the dialect accepts fields of type t.
func (d *Dialect) Supports(t Type) bool {
	return d.fieldTypes[t]
}

// FixedWidth returns the mandated byte width for t, or ok=false when the
// width is caller-specified (Character, Numeric, Float).
func (d *Dialect) FixedWidth(t Type) (int, bool) {
	w, ok := d.fixedWidths[t]
	return w, ok
}

// MemoRefWidth returns the row bytes occupied by a memo-class reference.
func (d *Dialect) MemoRefWidth() int {
	if d.BinaryMemoRef {
		return 4
	}
	return 10
}

// MemoClass reports whether values of type t live in the memo file.
func (d *Dialect) MemoClass(t Type) bool {
	return t == Memo || t == General || t == Picture
}

func types(ts ...Type) map[Type]bool {
	m := make(map[Type]bool, len(ts))
	for _, t := range ts {
		m[t] = true
	}
	return m
}

var (
	// Db3 is dBase III Plus: versions 0x03 / 0x83 with memos.
	Db3 = &Dialect{
		Name:              "dBase III Plus",
		Version:           0x03,
		MemoVersion:       0x83,
		MaxNameLength:     10,
		MaxCharacterWidth: 254,
		MemoFormat:        MemoDbt,
		MemoExt:           ".dbt",
		MemoBlockSize:     512,
		fieldTypes:        types(Character, Date, Logical, Memo, Numeric),
		fixedWidths: map[Type]int{
			Date: 8, Logical: 1, Memo: 10,
		},
	}

	// Clipper shares the dBase III layout but packs Character lengths
	// into the length and decimals descriptor bytes, allowing fields up
	// to 65519 bytes.
	Clipper = &Dialect{
		Name:              "Clipper",
		Version:           0x03,
		MemoVersion:       0x83,
		MaxNameLength:     10,
		MaxCharacterWidth: 65519,
		MemoFormat:        MemoDbt,
		MemoExt:           ".dbt",
		MemoBlockSize:     512,
		fieldTypes:        types(Character, Date, Logical, Memo, Numeric),
		fixedWidths: map[Type]int{
			Date: 8, Logical: 1, Memo: 10,
		},
	}

	// FoxPro is FoxPro 2.x: version 0xF5 once memos are present, adds
	// Float, General and Picture fields over dBase III.
	FoxPro = &Dialect{
		Name:              "FoxPro",
		Version:           0x03,
		MemoVersion:       0xF5,
		MaxNameLength:     10,
		MaxCharacterWidth: 254,
		MemoFormat:        MemoFpt,
		MemoExt:           ".fpt",
		MemoBlockSize:     64,
		fieldTypes: types(Character, Date, Float, General, Logical,
			Memo, Numeric, Picture),
		fixedWidths: map[Type]int{
			Date: 8, Logical: 1, Memo: 10, General: 10, Picture: 10,
		},
	}

	// VisualFoxPro is version 0x30: binary scalar types, nullable fields
	// with a hidden _NullFlags bitmap, explicit descriptor offsets and
	// int32 memo references.
	VisualFoxPro = &Dialect{
		Name:              "Visual FoxPro",
		Version:           0x30,
		MemoVersion:       0x30,
		NullSupport:       true,
		ExplicitOffsets:   true,
		BinaryMemoRef:     true,
		MaxNameLength:     10,
		MaxCharacterWidth: 254,
		MemoFormat:        MemoFpt,
		MemoExt:           ".fpt",
		MemoBlockSize:     64,
		fieldTypes: types(Character, Currency, Date, DateTime, Double,
			Float, General, Integer, Logical, Memo, Numeric, Picture,
			NullFlag),
		fixedWidths: map[Type]int{
			Currency: 8, Date: 8, DateTime: 8, Double: 8, Integer: 4,
			Logical: 1, Memo: 4, General: 4, Picture: 4,
		},
	}
)

// ByVersion maps a header version byte to the dialect that wrote it.
// Ambiguous bytes resolve to the most common writer.
func ByVersion(v byte) *Dialect {
	switch v {
	case 0x02, 0x03, 0x83:
		return Db3
	case 0xF5:
		return FoxPro
	case 0x30, 0x31:
		return VisualFoxPro
	default:
		return nil
	}
}
