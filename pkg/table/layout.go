package table

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/xbasedb/xbase/pkg/dialect"
	"github.com/xbasedb/xbase/pkg/field"
)

// nullFlagsName is the hidden system field carrying the per-record null
// bitmap in null-capable dialects.
const nullFlagsName = "_NULLFLAGS"

// FieldSpec describes one field when creating a table or changing its
// structure.
type FieldSpec struct {
	Name     string
	Type     dialect.Type
	Length   int
	Decimals int
	Nullable bool
	Binary   bool
}

// ParseFieldSpec parses a semicolon-separated schema description such as
// "name C(10); age N(3,0); birth D; notes M null".
func ParseFieldSpec(spec string) ([]FieldSpec, error) {
	var specs []FieldSpec
	for _, part := range strings.Split(spec, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		words := strings.Fields(part)
		if len(words) < 2 {
			return nil, fmt.Errorf("field spec %q: want NAME TYPE[(LEN[,DEC])] [flags]", part)
		}
		fs := FieldSpec{Name: words[0]}

		typeWord := words[1]
		fs.Type = dialect.Type(typeWord[0])
		if paren := strings.IndexByte(typeWord, '('); paren >= 0 {
			if paren != 1 || !strings.HasSuffix(typeWord, ")") {
				return nil, fmt.Errorf("field spec %q: malformed size", part)
			}
			size := typeWord[paren+1 : len(typeWord)-1]
			lenPart, decPart, hasDec := strings.Cut(size, ",")
			n, err := strconv.Atoi(strings.TrimSpace(lenPart))
			if err != nil {
				return nil, fmt.Errorf("field spec %q: bad length: %v", part, err)
			}
			fs.Length = n
			if hasDec {
				d, err := strconv.Atoi(strings.TrimSpace(decPart))
				if err != nil {
					return nil, fmt.Errorf("field spec %q: bad decimal count: %v", part, err)
				}
				fs.Decimals = d
			}
		} else if len(typeWord) != 1 {
			return nil, fmt.Errorf("field spec %q: malformed type %q", part, typeWord)
		}

		for _, flag := range words[2:] {
			switch strings.ToLower(flag) {
			case "null", "nullable":
				fs.Nullable = true
			case "binary", "nocptrans":
				fs.Binary = true
			default:
				return nil, fmt.Errorf("field spec %q: unknown flag %q", part, flag)
			}
		}
		specs = append(specs, fs)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("empty field spec")
	}
	return specs, nil
}

// layout holds the parsed field descriptor array and derived offsets.
type layout struct {
	fields    []field.Descriptor // user-visible fields, in row order
	nullFlags *field.Descriptor  // hidden bitmap field, nil when absent
	byName    map[string]int
	// recordLength is 1 deletion-flag byte plus every field width,
	// bitmap included
	recordLength int
}

// buildLayout validates specs against the dialect and computes the row
// layout, synthesizing the null bitmap field when needed.
func buildLayout(d *dialect.Dialect, specs []FieldSpec) (*layout, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("table needs at least one field")
	}
	l := &layout{byName: make(map[string]int, len(specs))}
	offset := 1 // deletion flag
	nullable := 0
	for _, fs := range specs {
		name := strings.ToUpper(strings.TrimSpace(fs.Name))
		if name == "" || len(name) > d.MaxNameLength {
			return nil, fmt.Errorf("bad field name %q: 1..%d bytes required", fs.Name, d.MaxNameLength)
		}
		if _, dup := l.byName[name]; dup {
			return nil, fmt.Errorf("duplicate field name %q", name)
		}
		if !d.Supports(fs.Type) || fs.Type == dialect.NullFlag {
			return nil, fmt.Errorf("%s does not support %s fields", d.Name, fs.Type)
		}
		if fs.Nullable && !d.NullSupport {
			return nil, fmt.Errorf("%s does not support nullable fields", d.Name)
		}

		length := fs.Length
		if w, fixed := d.FixedWidth(fs.Type); fixed {
			length = w
		}
		switch fs.Type {
		case dialect.Character:
			if length < 1 || length > d.MaxCharacterWidth {
				return nil, fmt.Errorf("character field %s: width %d outside 1..%d",
					name, length, d.MaxCharacterWidth)
			}
		case dialect.Numeric, dialect.Float:
			if length < 1 || length > 20 {
				return nil, fmt.Errorf("numeric field %s: width %d outside 1..20", name, length)
			}
			if fs.Decimals < 0 || (fs.Decimals > 0 && fs.Decimals > length-2) {
				return nil, fmt.Errorf("numeric field %s: %d decimals do not fit width %d",
					name, fs.Decimals, length)
			}
		}

		var flags field.Flag
		if fs.Nullable {
			flags |= field.FlagNullable
			nullable++
		}
		if fs.Binary {
			flags |= field.FlagBinary
		}
		decimals := fs.Decimals
		if fs.Type != dialect.Numeric && fs.Type != dialect.Float {
			decimals = 0
		}
		l.byName[name] = len(l.fields)
		l.fields = append(l.fields, field.Descriptor{
			Name:     name,
			Type:     fs.Type,
			Offset:   offset,
			Length:   length,
			Decimals: decimals,
			Flags:    flags,
		})
		offset += length
	}
	if nullable > 0 {
		width := (nullable + 7) / 8
		l.nullFlags = &field.Descriptor{
			Name:   nullFlagsName,
			Type:   dialect.NullFlag,
			Offset: offset,
			Length: width,
			Flags:  field.FlagSystem | field.FlagBinary,
		}
		offset += width
	}
	l.recordLength = offset
	return l, nil
}

// parseLayout decodes the on-disk descriptor block.
func parseLayout(d *dialect.Dialect, block []byte) (*layout, error) {
	if len(block)%descriptorSize != 0 {
		return nil, fmt.Errorf("%w: descriptor block of %d bytes", ErrCorruptHeader, len(block))
	}
	l := &layout{byName: make(map[string]int)}
	offset := 1
	for i := 0; i < len(block); i += descriptorSize {
		entry := block[i : i+descriptorSize]
		name := strings.ToUpper(string(bytes.TrimRight(entry[0:11], "\x00")))
		typ := dialect.Type(entry[11])
		length := int(entry[16])
		decimals := int(entry[17])
		if typ == dialect.Character && d.MaxCharacterWidth > 255 {
			// Clipper packs wide character lengths into both bytes
			length += decimals * 256
			decimals = 0
		}
		flags := field.Flag(entry[18])

		if typ == dialect.NullFlag {
			if l.nullFlags != nil {
				return nil, fmt.Errorf("%w: duplicate null bitmap field", ErrCorruptHeader)
			}
			l.nullFlags = &field.Descriptor{
				Name: name, Type: typ, Offset: offset, Length: length, Flags: flags,
			}
			offset += length
			continue
		}
		if !d.Supports(typ) {
			return nil, fmt.Errorf("%w: field %s has type %q unsupported by %s",
				ErrCorruptHeader, name, typ, d.Name)
		}
		if _, dup := l.byName[name]; dup {
			return nil, fmt.Errorf("%w: duplicate field name %s", ErrCorruptHeader, name)
		}
		if d.ExplicitOffsets {
			if start := int(binary.LittleEndian.Uint32(entry[12:16])); start != 0 && start != offset {
				return nil, fmt.Errorf("%w: field %s offset %d, computed %d",
					ErrCorruptHeader, name, start, offset)
			}
		}
		l.byName[name] = len(l.fields)
		l.fields = append(l.fields, field.Descriptor{
			Name:     name,
			Type:     typ,
			Offset:   offset,
			Length:   length,
			Decimals: decimals,
			Flags:    flags,
		})
		offset += length
	}
	if len(l.fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrCorruptHeader)
	}
	l.recordLength = offset
	return l, nil
}

// encode renders the descriptor block, bitmap descriptor included.
func (l *layout) encode(d *dialect.Dialect) []byte {
	all := l.all()
	block := make([]byte, 0, len(all)*descriptorSize)
	for _, fd := range all {
		entry := make([]byte, descriptorSize)
		copy(entry[0:11], fd.Name)
		entry[11] = byte(fd.Type)
		if d.ExplicitOffsets {
			binary.LittleEndian.PutUint32(entry[12:16], uint32(fd.Offset))
		}
		if fd.Type == dialect.Character && d.MaxCharacterWidth > 255 {
			entry[16] = byte(fd.Length % 256)
			entry[17] = byte(fd.Length / 256)
		} else {
			entry[16] = byte(fd.Length)
			entry[17] = byte(fd.Decimals)
		}
		entry[18] = byte(fd.Flags)
		block = append(block, entry...)
	}
	return block
}

// all returns every descriptor in row order, hidden bitmap last.
func (l *layout) all() []field.Descriptor {
	if l.nullFlags == nil {
		return l.fields
	}
	return append(append([]field.Descriptor(nil), l.fields...), *l.nullFlags)
}

// descriptorCount counts on-disk descriptor entries.
func (l *layout) descriptorCount() int {
	n := len(l.fields)
	if l.nullFlags != nil {
		n++
	}
	return n
}

// headerLength returns the full header region size for this layout.
func (l *layout) headerLength() int {
	return headerSize + l.descriptorCount()*descriptorSize + 1
}

// index returns the position of a user field by case-insensitive name.
func (l *layout) index(name string) (int, bool) {
	i, ok := l.byName[strings.ToUpper(name)]
	return i, ok
}

// specs reconstructs FieldSpecs, used by structural changes.
func (l *layout) specs() []FieldSpec {
	out := make([]FieldSpec, len(l.fields))
	for i, fd := range l.fields {
		out[i] = FieldSpec{
			Name:     fd.Name,
			Type:     fd.Type,
			Length:   fd.Length,
			Decimals: fd.Decimals,
			Nullable: fd.Nullable(),
			Binary:   fd.Binary(),
		}
	}
	return out
}

// hasMemo reports whether any field stores its value in the memo file.
func (l *layout) hasMemo(d *dialect.Dialect) bool {
	for _, fd := range l.fields {
		if d.MemoClass(fd.Type) {
			return true
		}
	}
	return false
}

// nullBitPos locates the bitmap bit for a nullable user field.
func (l *layout) nullBitPos(fieldIdx int) (byteOffset int, mask byte, ok bool) {
	if l.nullFlags == nil || !l.fields[fieldIdx].Nullable() {
		return 0, 0, false
	}
	bit := 0
	for i := 0; i < fieldIdx; i++ {
		if l.fields[i].Nullable() {
			bit++
		}
	}
	return l.nullFlags.Offset + bit/8, 1 << (bit % 8), true
}

// nullBit reads the null bitmap bit for a field, false when not nullable.
func (l *layout) nullBit(row []byte, fieldIdx int) bool {
	off, mask, ok := l.nullBitPos(fieldIdx)
	return ok && row[off]&mask != 0
}

// setNullBit updates the null bitmap bit for a field.
func (l *layout) setNullBit(row []byte, fieldIdx int, set bool) {
	off, mask, ok := l.nullBitPos(fieldIdx)
	if !ok {
		return
	}
	if set {
		row[off] |= mask
	} else {
		row[off] &^= mask
	}
}
