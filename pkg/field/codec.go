package field

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xbasedb/xbase/pkg/dialect"
	"github.com/xbasedb/xbase/pkg/memo"
	"github.com/xbasedb/xbase/pkg/types"
)

// Codec converts between field bytes and typed values for one dialect.
// Decode and Encode are total over the field's declared width; memo-class
// fields additionally read or append payload in the attached store.
type Codec struct {
	dialect *dialect.Dialect
	store   *memo.Store
}

// NewCodec returns a codec for d. store may be nil when the table carries
// no memo fields.
func NewCodec(d *dialect.Dialect, store *memo.Store) *Codec {
	return &Codec{dialect: d, store: store}
}

// Dialect returns the capability table the codec consults.
func (c *Codec) Dialect() *dialect.Dialect {
	return c.dialect
}

// Decode converts the raw field bytes into a typed value. Raw must be
// exactly fd.Length bytes. A nil result is the field's "no value" state.
func (c *Codec) Decode(fd Descriptor, raw []byte) (interface{}, error) {
	if len(raw) != fd.Length {
		return nil, fmt.Errorf("field %s: got %d bytes, want %d", fd.Name, len(raw), fd.Length)
	}
	if c.dialect.MemoClass(fd.Type) {
		return c.decodeMemo(fd, raw)
	}
	switch fd.Type {
	case dialect.Character:
		return decodeCharacter(fd, raw), nil
	case dialect.Numeric, dialect.Float:
		return decodeNumeric(fd, raw)
	case dialect.Logical:
		return decodeLogical(fd, raw)
	case dialect.Date:
		return decodeDate(fd, raw)
	case dialect.DateTime:
		return decodeDateTime(raw), nil
	case dialect.Currency:
		return types.Currency(int64(binary.LittleEndian.Uint64(raw))), nil
	case dialect.Integer:
		return int64(int32(binary.LittleEndian.Uint32(raw))), nil
	case dialect.Double:
		return math.Float64frombits(binary.LittleEndian.Uint64(raw)), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, fd.Type)
	}
}

// Encode converts a typed value into exactly fd.Length bytes. Memo-class
// values are appended to the store and the returned bytes are the block
// reference.
func (c *Codec) Encode(fd Descriptor, v interface{}) ([]byte, error) {
	if c.dialect.MemoClass(fd.Type) {
		return c.encodeMemo(fd, v)
	}
	switch fd.Type {
	case dialect.Character:
		return encodeCharacter(fd, v)
	case dialect.Numeric, dialect.Float:
		return encodeNumeric(fd, v)
	case dialect.Logical:
		return encodeLogical(fd, v)
	case dialect.Date:
		return encodeDate(fd, v)
	case dialect.DateTime:
		return encodeDateTime(fd, v)
	case dialect.Currency:
		return encodeCurrency(fd, v)
	case dialect.Integer:
		return encodeInteger(fd, v)
	case dialect.Double:
		return encodeDouble(fd, v)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, fd.Type)
	}
}

// Blank returns the bytes of an unset field under the current layout:
// spaces for text-form fields, zeros for binary-form fields.
func (c *Codec) Blank(fd Descriptor) []byte {
	raw := make([]byte, fd.Length)
	switch fd.Type {
	case dialect.Currency, dialect.DateTime, dialect.Integer, dialect.Double, dialect.NullFlag:
		// binary zeros
	case dialect.Logical:
		raw[0] = '?'
	default:
		if c.dialect.BinaryMemoRef && c.dialect.MemoClass(fd.Type) {
			break
		}
		for i := range raw {
			raw[i] = ' '
		}
	}
	return raw
}

// DecodeMemoRef parses a memo reference. ok is false when the reference is
// unset.
func (c *Codec) DecodeMemoRef(fd Descriptor, raw []byte) (block uint32, ok bool, err error) {
	if c.dialect.BinaryMemoRef {
		block = binary.LittleEndian.Uint32(raw)
		return block, block != 0, nil
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return 0, false, fmt.Errorf("field %s: bad memo reference %q", fd.Name, text)
	}
	return uint32(n), true, nil
}

// EncodeMemoRef renders a block reference into field bytes. Block 0 renders
// the unset reference.
func (c *Codec) EncodeMemoRef(fd Descriptor, block uint32) []byte {
	raw := make([]byte, fd.Length)
	if c.dialect.BinaryMemoRef {
		binary.LittleEndian.PutUint32(raw, block)
		return raw
	}
	text := ""
	if block != 0 {
		text = strconv.FormatUint(uint64(block), 10)
	}
	copy(raw, []byte(fmt.Sprintf("%*s", fd.Length, text)))
	return raw
}

// Store returns the attached memo store, nil when absent.
func (c *Codec) Store() *memo.Store {
	return c.store
}

// ValidateMemo checks that v can be stored in a memo-class field without
// touching the store, letting callers validate a whole edit set before
// mutating anything.
func (c *Codec) ValidateMemo(fd Descriptor, v interface{}) error {
	_, err := memoPayload(fd, v)
	return err
}

// EncodeMemoUpdate re-encodes a memo-class field given its current row
// bytes. The existing blocks are overwritten in place when the new payload
// spans the same number of blocks; otherwise fresh blocks are allocated and
// the old ones are freed as reclaimable garbage.
func (c *Codec) EncodeMemoUpdate(fd Descriptor, v interface{}, oldRaw []byte) ([]byte, error) {
	data, err := memoPayload(fd, v)
	if err != nil {
		return nil, err
	}
	oldBlock, hasOld, err := c.DecodeMemoRef(fd, oldRaw)
	if err != nil {
		return nil, err
	}
	if data == nil {
		if hasOld && c.store != nil {
			if err := c.store.Free(oldBlock); err != nil {
				return nil, fmt.Errorf("field %s: %w", fd.Name, err)
			}
		}
		return c.EncodeMemoRef(fd, 0), nil
	}
	if c.store == nil {
		return nil, fmt.Errorf("field %s: table has no memo store", fd.Name)
	}
	if hasOld {
		switch err := c.store.Overwrite(oldBlock, data); err {
		case nil:
			return c.EncodeMemoRef(fd, oldBlock), nil
		case memo.ErrSpanMismatch:
			// fall through to fresh allocation
		default:
			return nil, fmt.Errorf("field %s: %w", fd.Name, err)
		}
	}
	block, err := c.store.Write(data)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fd.Name, err)
	}
	if hasOld {
		if err := c.store.Free(oldBlock); err != nil {
			return nil, fmt.Errorf("field %s: %w", fd.Name, err)
		}
	}
	return c.EncodeMemoRef(fd, block), nil
}

func (c *Codec) decodeMemo(fd Descriptor, raw []byte) (interface{}, error) {
	block, ok, err := c.DecodeMemoRef(fd, raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		if c.dialect.NullSupport {
			return nil, nil
		}
		if fd.Binary() {
			return []byte{}, nil
		}
		return "", nil
	}
	if c.store == nil {
		return nil, fmt.Errorf("field %s: %w: no memo store attached", fd.Name, memo.ErrDanglingPointer)
	}
	data, err := c.store.Read(block)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fd.Name, err)
	}
	if fd.Binary() {
		return data, nil
	}
	return string(data), nil
}

func (c *Codec) encodeMemo(fd Descriptor, v interface{}) ([]byte, error) {
	data, err := memoPayload(fd, v)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return c.EncodeMemoRef(fd, 0), nil
	}
	if c.store == nil {
		return nil, fmt.Errorf("field %s: table has no memo store", fd.Name)
	}
	block, err := c.store.Write(data)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fd.Name, err)
	}
	return c.EncodeMemoRef(fd, block), nil
}

// memoPayload normalizes a memo-class value to its byte payload.
// nil means the unset reference.
func memoPayload(fd Descriptor, v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(val), nil
	case []byte:
		return val, nil
	default:
		return nil, fmt.Errorf("field %s: %w: cannot store %T in a memo field",
			fd.Name, types.ErrInvalidOperation, v)
	}
}

func decodeCharacter(fd Descriptor, raw []byte) interface{} {
	if fd.Binary() {
		return append([]byte(nil), raw...)
	}
	return strings.TrimRight(string(raw), " \x00")
}

func encodeCharacter(fd Descriptor, v interface{}) ([]byte, error) {
	var text []byte
	switch val := v.(type) {
	case nil:
		return bytes.Repeat([]byte{' '}, fd.Length), nil
	case string:
		text = []byte(val)
	case []byte:
		text = val
	default:
		return nil, fmt.Errorf("field %s: %w: cannot store %T in a character field",
			fd.Name, types.ErrInvalidOperation, v)
	}
	if len(text) > fd.Length {
		// trailing whitespace may be trimmed to fit
		if len(bytes.TrimRight(text, " ")) > fd.Length {
			return nil, fmt.Errorf("field %s: %w: %d bytes into %d",
				fd.Name, ErrValueTooLong, len(text), fd.Length)
		}
		text = text[:fd.Length]
	}
	raw := bytes.Repeat([]byte{' '}, fd.Length)
	copy(raw, text)
	return raw, nil
}

func decodeNumeric(fd Descriptor, raw []byte) (interface{}, error) {
	text := strings.TrimSpace(strings.ReplaceAll(string(raw), "\x00", ""))
	if text == "" || text[0] == '*' {
		// an unwritten or overflowed buffer has no value
		return nil, nil
	}
	if fd.Decimals == 0 {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: unparsable numeric %q", fd.Name, text)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("field %s: unparsable numeric %q", fd.Name, text)
	}
	return f, nil
}

func encodeNumeric(fd Descriptor, v interface{}) ([]byte, error) {
	var text string
	switch val := v.(type) {
	case nil:
		return bytes.Repeat([]byte{' '}, fd.Length), nil
	case int:
		text = formatNumeric(float64(val), true, int64(val), fd)
	case int32:
		text = formatNumeric(float64(val), true, int64(val), fd)
	case int64:
		text = formatNumeric(float64(val), true, val, fd)
	case float64:
		text = formatNumeric(val, false, 0, fd)
	default:
		return nil, fmt.Errorf("field %s: %w: cannot store %T in a numeric field",
			fd.Name, types.ErrInvalidOperation, v)
	}
	if len(text) > fd.Length {
		return nil, fmt.Errorf("field %s: %w: %q needs %d bytes, field holds %d",
			fd.Name, ErrNumericOverflow, strings.TrimSpace(text), len(text), fd.Length)
	}
	return []byte(text), nil
}

func formatNumeric(f float64, isInt bool, i int64, fd Descriptor) string {
	if fd.Decimals == 0 {
		if isInt {
			return fmt.Sprintf("%*d", fd.Length, i)
		}
		return fmt.Sprintf("%*.0f", fd.Length, f)
	}
	return fmt.Sprintf("%*.*f", fd.Length, fd.Decimals, f)
}

func decodeLogical(fd Descriptor, raw []byte) (interface{}, error) {
	switch raw[0] {
	case 't', 'T', 'y', 'Y':
		return types.True, nil
	case 'f', 'F', 'n', 'N':
		return types.False, nil
	case '?', ' ':
		return types.Unknown, nil
	default:
		return nil, fmt.Errorf("field %s: bad logical byte %q", fd.Name, raw[0])
	}
}

func encodeLogical(fd Descriptor, v interface{}) ([]byte, error) {
	var b byte
	switch val := v.(type) {
	case nil:
		b = '?'
	case bool:
		b = 'F'
		if val {
			b = 'T'
		}
	case types.Logical:
		switch val {
		case types.True:
			b = 'T'
		case types.False:
			b = 'F'
		default:
			b = '?'
		}
	case types.Quantum:
		switch val {
		case types.QTrue:
			b = 'T'
		case types.QFalse:
			b = 'F'
		default:
			b = '?'
		}
	default:
		return nil, fmt.Errorf("field %s: %w: cannot store %T in a logical field",
			fd.Name, types.ErrInvalidOperation, v)
	}
	return []byte{b}, nil
}

func decodeDate(fd Descriptor, raw []byte) (interface{}, error) {
	text := string(raw)
	if text == "        " || text == "00000000" {
		return types.Date{}, nil
	}
	year, err1 := strconv.Atoi(strings.TrimSpace(text[0:4]))
	month, err2 := strconv.Atoi(strings.TrimSpace(text[4:6]))
	day, err3 := strconv.Atoi(strings.TrimSpace(text[6:8]))
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, fmt.Errorf("field %s: unparsable date %q", fd.Name, text)
	}
	return types.NewDate(year, time.Month(month), day), nil
}

func encodeDate(fd Descriptor, v interface{}) ([]byte, error) {
	var d types.Date
	switch val := v.(type) {
	case nil:
		return bytes.Repeat([]byte{' '}, fd.Length), nil
	case types.Date:
		d = val
	case time.Time:
		d = types.DateOf(val)
	default:
		return nil, fmt.Errorf("field %s: %w: cannot store %T in a date field",
			fd.Name, types.ErrInvalidOperation, v)
	}
	if d.IsZero() {
		return bytes.Repeat([]byte{' '}, fd.Length), nil
	}
	year, month, day := d.Date()
	return []byte(fmt.Sprintf("%04d%02d%02d", year, int(month), day)), nil
}

func decodeDateTime(raw []byte) interface{} {
	days := int32(binary.LittleEndian.Uint32(raw[0:4]))
	msec := int32(binary.LittleEndian.Uint32(raw[4:8]))
	if days == 0 && msec == 0 {
		return types.DateTime{}
	}
	return types.DateTimeFromParts(int(days)-types.JulianOffset, int(msec))
}

func encodeDateTime(fd Descriptor, v interface{}) ([]byte, error) {
	var dt types.DateTime
	switch val := v.(type) {
	case nil:
		return make([]byte, fd.Length), nil
	case types.DateTime:
		dt = val
	case time.Time:
		dt = types.DateTimeOf(val)
	default:
		return nil, fmt.Errorf("field %s: %w: cannot store %T in a datetime field",
			fd.Name, types.ErrInvalidOperation, v)
	}
	raw := make([]byte, fd.Length)
	if dt.IsZero() {
		return raw, nil
	}
	binary.LittleEndian.PutUint32(raw[0:4], uint32(dt.Date().Ordinal()+types.JulianOffset))
	binary.LittleEndian.PutUint32(raw[4:8], uint32(dt.MillisecondOfDay()))
	return raw, nil
}

func encodeCurrency(fd Descriptor, v interface{}) ([]byte, error) {
	var cur types.Currency
	switch val := v.(type) {
	case nil:
		cur = 0
	case types.Currency:
		cur = val
	case int:
		cur = types.CurrencyFromUnits(int64(val))
	case int64:
		cur = types.CurrencyFromUnits(val)
	case float64:
		c, err := types.CurrencyFromFloat(val)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w: currency %v", fd.Name, ErrNumericOverflow, val)
		}
		cur = c
	default:
		return nil, fmt.Errorf("field %s: %w: cannot store %T in a currency field",
			fd.Name, types.ErrInvalidOperation, v)
	}
	raw := make([]byte, fd.Length)
	binary.LittleEndian.PutUint64(raw, uint64(cur.Raw()))
	return raw, nil
}

func encodeInteger(fd Descriptor, v interface{}) ([]byte, error) {
	var n int64
	switch val := v.(type) {
	case nil:
		n = 0
	case int:
		n = int64(val)
	case int32:
		n = int64(val)
	case int64:
		n = val
	default:
		return nil, fmt.Errorf("field %s: %w: cannot store %T in an integer field",
			fd.Name, types.ErrInvalidOperation, v)
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return nil, fmt.Errorf("field %s: %w: %d outside int32 range", fd.Name, ErrNumericOverflow, n)
	}
	raw := make([]byte, fd.Length)
	binary.LittleEndian.PutUint32(raw, uint32(int32(n)))
	return raw, nil
}

func encodeDouble(fd Descriptor, v interface{}) ([]byte, error) {
	var f float64
	switch val := v.(type) {
	case nil:
		f = 0
	case float64:
		f = val
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	default:
		return nil, fmt.Errorf("field %s: %w: cannot store %T in a double field",
			fd.Name, types.ErrInvalidOperation, v)
	}
	raw := make([]byte, fd.Length)
	binary.LittleEndian.PutUint64(raw, math.Float64bits(f))
	return raw, nil
}
