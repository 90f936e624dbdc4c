package table

import (
	"fmt"

	"github.com/xbasedb/xbase/pkg/field"
)

// Record is a typed, mutable projection over one row. Edits accumulate in
// a staged shadow and reach storage only on Write; reads observe staged
// values over committed ones uniformly.
type Record struct {
	table  *Table
	recno  uint32
	row    []byte
	staged map[int]interface{}
}

// Recno returns the record's physical position.
func (r *Record) Recno() uint32 {
	return r.recno
}

// Deleted reports whether the deletion flag is set.
func (r *Record) Deleted() bool {
	return r.row[0] == flagDeleted
}

// Fields returns the record's field descriptors.
func (r *Record) Fields() []field.Descriptor {
	return r.table.Fields()
}

// Value returns the field value at position i, staged edits included.
// Null decodes as nil; blank text fields decode as empty strings.
func (r *Record) Value(i int) (interface{}, error) {
	if r.table.closed {
		return nil, ErrTableClosed
	}
	if i < 0 || i >= len(r.table.layout.fields) {
		return nil, fmt.Errorf("field %d out of range: record has %d fields",
			i, len(r.table.layout.fields))
	}
	if v, ok := r.staged[i]; ok {
		return v, nil
	}
	if r.table.layout.nullBit(r.row, i) {
		return nil, nil
	}
	fd := r.table.layout.fields[i]
	v, err := r.table.codec.Decode(fd, r.row[fd.Offset:fd.End()])
	if err != nil {
		return nil, fmt.Errorf("%w: record %d: %v", ErrCorruptRecord, r.recno, err)
	}
	return v, nil
}

// ValueNamed returns the field value by case-insensitive name.
func (r *Record) ValueNamed(name string) (interface{}, error) {
	i, ok := r.table.layout.index(name)
	if !ok {
		return nil, fmt.Errorf("no field named %q", name)
	}
	return r.Value(i)
}

// Set stages a new value for the field at position i without touching
// storage. The value is validated and encoded on Write.
func (r *Record) Set(i int, v interface{}) error {
	if r.table.closed {
		return ErrTableClosed
	}
	if i < 0 || i >= len(r.table.layout.fields) {
		return fmt.Errorf("field %d out of range: record has %d fields",
			i, len(r.table.layout.fields))
	}
	r.staged[i] = v
	return nil
}

// SetNamed stages a new value for the named field.
func (r *Record) SetNamed(name string, v interface{}) error {
	i, ok := r.table.layout.index(name)
	if !ok {
		return fmt.Errorf("no field named %q", name)
	}
	return r.Set(i, v)
}

// Gather stages every entry of values, keyed by field name.
func (r *Record) Gather(values map[string]interface{}) error {
	for name, v := range values {
		if err := r.SetNamed(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Scatter returns all field values keyed by name, staged edits included.
func (r *Record) Scatter() (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(r.table.layout.fields))
	for i, fd := range r.table.layout.fields {
		v, err := r.Value(i)
		if err != nil {
			return nil, err
		}
		out[fd.Name] = v
	}
	return out, nil
}

// Dirty reports whether uncommitted staged edits exist.
func (r *Record) Dirty() bool {
	return len(r.staged) > 0
}

// Discard drops all staged edits.
func (r *Record) Discard() {
	r.staged = make(map[int]interface{})
}

// Write commits the staged edits: only touched fields are re-encoded, the
// row is persisted, and bound indexes are repositioned before returning.
// A memo field reallocates blocks only when its payload outgrows the
// current span, otherwise it is overwritten in place. On error nothing
// reaches storage and the staged edits remain.
func (r *Record) Write() error {
	if r.table.closed {
		return ErrTableClosed
	}
	if len(r.staged) == 0 {
		return nil
	}

	// scalar fields encode first and memo payloads are validated up
	// front; the memo store is only touched once every staged value has
	// passed, so a bad value cannot leave a referenced block overwritten
	lay := r.table.layout
	newRow := append([]byte(nil), r.row...)
	var memoFields []int
	for i, fd := range lay.fields {
		v, ok := r.staged[i]
		if !ok {
			continue
		}
		if r.table.dialect.MemoClass(fd.Type) {
			if err := r.table.codec.ValidateMemo(fd, v); err != nil {
				return err
			}
			memoFields = append(memoFields, i)
			continue
		}
		raw, err := r.table.codec.Encode(fd, v)
		if err != nil {
			return err
		}
		copy(newRow[fd.Offset:fd.End()], raw)
		lay.setNullBit(newRow, i, v == nil && fd.Nullable())
	}
	for _, i := range memoFields {
		fd := lay.fields[i]
		v := r.staged[i]
		raw, err := r.table.codec.EncodeMemoUpdate(fd, v, r.row[fd.Offset:fd.End()])
		if err != nil {
			return err
		}
		copy(newRow[fd.Offset:fd.End()], raw)
		lay.setNullBit(newRow, i, v == nil && fd.Nullable())
	}

	if err := r.table.writeRow(r.recno, newRow); err != nil {
		return err
	}
	r.table.hdr.touch(r.table.opts.Now())
	if err := r.table.writeHeader(); err != nil {
		return err
	}
	r.row = newRow
	r.staged = make(map[int]interface{})
	return r.table.notifyUpdate(r)
}

// Update runs fn inside a scoped mutation: the per-record lock is held for
// the duration, a nil return commits the staged edits, and any error or
// panic discards them, so partial edits never reach storage.
func (r *Record) Update(fn func(*Record) error) error {
	if r.table.closed {
		return ErrTableClosed
	}
	if err := r.table.lockRecord(r.recno); err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			r.Discard()
		}
		r.table.unlockRecord(r.recno)
	}()
	if err := fn(r); err != nil {
		return err
	}
	if err := r.Write(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Delete sets the deletion flag immediately, independent of staged edits.
// The row stays in place until the table is packed.
func (r *Record) Delete() error {
	if r.table.closed {
		return ErrTableClosed
	}
	if r.Deleted() {
		return nil
	}
	r.row[0] = flagDeleted
	if err := r.table.writeRow(r.recno, r.row); err != nil {
		return err
	}
	for _, obs := range r.table.observers {
		if err := obs.OnDelete(r.recno); err != nil {
			return err
		}
	}
	return nil
}

// Undelete clears the deletion flag immediately.
func (r *Record) Undelete() error {
	if r.table.closed {
		return ErrTableClosed
	}
	if !r.Deleted() {
		return nil
	}
	r.row[0] = flagLive
	if err := r.table.writeRow(r.recno, r.row); err != nil {
		return err
	}
	for _, obs := range r.table.observers {
		if err := obs.OnUndelete(r); err != nil {
			return err
		}
	}
	return nil
}
