package table

import (
	"fmt"

	"github.com/xbasedb/xbase/pkg/field"
	"github.com/xbasedb/xbase/pkg/memo"
	"github.com/xbasedb/xbase/pkg/storage"
)

// AddField appends a new field to the layout and rewrites every record.
// Existing field bytes are carried over untouched; the new field starts
// blank, or null when it is nullable.
func (t *Table) AddField(spec FieldSpec) error {
	specs := append(t.layout.specs(), spec)
	return t.restructure(specs, fmt.Sprintf("add field %s", spec.Name))
}

// DropField removes a field from the layout and rewrites every record.
func (t *Table) DropField(name string) error {
	i, ok := t.layout.index(name)
	if !ok {
		return fmt.Errorf("no field named %q", name)
	}
	specs := t.layout.specs()
	specs = append(specs[:i], specs[i+1:]...)
	return t.restructure(specs, fmt.Sprintf("drop field %s", name))
}

// ResizeField changes the width or decimal count of a field, re-encoding
// every stored value. A value that does not fit the new shape aborts the
// whole change with the table untouched.
func (t *Table) ResizeField(name string, length, decimals int) error {
	i, ok := t.layout.index(name)
	if !ok {
		return fmt.Errorf("no field named %q", name)
	}
	specs := t.layout.specs()
	specs[i].Length = length
	specs[i].Decimals = decimals
	return t.restructure(specs, fmt.Sprintf("resize field %s to %d,%d", name, length, decimals))
}

// restructure rebuilds the table around a new layout. The new header,
// every rewritten row and the new memo image are staged in memory first,
// so any validation or conversion failure leaves storage untouched.
func (t *Table) restructure(specs []FieldSpec, what string) error {
	if t.closed {
		return ErrTableClosed
	}
	if !t.excl.TryLock() {
		return ErrTableBusy
	}
	defer t.excl.Unlock()

	newLay, err := buildLayout(t.dialect, specs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStructuralChange, err)
	}

	var newStore *memo.Store
	var newMemoImage *storage.Buffer
	if newLay.hasMemo(t.dialect) {
		if t.memoHandle == nil {
			return fmt.Errorf("%w: new layout has memo fields but no memo handle", ErrMissingMemoFile)
		}
		blockSize := t.opts.MemoBlockSize
		if t.memo != nil {
			blockSize = t.memo.BlockSize()
		}
		newMemoImage = storage.NewBuffer()
		newStore, err = memo.Create(newMemoImage, t.dialect.MemoFormat, blockSize)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStructuralChange, err)
		}
	}
	newCodec := field.NewCodec(t.dialect, newStore)

	newRows := make([][]byte, 0, t.hdr.recordCount)
	for recno := uint32(0); recno < t.hdr.recordCount; recno++ {
		oldRow, err := t.readRow(recno)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStructuralChange, err)
		}
		newRow := make([]byte, newLay.recordLength)
		newRow[0] = oldRow[0]
		for j, nfd := range newLay.fields {
			if err := t.carryField(oldRow, newRow, j, nfd, newLay, newCodec, newStore); err != nil {
				return fmt.Errorf("%w: record %d field %s: %v", ErrStructuralChange, recno, nfd.Name, err)
			}
		}
		newRows = append(newRows, newRow)
	}

	// staging succeeded, commit the new shape
	version := t.dialect.Version
	var tableFlags byte
	if newLay.hasMemo(t.dialect) {
		version = t.dialect.MemoVersion
		if t.dialect.BinaryMemoRef {
			tableFlags |= tableFlagMemo
		}
	}
	t.layout = newLay
	t.hdr.version = version
	t.hdr.tableFlags = tableFlags
	t.hdr.headerLength = uint16(newLay.headerLength())
	t.hdr.recordLength = uint16(newLay.recordLength)
	t.hdr.touch(t.opts.Now())

	if err := t.writeLayout(); err != nil {
		return err
	}
	for i, row := range newRows {
		if err := t.writeRow(uint32(i), row); err != nil {
			return err
		}
	}
	if err := t.writeEOF(); err != nil {
		return err
	}

	if newStore != nil {
		if err := t.swapMemoImage(newMemoImage); err != nil {
			return err
		}
	} else if t.memo != nil {
		t.memo = nil
		t.codec = field.NewCodec(t.dialect, nil)
	}
	t.refreshFingerprint()

	t.logger.Info("restructured table: %s, %d records rewritten", what, len(newRows))
	for _, obs := range t.observers {
		obs.OnStructuralChange()
	}
	return nil
}

// carryField fills one field of a rewritten row from the old row. Fields
// with an unchanged shape are copied byte for byte so an add-then-drop
// round trip reproduces the original record image.
func (t *Table) carryField(oldRow, newRow []byte, j int, nfd field.Descriptor,
	newLay *layout, newCodec *field.Codec, newStore *memo.Store) error {
	oldIdx, existed := t.layout.index(nfd.Name)
	if !existed {
		copy(newRow[nfd.Offset:nfd.End()], newCodec.Blank(nfd))
		if nfd.Nullable() {
			newLay.setNullBit(newRow, j, true)
		}
		return nil
	}
	ofd := t.layout.fields[oldIdx]

	if t.layout.nullBit(oldRow, oldIdx) {
		copy(newRow[nfd.Offset:nfd.End()], newCodec.Blank(nfd))
		newLay.setNullBit(newRow, j, nfd.Nullable())
		return nil
	}

	if t.dialect.MemoClass(nfd.Type) {
		block, set, err := t.codec.DecodeMemoRef(ofd, oldRow[ofd.Offset:ofd.End()])
		if err != nil {
			return err
		}
		if !set {
			copy(newRow[nfd.Offset:nfd.End()], newCodec.Blank(nfd))
			return nil
		}
		data, err := t.memo.Read(block)
		if err != nil {
			return err
		}
		newBlock, err := newStore.Write(data)
		if err != nil {
			return err
		}
		copy(newRow[nfd.Offset:nfd.End()], newCodec.EncodeMemoRef(nfd, newBlock))
		return nil
	}

	if ofd.Type == nfd.Type && ofd.Length == nfd.Length && ofd.Decimals == nfd.Decimals {
		copy(newRow[nfd.Offset:nfd.End()], oldRow[ofd.Offset:ofd.End()])
		return nil
	}

	// shape changed, re-encode through the value domain
	v, err := t.codec.Decode(ofd, oldRow[ofd.Offset:ofd.End()])
	if err != nil {
		return err
	}
	if v == nil {
		copy(newRow[nfd.Offset:nfd.End()], newCodec.Blank(nfd))
		return nil
	}
	raw, err := newCodec.Encode(nfd, v)
	if err != nil {
		return err
	}
	copy(newRow[nfd.Offset:nfd.End()], raw)
	return nil
}
