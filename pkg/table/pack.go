package table

import (
	"fmt"

	"github.com/xbasedb/xbase/pkg/memo"
	"github.com/xbasedb/xbase/pkg/storage"
)

// Pack physically removes deletion-flagged records and rebuilds the memo
// store, reclaiming garbage blocks. It requires exclusivity: when the
// advisory table lock is held, Pack fails fast with ErrTableBusy.
func (t *Table) Pack() error {
	if t.closed {
		return ErrTableClosed
	}
	if !t.excl.TryLock() {
		return ErrTableBusy
	}
	defer t.excl.Unlock()

	var newStore *memo.Store
	var newMemoImage *storage.Buffer
	if t.memo != nil {
		newMemoImage = storage.NewBuffer()
		var err error
		newStore, err = memo.Create(newMemoImage, t.dialect.MemoFormat, t.memo.BlockSize())
		if err != nil {
			return fmt.Errorf("failed to rebuild memo store: %w", err)
		}
	}

	// collect live rows with memo references repointed into the fresh store
	var live [][]byte
	for recno := uint32(0); recno < t.hdr.recordCount; recno++ {
		row, err := t.readRow(recno)
		if err != nil {
			return err
		}
		if row[0] == flagDeleted {
			continue
		}
		if newStore != nil {
			if err := t.repointMemoRefs(row, t.memo, newStore); err != nil {
				return fmt.Errorf("%w: record %d: %v", ErrCorruptRecord, recno, err)
			}
		}
		live = append(live, row)
	}

	removed := t.hdr.recordCount - uint32(len(live))
	t.hdr.recordCount = uint32(len(live))
	t.hdr.touch(t.opts.Now())
	if err := t.writeHeader(); err != nil {
		return err
	}
	for i, row := range live {
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
	}

	t.logger.Info("packed table: removed %d records, %d remain", removed, t.hdr.recordCount)
	for _, obs := range t.observers {
		if err := obs.OnPack(); err != nil {
			return err
		}
	}
	return nil
}

// Zap removes every record and resets the memo store.
func (t *Table) Zap() error {
	if t.closed {
		return ErrTableClosed
	}
	if !t.excl.TryLock() {
		return ErrTableBusy
	}
	defer t.excl.Unlock()

	removed := t.hdr.recordCount
	t.hdr.recordCount = 0
	t.hdr.touch(t.opts.Now())
	if err := t.writeHeader(); err != nil {
		return err
	}
	if err := t.writeEOF(); err != nil {
		return err
	}
	if t.memo != nil {
		store, err := memo.Create(t.memoHandle, t.dialect.MemoFormat, t.memo.BlockSize())
		if err != nil {
			return fmt.Errorf("failed to reset memo store: %w", err)
		}
		t.attachMemo(store)
	}

	t.logger.Info("zapped table: removed %d records", removed)
	for _, obs := range t.observers {
		if err := obs.OnPack(); err != nil {
			return err
		}
	}
	return nil
}

// repointMemoRefs copies every referenced memo payload from src into dst
// and patches the row's reference bytes in place.
func (t *Table) repointMemoRefs(row []byte, src, dst *memo.Store) error {
	for _, fd := range t.layout.fields {
		if !t.dialect.MemoClass(fd.Type) {
			continue
		}
		block, ok, err := t.codec.DecodeMemoRef(fd, row[fd.Offset:fd.End()])
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		data, err := src.Read(block)
		if err != nil {
			return err
		}
		newBlock, err := dst.Write(data)
		if err != nil {
			return err
		}
		copy(row[fd.Offset:fd.End()], t.codec.EncodeMemoRef(fd, newBlock))
	}
	return nil
}

// swapMemoImage replaces the companion file's bytes with a rebuilt image
// and reattaches the store.
func (t *Table) swapMemoImage(image *storage.Buffer) error {
	data := image.Bytes()
	if err := t.memoHandle.Truncate(0); err != nil {
		return fmt.Errorf("failed to reset memo file: %w", err)
	}
	if _, err := t.memoHandle.WriteAt(data, 0); err != nil {
		return fmt.Errorf("failed to write memo image: %w", err)
	}
	store, err := memo.Open(t.memoHandle, t.dialect.MemoFormat)
	if err != nil {
		return fmt.Errorf("failed to reopen memo store: %w", err)
	}
	t.attachMemo(store)
	return nil
}
