// Package table implements the xBase table engine: header and row codec,
// append and iteration, record mutation with staged edits, pack, structural
// rewrite and compressed backup streams. A Table operates on byte-
// addressable storage handles; it never touches the filesystem itself.
package table

import (
	"fmt"
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/xbasedb/xbase/pkg/common/log"
	"github.com/xbasedb/xbase/pkg/dialect"
	"github.com/xbasedb/xbase/pkg/field"
	"github.com/xbasedb/xbase/pkg/memo"
	"github.com/xbasedb/xbase/pkg/storage"
	"github.com/xbasedb/xbase/pkg/types"
)

// Observer is notified of record mutations so bound indexes stay current.
// All methods run synchronously inside the mutating operation.
type Observer interface {
	// OnAppend runs after a new record is durable
	OnAppend(rec *Record) error
	// OnUpdate runs after a record commit is durable
	OnUpdate(rec *Record) error
	// OnDelete runs after a record is deletion-flagged
	OnDelete(recno uint32) error
	// OnUndelete runs after a deletion flag is cleared
	OnUndelete(rec *Record) error
	// OnPack runs after pack or zap renumbered the records
	OnPack() error
	// OnStructuralChange runs after the field layout changed
	OnStructuralChange()
}

// Table is one open xBase table plus its optional memo companion.
// A Table is not safe for concurrent use; the advisory locks only guard
// against overlapping logical operations, per the single-writer model.
type Table struct {
	dialect    *dialect.Dialect
	handle     storage.Handle
	memoHandle storage.Handle
	memo       *memo.Store
	codec      *field.Codec
	hdr        *header
	layout     *layout
	opts       Options
	logger     log.Logger

	// excl is the advisory table lock guarding pack, zap and structural
	// rewrites; TryLock keeps contention fail-fast
	excl sync.Mutex

	recLockMu sync.Mutex
	recLocks  map[uint32]bool

	observers   []Observer
	fingerprint uint64
	closed      bool
}

// Create initializes a new table on handle with the given schema.
// memoHandle is required when the schema contains memo-class fields and
// ignored otherwise.
func Create(handle, memoHandle storage.Handle, d *dialect.Dialect, specs []FieldSpec, opts Options) (*Table, error) {
	opts = opts.withDefaults()
	lay, err := buildLayout(d, specs)
	if err != nil {
		return nil, err
	}

	t := &Table{
		dialect:    d,
		handle:     handle,
		memoHandle: memoHandle,
		layout:     lay,
		opts:       opts,
		logger:     opts.Logger.WithField("dialect", d.Name),
		recLocks:   make(map[uint32]bool),
	}

	version := d.Version
	var tableFlags byte
	if lay.hasMemo(d) {
		if memoHandle == nil {
			return nil, fmt.Errorf("%w: schema has memo fields but no memo handle", ErrMissingMemoFile)
		}
		version = d.MemoVersion
		if d.BinaryMemoRef {
			tableFlags |= tableFlagMemo
		}
		store, err := memo.Create(memoHandle, d.MemoFormat, opts.MemoBlockSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create memo store: %w", err)
		}
		t.memo = store
	}

	t.hdr = &header{
		version:      version,
		recordCount:  0,
		headerLength: uint16(lay.headerLength()),
		recordLength: uint16(lay.recordLength),
		tableFlags:   tableFlags,
	}
	t.hdr.touch(opts.Now())
	t.codec = field.NewCodec(d, t.memo)
	t.refreshFingerprint()

	if err := handle.Truncate(0); err != nil {
		return nil, fmt.Errorf("failed to reset table storage: %w", err)
	}
	if err := t.writeLayout(); err != nil {
		return nil, err
	}
	if err := t.writeEOF(); err != nil {
		return nil, err
	}
	t.logger.Debug("created table with %d fields, record length %d",
		len(lay.fields), lay.recordLength)
	return t, nil
}

// Open reads an existing table from handle. memoHandle must be supplied
// when the header's memo flag is set.
func Open(handle, memoHandle storage.Handle, d *dialect.Dialect, opts Options) (*Table, error) {
	opts = opts.withDefaults()

	raw := make([]byte, headerSize)
	if _, err := handle.ReadAt(raw, 0); err != nil {
		return nil, fmt.Errorf("%w: unreadable header: %v", ErrCorruptHeader, err)
	}
	hdr, err := decodeHeader(raw)
	if err != nil {
		return nil, err
	}
	if hdr.version != d.Version && hdr.version != d.MemoVersion {
		return nil, fmt.Errorf("%w: version byte 0x%02x is not a %s table",
			ErrCorruptHeader, hdr.version, d.Name)
	}

	block := make([]byte, int(hdr.headerLength)-headerSize)
	if _, err := handle.ReadAt(block, headerSize); err != nil {
		return nil, fmt.Errorf("%w: unreadable descriptor block: %v", ErrCorruptHeader, err)
	}
	if block[len(block)-1] != headerTerminator {
		return nil, fmt.Errorf("%w: descriptor array not terminated", ErrCorruptHeader)
	}
	lay, err := parseLayout(d, block[:len(block)-1])
	if err != nil {
		return nil, err
	}
	if lay.recordLength != int(hdr.recordLength) {
		return nil, fmt.Errorf("%w: record length %d but field widths total %d",
			ErrCorruptHeader, hdr.recordLength, lay.recordLength)
	}

	t := &Table{
		dialect:    d,
		handle:     handle,
		memoHandle: memoHandle,
		hdr:        hdr,
		layout:     lay,
		opts:       opts,
		logger:     opts.Logger.WithField("dialect", d.Name),
		recLocks:   make(map[uint32]bool),
	}

	memoFlagged := hdr.version == d.MemoVersion && d.MemoVersion != d.Version ||
		hdr.tableFlags&tableFlagMemo != 0
	if memoFlagged || lay.hasMemo(d) {
		if memoHandle == nil {
			return nil, fmt.Errorf("%w: header version 0x%02x requires a companion file",
				ErrMissingMemoFile, hdr.version)
		}
		store, err := memo.Open(memoHandle, d.MemoFormat)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingMemoFile, err)
		}
		t.memo = store
	}
	t.codec = field.NewCodec(d, t.memo)
	t.refreshFingerprint()
	t.logger.Debug("opened table: %d records, %d fields", hdr.recordCount, len(lay.fields))
	return t, nil
}

// Dialect returns the dialect the table was opened with.
func (t *Table) Dialect() *dialect.Dialect {
	return t.dialect
}

// Fields returns the user-visible field descriptors in row order.
func (t *Table) Fields() []field.Descriptor {
	return append([]field.Descriptor(nil), t.layout.fields...)
}

// RecordCount returns the physical record count, deleted rows included.
func (t *Table) RecordCount() uint32 {
	return t.hdr.recordCount
}

// LastUpdate returns the header's last-update date.
func (t *Table) LastUpdate() (year int, month int, day int) {
	u := t.hdr.lastUpdate
	return u.Year(), int(u.Month()), u.Day()
}

// Version returns the header version byte.
func (t *Table) Version() byte {
	return t.hdr.version
}

// SchemaFingerprint identifies the current field layout. It changes on
// every structural mutation, letting bound indexes detect staleness.
func (t *Table) SchemaFingerprint() uint64 {
	return t.fingerprint
}

// MemoStore exposes the companion store, nil when the table has none.
func (t *Table) MemoStore() *memo.Store {
	return t.memo
}

// Bind attaches an observer that mirrors every mutation.
func (t *Table) Bind(obs Observer) {
	t.observers = append(t.observers, obs)
}

// Unbind detaches a previously bound observer.
func (t *Table) Unbind(obs Observer) {
	for i, o := range t.observers {
		if o == obs {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Append validates values against the schema, writes memo payloads first
// and then the row, so memo pointers are always valid before the row is
// durable. On partial failure a written memo block is leaked as
// reclaimable garbage, never dangling.
func (t *Table) Append(values ...interface{}) (*Record, error) {
	if t.closed {
		return nil, ErrTableClosed
	}
	if len(values) != len(t.layout.fields) {
		return nil, fmt.Errorf("%w: got %d values for %d fields",
			types.ErrInvalidOperation, len(values), len(t.layout.fields))
	}

	row := make([]byte, t.layout.recordLength)
	row[0] = flagLive
	for i, fd := range t.layout.fields {
		if values[i] == nil && fd.Nullable() {
			copy(row[fd.Offset:fd.End()], t.codec.Blank(fd))
			t.layout.setNullBit(row, i, true)
			continue
		}
		raw, err := t.codec.Encode(fd, values[i])
		if err != nil {
			return nil, err
		}
		copy(row[fd.Offset:fd.End()], raw)
	}

	recno := t.hdr.recordCount
	if err := t.writeRow(recno, row); err != nil {
		return nil, err
	}
	t.hdr.recordCount++
	t.hdr.touch(t.opts.Now())
	if err := t.writeHeader(); err != nil {
		return nil, err
	}
	if err := t.writeEOF(); err != nil {
		return nil, err
	}

	rec := &Record{table: t, recno: recno, row: row, staged: make(map[int]interface{})}
	for _, obs := range t.observers {
		if err := obs.OnAppend(rec); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// Record materializes the record at position recno.
func (t *Table) Record(recno uint32) (*Record, error) {
	if t.closed {
		return nil, ErrTableClosed
	}
	if recno >= t.hdr.recordCount {
		return nil, fmt.Errorf("record %d out of range: table has %d records",
			recno, t.hdr.recordCount)
	}
	row, err := t.readRow(recno)
	if err != nil {
		return nil, err
	}
	return &Record{table: t, recno: recno, row: row, staged: make(map[int]interface{})}, nil
}

// Scan returns an iterator over records in physical order. Deleted rows
// are included unless Options.SkipDeleted is set. For key order, iterate
// through a bound index instead.
func (t *Table) Scan() *Scanner {
	return &Scanner{table: t}
}

// Flush persists the header and syncs both handles.
func (t *Table) Flush() error {
	if t.closed {
		return ErrTableClosed
	}
	if err := t.writeHeader(); err != nil {
		return err
	}
	if err := t.handle.Sync(); err != nil {
		return fmt.Errorf("failed to sync table: %w", err)
	}
	if t.memo != nil {
		if err := t.memo.Sync(); err != nil {
			return fmt.Errorf("failed to sync memo store: %w", err)
		}
	}
	return nil
}

// Close flushes pending state and releases the table. Operations on a
// closed table fail with ErrTableClosed.
func (t *Table) Close() error {
	if t.closed {
		return nil
	}
	if err := t.Flush(); err != nil {
		return err
	}
	t.closed = true
	if t.memo != nil {
		if err := t.memo.Close(); err != nil {
			return err
		}
	}
	t.logger.Debug("closed table with %d records", t.hdr.recordCount)
	return nil
}

func (t *Table) rowOffset(recno uint32) int64 {
	return int64(t.hdr.headerLength) + int64(recno)*int64(t.hdr.recordLength)
}

func (t *Table) readRow(recno uint32) ([]byte, error) {
	row := make([]byte, t.hdr.recordLength)
	if _, err := t.handle.ReadAt(row, t.rowOffset(recno)); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: record %d unreadable: %v", ErrCorruptRecord, recno, err)
	}
	if row[0] != flagLive && row[0] != flagDeleted {
		return nil, fmt.Errorf("%w: record %d has deletion flag 0x%02x",
			ErrCorruptRecord, recno, row[0])
	}
	return row, nil
}

func (t *Table) writeRow(recno uint32, row []byte) error {
	if _, err := t.handle.WriteAt(row, t.rowOffset(recno)); err != nil {
		return fmt.Errorf("failed to write record %d: %w", recno, err)
	}
	return nil
}

func (t *Table) writeHeader() error {
	if _, err := t.handle.WriteAt(t.hdr.encode(), 0); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// writeLayout writes the header, descriptor block and terminator.
func (t *Table) writeLayout() error {
	if err := t.writeHeader(); err != nil {
		return err
	}
	block := append(t.layout.encode(t.dialect), headerTerminator)
	if _, err := t.handle.WriteAt(block, headerSize); err != nil {
		return fmt.Errorf("failed to write descriptor block: %w", err)
	}
	return nil
}

// writeEOF places the end-of-file marker after the last record and trims
// anything beyond it.
func (t *Table) writeEOF() error {
	end := t.rowOffset(t.hdr.recordCount)
	if _, err := t.handle.WriteAt([]byte{eofMarker}, end); err != nil {
		return fmt.Errorf("failed to write EOF marker: %w", err)
	}
	if err := t.handle.Truncate(end + 1); err != nil {
		return fmt.Errorf("failed to trim table storage: %w", err)
	}
	return nil
}

// attachMemo swaps in a memo store and rebuilds the codec around it.
func (t *Table) attachMemo(store *memo.Store) {
	t.memo = store
	t.codec = field.NewCodec(t.dialect, store)
}

func (t *Table) refreshFingerprint() {
	t.fingerprint = xxhash.Sum64(t.layout.encode(t.dialect))
}

func (t *Table) lockRecord(recno uint32) error {
	t.recLockMu.Lock()
	defer t.recLockMu.Unlock()
	if t.recLocks[recno] {
		return fmt.Errorf("%w: record %d", ErrRecordBusy, recno)
	}
	t.recLocks[recno] = true
	return nil
}

func (t *Table) unlockRecord(recno uint32) {
	t.recLockMu.Lock()
	defer t.recLockMu.Unlock()
	delete(t.recLocks, recno)
}

func (t *Table) notifyUpdate(rec *Record) error {
	for _, obs := range t.observers {
		if err := obs.OnUpdate(rec); err != nil {
			return err
		}
	}
	return nil
}

// Scanner walks records in physical order.
type Scanner struct {
	table *Table
	next  uint32
	rec   *Record
	err   error
}

// Next advances to the next record, honoring the skip-deleted mode.
// It returns false at the end of the table or on error.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}
	for s.next < s.table.RecordCount() {
		rec, err := s.table.Record(s.next)
		s.next++
		if err != nil {
			s.err = err
			return false
		}
		if s.table.opts.SkipDeleted && rec.Deleted() {
			continue
		}
		s.rec = rec
		return true
	}
	return false
}

// Record returns the current record.
func (s *Scanner) Record() *Record {
	return s.rec
}

// Err returns the error that stopped the scan, if any.
func (s *Scanner) Err() error {
	return s.err
}
