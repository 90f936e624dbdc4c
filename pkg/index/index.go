// Package index maintains in-memory orderings over the live records of a
// table. An Index binds to its table as a mutation observer, so every
// append, update, delete and pack is mirrored synchronously. Indexes are
// derived state: they are rebuilt on open, never persisted.
package index

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/xbasedb/xbase/pkg/table"
)

// ErrIndexStale is returned when the table's field layout changed after
// the index was built. A stale index must be rebuilt before use.
var ErrIndexStale = errors.New("index is stale")

// KeyFunc derives the ordering key for one record. Keys compare
// bytewise; records with equal keys order by record number.
type KeyFunc func(*table.Record) ([]byte, error)

// StringKey orders by a single field rendered as its string form, which
// for character fields matches dictionary order.
func StringKey(name string) KeyFunc {
	return func(rec *table.Record) ([]byte, error) {
		v, err := rec.ValueNamed(name)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		return []byte(fmt.Sprintf("%v", v)), nil
	}
}

type entry struct {
	key   []byte
	recno uint32
}

// Index is a sorted view over the live records of one table. It is not
// safe for concurrent use, matching the single-writer model of the table
// it mirrors.
type Index struct {
	table       *table.Table
	keyFn       KeyFunc
	entries     []entry
	byRecno     map[uint32][]byte
	fingerprint uint64
	stale       bool
}

// New builds an index over t's live records and binds it so subsequent
// mutations keep it current.
func New(t *table.Table, keyFn KeyFunc) (*Index, error) {
	idx := &Index{table: t, keyFn: keyFn}
	if err := idx.Rebuild(); err != nil {
		return nil, err
	}
	t.Bind(idx)
	return idx, nil
}

// Close detaches the index from its table. A closed index no longer
// tracks mutations.
func (idx *Index) Close() {
	idx.table.Unbind(idx)
}

// Rebuild discards the current ordering and re-derives it from the
// table, clearing staleness.
func (idx *Index) Rebuild() error {
	entries := make([]entry, 0, idx.table.RecordCount())
	byRecno := make(map[uint32][]byte)
	sc := idx.table.Scan()
	for sc.Next() {
		rec := sc.Record()
		if rec.Deleted() {
			continue
		}
		key, err := idx.keyFn(rec)
		if err != nil {
			return fmt.Errorf("failed to key record %d: %w", rec.Recno(), err)
		}
		entries = append(entries, entry{key: key, recno: rec.Recno()})
		byRecno[rec.Recno()] = key
	}
	if err := sc.Err(); err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool {
		return less(entries[i], entries[j])
	})
	idx.entries = entries
	idx.byRecno = byRecno
	idx.fingerprint = idx.table.SchemaFingerprint()
	idx.stale = false
	return nil
}

// Stale reports whether the index lags a structural change.
func (idx *Index) Stale() bool {
	return idx.stale || idx.fingerprint != idx.table.SchemaFingerprint()
}

// Len returns the number of indexed records.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Scan iterates all indexed records in key order.
func (idx *Index) Scan() (*Iterator, error) {
	if idx.Stale() {
		return nil, ErrIndexStale
	}
	return &Iterator{idx: idx, pos: -1}, nil
}

// Seek iterates from the first key at or above key, in key order.
func (idx *Index) Seek(key []byte) (*Iterator, error) {
	if idx.Stale() {
		return nil, ErrIndexStale
	}
	pos := sort.Search(len(idx.entries), func(i int) bool {
		return bytes.Compare(idx.entries[i].key, key) >= 0
	})
	return &Iterator{idx: idx, pos: pos - 1}, nil
}

// Range iterates keys in [lo, hi), in key order.
func (idx *Index) Range(lo, hi []byte) (*Iterator, error) {
	it, err := idx.Seek(lo)
	if err != nil {
		return nil, err
	}
	it.limit = hi
	return it, nil
}

// Find returns the first record whose key equals key exactly.
func (idx *Index) Find(key []byte) (*table.Record, bool, error) {
	it, err := idx.Seek(key)
	if err != nil {
		return nil, false, err
	}
	if !it.Next() || !bytes.Equal(it.Key(), key) {
		return nil, false, nil
	}
	rec, err := it.Record()
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// OnAppend inserts the new record. Stale indexes ignore notifications
// until rebuilt.
func (idx *Index) OnAppend(rec *table.Record) error {
	if idx.Stale() {
		return nil
	}
	return idx.insert(rec)
}

// OnUpdate repositions the record under its possibly changed key.
func (idx *Index) OnUpdate(rec *table.Record) error {
	if idx.Stale() {
		return nil
	}
	idx.remove(rec.Recno())
	if rec.Deleted() {
		return nil
	}
	return idx.insert(rec)
}

// OnDelete drops the record from the ordering.
func (idx *Index) OnDelete(recno uint32) error {
	if idx.Stale() {
		return nil
	}
	idx.remove(recno)
	return nil
}

// OnUndelete reinstates the record.
func (idx *Index) OnUndelete(rec *table.Record) error {
	if idx.Stale() {
		return nil
	}
	return idx.insert(rec)
}

// OnPack rebuilds, since packing renumbers every record.
func (idx *Index) OnPack() error {
	if idx.stale {
		return nil
	}
	return idx.Rebuild()
}

// OnStructuralChange marks the index stale. Key functions reference
// fields by name, so a layout change invalidates the derivation.
func (idx *Index) OnStructuralChange() {
	idx.stale = true
}

func (idx *Index) insert(rec *table.Record) error {
	key, err := idx.keyFn(rec)
	if err != nil {
		return fmt.Errorf("failed to key record %d: %w", rec.Recno(), err)
	}
	e := entry{key: key, recno: rec.Recno()}
	pos := sort.Search(len(idx.entries), func(i int) bool {
		return !less(idx.entries[i], e)
	})
	idx.entries = append(idx.entries, entry{})
	copy(idx.entries[pos+1:], idx.entries[pos:])
	idx.entries[pos] = e
	idx.byRecno[rec.Recno()] = key
	return nil
}

func (idx *Index) remove(recno uint32) {
	key, ok := idx.byRecno[recno]
	if !ok {
		return
	}
	e := entry{key: key, recno: recno}
	pos := sort.Search(len(idx.entries), func(i int) bool {
		return !less(idx.entries[i], e)
	})
	if pos < len(idx.entries) && idx.entries[pos].recno == recno {
		idx.entries = append(idx.entries[:pos], idx.entries[pos+1:]...)
	}
	delete(idx.byRecno, recno)
}

func less(a, b entry) bool {
	if c := bytes.Compare(a.key, b.key); c != 0 {
		return c < 0
	}
	return a.recno < b.recno
}

// Iterator walks index entries in key order.
type Iterator struct {
	idx   *Index
	pos   int
	limit []byte
}

// Next advances the iterator, returning false past the end or limit.
func (it *Iterator) Next() bool {
	if it.pos+1 >= len(it.idx.entries) {
		return false
	}
	it.pos++
	if it.limit != nil && bytes.Compare(it.idx.entries[it.pos].key, it.limit) >= 0 {
		it.pos = len(it.idx.entries)
		return false
	}
	return true
}

// Key returns the current entry's key.
func (it *Iterator) Key() []byte {
	return it.idx.entries[it.pos].key
}

// Recno returns the current entry's record number.
func (it *Iterator) Recno() uint32 {
	return it.idx.entries[it.pos].recno
}

// Record materializes the current record from the table.
func (it *Iterator) Record() (*table.Record, error) {
	return it.idx.table.Record(it.Recno())
}
