package table

import "errors"

var (
	// ErrCorruptHeader is returned when the table header or field
	// descriptor block is unparseable or internally inconsistent
	ErrCorruptHeader = errors.New("corrupt table header")
	// ErrCorruptRecord is returned when a row's on-disk bytes cannot be
	// interpreted under the current layout
	ErrCorruptRecord = errors.New("corrupt record")
	// ErrTableClosed is returned for operations on a closed table
	ErrTableClosed = errors.New("table is closed")
	// ErrTableBusy is returned when pack or a structural change cannot
	// acquire the advisory table lock; callers retry or serialize
	ErrTableBusy = errors.New("table is busy")
	// ErrRecordBusy is returned when a scoped mutation overlaps another
	// scope on the same record
	ErrRecordBusy = errors.New("record is locked by another mutation scope")
	// ErrMissingMemoFile is returned when the header demands a memo
	// companion file and none is reachable
	ErrMissingMemoFile = errors.New("memo file missing")
	// ErrStructuralChange is returned when a layout rewrite fails; the
	// original file is left untouched
	ErrStructuralChange = errors.New("structural change failed")
	// ErrInvalidBackup is returned when a backup stream is unreadable or
	// fails its checksums
	ErrInvalidBackup = errors.New("invalid backup stream")
)
