// Package storage defines the byte-addressable handle a table or memo store
// operates on, with a file-backed and an in-memory implementation behind the
// same interface.
package storage

import (
	"errors"
	"io"
	"os"
)

var (
	// ErrHandleClosed is returned for operations on a closed handle
	ErrHandleClosed = errors.New("storage handle is closed")
)

// Handle is a random-access byte store. Implementations are not required to
// be safe for concurrent use; the owning table serializes access.
type Handle interface {
	io.ReaderAt
	io.WriterAt

	// Truncate resizes the store to exactly size bytes
	Truncate(size int64) error
	// Size returns the current store length in bytes
	Size() (int64, error)
	// Sync forces buffered writes to durable storage
	Sync() error
	// Close releases the handle; further operations fail
	Close() error
}

// File adapts an *os.File to the Handle interface.
type File struct {
	f *os.File
}

// NewFile wraps an open file. The caller chooses path and open flags; the
// core never touches the filesystem itself.
func NewFile(f *os.File) *File {
	return &File{f: f}
}

func (h *File) ReadAt(p []byte, off int64) (int, error) {
	return h.f.ReadAt(p, off)
}

func (h *File) WriteAt(p []byte, off int64) (int, error) {
	return h.f.WriteAt(p, off)
}

func (h *File) Truncate(size int64) error {
	return h.f.Truncate(size)
}

func (h *File) Size() (int64, error) {
	info, err := h.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (h *File) Sync() error {
	return h.f.Sync()
}

func (h *File) Close() error {
	return h.f.Close()
}
