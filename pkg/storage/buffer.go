package storage

import "io"

// Buffer is a growable in-memory Handle. Tables built on a Buffer have no
// backing file and vanish when released.
type Buffer struct {
	data   []byte
	closed bool
}

// NewBuffer returns an empty in-memory handle.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewBufferFrom returns an in-memory handle seeded with a copy of data.
func NewBufferFrom(data []byte) *Buffer {
	return &Buffer{data: append([]byte(nil), data...)}
}

func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	if b.closed {
		return 0, ErrHandleClosed
	}
	if off < 0 {
		return 0, io.EOF
	}
	if off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	if b.closed {
		return 0, ErrHandleClosed
	}
	end := off + int64(len(p))
	if end > int64(len(b.data)) {
		grown := make([]byte, end)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[off:], p)
	return len(p), nil
}

func (b *Buffer) Truncate(size int64) error {
	if b.closed {
		return ErrHandleClosed
	}
	switch {
	case size <= int64(len(b.data)):
		b.data = b.data[:size]
	default:
		grown := make([]byte, size)
		copy(grown, b.data)
		b.data = grown
	}
	return nil
}

func (b *Buffer) Size() (int64, error) {
	if b.closed {
		return 0, ErrHandleClosed
	}
	return int64(len(b.data)), nil
}

func (b *Buffer) Sync() error {
	if b.closed {
		return ErrHandleClosed
	}
	return nil
}

func (b *Buffer) Close() error {
	b.closed = true
	b.data = nil
	return nil
}

// Bytes returns the current contents. The slice aliases the buffer and is
// only valid until the next write.
func (b *Buffer) Bytes() []byte {
	return b.data
}
