package storage

import (
	"bytes"
	"io"
	"testing"
)

func TestBufferGrowsOnWrite(t *testing.T) {
	b := NewBuffer()
	if _, err := b.WriteAt([]byte("hello"), 10); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	size, err := b.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 15 {
		t.Errorf("size = %d, want 15", size)
	}

	got := make([]byte, 5)
	if _, err := b.ReadAt(got, 10); err != nil && err != io.EOF {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Errorf("read back %q, want %q", got, "hello")
	}

	// the gap before the write reads as zeros
	gap := make([]byte, 10)
	if _, err := b.ReadAt(gap, 0); err != nil {
		t.Fatalf("ReadAt gap: %v", err)
	}
	if !bytes.Equal(gap, make([]byte, 10)) {
		t.Errorf("gap = %v, want zeros", gap)
	}
}

func TestBufferPartialRead(t *testing.T) {
	b := NewBufferFrom([]byte("abc"))
	p := make([]byte, 5)
	n, err := b.ReadAt(p, 1)
	if n != 2 {
		t.Errorf("n = %d, want 2", n)
	}
	if err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
	if _, err := b.ReadAt(p, 99); err != io.EOF {
		t.Errorf("read past end: err = %v, want io.EOF", err)
	}
}

func TestBufferTruncate(t *testing.T) {
	b := NewBufferFrom([]byte("abcdef"))
	if err := b.Truncate(3); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if !bytes.Equal(b.Bytes(), []byte("abc")) {
		t.Errorf("after shrink: %q", b.Bytes())
	}
	if err := b.Truncate(5); err != nil {
		t.Fatalf("Truncate grow: %v", err)
	}
	if !bytes.Equal(b.Bytes(), []byte("abc\x00\x00")) {
		t.Errorf("after grow: %q", b.Bytes())
	}
}

func TestBufferClosed(t *testing.T) {
	b := NewBufferFrom([]byte("x"))
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := b.ReadAt(make([]byte, 1), 0); err != ErrHandleClosed {
		t.Errorf("ReadAt after close: err = %v, want ErrHandleClosed", err)
	}
	if _, err := b.WriteAt([]byte("y"), 0); err != ErrHandleClosed {
		t.Errorf("WriteAt after close: err = %v, want ErrHandleClosed", err)
	}
}
