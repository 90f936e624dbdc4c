package memo

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xbasedb/xbase/pkg/dialect"
	"github.com/xbasedb/xbase/pkg/storage"
)

func TestDbtRoundTrip(t *testing.T) {
	buf := storage.NewBuffer()
	s, err := Create(buf, dialect.MemoDbt, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	block, err := s.Write([]byte("hello memo"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if block != 1 {
		t.Errorf("first dbt memo at block %d, want 1", block)
	}
	got, err := s.Read(block)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, []byte("hello memo")) {
		t.Errorf("read back %q", got)
	}
}

func TestDbtMultiBlock(t *testing.T) {
	buf := storage.NewBuffer()
	s, err := Create(buf, dialect.MemoDbt, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	big := []byte(strings.Repeat("x", 1200))
	block, err := s.Write(big)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	// 1200 bytes plus terminator span 3 blocks of 512
	if next, err := s.Write([]byte("next")); err != nil {
		t.Fatalf("second Write: %v", err)
	} else if next != block+3 {
		t.Errorf("second memo at block %d, want %d", next, block+3)
	}
	got, err := s.Read(block)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, big) {
		t.Errorf("multi-block memo damaged: got %d bytes", len(got))
	}
}

func TestFptRoundTrip(t *testing.T) {
	buf := storage.NewBuffer()
	s, err := Create(buf, dialect.MemoFpt, 64)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// binary content with embedded terminator bytes survives, the fpt
	// layout carries an explicit length
	payload := []byte{0x1A, 0x1A, 0x00, 0xFF, 0x1A}
	block, err := s.Write(payload)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read(block)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("read back % x, want % x", got, payload)
	}
}

func TestReopenContinuesAllocation(t *testing.T) {
	buf := storage.NewBuffer()
	s, err := Create(buf, dialect.MemoFpt, 64)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	block, err := s.Write([]byte("persisted"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(buf, dialect.MemoFpt)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s2.BlockSize() != 64 {
		t.Errorf("block size %d after reopen, want 64", s2.BlockSize())
	}
	got, err := s2.Read(block)
	if err != nil {
		t.Fatalf("Read after reopen: %v", err)
	}
	if string(got) != "persisted" {
		t.Errorf("read back %q", got)
	}
	next, err := s2.Write([]byte("more"))
	if err != nil {
		t.Fatalf("Write after reopen: %v", err)
	}
	if next <= block {
		t.Errorf("new allocation at block %d, not past %d", next, block)
	}
}

func TestDanglingPointer(t *testing.T) {
	buf := storage.NewBuffer()
	s, err := Create(buf, dialect.MemoDbt, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Read(99); !errors.Is(err, ErrDanglingPointer) {
		t.Errorf("Read(99) error = %v, want ErrDanglingPointer", err)
	}
	if _, err := s.Read(0); !errors.Is(err, ErrDanglingPointer) {
		t.Errorf("Read(0) should never resolve, header block is not data: %v", err)
	}
}

func TestOverwriteSpanRules(t *testing.T) {
	buf := storage.NewBuffer()
	s, err := Create(buf, dialect.MemoFpt, 64)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	block, err := s.Write([]byte("short"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := s.Overwrite(block, []byte("other")); err != nil {
		t.Fatalf("same-span Overwrite: %v", err)
	}
	got, err := s.Read(block)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "other" {
		t.Errorf("read back %q after overwrite", got)
	}

	long := []byte(strings.Repeat("y", 500))
	if err := s.Overwrite(block, long); !errors.Is(err, ErrSpanMismatch) {
		t.Errorf("grown Overwrite error = %v, want ErrSpanMismatch", err)
	}
}

func TestFreeIsBookkeepingOnly(t *testing.T) {
	buf := storage.NewBuffer()
	s, err := Create(buf, dialect.MemoDbt, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	block, err := s.Write([]byte("garbage soon"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Free(block); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if s.FreedBlocks() == 0 {
		t.Error("Free should count reclaimable blocks")
	}
	// freed blocks are garbage, not holes: reading still works and new
	// writes never reuse them before a pack
	if _, err := s.Read(block); err != nil {
		t.Errorf("Read after Free: %v", err)
	}
	next, err := s.Write([]byte("fresh"))
	if err != nil {
		t.Fatalf("Write after Free: %v", err)
	}
	if next == block {
		t.Error("freed block was reused before pack")
	}
}
