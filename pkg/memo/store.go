// Package memo implements the block-structured companion file holding
// variable-length values referenced from fixed-width rows: the dBase III
// .dbt layout and the FoxPro/Visual FoxPro .fpt layout.
package memo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/xbasedb/xbase/pkg/dialect"
	"github.com/xbasedb/xbase/pkg/storage"
)

const (
	// HeaderSize is the reserved header region at the start of the file.
	// Block 0 always falls inside it and never stores data.
	HeaderSize = 512

	// DbtBlockSize is the fixed block size of the dBase III layout
	DbtBlockSize = 512

	// fptRecordHeader is the per-memo prefix in the fpt layout:
	// big-endian uint32 type tag, big-endian uint32 data length
	fptRecordHeader = 8

	// fptTypeText is the fpt type tag for textual memo data
	fptTypeText = 1
)

// dbtTerminator ends a memo in the dbt layout.
var dbtTerminator = []byte{0x1A, 0x1A}

var (
	// ErrDanglingPointer is returned when a memo reference points outside
	// the allocated block range
	ErrDanglingPointer = errors.New("memo pointer out of range")
	// ErrCorruptStore is returned when the memo header or a block prefix
	// cannot be parsed
	ErrCorruptStore = errors.New("corrupt memo store")
	// ErrStoreClosed is returned for operations on a closed store
	ErrStoreClosed = errors.New("memo store is closed")
	// ErrSpanMismatch is returned when an in-place overwrite would need a
	// different number of blocks than the existing memo occupies
	ErrSpanMismatch = errors.New("memo does not fit existing block span")
)

// Store provides block-granular access to one memo file.
type Store struct {
	handle    storage.Handle
	format    dialect.MemoFormat
	blockSize int
	firstData uint32
	nextFree  uint32
	freed     uint32
	closed    bool
}

// Create initializes a fresh memo file on handle. blockSize is only
// honored by the fpt layout; zero selects the dialect default of 64.
func Create(handle storage.Handle, format dialect.MemoFormat, blockSize int) (*Store, error) {
	s := &Store{handle: handle, format: format}
	switch format {
	case dialect.MemoDbt:
		s.blockSize = DbtBlockSize
		s.firstData = 1
	case dialect.MemoFpt:
		if blockSize <= 0 {
			blockSize = 64
		}
		s.blockSize = blockSize
		s.firstData = blocksSpanned(HeaderSize, blockSize)
	default:
		return nil, fmt.Errorf("%w: unsupported memo format %d", ErrCorruptStore, format)
	}
	s.nextFree = s.firstData
	if err := handle.Truncate(0); err != nil {
		return nil, fmt.Errorf("failed to reset memo file: %w", err)
	}
	if err := s.writeHeader(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open reads the header of an existing memo file.
func Open(handle storage.Handle, format dialect.MemoFormat) (*Store, error) {
	header := make([]byte, HeaderSize)
	if _, err := handle.ReadAt(header, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: unreadable header: %v", ErrCorruptStore, err)
	}

	s := &Store{handle: handle, format: format}
	switch format {
	case dialect.MemoDbt:
		s.blockSize = DbtBlockSize
		s.firstData = 1
		s.nextFree = binary.LittleEndian.Uint32(header[0:4])
	case dialect.MemoFpt:
		s.nextFree = binary.BigEndian.Uint32(header[0:4])
		s.blockSize = int(binary.BigEndian.Uint16(header[6:8]))
		if s.blockSize <= 0 {
			return nil, fmt.Errorf("%w: block size %d", ErrCorruptStore, s.blockSize)
		}
		s.firstData = blocksSpanned(HeaderSize, s.blockSize)
	default:
		return nil, fmt.Errorf("%w: unsupported memo format %d", ErrCorruptStore, format)
	}
	if s.nextFree < s.firstData {
		return nil, fmt.Errorf("%w: next-free block %d before first data block %d",
			ErrCorruptStore, s.nextFree, s.firstData)
	}
	return s, nil
}

// BlockSize returns the block granularity of the store.
func (s *Store) BlockSize() int {
	return s.blockSize
}

// Format returns the on-disk layout of the store.
func (s *Store) Format() dialect.MemoFormat {
	return s.format
}

// NextFree returns the block number the next write will allocate.
func (s *Store) NextFree() uint32 {
	return s.nextFree
}

// FreedBlocks returns the number of blocks released since open. Freed
// blocks stay as reclaimable garbage until the owning table packs.
func (s *Store) FreedBlocks() uint32 {
	return s.freed
}

// BlocksFor returns the number of blocks a memo of dataLen bytes occupies.
func (s *Store) BlocksFor(dataLen int) uint32 {
	overhead := fptRecordHeader
	if s.format == dialect.MemoDbt {
		overhead = len(dbtTerminator)
	}
	return blocksSpanned(dataLen+overhead, s.blockSize)
}

// Read returns the memo stored at block. References outside the allocated
// range fail with ErrDanglingPointer.
func (s *Store) Read(block uint32) ([]byte, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	if block < s.firstData || block >= s.nextFree {
		return nil, fmt.Errorf("%w: block %d (allocated %d..%d)",
			ErrDanglingPointer, block, s.firstData, s.nextFree-1)
	}
	if s.format == dialect.MemoDbt {
		return s.readDbt(block)
	}
	return s.readFpt(block)
}

// Write stores data in fresh blocks at the end of the file and returns the
// first block number.
func (s *Store) Write(data []byte) (uint32, error) {
	if s.closed {
		return 0, ErrStoreClosed
	}
	block := s.nextFree
	if err := s.writeAt(block, data); err != nil {
		return 0, err
	}
	s.nextFree = block + s.BlocksFor(len(data))
	if err := s.writeHeader(); err != nil {
		return 0, err
	}
	return block, nil
}

// Overwrite replaces the memo at block in place. The new data must occupy
// the same number of blocks as the existing memo, otherwise
// ErrSpanMismatch is returned and the caller should allocate fresh blocks.
func (s *Store) Overwrite(block uint32, data []byte) error {
	if s.closed {
		return ErrStoreClosed
	}
	existing, err := s.Read(block)
	if err != nil {
		return err
	}
	if s.BlocksFor(len(existing)) != s.BlocksFor(len(data)) {
		return ErrSpanMismatch
	}
	return s.writeAt(block, data)
}

// Free marks the memo at block as garbage. The blocks stay allocated until
// the owning table packs and rebuilds the store.
func (s *Store) Free(block uint32) error {
	if s.closed {
		return ErrStoreClosed
	}
	data, err := s.Read(block)
	if err != nil {
		return err
	}
	s.freed += s.BlocksFor(len(data))
	return nil
}

// Sync flushes the underlying handle.
func (s *Store) Sync() error {
	if s.closed {
		return ErrStoreClosed
	}
	return s.handle.Sync()
}

// Close flushes and releases the store. The handle itself stays open; the
// owning table closes it.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	if err := s.handle.Sync(); err != nil {
		return err
	}
	s.closed = true
	return nil
}

func (s *Store) readDbt(block uint32) ([]byte, error) {
	var data []byte
	off := int64(block) * int64(s.blockSize)
	chunk := make([]byte, s.blockSize)
	for {
		n, err := s.handle.ReadAt(chunk, off)
		data = append(data, chunk[:n]...)
		if i := indexTerminator(data); i >= 0 {
			return data[:i], nil
		}
		if err == io.EOF {
			// file ended before the terminator; everything read is data
			return data, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read memo block %d: %w", block, err)
		}
		off += int64(n)
	}
}

func (s *Store) readFpt(block uint32) ([]byte, error) {
	header := make([]byte, fptRecordHeader)
	off := int64(block) * int64(s.blockSize)
	if _, err := s.handle.ReadAt(header, off); err != nil {
		return nil, fmt.Errorf("%w: unreadable memo header at block %d: %v",
			ErrCorruptStore, block, err)
	}
	length := binary.BigEndian.Uint32(header[4:8])
	data := make([]byte, length)
	if _, err := s.handle.ReadAt(data, off+fptRecordHeader); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: truncated memo at block %d: %v",
			ErrCorruptStore, block, err)
	}
	return data, nil
}

func (s *Store) writeAt(block uint32, data []byte) error {
	off := int64(block) * int64(s.blockSize)
	var payload []byte
	if s.format == dialect.MemoDbt {
		payload = make([]byte, 0, len(data)+len(dbtTerminator))
		payload = append(payload, data...)
		payload = append(payload, dbtTerminator...)
	} else {
		payload = make([]byte, fptRecordHeader+len(data))
		binary.BigEndian.PutUint32(payload[0:4], fptTypeText)
		binary.BigEndian.PutUint32(payload[4:8], uint32(len(data)))
		copy(payload[fptRecordHeader:], data)
	}
	if _, err := s.handle.WriteAt(payload, off); err != nil {
		return fmt.Errorf("failed to write memo at block %d: %w", block, err)
	}
	return nil
}

func (s *Store) writeHeader() error {
	header := make([]byte, HeaderSize)
	if s.format == dialect.MemoDbt {
		binary.LittleEndian.PutUint32(header[0:4], s.nextFree)
	} else {
		binary.BigEndian.PutUint32(header[0:4], s.nextFree)
		binary.BigEndian.PutUint16(header[6:8], uint16(s.blockSize))
	}
	if _, err := s.handle.WriteAt(header, 0); err != nil {
		return fmt.Errorf("failed to write memo header: %w", err)
	}
	return nil
}

func blocksSpanned(length, blockSize int) uint32 {
	blocks := length / blockSize
	if length%blockSize != 0 {
		blocks++
	}
	return uint32(blocks)
}

func indexTerminator(data []byte) int {
	for i := 0; i+1 < len(data); i++ {
		if data[i] == dbtTerminator[0] && data[i+1] == dbtTerminator[1] {
			return i
		}
	}
	return -1
}
