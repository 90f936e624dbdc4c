package table

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/snappy"

	"github.com/xbasedb/xbase/pkg/dialect"
	"github.com/xbasedb/xbase/pkg/storage"
)

// backupMagic opens every backup stream: "XBAK" plus a format version.
const backupMagic uint64 = 0x5842414B_00000001

// Backup writes a self-contained snapshot of the table to w: the raw
// table image and, when present, the memo image, each snappy-compressed
// and checksummed. The header is flushed first so the stream reflects
// the current record count.
func (t *Table) Backup(w io.Writer) error {
	if t.closed {
		return ErrTableClosed
	}
	if err := t.writeHeader(); err != nil {
		return err
	}

	var magic [8]byte
	binary.LittleEndian.PutUint64(magic[:], backupMagic)
	if _, err := w.Write(magic[:]); err != nil {
		return fmt.Errorf("failed to write backup magic: %w", err)
	}

	if err := writeSection(w, t.handle); err != nil {
		return fmt.Errorf("failed to back up table image: %w", err)
	}
	if t.memo == nil {
		if err := writeEmptySection(w); err != nil {
			return err
		}
	} else {
		if err := t.memo.Sync(); err != nil {
			return err
		}
		if err := writeSection(w, t.memoHandle); err != nil {
			return fmt.Errorf("failed to back up memo image: %w", err)
		}
	}
	t.logger.Info("backed up table: %d records", t.hdr.recordCount)
	return nil
}

// Restore materializes a backup stream onto fresh handles and opens the
// result. Checksum or framing damage is reported as ErrInvalidBackup
// before anything is written.
func Restore(handle, memoHandle storage.Handle, d *dialect.Dialect, r io.Reader, opts Options) (*Table, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated magic: %v", ErrInvalidBackup, err)
	}
	if binary.LittleEndian.Uint64(magic[:]) != backupMagic {
		return nil, fmt.Errorf("%w: bad magic 0x%016x", ErrInvalidBackup, binary.LittleEndian.Uint64(magic[:]))
	}

	tableImage, err := readSection(r)
	if err != nil {
		return nil, err
	}
	memoImage, err := readSection(r)
	if err != nil {
		return nil, err
	}

	if err := writeImage(handle, tableImage); err != nil {
		return nil, fmt.Errorf("failed to restore table image: %w", err)
	}
	if len(memoImage) > 0 {
		if memoHandle == nil {
			return nil, fmt.Errorf("%w: backup has a memo image but no memo handle", ErrMissingMemoFile)
		}
		if err := writeImage(memoHandle, memoImage); err != nil {
			return nil, fmt.Errorf("failed to restore memo image: %w", err)
		}
	}
	return Open(handle, memoHandle, d, opts)
}

// writeSection frames one handle's full contents: little-endian uint32
// compressed length, uint64 checksum of the raw bytes, compressed bytes.
func writeSection(w io.Writer, h storage.Handle) error {
	size, err := h.Size()
	if err != nil {
		return err
	}
	raw := make([]byte, size)
	if _, err := h.ReadAt(raw, 0); err != nil && err != io.EOF {
		return err
	}
	compressed := snappy.Encode(nil, raw)

	var frame [12]byte
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(compressed)))
	binary.LittleEndian.PutUint64(frame[4:12], xxhash.Sum64(raw))
	if _, err := w.Write(frame[:]); err != nil {
		return err
	}
	_, err = w.Write(compressed)
	return err
}

func writeEmptySection(w io.Writer) error {
	var frame [12]byte
	_, err := w.Write(frame[:])
	return err
}

// readSection decodes one framed section and verifies its checksum.
func readSection(r io.Reader) ([]byte, error) {
	var frame [12]byte
	if _, err := io.ReadFull(r, frame[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated section frame: %v", ErrInvalidBackup, err)
	}
	compressedLen := binary.LittleEndian.Uint32(frame[0:4])
	checksum := binary.LittleEndian.Uint64(frame[4:12])
	if compressedLen == 0 {
		return nil, nil
	}

	compressed := make([]byte, compressedLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("%w: truncated section body: %v", ErrInvalidBackup, err)
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable section: %v", ErrInvalidBackup, err)
	}
	if xxhash.Sum64(raw) != checksum {
		return nil, fmt.Errorf("%w: section checksum mismatch", ErrInvalidBackup)
	}
	return raw, nil
}

func writeImage(h storage.Handle, image []byte) error {
	if err := h.Truncate(0); err != nil {
		return err
	}
	_, err := h.WriteAt(image, 0)
	return err
}
