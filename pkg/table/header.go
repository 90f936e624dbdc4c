package table

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// headerSize is the fixed leading header region
	headerSize = 32
	// descriptorSize is the size of one field descriptor entry
	descriptorSize = 32
	// headerTerminator ends the field descriptor array
	headerTerminator = 0x0D
	// eofMarker terminates the record area
	eofMarker = 0x1A

	// row deletion flag values
	flagLive    = 0x20 // ' '
	flagDeleted = 0x2A // '*'

	// tableFlagMemo marks memo presence in the Visual FoxPro flags byte
	tableFlagMemo = 0x02
)

// header mirrors the fixed 32-byte table header.
// Layout: [0] version, [1:4] last update as YY MM DD (YY is years since
// 1900), [4:8] record count, [8:10] header length, [10:12] record length,
// [28] table flags, [29] code page.
type header struct {
	version      byte
	lastUpdate   time.Time
	recordCount  uint32
	headerLength uint16
	recordLength uint16
	tableFlags   byte
	codePage     byte
}

func decodeHeader(raw []byte) (*header, error) {
	if len(raw) < headerSize {
		return nil, fmt.Errorf("%w: %d header bytes, want %d", ErrCorruptHeader, len(raw), headerSize)
	}
	h := &header{
		version:      raw[0],
		recordCount:  binary.LittleEndian.Uint32(raw[4:8]),
		headerLength: binary.LittleEndian.Uint16(raw[8:10]),
		recordLength: binary.LittleEndian.Uint16(raw[10:12]),
		tableFlags:   raw[28],
		codePage:     raw[29],
	}
	year, month, day := int(raw[1])+1900, int(raw[2]), int(raw[3])
	if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
		h.lastUpdate = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	}
	if h.headerLength < headerSize+1 {
		return nil, fmt.Errorf("%w: header length %d", ErrCorruptHeader, h.headerLength)
	}
	if h.recordLength == 0 {
		return nil, fmt.Errorf("%w: zero record length", ErrCorruptHeader)
	}
	return h, nil
}

func (h *header) encode() []byte {
	raw := make([]byte, headerSize)
	raw[0] = h.version
	if !h.lastUpdate.IsZero() {
		raw[1] = byte(h.lastUpdate.Year() - 1900)
		raw[2] = byte(h.lastUpdate.Month())
		raw[3] = byte(h.lastUpdate.Day())
	}
	binary.LittleEndian.PutUint32(raw[4:8], h.recordCount)
	binary.LittleEndian.PutUint16(raw[8:10], h.headerLength)
	binary.LittleEndian.PutUint16(raw[10:12], h.recordLength)
	raw[28] = h.tableFlags
	raw[29] = h.codePage
	return raw
}

// touch stamps the last-update date.
func (h *header) touch(now time.Time) {
	h.lastUpdate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
