package zonewire

import (
	"encoding/binary"
	"fmt"
)

const (
	MagicV1   = 0x3146425A // "ZBF1" on the wire
	VersionV1 = 1

	HeaderSize = 32
	SlotSize   = 12 // tag:2 + compFlags:2 + offset:4 + length:4
	CRCSize    = 4

	CompressionMask = 0x000F
	CompRaw         = 0x0000
	CompZstd        = 0x0004
)

const (
	FlagChecksum   = 0x0001 // CRC32 trailer present
	FlagCompressed = 0x0002 // at least one column is compressed
)

// Header is the fixed prefix of a zone payload.
type Header struct {
	Magic       uint32 // 4B
	Version     uint16 // 2B
	Flags       uint16 // 2B
	ZoneCount   uint32 // 4B
	ColumnCount uint16 // 2B
	_           uint16 // reserved
	TableOffset uint32 // from start of payload
	DataOffset  uint32 // from start of payload
	DataLength  uint32
	_           uint32 // reserved
}

// Slot is one column table entry.
type Slot struct {
	Tag       uint16
	CompFlags uint16
	Offset    uint32 // from DataOffset
	Length    uint32 // stored bytes
}

func encodeHeader(buf []byte, h Header) []byte {
	buf = append(buf, make([]byte, HeaderSize)...)
	b := buf[len(buf)-HeaderSize:]
	binary.LittleEndian.PutUint32(b[0:], h.Magic)
	binary.LittleEndian.PutUint16(b[4:], h.Version)
	binary.LittleEndian.PutUint16(b[6:], h.Flags)
	binary.LittleEndian.PutUint32(b[8:], h.ZoneCount)
	binary.LittleEndian.PutUint16(b[12:], h.ColumnCount)
	binary.LittleEndian.PutUint32(b[16:], h.TableOffset)
	binary.LittleEndian.PutUint32(b[20:], h.DataOffset)
	binary.LittleEndian.PutUint32(b[24:], h.DataLength)
	return buf
}

// ParseHeader reads the header of buf without copying the payload.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("header: %d bytes: %w", len(buf), ErrTruncated)
	}
	h := Header{
		Magic:       binary.LittleEndian.Uint32(buf[0:]),
		Version:     binary.LittleEndian.Uint16(buf[4:]),
		Flags:       binary.LittleEndian.Uint16(buf[6:]),
		ZoneCount:   binary.LittleEndian.Uint32(buf[8:]),
		ColumnCount: binary.LittleEndian.Uint16(buf[12:]),
		TableOffset: binary.LittleEndian.Uint32(buf[16:]),
		DataOffset:  binary.LittleEndian.Uint32(buf[20:]),
		DataLength:  binary.LittleEndian.Uint32(buf[24:]),
	}
	if h.Magic != MagicV1 {
		return h, fmt.Errorf("magic %#08x: %w", h.Magic, ErrBadMagic)
	}
	if h.Version != VersionV1 {
		return h, fmt.Errorf("version %d: %w", h.Version, ErrVersion)
	}
	return h, nil
}

func appendSlot(buf []byte, s Slot) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, s.Tag)
	buf = binary.LittleEndian.AppendUint16(buf, s.CompFlags)
	buf = binary.LittleEndian.AppendUint32(buf, s.Offset)
	return binary.LittleEndian.AppendUint32(buf, s.Length)
}

func parseSlot(b []byte) Slot {
	return Slot{
		Tag:       binary.LittleEndian.Uint16(b[0:]),
		CompFlags: binary.LittleEndian.Uint16(b[2:]),
		Offset:    binary.LittleEndian.Uint32(b[4:]),
		Length:    binary.LittleEndian.Uint32(b[8:]),
	}
}
