package zonewire

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/rawbytedev/zonebuf"
)

// DefaultMinCompressSize is the smallest raw column compressed when
// compression is enabled.
const DefaultMinCompressSize = 256

// Encoder writes ZoneBuffers in the flat wire layout:
//
//	header | column table | column data | [crc32]
//
// Scratch space is reused between calls, so an Encoder must not be used
// from several goroutines at once. The returned payload is never reused.
type Encoder struct {
	Compression     uint16 // CompRaw or CompZstd
	Checksum        bool
	MinCompressSize int // 0 means DefaultMinCompressSize

	once   sync.Once
	zw     *zstd.Encoder
	zwErr  error
	raw    []byte
	stored []byte
	table  []byte
	data   []byte
}

func (e *Encoder) zstdWriter() (*zstd.Encoder, error) {
	e.once.Do(func() {
		e.zw, e.zwErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	})
	return e.zw, e.zwErr
}

// Encode serializes b.
func (e *Encoder) Encode(b *zonebuf.ZoneBuffer) ([]byte, error) {
	if b == nil {
		b = &zonebuf.ZoneBuffer{}
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if uint64(b.Len()) > math.MaxUint32 {
		return nil, fmt.Errorf("zone count %d: %w", b.Len(), ErrColumnSize)
	}
	minSize := e.MinCompressSize
	if minSize <= 0 {
		minSize = DefaultMinCompressSize
	}

	e.table = e.table[:0]
	e.data = e.data[:0]
	var flags uint16
	if e.Checksum {
		flags |= FlagChecksum
	}
	for i := range columns {
		c := &columns[i]
		e.raw = c.appendRaw(e.raw[:0], b)

		comp := uint16(CompRaw)
		stored := e.raw
		if e.Compression&CompressionMask == CompZstd && len(e.raw) >= minSize {
			zw, err := e.zstdWriter()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCompression, err)
			}
			e.stored, err = compressData(zw, CompZstd, e.raw, e.stored[:0])
			if err != nil {
				return nil, err
			}
			// keep raw when compression does not pay off
			if len(e.stored) < len(e.raw) {
				comp = CompZstd
				stored = e.stored
				flags |= FlagCompressed
			}
		}
		// 8-byte alignment lets raw numeric columns be aliased on decode
		if pad := align(len(e.data), 8) - len(e.data); pad > 0 {
			e.data = append(e.data, make([]byte, pad)...)
		}
		if uint64(len(e.data)+len(stored)) > math.MaxUint32 {
			return nil, fmt.Errorf("column %s: %d bytes: %w", c.name, len(stored), ErrColumnSize)
		}
		e.table = appendSlot(e.table, Slot{
			Tag:       c.tag,
			CompFlags: comp,
			Offset:    uint32(len(e.data)),
			Length:    uint32(len(stored)),
		})
		e.data = append(e.data, stored...)
	}

	tableOff := HeaderSize
	dataOff := align(tableOff+len(e.table), 8)
	total := dataOff + len(e.data)
	if e.Checksum {
		total += CRCSize
	}
	out := make([]byte, 0, total)
	out = encodeHeader(out, Header{
		Magic:       MagicV1,
		Version:     VersionV1,
		Flags:       flags,
		ZoneCount:   uint32(b.Len()),
		ColumnCount: uint16(len(columns)),
		TableOffset: uint32(tableOff),
		DataOffset:  uint32(dataOff),
		DataLength:  uint32(len(e.data)),
	})
	out = append(out, e.table...)
	out = append(out, make([]byte, dataOff-len(out))...)
	out = append(out, e.data...)
	if e.Checksum {
		out = binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(out))
	}
	return out, nil
}

// Marshal encodes b with a zero Encoder plus the given options.
func Marshal(b *zonebuf.ZoneBuffer, compression uint16, checksum bool) ([]byte, error) {
	e := &Encoder{Compression: compression, Checksum: checksum}
	return e.Encode(b)
}

func align(n, to int) int {
	return (n + to - 1) &^ (to - 1)
}
