package zonewire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/rawbytedev/zonebuf"
)

var (
	ErrBadMagic        = errors.New("zonewire: invalid magic")
	ErrVersion         = errors.New("zonewire: unsupported version")
	ErrTruncated       = errors.New("zonewire: payload truncated")
	ErrChecksum        = errors.New("zonewire: checksum mismatch")
	ErrUnknownColumn   = errors.New("zonewire: unknown column")
	ErrDuplicateColumn = errors.New("zonewire: duplicate column")
	ErrMissingColumn   = errors.New("zonewire: missing column")
	ErrColumnSize      = errors.New("zonewire: bad column size")
	ErrCompression     = errors.New("zonewire: compression error")
)

// DefaultMaxColumnBytes bounds the decompressed size of a single column.
const DefaultMaxColumnBytes = 256 << 20

type Options struct {
	UnsafePrimitives bool // columns alias the input payload; caller must keep it alive and unmodified
	RequireChecksum  bool // reject payloads without a CRC32 trailer
	MaxColumnBytes   int  // 0 means DefaultMaxColumnBytes
}

// Decoder reads the wire layout back into a ZoneBuffer. It is safe for
// concurrent use.
type Decoder struct {
	Opts Options

	once  sync.Once
	zr    *zstd.Decoder
	zrErr error
}

func NewDecoder(opts Options) *Decoder {
	return &Decoder{Opts: opts}
}

func (d *Decoder) zstdReader() (*zstd.Decoder, error) {
	d.once.Do(func() {
		d.zr, d.zrErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(0),
			zstd.WithDecoderMaxMemory(uint64(d.maxColumn())))
	})
	return d.zr, d.zrErr
}

func (d *Decoder) maxColumn() int {
	if d.Opts.MaxColumnBytes > 0 {
		return d.Opts.MaxColumnBytes
	}
	return DefaultMaxColumnBytes
}

// Decode parses data into a ZoneBuffer. Contents of the columns are not
// checked beyond their sizes; that is zonebuf.Decoder's job.
func (d *Decoder) Decode(data []byte) (*zonebuf.ZoneBuffer, error) {
	h, slots, body, err := d.parse(data)
	if err != nil {
		return nil, err
	}
	b := &zonebuf.ZoneBuffer{}
	var seen [len(columns) + 1]bool
	for _, s := range slots {
		c, ok := lookup(s.Tag)
		if !ok {
			return nil, fmt.Errorf("tag %d: %w", s.Tag, ErrUnknownColumn)
		}
		if seen[s.Tag] {
			return nil, fmt.Errorf("%s: %w", c.name, ErrDuplicateColumn)
		}
		seen[s.Tag] = true

		start, end := uint64(s.Offset), uint64(s.Offset)+uint64(s.Length)
		if end > uint64(len(body)) {
			return nil, fmt.Errorf("%s: [%d, %d) beyond data length %d: %w", c.name, start, end, len(body), ErrTruncated)
		}
		stored := body[start:end]
		payload := stored
		if s.CompFlags&CompressionMask != CompRaw {
			zr, err := d.zstdReader()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCompression, err)
			}
			payload, err = decompressData(zr, s.CompFlags, stored, d.maxColumn())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", c.name, err)
			}
		}
		if len(payload)%c.kind.Size() != 0 {
			return nil, fmt.Errorf("%s: %d bytes is not a multiple of %s: %w", c.name, len(payload), c.kind, ErrColumnSize)
		}
		// decompressed columns are private to this call and can always be kept
		c.set(b, payload, d.Opts.UnsafePrimitives || s.CompFlags&CompressionMask != CompRaw)
	}
	for i := range columns {
		c := &columns[i]
		if !seen[c.tag] {
			return nil, fmt.Errorf("%s: %w", c.name, ErrMissingColumn)
		}
		if c.perZone && c.elements(b) != int(h.ZoneCount) {
			return nil, fmt.Errorf("%s: %d entries for %d zones: %w", c.name, c.elements(b), h.ZoneCount, ErrColumnSize)
		}
	}
	return b, nil
}

// parse checks the framing of data and returns the header, column table
// and data section.
func (d *Decoder) parse(data []byte) (Header, []Slot, []byte, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return h, nil, nil, err
	}
	end := len(data)
	if h.Flags&FlagChecksum != 0 {
		if end < HeaderSize+CRCSize {
			return h, nil, nil, fmt.Errorf("checksum trailer: %w", ErrTruncated)
		}
		end -= CRCSize
		want := binary.LittleEndian.Uint32(data[end:])
		if got := crc32.ChecksumIEEE(data[:end]); got != want {
			return h, nil, nil, fmt.Errorf("got %#08x, want %#08x: %w", got, want, ErrChecksum)
		}
	} else if d.Opts.RequireChecksum {
		return h, nil, nil, fmt.Errorf("no trailer: %w", ErrChecksum)
	}

	tableEnd := int64(h.TableOffset) + int64(h.ColumnCount)*SlotSize
	if int64(h.TableOffset) < HeaderSize || tableEnd > int64(end) {
		return h, nil, nil, fmt.Errorf("column table [%d, %d) of %d: %w", h.TableOffset, tableEnd, end, ErrTruncated)
	}
	dataEnd := int64(h.DataOffset) + int64(h.DataLength)
	if int64(h.DataOffset) < tableEnd || dataEnd > int64(end) {
		return h, nil, nil, fmt.Errorf("data [%d, %d) of %d: %w", h.DataOffset, dataEnd, end, ErrTruncated)
	}
	slots := make([]Slot, h.ColumnCount)
	for i := range slots {
		slots[i] = parseSlot(data[int(h.TableOffset)+i*SlotSize:])
	}
	return h, slots, data[h.DataOffset:dataEnd], nil
}

var defaultDecoder Decoder

// DefaultDecoder returns the shared decoder with default options. Its zstd
// reader is created once and kept for the life of the process; callers must
// not change its Opts.
func DefaultDecoder() *Decoder {
	return &defaultDecoder
}

// Unmarshal decodes data with the default decoder.
func Unmarshal(data []byte) (*zonebuf.ZoneBuffer, error) {
	return defaultDecoder.Decode(data)
}

// ColumnInfo describes one column of a payload.
type ColumnInfo struct {
	Name       string `json:"name" yaml:"name"`
	Kind       string `json:"kind" yaml:"kind"`
	Compressed bool   `json:"compressed" yaml:"compressed"`
	Offset     uint32 `json:"offset" yaml:"offset"`
	Stored     uint32 `json:"stored" yaml:"stored"`
}

// Inspect returns the header and column table of data without decoding
// column contents.
func (d *Decoder) Inspect(data []byte) (Header, []ColumnInfo, error) {
	h, slots, _, err := d.parse(data)
	if err != nil {
		return h, nil, err
	}
	infos := make([]ColumnInfo, 0, len(slots))
	for _, s := range slots {
		c, ok := lookup(s.Tag)
		if !ok {
			return h, nil, fmt.Errorf("tag %d: %w", s.Tag, ErrUnknownColumn)
		}
		infos = append(infos, ColumnInfo{
			Name:       c.name,
			Kind:       c.kind.String(),
			Compressed: s.CompFlags&CompressionMask != CompRaw,
			Offset:     s.Offset,
			Stored:     s.Length,
		})
	}
	return h, infos, nil
}
