package zonewire

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/rawbytedev/zonebuf/internal/common"
)

// compressData returns the stored form of raw for compFlags: the raw bytes
// for CompRaw, or varint(len(raw)) followed by a zstd frame for CompZstd.
func compressData(zw *zstd.Encoder, compFlags uint16, raw, dst []byte) ([]byte, error) {
	switch compFlags & CompressionMask {
	case CompRaw:
		return append(dst, raw...), nil
	case CompZstd:
		dst = common.WriteVarUint(dst, uint64(len(raw)))
		return zw.EncodeAll(raw, dst), nil
	default:
		return nil, fmt.Errorf("comp flags %#04x: %w", compFlags, ErrCompression)
	}
}

// decompressData reverses compressData. limit bounds the declared raw size.
func decompressData(zr *zstd.Decoder, compFlags uint16, stored []byte, limit int) ([]byte, error) {
	switch compFlags & CompressionMask {
	case CompRaw:
		return stored, nil
	case CompZstd:
		size, n := common.ReadVarUint(stored)
		if n == 0 {
			return nil, fmt.Errorf("raw size varint: %w", ErrCompression)
		}
		if size > uint64(limit) {
			return nil, fmt.Errorf("raw size %d over limit %d: %w", size, limit, ErrCompression)
		}
		out, err := zr.DecodeAll(stored[n:], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompression, err)
		}
		if uint64(len(out)) != size {
			return nil, fmt.Errorf("raw size %d, got %d: %w", size, len(out), ErrCompression)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("comp flags %#04x: %w", compFlags, ErrCompression)
	}
}
