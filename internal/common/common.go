package common

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// Kind is the element type of a wire column.
type Kind uint8

const (
	KindBytes Kind = iota
	KindUint32
	KindFloat64
)

// Size returns the byte width of one element of k.
func (k Kind) Size() int {
	switch k {
	case KindUint32:
		return 4
	case KindFloat64:
		return 8
	default:
		return 1
	}
}

// Alignment returns the address alignment needed to alias k in place.
func (k Kind) Alignment() int {
	return k.Size()
}

func (k Kind) String() string {
	switch k {
	case KindUint32:
		return "uint32"
	case KindFloat64:
		return "float64"
	default:
		return "bytes"
	}
}

// LittleEndianHost reports whether the host stores integers little endian,
// the precondition for aliasing wire columns without conversion.
var LittleEndianHost = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// WriteVarUint appends a varint to buf.
func WriteVarUint(buf []byte, x uint64) []byte {
	for x >= 0x80 {
		buf = append(buf, byte(x)|0x80)
		x >>= 7
	}
	return append(buf, byte(x))
}

// ReadVarUint decodes a varint from b returning value and bytes consumed.
// It returns n == 0 for a truncated or overlong varint.
func ReadVarUint(b []byte) (uint64, int) {
	var x uint64
	var s uint
	for i, c := range b {
		if i == binary.MaxVarintLen64 {
			return 0, 0
		}
		x |= uint64(c&0x7F) << s
		if c&0x80 == 0 {
			return x, i + 1
		}
		s += 7
	}
	return 0, 0
}

// AppendUint32s appends vs to dst as packed little-endian values.
func AppendUint32s(dst []byte, vs []uint32) []byte {
	for _, v := range vs {
		dst = binary.LittleEndian.AppendUint32(dst, v)
	}
	return dst
}

// AppendFloat64s appends vs to dst as packed little-endian IEEE 754 values.
func AppendFloat64s(dst []byte, vs []float64) []byte {
	for _, v := range vs {
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
	}
	return dst
}

// Uint32s decodes packed little-endian values. len(b) must be a multiple of 4.
func Uint32s(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

// Float64s decodes packed little-endian values. len(b) must be a multiple of 8.
func Float64s(b []byte) []float64 {
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out
}

// Aligned reports whether b starts at an address suitable for k.
func Aligned(b []byte, k Kind) bool {
	if len(b) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&b[0]))%uintptr(k.Alignment()) == 0
}

// AliasUint32s reinterprets b as []uint32 without copying. The caller must
// check Aligned and LittleEndianHost first and keep b alive.
func AliasUint32s(b []byte) []uint32 {
	if len(b) < 4 {
		return []uint32{}
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// AliasFloat64s reinterprets b as []float64 without copying. Same rules as
// AliasUint32s.
func AliasFloat64s(b []byte) []float64 {
	if len(b) < 8 {
		return []float64{}
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&b[0])), len(b)/8)
}
