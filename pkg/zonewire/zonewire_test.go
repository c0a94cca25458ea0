package zonewire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/zonebuf"
)

func makeTestZones(n int) []zonebuf.Zone {
	r := rand.New(rand.NewSource(int64(n)))
	zones := make([]zonebuf.Zone, n)
	for i := range zones {
		region := make([]zonebuf.Point, 3+r.Intn(4))
		for j := range region {
			region[j] = zonebuf.Point{X: r.Float64() * 10, Y: r.Float64() * 10}
		}
		children := make([]string, r.Intn(8))
		for k := range children {
			children[k] = fmt.Sprintf("%02d%x", 5, i*7+k)
		}
		neighbors := make([]string, r.Intn(3))
		for k := range neighbors {
			neighbors[k] = fmt.Sprintf("zone-%d-é", (i+k+1)%n)
		}
		zones[i] = zonebuf.Zone{
			ID:          fmt.Sprintf("%02d%x", 4, i),
			Center:      zonebuf.Point{X: float64(i), Y: -float64(i)},
			VertexCount: len(region),
			Region:      region,
			Children:    children,
			Neighbors:   neighbors,
		}
	}
	return zones
}

func makeTestBuffer(t testing.TB, n int) *zonebuf.ZoneBuffer {
	t.Helper()
	buf, err := zonebuf.Encode(makeTestZones(n))
	require.NoError(t, err)
	return buf
}

func slotOffset(i int) int { return HeaderSize + i*SlotSize }

func TestHeaderDecode(t *testing.T) {
	enc, err := Marshal(makeTestBuffer(t, 10), CompRaw, true)
	if err != nil {
		t.Fatal(err)
	}
	head, err := ParseHeader(enc)
	if err != nil {
		t.Fatalf("error: %s", err)
	}
	if head.Magic != MagicV1 {
		t.Fatalf("Expected: %#x got %#x", MagicV1, head.Magic)
	}
	if head.Version != VersionV1 {
		t.Fatalf("Expected: %d got %d", VersionV1, head.Version)
	}
	if head.Flags&FlagChecksum == 0 {
		t.Fatalf("Expected checksum flag, got %#x", head.Flags)
	}
	if head.ZoneCount != 10 {
		t.Fatalf("Expected: 10 zones got %d", head.ZoneCount)
	}
	if int(head.ColumnCount) != len(columns) {
		t.Fatalf("Expected: %d columns got %d", len(columns), head.ColumnCount)
	}
	if head.DataOffset%8 != 0 {
		t.Fatalf("data offset %d is not 8-byte aligned", head.DataOffset)
	}
	if string(enc[:4]) != "ZBF1" {
		t.Fatalf("magic bytes %q", enc[:4])
	}
}

func TestRoundTrip(t *testing.T) {
	zones := makeTestZones(300)
	buf, err := zonebuf.Encode(zones)
	require.NoError(t, err)
	cases := []struct {
		name     string
		comp     uint16
		checksum bool
		opts     Options
	}{
		{"raw", CompRaw, false, Options{}},
		{"raw checksum", CompRaw, true, Options{RequireChecksum: true}},
		{"zstd", CompZstd, false, Options{}},
		{"zstd checksum", CompZstd, true, Options{}},
		{"raw unsafe", CompRaw, true, Options{UnsafePrimitives: true}},
		{"zstd unsafe", CompZstd, false, Options{UnsafePrimitives: true}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			enc, err := Marshal(buf, c.comp, c.checksum)
			require.NoError(t, err)
			got, err := NewDecoder(c.opts).Decode(enc)
			require.NoError(t, err)
			require.Equal(t, buf.Len(), got.Len())
			decoded, err := zonebuf.DecodeAll(got)
			require.NoError(t, err)
			require.Equal(t, zones, decoded)
		})
	}
}

func TestRoundTripEmpty(t *testing.T) {
	enc, err := Marshal(nil, CompZstd, true)
	require.NoError(t, err)
	buf, err := Unmarshal(enc)
	require.NoError(t, err)
	require.Equal(t, 0, buf.Len())
	zones, err := zonebuf.DecodeAll(buf)
	require.NoError(t, err)
	require.Empty(t, zones)
}

func TestUnmarshalSharesDecoder(t *testing.T) {
	enc, err := Marshal(makeTestBuffer(t, 2000), CompZstd, false)
	require.NoError(t, err)
	_, err = Unmarshal(enc)
	require.NoError(t, err)
	zr := DefaultDecoder().zr
	require.NotNil(t, zr)

	_, err = Unmarshal(enc)
	require.NoError(t, err)
	require.Same(t, zr, DefaultDecoder().zr)
	require.Same(t, DefaultDecoder(), DefaultDecoder())
}

func TestCompressionShrinksPayload(t *testing.T) {
	buf := makeTestBuffer(t, 2000)
	raw, err := Marshal(buf, CompRaw, false)
	require.NoError(t, err)
	packed, err := Marshal(buf, CompZstd, false)
	require.NoError(t, err)
	if len(packed) >= len(raw) {
		t.Fatalf("compressed %d bytes, raw %d", len(packed), len(raw))
	}
	h, err := ParseHeader(packed)
	require.NoError(t, err)
	if h.Flags&FlagCompressed == 0 {
		t.Fatalf("Expected compressed flag, got %#x", h.Flags)
	}
	_, cols, err := NewDecoder(Options{}).Inspect(packed)
	require.NoError(t, err)
	var compressed int
	for _, c := range cols {
		if c.Compressed {
			compressed++
		}
	}
	if compressed == 0 {
		t.Fatal("no column was compressed")
	}
}

func TestSmallColumnsStayRaw(t *testing.T) {
	e := &Encoder{Compression: CompZstd, MinCompressSize: 1 << 20}
	enc, err := e.Encode(makeTestBuffer(t, 50))
	require.NoError(t, err)
	h, err := ParseHeader(enc)
	require.NoError(t, err)
	if h.Flags&FlagCompressed != 0 {
		t.Fatalf("unexpected compressed flag %#x", h.Flags)
	}
}

func TestEncoderReuse(t *testing.T) {
	e := &Encoder{Compression: CompZstd, Checksum: true}
	a, err := e.Encode(makeTestBuffer(t, 400))
	require.NoError(t, err)
	keep := append([]byte(nil), a...)
	_, err = e.Encode(makeTestBuffer(t, 20))
	require.NoError(t, err)
	require.Equal(t, keep, a)
	_, err = Unmarshal(a)
	require.NoError(t, err)
}

func TestInspect(t *testing.T) {
	enc, err := Marshal(makeTestBuffer(t, 5), CompRaw, false)
	require.NoError(t, err)
	h, cols, err := NewDecoder(Options{}).Inspect(enc)
	require.NoError(t, err)
	require.EqualValues(t, 5, h.ZoneCount)
	require.Len(t, cols, len(columns))
	require.Equal(t, zonebuf.ColIDOffsets, cols[0].Name)
	require.Equal(t, "uint32", cols[0].Kind)
	require.Equal(t, zonebuf.ColUTF8IDs, cols[1].Name)
	require.Equal(t, "bytes", cols[1].Kind)
	require.Equal(t, zonebuf.ColCenterX, cols[2].Name)
	require.Equal(t, "float64", cols[2].Kind)
	require.Equal(t, zonebuf.ColNeighborsUTF8IDs, cols[12].Name)
	for _, c := range cols {
		require.Zero(t, c.Offset%8, c.Name)
	}
}

func TestDecodeErrors(t *testing.T) {
	buf := makeTestBuffer(t, 20)
	plain, err := Marshal(buf, CompRaw, false)
	require.NoError(t, err)
	summed, err := Marshal(buf, CompRaw, true)
	require.NoError(t, err)
	packed, err := Marshal(makeTestBuffer(t, 2000), CompZstd, false)
	require.NoError(t, err)

	mutate := func(src []byte, f func(b []byte) []byte) []byte {
		return f(append([]byte(nil), src...))
	}
	cases := []struct {
		name string
		data []byte
		opts Options
		want error
	}{
		{"short header", plain[:HeaderSize-1], Options{}, ErrTruncated},
		{"bad magic", mutate(plain, func(b []byte) []byte { b[0] = 'X'; return b }), Options{}, ErrBadMagic},
		{"bad version", mutate(plain, func(b []byte) []byte { b[4] = 9; return b }), Options{}, ErrVersion},
		{"truncated data", plain[:len(plain)-1], Options{}, ErrTruncated},
		{"truncated table", plain[:HeaderSize+SlotSize], Options{}, ErrTruncated},
		{"checksum mismatch", mutate(summed, func(b []byte) []byte { b[len(b)-CRCSize-1] ^= 0xff; return b }), Options{}, ErrChecksum},
		{"cut checksum", summed[:len(summed)-1], Options{}, ErrChecksum},
		{"checksum required", plain, Options{RequireChecksum: true}, ErrChecksum},
		{"unknown column", mutate(plain, func(b []byte) []byte {
			binary.LittleEndian.PutUint16(b[slotOffset(3):], 99)
			return b
		}), Options{}, ErrUnknownColumn},
		{"duplicate column", mutate(plain, func(b []byte) []byte {
			binary.LittleEndian.PutUint16(b[slotOffset(1):], 1)
			return b
		}), Options{}, ErrDuplicateColumn},
		{"missing column", mutate(plain, func(b []byte) []byte {
			binary.LittleEndian.PutUint16(b[12:], uint16(len(columns)-1))
			return b
		}), Options{}, ErrMissingColumn},
		{"zone count mismatch", mutate(plain, func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[8:], 21)
			return b
		}), Options{}, ErrColumnSize},
		{"ragged numeric column", mutate(plain, func(b []byte) []byte {
			s := parseSlot(b[slotOffset(2):])
			binary.LittleEndian.PutUint32(b[slotOffset(2)+8:], s.Length-1)
			return b
		}), Options{}, ErrColumnSize},
		{"column beyond data", mutate(plain, func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[slotOffset(0)+4:], 1<<30)
			return b
		}), Options{}, ErrTruncated},
		{"unknown compression", mutate(plain, func(b []byte) []byte {
			binary.LittleEndian.PutUint16(b[slotOffset(0)+2:], 0x0007)
			return b
		}), Options{}, ErrCompression},
		{"column over limit", packed, Options{MaxColumnBytes: 64}, ErrCompression},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := NewDecoder(c.opts).Decode(c.data)
			if !errors.Is(err, c.want) {
				t.Fatalf("Expected %v, got %v", c.want, err)
			}
			if got != nil {
				t.Fatal("partial buffer returned with error")
			}
		})
	}
}

func TestCorruptZstdFrame(t *testing.T) {
	enc, err := Marshal(makeTestBuffer(t, 2000), CompZstd, false)
	require.NoError(t, err)
	h, cols, err := NewDecoder(Options{}).Inspect(enc)
	require.NoError(t, err)
	for _, c := range cols {
		if !c.Compressed {
			continue
		}
		// past the varint size prefix and zstd magic
		at := int(h.DataOffset) + int(c.Offset) + int(c.Stored)/2
		enc[at] ^= 0xff
		enc[at+1] ^= 0xff
		_, err = Unmarshal(enc)
		require.Error(t, err)
		return
	}
	t.Fatal("no compressed column")
}

func TestUnsafePrimitivesAlias(t *testing.T) {
	enc, err := Marshal(makeTestBuffer(t, 10), CompRaw, false)
	require.NoError(t, err)
	d := NewDecoder(Options{UnsafePrimitives: true})
	buf, err := d.Decode(enc)
	require.NoError(t, err)
	h, cols, err := d.Inspect(enc)
	require.NoError(t, err)

	before := buf.UTF8IDs[0]
	enc[int(h.DataOffset)+int(cols[1].Offset)] = before + 1
	require.Equal(t, before+1, buf.UTF8IDs[0])

	safe, err := Unmarshal(enc)
	require.NoError(t, err)
	enc[int(h.DataOffset)+int(cols[1].Offset)] = before
	require.Equal(t, before+1, safe.UTF8IDs[0])
}

func FuzzDecode(f *testing.F) {
	for _, n := range []int{0, 1, 7} {
		buf, err := zonebuf.Encode(makeTestZones(n))
		require.NoError(f, err)
		for _, comp := range []uint16{CompRaw, CompZstd} {
			enc, err := (&Encoder{Compression: comp, MinCompressSize: 1}).Encode(buf)
			require.NoError(f, err)
			f.Add(enc)
		}
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		d := NewDecoder(Options{MaxColumnBytes: 1 << 16})
		buf, err := d.Decode(data)
		if err != nil {
			return
		}
		// contents are arbitrary, only the zone decoder's checks apply
		_, _ = zonebuf.DecodeAll(buf)
	})
}

func BenchmarkEncodeRaw(b *testing.B) {
	buf := makeTestBuffer(b, 4096)
	e := &Encoder{}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Encode(buf)
	}
}

func BenchmarkEncodeZstd(b *testing.B) {
	buf := makeTestBuffer(b, 4096)
	e := &Encoder{Compression: CompZstd}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Encode(buf)
	}
}

func BenchmarkDecodeRaw(b *testing.B) {
	enc, err := Marshal(makeTestBuffer(b, 4096), CompRaw, false)
	require.NoError(b, err)
	d := NewDecoder(Options{})
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = d.Decode(enc)
	}
}

func BenchmarkDecodeUnsafe(b *testing.B) {
	enc, err := Marshal(makeTestBuffer(b, 4096), CompRaw, false)
	require.NoError(b, err)
	d := NewDecoder(Options{UnsafePrimitives: true})
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = d.Decode(enc)
	}
}
