package zonewire

import (
	"github.com/rawbytedev/zonebuf"
	"github.com/rawbytedev/zonebuf/internal/common"
)

// column binds a wire tag to a ZoneBuffer field.
type column struct {
	tag     uint16
	name    string
	kind    common.Kind
	perZone bool
	u32     func(*zonebuf.ZoneBuffer) *[]uint32
	f64     func(*zonebuf.ZoneBuffer) *[]float64
	raw     func(*zonebuf.ZoneBuffer) *[]byte
}

// Tags are dense, 1..len(columns), in this order.
var columns = [...]column{
	{tag: 1, name: zonebuf.ColIDOffsets, kind: common.KindUint32, perZone: true,
		u32: func(b *zonebuf.ZoneBuffer) *[]uint32 { return &b.IDOffsets }},
	{tag: 2, name: zonebuf.ColUTF8IDs, kind: common.KindBytes,
		raw: func(b *zonebuf.ZoneBuffer) *[]byte { return &b.UTF8IDs }},
	{tag: 3, name: zonebuf.ColCenterX, kind: common.KindFloat64, perZone: true,
		f64: func(b *zonebuf.ZoneBuffer) *[]float64 { return &b.CenterX }},
	{tag: 4, name: zonebuf.ColCenterY, kind: common.KindFloat64, perZone: true,
		f64: func(b *zonebuf.ZoneBuffer) *[]float64 { return &b.CenterY }},
	{tag: 5, name: zonebuf.ColVertexCount, kind: common.KindUint32, perZone: true,
		u32: func(b *zonebuf.ZoneBuffer) *[]uint32 { return &b.VertexCount }},
	{tag: 6, name: zonebuf.ColRegionOffsets, kind: common.KindUint32, perZone: true,
		u32: func(b *zonebuf.ZoneBuffer) *[]uint32 { return &b.RegionOffsets }},
	{tag: 7, name: zonebuf.ColRegionCoords, kind: common.KindFloat64,
		f64: func(b *zonebuf.ZoneBuffer) *[]float64 { return &b.RegionCoords }},
	{tag: 8, name: zonebuf.ColChildrenOffsets, kind: common.KindUint32, perZone: true,
		u32: func(b *zonebuf.ZoneBuffer) *[]uint32 { return &b.ChildrenOffsets }},
	{tag: 9, name: zonebuf.ColChildrenIDOffsets, kind: common.KindUint32,
		u32: func(b *zonebuf.ZoneBuffer) *[]uint32 { return &b.ChildrenIDOffsets }},
	{tag: 10, name: zonebuf.ColChildrenUTF8IDs, kind: common.KindBytes,
		raw: func(b *zonebuf.ZoneBuffer) *[]byte { return &b.ChildrenUTF8IDs }},
	{tag: 11, name: zonebuf.ColNeighborsOffsets, kind: common.KindUint32, perZone: true,
		u32: func(b *zonebuf.ZoneBuffer) *[]uint32 { return &b.NeighborsOffsets }},
	{tag: 12, name: zonebuf.ColNeighborsIDOffsets, kind: common.KindUint32,
		u32: func(b *zonebuf.ZoneBuffer) *[]uint32 { return &b.NeighborsIDOffsets }},
	{tag: 13, name: zonebuf.ColNeighborsUTF8IDs, kind: common.KindBytes,
		raw: func(b *zonebuf.ZoneBuffer) *[]byte { return &b.NeighborsUTF8IDs }},
}

func lookup(tag uint16) (*column, bool) {
	if tag == 0 || int(tag) > len(columns) {
		return nil, false
	}
	return &columns[tag-1], true
}

// elements returns the number of elements in c's column of b.
func (c *column) elements(b *zonebuf.ZoneBuffer) int {
	switch c.kind {
	case common.KindUint32:
		return len(*c.u32(b))
	case common.KindFloat64:
		return len(*c.f64(b))
	default:
		return len(*c.raw(b))
	}
}

// appendRaw appends the packed little-endian form of c's column to dst.
func (c *column) appendRaw(dst []byte, b *zonebuf.ZoneBuffer) []byte {
	switch c.kind {
	case common.KindUint32:
		return common.AppendUint32s(dst, *c.u32(b))
	case common.KindFloat64:
		return common.AppendFloat64s(dst, *c.f64(b))
	default:
		return append(dst, *c.raw(b)...)
	}
}

// set stores payload into c's column of b. With alias the column shares
// memory with payload when the host layout allows it.
func (c *column) set(b *zonebuf.ZoneBuffer, payload []byte, alias bool) {
	switch c.kind {
	case common.KindUint32:
		if alias && common.LittleEndianHost && common.Aligned(payload, c.kind) {
			*c.u32(b) = common.AliasUint32s(payload)
		} else {
			*c.u32(b) = common.Uint32s(payload)
		}
	case common.KindFloat64:
		if alias && common.LittleEndianHost && common.Aligned(payload, c.kind) {
			*c.f64(b) = common.AliasFloat64s(payload)
		} else {
			*c.f64(b) = common.Float64s(payload)
		}
	default:
		if alias {
			*c.raw(b) = payload
		} else {
			*c.raw(b) = append(make([]byte, 0, len(payload)), payload...)
		}
	}
}
