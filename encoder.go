package zonebuf

import (
	"fmt"
	"math"
)

// Encode builds the columnar form of zones. Vertex counts are taken from
// len(Region); VertexCount on the input is ignored. Pools larger than the
// 32-bit offset space fail with ErrOutOfRange.
func Encode(zones []Zone) (*ZoneBuffer, error) {
	n := len(zones)
	var idBytes, coords, childSlots, childBytes, neighSlots, neighBytes int
	for _, z := range zones {
		idBytes += len(z.ID)
		coords += len(z.Region) * 2
		childSlots += len(z.Children)
		for _, c := range z.Children {
			childBytes += len(c)
		}
		neighSlots += len(z.Neighbors)
		for _, nb := range z.Neighbors {
			neighBytes += len(nb)
		}
	}
	sizes := [...]struct {
		name string
		n    int
	}{
		{ColUTF8IDs, idBytes},
		{ColRegionCoords, coords / 2},
		{ColChildrenIDOffsets, childSlots},
		{ColChildrenUTF8IDs, childBytes},
		{ColNeighborsIDOffsets, neighSlots},
		{ColNeighborsUTF8IDs, neighBytes},
	}
	for _, s := range sizes {
		if uint64(s.n) > math.MaxUint32 {
			return nil, fmt.Errorf("zonebuf: encode %s: %d entries: %w", s.name, s.n, ErrOutOfRange)
		}
	}

	b := &ZoneBuffer{
		IDOffsets:          make([]uint32, 0, n),
		UTF8IDs:            make([]byte, 0, idBytes),
		CenterX:            make([]float64, 0, n),
		CenterY:            make([]float64, 0, n),
		VertexCount:        make([]uint32, 0, n),
		RegionOffsets:      make([]uint32, 0, n),
		RegionCoords:       make([]float64, 0, coords),
		ChildrenOffsets:    make([]uint32, 0, n),
		ChildrenIDOffsets:  make([]uint32, 0, childSlots),
		ChildrenUTF8IDs:    make([]byte, 0, childBytes),
		NeighborsOffsets:   make([]uint32, 0, n),
		NeighborsIDOffsets: make([]uint32, 0, neighSlots),
		NeighborsUTF8IDs:   make([]byte, 0, neighBytes),
	}
	for _, z := range zones {
		b.IDOffsets = append(b.IDOffsets, uint32(len(b.UTF8IDs)))
		b.UTF8IDs = append(b.UTF8IDs, z.ID...)

		b.CenterX = append(b.CenterX, z.Center.X)
		b.CenterY = append(b.CenterY, z.Center.Y)

		b.VertexCount = append(b.VertexCount, uint32(len(z.Region)))
		// pair units
		b.RegionOffsets = append(b.RegionOffsets, uint32(len(b.RegionCoords)/2))
		for _, p := range z.Region {
			b.RegionCoords = append(b.RegionCoords, p.X, p.Y)
		}

		b.ChildrenOffsets, b.ChildrenIDOffsets, b.ChildrenUTF8IDs =
			appendList(b.ChildrenOffsets, b.ChildrenIDOffsets, b.ChildrenUTF8IDs, z.Children)
		b.NeighborsOffsets, b.NeighborsIDOffsets, b.NeighborsUTF8IDs =
			appendList(b.NeighborsOffsets, b.NeighborsIDOffsets, b.NeighborsUTF8IDs, z.Neighbors)
	}
	return b, nil
}

func appendList(level1, level2 []uint32, pool []byte, ids []string) ([]uint32, []uint32, []byte) {
	level1 = append(level1, uint32(len(level2)))
	for _, id := range ids {
		level2 = append(level2, uint32(len(pool)))
		pool = append(pool, id...)
	}
	return level1, level2, pool
}
