package zonebuf

import (
	"fmt"
	"sort"
)

// Column names of the zone buffer. They are the contract with the grid
// engine and with the wire format; renaming one needs a version bump.
const (
	ColIDOffsets          = "idOffsets"
	ColUTF8IDs            = "utf8Ids"
	ColCenterX            = "centerX"
	ColCenterY            = "centerY"
	ColVertexCount        = "vertexCount"
	ColRegionOffsets      = "regionOffsets"
	ColRegionCoords       = "regionCoords"
	ColChildrenOffsets    = "childrenOffsets"
	ColChildrenIDOffsets  = "childrenIdOffsets"
	ColChildrenUTF8IDs    = "childrenUtf8Ids"
	ColNeighborsOffsets   = "neighborsOffsets"
	ColNeighborsIDOffsets = "neighborsIdOffsets"
	ColNeighborsUTF8IDs   = "neighborsUtf8Ids"
)

// ZoneBuffer is the columnar form of a zone collection.
//
// Per-zone columns (IDOffsets, CenterX, CenterY, VertexCount, RegionOffsets,
// ChildrenOffsets, NeighborsOffsets) all have length N. Offset columns are
// non-decreasing; the range of the last index ends at the length of the
// pool it addresses. RegionOffsets count coordinate pairs, not elements.
//
// Children and neighbors use two levels: ChildrenOffsets maps a zone to a
// range of slots in ChildrenIDOffsets, which maps a slot to a byte range in
// ChildrenUTF8IDs.
//
// A ZoneBuffer is never modified by this package.
type ZoneBuffer struct {
	IDOffsets []uint32
	UTF8IDs   []byte

	CenterX []float64
	CenterY []float64

	VertexCount   []uint32
	RegionOffsets []uint32
	RegionCoords  []float64

	ChildrenOffsets   []uint32
	ChildrenIDOffsets []uint32
	ChildrenUTF8IDs   []byte

	NeighborsOffsets   []uint32
	NeighborsIDOffsets []uint32
	NeighborsUTF8IDs   []byte
}

// Len returns the number of zones in b.
func (b *ZoneBuffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.IDOffsets)
}

// Validate checks that every per-zone column has the same length and that
// the offset columns are non-decreasing. A zone's region may not run into
// the next zone's, and the last level-2 offset of a list must lie within its
// pool. Range checks against the pools are left to the per-zone decode.
func (b *ZoneBuffer) Validate() error {
	if b == nil {
		return nil
	}
	n := len(b.IDOffsets)
	cols := [...]struct {
		name string
		n    int
	}{
		{ColCenterX, len(b.CenterX)},
		{ColCenterY, len(b.CenterY)},
		{ColVertexCount, len(b.VertexCount)},
		{ColRegionOffsets, len(b.RegionOffsets)},
		{ColChildrenOffsets, len(b.ChildrenOffsets)},
		{ColNeighborsOffsets, len(b.NeighborsOffsets)},
	}
	for _, c := range cols {
		if c.n != n {
			return &DecodeError{
				Zone:  -1,
				Field: c.name,
				Err:   ErrShapeMismatch,
				Start: n,
				End:   c.n,
			}
		}
	}
	return b.checkOffsets()
}

func (b *ZoneBuffer) checkOffsets() error {
	perZone := [...]struct {
		name    string
		offsets []uint32
		limit   int
	}{
		{ColIDOffsets, b.IDOffsets, len(b.UTF8IDs)},
		{ColRegionOffsets, b.RegionOffsets, len(b.RegionCoords) / 2},
		{ColChildrenOffsets, b.ChildrenOffsets, len(b.ChildrenIDOffsets)},
		{ColNeighborsOffsets, b.NeighborsOffsets, len(b.NeighborsIDOffsets)},
	}
	for _, c := range perZone {
		if i := decreasing(c.offsets); i > 0 {
			return &DecodeError{Zone: i - 1, Field: c.name, Err: ErrOutOfRange,
				Start: int(c.offsets[i-1]), End: int(c.offsets[i]), Limit: c.limit}
		}
	}
	for i := 0; i+1 < len(b.RegionOffsets); i++ {
		end := uint64(b.RegionOffsets[i]) + uint64(b.VertexCount[i])
		if end > uint64(b.RegionOffsets[i+1]) {
			return &DecodeError{Zone: i, Field: ColRegionOffsets, Err: ErrOutOfRange,
				Start: int(b.RegionOffsets[i]), End: int(end), Limit: int(b.RegionOffsets[i+1])}
		}
	}

	lists := [...]struct {
		name   string
		level1 []uint32
		level2 []uint32
		pool   int
	}{
		{ColChildrenIDOffsets, b.ChildrenOffsets, b.ChildrenIDOffsets, len(b.ChildrenUTF8IDs)},
		{ColNeighborsIDOffsets, b.NeighborsOffsets, b.NeighborsIDOffsets, len(b.NeighborsUTF8IDs)},
	}
	for _, l := range lists {
		if k := decreasing(l.level2); k > 0 {
			return &DecodeError{Zone: owner(l.level1, k), Field: l.name, Err: ErrOutOfRange,
				Start: int(l.level2[k-1]), End: int(l.level2[k]), Limit: l.pool}
		}
		if k := len(l.level2) - 1; k >= 0 && uint64(l.level2[k]) > uint64(l.pool) {
			return &DecodeError{Zone: owner(l.level1, k), Field: l.name, Err: ErrOutOfRange,
				Start: int(l.level2[k]), End: l.pool, Limit: l.pool}
		}
	}
	return nil
}

// decreasing returns the first index i with offsets[i] < offsets[i-1], or 0.
func decreasing(offsets []uint32) int {
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return i
		}
	}
	return 0
}

// owner returns the zone whose slot range holds slot k, or -1 when k lies
// before the first zone's range. level1 must be non-decreasing.
func owner(level1 []uint32, k int) int {
	return sort.Search(len(level1), func(i int) bool { return uint64(level1[i]) > uint64(k) }) - 1
}

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// Zone is one decoded cell of the grid.
type Zone struct {
	ID          string   `json:"id" yaml:"id"`
	Center      Point    `json:"center" yaml:"center"`
	VertexCount int      `json:"vertexCount" yaml:"vertexCount"`
	Region      []Point  `json:"region" yaml:"region"`
	Children    []string `json:"children" yaml:"children"`
	Neighbors   []string `json:"neighbors" yaml:"neighbors"`
}

// Clone returns a deep copy of z.
func (z Zone) Clone() Zone {
	c := z
	c.Region = append(make([]Point, 0, len(z.Region)), z.Region...)
	c.Children = append(make([]string, 0, len(z.Children)), z.Children...)
	c.Neighbors = append(make([]string, 0, len(z.Neighbors)), z.Neighbors...)
	return c
}
