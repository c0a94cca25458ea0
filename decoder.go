package zonebuf

type Options struct {
	UnsafeStrings bool // ids alias the buffer's byte pools; caller must keep it alive and unmodified
	Workers       int  // >1 decodes contiguous chunks of zones concurrently
}

// Decoder turns a ZoneBuffer into zones. It holds no state besides its
// options and may be shared between goroutines.
type Decoder struct {
	Opts Options
}

func NewDecoder(opts Options) *Decoder {
	return &Decoder{Opts: opts}
}

// DecodeAll decodes buf with default options.
func DecodeAll(buf *ZoneBuffer) ([]Zone, error) {
	var d Decoder
	return d.DecodeAll(buf)
}

// DecodeAll returns one zone per index of buf, in index order. Any
// violation of the buffer contract fails the whole call; no partial result
// is returned. An empty buffer decodes to an empty, non-nil slice.
func (d *Decoder) DecodeAll(buf *ZoneBuffer) ([]Zone, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	n := buf.Len()
	zones := make([]Zone, n)
	if n == 0 {
		return zones, nil
	}
	if d.Opts.Workers > 1 && n > 1 {
		if err := d.decodeParallel(buf, zones); err != nil {
			return nil, err
		}
		return zones, nil
	}
	for i := range zones {
		if err := d.decodeInto(buf, i, &zones[i]); err != nil {
			return nil, err
		}
	}
	return zones, nil
}

// DecodeZone decodes the single zone at index i.
func (d *Decoder) DecodeZone(buf *ZoneBuffer, i int) (Zone, error) {
	if err := buf.Validate(); err != nil {
		return Zone{}, err
	}
	if i < 0 || i >= buf.Len() {
		return Zone{}, &DecodeError{Zone: i, Field: ColIDOffsets, Err: ErrOutOfRange, Start: i, End: i + 1, Limit: buf.Len()}
	}
	var z Zone
	if err := d.decodeInto(buf, i, &z); err != nil {
		return Zone{}, err
	}
	return z, nil
}

type listColumns struct {
	level1 string
	level2 string
	pool   string
}

var (
	childrenColumns  = listColumns{ColChildrenOffsets, ColChildrenIDOffsets, ColChildrenUTF8IDs}
	neighborsColumns = listColumns{ColNeighborsOffsets, ColNeighborsIDOffsets, ColNeighborsUTF8IDs}
)

func (d *Decoder) decodeInto(b *ZoneBuffer, i int, z *Zone) error {
	start, end, err := ResolveRange(b.IDOffsets, i, len(b.UTF8IDs))
	if err != nil {
		return at(err, i, ColIDOffsets)
	}
	id, ok := text(b.UTF8IDs[start:end], d.Opts.UnsafeStrings)
	if !ok {
		return &DecodeError{Zone: i, Field: ColUTF8IDs, Err: ErrInvalidUTF8, Start: start, End: end, Limit: len(b.UTF8IDs)}
	}
	region, err := decodeRegion(b, i)
	if err != nil {
		return err
	}
	children, err := d.decodeList(i, b.ChildrenOffsets, b.ChildrenIDOffsets, b.ChildrenUTF8IDs, childrenColumns)
	if err != nil {
		return err
	}
	neighbors, err := d.decodeList(i, b.NeighborsOffsets, b.NeighborsIDOffsets, b.NeighborsUTF8IDs, neighborsColumns)
	if err != nil {
		return err
	}
	*z = Zone{
		ID:          id,
		Center:      Point{X: b.CenterX[i], Y: b.CenterY[i]},
		VertexCount: len(region),
		Region:      region,
		Children:    children,
		Neighbors:   neighbors,
	}
	return nil
}

// decodeRegion re-pairs vertexCount[i] interleaved x,y values starting at
// pair regionOffsets[i].
func decodeRegion(b *ZoneBuffer, i int) ([]Point, error) {
	start := uint64(b.RegionOffsets[i]) * 2
	end := start + uint64(b.VertexCount[i])*2
	if end > uint64(len(b.RegionCoords)) {
		return nil, &DecodeError{Zone: i, Field: ColRegionCoords, Err: ErrOutOfRange, Start: int(start), End: int(end), Limit: len(b.RegionCoords)}
	}
	coords := b.RegionCoords[start:end]
	region := make([]Point, len(coords)/2)
	for j := range region {
		region[j] = Point{X: coords[2*j], Y: coords[2*j+1]}
	}
	return region, nil
}

// decodeList reads a list of identifiers addressed in two levels: level1
// maps the zone to a slot range in level2, level2 maps each slot to a byte
// range in pool.
func (d *Decoder) decodeList(zone int, level1, level2 []uint32, pool []byte, cols listColumns) ([]string, error) {
	start, end, err := ResolveRange(level1, zone, len(level2))
	if err != nil {
		return nil, at(err, zone, cols.level1)
	}
	out := make([]string, 0, end-start)
	for k := start; k < end; k++ {
		bs, be, err := ResolveRange(level2, k, len(pool))
		if err != nil {
			return nil, at(err, zone, cols.level2)
		}
		s, ok := text(pool[bs:be], d.Opts.UnsafeStrings)
		if !ok {
			return nil, &DecodeError{Zone: zone, Field: cols.pool, Err: ErrInvalidUTF8, Start: bs, End: be, Limit: len(pool)}
		}
		out = append(out, s)
	}
	return out, nil
}
