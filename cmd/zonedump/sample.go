package main

import (
	"fmt"
	"math"

	"github.com/rawbytedev/zonebuf"
)

const (
	sampleRes      = 3
	sampleAperture = 7
	sampleRadius   = 0.5 // degrees
)

// sampleZones lays n hexagonal zones along rows of a flat lon/lat plane.
// Neighbors are the zones left and right in the row; children are the
// aperture-7 ids one resolution finer. Ids are not meant to be real.
func sampleZones(n int) []zonebuf.Zone {
	perRow := int(math.Ceil(math.Sqrt(float64(n))))
	zones := make([]zonebuf.Zone, n)
	for i := range zones {
		row, col := i/perRow, i%perRow
		cx := -180 + sampleRadius*(1.5*float64(col)+1)
		cy := -90 + sampleRadius*(math.Sqrt(3)*float64(row)+1)
		if col%2 == 1 {
			cy += sampleRadius * math.Sqrt(3) / 2
		}
		region := make([]zonebuf.Point, 6)
		for v := range region {
			a := math.Pi / 3 * float64(v)
			region[v] = zonebuf.Point{X: cx + sampleRadius*math.Cos(a), Y: cy + sampleRadius*math.Sin(a)}
		}
		children := make([]string, sampleAperture)
		for k := range children {
			children[k] = sampleID(sampleRes+1, i*sampleAperture+k)
		}
		neighbors := []string{}
		if col > 0 {
			neighbors = append(neighbors, sampleID(sampleRes, i-1))
		}
		if col+1 < perRow && i+1 < n {
			neighbors = append(neighbors, sampleID(sampleRes, i+1))
		}
		zones[i] = zonebuf.Zone{
			ID:          sampleID(sampleRes, i),
			Center:      zonebuf.Point{X: cx, Y: cy},
			VertexCount: len(region),
			Region:      region,
			Children:    children,
			Neighbors:   neighbors,
		}
	}
	return zones
}

func sampleID(res, i int) string {
	return fmt.Sprintf("%02d%016x", res, i)
}
