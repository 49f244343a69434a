package raster

import (
	"github.com/twpayne/go-geom"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// ZonalMean averages the valid pixels whose centers fall inside the
// polygon. Returns (0, false) when no pixel qualifies, so callers can
// emit a null column instead of a fake zero.
func ZonalMean(g *Grid, zone geom.T) (float64, bool) {
	if zone == nil {
		return 0, false
	}

	// Restrict the scan to the pixel window covering the zone bounds.
	zb := vector.BoundsOf(zone)
	colMin, rowMin, colMax, rowMax := g.window(zb)

	var sum float64
	var count int
	for row := rowMin; row <= rowMax; row++ {
		for col := colMin; col <= colMax; col++ {
			v := g.At(col, row)
			if g.IsNoData(v) {
				continue
			}
			x, y := g.PixelCenter(col, row)
			if vector.PointInGeom(zone, x, y) {
				sum += v
				count++
			}
		}
	}

	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// window clamps a geographic bbox to pixel index ranges. North-up
// transforms have negative row pitch, so Y bounds invert.
func (g *Grid) window(b vector.BBox) (colMin, rowMin, colMax, rowMax int) {
	colOf := func(x float64) int {
		return int((x - g.Transform[0]) / g.Transform[1])
	}
	rowOf := func(y float64) int {
		return int((y - g.Transform[3]) / g.Transform[5])
	}

	colMin = clamp(colOf(b.MinX), 0, g.Width-1)
	colMax = clamp(colOf(b.MaxX), 0, g.Width-1)
	r1 := rowOf(b.MinY)
	r2 := rowOf(b.MaxY)
	if r1 > r2 {
		r1, r2 = r2, r1
	}
	rowMin = clamp(r1, 0, g.Height-1)
	rowMax = clamp(r2, 0, g.Height-1)
	return colMin, rowMin, colMax, rowMax
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
