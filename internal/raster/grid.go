// Package raster holds the pixel-level types and math for DEM
// derivatives and NDVI, plus GDAL-backed I/O, reprojection and
// mosaicking for the files they live in.
package raster

import (
	"math"

	"github.com/rotisserie/eris"
)

// Grid is a single-band raster held in memory, row-major from the
// top-left pixel. Transform is the GDAL six-parameter affine
// geotransform: origin X, pixel width, row rotation, origin Y, column
// rotation, pixel height (negative for north-up).
type Grid struct {
	Width, Height int
	Transform     [6]float64
	NoData        float64
	Data          []float64
}

// NewGrid allocates a grid filled with the nodata value.
func NewGrid(width, height int, transform [6]float64, nodata float64) *Grid {
	data := make([]float64, width*height)
	for i := range data {
		data[i] = nodata
	}
	return &Grid{Width: width, Height: height, Transform: transform, NoData: nodata, Data: data}
}

// At returns the value at pixel (col, row).
func (g *Grid) At(col, row int) float64 {
	return g.Data[row*g.Width+col]
}

// Set writes the value at pixel (col, row).
func (g *Grid) Set(col, row int, v float64) {
	g.Data[row*g.Width+col] = v
}

// IsNoData reports whether v is the grid's nodata marker. NaN always
// counts as nodata.
func (g *Grid) IsNoData(v float64) bool {
	return math.IsNaN(v) || v == g.NoData
}

// PixelCenter maps pixel indices to the geographic coordinates of the
// pixel center.
func (g *Grid) PixelCenter(col, row int) (x, y float64) {
	fc := float64(col) + 0.5
	fr := float64(row) + 0.5
	x = g.Transform[0] + fc*g.Transform[1] + fr*g.Transform[2]
	y = g.Transform[3] + fc*g.Transform[4] + fr*g.Transform[5]
	return x, y
}

// PixelSize returns the absolute pixel dimensions in map units.
func (g *Grid) PixelSize() (dx, dy float64) {
	return math.Abs(g.Transform[1]), math.Abs(g.Transform[5])
}

// AlignedWith reports whether two grids share shape and geotransform,
// which is the precondition for any per-pixel combination of them.
func (g *Grid) AlignedWith(other *Grid) bool {
	if g.Width != other.Width || g.Height != other.Height {
		return false
	}
	for i := range g.Transform {
		if math.Abs(g.Transform[i]-other.Transform[i]) > 1e-9 {
			return false
		}
	}
	return true
}

// Validate checks internal consistency.
func (g *Grid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return eris.Errorf("raster: invalid grid shape %dx%d", g.Width, g.Height)
	}
	if len(g.Data) != g.Width*g.Height {
		return eris.Errorf("raster: data length %d does not match %dx%d", len(g.Data), g.Width, g.Height)
	}
	return nil
}

// Stats returns min, max and mean of valid pixels, and the valid count.
func (g *Grid) Stats() (min, max, mean float64, valid int) {
	min = math.Inf(1)
	max = math.Inf(-1)
	var sum float64
	for _, v := range g.Data {
		if g.IsNoData(v) {
			continue
		}
		valid++
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if valid == 0 {
		return 0, 0, 0, 0
	}
	return min, max, sum / float64(valid), valid
}
