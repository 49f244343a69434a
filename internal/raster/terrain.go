package raster

import (
	"math"

	"github.com/rotisserie/eris"
)

// Slope computes slope in degrees from a DEM using central differences
// over the pixel size. Border pixels and pixels with any nodata
// neighbor come out as nodata. The DEM is expected in a metric CRS so
// that elevation and pixel size share units.
func Slope(dem *Grid) (*Grid, error) {
	if err := dem.Validate(); err != nil {
		return nil, eris.Wrap(err, "raster: slope input")
	}

	out := NewGrid(dem.Width, dem.Height, dem.Transform, dem.NoData)
	dx, dy := dem.PixelSize()

	for row := 1; row < dem.Height-1; row++ {
		for col := 1; col < dem.Width-1; col++ {
			dzdx, dzdy, ok := gradients(dem, col, row, dx, dy)
			if !ok {
				continue
			}
			out.Set(col, row, math.Atan(math.Sqrt(dzdx*dzdx+dzdy*dzdy))*180/math.Pi)
		}
	}
	return out, nil
}

// Aspect computes downslope direction in compass degrees [0, 360).
// Flat cells report 0.
func Aspect(dem *Grid) (*Grid, error) {
	if err := dem.Validate(); err != nil {
		return nil, eris.Wrap(err, "raster: aspect input")
	}

	out := NewGrid(dem.Width, dem.Height, dem.Transform, dem.NoData)
	dx, dy := dem.PixelSize()

	for row := 1; row < dem.Height-1; row++ {
		for col := 1; col < dem.Width-1; col++ {
			dzdx, dzdy, ok := gradients(dem, col, row, dx, dy)
			if !ok {
				continue
			}
			a := math.Atan2(-dzdx, dzdy) * 180 / math.Pi
			if a < 0 {
				a += 360
			}
			out.Set(col, row, a)
		}
	}
	return out, nil
}

// gradients returns central-difference dz/dx and dz/dy at (col, row).
// ok is false when any of the four neighbors is nodata.
func gradients(dem *Grid, col, row int, dx, dy float64) (dzdx, dzdy float64, ok bool) {
	e := dem.At(col+1, row)
	w := dem.At(col-1, row)
	s := dem.At(col, row+1)
	n := dem.At(col, row-1)
	if dem.IsNoData(e) || dem.IsNoData(w) || dem.IsNoData(s) || dem.IsNoData(n) {
		return 0, 0, false
	}
	// Row index grows southward, so (south - north) over 2dy.
	return (e - w) / (2 * dx), (s - n) / (2 * dy), true
}
