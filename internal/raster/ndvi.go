package raster

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// ErrIncompatibleBandPair marks red/NIR rasters that do not share
// shape and geotransform. NDVI is skipped rather than resampled
// silently; the rest of the run continues.
var ErrIncompatibleBandPair = errors.New("raster: incompatible band pair")

// NDVI computes (NIR - RED) / (NIR + RED) per pixel. Both inputs must
// be exactly aligned or the call fails with ErrIncompatibleBandPair.
// Pixels where either band is nodata, or where the denominator is
// zero, come out as nodata.
func NDVI(red, nir *Grid) (*Grid, error) {
	if err := red.Validate(); err != nil {
		return nil, eris.Wrap(err, "raster: ndvi red band")
	}
	if err := nir.Validate(); err != nil {
		return nil, eris.Wrap(err, "raster: ndvi nir band")
	}
	if !red.AlignedWith(nir) {
		return nil, eris.Wrapf(ErrIncompatibleBandPair,
			"raster: red %dx%d vs nir %dx%d", red.Width, red.Height, nir.Width, nir.Height)
	}

	out := NewGrid(red.Width, red.Height, red.Transform, red.NoData)
	for i, r := range red.Data {
		n := nir.Data[i]
		if red.IsNoData(r) || nir.IsNoData(n) {
			continue
		}
		denom := n + r
		if denom == 0 {
			continue
		}
		out.Data[i] = (n - r) / denom
	}
	return out, nil
}

// BandPair is a discovered red/NIR file pair.
type BandPair struct {
	Red string
	NIR string
}

// bandPairCandidates lists the filename stems probed in order before
// falling back to a glob over *_B04/*_B08.
var bandPairCandidates = [][2]string{
	{"sentinel_B04.tif", "sentinel_B08.tif"},
	{"sentinel2_B04.tif", "sentinel2_B08.tif"},
}

// DiscoverBandPair finds the red/NIR GeoTIFF pair under dir: known
// stems first, then the first *_B04.tif with a matching *_B08.tif.
// Returns nil when no pair exists.
func DiscoverBandPair(dir string) (*BandPair, error) {
	for _, cand := range bandPairCandidates {
		red := filepath.Join(dir, cand[0])
		nir := filepath.Join(dir, cand[1])
		if fileExists(red) && fileExists(nir) {
			return &BandPair{Red: red, NIR: nir}, nil
		}
	}

	reds, err := filepath.Glob(filepath.Join(dir, "*_B04.tif"))
	if err != nil {
		return nil, eris.Wrap(err, "raster: glob band files")
	}
	for _, red := range reds {
		nir := red[:len(red)-len("_B04.tif")] + "_B08.tif"
		if fileExists(nir) {
			return &BandPair{Red: red, NIR: nir}, nil
		}
	}
	return nil, nil
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Size() > 0
}
