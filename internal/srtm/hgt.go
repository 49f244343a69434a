package srtm

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/raster"
)

// hgtVoid is the SRTM void marker.
const hgtVoid = -32768

// ReadHGT decodes a raw SRTM .hgt tile into a grid. The format is a
// square of big-endian int16 samples with no header; the side length
// follows from the file size (1201 for SRTM3, 3601 for SRTM1) and the
// geographic anchor from the tile code in the filename.
func ReadHGT(path string) (*raster.Grid, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "srtm: read %s", path)
	}
	if len(raw)%2 != 0 {
		return nil, eris.Errorf("srtm: %s has odd byte count", path)
	}

	samples := int(math.Sqrt(float64(len(raw) / 2)))
	if samples*samples*2 != len(raw) {
		return nil, eris.Errorf("srtm: %s is not a square tile (%d bytes)", path, len(raw))
	}

	code := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	latSW, lonSW, err := ParseTileCode(code)
	if err != nil {
		return nil, err
	}

	// Samples are posts spaced 1/(n-1) degrees; the first row sits on
	// the tile's north edge.
	res := 1.0 / float64(samples-1)
	g := raster.NewGrid(samples, samples, [6]float64{
		float64(lonSW), res, 0,
		float64(latSW + 1), 0, -res,
	}, hgtVoid)

	for i := 0; i < samples*samples; i++ {
		v := int16(binary.BigEndian.Uint16(raw[i*2:]))
		g.Data[i] = float64(v)
	}
	return g, nil
}
