package raster

import (
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var registerOnce sync.Once

func registerDrivers() {
	registerOnce.Do(godal.RegisterAll)
}

// ReadGrid loads band 1 of a GeoTIFF into memory as float64.
func ReadGrid(path string) (*Grid, error) {
	registerDrivers()

	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", path)
	}
	defer ds.Close() //nolint:errcheck

	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, eris.Errorf("raster: %s has no bands", path)
	}
	band := bands[0]
	st := band.Structure()

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, eris.Wrapf(err, "raster: geotransform of %s", path)
	}

	g := &Grid{
		Width:     st.SizeX,
		Height:    st.SizeY,
		Transform: gt,
		NoData:    -9999,
		Data:      make([]float64, st.SizeX*st.SizeY),
	}
	if nd, ok := band.NoData(); ok {
		g.NoData = nd
	}

	if err := band.IO(godal.IORead, 0, 0, g.Data, st.SizeX, st.SizeY); err != nil {
		return nil, eris.Wrapf(err, "raster: read band of %s", path)
	}
	return g, nil
}

// WriteGrid writes the grid as a single-band float64 GeoTIFF tagged
// with the given EPSG code.
func WriteGrid(path string, g *Grid, epsg int) error {
	registerDrivers()

	if err := g.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "raster: create dir for %s", path)
	}

	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float64, g.Width, g.Height,
		godal.CreationOption("COMPRESS=LZW"))
	if err != nil {
		return eris.Wrapf(err, "raster: create %s", path)
	}
	defer ds.Close() //nolint:errcheck

	if err := ds.SetGeoTransform(g.Transform); err != nil {
		return eris.Wrapf(err, "raster: set geotransform on %s", path)
	}

	sr, err := godal.NewSpatialRefFromEPSG(epsg)
	if err != nil {
		return eris.Wrapf(err, "raster: spatial ref epsg:%d", epsg)
	}
	defer sr.Close()
	if err := ds.SetSpatialRef(sr); err != nil {
		return eris.Wrapf(err, "raster: set spatial ref on %s", path)
	}

	band := ds.Bands()[0]
	if err := band.SetNoData(g.NoData); err != nil {
		return eris.Wrapf(err, "raster: set nodata on %s", path)
	}
	if err := band.IO(godal.IOWrite, 0, 0, g.Data, g.Width, g.Height); err != nil {
		return eris.Wrapf(err, "raster: write band of %s", path)
	}
	return nil
}

// AssetInfo is the catalog row shape for one raster artifact.
type AssetInfo struct {
	Filename    string
	CRS         string
	Width       int
	Height      int
	BandCount   int
	Bounds      [4]float64 // minx, miny, maxx, maxy
	Transform   [6]float64
	DType       string
	NoData      *float64
	SourceGroup string
}

var epsgAuthority = regexp.MustCompile(`AUTHORITY\["EPSG","(\d+)"\]\s*\]\s*$`)

// Info reads catalog metadata from a raster file without loading
// pixel data. sourceGroup labels which pipeline stage produced it.
func Info(path, sourceGroup string) (*AssetInfo, error) {
	registerDrivers()

	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", path)
	}
	defer ds.Close() //nolint:errcheck

	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, eris.Errorf("raster: %s has no bands", path)
	}
	st := bands[0].Structure()

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, eris.Wrapf(err, "raster: geotransform of %s", path)
	}

	info := &AssetInfo{
		Filename:    filepath.Base(path),
		CRS:         crsName(ds.Projection()),
		Width:       st.SizeX,
		Height:      st.SizeY,
		BandCount:   len(bands),
		Transform:   gt,
		DType:       st.DataType.String(),
		SourceGroup: sourceGroup,
	}
	if nd, ok := bands[0].NoData(); ok {
		info.NoData = &nd
	}

	// Corner coordinates from the affine transform.
	w, h := float64(st.SizeX), float64(st.SizeY)
	xs := []float64{gt[0], gt[0] + w*gt[1] + h*gt[2]}
	ys := []float64{gt[3], gt[3] + w*gt[4] + h*gt[5]}
	info.Bounds = [4]float64{minOf(xs), minOf(ys), maxOf(xs), maxOf(ys)}

	return info, nil
}

// crsName extracts "EPSG:nnnn" from a projection WKT, falling back to
// the raw WKT when no EPSG authority is declared.
func crsName(wkt string) string {
	if wkt == "" {
		return ""
	}
	if m := epsgAuthority.FindStringSubmatch(wkt); m != nil {
		return "EPSG:" + m[1]
	}
	return wkt
}

func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Mosaic merges single-band tiles into one GeoTIFF through a temporary
// VRT at the highest input resolution.
func Mosaic(parts []string, out string) error {
	registerDrivers()

	if len(parts) == 0 {
		return eris.New("raster: mosaic of zero tiles")
	}

	tmpVrt := out + ".vrt"
	defer os.Remove(tmpVrt) //nolint:errcheck

	vds, err := godal.BuildVRT(tmpVrt, parts, []string{"-resolution", "highest", "-overwrite"})
	if err != nil {
		return eris.Wrap(err, "raster: build vrt")
	}
	defer vds.Close() //nolint:errcheck

	ods, err := vds.Translate(out, []string{"-co", "COMPRESS=LZW"})
	if err != nil {
		return eris.Wrap(err, "raster: translate vrt")
	}
	if err := ods.Close(); err != nil {
		return eris.Wrap(err, "raster: close mosaic")
	}

	zap.L().Info("raster: mosaic written",
		zap.Int("tiles", len(parts)),
		zap.String("out", out),
	)
	return nil
}
