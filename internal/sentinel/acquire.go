package sentinel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/raster"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// Acquirer clips the selected scene's bands to the comuna boundary.
type Acquirer struct {
	client *Client
	log    *zap.Logger

	MaxCloud   float64
	TargetSRID int
	NoData     float64
}

func NewAcquirer(client *Client) *Acquirer {
	return &Acquirer{
		client:     client,
		log:        zap.L().Named("sentinel"),
		MaxCloud:   20,
		TargetSRID: 32719,
		NoData:     -9999,
	}
}

// Acquire writes sentinel2_B04.tif / sentinel2_B08.tif (boundary clip)
// and their target-CRS variants into rawDir. The bands are read
// remotely through GDAL's vsicurl driver so only the clipped window
// crosses the network. A (nil, nil) return means no usable scene; the
// caller records the source as skipped.
func (a *Acquirer) Acquire(ctx context.Context, bbox vector.BBox, cutlinePath, rawDir string) ([]string, error) {
	outs := a.artifactPaths(rawDir)
	if allNonEmpty(outs) {
		a.log.Info("sentinel artifacts exist, skipping", zap.String("dir", rawDir))
		return outs, nil
	}

	scene, err := a.client.Search(ctx, bbox, a.MaxCloud)
	if err != nil {
		return nil, err
	}
	if scene == nil {
		return nil, nil
	}

	bands := []struct {
		href string
		stem string
	}{
		{scene.RedHref, "sentinel2_B04"},
		{scene.NIRHref, "sentinel2_B08"},
	}
	var written []string
	for _, band := range bands {
		signed, err := a.client.Sign(ctx, band.href)
		if err != nil {
			return nil, err
		}
		src := "/vsicurl/" + signed

		native := filepath.Join(rawDir, band.stem+".tif")
		if err := raster.WarpClip(ctx, src, native, a.clipOptions(cutlinePath)); err != nil {
			return nil, err
		}

		metric := filepath.Join(rawDir, fmt.Sprintf("%s_%d.tif", band.stem, a.TargetSRID))
		if err := raster.WarpClip(ctx, native, metric, a.metricOptions()); err != nil {
			return nil, err
		}
		written = append(written, native, metric)
	}
	return written, nil
}

// clipOptions warps a remote band to the boundary cutline. Bands are
// continuous reflectance, so resampling stays bilinear.
func (a *Acquirer) clipOptions(cutlinePath string) raster.WarpOptions {
	return raster.WarpOptions{
		CutlinePath: cutlinePath,
		Resampling:  "bilinear",
		NoData:      a.NoData,
	}
}

// metricOptions reprojects a clipped band into the metric CRS.
func (a *Acquirer) metricOptions() raster.WarpOptions {
	return raster.WarpOptions{
		TargetSRID: a.TargetSRID,
		Resampling: "bilinear",
		NoData:     a.NoData,
	}
}

func (a *Acquirer) artifactPaths(rawDir string) []string {
	return []string{
		filepath.Join(rawDir, "sentinel2_B04.tif"),
		filepath.Join(rawDir, fmt.Sprintf("sentinel2_B04_%d.tif", a.TargetSRID)),
		filepath.Join(rawDir, "sentinel2_B08.tif"),
		filepath.Join(rawDir, fmt.Sprintf("sentinel2_B08_%d.tif", a.TargetSRID)),
	}
}

func allNonEmpty(paths []string) bool {
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil || st.Size() == 0 {
			return false
		}
	}
	return true
}
