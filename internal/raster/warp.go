package raster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/godal"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// WarpOptions controls reprojection and clipping of a source raster.
type WarpOptions struct {
	TargetSRID int
	// CutlinePath points at a GeoJSON file whose geometry clips the
	// output. Empty means no clipping.
	CutlinePath string
	Resampling  string // defaults to bilinear
	NoData      float64
}

func (o WarpOptions) args() []string {
	resampling := o.Resampling
	if resampling == "" {
		resampling = "bilinear"
	}
	args := []string{
		"-overwrite",
		"-r", resampling,
		"-dstnodata", fmt.Sprintf("%g", o.NoData),
	}
	if o.TargetSRID > 0 {
		args = append(args, "-t_srs", fmt.Sprintf("epsg:%d", o.TargetSRID))
	}
	if o.CutlinePath != "" {
		args = append(args, "-cutline", o.CutlinePath, "-crop_to_cutline")
	}
	return args
}

// WarpClip reprojects and clips src into dst. When dst already exists
// and is non-empty the warp is skipped, so reruns never redo finished
// work.
func WarpClip(ctx context.Context, src, dst string, opts WarpOptions) error {
	registerDrivers()

	if st, err := os.Stat(dst); err == nil && st.Size() > 0 {
		zap.L().Info("raster: artifact exists, skipping warp", zap.String("dst", dst))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return eris.Wrapf(err, "raster: create dir for %s", dst)
	}

	sds, err := godal.Open(src, godal.RasterOnly())
	if err != nil {
		return eris.Wrapf(err, "raster: open %s", src)
	}
	defer sds.Close() //nolint:errcheck

	ods, err := godal.Warp(dst, []*godal.Dataset{sds}, opts.args())
	if err != nil {
		return eris.Wrapf(err, "raster: warp %s", src)
	}
	if err := ods.Close(); err != nil {
		return eris.Wrapf(err, "raster: close %s", dst)
	}

	zap.L().Info("raster: warp written",
		zap.String("src", src),
		zap.String("dst", dst),
		zap.Int("srid", opts.TargetSRID),
	)
	return nil
}
