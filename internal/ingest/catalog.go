package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/db"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/raster"
)

const catalogTable = "raster_catalog"

// EnsureCatalog creates the raster catalog relation. Assets are keyed
// by filename so a rerun refreshes metadata instead of duplicating it.
func EnsureCatalog(ctx context.Context, pool db.Pool, schema string) error {
	qualified := db.SanitizeIdent(schema) + "." + catalogTable
	sql := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		filename TEXT PRIMARY KEY,
		rel_path TEXT,
		crs TEXT,
		width INTEGER,
		height INTEGER,
		band_count INTEGER,
		dtype TEXT,
		nodata DOUBLE PRECISION,
		transform TEXT,
		minx DOUBLE PRECISION,
		miny DOUBLE PRECISION,
		maxx DOUBLE PRECISION,
		maxy DOUBLE PRECISION,
		source_group TEXT,
		registered_at TIMESTAMPTZ DEFAULT now()
	)`, qualified)
	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "ingest: create %s.%s", schema, catalogTable)
	}
	return nil
}

// UpsertAsset registers or refreshes one raster in the catalog.
func UpsertAsset(ctx context.Context, pool db.Pool, schema, relPath string, info *raster.AssetInfo) error {
	qualified := db.SanitizeIdent(schema) + "." + catalogTable
	sql := fmt.Sprintf(`INSERT INTO %s
		(filename, rel_path, crs, width, height, band_count, dtype, nodata, transform,
		 minx, miny, maxx, maxy, source_group, registered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now())
		ON CONFLICT (filename) DO UPDATE SET
		 rel_path = EXCLUDED.rel_path,
		 crs = EXCLUDED.crs,
		 width = EXCLUDED.width,
		 height = EXCLUDED.height,
		 band_count = EXCLUDED.band_count,
		 dtype = EXCLUDED.dtype,
		 nodata = EXCLUDED.nodata,
		 transform = EXCLUDED.transform,
		 minx = EXCLUDED.minx,
		 miny = EXCLUDED.miny,
		 maxx = EXCLUDED.maxx,
		 maxy = EXCLUDED.maxy,
		 source_group = EXCLUDED.source_group,
		 registered_at = now()`, qualified)

	var nodata any
	if info.NoData != nil {
		nodata = *info.NoData
	}
	_, err := pool.Exec(ctx, sql,
		info.Filename, relPath, info.CRS,
		info.Width, info.Height, info.BandCount, info.DType, nodata,
		formatTransform(info.Transform),
		info.Bounds[0], info.Bounds[1], info.Bounds[2], info.Bounds[3],
		info.SourceGroup,
	)
	if err != nil {
		return eris.Wrapf(err, "ingest: upsert catalog entry %s", info.Filename)
	}
	zap.L().Debug("raster cataloged",
		zap.String("filename", info.Filename),
		zap.String("source_group", info.SourceGroup),
	)
	return nil
}

func formatTransform(t [6]float64) string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, " ")
}
