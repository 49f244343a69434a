// Package ingest loads pipeline artifacts into PostGIS: vector layers
// as (props jsonb, geom) relations, microdata as text tables, and
// raster metadata into the asset catalog.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/db"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// VectorOptions controls how a layer lands in PostGIS.
type VectorOptions struct {
	// TargetSRID reprojects geometries after load when it differs from
	// the layer SRID. Zero keeps the source CRS.
	TargetSRID int
	// SpatialIndex creates a GIST index on geom after load.
	SpatialIndex bool
}

// IngestLayer replaces <schema>.<table> with the layer's features.
// Attributes travel as one jsonb column so heterogeneous source
// schemas (census DBFs, OSM tags, zoning plans) share a single
// relation shape. Geometry goes over the wire as EWKB.
func IngestLayer(ctx context.Context, pool db.Pool, schema, table string, layer *vector.Layer, opts VectorOptions) (int64, error) {
	qualified := db.SanitizeIdent(schema) + "." + db.SanitizeIdent(table)

	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		props JSONB NOT NULL DEFAULT '{}'::jsonb,
		geom GEOMETRY
	)`, qualified)
	if _, err := pool.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "ingest: create %s.%s", schema, table)
	}
	if _, err := pool.Exec(ctx, "TRUNCATE "+qualified); err != nil {
		return 0, eris.Wrapf(err, "ingest: truncate %s.%s", schema, table)
	}

	rows := make([][]any, 0, len(layer.Features))
	for _, f := range layer.Features {
		props, err := json.Marshal(f.Props)
		if err != nil {
			return 0, eris.Wrap(err, "ingest: marshal props")
		}
		ew, err := vector.EncodeEWKB(f.Geom)
		if err != nil {
			return 0, eris.Wrap(err, "ingest: encode geometry")
		}
		rows = append(rows, []any{string(props), ew})
	}

	n, err := db.CopyFromSchema(ctx, pool, schema, table, []string{"props", "geom"}, rows)
	if err != nil {
		return 0, err
	}

	if opts.TargetSRID > 0 && opts.TargetSRID != layer.SRID {
		transformSQL := fmt.Sprintf("UPDATE %s SET geom = ST_Transform(geom, $1)", qualified)
		if _, err := pool.Exec(ctx, transformSQL, opts.TargetSRID); err != nil {
			return 0, eris.Wrapf(err, "ingest: transform %s.%s to %d", schema, table, opts.TargetSRID)
		}
	}
	if opts.SpatialIndex {
		indexSQL := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (geom)",
			db.SanitizeIdent("idx_"+table+"_geom"), qualified)
		if _, err := pool.Exec(ctx, indexSQL); err != nil {
			return 0, eris.Wrapf(err, "ingest: index %s.%s", schema, table)
		}
	}

	zap.L().Info("layer ingested",
		zap.String("relation", schema+"."+table),
		zap.Int64("rows", n),
	)
	return n, nil
}
