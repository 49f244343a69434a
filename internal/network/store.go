package network

import (
	"context"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/db"
)

// EnsureMetricsTable creates the per-manzana network relation.
func EnsureMetricsTable(ctx context.Context, pool db.Pool, schema string) error {
	sql := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.network_metrics (
		manzent TEXT PRIMARY KEY,
		node_count INTEGER,
		degree_mean DOUBLE PRECISION,
		betweenness_mean DOUBLE PRECISION,
		edge_length_m DOUBLE PRECISION,
		road_density_m_per_km2 DOUBLE PRECISION,
		updated_at TIMESTAMPTZ DEFAULT now()
	)`, db.SanitizeIdent(schema))
	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "network: create %s.network_metrics", schema)
	}
	return nil
}

// EdgeStat carries the street length inside one manzana and the
// manzana's own area, both measured in the metric CRS.
type EdgeStat struct {
	LengthM float64
	AreaM2  float64
}

// RoadDensity is the street length per unit area, in meters per
// square kilometer. Zero-area polygons yield zero.
func (e EdgeStat) RoadDensity() float64 {
	if e.AreaM2 <= 0 {
		return 0
	}
	return e.LengthM / (e.AreaM2 / 1e6)
}

// EdgeLengths sums street length per manzana by intersecting the road
// edge relation with the manzana polygons, measured in the metric CRS.
// The manzana area rides along so callers can derive road density.
func EdgeLengths(ctx context.Context, pool db.Pool, schema string, srid int) (map[string]EdgeStat, error) {
	sql := fmt.Sprintf(`
		SELECT m.props->>'manzent' AS manzent,
		       COALESCE(SUM(ST_Length(ST_Transform(ST_Intersection(e.geom, m.geom), $1))), 0) AS edge_length_m,
		       ST_Area(ST_Transform(m.geom, $1)) AS area_m2
		FROM %[1]s.manzanas_atributos m
		JOIN %[1]s.osm_network_edges e ON ST_Intersects(e.geom, m.geom)
		WHERE m.props->>'manzent' IS NOT NULL
		GROUP BY 1, m.geom`, db.SanitizeIdent(schema))

	rows, err := pool.Query(ctx, sql, srid)
	if err != nil {
		return nil, eris.Wrap(err, "network: edge length query")
	}
	defer rows.Close()

	out := make(map[string]EdgeStat)
	for rows.Next() {
		var key string
		var stat EdgeStat
		if err := rows.Scan(&key, &stat.LengthM, &stat.AreaM2); err != nil {
			return nil, eris.Wrap(err, "network: scan edge length row")
		}
		out[key] = stat
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "network: iterate edge lengths")
	}
	return out, nil
}

// UpsertZoneMetrics persists per-manzana centrality aggregates plus
// street length and road density. Zones appearing only in edgeStats
// still get a row; their centrality columns stay NULL.
func UpsertZoneMetrics(ctx context.Context, pool db.Pool, schema string, zones map[string]ZoneMetrics, edgeStats map[string]EdgeStat) (int64, error) {
	keys := make(map[string]bool, len(zones)+len(edgeStats))
	for k := range zones {
		keys[k] = true
	}
	for k := range edgeStats {
		keys[k] = true
	}
	if len(keys) == 0 {
		return 0, nil
	}

	ordered := make([]string, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	rows := make([][]any, 0, len(ordered))
	for _, k := range ordered {
		var nodeCount, degreeMean, betweennessMean, edgeLen, density any
		if z, ok := zones[k]; ok {
			nodeCount = z.NodeCount
			degreeMean = z.DegreeMean
			betweennessMean = z.BetweennessMean
		}
		if e, ok := edgeStats[k]; ok {
			edgeLen = e.LengthM
			density = e.RoadDensity()
		}
		rows = append(rows, []any{k, nodeCount, degreeMean, betweennessMean, edgeLen, density})
	}

	return db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        schema + ".network_metrics",
		Columns:      []string{"manzent", "node_count", "degree_mean", "betweenness_mean", "edge_length_m", "road_density_m_per_km2"},
		ConflictKeys: []string{"manzent"},
	}, rows)
}
