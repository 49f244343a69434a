package metrics

import (
	"context"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/db"
)

// EnsureZoningTable creates the per-manzana zoning aggregate relation.
func EnsureZoningTable(ctx context.Context, pool db.Pool, schema string) error {
	sql := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.manzanas_uso_suelo (
		manzent TEXT PRIMARY KEY,
		area_zonas DOUBLE PRECISION,
		zonas_count INTEGER,
		updated_at TIMESTAMPTZ DEFAULT now()
	)`, db.SanitizeIdent(schema))
	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "metrics: create %s.manzanas_uso_suelo", schema)
	}
	return nil
}

// UpsertZoning persists the zoning intersect aggregates keyed by
// manzent. Ordered insert keeps reruns deterministic in the logs.
func UpsertZoning(ctx context.Context, pool db.Pool, schema string, stats map[string]ZoningStat) (int64, error) {
	if len(stats) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]any, 0, len(keys))
	for _, k := range keys {
		s := stats[k]
		rows = append(rows, []any{k, s.AreaZonas, s.ZonasCount})
	}

	return db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        schema + ".manzanas_uso_suelo",
		Columns:      []string{"manzent", "area_zonas", "zonas_count"},
		ConflictKeys: []string{"manzent"},
	}, rows)
}
