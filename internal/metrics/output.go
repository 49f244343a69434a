package metrics

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/db"
)

var columns = []string{
	"manzent", "area_m2", "building_count", "built_area_m2", "amenity_count",
	"ndvi_mean", "area_zonas", "zonas_count",
	"node_count", "degree_mean", "betweenness_mean",
}

// WriteCSV writes metrics_manzanas.csv. Optional columns render as
// empty cells when nil.
func WriteCSV(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "metrics: create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "metrics: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return eris.Wrap(err, "metrics: write csv header")
	}
	for _, r := range rows {
		rec := []string{
			r.Manzent,
			formatFloat(r.AreaM2),
			strconv.Itoa(r.BuildingCount),
			formatFloat(r.BuiltAreaM2),
			strconv.Itoa(r.AmenityCount),
			optFloat(r.NDVIMean),
			optFloat(r.AreaZonas),
			optInt(r.ZonasCount),
			optInt(r.NodeCount),
			optFloat(r.DegreeMean),
			optFloat(r.BetweennessMean),
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrap(err, "metrics: write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "metrics: flush csv")
}

// Upsert loads the rows into <schema>.metrics_manzanas keyed by
// manzent, so reruns refresh instead of duplicating.
func Upsert(ctx context.Context, pool db.Pool, schema string, rows []Row) (int64, error) {
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		data = append(data, []any{
			r.Manzent, r.AreaM2, r.BuildingCount, r.BuiltAreaM2, r.AmenityCount,
			floatPtr(r.NDVIMean), floatPtr(r.AreaZonas), intPtr(r.ZonasCount),
			intPtr(r.NodeCount), floatPtr(r.DegreeMean), floatPtr(r.BetweennessMean),
		})
	}
	return db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        schema + ".metrics_manzanas",
		Columns:      columns,
		ConflictKeys: []string{"manzent"},
	}, data)
}

// EnsureTable creates the metrics relation when it does not exist yet.
func EnsureTable(ctx context.Context, pool db.Pool, schema string) error {
	sql := `CREATE TABLE IF NOT EXISTS ` + db.SanitizeIdent(schema) + `.metrics_manzanas (
		manzent TEXT PRIMARY KEY,
		area_m2 DOUBLE PRECISION,
		building_count INTEGER,
		built_area_m2 DOUBLE PRECISION,
		amenity_count INTEGER,
		ndvi_mean DOUBLE PRECISION,
		area_zonas DOUBLE PRECISION,
		zonas_count INTEGER,
		node_count INTEGER,
		degree_mean DOUBLE PRECISION,
		betweenness_mean DOUBLE PRECISION,
		updated_at TIMESTAMPTZ DEFAULT now()
	)`
	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "metrics: ensure %s.metrics_manzanas", schema)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// floatPtr and intPtr widen typed nils to untyped SQL NULLs.
func floatPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
