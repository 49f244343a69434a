package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/census"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/db"
)

// IngestTable replaces <schema>.<table> with a microdata table. All
// columns are TEXT; the INE ships untyped CSVs and typing guesses
// belong in queries, not ingestion.
func IngestTable(ctx context.Context, pool db.Pool, schema, table string, t *census.Table) (int64, error) {
	if len(t.Columns) == 0 {
		return 0, eris.Errorf("ingest: %s has no columns", table)
	}

	cols := make([]string, 0, len(t.Columns))
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.ToLower(strings.TrimSpace(c))
		cols = append(cols, name)
		defs = append(defs, db.SanitizeIdent(name)+" TEXT")
	}

	qualified := db.SanitizeIdent(schema) + "." + db.SanitizeIdent(table)
	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", qualified, strings.Join(defs, ", "))
	if _, err := pool.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "ingest: create %s.%s", schema, table)
	}
	if _, err := pool.Exec(ctx, "TRUNCATE "+qualified); err != nil {
		return 0, eris.Wrapf(err, "ingest: truncate %s.%s", schema, table)
	}

	rows := make([][]any, 0, len(t.Rows))
	for _, rec := range t.Rows {
		row := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			row[i] = rec[c]
		}
		rows = append(rows, row)
	}

	n, err := db.CopyFromSchema(ctx, pool, schema, table, cols, rows)
	if err != nil {
		return 0, err
	}
	zap.L().Info("table ingested",
		zap.String("relation", schema+"."+table),
		zap.Int64("rows", n),
	)
	return n, nil
}
