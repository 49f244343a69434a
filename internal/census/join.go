package census

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// OrphanRecord is a microdata row whose key matched no manzana
// geometry. Orphans are never dropped silently; they go to an audit
// CSV and the run summary.
type OrphanRecord struct {
	Key string
	Row map[string]string
}

// JoinResult carries the enriched layer plus join accounting.
type JoinResult struct {
	Layer     *vector.Layer
	Matched   int
	Unmatched int
	Orphans   []OrphanRecord
}

// Join left-joins microdata rows onto manzana features by the resolved
// key. Every feature survives; features without a microdata row keep
// their original attributes only. Microdata columns never overwrite an
// existing feature attribute.
func Join(layer *vector.Layer, t *Table, key KeyMatch) *JoinResult {
	byKey := make(map[string][]map[string]string, len(t.Rows))
	for _, row := range t.Rows {
		k := strings.TrimSpace(row[key.CSVColumn])
		if k == "" {
			continue
		}
		byKey[k] = append(byKey[k], row)
	}
	consumed := make(map[string]bool, len(byKey))

	out := &vector.Layer{Name: "manzanas_atributos", SRID: layer.SRID}
	res := &JoinResult{Layer: out}

	for _, f := range layer.Features {
		props := make(map[string]any, len(f.Props))
		for k, v := range f.Props {
			props[k] = v
		}
		k := strings.TrimSpace(f.PropString(key.GeomColumn))
		if rows, ok := byKey[k]; ok && k != "" {
			consumed[k] = true
			res.Matched++
			for col, v := range rows[0] {
				if _, exists := props[col]; !exists {
					props[col] = v
				}
			}
		} else {
			res.Unmatched++
		}
		// The lowercase alias downstream SQL joins against.
		if _, exists := props["manzent"]; !exists && k != "" {
			props["manzent"] = k
		}
		out.Features = append(out.Features, vector.Feature{Props: props, Geom: f.Geom})
	}

	for k, rows := range byKey {
		if consumed[k] {
			continue
		}
		for _, row := range rows {
			res.Orphans = append(res.Orphans, OrphanRecord{Key: k, Row: row})
		}
	}
	sort.Slice(res.Orphans, func(i, j int) bool { return res.Orphans[i].Key < res.Orphans[j].Key })

	zap.L().Info("census join",
		zap.String("geom_key", key.GeomColumn),
		zap.String("csv_key", key.CSVColumn),
		zap.Int("matched", res.Matched),
		zap.Int("unmatched_features", res.Unmatched),
		zap.Int("orphans", len(res.Orphans)),
	)
	return res
}

// WriteOrphans writes the audit CSV: the key column first, then the
// microdata columns in table order.
func WriteOrphans(path string, columns []string, orphans []OrphanRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "census: create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "census: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	header := append([]string{"orphan_key"}, columns...)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "census: write orphan header")
	}
	for _, o := range orphans {
		rec := make([]string, 0, len(header))
		rec = append(rec, o.Key)
		for _, col := range columns {
			rec = append(rec, o.Row[col])
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrap(err, "census: write orphan row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "census: flush orphans")
}
