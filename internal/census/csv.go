package census

import (
	"context"
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/fetcher"
)

// Table is an in-memory microdata CSV: all values kept as strings, the
// way the INE distributes them.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// ReadMicrodata loads a semicolon-separated INE CSV. The files ship
// Latin-1 encoded, so bytes pass through a charmap decoder before
// parsing.
func ReadMicrodata(ctx context.Context, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "census: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := charmap.ISO8859_1.NewDecoder().Reader(f)

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, reader, fetcher.CSVOptions{
		Delimiter: ';',
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	t := &Table{}
	for row := range rowCh {
		if t.Columns == nil {
			t.Columns = <-headerCh
		}
		rec := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		t.Rows = append(t.Rows, rec)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrapf(err, "census: parse %s", path)
	}
	if t.Columns == nil {
		select {
		case t.Columns = <-headerCh:
		default:
		}
	}
	return t, nil
}

// Filter keeps the rows whose column equals value.
func (t *Table) Filter(column, value string) *Table {
	out := &Table{Columns: t.Columns}
	for _, row := range t.Rows {
		if row[column] == value {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// WriteCSV persists the table semicolon-separated, UTF-8. Downstream
// stages read this back instead of the Latin-1 original.
func (t *Table) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "census: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	w.Comma = ';'
	if err := w.Write(t.Columns); err != nil {
		return eris.Wrapf(err, "census: write header to %s", path)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return eris.Wrapf(err, "census: write row to %s", path)
		}
	}
	w.Flush()
	return eris.Wrapf(w.Error(), "census: flush %s", path)
}
