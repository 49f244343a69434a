package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/config"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/db"
)

// CatalogEntry is one raster_catalog row as the status command shows it.
type CatalogEntry struct {
	Filename     string
	CRS          string
	Width        int
	Height       int
	BandCount    int
	SourceGroup  string
	RegisteredAt time.Time
}

// StatusReport is what `status` prints: the raster inventory plus the
// census join orphan count from the last process run.
type StatusReport struct {
	Catalog []CatalogEntry
	Orphans int
}

// Status queries the raster catalog and counts orphan rows on disk.
func Status(ctx context.Context, pool db.Pool, cfg *config.Config) (*StatusReport, error) {
	sql := fmt.Sprintf(`SELECT filename, crs, width, height, band_count, source_group, registered_at
		FROM %s.raster_catalog ORDER BY filename`, db.SanitizeIdent(cfg.Store.ProcessedSchema))

	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: query raster catalog")
	}
	defer rows.Close()

	report := &StatusReport{}
	for rows.Next() {
		var e CatalogEntry
		if err := rows.Scan(&e.Filename, &e.CRS, &e.Width, &e.Height, &e.BandCount, &e.SourceGroup, &e.RegisteredAt); err != nil {
			return nil, eris.Wrap(err, "pipeline: scan catalog row")
		}
		report.Catalog = append(report.Catalog, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: iterate catalog rows")
	}

	report.Orphans = countOrphans(filepath.Join(cfg.Data.ProcessedDir, "censo_orphans.csv"))
	return report, nil
}

// countOrphans counts data lines of the orphan audit CSV. Zero when
// the file is absent.
func countOrphans(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close() //nolint:errcheck

	n := -1 // header
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			n++
		}
	}
	if n < 0 {
		return 0
	}
	return n
}

// Render formats the report the way the status command prints it.
func (r *StatusReport) Render() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "FILENAME\tCRS\tSIZE\tBANDS\tGROUP\tREGISTERED\n")
	for _, e := range r.Catalog {
		fmt.Fprintf(w, "%s\t%s\t%dx%d\t%d\t%s\t%s\n",
			e.Filename, e.CRS, e.Width, e.Height, e.BandCount, e.SourceGroup,
			e.RegisteredAt.Format("2006-01-02 15:04"))
	}
	w.Flush() //nolint:errcheck
	fmt.Fprintf(&b, "\nrasters: %d\tcenso orphans: %d\n", len(r.Catalog), r.Orphans)
	return b.String()
}
