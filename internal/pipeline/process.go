package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/census"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/config"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/db"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/ingest"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/landuse"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/metrics"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/network"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/raster"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// ProcessOptions selects which processing stages run. Zero-value
// options run nothing; the process command maps each flag here.
type ProcessOptions struct {
	LoadVectors     bool
	IngestMinimum   bool // boundary, manzanas and microdata only
	UnifyUsoSuelo   bool
	JoinCenso       bool
	DEMDerivatives  bool
	NDVI            bool
	JoinUsoSuelo    bool
	NetworkMetrics  bool
	Metrics         bool
	IngestProcessed bool

	CensoKey     string // explicit join key override
	SpatialIndex bool
}

// vectorRelations maps raw artifact files to their PostGIS relations.
var vectorRelations = []struct {
	file  string
	table string
}{
	{"comuna_boundaries_oficial.geojson", "comuna_boundaries_oficial"},
	{"osm_boundary.geojson", "comuna_boundaries_oficial"},
	{"manzanas_censales.geojson", "manzanas_censales"},
	{"osm_buildings.geojson", "osm_buildings"},
	{"osm_amenities.geojson", "osm_amenities"},
	{"osm_network_edges.geojson", "osm_network_edges"},
	{"uso_suelo_minvu.geojson", "uso_suelo_minvu"},
}

// Processor runs the derivation and loading stages over the artifacts
// a download run produced.
type Processor struct {
	cfg  *config.Config
	pool db.Pool
	log  *zap.Logger
}

func NewProcessor(cfg *config.Config, pool db.Pool) *Processor {
	return &Processor{
		cfg:  cfg,
		pool: pool,
		log:  zap.L().Named("process"),
	}
}

// Run executes the selected stages in dependency order. A failing
// stage is recorded and later stages still run; only schema setup is
// fatal.
func (p *Processor) Run(ctx context.Context, opts ProcessOptions) (*Summary, error) {
	summary := NewSummary("")
	p.log.Info("process run starting", zap.String("run_id", summary.RunID))

	if err := db.EnsureSchemas(ctx, p.pool, p.cfg.Store.Schema, p.cfg.Store.ProcessedSchema); err != nil {
		return summary, err
	}
	if err := os.MkdirAll(p.cfg.Data.ProcessedDir, 0o755); err != nil {
		return summary, eris.Wrapf(err, "pipeline: create %s", p.cfg.Data.ProcessedDir)
	}

	stage := func(name string, enabled bool, fn func(context.Context) ([]string, error)) {
		if !enabled {
			return
		}
		artifacts, err := fn(ctx)
		switch {
		case err != nil:
			p.log.Warn("stage failed", zap.String("stage", name), zap.Error(err))
			summary.Add(StepResult{Name: name, Status: StatusFailed, Err: err})
		case len(artifacts) == 0:
			summary.Add(StepResult{Name: name, Status: StatusSkipped})
		default:
			summary.Add(StepResult{Name: name, Status: StatusOK, Artifacts: artifacts})
		}
	}

	stage("load-vectors", opts.LoadVectors || opts.IngestMinimum, func(ctx context.Context) ([]string, error) {
		return p.loadVectors(ctx, opts)
	})
	stage("unify-uso-suelo", opts.UnifyUsoSuelo, func(ctx context.Context) ([]string, error) {
		return p.unifyUsoSuelo(ctx, opts)
	})
	stage("join-censo", opts.JoinCenso, func(ctx context.Context) ([]string, error) {
		return p.joinCenso(ctx, opts, summary)
	})
	stage("dem-derivatives", opts.DEMDerivatives, p.demDerivatives)
	stage("ndvi", opts.NDVI, p.ndvi)
	stage("join-uso-suelo", opts.JoinUsoSuelo, p.joinUsoSuelo)
	stage("network-metrics", opts.NetworkMetrics, func(ctx context.Context) ([]string, error) {
		return p.networkMetrics(ctx, opts)
	})
	stage("metrics", opts.Metrics, p.buildMetrics)
	stage("ingest-processed", opts.IngestProcessed, p.ingestProcessed)

	p.log.Info("process run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("failed", summary.Failed()),
	)
	return summary, nil
}

// storageSRID is the CRS every vector relation is stored in. Sources
// arriving in another CRS (UTM shapefiles, mostly) are transformed at
// ingest; metric measures transform on read instead.
const storageSRID = 4326

func vectorOpts(opts ProcessOptions) ingest.VectorOptions {
	return ingest.VectorOptions{
		TargetSRID:   storageSRID,
		SpatialIndex: opts.SpatialIndex,
	}
}

// minimumRelations is the subset loaded by --ingest-minimum: the
// boundary and the census manzanas, enough for the censo join.
var minimumRelations = map[string]bool{
	"comuna_boundaries_oficial": true,
	"manzanas_censales":         true,
}

func (p *Processor) loadVectors(ctx context.Context, opts ProcessOptions) ([]string, error) {
	minimumOnly := opts.IngestMinimum && !opts.LoadVectors
	var loaded []string
	for _, rel := range vectorRelations {
		if minimumOnly && !minimumRelations[rel.table] {
			continue
		}
		path := filepath.Join(p.cfg.Data.RawDir, rel.file)
		if !fileNonEmpty(path) {
			continue
		}
		layer, err := vector.ReadGeoJSON(path)
		if err != nil {
			return loaded, err
		}
		if _, err := ingest.IngestLayer(ctx, p.pool, p.cfg.Store.Schema, rel.table, layer, vectorOpts(opts)); err != nil {
			return loaded, err
		}
		loaded = append(loaded, rel.table)
	}

	microCSV := filepath.Join(p.cfg.Data.RawDir, "censo_microdatos.csv")
	if fileNonEmpty(microCSV) {
		table, err := census.ReadMicrodata(ctx, microCSV)
		if err != nil {
			return loaded, err
		}
		if _, err := ingest.IngestTable(ctx, p.pool, p.cfg.Store.Schema, "censo_microdatos", table); err != nil {
			return loaded, err
		}
		loaded = append(loaded, "censo_microdatos")
	}
	return loaded, nil
}

func (p *Processor) unifyUsoSuelo(ctx context.Context, opts ProcessOptions) ([]string, error) {
	root := filepath.Join(p.cfg.Data.RawDir, "uso_suelo_minvu")
	if !dirNonEmpty(root) {
		return nil, nil
	}
	layer, err := landuse.Unify(root)
	if err != nil {
		return nil, err
	}
	if len(layer.Features) == 0 {
		return nil, nil
	}

	out := filepath.Join(p.cfg.Data.ProcessedDir, "uso_suelo_unificado.geojson")
	if err := vector.WriteGeoJSON(out, layer); err != nil {
		return nil, err
	}
	if _, err := ingest.IngestLayer(ctx, p.pool, p.cfg.Store.Schema, "uso_suelo_unificado", layer, vectorOpts(opts)); err != nil {
		return nil, err
	}
	return []string{out}, nil
}

// joinCenso left-joins the microdata onto the manzana polygons,
// writes the attributed layer plus the orphan audit, and loads the
// result for the SQL stages.
func (p *Processor) joinCenso(ctx context.Context, opts ProcessOptions, summary *Summary) ([]string, error) {
	manzanasPath := filepath.Join(p.cfg.Data.RawDir, "manzanas_censales.geojson")
	microPath := filepath.Join(p.cfg.Data.RawDir, "censo_microdatos.csv")
	if !fileNonEmpty(manzanasPath) || !fileNonEmpty(microPath) {
		return nil, nil
	}

	layer, err := vector.ReadGeoJSON(manzanasPath)
	if err != nil {
		return nil, err
	}
	table, err := census.ReadMicrodata(ctx, microPath)
	if err != nil {
		return nil, err
	}

	key, err := census.ResolveKey(opts.CensoKey, propColumns(layer), table.Columns)
	if err != nil {
		return nil, err
	}
	p.log.Info("census join key resolved",
		zap.String("geom_column", key.GeomColumn),
		zap.String("csv_column", key.CSVColumn),
	)

	result := census.Join(layer, table, key)
	summary.SetOrphans(len(result.Orphans))
	p.log.Info("census join done",
		zap.Int("matched", result.Matched),
		zap.Int("unmatched", result.Unmatched),
		zap.Int("orphans", len(result.Orphans)),
	)

	outGeo := filepath.Join(p.cfg.Data.ProcessedDir, "manzanas_atributos.geojson")
	if err := vector.WriteGeoJSON(outGeo, result.Layer); err != nil {
		return nil, err
	}
	artifacts := []string{outGeo}

	if len(result.Orphans) > 0 {
		orphanCSV := filepath.Join(p.cfg.Data.ProcessedDir, "censo_orphans.csv")
		if err := census.WriteOrphans(orphanCSV, table.Columns, result.Orphans); err != nil {
			return artifacts, err
		}
		artifacts = append(artifacts, orphanCSV)
	}

	if _, err := ingest.IngestLayer(ctx, p.pool, p.cfg.Store.Schema, "manzanas_atributos", result.Layer, vectorOpts(opts)); err != nil {
		return artifacts, err
	}
	return artifacts, nil
}

// demDerivatives computes slope and aspect from the metric DEM.
func (p *Processor) demDerivatives(ctx context.Context) ([]string, error) {
	dem := p.findDEM()
	if dem == "" {
		return nil, nil
	}

	grid, err := raster.ReadGrid(dem)
	if err != nil {
		return nil, err
	}

	var artifacts []string
	outputs := []struct {
		name string
		fn   func(*raster.Grid) (*raster.Grid, error)
	}{
		{"slope.tif", raster.Slope},
		{"aspect.tif", raster.Aspect},
	}
	for _, out := range outputs {
		path := filepath.Join(p.cfg.Data.ProcessedDir, out.name)
		if fileNonEmpty(path) {
			artifacts = append(artifacts, path)
			continue
		}
		derived, err := out.fn(grid)
		if err != nil {
			return artifacts, err
		}
		if err := raster.WriteGrid(path, derived, p.cfg.Raster.TargetSRID); err != nil {
			return artifacts, err
		}
		artifacts = append(artifacts, path)
	}
	return artifacts, nil
}

// findDEM prefers the SRTM product and falls back to the Copernicus
// one, both in the metric CRS.
func (p *Processor) findDEM() string {
	srid := strconv.Itoa(p.cfg.Raster.TargetSRID)
	for _, name := range []string{"srtm_dem_" + srid + ".tif", "copernicus_dem_" + srid + ".tif"} {
		path := filepath.Join(p.cfg.Data.RawDir, name)
		if fileNonEmpty(path) {
			return path
		}
	}
	return ""
}

// ndvi derives the vegetation index from the discovered band pair.
// The native pair shares one scene grid, so alignment holds there; the
// result is then warped to WGS84 for zonal statistics and to the
// metric CRS for the catalog.
func (p *Processor) ndvi(ctx context.Context) ([]string, error) {
	pair, err := raster.DiscoverBandPair(p.cfg.Data.RawDir)
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, nil
	}

	native := filepath.Join(p.cfg.Data.ProcessedDir, "ndvi.tif")
	if !fileNonEmpty(native) {
		red, err := raster.ReadGrid(pair.Red)
		if err != nil {
			return nil, err
		}
		nir, err := raster.ReadGrid(pair.NIR)
		if err != nil {
			return nil, err
		}
		grid, err := raster.NDVI(red, nir)
		if err != nil {
			return nil, err
		}

		info, err := raster.Info(pair.Red, "raw")
		if err != nil {
			return nil, err
		}
		if err := raster.WriteGrid(native, grid, epsgFrom(info.CRS)); err != nil {
			return nil, err
		}
	}
	artifacts := []string{native}

	warps := []struct {
		name string
		srid int
	}{
		{"ndvi_4326.tif", 4326},
		{"ndvi_" + strconv.Itoa(p.cfg.Raster.TargetSRID) + ".tif", p.cfg.Raster.TargetSRID},
	}
	for _, w := range warps {
		dst := filepath.Join(p.cfg.Data.ProcessedDir, w.name)
		if err := raster.WarpClip(ctx, native, dst, raster.WarpOptions{
			TargetSRID: w.srid,
			NoData:     p.cfg.Raster.NoData,
		}); err != nil {
			return artifacts, err
		}
		artifacts = append(artifacts, dst)
	}
	return artifacts, nil
}

// landUseRelation picks the zoning relation: the unified layer when
// the unification stage produced one, otherwise the raw MINVU load
// (the single-file --minvu-local path never builds a unified layer).
func (p *Processor) landUseRelation() string {
	if fileNonEmpty(filepath.Join(p.cfg.Data.ProcessedDir, "uso_suelo_unificado.geojson")) {
		return "uso_suelo_unificado"
	}
	return "uso_suelo_minvu"
}

func (p *Processor) joinUsoSuelo(ctx context.Context) ([]string, error) {
	stats, err := metrics.ZoningStats(ctx, p.pool, p.cfg.Store.Schema, p.landUseRelation(), p.cfg.Raster.TargetSRID)
	if err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return nil, nil
	}
	if err := metrics.EnsureZoningTable(ctx, p.pool, p.cfg.Store.ProcessedSchema); err != nil {
		return nil, err
	}
	n, err := metrics.UpsertZoning(ctx, p.pool, p.cfg.Store.ProcessedSchema, stats)
	if err != nil {
		return nil, err
	}
	return []string{p.cfg.Store.ProcessedSchema + ".manzanas_uso_suelo (" + strconv.FormatInt(n, 10) + " rows)"}, nil
}

func (p *Processor) networkMetrics(ctx context.Context, opts ProcessOptions) ([]string, error) {
	edgesPath := filepath.Join(p.cfg.Data.RawDir, "osm_network_edges.geojson")
	if !fileNonEmpty(edgesPath) {
		return nil, nil
	}
	edges, err := vector.ReadGeoJSON(edgesPath)
	if err != nil {
		return nil, err
	}

	graph := network.BuildGraph(edges)
	if graph.NodeCount() == 0 {
		return nil, nil
	}
	nodeMetrics := graph.Centrality()
	nodesLayer := network.NodesLayer(nodeMetrics)

	out := filepath.Join(p.cfg.Data.ProcessedDir, "network_nodes_metrics.geojson")
	if err := vector.WriteGeoJSON(out, nodesLayer); err != nil {
		return nil, err
	}
	artifacts := []string{out}

	if _, err := ingest.IngestLayer(ctx, p.pool, p.cfg.Store.Schema, "network_nodes_metrics", nodesLayer, vectorOpts(opts)); err != nil {
		return artifacts, err
	}

	var zones map[string]network.ZoneMetrics
	manzanasPath := filepath.Join(p.cfg.Data.ProcessedDir, "manzanas_atributos.geojson")
	if fileNonEmpty(manzanasPath) {
		manzanas, err := vector.ReadGeoJSON(manzanasPath)
		if err != nil {
			return artifacts, err
		}
		zones = network.AggregateByZone(nodeMetrics, manzanas, "manzent")
	}

	edgeStats, err := network.EdgeLengths(ctx, p.pool, p.cfg.Store.Schema, p.cfg.Raster.TargetSRID)
	if err != nil {
		p.log.Warn("edge length aggregation unavailable", zap.Error(err))
		edgeStats = nil
	}

	if err := network.EnsureMetricsTable(ctx, p.pool, p.cfg.Store.ProcessedSchema); err != nil {
		return artifacts, err
	}
	if _, err := network.UpsertZoneMetrics(ctx, p.pool, p.cfg.Store.ProcessedSchema, zones, edgeStats); err != nil {
		return artifacts, err
	}
	return artifacts, nil
}

// buildMetrics computes the per-manzana indicator table. Optional
// columns stay nil when their upstream product is absent.
func (p *Processor) buildMetrics(ctx context.Context) ([]string, error) {
	rows, err := metrics.BaseStats(ctx, p.pool, p.cfg.Store.Schema, p.cfg.Raster.TargetSRID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ndviPath := filepath.Join(p.cfg.Data.ProcessedDir, "ndvi_4326.tif")
	manzanasPath := filepath.Join(p.cfg.Data.ProcessedDir, "manzanas_atributos.geojson")
	if fileNonEmpty(ndviPath) && fileNonEmpty(manzanasPath) {
		grid, err := raster.ReadGrid(ndviPath)
		if err != nil {
			return nil, err
		}
		manzanas, err := vector.ReadGeoJSON(manzanasPath)
		if err != nil {
			return nil, err
		}
		metrics.ApplyNDVI(rows, grid, manzanas, "manzent")
	}

	if stats, err := metrics.ZoningStats(ctx, p.pool, p.cfg.Store.Schema, p.landUseRelation(), p.cfg.Raster.TargetSRID); err == nil && len(stats) > 0 {
		metrics.ApplyZoning(rows, stats)
	} else if err != nil {
		p.log.Warn("zoning stats unavailable", zap.Error(err))
	}

	// network zone aggregates come from the persisted relation when the
	// network stage ran in an earlier invocation
	if zones, err := p.loadZoneMetrics(ctx); err == nil && len(zones) > 0 {
		metrics.ApplyNetwork(rows, zones)
	} else if err != nil {
		p.log.Warn("network metrics unavailable", zap.Error(err))
	}

	outCSV := filepath.Join(p.cfg.Data.ProcessedDir, "metrics_manzanas.csv")
	if err := metrics.WriteCSV(outCSV, rows); err != nil {
		return nil, err
	}

	if err := metrics.EnsureTable(ctx, p.pool, p.cfg.Store.ProcessedSchema); err != nil {
		return nil, err
	}
	if _, err := metrics.Upsert(ctx, p.pool, p.cfg.Store.ProcessedSchema, rows); err != nil {
		return nil, err
	}
	return []string{outCSV}, nil
}

func (p *Processor) loadZoneMetrics(ctx context.Context) (map[string]network.ZoneMetrics, error) {
	sql := `SELECT manzent, node_count, degree_mean, betweenness_mean
		FROM ` + db.SanitizeIdent(p.cfg.Store.ProcessedSchema) + `.network_metrics
		WHERE node_count IS NOT NULL`
	rows, err := p.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]network.ZoneMetrics)
	for rows.Next() {
		var z network.ZoneMetrics
		if err := rows.Scan(&z.Key, &z.NodeCount, &z.DegreeMean, &z.BetweennessMean); err != nil {
			return nil, eris.Wrap(err, "pipeline: scan network metrics row")
		}
		out[z.Key] = z
	}
	return out, rows.Err()
}

// ingestProcessed refreshes the raster catalog from every GeoTIFF on
// disk. Re-ingestion is a metadata refresh, keyed by filename.
func (p *Processor) ingestProcessed(ctx context.Context) ([]string, error) {
	if err := ingest.EnsureCatalog(ctx, p.pool, p.cfg.Store.ProcessedSchema); err != nil {
		return nil, err
	}

	var cataloged []string
	for _, dir := range []string{p.cfg.Data.RawDir, p.cfg.Data.ProcessedDir} {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".tif") {
				return err
			}
			info, infoErr := raster.Info(path, sourceGroup(d.Name()))
			if infoErr != nil {
				p.log.Warn("unreadable raster skipped", zap.String("path", path), zap.Error(infoErr))
				return nil
			}
			rel, relErr := filepath.Rel(filepath.Dir(dir), path)
			if relErr != nil {
				rel = d.Name()
			}
			if upErr := ingest.UpsertAsset(ctx, p.pool, p.cfg.Store.ProcessedSchema, filepath.ToSlash(rel), info); upErr != nil {
				return upErr
			}
			cataloged = append(cataloged, info.Filename)
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return cataloged, eris.Wrapf(err, "pipeline: catalog walk %s", dir)
		}
	}
	return cataloged, nil
}

// sourceGroup tags a raster as acquired or pipeline-derived.
func sourceGroup(name string) string {
	base := strings.ToLower(name)
	switch {
	case strings.HasPrefix(base, "ndvi"), strings.HasPrefix(base, "slope"), strings.HasPrefix(base, "aspect"):
		return "derived"
	default:
		return "raw"
	}
}

// propColumns collects the union of attribute names across the layer.
func propColumns(layer *vector.Layer) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, f := range layer.Features {
		for k := range f.Props {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

// epsgFrom parses "EPSG:nnnn"; anything else falls back to WGS84.
func epsgFrom(crs string) int {
	if rest, ok := strings.CutPrefix(crs, "EPSG:"); ok {
		if code, err := strconv.Atoi(rest); err == nil {
			return code
		}
	}
	return 4326
}
