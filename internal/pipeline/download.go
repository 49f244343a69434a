package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/area"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/census"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/config"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/fetcher"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/landuse"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/osm"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/sentinel"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/srtm"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// DownloadOptions selects what one download run acquires.
type DownloadOptions struct {
	Comuna     string
	Sources    []string // empty or "all" means every source
	SkipWFS    bool
	MinvuLocal string
}

// Downloader wires the acquisition clients behind one Run call.
type Downloader struct {
	cfg      *config.Config
	http     fetcher.Fetcher
	mirrors  *fetcher.MirrorFetcher
	srtm     *srtm.Resolver
	sentinel *sentinel.Acquirer
	osm      *osm.Client
	manzanas *census.ManzanasClient
	log      *zap.Logger
}

// NewDownloader builds the full acquisition stack from configuration.
func NewDownloader(cfg *config.Config) *Downloader {
	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.Fetch.Retries + 1,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
	ftpFetcher := fetcher.NewFTPFetcher(fetcher.FTPOptions{
		Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
	})
	mirrors := fetcher.NewMirrorFetcher(httpFetcher, ftpFetcher)

	srtmResolver := srtm.NewResolver(mirrors, httpFetcher)
	srtmResolver.OpenTopoURL = cfg.Sources.OpenTopoURL
	srtmResolver.OpenTopoAPIKey = cfg.Sources.OpenTopoAPIKey
	srtmResolver.TargetSRID = cfg.Raster.TargetSRID
	srtmResolver.NoData = cfg.Raster.NoData

	stac := sentinel.NewClient(httpFetcher, cfg.Sources.STACURL, cfg.Sources.STACSignURL)
	sentinelAcq := sentinel.NewAcquirer(stac)
	sentinelAcq.MaxCloud = float64(cfg.Sources.MaxCloudPercent)
	sentinelAcq.TargetSRID = cfg.Raster.TargetSRID
	sentinelAcq.NoData = cfg.Raster.NoData

	return &Downloader{
		cfg:      cfg,
		http:     httpFetcher,
		mirrors:  mirrors,
		srtm:     srtmResolver,
		sentinel: sentinelAcq,
		osm:      osm.NewClient(httpFetcher, cfg.Sources.OverpassURL),
		manzanas: census.NewManzanasClient(httpFetcher, cfg.Sources.CensoManzanasURL),
		log:      zap.L().Named("download"),
	}
}

// Run resolves the comuna boundary and fans out over the selected
// sources. The boundary is the only fatal acquisition: every other
// source failure is recorded and the run continues.
func (d *Downloader) Run(ctx context.Context, opts DownloadOptions) (*Summary, error) {
	rawDir := d.cfg.Data.RawDir
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "pipeline: create %s", rawDir)
	}

	summary := NewSummary(opts.Comuna)
	d.log.Info("download run starting",
		zap.String("run_id", summary.RunID),
		zap.String("comuna", opts.Comuna),
		zap.Strings("sources", opts.Sources),
	)

	boundary, cutline, err := d.resolveBoundary(ctx, opts, rawDir)
	if err != nil {
		summary.Add(StepResult{Name: "boundary", Status: StatusFailed, Err: err})
		return summary, err
	}
	summary.Add(StepResult{
		Name:      "boundary",
		Status:    StatusOK,
		Artifacts: []string{cutline},
		Note:      "source=" + boundary.Source,
	})

	wanted := sourceSet(opts.Sources)
	bbox := boundary.BBox

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Download.MaxConcurrentSources)

	runSource := func(name string, fn func(context.Context) ([]string, error)) {
		if !wanted(name) {
			return
		}
		g.Go(func() error {
			artifacts, err := fn(gctx)
			switch {
			case err != nil:
				d.log.Warn("source failed", zap.String("source", name), zap.Error(err))
				summary.Add(StepResult{Name: name, Status: StatusFailed, Err: err})
			case len(artifacts) == 0:
				summary.Add(StepResult{Name: name, Status: StatusSkipped})
			default:
				summary.Add(StepResult{Name: name, Status: StatusOK, Artifacts: artifacts})
			}
			return nil // source failures never abort sibling sources
		})
	}

	runSource("srtm", func(ctx context.Context) ([]string, error) {
		return d.srtm.Resolve(ctx, bbox, cutline, rawDir)
	})
	runSource("sentinel2", func(ctx context.Context) ([]string, error) {
		return d.sentinel.Acquire(ctx, bbox, cutline, rawDir)
	})
	runSource("osm", func(ctx context.Context) ([]string, error) {
		return d.fetchOSM(ctx, bbox, rawDir)
	})
	runSource("ine_manzanas_censales", func(ctx context.Context) ([]string, error) {
		return d.fetchManzanas(ctx, opts.Comuna, boundary, rawDir)
	})
	runSource("ine_censo2017", func(ctx context.Context) ([]string, error) {
		return d.fetchMicrodata(ctx, opts.Comuna, rawDir)
	})
	runSource("minvu", func(ctx context.Context) ([]string, error) {
		acq := landuse.NewAcquirer(d.http, d.cfg.Sources.MinvuURL, minvuLocal(opts, d.cfg))
		path, err := acq.Acquire(ctx, rawDir)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	})

	if err := g.Wait(); err != nil {
		return summary, err
	}

	if err := WriteMetadata(rawDir, summary); err != nil {
		d.log.Warn("metadata write failed", zap.Error(err))
	}
	d.log.Info("download run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("failed", summary.Failed()),
	)
	return summary, nil
}

// resolveBoundary walks the configured source chain and persists the
// winning polygon as the cutline every raster stage clips against.
func (d *Downloader) resolveBoundary(ctx context.Context, opts DownloadOptions, rawDir string) (*area.Boundary, string, error) {
	var sources []area.BoundarySource
	if !opts.SkipWFS && d.cfg.Sources.WFSURL != "" {
		sources = append(sources, area.NewWFSSource(d.http, d.cfg.Sources.WFSURL, ""))
	}
	if d.cfg.Sources.DPAURL != "" {
		sources = append(sources, area.NewDPASource(d.mirrors, d.cfg.Sources.DPAURL, rawDir))
	}
	sources = append(sources, area.NewNominatimSource(d.http, d.cfg.Sources.NominatimURL))

	resolver := area.NewResolver(d.cfg.Raster.BBoxMargin, sources...)
	boundary, err := resolver.Resolve(ctx, opts.Comuna)
	if err != nil {
		return nil, "", err
	}

	name := "comuna_boundaries_oficial.geojson"
	if boundary.Source == area.SourceOSM {
		name = "osm_boundary.geojson"
	}
	path := filepath.Join(rawDir, name)
	if err := vector.WriteGeoJSON(path, boundary.Layer()); err != nil {
		return nil, "", err
	}
	return boundary, path, nil
}

func (d *Downloader) fetchOSM(ctx context.Context, bbox vector.BBox, rawDir string) ([]string, error) {
	type layerFetch struct {
		file string
		fn   func(context.Context, vector.BBox) (*vector.Layer, error)
	}
	fetches := []layerFetch{
		{"osm_buildings.geojson", d.osm.Buildings},
		{"osm_amenities.geojson", d.osm.Amenities},
		{"osm_network_edges.geojson", d.osm.RoadNetwork},
	}

	var artifacts []string
	for _, lf := range fetches {
		path := filepath.Join(rawDir, lf.file)
		if fileNonEmpty(path) {
			artifacts = append(artifacts, path)
			continue
		}
		layer, err := lf.fn(ctx, bbox)
		if err != nil {
			return artifacts, err
		}
		if err := vector.WriteGeoJSON(path, layer); err != nil {
			return artifacts, err
		}
		artifacts = append(artifacts, path)
	}
	return artifacts, nil
}

func (d *Downloader) fetchManzanas(ctx context.Context, comuna string, boundary *area.Boundary, rawDir string) ([]string, error) {
	path := filepath.Join(rawDir, "manzanas_censales.geojson")
	if fileNonEmpty(path) {
		return []string{path}, nil
	}

	// the official boundary may carry the exact spelling the census
	// layer uses
	var officialNames []string
	for _, f := range boundary.Layer().Features {
		for k, v := range f.Props {
			if s, ok := v.(string); ok && strings.Contains(strings.ToLower(k), "comuna") {
				officialNames = append(officialNames, s)
			}
		}
	}

	layer, err := d.manzanas.Fetch(ctx, comuna, officialNames)
	if err != nil {
		return nil, err
	}
	if err := vector.WriteGeoJSON(path, layer); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// fetchMicrodata downloads the census archive, resolves the comuna
// code from the lookup CSV and writes the comuna's filtered microdata
// as censo_microdatos.csv.
func (d *Downloader) fetchMicrodata(ctx context.Context, comuna, rawDir string) ([]string, error) {
	outCSV := filepath.Join(rawDir, "censo_microdatos.csv")
	if fileNonEmpty(outCSV) {
		return []string{outCSV}, nil
	}

	extractDir := filepath.Join(rawDir, "censo_microdatos")
	if !dirNonEmpty(extractDir) {
		zipPath := filepath.Join(rawDir, "censo_microdatos.zip")
		if !fileNonEmpty(zipPath) {
			if _, err := d.http.DownloadToFile(ctx, d.cfg.Sources.CensoMicroURL, zipPath); err != nil {
				return nil, eris.Wrap(fetcher.ErrSourceUnavailable, "pipeline: censo microdata download failed")
			}
		}
		if _, err := fetcher.ExtractZIP(zipPath, extractDir); err != nil {
			return nil, eris.Wrap(err, "pipeline: extract censo archive")
		}
		os.Remove(zipPath) //nolint:errcheck
	}

	files, err := census.LocateMicrodata(extractDir)
	if err != nil {
		return nil, err
	}

	comunas, err := census.ReadMicrodata(ctx, files.ComunasCSV)
	if err != nil {
		return nil, err
	}
	code, err := census.LookupComunaCode(comunas, comuna)
	if err != nil {
		return nil, err
	}
	d.log.Info("comuna code resolved", zap.String("comuna", comuna), zap.String("code", code))

	manzanas, err := census.ReadMicrodata(ctx, files.ManzanasCSV)
	if err != nil {
		return nil, err
	}
	filtered := manzanas.Filter("COMUNA", code)
	if len(filtered.Rows) == 0 {
		return nil, eris.Errorf("pipeline: no microdata rows for comuna code %s", code)
	}
	if err := filtered.WriteCSV(outCSV); err != nil {
		return nil, err
	}
	return []string{outCSV}, nil
}

// sourceSet interprets the --sources flag.
func sourceSet(sources []string) func(string) bool {
	if len(sources) == 0 {
		return func(string) bool { return true }
	}
	set := make(map[string]bool, len(sources))
	for _, s := range sources {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(strings.ToLower(part))
			if part != "" {
				set[part] = true
			}
		}
	}
	if set["all"] {
		return func(string) bool { return true }
	}
	return func(name string) bool { return set[name] }
}

func minvuLocal(opts DownloadOptions, cfg *config.Config) string {
	if opts.MinvuLocal != "" {
		return opts.MinvuLocal
	}
	return cfg.Sources.MinvuLocal
}

func fileNonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

func dirNonEmpty(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}
