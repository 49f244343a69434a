package srtm

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/fetcher"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/raster"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// minTileBytes rejects truncated tiles; an SRTM3 cell is ~2.9 MB
// uncompressed.
const minTileBytes = 1 << 20

// Resolver turns a comuna bbox into clipped DEM artifacts.
type Resolver struct {
	mirrors *fetcher.MirrorFetcher
	http    fetcher.Fetcher
	log     *zap.Logger

	OpenTopoURL    string
	OpenTopoAPIKey string
	TargetSRID     int
	NoData         float64
}

func NewResolver(mirrors *fetcher.MirrorFetcher, http fetcher.Fetcher) *Resolver {
	return &Resolver{
		mirrors:    mirrors,
		http:       http,
		log:        zap.L().Named("srtm"),
		TargetSRID: 32719,
		NoData:     -9999,
	}
}

// Resolve downloads every tile the bbox spans, mosaics them when
// needed, and clips to the boundary cutline. Outputs land in rawDir as
// srtm_dem.tif (geographic) and srtm_dem_<srid>.tif (metric). When no
// tile mirror yields data it falls back to the OpenTopography global
// DEM API, producing copernicus_dem.tif instead. Returns the artifact
// paths written.
func (r *Resolver) Resolve(ctx context.Context, bbox vector.BBox, cutlinePath, rawDir string) ([]string, error) {
	native := filepath.Join(rawDir, "srtm_dem.tif")
	metric := filepath.Join(rawDir, fmt.Sprintf("srtm_dem_%d.tif", r.TargetSRID))
	if fileNonEmpty(native) && fileNonEmpty(metric) {
		r.log.Info("dem artifacts exist, skipping", zap.String("dir", rawDir))
		return []string{native, metric}, nil
	}

	hgts := r.fetchTiles(ctx, bbox, rawDir)
	if len(hgts) == 0 {
		return r.fallback(ctx, bbox, cutlinePath, rawDir)
	}

	src, err := r.prepareSource(hgts, rawDir)
	if err != nil {
		return nil, err
	}

	if err := raster.WarpClip(ctx, src, native, raster.WarpOptions{
		CutlinePath: cutlinePath,
		NoData:      r.NoData,
	}); err != nil {
		return nil, err
	}
	if err := raster.WarpClip(ctx, src, metric, raster.WarpOptions{
		TargetSRID:  r.TargetSRID,
		CutlinePath: cutlinePath,
		NoData:      r.NoData,
	}); err != nil {
		return nil, err
	}
	return []string{native, metric}, nil
}

// fetchTiles tries the mirror chain for every candidate tile and
// returns the cache paths that materialized. Per-tile failure is not
// fatal; a single good tile still covers part of the comuna.
func (r *Resolver) fetchTiles(ctx context.Context, bbox vector.BBox, rawDir string) []string {
	codes := TilesForBBox(bbox)
	r.log.Info("candidate tiles", zap.Strings("codes", codes))

	var hgts []string
	for _, code := range codes {
		res := fetcher.Resource{
			Name:      code,
			CachePath: filepath.Join(rawDir, code+".hgt"),
			Suffix:    ".hgt",
			MinSize:   minTileBytes,
		}
		if _, err := r.mirrors.Fetch(ctx, res, TileMirrors(code)); err != nil {
			r.log.Warn("tile unavailable on all mirrors",
				zap.String("code", code), zap.Error(err))
			continue
		}
		hgts = append(hgts, res.CachePath)
	}
	return hgts
}

// prepareSource converts the raw tiles to GeoTIFF and mosaics them
// when the bbox spans more than one cell.
func (r *Resolver) prepareSource(hgts []string, rawDir string) (string, error) {
	var tifs []string
	for _, hgt := range hgts {
		tif := hgt[:len(hgt)-len(".hgt")] + ".tif"
		if !fileNonEmpty(tif) {
			g, err := ReadHGT(hgt)
			if err != nil {
				return "", err
			}
			if err := raster.WriteGrid(tif, g, 4326); err != nil {
				return "", err
			}
		}
		tifs = append(tifs, tif)
	}

	if len(tifs) == 1 {
		return tifs[0], nil
	}
	mosaic := filepath.Join(rawDir, "srtm_mosaic.tif")
	if !fileNonEmpty(mosaic) {
		if err := raster.Mosaic(tifs, mosaic); err != nil {
			return "", err
		}
	}
	return mosaic, nil
}

// fallback pulls a Copernicus GLO-30 cutout for the expanded bbox from
// the OpenTopography global DEM API.
func (r *Resolver) fallback(ctx context.Context, bbox vector.BBox, cutlinePath, rawDir string) ([]string, error) {
	if r.OpenTopoURL == "" {
		return nil, eris.Wrap(fetcher.ErrSourceUnavailable, "srtm: no tiles and no fallback endpoint")
	}

	q := url.Values{}
	q.Set("demtype", "COP30")
	q.Set("south", fmt.Sprintf("%f", bbox.MinY))
	q.Set("north", fmt.Sprintf("%f", bbox.MaxY))
	q.Set("west", fmt.Sprintf("%f", bbox.MinX))
	q.Set("east", fmt.Sprintf("%f", bbox.MaxX))
	q.Set("outputFormat", "GTiff")
	if r.OpenTopoAPIKey != "" {
		q.Set("API_Key", r.OpenTopoAPIKey)
	}

	out := filepath.Join(rawDir, "copernicus_dem.tif")
	r.log.Warn("no srtm tiles resolved, falling back to global dem", zap.String("out", out))

	if _, err := r.http.DownloadToFile(ctx, r.OpenTopoURL+"?"+q.Encode(), out); err != nil {
		return nil, eris.Wrap(fetcher.ErrSourceUnavailable, "srtm: mirrors and global dem fallback exhausted")
	}

	metric := filepath.Join(rawDir, fmt.Sprintf("copernicus_dem_%d.tif", r.TargetSRID))
	if err := raster.WarpClip(ctx, out, metric, raster.WarpOptions{
		TargetSRID:  r.TargetSRID,
		CutlinePath: cutlinePath,
		NoData:      r.NoData,
	}); err != nil {
		return nil, err
	}
	return []string{out, metric}, nil
}

func fileNonEmpty(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Size() > 0
}
