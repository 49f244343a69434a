package area

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/fetcher"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// DPASource downloads the official division político-administrativa
// archive and filters the national comuna shapefile by name.
type DPASource struct {
	mirrors *fetcher.MirrorFetcher
	url     string
	workDir string
	log     *zap.Logger
}

// NewDPASource builds a DPA boundary source caching under workDir.
func NewDPASource(m *fetcher.MirrorFetcher, archiveURL, workDir string) *DPASource {
	return &DPASource{
		mirrors: m,
		url:     archiveURL,
		workDir: workDir,
		log:     zap.L().With(zap.String("component", "dpa_source")),
	}
}

func (s *DPASource) Name() string { return "dpa" }

// Fetch downloads and extracts the DPA archive (cached across runs),
// locates the comuna shapefile inside it, and returns the matching
// polygon.
func (s *DPASource) Fetch(ctx context.Context, comuna string) (*Boundary, error) {
	zipPath := filepath.Join(s.workDir, "dpa_comunas.zip")
	res := fetcher.Resource{
		Name:      "dpa archive",
		CachePath: zipPath,
		MinSize:   1024,
	}
	if _, err := s.mirrors.Fetch(ctx, res, []fetcher.Mirror{{URL: s.url}}); err != nil {
		return nil, err
	}

	extractDir := filepath.Join(s.workDir, "dpa")
	if _, err := os.Stat(extractDir); os.IsNotExist(err) {
		if _, err := fetcher.ExtractZIP(zipPath, extractDir); err != nil {
			return nil, err
		}
	}

	shpPath, err := findComunaShapefile(extractDir)
	if err != nil {
		return nil, err
	}
	s.log.Debug("dpa shapefile located", zap.String("path", shpPath))

	layer, err := vector.ReadShapefile(shpPath)
	if err != nil {
		return nil, err
	}
	// DPA releases alternate between WGS84 and UTM 19S
	if err := vector.Reproject(layer, 4326); err != nil {
		return nil, err
	}

	feat := matchFeature(layer, comuna)
	if feat == nil {
		return nil, eris.Errorf("area: dpa shapefile has no comuna %q", comuna)
	}

	return &Boundary{Source: SourceOficial, Geom: feat.Geom}, nil
}

// findComunaShapefile walks the extracted tree and scores candidate
// shapefiles: names mentioning comunas outrank others, bigger files
// outrank smaller ones.
func findComunaShapefile(root string) (string, error) {
	var best string
	var bestScore int64 = -1

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".shp") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		score := info.Size()
		if strings.Contains(strings.ToLower(d.Name()), "com") {
			score += 1 << 40
		}
		if score > bestScore {
			bestScore = score
			best = path
		}
		return nil
	})
	if err != nil {
		return "", eris.Wrap(err, "area: walk dpa archive")
	}
	if best == "" {
		return "", eris.New("area: no shapefile in dpa archive")
	}
	return best, nil
}
