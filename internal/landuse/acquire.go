// Package landuse acquires MINVU zoning products and unifies the
// regulatory-plan shapefiles into a single categorized layer.
package landuse

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/fetcher"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// Acquirer materializes the MINVU zoning tree under rawDir. A local
// file (the --minvu-local flag) bypasses the remote download, which
// matters because the official catalog endpoint is slow and flaky.
type Acquirer struct {
	http fetcher.Fetcher
	log  *zap.Logger

	RemoteURL string
	LocalPath string
}

func NewAcquirer(httpFetcher fetcher.Fetcher, remoteURL, localPath string) *Acquirer {
	return &Acquirer{
		http:      httpFetcher,
		log:       zap.L().Named("landuse"),
		RemoteURL: remoteURL,
		LocalPath: localPath,
	}
}

// Acquire leaves either an extracted uso_suelo_minvu/ tree or a direct
// uso_suelo_minvu.geojson in rawDir and returns the path it produced.
func (a *Acquirer) Acquire(ctx context.Context, rawDir string) (string, error) {
	extractDir := filepath.Join(rawDir, "uso_suelo_minvu")
	directGeo := filepath.Join(rawDir, "uso_suelo_minvu.geojson")

	if dirNonEmpty(extractDir) || fileNonEmpty(directGeo) {
		a.log.Info("minvu artifacts exist, skipping")
		if dirNonEmpty(extractDir) {
			return extractDir, nil
		}
		return directGeo, nil
	}

	if a.LocalPath != "" {
		return a.fromLocal(extractDir, directGeo)
	}

	if a.RemoteURL == "" {
		return "", eris.Wrap(fetcher.ErrSourceUnavailable, "landuse: no minvu endpoint or local path")
	}

	zipPath := filepath.Join(rawDir, "uso_suelo_minvu.zip")
	if _, err := a.http.DownloadToFile(ctx, a.RemoteURL, zipPath); err != nil {
		return "", eris.Wrap(fetcher.ErrSourceUnavailable, "landuse: minvu download failed")
	}
	defer os.Remove(zipPath) //nolint:errcheck

	if _, err := fetcher.ExtractZIP(zipPath, extractDir); err != nil {
		return "", eris.Wrap(err, "landuse: extract minvu zip")
	}
	a.log.Info("minvu tree extracted", zap.String("dir", extractDir))
	return extractDir, nil
}

func (a *Acquirer) fromLocal(extractDir, directGeo string) (string, error) {
	switch strings.ToLower(filepath.Ext(a.LocalPath)) {
	case ".zip":
		if _, err := fetcher.ExtractZIP(a.LocalPath, extractDir); err != nil {
			return "", eris.Wrap(err, "landuse: extract local minvu zip")
		}
		a.log.Info("local minvu zip extracted", zap.String("dir", extractDir))
		return extractDir, nil
	case ".shp":
		layer, err := vector.ReadShapefile(a.LocalPath)
		if err != nil {
			return "", err
		}
		if err := vector.Reproject(layer, 4326); err != nil {
			return "", err
		}
		layer.Name = "uso_suelo_minvu"
		if err := vector.WriteGeoJSON(directGeo, layer); err != nil {
			return "", err
		}
		a.log.Info("local minvu shapefile converted", zap.String("out", directGeo))
		return directGeo, nil
	case ".geojson", ".json":
		if err := copyFile(a.LocalPath, directGeo); err != nil {
			return "", err
		}
		a.log.Info("local minvu geojson copied", zap.String("out", directGeo))
		return directGeo, nil
	default:
		return "", eris.Errorf("landuse: unsupported local format %s", a.LocalPath)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "landuse: open %s", src)
	}
	defer in.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return eris.Wrapf(err, "landuse: create dir for %s", dst)
	}
	out, err := os.Create(dst)
	if err != nil {
		return eris.Wrapf(err, "landuse: create %s", dst)
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, in); err != nil {
		return eris.Wrapf(err, "landuse: copy to %s", dst)
	}
	return nil
}

func fileNonEmpty(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir() && st.Size() > 0
}

func dirNonEmpty(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}
