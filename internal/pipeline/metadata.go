package pipeline

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
)

// Metadata is the run inventory written next to the downloaded
// artifacts. The .txt name with a JSON body matches what downstream
// consumers already parse.
type Metadata struct {
	Comuna            string   `json:"comuna"`
	RunID             string   `json:"run_id"`
	FechaDescarga     string   `json:"fecha_descarga"`
	FuentesDetectadas []string `json:"fuentes_detectadas"`
	ArchivosGenerados []string `json:"archivos_generados"`
}

// WriteMetadata inventories rawDir and writes metadata.txt from the
// run summary. Detected sources are the steps that produced artifacts.
func WriteMetadata(rawDir string, s *Summary) error {
	var sources []string
	for _, r := range s.Results() {
		if r.Status == StatusOK {
			sources = append(sources, r.Name)
		}
	}
	sort.Strings(sources)

	files, err := inventory(rawDir)
	if err != nil {
		return err
	}

	m := Metadata{
		Comuna:            s.Comuna,
		RunID:             s.RunID,
		FechaDescarga:     time.Now().UTC().Format(time.RFC3339),
		FuentesDetectadas: sources,
		ArchivosGenerados: files,
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal metadata")
	}
	path := filepath.Join(rawDir, "metadata.txt")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "pipeline: write %s", path)
	}
	return nil
}

// inventory lists files under rawDir relative to it, excluding the
// metadata file itself.
func inventory(rawDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(rawDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(rawDir, path)
		if relErr != nil {
			return relErr
		}
		if rel == "metadata.txt" {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: inventory %s", rawDir)
	}
	sort.Strings(files)
	return files, nil
}
