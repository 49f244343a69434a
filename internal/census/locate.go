package census

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// MicrodataFiles are the two CSVs the pipeline needs from the
// extracted census archive: the block-level microdata and the comuna
// code lookup.
type MicrodataFiles struct {
	ManzanasCSV string
	ComunasCSV  string
}

// LocateMicrodata walks the extracted census tree for the microdata
// CSVs. The archive nests them under a versioned inner directory whose
// name drifts between vintages, so matching is by file name only,
// case-insensitively.
func LocateMicrodata(root string) (*MicrodataFiles, error) {
	var found MicrodataFiles
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		base := strings.ToLower(d.Name())
		switch {
		case base == "censo2017_manzanas.csv":
			found.ManzanasCSV = path
		case strings.HasPrefix(base, "microdato_censo2017-comunas") && strings.HasSuffix(base, ".csv"):
			found.ComunasCSV = path
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "census: walk %s", root)
	}
	if found.ManzanasCSV == "" {
		return nil, eris.Errorf("census: Censo2017_Manzanas.csv not found under %s", root)
	}
	if found.ComunasCSV == "" {
		return nil, eris.Errorf("census: comunas lookup CSV not found under %s", root)
	}
	return &found, nil
}
