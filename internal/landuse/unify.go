package landuse

import (
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// categoryFields are probed in order; the first one present in a
// shapefile's schema becomes the unified categoria value.
var categoryFields = []string{"CLASE", "USO", "ZONA", "DESCRIP", "DESCRIPCION", "CATEGORIA", "TIPO"}

// planMarkers identify regulatory-plan shapefiles inside the MINVU
// tree: comunal plans (PRC), the metropolitan plan (PRMS) and land-use
// layers (LU).
var planMarkers = []string{"PRC", "PRMS", "LU"}

// uncategorized is the bucket for shapefiles with none of the known
// category fields.
const uncategorized = "sin_categoria"

// Unify walks searchRoot for regulatory-plan shapefiles and merges
// them into one layer with exactly two attributes: categoria (the
// normalized zoning class) and source (the originating file stem, a
// provenance tier marker). Files that fail to parse are logged and
// skipped; an empty result is a valid outcome when the comuna has no
// digitized plan.
func Unify(searchRoot string) (*vector.Layer, error) {
	log := zap.L().Named("landuse")

	var shps []string
	err := filepath.WalkDir(searchRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".shp") {
			return nil
		}
		if hasPlanMarker(filepath.Base(path)) {
			shps = append(shps, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	unified := &vector.Layer{Name: "uso_suelo_unificado", SRID: 4326}
	for _, shpPath := range shps {
		layer, err := vector.ReadShapefile(shpPath)
		if err != nil {
			log.Warn("skipping unreadable shapefile",
				zap.String("path", shpPath), zap.Error(err))
			continue
		}
		// plan layers mix CRSs across tiers; unify in WGS84
		if err := vector.Reproject(layer, 4326); err != nil {
			log.Warn("skipping unprojectable shapefile",
				zap.String("path", shpPath), zap.Error(err))
			continue
		}
		stem := strings.TrimSuffix(filepath.Base(shpPath), filepath.Ext(shpPath))
		mergeLayer(unified, layer, stem)
	}

	log.Info("land use unified",
		zap.Int("shapefiles", len(shps)),
		zap.Int("features", len(unified.Features)),
	)
	return unified, nil
}

// mergeLayer appends a plan layer's features to the unified layer with
// the normalized categoria/source schema.
func mergeLayer(unified, layer *vector.Layer, stem string) {
	field := categoryField(layer)
	for _, f := range layer.Features {
		cat := uncategorized
		if field != "" {
			if v := strings.TrimSpace(f.PropString(field)); v != "" {
				cat = v
			}
		}
		unified.Features = append(unified.Features, vector.Feature{
			Props: map[string]any{"categoria": cat, "source": stem},
			Geom:  f.Geom,
		})
	}
}

func hasPlanMarker(base string) bool {
	upper := strings.ToUpper(base)
	for _, m := range planMarkers {
		if strings.Contains(upper, m) {
			return true
		}
	}
	return false
}

// categoryField returns the first candidate field present on any
// feature of the layer.
func categoryField(layer *vector.Layer) string {
	for _, cand := range categoryFields {
		for _, f := range layer.Features {
			if _, ok := f.Props[cand]; ok {
				return cand
			}
		}
	}
	return ""
}
