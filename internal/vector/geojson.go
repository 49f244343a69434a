package vector

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// ReadGeoJSON loads a GeoJSON FeatureCollection from disk. The layer
// name is derived from the file stem.
func ReadGeoJSON(path string) (*Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vector: read %s", path)
	}
	return ParseGeoJSON(data, layerName(path))
}

// ParseGeoJSON decodes a GeoJSON FeatureCollection.
func ParseGeoJSON(data []byte, name string) (*Layer, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "vector: decode geojson %s", name)
	}

	layer := &Layer{Name: name, SRID: 4326}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		props := f.Properties
		if props == nil {
			props = map[string]any{}
		}
		layer.Features = append(layer.Features, Feature{Props: props, Geom: f.Geometry})
	}
	return layer, nil
}

// WriteGeoJSON writes the layer as a GeoJSON FeatureCollection,
// creating parent directories as needed.
func WriteGeoJSON(path string, layer *Layer) error {
	fc := geojson.FeatureCollection{}
	for _, f := range layer.Features {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   f.Geom,
			Properties: f.Props,
		})
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return eris.Wrapf(err, "vector: encode geojson %s", layer.Name)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "vector: create dir for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "vector: write %s", path)
	}
	return nil
}

func layerName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
