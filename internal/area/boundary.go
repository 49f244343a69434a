package area

import (
	"context"
	"errors"

	"github.com/twpayne/go-geom"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// ErrBoundaryUnresolved marks a comuna whose boundary could not be
// obtained from any source. Without a boundary nothing downstream can
// run, so callers abort the whole run on it.
var ErrBoundaryUnresolved = errors.New("area: boundary unresolved")

// Source labels for Boundary.Source.
const (
	SourceOficial = "oficial"
	SourceOSM     = "osm"
)

// Boundary is the resolved polygon of a comuna in WGS84.
type Boundary struct {
	Comuna     string     // name as requested
	Normalized string     // canonical comparison form
	Source     string     // "oficial" or "osm"
	Geom       geom.T     // Polygon or MultiPolygon, SRID 4326
	BBox       vector.BBox // geometry bounds expanded by the configured margin
}

// BoundarySource is one provider in the resolution chain.
type BoundarySource interface {
	Name() string
	Fetch(ctx context.Context, comuna string) (*Boundary, error)
}

// Layer wraps the boundary as a single-feature layer for GeoJSON output.
func (b *Boundary) Layer() *vector.Layer {
	return &vector.Layer{
		Name: "comuna_boundaries_oficial",
		SRID: 4326,
		Features: []vector.Feature{{
			Props: map[string]any{
				"comuna":     b.Comuna,
				"normalized": b.Normalized,
				"source":     b.Source,
			},
			Geom: b.Geom,
		}},
	}
}
