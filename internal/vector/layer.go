// Package vector holds the in-memory feature model shared by the
// boundary, census, land-use and OSM stages, plus GeoJSON and
// shapefile codecs for it.
package vector

import (
	"math"

	"github.com/twpayne/go-geom"
)

// Feature is one geometry with its attributes.
type Feature struct {
	Props map[string]any
	Geom  geom.T
}

// Layer is a named collection of features in a single CRS.
type Layer struct {
	Name     string
	SRID     int
	Features []Feature
}

// BBox is an axis-aligned bounding box in layer coordinates.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// Expand grows the box by margin on every side.
func (b BBox) Expand(margin float64) BBox {
	return BBox{
		MinX: b.MinX - margin,
		MinY: b.MinY - margin,
		MaxX: b.MaxX + margin,
		MaxY: b.MaxY + margin,
	}
}

// Contains reports whether the point lies inside or on the box.
func (b BBox) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// BoundsOf computes the bounding box of a geometry.
func BoundsOf(g geom.T) BBox {
	bounds := g.Bounds()
	return BBox{
		MinX: bounds.Min(0),
		MinY: bounds.Min(1),
		MaxX: bounds.Max(0),
		MaxY: bounds.Max(1),
	}
}

// Bounds computes the union bounding box of all features.
func (l *Layer) Bounds() BBox {
	b := BBox{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, f := range l.Features {
		if f.Geom == nil {
			continue
		}
		fb := BoundsOf(f.Geom)
		b.MinX = math.Min(b.MinX, fb.MinX)
		b.MinY = math.Min(b.MinY, fb.MinY)
		b.MaxX = math.Max(b.MaxX, fb.MaxX)
		b.MaxY = math.Max(b.MaxY, fb.MaxY)
	}
	return b
}

// PropString returns a string attribute, or "" when absent or not a string.
func (f Feature) PropString(key string) string {
	v, ok := f.Props[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
