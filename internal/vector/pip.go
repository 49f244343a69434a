package vector

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// PointInGeom reports whether the point (x, y) lies inside a polygonal
// geometry. Non-areal geometries always report false. Used for zonal
// raster statistics and node containment where no database round trip
// is warranted.
func PointInGeom(g geom.T, x, y float64) bool {
	pt := geom.Coord{x, y}
	switch t := g.(type) {
	case *geom.Polygon:
		return polygonContains(t, pt)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if polygonContains(t.Polygon(i), pt) {
				return true
			}
		}
	}
	return false
}

func polygonContains(p *geom.Polygon, pt geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(p.Layout(), pt, p.LinearRing(0).FlatCoords()) {
		return false
	}
	// Interior rings are holes.
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.IsPointInRing(p.Layout(), pt, p.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}
