package vector

import (
	"github.com/airbusgeo/godal"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Reproject transforms every feature of the layer into dstSRID in
// place and retags layer and geometries. A layer already in dstSRID
// (or with no declared CRS) is left untouched. GDAL axis order for
// geographic systems is lat/lon; layer coordinates are always lon/lat,
// so both ends are swapped as needed.
func Reproject(l *Layer, dstSRID int) error {
	if l.SRID == 0 || l.SRID == dstSRID {
		return nil
	}

	src, err := godal.NewSpatialRefFromEPSG(l.SRID)
	if err != nil {
		return eris.Wrapf(err, "vector: spatial ref for EPSG:%d", l.SRID)
	}
	defer src.Close()
	dst, err := godal.NewSpatialRefFromEPSG(dstSRID)
	if err != nil {
		return eris.Wrapf(err, "vector: spatial ref for EPSG:%d", dstSRID)
	}
	defer dst.Close()

	trn, err := godal.NewTransform(src, dst)
	if err != nil {
		return eris.Wrapf(err, "vector: transform EPSG:%d to EPSG:%d", l.SRID, dstSRID)
	}
	defer trn.Close()

	srcLatLon := src.EPSGTreatsAsLatLong()
	dstLatLon := dst.EPSGTreatsAsLatLong()

	for i := range l.Features {
		g := l.Features[i].Geom
		if g == nil {
			continue
		}
		if _, ok := g.(*geom.GeometryCollection); ok {
			// collections have no flat coords; none of our readers emit them
			continue
		}
		if err := transformFlat(trn, g.FlatCoords(), g.Stride(), srcLatLon, dstLatLon); err != nil {
			return eris.Wrapf(err, "vector: reproject %s feature %d", l.Name, i)
		}
		l.Features[i].Geom = withSRID(g, dstSRID)
	}
	l.SRID = dstSRID
	return nil
}

// transformFlat runs the coordinate transform over a flat coordinate
// slice in place, honoring the axis order each CRS declares.
func transformFlat(trn *godal.Transform, flat []float64, stride int, srcLatLon, dstLatLon bool) error {
	n := len(flat) / stride
	if n == 0 {
		return nil
	}
	xs := make([]float64, n)
	ys := make([]float64, n)
	for j := 0; j < n; j++ {
		xs[j] = flat[j*stride]
		ys[j] = flat[j*stride+1]
	}
	if srcLatLon {
		xs, ys = ys, xs
	}
	if err := trn.TransformEx(xs, ys, nil, nil); err != nil {
		return err
	}
	if dstLatLon {
		xs, ys = ys, xs
	}
	for j := 0; j < n; j++ {
		flat[j*stride] = xs[j]
		flat[j*stride+1] = ys[j]
	}
	return nil
}

// withSRID retags a geometry. go-geom keeps SetSRID on the concrete
// types, so a switch it is.
func withSRID(g geom.T, srid int) geom.T {
	switch t := g.(type) {
	case *geom.Point:
		return t.SetSRID(srid)
	case *geom.MultiPoint:
		return t.SetSRID(srid)
	case *geom.LineString:
		return t.SetSRID(srid)
	case *geom.MultiLineString:
		return t.SetSRID(srid)
	case *geom.Polygon:
		return t.SetSRID(srid)
	case *geom.MultiPolygon:
		return t.SetSRID(srid)
	}
	return g
}
