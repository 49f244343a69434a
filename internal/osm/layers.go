package osm

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

const earthRadiusM = 6371000

// elementsToLayer converts Overpass elements to features: nodes become
// points, closed ways polygons, open ways linestrings. Elements
// without usable geometry are dropped.
func elementsToLayer(name string, elems []element) *vector.Layer {
	layer := &vector.Layer{Name: name, SRID: 4326}
	for _, el := range elems {
		g := elementGeom(el)
		if g == nil {
			continue
		}
		props := map[string]any{"osm_id": el.ID}
		for k, v := range el.Tags {
			props[k] = v
		}
		layer.Features = append(layer.Features, vector.Feature{Props: props, Geom: g})
	}
	return layer
}

func elementGeom(el element) geom.T {
	switch el.Type {
	case "node":
		return geom.NewPointFlat(geom.XY, []float64{el.Lon, el.Lat})
	case "way", "relation":
		if len(el.Geometry) < 2 {
			return nil
		}
		flat := make([]float64, 0, len(el.Geometry)*2)
		for _, p := range el.Geometry {
			flat = append(flat, p.Lon, p.Lat)
		}
		if isClosed(el.Geometry) && len(el.Geometry) >= 4 {
			return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
		}
		return geom.NewLineStringFlat(geom.XY, flat)
	default:
		return nil
	}
}

func isClosed(pts []latLon) bool {
	return pts[0] == pts[len(pts)-1]
}

// networkLayer splits each highway way into per-segment edge features
// keyed by the OSM node ids at both ends.
func networkLayer(elems []element) *vector.Layer {
	layer := &vector.Layer{Name: "osm_network", SRID: 4326}
	for _, el := range elems {
		if el.Type != "way" || len(el.Nodes) != len(el.Geometry) {
			continue
		}
		highway := el.Tags["highway"]
		for i := 0; i+1 < len(el.Nodes); i++ {
			a, b := el.Geometry[i], el.Geometry[i+1]
			layer.Features = append(layer.Features, vector.Feature{
				Props: map[string]any{
					"osm_id":  el.ID,
					"u":       el.Nodes[i],
					"v":       el.Nodes[i+1],
					"length":  haversineM(a.Lat, a.Lon, b.Lat, b.Lon),
					"highway": highway,
				},
				Geom: geom.NewLineStringFlat(geom.XY, []float64{a.Lon, a.Lat, b.Lon, b.Lat}),
			})
		}
	}
	return layer
}

// haversineM is the great-circle distance in meters.
func haversineM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(a))
}
