package metrics

import (
	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/network"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/raster"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// ApplyNDVI fills NDVIMean from the NDVI grid using zonal means over
// the manzana geometries. Manzanas with no valid pixel keep a nil
// NDVIMean rather than a fake zero.
func ApplyNDVI(rows []Row, ndvi *raster.Grid, manzanas *vector.Layer, keyProp string) {
	byKey := make(map[string]vector.Feature, len(manzanas.Features))
	for _, f := range manzanas.Features {
		if k := f.PropString(keyProp); k != "" {
			byKey[k] = f
		}
	}

	filled := 0
	for i := range rows {
		f, ok := byKey[rows[i].Manzent]
		if !ok {
			continue
		}
		if mean, ok := raster.ZonalMean(ndvi, f.Geom); ok {
			v := mean
			rows[i].NDVIMean = &v
			filled++
		}
	}
	zap.L().Info("ndvi applied", zap.Int("manzanas", filled), zap.Int("total", len(rows)))
}

// ApplyZoning fills AreaZonas/ZonasCount from the zoning intersection
// aggregates. Manzanas absent from the aggregate get explicit zeros:
// the layer existed, they just intersect nothing.
func ApplyZoning(rows []Row, stats map[string]ZoningStat) {
	for i := range rows {
		s := stats[rows[i].Manzent]
		area, count := s.AreaZonas, s.ZonasCount
		rows[i].AreaZonas = &area
		rows[i].ZonasCount = &count
	}
}

// ApplyNetwork fills the street-graph aggregates the same way.
func ApplyNetwork(rows []Row, zones map[string]network.ZoneMetrics) {
	for i := range rows {
		z := zones[rows[i].Manzent]
		nodeCount, degree, betw := z.NodeCount, z.DegreeMean, z.BetweennessMean
		rows[i].NodeCount = &nodeCount
		rows[i].DegreeMean = &degree
		rows[i].BetweennessMean = &betw
	}
}
