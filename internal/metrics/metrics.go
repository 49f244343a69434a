// Package metrics builds the per-manzana indicator table from the
// ingested relations. Columns whose upstream product is missing stay
// nil and surface as SQL NULLs, so a partial pipeline run still yields
// a valid table.
package metrics

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/db"
)

// Row is one manzana's indicators. Pointer fields are optional
// products: NDVI needs the sentinel bands, zoning needs the MINVU
// layer, network needs the OSM graph.
type Row struct {
	Manzent       string
	AreaM2        float64
	BuildingCount int
	BuiltAreaM2   float64
	AmenityCount  int

	NDVIMean        *float64
	AreaZonas       *float64
	ZonasCount      *int
	NodeCount       *int
	DegreeMean      *float64
	BetweennessMean *float64
}

// BaseStats computes area, building and amenity indicators for every
// manzana by spatial containment over the ingested OSM layers.
func BaseStats(ctx context.Context, pool db.Pool, schema string, srid int) ([]Row, error) {
	sql := fmt.Sprintf(`
		SELECT
			m.props->>'manzent' AS manzent,
			ST_Area(ST_Transform(m.geom, $1)) AS area_m2,
			COALESCE(b.building_count, 0) AS building_count,
			COALESCE(b.built_area, 0) AS built_area,
			COALESCE(a.amenity_count, 0) AS amenity_count
		FROM %[1]s.manzanas_atributos m
		LEFT JOIN (
			SELECT m2.props->>'manzent' AS manzent,
				COUNT(*) AS building_count,
				SUM(ST_Area(ST_Transform(bl.geom, $1))) AS built_area
			FROM %[1]s.manzanas_atributos m2
			JOIN %[1]s.osm_buildings bl ON ST_Intersects(m2.geom, bl.geom)
			GROUP BY 1
		) b ON b.manzent = m.props->>'manzent'
		LEFT JOIN (
			SELECT m2.props->>'manzent' AS manzent, COUNT(*) AS amenity_count
			FROM %[1]s.manzanas_atributos m2
			JOIN %[1]s.osm_amenities am ON ST_Contains(m2.geom, am.geom)
			GROUP BY 1
		) a ON a.manzent = m.props->>'manzent'
		WHERE m.props->>'manzent' IS NOT NULL
		ORDER BY manzent
	`, db.SanitizeIdent(schema))

	rows, err := pool.Query(ctx, sql, srid)
	if err != nil {
		return nil, eris.Wrap(err, "metrics: query base stats")
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Manzent, &r.AreaM2, &r.BuildingCount, &r.BuiltAreaM2, &r.AmenityCount); err != nil {
			return nil, eris.Wrap(err, "metrics: scan base stats row")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "metrics: iterate base stats rows")
	}
	return out, nil
}

// ZoningStat is the zoning-intersection aggregate for one manzana.
type ZoningStat struct {
	AreaZonas  float64
	ZonasCount int
}

// ZoningStats intersects manzanas with the given land-use relation
// (the unified layer, or the raw MINVU load when no unified layer was
// built) and aggregates intersected area and distinct zone count per
// manzana.
func ZoningStats(ctx context.Context, pool db.Pool, schema, landUseTable string, srid int) (map[string]ZoningStat, error) {
	sql := fmt.Sprintf(`
		SELECT
			m.props->>'manzent' AS manzent,
			SUM(ST_Area(ST_Transform(ST_Intersection(m.geom, u.geom), $1))) AS area_zonas,
			COUNT(DISTINCT COALESCE(u.props->>'categoria', u.props->>'CLASE', u.props->>'USO', u.props->>'ZONA')) AS zonas_count
		FROM %[1]s.manzanas_atributos m
		JOIN %[1]s.%[2]s u ON ST_Intersects(m.geom, u.geom)
		WHERE m.props->>'manzent' IS NOT NULL
		GROUP BY 1
	`, db.SanitizeIdent(schema), db.SanitizeIdent(landUseTable))

	rows, err := pool.Query(ctx, sql, srid)
	if err != nil {
		return nil, eris.Wrap(err, "metrics: query zoning stats")
	}
	defer rows.Close()

	out := make(map[string]ZoningStat)
	for rows.Next() {
		var key string
		var s ZoningStat
		if err := rows.Scan(&key, &s.AreaZonas, &s.ZonasCount); err != nil {
			return nil, eris.Wrap(err, "metrics: scan zoning stats row")
		}
		out[key] = s
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "metrics: iterate zoning stats rows")
	}
	return out, nil
}
