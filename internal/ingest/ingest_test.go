package ingest

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/census"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/raster"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

func testLayer(srid int) *vector.Layer {
	pt := geom.NewPointFlat(geom.XY, []float64{-70.65, -33.45})
	pt.SetSRID(srid)
	return &vector.Layer{
		Name: "manzanas_censales",
		SRID: srid,
		Features: []vector.Feature{
			{Props: map[string]any{"manzent": "13101011001001"}, Geom: pt},
		},
	}
}

func TestIngestLayer(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "raw_data"\."manzanas_censales"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`TRUNCATE "raw_data"\."manzanas_censales"`).
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"raw_data", "manzanas_censales"}, []string{"props", "geom"}).
		WillReturnResult(1)

	n, err := IngestLayer(context.Background(), mock, "raw_data", "manzanas_censales", testLayer(4326), VectorOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestLayerTransformAndIndex(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "raw_data"\."osm_buildings"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`TRUNCATE "raw_data"\."osm_buildings"`).
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"raw_data", "osm_buildings"}, []string{"props", "geom"}).
		WillReturnResult(1)
	mock.ExpectExec(`UPDATE "raw_data"\."osm_buildings" SET geom = ST_Transform`).
		WithArgs(32719).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "idx_osm_buildings_geom" ON "raw_data"\."osm_buildings" USING GIST`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	layer := testLayer(4326)
	layer.Name = "osm_buildings"
	n, err := IngestLayer(context.Background(), mock, "raw_data", "osm_buildings", layer,
		VectorOptions{TargetSRID: 32719, SpatialIndex: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestLayerSkipsTransformWhenSRIDMatches(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`TRUNCATE`).
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"raw_data", "manzanas_censales"}, []string{"props", "geom"}).
		WillReturnResult(1)

	_, err = IngestLayer(context.Background(), mock, "raw_data", "manzanas_censales", testLayer(32719),
		VectorOptions{TargetSRID: 32719})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	table := &census.Table{
		Columns: []string{"MANZENT", "PERSONAS"},
		Rows: []map[string]string{
			{"MANZENT": "13101011001001", "PERSONAS": "120"},
			{"MANZENT": "13101011001002", "PERSONAS": "85"},
		},
	}

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "raw_data"\."censo_microdatos" \("manzent" TEXT, "personas" TEXT\)`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`TRUNCATE "raw_data"\."censo_microdatos"`).
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"raw_data", "censo_microdatos"}, []string{"manzent", "personas"}).
		WillReturnResult(2)

	n, err := IngestTable(context.Background(), mock, "raw_data", "censo_microdatos", table)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestTableRejectsEmptySchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = IngestTable(context.Background(), mock, "raw_data", "censo_microdatos", &census.Table{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns")
}

func TestEnsureCatalog(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "processed_data"\.raster_catalog`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, EnsureCatalog(context.Background(), mock, "processed_data"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAsset(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	nodata := -9999.0
	info := &raster.AssetInfo{
		Filename:    "slope_32719.tif",
		CRS:         "EPSG:32719",
		Width:       1024,
		Height:      980,
		BandCount:   1,
		Bounds:      [4]float64{340000, 6280000, 360000, 6300000},
		Transform:   [6]float64{340000, 30, 0, 6300000, 0, -30},
		DType:       "Float64",
		NoData:      &nodata,
		SourceGroup: "derived",
	}

	mock.ExpectExec(`INSERT INTO "processed_data"\.raster_catalog(?s).*ON CONFLICT \(filename\) DO UPDATE`).
		WithArgs("slope_32719.tif", "procesado/slope_32719.tif", "EPSG:32719",
			1024, 980, 1, "Float64", -9999.0,
			"340000 30 0 6300000 0 -30",
			340000.0, 6280000.0, 360000.0, 6300000.0, "derived").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = UpsertAsset(context.Background(), mock, "processed_data", "procesado/slope_32719.tif", info)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAssetNilNoData(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	info := &raster.AssetInfo{
		Filename:    "sentinel2_B04.tif",
		CRS:         "EPSG:4326",
		Width:       512,
		Height:      512,
		BandCount:   1,
		DType:       "UInt16",
		SourceGroup: "sentinel2",
	}

	mock.ExpectExec(`INSERT INTO "processed_data"\.raster_catalog`).
		WithArgs("sentinel2_B04.tif", "crudo/sentinel2_B04.tif", "EPSG:4326",
			512, 512, 1, "UInt16", nil,
			"0 0 0 0 0 0",
			0.0, 0.0, 0.0, 0.0, "sentinel2").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = UpsertAsset(context.Background(), mock, "processed_data", "crudo/sentinel2_B04.tif", info)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormatTransform(t *testing.T) {
	got := formatTransform([6]float64{-70.7, 0.01, 0, -33.3, 0, -0.01})
	assert.Equal(t, "-70.7 0.01 0 -33.3 0 -0.01", got)
}
