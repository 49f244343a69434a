package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/config"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

func TestSourceGroup(t *testing.T) {
	cases := map[string]string{
		"srtm_dem.tif":       "raw",
		"srtm_dem_32719.tif": "raw",
		"copernicus_dem.tif": "raw",
		"sentinel2_B04.tif":  "raw",
		"something_else.tif": "raw",
		"ndvi_4326.tif":      "derived",
		"ndvi_32719.tif":     "derived",
		"slope.tif":          "derived",
		"aspect.tif":         "derived",
	}
	for name, want := range cases {
		assert.Equal(t, want, sourceGroup(name), name)
	}
}

func TestVectorOpts(t *testing.T) {
	o := vectorOpts(ProcessOptions{SpatialIndex: true})
	assert.Equal(t, 4326, o.TargetSRID)
	assert.True(t, o.SpatialIndex)

	o = vectorOpts(ProcessOptions{})
	assert.Equal(t, 4326, o.TargetSRID)
	assert.False(t, o.SpatialIndex)
}

func TestLandUseRelation(t *testing.T) {
	dir := t.TempDir()
	p := &Processor{cfg: &config.Config{Data: config.DataConfig{ProcessedDir: dir}}}

	// no unified layer on disk: fall back to the raw MINVU relation
	assert.Equal(t, "uso_suelo_minvu", p.landUseRelation())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "uso_suelo_unificado.geojson"), []byte("{}"), 0o644))
	assert.Equal(t, "uso_suelo_unificado", p.landUseRelation())
}

func TestEpsgFrom(t *testing.T) {
	assert.Equal(t, 32719, epsgFrom("EPSG:32719"))
	assert.Equal(t, 4326, epsgFrom("EPSG:4326"))
	assert.Equal(t, 4326, epsgFrom(`PROJCS["WGS 84 / UTM zone 19S"...]`))
	assert.Equal(t, 4326, epsgFrom(""))
}

func TestPropColumns(t *testing.T) {
	layer := &vector.Layer{Features: []vector.Feature{
		{Props: map[string]any{"MANZENT": "1", "COMUNA": "13101"}},
		{Props: map[string]any{"MANZENT": "2", "EXTRA": "x"}},
	}}
	cols := propColumns(layer)
	assert.ElementsMatch(t, []string{"MANZENT", "COMUNA", "EXTRA"}, cols)
}

func TestWriteMetadata(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "srtm_dem.tif"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "uso_suelo_minvu"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uso_suelo_minvu", "plan.shp"), []byte("x"), 0o644))

	s := NewSummary("San Joaquín")
	s.Add(StepResult{Name: "srtm", Status: StatusOK, Artifacts: []string{"srtm_dem.tif"}})
	s.Add(StepResult{Name: "sentinel2", Status: StatusSkipped})

	require.NoError(t, WriteMetadata(dir, s))

	data, err := os.ReadFile(filepath.Join(dir, "metadata.txt"))
	require.NoError(t, err)

	var m Metadata
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "San Joaquín", m.Comuna)
	assert.Equal(t, s.RunID, m.RunID)
	assert.NotEmpty(t, m.FechaDescarga)
	assert.Equal(t, []string{"srtm"}, m.FuentesDetectadas)
	assert.ElementsMatch(t, []string{"srtm_dem.tif", "uso_suelo_minvu/plan.shp"}, m.ArchivosGenerados)
}

func TestCountOrphans(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "censo_orphans.csv")
	require.NoError(t, os.WriteFile(path, []byte("orphan_key;MANZENT\n1;1\n2;2\n"), 0o644))

	assert.Equal(t, 2, countOrphans(path))
	assert.Equal(t, 0, countOrphans(filepath.Join(dir, "missing.csv")))

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	assert.Equal(t, 0, countOrphans(empty))
}

func TestFileAndDirNonEmpty(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, dirNonEmpty(filepath.Join(dir, "missing")))
	assert.False(t, dirNonEmpty(dir))

	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	assert.False(t, fileNonEmpty(path))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.True(t, fileNonEmpty(path))
	assert.True(t, dirNonEmpty(dir))
}

// the boundary layer exposes comuna name props the manzanas fetch
// reuses as spelling variants
func TestBoundaryNameProps(t *testing.T) {
	pt := geom.NewPolygonFlat(geom.XY, []float64{-71, -34, -70, -34, -70, -33, -71, -33, -71, -34}, []int{10})
	layer := &vector.Layer{Features: []vector.Feature{{
		Props: map[string]any{"comuna": "San Joaquín", "source": "oficial"},
		Geom:  pt,
	}}}
	cols := propColumns(layer)
	assert.Contains(t, cols, "comuna")
}
