package raster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNDVI_KnownValues(t *testing.T) {
	red := testGrid(t, 2, 2, []float64{100, 200, 300, 500})
	nir := testGrid(t, 2, 2, []float64{300, 200, 100, 500})

	out, err := NDVI(red, nir)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, out.At(0, 0), 1e-9)  // (300-100)/400
	assert.InDelta(t, 0.0, out.At(1, 0), 1e-9)  // equal bands
	assert.InDelta(t, -0.5, out.At(0, 1), 1e-9) // (100-300)/400
	assert.InDelta(t, 0.0, out.At(1, 1), 1e-9)
}

func TestNDVI_RangeBound(t *testing.T) {
	red := testGrid(t, 2, 2, []float64{0, 1000, 10, 990})
	nir := testGrid(t, 2, 2, []float64{1000, 0, 990, 10})

	out, err := NDVI(red, nir)
	require.NoError(t, err)

	for _, v := range out.Data {
		if out.IsNoData(v) {
			continue
		}
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestNDVI_NoDataPropagates(t *testing.T) {
	red := testGrid(t, 2, 1, []float64{-9999, 100})
	nir := testGrid(t, 2, 1, []float64{300, -9999})

	out, err := NDVI(red, nir)
	require.NoError(t, err)

	assert.True(t, out.IsNoData(out.At(0, 0)))
	assert.True(t, out.IsNoData(out.At(1, 0)))
}

func TestNDVI_ZeroDenominator(t *testing.T) {
	red := testGrid(t, 1, 1, []float64{0})
	nir := testGrid(t, 1, 1, []float64{0})

	out, err := NDVI(red, nir)
	require.NoError(t, err)

	assert.True(t, out.IsNoData(out.At(0, 0)))
}

func TestNDVI_MisalignedBandsRefused(t *testing.T) {
	red := testGrid(t, 2, 2, []float64{1, 2, 3, 4})
	nir := NewGrid(3, 2, [6]float64{-71, 0.01, 0, -33, 0, -0.01}, -9999)

	_, err := NDVI(red, nir)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrIncompatibleBandPair))
}

func TestNDVI_ShiftedOriginRefused(t *testing.T) {
	red := testGrid(t, 2, 2, []float64{1, 2, 3, 4})
	nir := NewGrid(2, 2, [6]float64{-70.5, 0.01, 0, -33, 0, -0.01}, -9999)

	_, err := NDVI(red, nir)
	assert.True(t, eris.Is(err, ErrIncompatibleBandPair))
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestDiscoverBandPair_KnownStems(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "sentinel_B04.tif"))
	touch(t, filepath.Join(dir, "sentinel_B08.tif"))

	pair, err := DiscoverBandPair(dir)
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, filepath.Join(dir, "sentinel_B04.tif"), pair.Red)
	assert.Equal(t, filepath.Join(dir, "sentinel_B08.tif"), pair.NIR)
}

func TestDiscoverBandPair_GlobFallback(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "escena_20260115_B04.tif"))
	touch(t, filepath.Join(dir, "escena_20260115_B08.tif"))

	pair, err := DiscoverBandPair(dir)
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, filepath.Join(dir, "escena_20260115_B08.tif"), pair.NIR)
}

func TestDiscoverBandPair_RedWithoutNIR(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "escena_B04.tif"))

	pair, err := DiscoverBandPair(dir)
	require.NoError(t, err)
	assert.Nil(t, pair)
}

func TestDiscoverBandPair_EmptyDir(t *testing.T) {
	pair, err := DiscoverBandPair(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, pair)
}
