package fetcher

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMirrorTestFetcher() *MirrorFetcher {
	httpF := NewHTTPFetcher(HTTPOptions{
		UserAgent:  "test-agent",
		Timeout:    5 * time.Second,
		MaxRetries: 1,
	})
	return NewMirrorFetcher(httpF, nil)
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(data)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func zipBytes(t *testing.T, name string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestMirrorFetch_FirstMirrorWins(t *testing.T) {
	var hits1, hits2 atomic.Int32
	srv1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits1.Add(1)
		w.Write([]byte("payload from mirror one"))
	}))
	defer srv1.Close()
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits2.Add(1)
		w.Write([]byte("payload from mirror two"))
	}))
	defer srv2.Close()

	m := newMirrorTestFetcher()
	dir := t.TempDir()
	res := Resource{Name: "test", CachePath: filepath.Join(dir, "out.dat")}

	attempted, err := m.Fetch(context.Background(), res, []Mirror{
		{URL: srv1.URL + "/a"},
		{URL: srv2.URL + "/b"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)
	assert.Equal(t, int32(1), hits1.Load())
	assert.Equal(t, int32(0), hits2.Load(), "later mirrors must not be contacted after a success")

	data, err := os.ReadFile(res.CachePath)
	require.NoError(t, err)
	assert.Equal(t, "payload from mirror one", string(data))
}

func TestMirrorFetch_AdvancesOnFailure(t *testing.T) {
	srvBad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srvBad.Close()
	srvGood := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("recovered payload"))
	}))
	defer srvGood.Close()

	m := newMirrorTestFetcher()
	dir := t.TempDir()
	res := Resource{Name: "test", CachePath: filepath.Join(dir, "out.dat")}

	attempted, err := m.Fetch(context.Background(), res, []Mirror{
		{URL: srvBad.URL + "/missing"},
		{URL: srvGood.URL + "/ok"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempted)

	data, _ := os.ReadFile(res.CachePath)
	assert.Equal(t, "recovered payload", string(data))
}

func TestMirrorFetch_AllExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	m := newMirrorTestFetcher()
	dir := t.TempDir()
	res := Resource{Name: "unreachable", CachePath: filepath.Join(dir, "out.dat")}

	attempted, err := m.Fetch(context.Background(), res, []Mirror{
		{URL: srv.URL + "/1"},
		{URL: srv.URL + "/2"},
		{URL: srv.URL + "/3"},
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrSourceUnavailable))
	assert.Equal(t, 3, attempted)
	assert.NoFileExists(t, res.CachePath)
}

func TestMirrorFetch_CacheShortCircuits(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	m := newMirrorTestFetcher()
	dir := t.TempDir()
	cache := filepath.Join(dir, "cached.dat")
	require.NoError(t, os.WriteFile(cache, []byte("already here"), 0o644))

	res := Resource{Name: "cached", CachePath: cache}
	attempted, err := m.Fetch(context.Background(), res, []Mirror{{URL: srv.URL}})
	require.NoError(t, err)
	assert.Equal(t, 0, attempted)
	assert.Equal(t, int32(0), hits.Load())

	data, _ := os.ReadFile(cache)
	assert.Equal(t, "already here", string(data), "cache file must not be overwritten")
}

func TestMirrorFetch_GzipPayload(t *testing.T) {
	payload := []byte("elevation tile contents")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(gzipBytes(t, payload))
	}))
	defer srv.Close()

	m := newMirrorTestFetcher()
	dir := t.TempDir()
	res := Resource{Name: "tile", CachePath: filepath.Join(dir, "S34W071.hgt")}

	_, err := m.Fetch(context.Background(), res, []Mirror{
		{URL: srv.URL + "/S34W071.hgt.gz", Compression: CompressionGzip},
	})
	require.NoError(t, err)

	data, _ := os.ReadFile(res.CachePath)
	assert.Equal(t, payload, data)
}

func TestMirrorFetch_ZipPayload(t *testing.T) {
	payload := []byte("zip entry contents")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(zipBytes(t, "S34W071.hgt", payload))
	}))
	defer srv.Close()

	m := newMirrorTestFetcher()
	dir := t.TempDir()
	res := Resource{
		Name:      "tile",
		CachePath: filepath.Join(dir, "S34W071.hgt"),
		Suffix:    ".hgt",
	}

	_, err := m.Fetch(context.Background(), res, []Mirror{
		{URL: srv.URL + "/S34W071.hgt.zip", Compression: CompressionZip},
	})
	require.NoError(t, err)

	data, _ := os.ReadFile(res.CachePath)
	assert.Equal(t, payload, data)
}

func TestMirrorFetch_CorruptGzipAdvances(t *testing.T) {
	srvCorrupt := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not gzip at all"))
	}))
	defer srvCorrupt.Close()
	payload := []byte("good tile")
	srvGood := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(gzipBytes(t, payload))
	}))
	defer srvGood.Close()

	m := newMirrorTestFetcher()
	dir := t.TempDir()
	res := Resource{Name: "tile", CachePath: filepath.Join(dir, "t.hgt")}

	attempted, err := m.Fetch(context.Background(), res, []Mirror{
		{URL: srvCorrupt.URL, Compression: CompressionGzip},
		{URL: srvGood.URL, Compression: CompressionGzip},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempted)

	data, _ := os.ReadFile(res.CachePath)
	assert.Equal(t, payload, data)
}

func TestMirrorFetch_TooSmallPayloadAdvances(t *testing.T) {
	srvTiny := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srvTiny.Close()

	m := newMirrorTestFetcher()
	dir := t.TempDir()
	res := Resource{Name: "tile", CachePath: filepath.Join(dir, "t.dat"), MinSize: 100}

	_, err := m.Fetch(context.Background(), res, []Mirror{{URL: srvTiny.URL}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrSourceUnavailable))
	assert.NoFileExists(t, res.CachePath)
}

func TestMirrorFetch_NoFTPTransport(t *testing.T) {
	m := newMirrorTestFetcher()
	dir := t.TempDir()
	res := Resource{Name: "tile", CachePath: filepath.Join(dir, "t.dat")}

	_, err := m.Fetch(context.Background(), res, []Mirror{
		{URL: "ftp://srtm.kurviger.de/SRTM3/S34W071.hgt.zip"},
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrSourceUnavailable))
}
