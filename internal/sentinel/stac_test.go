package sentinel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/fetcher"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

func testBBox() vector.BBox {
	return vector.BBox{MinX: -70.8, MinY: -33.6, MaxX: -70.5, MaxY: -33.3}
}

func searchServer(t *testing.T, payload any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, collection, r.URL.Query().Get("collections"))
		assert.NotEmpty(t, r.URL.Query().Get("bbox"))
		assert.NotEmpty(t, r.URL.Query().Get("datetime"))
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
}

func sceneItem(id string, cloud float64, withBands bool) map[string]any {
	assets := map[string]any{}
	if withBands {
		assets["B04"] = map[string]any{"href": "https://blob/" + id + "/B04.tif"}
		assets["B08"] = map[string]any{"href": "https://blob/" + id + "/B08.tif"}
	}
	return map[string]any{
		"id":         id,
		"properties": map[string]any{"eo:cloud_cover": cloud},
		"assets":     assets,
	}
}

func TestSearch_PicksLowestCloud(t *testing.T) {
	srv := searchServer(t, map[string]any{"features": []any{
		sceneItem("cloudy", 18, true),
		sceneItem("clear", 3, true),
		sceneItem("mid", 9, true),
	}})
	defer srv.Close()

	c := NewClient(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), srv.URL, "")
	scene, err := c.Search(context.Background(), testBBox(), 20)
	require.NoError(t, err)
	require.NotNil(t, scene)

	assert.Equal(t, "clear", scene.ID)
	assert.Equal(t, 3.0, scene.CloudCover)
	assert.Contains(t, scene.RedHref, "/clear/B04.tif")
}

func TestSearch_SkipsSceneWithoutBands(t *testing.T) {
	srv := searchServer(t, map[string]any{"features": []any{
		sceneItem("clear-no-bands", 2, false),
		sceneItem("usable", 8, true),
	}})
	defer srv.Close()

	c := NewClient(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), srv.URL, "")
	scene, err := c.Search(context.Background(), testBBox(), 20)
	require.NoError(t, err)
	require.NotNil(t, scene)

	assert.Equal(t, "usable", scene.ID)
}

func TestSearch_AllAboveThreshold(t *testing.T) {
	srv := searchServer(t, map[string]any{"features": []any{
		sceneItem("a", 55, true),
		sceneItem("b", 80, true),
	}})
	defer srv.Close()

	c := NewClient(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), srv.URL, "")
	scene, err := c.Search(context.Background(), testBBox(), 20)
	require.NoError(t, err)

	assert.Nil(t, scene)
}

func TestSearch_EmptyCatalog(t *testing.T) {
	srv := searchServer(t, map[string]any{"features": []any{}})
	defer srv.Close()

	c := NewClient(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), srv.URL, "")
	scene, err := c.Search(context.Background(), testBBox(), 20)
	require.NoError(t, err)

	assert.Nil(t, scene)
}

func TestSign_AppendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+collection, r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{"token": "st=2026&sig=abc"}))
	}))
	defer srv.Close()

	c := NewClient(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), "", srv.URL)

	signed, err := c.Sign(context.Background(), "https://blob/scene/B04.tif")
	require.NoError(t, err)
	assert.Equal(t, "https://blob/scene/B04.tif?st=2026&sig=abc", signed)

	signed, err = c.Sign(context.Background(), "https://blob/scene/B04.tif?v=1")
	require.NoError(t, err)
	assert.Equal(t, "https://blob/scene/B04.tif?v=1&st=2026&sig=abc", signed)
}

func TestSign_EmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{"token": ""}))
	}))
	defer srv.Close()

	c := NewClient(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), "", srv.URL)

	_, err := c.Sign(context.Background(), "https://blob/x.tif")
	assert.Error(t, err)
}
