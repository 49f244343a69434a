// Package osm pulls buildings, amenities and the road network for a
// comuna bbox from an Overpass API endpoint.
package osm

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/fetcher"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// Client queries Overpass QL over HTTP. Overpass bboxes are ordered
// (south, west, north, east).
type Client struct {
	http fetcher.Fetcher
	log  *zap.Logger

	URL string
}

func NewClient(httpFetcher fetcher.Fetcher, endpoint string) *Client {
	return &Client{
		http: httpFetcher,
		log:  zap.L().Named("osm"),
		URL:  endpoint,
	}
}

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      float64           `json:"lat"`
	Lon      float64           `json:"lon"`
	Tags     map[string]string `json:"tags"`
	Nodes    []int64           `json:"nodes"`
	Geometry []latLon          `json:"geometry"`
}

type overpassResponse struct {
	Elements []element `json:"elements"`
}

func (c *Client) run(ctx context.Context, query string) ([]element, error) {
	q := url.Values{}
	q.Set("data", query)

	body, err := c.http.Download(ctx, c.URL+"?"+q.Encode())
	if err != nil {
		return nil, eris.Wrap(err, "osm: overpass query")
	}
	defer body.Close() //nolint:errcheck

	resp, err := fetcher.DecodeJSONObject[overpassResponse](body)
	if err != nil {
		return nil, eris.Wrap(err, "osm: overpass response")
	}
	return resp.Elements, nil
}

func bboxClause(b vector.BBox) string {
	return fmt.Sprintf("(%f,%f,%f,%f)", b.MinY, b.MinX, b.MaxY, b.MaxX)
}

// Buildings fetches building footprints as a polygon layer.
func (c *Client) Buildings(ctx context.Context, b vector.BBox) (*vector.Layer, error) {
	query := fmt.Sprintf(
		`[out:json][timeout:120];(way["building"]%s;relation["building"]%s;);out geom;`,
		bboxClause(b), bboxClause(b))

	elems, err := c.run(ctx, query)
	if err != nil {
		return nil, err
	}
	layer := elementsToLayer("osm_buildings", elems)
	c.log.Info("buildings fetched", zap.Int("features", len(layer.Features)))
	return layer, nil
}

// Amenities fetches amenity points and areas.
func (c *Client) Amenities(ctx context.Context, b vector.BBox) (*vector.Layer, error) {
	query := fmt.Sprintf(
		`[out:json][timeout:120];(node["amenity"]%s;way["amenity"]%s;);out geom;`,
		bboxClause(b), bboxClause(b))

	elems, err := c.run(ctx, query)
	if err != nil {
		return nil, err
	}
	layer := elementsToLayer("osm_amenities", elems)
	c.log.Info("amenities fetched", zap.Int("features", len(layer.Features)))
	return layer, nil
}

// RoadNetwork fetches drivable ways with their node chains. The layer
// carries one LineString per consecutive node pair so downstream
// centrality can treat features directly as graph edges (props u, v,
// length, highway).
func (c *Client) RoadNetwork(ctx context.Context, b vector.BBox) (*vector.Layer, error) {
	query := fmt.Sprintf(
		`[out:json][timeout:180];way["highway"]%s;out geom;`,
		bboxClause(b))

	elems, err := c.run(ctx, query)
	if err != nil {
		return nil, err
	}
	layer := networkLayer(elems)
	c.log.Info("road network fetched", zap.Int("edges", len(layer.Features)))
	return layer, nil
}
