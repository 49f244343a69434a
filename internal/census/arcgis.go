package census

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/area"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/fetcher"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

// ManzanasClient queries an ArcGIS FeatureService layer for the census
// block polygons of one comuna. layerURL points at the layer itself
// (ending in /FeatureServer/<id>), not at its /query endpoint.
type ManzanasClient struct {
	http     fetcher.Fetcher
	layerURL string
	log      *zap.Logger
}

func NewManzanasClient(httpFetcher fetcher.Fetcher, layerURL string) *ManzanasClient {
	return &ManzanasClient{
		http:     httpFetcher,
		layerURL: strings.TrimRight(layerURL, "/"),
		log:      zap.L().Named("censo_manzanas"),
	}
}

// Fetch tries name variants against the layer's COMUNA field until one
// WHERE clause returns features: the name as given, its accent-stripped
// form, then a prefix LIKE on the first word. Returns the features in
// WGS84, or an error when every clause comes back empty.
func (c *ManzanasClient) Fetch(ctx context.Context, comuna string, officialNames []string) (*vector.Layer, error) {
	if c.layerURL == "" {
		return nil, eris.New("census: no manzanas layer URL configured")
	}

	for _, where := range whereClauses(comuna, officialNames) {
		layer, err := c.query(ctx, where)
		if err != nil {
			c.log.Warn("manzanas query failed, trying next clause",
				zap.String("where", where),
				zap.Error(err),
			)
			continue
		}
		if len(layer.Features) > 0 {
			c.log.Info("manzanas fetched",
				zap.String("where", where),
				zap.Int("features", len(layer.Features)),
			)
			layer.Name = "manzanas_censales"
			return layer, nil
		}
	}
	return nil, eris.Wrapf(fetcher.ErrSourceUnavailable, "census: no manzanas matched comuna %q", comuna)
}

func (c *ManzanasClient) query(ctx context.Context, where string) (*vector.Layer, error) {
	params := url.Values{}
	params.Set("where", where)
	params.Set("outFields", "*")
	params.Set("returnGeometry", "true")
	params.Set("f", "geojson")
	params.Set("outSR", "4326")

	body, err := c.http.Download(ctx, c.layerURL+"/query?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrap(err, "census: read manzanas response")
	}
	return vector.ParseGeoJSON(data, "manzanas_censales")
}

// whereClauses builds the ordered equality clauses for the comuna name
// variants, closed by a prefix LIKE as the loosest attempt. Single
// quotes are doubled for the ArcGIS SQL dialect.
func whereClauses(comuna string, officialNames []string) []string {
	variants := make([]string, 0, 2+len(officialNames))
	seen := make(map[string]bool)
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" || seen[strings.ToLower(v)] {
			return
		}
		seen[strings.ToLower(v)] = true
		variants = append(variants, v)
	}
	add(comuna)
	add(area.Normalize(comuna))
	for _, n := range officialNames {
		add(n)
		add(area.Normalize(n))
	}

	clauses := make([]string, 0, 2*len(variants)+1)
	clauseSeen := make(map[string]bool)
	for _, v := range variants {
		for _, form := range []string{strings.ToUpper(v), strings.ToUpper(area.Normalize(v))} {
			clause := fmt.Sprintf("UPPER(COMUNA)='%s'", strings.ReplaceAll(form, "'", "''"))
			if clauseSeen[clause] {
				continue
			}
			clauseSeen[clause] = true
			clauses = append(clauses, clause)
		}
	}

	if words := strings.Fields(area.Normalize(comuna)); len(words) > 0 {
		clauses = append(clauses, fmt.Sprintf("UPPER(COMUNA) LIKE '%s%%'",
			strings.ReplaceAll(words[0], "'", "''")))
	}
	return clauses
}
