// Package sentinel acquires Sentinel-2 L2A red/NIR bands for a comuna
// through a STAC API with SAS-token asset signing.
package sentinel

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/fetcher"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/vector"
)

const collection = "sentinel-2-l2a"

// Scene is one candidate acquisition with its band asset locations.
type Scene struct {
	ID         string
	CloudCover float64
	RedHref    string
	NIRHref    string
}

type stacAsset struct {
	Href string `json:"href"`
}

type stacItem struct {
	ID         string `json:"id"`
	Properties struct {
		CloudCover float64 `json:"eo:cloud_cover"`
	} `json:"properties"`
	Assets map[string]stacAsset `json:"assets"`
}

type stacSearchResponse struct {
	Features []stacItem `json:"features"`
}

type sasToken struct {
	Token string `json:"token"`
}

// Client talks to a STAC catalog and its SAS signing endpoint.
type Client struct {
	http fetcher.Fetcher
	log  *zap.Logger

	SearchURL string // e.g. https://planetarycomputer.microsoft.com/api/stac/v1/search
	SignURL   string // e.g. https://planetarycomputer.microsoft.com/api/sas/v1/token
	DaysBack  int
}

func NewClient(httpFetcher fetcher.Fetcher, searchURL, signURL string) *Client {
	return &Client{
		http:      httpFetcher,
		log:       zap.L().Named("sentinel"),
		SearchURL: searchURL,
		SignURL:   signURL,
		DaysBack:  90,
	}
}

// Search finds the lowest-cloud scene over the bbox within the lookback
// window that carries both B04 and B08. Returns nil when no scene
// qualifies; the caller treats that as a skippable source.
func (c *Client) Search(ctx context.Context, b vector.BBox, maxCloud float64) (*Scene, error) {
	end := time.Now().UTC().AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -c.DaysBack)

	q := url.Values{}
	q.Set("collections", collection)
	q.Set("bbox", fmt.Sprintf("%f,%f,%f,%f", b.MinX, b.MinY, b.MaxX, b.MaxY))
	q.Set("datetime", start.Format("2006-01-02")+"/"+end.Format("2006-01-02"))
	q.Set("limit", "20")

	body, err := c.http.Download(ctx, c.SearchURL+"?"+q.Encode())
	if err != nil {
		return nil, eris.Wrap(err, "sentinel: stac search")
	}
	defer body.Close() //nolint:errcheck

	resp, err := fetcher.DecodeJSONObject[stacSearchResponse](body)
	if err != nil {
		return nil, eris.Wrap(err, "sentinel: stac response")
	}

	items := resp.Features
	sort.Slice(items, func(i, j int) bool {
		return items[i].Properties.CloudCover < items[j].Properties.CloudCover
	})
	for _, it := range items {
		if it.Properties.CloudCover > maxCloud {
			break
		}
		red, nir := it.Assets["B04"], it.Assets["B08"]
		if red.Href == "" || nir.Href == "" {
			continue
		}
		c.log.Info("scene selected",
			zap.String("id", it.ID),
			zap.Float64("cloud_cover", it.Properties.CloudCover),
		)
		return &Scene{
			ID:         it.ID,
			CloudCover: it.Properties.CloudCover,
			RedHref:    red.Href,
			NIRHref:    nir.Href,
		}, nil
	}

	c.log.Warn("no scene within cloud threshold",
		zap.Float64("max_cloud", maxCloud),
		zap.Int("candidates", len(items)),
	)
	return nil, nil
}

// Sign obtains a SAS token for the collection and appends it to the
// asset href, which is how the catalog grants blob read access.
func (c *Client) Sign(ctx context.Context, href string) (string, error) {
	body, err := c.http.Download(ctx, c.SignURL+"/"+collection)
	if err != nil {
		return "", eris.Wrap(err, "sentinel: sas token")
	}
	defer body.Close() //nolint:errcheck

	tok, err := fetcher.DecodeJSONObject[sasToken](body)
	if err != nil {
		return "", eris.Wrap(err, "sentinel: sas response")
	}
	if tok.Token == "" {
		return "", eris.New("sentinel: empty sas token")
	}

	sep := "?"
	if strings.Contains(href, "?") {
		sep = "&"
	}
	return href + sep + tok.Token, nil
}
