package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/config"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/pipeline"
)

var downloadFlags struct {
	comuna     string
	output     string
	sources    []string
	skipWFS    bool
	wfsURL     string
	dpaURL     string
	censoURL   string
	minvuURL   string
	minvuLocal string
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download all source data for one comuna",
	Long: `Resolves the comuna boundary (WFS, DPA archive, Nominatim), then
acquires SRTM elevation tiles, Sentinel-2 bands, OSM layers, census
manzanas and microdata, and the MINVU land-use archive. Sources run
concurrently and individual failures do not abort the run; already
present artifacts are never re-downloaded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyDownloadOverrides(cfg)
		if err := cfg.Validate("download"); err != nil {
			return err
		}

		d := pipeline.NewDownloader(cfg)
		summary, err := d.Run(cmd.Context(), pipeline.DownloadOptions{
			Comuna:     downloadFlags.comuna,
			Sources:    downloadFlags.sources,
			SkipWFS:    downloadFlags.skipWFS,
			MinvuLocal: downloadFlags.minvuLocal,
		})
		if summary != nil {
			fmt.Print(summary.Table())
		}
		return err
	},
}

// applyDownloadOverrides pushes flag values over the config defaults.
func applyDownloadOverrides(c *config.Config) {
	if downloadFlags.output != "" {
		c.Data.RawDir = downloadFlags.output
	}
	if downloadFlags.wfsURL != "" {
		c.Sources.WFSURL = downloadFlags.wfsURL
	}
	if downloadFlags.dpaURL != "" {
		c.Sources.DPAURL = downloadFlags.dpaURL
	}
	if downloadFlags.censoURL != "" {
		c.Sources.CensoManzanasURL = downloadFlags.censoURL
	}
	if downloadFlags.minvuURL != "" {
		c.Sources.MinvuURL = downloadFlags.minvuURL
	}
}

func init() {
	downloadCmd.Flags().StringVar(&downloadFlags.comuna, "comuna", "", "comuna name (required)")
	downloadCmd.Flags().StringVar(&downloadFlags.output, "output", "", "output directory for raw artifacts")
	downloadCmd.Flags().StringSliceVar(&downloadFlags.sources, "sources", nil,
		"sources to download (srtm,sentinel2,osm,ine_manzanas_censales,ine_censo2017,minvu); default all")
	downloadCmd.Flags().BoolVar(&downloadFlags.skipWFS, "skip-wfs", false, "skip the WFS boundary source")
	downloadCmd.Flags().StringVar(&downloadFlags.wfsURL, "wfs-url", "", "override WFS endpoint")
	downloadCmd.Flags().StringVar(&downloadFlags.dpaURL, "dpa-url", "", "override DPA archive URL")
	downloadCmd.Flags().StringVar(&downloadFlags.censoURL, "censo-url", "", "override census manzanas FeatureServer layer URL")
	downloadCmd.Flags().StringVar(&downloadFlags.minvuURL, "minvu-url", "", "override MINVU land-use archive URL")
	downloadCmd.Flags().StringVar(&downloadFlags.minvuLocal, "minvu-local", "", "local MINVU file (zip/shp/geojson) instead of downloading")
	_ = downloadCmd.MarkFlagRequired("comuna")

	rootCmd.AddCommand(downloadCmd)
}
