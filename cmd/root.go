package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "comuna-pipeline",
	Short: "Geospatial acquisition and derivation pipeline for Chilean comunas",
	Long:  "Downloads boundary, census, land-use, OSM and satellite data for one comuna, derives terrain and vegetation rasters, and loads everything into PostGIS.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
