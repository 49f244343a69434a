package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/db"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/pipeline"
)

var processFlags struct {
	loadVectors     bool
	ingestMinimum   bool
	demDerivatives  bool
	ndvi            bool
	joinCenso       bool
	joinUsoSuelo    bool
	unifyUsoSuelo   bool
	networkMetrics  bool
	metrics         bool
	ingestProcessed bool
	all             bool

	schema          string
	processedSchema string
	srid            int
	index           bool
	censoKey        string
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Derive rasters, join attributes and load PostGIS",
	Long: `Runs the selected processing stages over a download run's artifacts:
vector loading, land-use unification, census join, slope/aspect, NDVI,
zoning aggregates, network centrality, the per-manzana metrics table
and the raster catalog. With no stage flags, --all is assumed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyProcessOverrides()
		if err := cfg.Validate("process"); err != nil {
			return err
		}

		pool, err := db.Connect(cmd.Context(), cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		opts := processOptions()
		p := pipeline.NewProcessor(cfg, pool)
		summary, err := p.Run(cmd.Context(), opts)
		if summary != nil {
			fmt.Print(summary.Table())
		}
		return err
	},
}

func processOptions() pipeline.ProcessOptions {
	f := &processFlags
	selected := f.loadVectors || f.ingestMinimum || f.demDerivatives || f.ndvi || f.joinCenso ||
		f.joinUsoSuelo || f.unifyUsoSuelo || f.networkMetrics || f.metrics || f.ingestProcessed
	all := f.all || !selected

	return pipeline.ProcessOptions{
		LoadVectors:     all || f.loadVectors,
		IngestMinimum:   f.ingestMinimum,
		UnifyUsoSuelo:   all || f.unifyUsoSuelo,
		JoinCenso:       all || f.joinCenso,
		DEMDerivatives:  all || f.demDerivatives,
		NDVI:            all || f.ndvi,
		JoinUsoSuelo:    all || f.joinUsoSuelo,
		NetworkMetrics:  all || f.networkMetrics,
		Metrics:         all || f.metrics,
		IngestProcessed: all || f.ingestProcessed,
		CensoKey:        f.censoKey,
		SpatialIndex:    f.index,
	}
}

func applyProcessOverrides() {
	if processFlags.schema != "" {
		cfg.Store.Schema = processFlags.schema
	}
	if processFlags.processedSchema != "" {
		cfg.Store.ProcessedSchema = processFlags.processedSchema
	}
	if processFlags.srid > 0 {
		cfg.Raster.TargetSRID = processFlags.srid
	}
}

func init() {
	processCmd.Flags().BoolVar(&processFlags.loadVectors, "load-vectors", false, "load raw vector layers into PostGIS")
	processCmd.Flags().BoolVar(&processFlags.ingestMinimum, "ingest-minimum", false, "load only the boundary and manzanas layers")
	processCmd.Flags().BoolVar(&processFlags.demDerivatives, "dem-derivatives", false, "compute slope and aspect from the DEM")
	processCmd.Flags().BoolVar(&processFlags.ndvi, "ndvi", false, "compute NDVI from the Sentinel-2 band pair")
	processCmd.Flags().BoolVar(&processFlags.joinCenso, "join-censo", false, "join census microdata onto manzanas")
	processCmd.Flags().BoolVar(&processFlags.joinUsoSuelo, "join-uso-suelo", false, "aggregate zoning intersections per manzana")
	processCmd.Flags().BoolVar(&processFlags.unifyUsoSuelo, "unify-uso-suelo", false, "unify MINVU regulatory-plan shapefiles")
	processCmd.Flags().BoolVar(&processFlags.networkMetrics, "network-metrics", false, "compute street network centrality")
	processCmd.Flags().BoolVar(&processFlags.metrics, "metrics", false, "build the per-manzana metrics table")
	processCmd.Flags().BoolVar(&processFlags.ingestProcessed, "ingest-processed", false, "refresh the raster catalog")
	processCmd.Flags().BoolVar(&processFlags.all, "all", false, "run every stage")
	processCmd.Flags().StringVar(&processFlags.schema, "schema", "", "raw relations schema")
	processCmd.Flags().StringVar(&processFlags.processedSchema, "processed-schema", "", "processed relations schema")
	processCmd.Flags().IntVar(&processFlags.srid, "srid", 0, "metric target SRID")
	processCmd.Flags().BoolVar(&processFlags.index, "index", false, "create GIST indexes on loaded geometries")
	processCmd.Flags().StringVar(&processFlags.censoKey, "censo-key", "", "explicit census join key column")

	rootCmd.AddCommand(processCmd)
}
