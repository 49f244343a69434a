package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BrancoGarciaS/laboratorio-integrador/internal/db"
	"github.com/BrancoGarciaS/laboratorio-integrador/internal/pipeline"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the raster catalog and census orphan count",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("status"); err != nil {
			return err
		}

		pool, err := db.Connect(cmd.Context(), cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		report, err := pipeline.Status(cmd.Context(), pool, cfg)
		if err != nil {
			return err
		}
		fmt.Print(report.Render())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
