package cmd

import (
	"fmt"
	"os"

	"github.com/chrisdamba/trafikcam/internal/cloudwriter"
	"github.com/chrisdamba/trafikcam/internal/export"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write recorded history to Parquet files",
	RunE: func(cmd *cobra.Command, args []string) error {
		locations, _ := cmd.Flags().GetStringSlice("location")
		if out, _ := cmd.Flags().GetString("out"); out != "" {
			cfg.Export.OutputPath = out
		}

		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		opts := export.Options{
			OutputPath: cfg.Export.OutputPath,
			Progress:   os.Stderr,
			Logger:     logger,
		}
		if cfg.Export.Destination == "cloud" {
			storage := cfg.Export.CloudStorage
			factory, err := cloudwriter.NewFactory(cmd.Context(), storage)
			if err != nil {
				return fmt.Errorf("failed to create cloud writer factory: %w", err)
			}
			opts.Cloud = factory
			opts.Bucket = storage.BucketName
			opts.Prefix = storage.Prefix
		}

		results, err := export.NewExporter(store, opts).Export(cmd.Context(), locations...)
		for _, r := range results {
			fmt.Printf("%s\t%d rows\t%s\n", r.Location, r.Rows, r.Path)
		}
		return err
	},
}

func init() {
	exportCmd.Flags().StringSlice("location", nil, "locations to export (default all)")
	exportCmd.Flags().String("out", "", "output directory (overrides export.output_path)")
	rootCmd.AddCommand(exportCmd)
}
