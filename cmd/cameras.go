package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/chrisdamba/trafikcam/internal/trafikverket"
	"github.com/spf13/cobra"
)

var camerasCmd = &cobra.Command{
	Use:   "cameras",
	Short: "List the traffic flow cameras available upstream",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.APIKey == "" {
			return errors.New("api_key is required")
		}
		client := trafikverket.NewClient(cfg.TrafikverketURL, cfg.APIKey, nil, logger)
		cameras, err := client.ListCameras(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tLOCATION\tDESCRIPTION\tDIRECTION")
		for _, c := range cameras {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.Location, c.Description, c.Direction)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(camerasCmd)
}
