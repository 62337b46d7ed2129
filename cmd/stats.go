package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/chrisdamba/trafikcam/internal/classifier"
	"github.com/chrisdamba/trafikcam/internal/models"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <location>",
	Short: "Print the recorded car counts of a location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		location := args[0]
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")

		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		var points []models.StatPoint
		if from == "" && to == "" {
			points, err = store.Query(cmd.Context(), location)
		} else {
			start, end, perr := models.ParseRange(from, to, time.Now())
			if perr != nil {
				return perr
			}
			points, err = store.QueryRange(cmd.Context(), location, start, end)
		}
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tCARS")
		for _, p := range points {
			fmt.Fprintf(w, "%s\t%d\n", p.Time, p.CarCount)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if len(points) > 0 {
			latest := points[len(points)-1].CarCount
			level := classifier.Classify(latest, models.Counts(points))
			fmt.Printf("\n%d observations, latest %d cars: %s\n", len(points), latest, level)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().String("from", "", "start of the range (inclusive)")
	statsCmd.Flags().String("to", "", "end of the range (inclusive, default now)")
	rootCmd.AddCommand(statsCmd)
}
