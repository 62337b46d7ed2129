package cmd

import (
	"fmt"

	"github.com/chrisdamba/trafikcam/internal/models"
	"github.com/chrisdamba/trafikcam/internal/simulator"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed <location>",
	Short: "Record synthetic traffic history for a location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		interval, _ := cmd.Flags().GetDuration("interval")
		capacity, _ := cmd.Flags().GetInt("capacity")
		seed, _ := cmd.Flags().GetInt64("seed")
		start, _ := cmd.Flags().GetString("start")

		simCfg := simulator.Config{
			Location: args[0],
			Interval: interval,
			Count:    count,
			Capacity: capacity,
			Seed:     seed,
		}
		if start != "" {
			t, err := models.ParseTime(start)
			if err != nil {
				return fmt.Errorf("invalid start: %w", err)
			}
			simCfg.Start = t
		}

		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		sim, err := simulator.NewSimulator(store, simCfg, logger)
		if err != nil {
			return err
		}
		n, err := sim.Run(cmd.Context())
		fmt.Printf("recorded %d observations for %s\n", n, args[0])
		return err
	},
}

func init() {
	seedCmd.Flags().Int("count", 288, "number of observations")
	seedCmd.Flags().Duration("interval", models.DefaultUpdateInterval, "time between observations")
	seedCmd.Flags().Int("capacity", 20, "car count of a fully congested image")
	seedCmd.Flags().Int64("seed", 0, "random seed (0 for a random series)")
	seedCmd.Flags().String("start", "", "time of the first observation (default count*interval ago)")
	rootCmd.AddCommand(seedCmd)
}
