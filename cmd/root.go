package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/chrisdamba/trafikcam/internal/models"
	"github.com/chrisdamba/trafikcam/internal/repositories"
	"github.com/chrisdamba/trafikcam/internal/repositories/memory"
	"github.com/chrisdamba/trafikcam/internal/repositories/postgres"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	cfg     *models.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "trafikcam",
	Short: "Monitors traffic cameras and classifies how busy the road is",
	Long: `trafikcam periodically fetches images from Trafikverket traffic cameras, counts the
vehicles in them, records the counts and ranks every new count against the history
of its location to report a traffic level from Low to Critical.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// a missing .env file is fine; the environment may be set already
		_ = godotenv.Load()

		var err error
		cfg, err = models.LoadConfig(viper.GetViper(), cfgFile)
		if err != nil {
			return err
		}
		logger, err = newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// openStore connects to the history store selected by the configuration.
func openStore(ctx context.Context, cfg *models.Config) (repositories.HistoryRepository, error) {
	switch cfg.Store.Driver {
	case models.StoreDriverMemory:
		logger.Warn("using in-memory history store; observations are lost on exit")
		return memory.NewHistoryRepository(), nil
	case models.StoreDriverPostgres:
		repo, err := postgres.Connect(ctx, cfg.Store.DSN, cfg.Store.MaxConns)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
