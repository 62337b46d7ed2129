package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/chrisdamba/trafikcam/internal/control"
	"github.com/chrisdamba/trafikcam/internal/coordinator"
	"github.com/chrisdamba/trafikcam/internal/detector"
	"github.com/chrisdamba/trafikcam/internal/metrics"
	"github.com/chrisdamba/trafikcam/internal/output"
	"github.com/chrisdamba/trafikcam/internal/server"
	"github.com/chrisdamba/trafikcam/internal/trafikverket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Monitor the configured cameras",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func run(ctx context.Context) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(reg)

	det, err := detector.New(cfg.Detector, logger)
	if err != nil {
		return err
	}
	client := trafikverket.NewClient(cfg.TrafikverketURL, cfg.APIKey, nil, logger)
	images := coordinator.NewHTTPImageFetcher(&http.Client{}, cfg.ImageTimeout)

	sinks, err := output.NewSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sinks.Close()

	manager := coordinator.NewManager(func(location string) *coordinator.RefreshCoordinator {
		return coordinator.NewRefreshCoordinator(coordinator.Options{
			Location: location,
			Source:   client,
			Images:   images,
			Detector: det,
			History:  store,
			Sinks:    sinks.Sinks,
			Metrics:  collector,
			Logger:   logger,
			Interval: cfg.UpdateInterval,
		})
	}, collector, logger)

	for _, location := range cfg.Cameras {
		if _, err := manager.Add(ctx, location); err != nil {
			switch {
			case coordinator.IsFatal(err):
				return err
			case errors.Is(err, coordinator.ErrSetupRetry):
				// retried once the manager runs
			default:
				logger.Error("camera_add_failed", "location", location, "err", err)
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.Run(gctx)
	})

	if cfg.HTTP.Enabled {
		srv := server.New(server.Options{
			Cameras:   manager,
			History:   store,
			Catalog:   client,
			Gatherer:  reg,
			Logger:    logger,
			AccessLog: os.Stdout,
		})
		g.Go(func() error {
			return srv.Run(gctx, cfg.HTTP.Bind)
		})
	}

	if cfg.Control.Enabled {
		consumer, err := control.NewConsumer(cfg.Control, manager, logger)
		if err != nil {
			return err
		}
		defer consumer.Close()
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	logger.Info("trafikcam_started", "cameras", manager.Locations(), "pending", manager.Pending(), "interval", cfg.UpdateInterval)
	err = g.Wait()
	logger.Info("trafikcam_stopped")
	return err
}
