package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/chrisdamba/trafikcam/internal/cloudwriter"
	"github.com/chrisdamba/trafikcam/internal/coordinator"
	"github.com/chrisdamba/trafikcam/internal/models"
)

// Sinks holds the configured cycle sinks and the resources they own.
type Sinks struct {
	Sinks   []coordinator.Sink
	closers []io.Closer
}

func (s *Sinks) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewDestination builds one event destination by name.
func NewDestination(name string, cfg *models.Config, logger *slog.Logger) (Destination, error) {
	switch name {
	case models.OutputConsole:
		return NewConsoleOutput(os.Stdout), nil
	case models.OutputFile:
		return NewJSONOutput(cfg.Output.FilePath)
	case models.OutputKafka:
		if cfg.Kafka.UseLocal {
			return NewSaramaProducer(cfg.Kafka, logger)
		}
		return NewConfluentProducer(ConfluentConfigMap(cfg.Kafka), logger)
	default:
		return nil, fmt.Errorf("unsupported output destination: %s", name)
	}
}

// NewSinks builds the sinks selected by cfg.Output and cfg.Archive.
func NewSinks(ctx context.Context, cfg *models.Config, logger *slog.Logger) (*Sinks, error) {
	s := &Sinks{}
	var destinations []Destination
	fail := func(err error) (*Sinks, error) {
		for _, dest := range destinations {
			dest.Close()
		}
		s.Close()
		return nil, err
	}

	for _, name := range cfg.Output.Destinations {
		if name == models.OutputMQTT {
			client, err := NewMQTTClient(cfg.MQTT)
			if err != nil {
				return fail(err)
			}
			mqttSink := NewStatePublisher(client, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS)
			s.Sinks = append(s.Sinks, mqttSink)
			s.closers = append(s.closers, mqttSink)
			continue
		}

		dest, err := NewDestination(name, cfg, logger)
		if err != nil {
			return fail(err)
		}
		destinations = append(destinations, dest)
	}

	if len(destinations) > 0 {
		publisher := NewPublisher(models.TopicTrafficCycles, destinations...)
		s.Sinks = append(s.Sinks, publisher)
		s.closers = append(s.closers, publisher)
		destinations = nil
	}

	if cfg.Archive.Enabled {
		storage := cfg.Archive.CloudStorage
		factory, err := cloudwriter.NewFactory(ctx, storage)
		if err != nil {
			return fail(fmt.Errorf("failed to create cloud writer factory: %w", err))
		}
		s.Sinks = append(s.Sinks, NewArchiveSink(factory, storage.BucketName, storage.Prefix))
	}

	logger.Info("sinks_configured", "destinations", cfg.Output.Destinations, "archive", cfg.Archive.Enabled)
	return s, nil
}
