// Package simulator generates plausible traffic history for a camera
// location, shaped by time of day, so the classifier has a distribution
// to rank against before real observations have accumulated.
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/chrisdamba/trafikcam/internal/models"
	"github.com/jaswdr/faker"
)

// Recorder is where generated observations are appended.
type Recorder interface {
	Append(ctx context.Context, obs models.Observation) error
}

type Config struct {
	Location string
	Start    time.Time
	Interval time.Duration
	Count    int
	// Capacity is the car count of a fully congested image.
	Capacity int
	// Seed makes the generated series reproducible when non-zero.
	Seed int64
}

type Simulator struct {
	recorder Recorder
	fake     faker.Faker
	cfg      Config
	logger   *slog.Logger
}

func NewSimulator(recorder Recorder, cfg Config, logger *slog.Logger) (*Simulator, error) {
	if cfg.Location == "" {
		return nil, fmt.Errorf("location is required")
	}
	if cfg.Count < 0 {
		return nil, fmt.Errorf("count must not be negative, got %d", cfg.Count)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = models.DefaultUpdateInterval
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 20
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now().UTC().Add(-time.Duration(cfg.Count) * cfg.Interval)
	}
	if logger == nil {
		logger = slog.Default()
	}

	fake := faker.New()
	if cfg.Seed != 0 {
		fake = faker.NewWithSeed(rand.NewSource(cfg.Seed))
	}
	return &Simulator{recorder: recorder, fake: fake, cfg: cfg, logger: logger}, nil
}

// Observation generates the observation for step i of the series.
func (s *Simulator) Observation(i int) models.Observation {
	t := s.cfg.Start.Add(time.Duration(i) * s.cfg.Interval)
	cars := int(math.Round(trafficDensity(s.fake, t) * float64(s.cfg.Capacity)))
	return models.Observation{Location: s.cfg.Location, Time: t, CarCount: cars}
}

// Run appends the configured number of observations and returns how many
// were written.
func (s *Simulator) Run(ctx context.Context) (int, error) {
	for i := 0; i < s.cfg.Count; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := s.recorder.Append(ctx, s.Observation(i)); err != nil {
			return i, fmt.Errorf("failed to record observation %d: %w", i, err)
		}
	}
	s.logger.Info("history_seeded", "location", s.cfg.Location, "observations", s.cfg.Count,
		"from", s.cfg.Start, "interval", s.cfg.Interval)
	return s.cfg.Count, nil
}
