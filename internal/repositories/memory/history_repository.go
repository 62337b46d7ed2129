package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chrisdamba/trafikcam/internal/models"
	"github.com/chrisdamba/trafikcam/internal/repositories"
)

// HistoryRepository keeps observations in process memory. Nothing survives
// a restart, so it is meant for tests and local runs.
type HistoryRepository struct {
	mu     sync.RWMutex
	series map[string][]models.StatPoint
}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{series: make(map[string][]models.StatPoint)}
}

func (r *HistoryRepository) Append(ctx context.Context, obs models.Observation) error {
	if err := repositories.ValidateObservation(obs); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.series[obs.Location] = append(r.series[obs.Location], models.StatPoint{
		Time:     models.FormatTime(obs.Time),
		CarCount: obs.CarCount,
	})
	return nil
}

func (r *HistoryRepository) Query(ctx context.Context, location string) ([]models.StatPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	points := make([]models.StatPoint, len(r.series[location]))
	copy(points, r.series[location])
	return points, nil
}

func (r *HistoryRepository) QueryRange(ctx context.Context, location string, start, end time.Time) ([]models.StatPoint, error) {
	from, to := models.FormatTime(start), models.FormatTime(end)

	r.mu.RLock()
	defer r.mu.RUnlock()

	points := make([]models.StatPoint, 0)
	for _, p := range r.series[location] {
		if p.Time >= from && p.Time <= to {
			points = append(points, p)
		}
	}
	return points, nil
}

func (r *HistoryRepository) Locations(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	locations := make([]string, 0, len(r.series))
	for location := range r.series {
		locations = append(locations, location)
	}
	sort.Strings(locations)
	return locations, nil
}

func (r *HistoryRepository) Close() {}
