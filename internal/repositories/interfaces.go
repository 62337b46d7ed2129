package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrisdamba/trafikcam/internal/models"
)

// ErrInvalidInput is returned for observations that must never be stored.
var ErrInvalidInput = errors.New("invalid input")

// HistoryRepository is the append-only log of car counts per location.
type HistoryRepository interface {
	// Append records one observation. Negative car counts are rejected
	// with ErrInvalidInput.
	Append(ctx context.Context, obs models.Observation) error
	// Query returns every observation of location in insertion order. An
	// unknown location yields an empty slice.
	Query(ctx context.Context, location string) ([]models.StatPoint, error)
	// QueryRange is Query restricted to start <= time <= end.
	QueryRange(ctx context.Context, location string, start, end time.Time) ([]models.StatPoint, error)
	// Locations lists the locations with at least one observation.
	Locations(ctx context.Context) ([]string, error)
	Close()
}

// ValidateObservation checks the invariants shared by every driver.
func ValidateObservation(obs models.Observation) error {
	if obs.CarCount < 0 {
		return fmt.Errorf("%w: cannot have negative amount of cars (%d)", ErrInvalidInput, obs.CarCount)
	}
	return nil
}
