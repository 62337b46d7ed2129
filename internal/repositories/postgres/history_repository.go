package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrisdamba/trafikcam/internal/models"
	"github.com/chrisdamba/trafikcam/internal/repositories"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS traffic_amount (
    id       BIGSERIAL PRIMARY KEY,
    location TEXT NOT NULL,
    time     TEXT NOT NULL,
    nr_cars  INTEGER NOT NULL CHECK (nr_cars >= 0)
);
CREATE INDEX IF NOT EXISTS traffic_amount_location_idx ON traffic_amount (location, id);
`

const maxAppendRetries = 3

// HistoryRepository stores observations in the traffic_amount table.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository wraps an existing pool. Call EnsureSchema on a fresh database.
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Connect opens a pool for dsn and makes sure the schema exists.
func Connect(ctx context.Context, dsn string, maxConns int32) (*HistoryRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	repo := NewHistoryRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// EnsureSchema creates the traffic_amount table and index if missing.
func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create traffic_amount table: %w", err)
	}
	return nil
}

func (r *HistoryRepository) Append(ctx context.Context, obs models.Observation) error {
	if err := repositories.ValidateObservation(obs); err != nil {
		return err
	}

	query := `INSERT INTO traffic_amount (location, time, nr_cars) VALUES ($1, $2, $3)`

	var err error
	for i := 0; i < maxAppendRetries; i++ {
		_, err = r.pool.Exec(ctx, query, obs.Location, models.FormatTime(obs.Time), obs.CarCount)
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return fmt.Errorf("failed to insert traffic entry: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * 100 * time.Millisecond):
		}
	}
	return fmt.Errorf("failed to insert traffic entry after %d retries: %w", maxAppendRetries, err)
}

func (r *HistoryRepository) Query(ctx context.Context, location string) ([]models.StatPoint, error) {
	query := `
        SELECT time, nr_cars
        FROM traffic_amount
        WHERE location = $1
        ORDER BY id`

	return r.collect(ctx, query, location)
}

func (r *HistoryRepository) QueryRange(ctx context.Context, location string, start, end time.Time) ([]models.StatPoint, error) {
	query := `
        SELECT time, nr_cars
        FROM traffic_amount
        WHERE location = $1 AND time >= $2 AND time <= $3
        ORDER BY id`

	return r.collect(ctx, query, location, models.FormatTime(start), models.FormatTime(end))
}

func (r *HistoryRepository) Locations(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, "SELECT DISTINCT location FROM traffic_amount ORDER BY location")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []string
	for rows.Next() {
		var location string
		if err := rows.Scan(&location); err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}
	return locations, rows.Err()
}

// Count returns the number of observations recorded for location.
func (r *HistoryRepository) Count(ctx context.Context, location string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM traffic_amount WHERE location = $1", location).Scan(&count)
	return count, err
}

func (r *HistoryRepository) Close() {
	r.pool.Close()
}

func (r *HistoryRepository) collect(ctx context.Context, query string, args ...any) ([]models.StatPoint, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]models.StatPoint, 0)
	for rows.Next() {
		var p models.StatPoint
		if err := rows.Scan(&p.Time, &p.CarCount); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	switch pgErr.Code {
	case "40001", // serialization_failure
		"40P01", // deadlock_detected
		"55P03": // lock_not_available
		return true
	}
	return false
}
