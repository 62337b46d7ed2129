package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/chrisdamba/trafikcam/internal/models"
	"github.com/chrisdamba/trafikcam/internal/repositories"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsRetryableError(t *testing.T) {
	testCases := []struct {
		err      error
		expected bool
	}{
		{err: nil, expected: false},
		{err: errors.New("boom"), expected: false},
		{err: &pgconn.PgError{Code: "40001"}, expected: true},
		{err: fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"}), expected: true},
		{err: &pgconn.PgError{Code: "55P03"}, expected: true},
		{err: &pgconn.PgError{Code: "23514"}, expected: false},
	}
	for _, tc := range testCases {
		if got := isRetryableError(tc.err); got != tc.expected {
			t.Errorf("isRetryableError(%v) = %v, expected %v", tc.err, got, tc.expected)
		}
	}
}

func TestAppendValidatesBeforeTouchingDatabase(t *testing.T) {
	// a nil pool would panic if the insert was attempted
	repo := &HistoryRepository{}
	err := repo.Append(context.Background(), models.Observation{Location: "E6", CarCount: -3})
	if !errors.Is(err, repositories.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

// TestHistoryRepositoryIntegration runs against a real database when
// TRAFIKCAM_TEST_DSN is set.
func TestHistoryRepositoryIntegration(t *testing.T) {
	dsn := os.Getenv("TRAFIKCAM_TEST_DSN")
	if dsn == "" {
		t.Skip("TRAFIKCAM_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := Connect(ctx, dsn, 2)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer repo.Close()

	location := fmt.Sprintf("test-%d", time.Now().UnixNano())
	defer repo.pool.Exec(context.Background(), "DELETE FROM traffic_amount WHERE location = $1", location)

	empty, err := repo.Query(ctx, location)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty history, got %v (%v)", empty, err)
	}

	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	counts := []int{3, 0, 7}
	for i, c := range counts {
		obs := models.Observation{Location: location, Time: start.Add(time.Duration(i) * time.Hour), CarCount: c}
		if err := repo.Append(ctx, obs); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	points, err := repo.Query(ctx, location)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(points) != len(counts) {
		t.Fatalf("expected %d points, got %d", len(counts), len(points))
	}
	for i, p := range points {
		if p.CarCount != counts[i] {
			t.Errorf("point %d: expected %d, got %d", i, counts[i], p.CarCount)
		}
	}

	ranged, err := repo.QueryRange(ctx, location, start.Add(time.Hour), start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("QueryRange failed: %v", err)
	}
	if len(ranged) != 2 || ranged[0].CarCount != 0 {
		t.Errorf("unexpected range result %v", ranged)
	}

	n, err := repo.Count(ctx, location)
	if err != nil || n != 3 {
		t.Errorf("expected count 3, got %d (%v)", n, err)
	}
}
