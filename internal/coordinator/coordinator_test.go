package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/chrisdamba/trafikcam/internal/detector"
	"github.com/chrisdamba/trafikcam/internal/metrics"
	"github.com/chrisdamba/trafikcam/internal/models"
	"github.com/chrisdamba/trafikcam/internal/repositories/memory"
	"github.com/chrisdamba/trafikcam/internal/trafikverket"
	"github.com/prometheus/client_golang/prometheus"
)

var photoTime = time.Date(2024, 3, 1, 7, 15, 0, 0, time.UTC)

type stubSource struct {
	mu   sync.Mutex
	info models.CameraInfo
	err  error
}

func (s *stubSource) GetCamera(ctx context.Context, location string) (models.CameraInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.CameraInfo{}, s.err
	}
	info := s.info
	info.Name = location
	return info, nil
}

func (s *stubSource) set(info models.CameraInfo, err error) {
	s.mu.Lock()
	s.info, s.err = info, err
	s.mu.Unlock()
}

type stubImages struct {
	mu    sync.Mutex
	image []byte
	err   error
	urls  []string
}

func (s *stubImages) Fetch(ctx context.Context, url string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = append(s.urls, url)
	return s.image, s.err
}

type recordingSink struct {
	mu      sync.Mutex
	results []*models.CycleResult
	err     error
}

func (s *recordingSink) Publish(ctx context.Context, result *models.CycleResult, state models.CameraState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func cars(n int) detector.Func {
	return func(ctx context.Context, image []byte) ([]models.CarRectangle, error) {
		rects := make([]models.CarRectangle, n)
		for i := range rects {
			rects[i] = models.CarRectangle{X1: i, Y1: i, X2: i + 10, Y2: i + 10}
		}
		return rects, nil
	}
}

func withPhoto() models.CameraInfo {
	return models.CameraInfo{
		Location:  "E6",
		Active:    true,
		PhotoURL:  "https://cams.example/1.jpg",
		PhotoTime: photoTime,
	}
}

type fixture struct {
	source   *stubSource
	images   *stubImages
	history  *memory.HistoryRepository
	sink     *recordingSink
	registry *prometheus.Registry
	coord    *RefreshCoordinator
}

func newFixture(t *testing.T, det detector.Detector) *fixture {
	t.Helper()
	f := &fixture{
		source:   &stubSource{info: withPhoto()},
		images:   &stubImages{image: []byte{0xff, 0xd8, 0xff}},
		history:  memory.NewHistoryRepository(),
		sink:     &recordingSink{},
		registry: prometheus.NewRegistry(),
	}
	f.coord = NewRefreshCoordinator(Options{
		Location: "Kungsbacka",
		Source:   f.source,
		Images:   f.images,
		Detector: det,
		History:  f.history,
		Sinks:    []Sink{f.sink},
		Metrics:  metrics.New(f.registry),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Interval: 10 * time.Millisecond,
	})
	return f
}

func (f *fixture) seed(t *testing.T, counts ...int) {
	t.Helper()
	for i, n := range counts {
		obs := models.Observation{Location: "Kungsbacka", Time: photoTime.Add(-time.Duration(len(counts)-i) * time.Minute), CarCount: n}
		if err := f.history.Append(context.Background(), obs); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
}

func (f *fixture) stored(t *testing.T) []models.StatPoint {
	t.Helper()
	points, err := f.history.Query(context.Background(), "Kungsbacka")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	return points
}

func TestRefreshSuccess(t *testing.T) {
	f := newFixture(t, cars(6))
	f.seed(t, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5)
	if err := f.coord.Prime(context.Background()); err != nil {
		t.Fatalf("prime failed: %v", err)
	}

	result, err := f.coord.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if result.CarCount() != 6 {
		t.Errorf("expected 6 cars, got %d", result.CarCount())
	}
	if result.TrafficLevel != models.TrafficCritical {
		t.Errorf("expected Critical, got %s", result.TrafficLevel)
	}
	if result.ID == "" {
		t.Error("expected a cycle id")
	}

	points := f.stored(t)
	if len(points) != 11 {
		t.Fatalf("expected 11 stored points, got %d", len(points))
	}
	last := points[len(points)-1]
	if last.CarCount != 6 || last.Time != models.FormatTime(photoTime) {
		t.Errorf("unexpected appended point %+v", last)
	}

	state, ok := f.coord.State()
	if !ok {
		t.Fatal("expected a published state")
	}
	if !state.HasImage || len(state.CarRectangles) != 6 || len(state.Statistics) != 11 {
		t.Errorf("unexpected state %+v", state)
	}
	if state.TrafficLevel != models.TrafficCritical || state.CycleID != result.ID {
		t.Errorf("state does not match result: %+v", state)
	}
	if f.sink.count() != 1 {
		t.Errorf("expected one published cycle, got %d", f.sink.count())
	}
	if got := cycleCount(t, f.registry, metrics.OutcomeSuccess); got != 1 {
		t.Errorf("expected 1 successful cycle, got %v", got)
	}
}

func cycleCount(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "trafikcam_cycles_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRefreshNoPhoto(t *testing.T) {
	f := newFixture(t, cars(3))
	f.seed(t, 1, 2, 3)
	if err := f.coord.Prime(context.Background()); err != nil {
		t.Fatalf("prime failed: %v", err)
	}
	f.source.set(models.CameraInfo{Location: "E6", Active: true}, nil)

	result, err := f.coord.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if result.Image != nil || result.CarCount() != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if result.TrafficLevel != models.TrafficUnknown {
		t.Errorf("expected Unknown, got %s", result.TrafficLevel)
	}
	if len(f.images.urls) != 0 {
		t.Errorf("no image should be fetched, got %v", f.images.urls)
	}
	if len(f.stored(t)) != 3 {
		t.Error("no observation should be recorded without a photo")
	}

	state, _ := f.coord.State()
	if state.HasImage || len(state.Statistics) != 3 {
		t.Errorf("expected previous statistics and no image, got %+v", state)
	}
}

func TestRefreshUsesFullSizeURL(t *testing.T) {
	f := newFixture(t, cars(1))
	info := withPhoto()
	info.FullSizePhoto = true
	f.source.set(info, nil)

	if _, err := f.coord.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if len(f.images.urls) != 1 || f.images.urls[0] != "https://cams.example/1.jpg?type=fullsize" {
		t.Errorf("unexpected image urls %v", f.images.urls)
	}
}

func TestRefreshWithoutPhotoTimeUsesSentinel(t *testing.T) {
	f := newFixture(t, cars(2))
	info := withPhoto()
	info.PhotoTime = time.Time{}
	f.source.set(info, nil)

	if _, err := f.coord.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	points := f.stored(t)
	if len(points) != 1 || points[0].Time != models.FormatTime(models.UnknownPhotoTime) {
		t.Errorf("unexpected points %+v", points)
	}
}

func TestRefreshFailuresLeaveStateUnchanged(t *testing.T) {
	testCases := []struct {
		name     string
		setup    func(f *fixture)
		expected error
	}{
		{
			name: "image not found",
			setup: func(f *fixture) {
				f.images.err = errors.New("could not retrieve image: status 404")
			},
			expected: ErrUpdateFailed,
		},
		{
			name: "authentication rejected",
			setup: func(f *fixture) {
				f.source.set(models.CameraInfo{}, fmt.Errorf("%w: status 401", trafikverket.ErrInvalidAuthentication))
			},
			expected: ErrAuthFailed,
		},
		{
			name: "camera missing",
			setup: func(f *fixture) {
				f.source.set(models.CameraInfo{}, trafikverket.ErrNoCameraFound)
			},
			expected: ErrUpdateFailed,
		},
		{
			name: "detector failure",
			setup: func(f *fixture) {
				f.coord.detector = detector.Func(func(context.Context, []byte) ([]models.CarRectangle, error) {
					return nil, errors.New("model crashed")
				})
			},
			expected: ErrDetectionFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, cars(4))
			if _, err := f.coord.Refresh(context.Background()); err != nil {
				t.Fatalf("first refresh failed: %v", err)
			}
			before, _ := f.coord.State()

			tc.setup(f)
			result, err := f.coord.Refresh(context.Background())
			if !errors.Is(err, tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, err)
			}
			if result != nil {
				t.Errorf("expected no result, got %+v", result)
			}
			if len(f.stored(t)) != 1 {
				t.Errorf("failed cycle must not record an observation")
			}
			after, _ := f.coord.State()
			if after.CycleID != before.CycleID {
				t.Error("failed cycle replaced the published state")
			}
			if f.sink.count() != 1 {
				t.Errorf("failed cycle was published")
			}
			if IsFatal(err) != errors.Is(tc.expected, ErrAuthFailed) {
				t.Errorf("unexpected fatality for %v", err)
			}
		})
	}
}

func TestRefreshSinkErrorDoesNotFailCycle(t *testing.T) {
	f := newFixture(t, cars(1))
	f.sink.err = errors.New("broker down")

	if _, err := f.coord.Refresh(context.Background()); err != nil {
		t.Fatalf("sink failure must not fail the cycle: %v", err)
	}
	if _, ok := f.coord.State(); !ok {
		t.Error("expected state to be published")
	}
}

func TestRefreshImageTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := newFixture(t, cars(1))
	f.coord.images = NewHTTPImageFetcher(srv.Client(), 50*time.Millisecond)
	info := withPhoto()
	info.PhotoURL = srv.URL + "/cam.jpg"
	f.source.set(info, nil)

	start := time.Now()
	_, err := f.coord.Refresh(context.Background())
	if !errors.Is(err, ErrUpdateFailed) {
		t.Fatalf("expected ErrUpdateFailed, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("image fetch was not bounded by the timeout")
	}
}

func TestRunStopsOnAuthFailure(t *testing.T) {
	f := newFixture(t, cars(1))
	f.source.set(models.CameraInfo{}, trafikverket.ErrInvalidAuthentication)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.coord.Run(ctx); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestRunContinuesAfterTransientFailure(t *testing.T) {
	f := newFixture(t, cars(1))
	f.images.err = errors.New("status 503")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := f.coord.Run(ctx); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
	if got := cycleCount(t, f.registry, metrics.OutcomeTransient); got < 2 {
		t.Errorf("expected repeated attempts, got %v", got)
	}
}

func TestHTTPImageFetcherStatus(t *testing.T) {
	testCases := []struct {
		status int
		ok     bool
	}{
		{http.StatusOK, true},
		{http.StatusNoContent, true},
		{http.StatusNotFound, false},
		{http.StatusInternalServerError, false},
	}
	for _, tc := range testCases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				if tc.status == http.StatusOK {
					w.Write([]byte("jpeg"))
				}
			}))
			defer srv.Close()

			image, err := NewHTTPImageFetcher(srv.Client(), time.Second).Fetch(context.Background(), srv.URL)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected error for status %d", tc.status)
			}
			if tc.status == http.StatusOK && string(image) != "jpeg" {
				t.Errorf("unexpected body %q", image)
			}
		})
	}
}
