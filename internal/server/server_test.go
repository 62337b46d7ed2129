package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chrisdamba/trafikcam/internal/coordinator"
	"github.com/chrisdamba/trafikcam/internal/detector"
	"github.com/chrisdamba/trafikcam/internal/metrics"
	"github.com/chrisdamba/trafikcam/internal/models"
	"github.com/chrisdamba/trafikcam/internal/repositories/memory"
	"github.com/chrisdamba/trafikcam/internal/trafikverket"
	"github.com/prometheus/client_golang/prometheus"
)

var jpeg = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}

type stubSource struct{}

func (stubSource) GetCamera(ctx context.Context, location string) (models.CameraInfo, error) {
	if location == "Nowhere" {
		return models.CameraInfo{}, trafikverket.ErrNoCameraFound
	}
	return models.CameraInfo{
		Name:      location,
		Location:  "E6",
		Active:    true,
		PhotoURL:  "https://cams.example/" + location + ".jpg",
		PhotoTime: time.Date(2024, 3, 1, 7, 15, 0, 0, time.UTC),
	}, nil
}

type stubImages struct{}

func (stubImages) Fetch(ctx context.Context, url string) ([]byte, error) {
	return jpeg, nil
}

type stubCatalog struct{}

func (stubCatalog) ListCameras(ctx context.Context) ([]models.CameraInfo, error) {
	return []models.CameraInfo{{Name: "Kungsbacka", Location: "E6", Description: "Söderut"}}, nil
}

type testEnv struct {
	handler http.Handler
	manager *coordinator.Manager
	history *memory.HistoryRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	history := memory.NewHistoryRepository()
	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)

	factory := func(location string) *coordinator.RefreshCoordinator {
		return coordinator.NewRefreshCoordinator(coordinator.Options{
			Location: location,
			Source:   stubSource{},
			Images:   stubImages{},
			Detector: detector.Func(func(context.Context, []byte) ([]models.CarRectangle, error) {
				return []models.CarRectangle{{X1: 1, Y1: 2, X2: 30, Y2: 40}}, nil
			}),
			History: history,
			Metrics: collector,
			Logger:  logger,
		})
	}
	manager := coordinator.NewManager(factory, collector, logger)

	srv := New(Options{
		Cameras:  manager,
		History:  history,
		Catalog:  stubCatalog{},
		Gatherer: reg,
		Logger:   logger,
	})
	return &testEnv{handler: srv.Handler(), manager: manager, history: history}
}

func (e *testEnv) do(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}
}

func TestRequestIDIsPreserved(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("expected request id to be echoed, got %q", got)
	}
}

func TestCameraLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cameras", []byte(`{"location":"Kungsbacka"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var state map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if state["name"] != "Kungsbacka" || state["has_image"] != true {
		t.Errorf("unexpected state %v", state)
	}
	if _, ok := state["traffic_measure"]; !ok {
		t.Error("expected traffic_measure in state")
	}

	if rec := env.do(t, http.MethodPost, "/api/cameras", []byte(`{"location":"Kungsbacka"}`)); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/cameras/Kungsbacka", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/cameras/Kungsbacka/image", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("unexpected image response %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.Equal(rec.Body.Bytes(), jpeg) {
		t.Error("unexpected image body")
	}

	rec = env.do(t, http.MethodGet, "/api/cameras", nil)
	var states map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &states); err != nil || len(states) != 1 {
		t.Errorf("unexpected camera list %s", rec.Body)
	}

	if rec := env.do(t, http.MethodDelete, "/api/cameras/Kungsbacka", nil); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/cameras/Kungsbacka", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after removal, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/cameras/Kungsbacka", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 removing twice, got %d", rec.Code)
	}
}

func TestAddCameraErrors(t *testing.T) {
	env := newTestEnv(t)

	testCases := []struct {
		name   string
		body   string
		status int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"empty location", `{"location":"  "}`, http.StatusBadRequest},
		{"unknown camera is retried", `{"location":"Nowhere"}`, http.StatusAccepted},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := env.do(t, http.MethodPost, "/api/cameras", []byte(tc.body)); rec.Code != tc.status {
				t.Errorf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}
	if len(env.manager.Locations()) != 0 {
		t.Error("failed adds must not track cameras")
	}
	if pending := env.manager.Pending(); len(pending) != 1 || pending[0] != "Nowhere" {
		t.Errorf("expected Nowhere to be pending, got %v", pending)
	}
}

func TestStatistics(t *testing.T) {
	env := newTestEnv(t)
	base := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		obs := models.Observation{Location: "Kungsbacka", Time: base.Add(time.Duration(i) * time.Hour), CarCount: i}
		if err := env.history.Append(context.Background(), obs); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/cameras/Kungsbacka/statistics", nil)
	var points []models.StatPoint
	if err := json.Unmarshal(rec.Body.Bytes(), &points); err != nil || len(points) != 4 {
		t.Fatalf("unexpected statistics %s", rec.Body)
	}

	rec = env.do(t, http.MethodGet, "/api/cameras/Kungsbacka/statistics?from=2024-03-01T07:00:00Z&to=2024-03-01T08:00:00Z", nil)
	points = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &points); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(points) != 2 || points[0].CarCount != 1 || points[1].CarCount != 2 {
		t.Errorf("unexpected range result %+v", points)
	}

	if rec := env.do(t, http.MethodGet, "/api/cameras/Kungsbacka/statistics?from=yesterday", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid time, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/cameras/Kungsbacka/statistics?from=2024-03-02T00:00:00Z&to=2024-03-01T00:00:00Z", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for inverted range, got %d", rec.Code)
	}
}

func TestCatalog(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/catalog", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Kungsbacka") {
		t.Errorf("unexpected catalog response %d %s", rec.Code, rec.Body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/cameras", []byte(`{"location":"Kungsbacka"}`))

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `trafikcam_cycles_total{location="Kungsbacka",outcome="success"} 1`) {
		t.Errorf("cycle counter missing from metrics output:\n%s", rec.Body)
	}
}
