// Package server exposes the monitored cameras over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chrisdamba/trafikcam/internal/coordinator"
	"github.com/chrisdamba/trafikcam/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const RequestIDHeader = "X-Request-ID"

// Cameras is the tracked camera set, implemented by coordinator.Manager.
type Cameras interface {
	Add(ctx context.Context, location string) (*coordinator.RefreshCoordinator, error)
	Remove(location string) error
	Get(location string) (*coordinator.RefreshCoordinator, bool)
	Locations() []string
	States() map[string]models.CameraState
}

type History interface {
	Query(ctx context.Context, location string) ([]models.StatPoint, error)
	QueryRange(ctx context.Context, location string, start, end time.Time) ([]models.StatPoint, error)
}

// Catalog lists the cameras available upstream.
type Catalog interface {
	ListCameras(ctx context.Context) ([]models.CameraInfo, error)
}

type Server struct {
	cameras  Cameras
	history  History
	catalog  Catalog
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	access   io.Writer
}

type Options struct {
	Cameras  Cameras
	History  History
	Catalog  Catalog
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	// AccessLog receives one line per request in Apache combined format.
	AccessLog io.Writer
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.AccessLog == nil {
		opts.AccessLog = io.Discard
	}
	return &Server{
		cameras:  opts.Cameras,
		history:  opts.History,
		catalog:  opts.Catalog,
		gatherer: opts.Gatherer,
		logger:   opts.Logger,
		access:   opts.AccessLog,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestID)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/cameras", s.listCameras).Methods(http.MethodGet)
	api.HandleFunc("/cameras", s.addCamera).Methods(http.MethodPost)
	api.HandleFunc("/cameras/{location}", s.getCamera).Methods(http.MethodGet)
	api.HandleFunc("/cameras/{location}", s.removeCamera).Methods(http.MethodDelete)
	api.HandleFunc("/cameras/{location}/image", s.getImage).Methods(http.MethodGet)
	api.HandleFunc("/cameras/{location}/statistics", s.getStatistics).Methods(http.MethodGet)
	api.HandleFunc("/catalog", s.listCatalog).Methods(http.MethodGet)
	return r
}

// Handler is the router wrapped with access logging and panic recovery.
func (s *Server) Handler() http.Handler {
	recovered := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
	)(s.Router())
	return handlers.LoggingHandler(s.access, recovered)
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http_listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info("http_stopped")
		return nil
	}
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("http_panic", "panic", v)
}
