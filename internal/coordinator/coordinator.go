package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chrisdamba/trafikcam/internal/classifier"
	"github.com/chrisdamba/trafikcam/internal/detector"
	"github.com/chrisdamba/trafikcam/internal/metrics"
	"github.com/chrisdamba/trafikcam/internal/models"
	"github.com/chrisdamba/trafikcam/internal/repositories"
	"github.com/lucsky/cuid"
)

// MetadataSource looks up the current metadata of a camera.
type MetadataSource interface {
	GetCamera(ctx context.Context, location string) (models.CameraInfo, error)
}

// Sink receives every published cycle. Sink failures are logged and never
// undo the publication.
type Sink interface {
	Publish(ctx context.Context, result *models.CycleResult, state models.CameraState) error
}

// Options configures a RefreshCoordinator. Only Location, Source and
// History are required.
type Options struct {
	Location string
	Source   MetadataSource
	Images   ImageFetcher
	Detector detector.Detector
	History  repositories.HistoryRepository
	Sinks    []Sink
	Metrics  *metrics.Collector
	Logger   *slog.Logger
	Interval time.Duration
	Now      func() time.Time
}

// RefreshCoordinator runs the refresh cycles of one camera location and
// holds the last published result.
type RefreshCoordinator struct {
	location string
	source   MetadataSource
	images   ImageFetcher
	detector detector.Detector
	history  repositories.HistoryRepository
	sinks    []Sink
	metrics  *metrics.Collector
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	// serializes cycles; Refresh may be called by Run and by Manager.Add
	cycleMu sync.Mutex

	mu         sync.RWMutex
	latest     *models.CycleResult
	statistics []models.StatPoint
	state      *models.CameraState
}

// NewRefreshCoordinator fills in defaults for the optional Options fields.
func NewRefreshCoordinator(opts Options) *RefreshCoordinator {
	if opts.Interval <= 0 {
		opts.Interval = models.DefaultUpdateInterval
	}
	if opts.Images == nil {
		opts.Images = NewHTTPImageFetcher(nil, models.DefaultImageTimeout)
	}
	if opts.Detector == nil {
		opts.Detector = detector.None
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &RefreshCoordinator{
		location:   opts.Location,
		source:     opts.Source,
		images:     opts.Images,
		detector:   opts.Detector,
		history:    opts.History,
		sinks:      opts.Sinks,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With("location", opts.Location),
		interval:   opts.Interval,
		now:        opts.Now,
		statistics: []models.StatPoint{},
	}
}

// Location is the camera location this coordinator refreshes.
func (c *RefreshCoordinator) Location() string {
	return c.location
}

// Interval is the time between scheduled refreshes.
func (c *RefreshCoordinator) Interval() time.Duration {
	return c.interval
}

// Prime loads the statistics snapshot from the history store.
func (c *RefreshCoordinator) Prime(ctx context.Context) error {
	stats, err := c.history.Query(ctx, c.location)
	if err != nil {
		return fmt.Errorf("failed to load statistics for %s: %w", c.location, err)
	}
	c.mu.Lock()
	c.statistics = stats
	c.mu.Unlock()
	return nil
}

// Refresh runs one cycle. On success the new result replaces the previous
// one; on failure nothing visible changes and the error wraps ErrAuthFailed,
// ErrUpdateFailed or ErrDetectionFailed.
func (c *RefreshCoordinator) Refresh(ctx context.Context) (*models.CycleResult, error) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	start := c.now()
	result, stats, err := c.runCycle(ctx)
	took := c.now().Sub(start)

	if err != nil {
		outcome := metrics.OutcomeTransient
		if IsFatal(err) {
			outcome = metrics.OutcomeFatal
		}
		c.metrics.ObserveCycle(c.location, outcome, took)
		return nil, err
	}

	outcome := metrics.OutcomeSuccess
	if result.Image == nil {
		outcome = metrics.OutcomeNoImage
	}
	c.metrics.ObserveCycle(c.location, outcome, took)
	c.metrics.SetResult(c.location, result.CarCount(), result.TrafficLevel)

	state := c.publish(result, stats)
	c.logger.Info("cycle_published",
		"cycle_id", result.ID,
		"cars", result.CarCount(),
		"traffic_level", result.TrafficLevel.String(),
		"duration", took,
	)
	c.notify(ctx, result, state)
	return result, nil
}

func (c *RefreshCoordinator) runCycle(ctx context.Context) (*models.CycleResult, []models.StatPoint, error) {
	info, err := c.source.GetCamera(ctx, c.location)
	if err != nil {
		return nil, nil, metadataError(c.location, err)
	}

	result := &models.CycleResult{
		ID:           cuid.New(),
		Location:     c.location,
		Camera:       info,
		Detections:   []models.CarRectangle{},
		TrafficLevel: models.TrafficUnknown,
	}

	if !info.HasPhoto() {
		result.CompletedAt = c.now()
		return result, nil, nil
	}

	image, err := c.images.Fetch(ctx, info.ImageURL())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}

	cars, err := c.detector.Detect(ctx, image)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrDetectionFailed, err)
	}
	if cars == nil {
		cars = []models.CarRectangle{}
	}

	obs := models.Observation{
		Location: c.location,
		Time:     info.ObservationTime(),
		CarCount: len(cars),
	}
	if err := c.history.Append(ctx, obs); err != nil {
		return nil, nil, fmt.Errorf("%w: recording observation: %w", ErrUpdateFailed, err)
	}

	// the distribution includes the observation just appended
	stats, err := c.history.Query(ctx, c.location)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: loading statistics: %w", ErrUpdateFailed, err)
	}

	result.Image = image
	result.Detections = cars
	result.TrafficLevel = classifier.Classify(obs.CarCount, models.Counts(stats))
	result.CompletedAt = c.now()
	return result, stats, nil
}

// publish swaps in the new result. A nil stats keeps the current snapshot.
func (c *RefreshCoordinator) publish(result *models.CycleResult, stats []models.StatPoint) models.CameraState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stats != nil {
		c.statistics = stats
	}
	state := models.NewCameraState(result, c.statistics)
	c.latest = result
	c.state = &state
	return state
}

func (c *RefreshCoordinator) notify(ctx context.Context, result *models.CycleResult, state models.CameraState) {
	for _, sink := range c.sinks {
		if err := sink.Publish(ctx, result, state); err != nil {
			c.logger.Error("sink_publish_failed", "sink", fmt.Sprintf("%T", sink), "err", err)
		}
	}
}

// Latest returns the last published cycle result, if any.
func (c *RefreshCoordinator) Latest() (*models.CycleResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, c.latest != nil
}

// State returns the snapshot exposed to consumers, if a cycle has been published.
func (c *RefreshCoordinator) State() (models.CameraState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == nil {
		return models.CameraState{}, false
	}
	return *c.state, true
}

// Statistics returns a copy of the current statistics snapshot.
func (c *RefreshCoordinator) Statistics() []models.StatPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := make([]models.StatPoint, len(c.statistics))
	copy(stats, c.statistics)
	return stats
}

// Run refreshes on every tick until ctx is done. Transient failures are
// logged and retried on the next tick; an authentication failure stops
// the loop and is returned.
func (c *RefreshCoordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("coordinator_started", "interval", c.interval)
	defer c.logger.Info("coordinator_stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := c.Refresh(ctx); err != nil {
				if IsFatal(err) {
					c.logger.Error("cycle_failed_reauth_required", "err", err)
					return err
				}
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					return nil
				}
				c.logger.Warn("cycle_failed", "err", err)
			}
		}
	}
}
