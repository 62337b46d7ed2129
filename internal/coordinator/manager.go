package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/chrisdamba/trafikcam/internal/metrics"
	"github.com/chrisdamba/trafikcam/internal/models"
	"golang.org/x/sync/errgroup"
)

// Factory builds the coordinator for a location.
type Factory func(location string) *RefreshCoordinator

type entryState int

const (
	// stateSetup is an Add whose first refresh is still running.
	stateSetup entryState = iota
	// statePending failed its first refresh and retries it every interval.
	statePending
	stateReady
)

type entry struct {
	coordinator *RefreshCoordinator
	state       entryState
	cancel      context.CancelFunc
	done        chan struct{}
}

// Manager tracks one RefreshCoordinator per camera location and runs their
// update loops.
type Manager struct {
	factory Factory
	metrics *metrics.Collector
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
	group   *errgroup.Group
	ctx     context.Context
}

// NewManager returns a Manager that builds coordinators with factory.
func NewManager(factory Factory, collector *metrics.Collector, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		factory: factory,
		metrics: collector,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Add creates a coordinator for location and performs its first refresh.
// The location is reserved before the refresh, so a concurrent Add of the
// same location fails with ErrAlreadyTracked without running a cycle.
//
// If the first refresh fails with anything but an authentication error the
// location stays pending: Add returns ErrSetupRetry and the refresh is
// retried every interval while Run is active. Pending locations are not
// listed by Locations or Get until a refresh succeeds.
func (m *Manager) Add(ctx context.Context, location string) (*RefreshCoordinator, error) {
	m.mu.Lock()
	if _, exists := m.entries[location]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyTracked, location)
	}
	e := &entry{coordinator: m.factory(location), state: stateSetup}
	m.entries[location] = e
	m.mu.Unlock()

	err := setup(ctx, e.coordinator)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[location] != e {
		// removed while the first refresh was running
		return nil, fmt.Errorf("%w: %s", ErrNotTracked, location)
	}
	if err != nil {
		if IsFatal(err) || ctx.Err() != nil {
			delete(m.entries, location)
			return nil, err
		}
		e.state = statePending
		if m.group != nil {
			m.start(location, e)
		}
		m.logger.Warn("camera_setup_retry", "location", location, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrSetupRetry, err)
	}
	e.state = stateReady
	if m.group != nil {
		m.start(location, e)
	}
	m.logger.Info("camera_added", "location", location)
	return e.coordinator, nil
}

// setup loads the stored history and runs the first cycle.
func setup(ctx context.Context, c *RefreshCoordinator) error {
	if err := c.Prime(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	_, err := c.Refresh(ctx)
	return err
}

// Remove stops the update loop of location and forgets it.
func (m *Manager) Remove(location string) error {
	m.mu.Lock()
	e, ok := m.entries[location]
	if ok {
		delete(m.entries, location)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotTracked, location)
	}

	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
	m.metrics.Forget(location)
	m.logger.Info("camera_removed", "location", location)
	return nil
}

// Get returns the coordinator of a ready location.
func (m *Manager) Get(location string) (*RefreshCoordinator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[location]
	if !ok || e.state != stateReady {
		return nil, false
	}
	return e.coordinator, true
}

// Locations returns the ready locations in sorted order.
func (m *Manager) Locations() []string {
	return m.list(stateReady)
}

// Pending returns the locations whose first refresh is being retried.
func (m *Manager) Pending() []string {
	return m.list(statePending)
}

func (m *Manager) list(state entryState) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	locations := make([]string, 0, len(m.entries))
	for location, e := range m.entries {
		if e.state == state {
			locations = append(locations, location)
		}
	}
	sort.Strings(locations)
	return locations
}

// States returns the published state of every tracked location that has one.
func (m *Manager) States() map[string]models.CameraState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	states := make(map[string]models.CameraState, len(m.entries))
	for location, e := range m.entries {
		if e.state != stateReady {
			continue
		}
		if state, ok := e.coordinator.State(); ok {
			states[location] = state
		}
	}
	return states
}

// Run starts the update loop of every tracked location, and of locations
// added later, and blocks until ctx is done or a loop fails fatally. The
// API key is shared by all cameras, so an authentication failure stops all
// of them.
func (m *Manager) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	m.mu.Lock()
	if m.group != nil {
		m.mu.Unlock()
		return fmt.Errorf("manager already running")
	}
	m.group = g
	m.ctx = gctx
	for location, e := range m.entries {
		if e.state != stateSetup {
			m.start(location, e)
		}
	}
	m.mu.Unlock()

	// keeps the group alive while no camera is tracked
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err := g.Wait()

	m.mu.Lock()
	m.group = nil
	m.ctx = nil
	m.mu.Unlock()
	return err
}

// start must be called with m.mu held. A pending entry first retries its
// setup and only then enters the update loop.
func (m *Manager) start(location string, e *entry) {
	ctx, cancel := context.WithCancel(m.ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	c := e.coordinator
	m.group.Go(func() error {
		defer close(e.done)
		defer cancel()
		if ready, err := m.retrySetup(ctx, location, e); !ready || err != nil {
			return err
		}
		if err := c.Run(ctx); err != nil {
			return fmt.Errorf("camera %s: %w", location, err)
		}
		return nil
	})
}

// retrySetup repeats the first refresh of a pending entry every interval
// until it succeeds, ctx is done or authentication fails.
func (m *Manager) retrySetup(ctx context.Context, location string, e *entry) (bool, error) {
	m.mu.RLock()
	pending := e.state == statePending
	m.mu.RUnlock()
	if !pending {
		return true, nil
	}

	ticker := time.NewTicker(e.coordinator.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case <-ticker.C:
		}

		err := setup(ctx, e.coordinator)
		switch {
		case err == nil:
			m.mu.Lock()
			e.state = stateReady
			m.mu.Unlock()
			m.logger.Info("camera_added", "location", location, "after_retry", true)
			return true, nil
		case ctx.Err() != nil:
			return false, nil
		case IsFatal(err):
			m.mu.Lock()
			if m.entries[location] == e {
				delete(m.entries, location)
			}
			m.mu.Unlock()
			return false, fmt.Errorf("camera %s: %w", location, err)
		default:
			m.logger.Warn("camera_setup_retry", "location", location, "err", err)
		}
	}
}
