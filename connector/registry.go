package connector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	liveagent "github.com/ternlabs/liveagent"
	"golang.org/x/sync/semaphore"
)

// Handle pairs a registered connector with its last-known health state
// and the semaphore bounding concurrent queries against it.
type Handle struct {
	ID        string
	Connector Connector

	sem *semaphore.Weighted

	mu        sync.Mutex
	health    liveagent.HealthState
	lastCheck time.Time
	probing   bool
}

// Acquire reserves a query slot, blocking until one is free or ctx ends.
func (h *Handle) Acquire(ctx context.Context) error {
	return h.sem.Acquire(ctx, 1)
}

// Release returns a query slot.
func (h *Handle) Release() {
	h.sem.Release(1)
}

// Health returns the cached health state and when it was observed.
func (h *Handle) Health() (liveagent.HealthState, time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.health, h.lastCheck
}

func (h *Handle) setHealth(state liveagent.HealthState, at time.Time) {
	h.mu.Lock()
	h.health = state
	h.lastCheck = at
	h.mu.Unlock()
}

// Registry maps data-source identifiers to connector instances. It is
// populated at startup and read-mostly afterwards.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle

	healthTTL    time.Duration
	probeTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures the registry.
type Option func(*Registry)

// WithHealthTTL sets how long a probed health state is reused.
func WithHealthTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.healthTTL = ttl }
}

// WithProbeTimeout bounds a single health probe.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(r *Registry) { r.probeTimeout = timeout }
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates an empty connector registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		handles:      make(map[string]*Handle),
		healthTTL:    15 * time.Second,
		probeTimeout: 5 * time.Second,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a connector under id. Registering the same id twice
// fails: the registry never holds two connectors for one id.
func (r *Registry) Register(id string, c Connector) error {
	if id == "" {
		return fmt.Errorf("connector id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handles[id]; exists {
		return fmt.Errorf("%w: %s", liveagent.ErrDuplicateConnector, id)
	}

	limits := c.Limits()
	maxConc := limits.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 1
	}

	r.handles[id] = &Handle{
		ID:        id,
		Connector: c,
		sem:       semaphore.NewWeighted(maxConc),
		health:    liveagent.HealthUnreachable,
	}
	return nil
}

// Get returns the connector registered under id.
func (r *Registry) Get(id string) (Connector, error) {
	h, err := r.Handle(id)
	if err != nil {
		return nil, err
	}
	return h.Connector, nil
}

// Handle returns the full handle for id, including its concurrency bound.
func (r *Registry) Handle(id string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", liveagent.ErrUnknownConnector, id)
	}
	return h, nil
}

// IDs returns the registered connector identifiers, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HealthCheck probes the connector's health, reusing a cached state
// newer than the registry's TTL.
func (r *Registry) HealthCheck(ctx context.Context, id string) (liveagent.HealthState, error) {
	h, err := r.Handle(id)
	if err != nil {
		return liveagent.HealthUnreachable, err
	}
	return r.probe(ctx, h), nil
}

// HealthCheckAll aggregates every registered connector's state.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]liveagent.HealthState {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	states := make(map[string]liveagent.HealthState, len(handles))
	for _, h := range handles {
		states[h.ID] = r.probe(ctx, h)
	}
	return states
}

// probe refreshes the handle's health state when the cached one is
// older than the TTL. At most one probe per handle is in flight;
// concurrent callers get the cached state.
func (r *Registry) probe(ctx context.Context, h *Handle) liveagent.HealthState {
	h.mu.Lock()
	if h.probing || (!h.lastCheck.IsZero() && r.now().Sub(h.lastCheck) < r.healthTTL) {
		state := h.health
		h.mu.Unlock()
		return state
	}
	h.probing = true
	h.mu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	state := h.Connector.Health(probeCtx)

	h.mu.Lock()
	h.health = state
	h.lastCheck = r.now()
	h.probing = false
	h.mu.Unlock()

	if state != liveagent.HealthHealthy {
		r.logger.Warn("connector health degraded",
			slog.String("connector", h.ID),
			slog.String("state", string(state)),
		)
	}
	return state
}

// ConnectAll eagerly connects every registered connector. A failed
// connect marks the connector unreachable but does not abort startup.
func (r *Registry) ConnectAll(ctx context.Context) {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	for _, h := range handles {
		if err := h.Connector.Connect(ctx); err != nil {
			h.setHealth(liveagent.HealthUnreachable, r.now())
			r.logger.Warn("connector connect failed",
				slog.String("connector", h.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		h.setHealth(h.Connector.Health(ctx), r.now())
		r.logger.Info("connector connected", slog.String("connector", h.ID))
	}
}

// CloseAll closes every registered connector, returning the first error.
func (r *Registry) CloseAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var firstErr error
	for id, h := range r.handles {
		if err := h.Connector.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing connector %s: %w", id, err)
		}
	}
	return firstErr
}
