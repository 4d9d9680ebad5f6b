// Package sandbox is the single chokepoint through which every tool
// handler routes access to a backing store. Validation happens here, so
// it cannot be bypassed by any individual tool.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	liveagent "github.com/ternlabs/liveagent"
	"github.com/ternlabs/liveagent/connector"
)

// Sandbox validates and executes queries against registered connectors.
type Sandbox struct {
	connectors *connector.Registry
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the sandbox.
type Option func(*Sandbox)

// WithLogger sets the sandbox logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sandbox) { s.logger = logger }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sandbox) { s.now = now }
}

// New creates a sandbox over the given connector registry.
func New(connectors *connector.Registry, opts ...Option) *Sandbox {
	s := &Sandbox{
		connectors: connectors,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute validates query against the connector's policy, runs it under
// the connector's concurrency and time bounds, and returns a
// provenance-stamped result. Every failure is one of the typed sandbox
// errors; callers never see connector-specific error shapes.
func (s *Sandbox) Execute(ctx context.Context, connectorID, query string, params map[string]any) (*liveagent.QueryResult, error) {
	handle, err := s.connectors.Handle(connectorID)
	if err != nil {
		return nil, liveagent.NewAgentError(liveagent.ErrCodeUnknownConnector, "resolving connector", err)
	}
	limits := handle.Connector.Limits()

	switch limits.Kind {
	case connector.KindHTTP:
		err = validateHTTP(query, params)
	default:
		err = validateSQL(query, params, limits.ReadOnly)
	}
	if err != nil {
		s.logger.Warn("query rejected",
			slog.String("connector", connectorID),
			slog.String("reason", err.Error()),
		)
		return nil, liveagent.NewAgentError(liveagent.ErrCodeUnsafeQuery, "validating query", err)
	}

	if err := handle.Acquire(ctx); err != nil {
		return nil, liveagent.NewAgentError(liveagent.ErrCodeTimeout, "waiting for connector slot",
			fmt.Errorf("%w: %v", liveagent.ErrTimeout, err))
	}
	defer handle.Release()

	queryCtx := ctx
	if limits.QueryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, limits.QueryTimeout)
		defer cancel()
	}

	start := s.now()
	result, err := handle.Connector.Query(queryCtx, query, params)
	if err != nil {
		return nil, s.classify(connectorID, queryCtx, err, limits.QueryTimeout)
	}

	// A cancelled execution must never surface a partial result.
	if ctx.Err() != nil {
		return nil, liveagent.NewAgentError(liveagent.ErrCodeTimeout, "request cancelled",
			fmt.Errorf("%w: %v", liveagent.ErrTimeout, ctx.Err()))
	}

	if limits.MaxRows > 0 && result.Count > limits.MaxRows {
		return nil, liveagent.NewAgentError(liveagent.ErrCodeResultTooLarge,
			fmt.Sprintf("query returned %d rows, cap is %d", result.Count, limits.MaxRows),
			liveagent.ErrResultTooLarge)
	}

	result.Duration = s.now().Sub(start)
	result.Source = connectorID
	if result.DataTimestamp.IsZero() {
		// The store did not report a data timestamp; the completion
		// time is the freshness bound.
		result.DataTimestamp = s.now()
	}
	return result, nil
}

func (s *Sandbox) classify(connectorID string, queryCtx context.Context, err error, timeout time.Duration) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(queryCtx.Err(), context.DeadlineExceeded):
		return liveagent.NewAgentError(liveagent.ErrCodeTimeout,
			fmt.Sprintf("query against %s exceeded %s", connectorID, timeout),
			fmt.Errorf("%w: %v", liveagent.ErrTimeout, err))
	case errors.Is(err, context.Canceled):
		return liveagent.NewAgentError(liveagent.ErrCodeTimeout, "query cancelled",
			fmt.Errorf("%w: %v", liveagent.ErrTimeout, err))
	case errors.Is(err, liveagent.ErrConnection):
		return liveagent.NewAgentError(liveagent.ErrCodeConnection,
			fmt.Sprintf("connector %s unreachable", connectorID), err)
	default:
		return liveagent.NewAgentError(liveagent.ErrCodeQueryExecution,
			fmt.Sprintf("query against %s failed", connectorID),
			fmt.Errorf("%w: %v", liveagent.ErrQueryExecution, err))
	}
}
