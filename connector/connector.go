// Package connector defines the uniform capability interface over
// backing data sources and the registry that tracks them.
package connector

import (
	"context"
	"time"

	liveagent "github.com/ternlabs/liveagent"
)

// Kind classifies the query language a connector speaks. The sandbox
// picks its validation rules from this.
type Kind string

const (
	// KindSQL connectors take SQL text with named placeholders.
	KindSQL Kind = "sql"

	// KindHTTP connectors take an endpoint path; params become the
	// query string.
	KindHTTP Kind = "http"
)

// Limits are the per-connector execution bounds the sandbox enforces.
type Limits struct {
	Kind Kind

	// ReadOnly blocks mutating statements before any network call.
	ReadOnly bool

	// MaxRows caps result size. Results over the cap fail, never truncate.
	MaxRows int

	// QueryTimeout bounds a single query execution.
	QueryTimeout time.Duration

	// MaxConcurrent bounds in-flight queries against this connector.
	MaxConcurrent int64
}

// Connector is the capability set every backing data source exposes.
// Implementations own their network and session state; the rest of the
// system treats them only through this interface.
type Connector interface {
	// Connect establishes the underlying connection or client. Called
	// once at process start.
	Connect(ctx context.Context) error

	// Query executes a single read and returns live data. The result's
	// DataTimestamp is left zero when the store cannot report one.
	Query(ctx context.Context, query string, params map[string]any) (*liveagent.QueryResult, error)

	// Health probes the data source.
	Health(ctx context.Context) liveagent.HealthState

	// Close releases resources. Called once at shutdown.
	Close() error

	// Limits reports the execution bounds for this connector.
	Limits() Limits
}
