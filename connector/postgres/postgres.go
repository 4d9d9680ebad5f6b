// Package postgres implements the connector interface over a PostgreSQL
// database using a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	liveagent "github.com/ternlabs/liveagent"
	"github.com/ternlabs/liveagent/connector"
)

// Config for the PostgreSQL connector. Queries use named placeholders
// (@name) bound through pgx.NamedArgs.
type Config struct {
	DSN           string
	ReadOnly      bool
	MaxRows       int
	QueryTimeout  time.Duration
	MaxConcurrent int64
}

// Connector is a PostgreSQL-backed data source.
type Connector struct {
	cfg  Config
	pool *pgxpool.Pool
}

// New creates an unconnected PostgreSQL connector.
func New(cfg Config) *Connector {
	return &Connector{cfg: cfg}
}

// Connect establishes the connection pool and verifies it.
func (c *Connector) Connect(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, c.cfg.DSN)
	if err != nil {
		return fmt.Errorf("%w: creating pool: %v", liveagent.ErrConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("%w: %v", liveagent.ErrConnection, err)
	}
	c.pool = pool
	return nil
}

// Query runs a parameterized read and returns the rows as maps.
func (c *Connector) Query(ctx context.Context, query string, params map[string]any) (*liveagent.QueryResult, error) {
	if c.pool == nil {
		return nil, fmt.Errorf("%w: not connected", liveagent.ErrConnection)
	}

	var (
		rows pgx.Rows
		err  error
	)
	if len(params) > 0 {
		rows, err = c.pool.Query(ctx, query, pgx.NamedArgs(params))
	} else {
		rows, err = c.pool.Query(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("querying postgres: %w", err)
	}

	data, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("collecting rows: %w", err)
	}

	return &liveagent.QueryResult{
		Rows:  data,
		Count: len(data),
	}, nil
}

// Health pings the pool.
func (c *Connector) Health(ctx context.Context) liveagent.HealthState {
	if c.pool == nil {
		return liveagent.HealthUnreachable
	}
	if err := c.pool.Ping(ctx); err != nil {
		return liveagent.HealthUnreachable
	}
	return liveagent.HealthHealthy
}

// Close releases the pool.
func (c *Connector) Close() error {
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
	return nil
}

// Limits reports the configured execution bounds.
func (c *Connector) Limits() connector.Limits {
	return connector.Limits{
		Kind:          connector.KindSQL,
		ReadOnly:      c.cfg.ReadOnly,
		MaxRows:       c.cfg.MaxRows,
		QueryTimeout:  c.cfg.QueryTimeout,
		MaxConcurrent: c.cfg.MaxConcurrent,
	}
}
