// Package sqlite implements the connector interface over a local SQLite
// database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	liveagent "github.com/ternlabs/liveagent"
	"github.com/ternlabs/liveagent/connector"
)

// Config for the SQLite connector. Queries use named placeholders
// (:name) bound through sql.Named.
type Config struct {
	DSN           string
	ReadOnly      bool
	MaxRows       int
	QueryTimeout  time.Duration
	MaxConcurrent int64
}

// Connector is a SQLite-backed data source.
type Connector struct {
	cfg Config
	db  *sql.DB
}

// New creates an unconnected SQLite connector.
func New(cfg Config) *Connector {
	return &Connector{cfg: cfg}
}

// Connect opens the database and verifies it.
func (c *Connector) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite3", c.cfg.DSN)
	if err != nil {
		return fmt.Errorf("%w: opening database: %v", liveagent.ErrConnection, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("%w: %v", liveagent.ErrConnection, err)
	}
	c.db = db
	return nil
}

// Query runs a parameterized read and returns the rows as maps.
func (c *Connector) Query(ctx context.Context, query string, params map[string]any) (*liveagent.QueryResult, error) {
	if c.db == nil {
		return nil, fmt.Errorf("%w: not connected", liveagent.ErrConnection)
	}

	args := make([]any, 0, len(params))
	for name, value := range params {
		args = append(args, sql.Named(name, value))
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sqlite: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var data []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		scan := make([]any, len(cols))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			// database/sql yields []byte for TEXT columns.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return &liveagent.QueryResult{
		Rows:  data,
		Count: len(data),
	}, nil
}

// Health pings the database.
func (c *Connector) Health(ctx context.Context) liveagent.HealthState {
	if c.db == nil {
		return liveagent.HealthUnreachable
	}
	if err := c.db.PingContext(ctx); err != nil {
		return liveagent.HealthUnreachable
	}
	return liveagent.HealthHealthy
}

// Close closes the database.
func (c *Connector) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
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
