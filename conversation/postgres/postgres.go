// Package postgres implements conversation.Store with PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	liveagent "github.com/ternlabs/liveagent"
)

// Store persists conversations as JSONB rows.
type Store struct {
	pool      *pgxpool.Pool
	tableName string
}

// Option configures the store.
type Option func(*Store)

// WithTableName sets a custom table name.
func WithTableName(name string) Option {
	return func(s *Store) { s.tableName = name }
}

// New creates a PostgreSQL conversation store over an existing pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:      pool,
		tableName: "conversations",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get loads a conversation by id, returning nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*liveagent.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, turns, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, s.tableName)

	var conv liveagent.Conversation
	var turnsJSON []byte

	err := s.pool.QueryRow(ctx, query, id).Scan(
		&conv.ID,
		&turnsJSON,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	if err := json.Unmarshal(turnsJSON, &conv.Turns); err != nil {
		return nil, fmt.Errorf("unmarshaling turns: %w", err)
	}
	return &conv, nil
}

// Save upserts the conversation.
func (s *Store) Save(ctx context.Context, conv *liveagent.Conversation) error {
	turnsJSON, err := json.Marshal(conv.Turns)
	if err != nil {
		return fmt.Errorf("marshaling turns: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, turns, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			turns = EXCLUDED.turns,
			updated_at = EXCLUDED.updated_at
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query, conv.ID, turnsJSON, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	return nil
}

// Delete removes the conversation.
func (s *Store) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.tableName)
	_, err := s.pool.Exec(ctx, query, id)
	return err
}

// Migration returns the DDL for the conversations table.
func Migration(tableName string) string {
	if tableName == "" {
		tableName = "conversations"
	}
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			turns JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_%s_updated_at ON %s (updated_at DESC);
	`, tableName, tableName, tableName)
}
