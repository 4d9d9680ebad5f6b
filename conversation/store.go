// Package conversation archives finished conversations. The archive is
// write-only for the planning loop: stored turns are never read back to
// answer a question, which keeps the live-fetch guarantee intact.
package conversation

import (
	"context"

	liveagent "github.com/ternlabs/liveagent"
)

// Store defines conversation persistence.
type Store interface {
	Get(ctx context.Context, id string) (*liveagent.Conversation, error)
	Save(ctx context.Context, conv *liveagent.Conversation) error
	Delete(ctx context.Context, id string) error
}
