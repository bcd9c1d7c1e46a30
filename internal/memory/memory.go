package memory

import (
	"context"

	"litcode/internal/llm"
	"litcode/internal/problem"
)

// Memory is the interface for persistent per-chat tutor state: the
// transcript, the problem being discussed and the backend override.
type Memory interface {
	AppendTurn(ctx context.Context, chatID string, turn llm.Turn) error
	History(ctx context.Context, chatID string, limit int) ([]llm.Turn, error)
	ClearHistory(ctx context.Context, chatID string) error

	SaveSnapshot(ctx context.Context, chatID string, snap problem.Snapshot) error
	// Snapshot reports ok=false when the chat has no problem yet.
	Snapshot(ctx context.Context, chatID string) (snap problem.Snapshot, ok bool, err error)

	SaveBackend(ctx context.Context, chatID string, backend llm.Backend) error
	// Backend returns "" when the chat uses the configured default.
	Backend(ctx context.Context, chatID string) (llm.Backend, error)

	Close() error
}
