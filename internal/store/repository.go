package store

import (
	"context"

	"parley/internal/types"
)

// Repository bundles the local caches Parley keeps between runs: the
// last trace snapshot per session and the persisted UI state.
type Repository interface {
	Traces() TraceCacheStore
	AppState() AppStateStore
	Close() error
}

type TraceCacheStore interface {
	Put(ctx context.Context, sessionID string, events []types.TraceEvent, lastSeq int64) error
	Get(ctx context.Context, sessionID string) ([]types.TraceEvent, int64, bool, error)
	Delete(ctx context.Context, sessionID string) error
}

type AppStateStore interface {
	Load(ctx context.Context) (*types.AppState, error)
	Save(ctx context.Context, state *types.AppState) error
}
