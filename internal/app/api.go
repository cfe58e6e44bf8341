package app

import (
	"context"

	"parley/internal/client"
	"parley/internal/types"
)

// SessionAPI is the slice of the server client the UI depends on,
// narrowed so tests can substitute fakes.
type SessionAPI interface {
	ListSessions(ctx context.Context) ([]*types.Session, error)
	GetTrace(ctx context.Context, id string) (*client.TraceResponse, error)
	CatchUp(ctx context.Context, id string, afterSeq int64) ([]types.AgentEvent, error)
	SendMessage(ctx context.Context, id string, req client.SendMessageRequest) (*client.SendMessageResponse, error)
	InterruptSession(ctx context.Context, id string) error
	ResolvePermission(ctx context.Context, id string, req client.ResolvePermissionRequest) error
	EventStream(ctx context.Context, id string) (<-chan types.AgentEvent, func(), error)
}
