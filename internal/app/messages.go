package app

import (
	"time"

	"parley/internal/client"
	"parley/internal/types"
)

type tickMsg time.Time

// memoryWarningMsg is injected from outside the program loop when the
// host signals memory pressure.
type memoryWarningMsg struct{}

type sessionsMsg struct {
	sessions []*types.Session
	err      error
}

type cachedTraceMsg struct {
	sessionID string
	events    []types.TraceEvent
	lastSeq   int64
	found     bool
	err       error
}

type traceMsg struct {
	sessionID string
	trace     *client.TraceResponse
	err       error
}

type streamMsg struct {
	sessionID string
	events    <-chan types.AgentEvent
	cancel    func()
	err       error
}

type catchUpMsg struct {
	sessionID string
	afterSeq  int64
	events    []types.AgentEvent
	err       error
}

type sendResultMsg struct {
	sessionID string
	resp      *client.SendMessageResponse
	err       error
}

type interruptMsg struct {
	err error
}

type permissionResolvedMsg struct {
	permissionID string
	outcome      string
	err          error
}

type appStateMsg struct {
	state *types.AppState
	err   error
}

type stateSavedMsg struct {
	err error
}

type traceCachedMsg struct {
	sessionID string
	err       error
}
