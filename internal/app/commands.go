package app

import (
	"context"
	"time"

	tea "charm.land/bubbletea/v2"

	"parley/internal/client"
	"parley/internal/store"
	"parley/internal/types"
)

const apiTimeout = 4 * time.Second

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSessionsCmd(api SessionAPI) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		sessions, err := api.ListSessions(ctx)
		return sessionsMsg{sessions: sessions, err: err}
	}
}

func fetchTraceCmd(api SessionAPI, sessionID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		trace, err := api.GetTrace(ctx, sessionID)
		return traceMsg{sessionID: sessionID, trace: trace, err: err}
	}
}

func openStreamCmd(api SessionAPI, sessionID string) tea.Cmd {
	return func() tea.Msg {
		events, cancel, err := api.EventStream(context.Background(), sessionID)
		return streamMsg{sessionID: sessionID, events: events, cancel: cancel, err: err}
	}
}

func catchUpCmd(api SessionAPI, sessionID string, afterSeq int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		events, err := api.CatchUp(ctx, sessionID, afterSeq)
		return catchUpMsg{sessionID: sessionID, afterSeq: afterSeq, events: events, err: err}
	}
}

func sendMessageCmd(api SessionAPI, sessionID, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		resp, err := api.SendMessage(ctx, sessionID, client.SendMessageRequest{Text: text})
		return sendResultMsg{sessionID: sessionID, resp: resp, err: err}
	}
}

func interruptCmd(api SessionAPI, sessionID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		return interruptMsg{err: api.InterruptSession(ctx, sessionID)}
	}
}

func resolvePermissionCmd(api SessionAPI, sessionID, permissionID, outcome string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		err := api.ResolvePermission(ctx, sessionID, client.ResolvePermissionRequest{
			PermissionID: permissionID,
			Outcome:      outcome,
		})
		return permissionResolvedMsg{permissionID: permissionID, outcome: outcome, err: err}
	}
}

func loadCachedTraceCmd(repo store.Repository, sessionID string) tea.Cmd {
	return func() tea.Msg {
		if repo == nil {
			return cachedTraceMsg{sessionID: sessionID}
		}
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		events, lastSeq, found, err := repo.Traces().Get(ctx, sessionID)
		return cachedTraceMsg{sessionID: sessionID, events: events, lastSeq: lastSeq, found: found, err: err}
	}
}

func saveTraceCmd(repo store.Repository, sessionID string, events []types.TraceEvent, lastSeq int64) tea.Cmd {
	return func() tea.Msg {
		if repo == nil {
			return traceCachedMsg{sessionID: sessionID}
		}
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		return traceCachedMsg{sessionID: sessionID, err: repo.Traces().Put(ctx, sessionID, events, lastSeq)}
	}
}

func loadAppStateCmd(repo store.Repository) tea.Cmd {
	return func() tea.Msg {
		if repo == nil {
			return appStateMsg{state: &types.AppState{}}
		}
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		state, err := repo.AppState().Load(ctx)
		return appStateMsg{state: state, err: err}
	}
}

func saveAppStateCmd(repo store.Repository, state *types.AppState) tea.Cmd {
	return func() tea.Msg {
		if repo == nil || state == nil {
			return stateSavedMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		return stateSavedMsg{err: repo.AppState().Save(ctx, state)}
	}
}
