package client

import "parley/internal/types"

type SessionsResponse struct {
	Sessions []*types.Session `json:"sessions"`
}

type TraceResponse struct {
	Events  []types.TraceEvent `json:"events"`
	LastSeq int64              `json:"last_seq"`
}

type EventsResponse struct {
	Events []types.AgentEvent `json:"events"`
}

type SendMessageRequest struct {
	Text   string   `json:"text"`
	Images []string `json:"images,omitempty"`
}

type SendMessageResponse struct {
	OK     bool   `json:"ok"`
	TurnID string `json:"turn_id,omitempty"`
}

type ResolvePermissionRequest struct {
	PermissionID string `json:"permission_id"`
	Outcome      string `json:"outcome"`
}

type HealthResponse struct {
	OK      bool   `json:"ok"`
	Version string `json:"version"`
}
