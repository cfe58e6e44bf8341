package types

import "encoding/json"

type AgentEventKind string

const (
	AgentEventStart           AgentEventKind = "agentStart"
	AgentEventEnd             AgentEventKind = "agentEnd"
	AgentEventTextDelta       AgentEventKind = "textDelta"
	AgentEventThinkingDelta   AgentEventKind = "thinkingDelta"
	AgentEventMessageEnd      AgentEventKind = "messageEnd"
	AgentEventToolStart       AgentEventKind = "toolStart"
	AgentEventToolOutput      AgentEventKind = "toolOutput"
	AgentEventToolEnd         AgentEventKind = "toolEnd"
	AgentEventCompactionStart AgentEventKind = "compactionStart"
	AgentEventCompactionEnd   AgentEventKind = "compactionEnd"
	AgentEventSessionEnded    AgentEventKind = "sessionEnded"
	AgentEventError           AgentEventKind = "error"

	AgentEventPermissionRequest  AgentEventKind = "permissionRequest"
	AgentEventPermissionResolved AgentEventKind = "permissionResolved"
)

// AgentEvent is one live streaming event. The populated payload fields
// depend on Kind; everything else stays at its zero value.
type AgentEvent struct {
	Kind         AgentEventKind  `json:"kind"`
	SessionID    string          `json:"session_id"`
	Seq          int64           `json:"seq,omitempty"`
	Delta        string          `json:"delta,omitempty"`
	Content      string          `json:"content,omitempty"`
	ToolEventID  string          `json:"tool_event_id,omitempty"`
	Tool         string          `json:"tool,omitempty"`
	Args         map[string]any  `json:"args,omitempty"`
	Output       string          `json:"output,omitempty"`
	IsError      bool            `json:"is_error,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	TokensBefore int             `json:"tokens_before,omitempty"`
	Summary      string          `json:"summary,omitempty"`
	PermissionID string          `json:"permission_id,omitempty"`
	Outcome      string          `json:"outcome,omitempty"`
	Message      string          `json:"message,omitempty"`
	TS           string          `json:"ts,omitempty"`
}
