package types

import (
	"encoding/json"
	"time"
)

type TraceEventType string

const (
	TraceEventUser       TraceEventType = "user"
	TraceEventAssistant  TraceEventType = "assistant"
	TraceEventToolCall   TraceEventType = "toolCall"
	TraceEventToolResult TraceEventType = "toolResult"
	TraceEventThinking   TraceEventType = "thinking"
	TraceEventSystem     TraceEventType = "system"
	TraceEventError      TraceEventType = "error"
	TraceEventCompaction TraceEventType = "compaction"
)

// TraceEvent is one already-finalized record of a session's history. A
// trace carries no in-progress state: every tool call it contains is
// resolved or absent.
type TraceEvent struct {
	ID           string          `json:"id"`
	Type         TraceEventType  `json:"type"`
	Timestamp    time.Time       `json:"timestamp"`
	Text         string          `json:"text,omitempty"`
	Tool         string          `json:"tool,omitempty"`
	Args         map[string]any  `json:"args,omitempty"`
	Output       string          `json:"output,omitempty"`
	ToolCallID   string          `json:"tool_call_id,omitempty"`
	IsError      bool            `json:"is_error,omitempty"`
	Thinking     string          `json:"thinking,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	TokensBefore int             `json:"tokens_before,omitempty"`
	Summary      string          `json:"summary,omitempty"`
}

// Equal reports field-wise equality, used by the reducer's incremental
// trace-load prefix check. Args and Details compare by serialized form.
func (e TraceEvent) Equal(other TraceEvent) bool {
	if e.ID != other.ID || e.Type != other.Type || !e.Timestamp.Equal(other.Timestamp) {
		return false
	}
	if e.Text != other.Text || e.Tool != other.Tool || e.Output != other.Output {
		return false
	}
	if e.ToolCallID != other.ToolCallID || e.IsError != other.IsError || e.Thinking != other.Thinking {
		return false
	}
	if e.TokensBefore != other.TokensBefore || e.Summary != other.Summary {
		return false
	}
	if string(e.Details) != string(other.Details) {
		return false
	}
	return equalArgs(e.Args, other.Args)
}

func equalArgs(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}
