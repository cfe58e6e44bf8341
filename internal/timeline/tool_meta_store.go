package timeline

import "encoding/json"

// ToolArgsStore keeps the invocation arguments of tool calls, keyed by
// tool event ID. Last write wins; an empty argument map stores nothing so
// the entry count reflects tools that actually carry displayable metadata.
type ToolArgsStore struct {
	entries map[string]map[string]any
}

func NewToolArgsStore() *ToolArgsStore {
	return &ToolArgsStore{entries: map[string]map[string]any{}}
}

func (s *ToolArgsStore) Set(args map[string]any, toolID string) {
	if s == nil || toolID == "" {
		return
	}
	if len(args) == 0 {
		delete(s.entries, toolID)
		return
	}
	s.entries[toolID] = args
}

func (s *ToolArgsStore) Get(toolID string) map[string]any {
	if s == nil {
		return nil
	}
	return s.entries[toolID]
}

func (s *ToolArgsStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

func (s *ToolArgsStore) ClearAll() {
	if s == nil {
		return
	}
	s.entries = map[string]map[string]any{}
}

// ToolDetailsStore keeps the structured details a tool reports on
// completion, keyed by tool event ID. Last write wins.
type ToolDetailsStore struct {
	entries map[string]json.RawMessage
}

func NewToolDetailsStore() *ToolDetailsStore {
	return &ToolDetailsStore{entries: map[string]json.RawMessage{}}
}

func (s *ToolDetailsStore) Set(details json.RawMessage, toolID string) {
	if s == nil || toolID == "" {
		return
	}
	if len(details) == 0 {
		delete(s.entries, toolID)
		return
	}
	s.entries[toolID] = details
}

func (s *ToolDetailsStore) Get(toolID string) json.RawMessage {
	if s == nil {
		return nil
	}
	return s.entries[toolID]
}

func (s *ToolDetailsStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

func (s *ToolDetailsStore) ClearAll() {
	if s == nil {
		return
	}
	s.entries = map[string]json.RawMessage{}
}
