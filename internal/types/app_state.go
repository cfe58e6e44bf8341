package types

// AppState is the persisted UI state restored on startup.
type AppState struct {
	SelectedSessionID string              `json:"selected_session_id,omitempty"`
	ExpandedItems     map[string][]string `json:"expanded_items,omitempty"`
}

// ExpandedFor returns the expanded item IDs recorded for a session.
func (s *AppState) ExpandedFor(sessionID string) []string {
	if s == nil || len(s.ExpandedItems) == 0 {
		return nil
	}
	return s.ExpandedItems[sessionID]
}

// SetExpandedFor records the expanded item IDs for a session, dropping
// the entry entirely when the list is empty.
func (s *AppState) SetExpandedFor(sessionID string, ids []string) {
	if s == nil || sessionID == "" {
		return
	}
	if len(ids) == 0 {
		delete(s.ExpandedItems, sessionID)
		return
	}
	if s.ExpandedItems == nil {
		s.ExpandedItems = map[string][]string{}
	}
	s.ExpandedItems[sessionID] = append([]string(nil), ids...)
}
