package timeline

// TruncationMarker is appended once to a tool's stored output when the
// per-item cap is reached.
const TruncationMarker = "\n… [output truncated]"

type toolOutputEntry struct {
	text      string
	truncated bool
}

// ToolOutputStore accumulates streamed tool output keyed by tool event ID,
// under a per-item byte cap and a global byte budget. Eviction removes the
// oldest entries wholesale, in first-write order.
type ToolOutputStore struct {
	perItemCap int
	globalCap  int
	entries    map[string]*toolOutputEntry
	order      []string
	totalBytes int
}

func NewToolOutputStore(perItemCap, globalCap int) *ToolOutputStore {
	if perItemCap < 1 {
		perItemCap = 1
	}
	// A capped entry holds the prefix plus the marker; the global cap
	// must fit at least one such entry or eviction could never succeed.
	if globalCap < perItemCap+len(TruncationMarker) {
		globalCap = perItemCap + len(TruncationMarker)
	}
	return &ToolOutputStore{
		perItemCap: perItemCap,
		globalCap:  globalCap,
		entries:    map[string]*toolOutputEntry{},
	}
}

// Append adds chunk to the output stored for toolID. It reports whether
// the stored state actually changed; appends past the per-item cap are
// true no-ops so callers can skip render work for them.
func (s *ToolOutputStore) Append(chunk, toolID string) bool {
	if s == nil || toolID == "" || chunk == "" {
		return false
	}
	entry, ok := s.entries[toolID]
	if !ok {
		entry = &toolOutputEntry{}
		s.entries[toolID] = entry
		s.order = append(s.order, toolID)
	}
	if entry.truncated {
		return false
	}
	// Reaching the cap exactly still truncates, so the very next append
	// is already a no-op instead of growing the entry by the marker.
	before := len(entry.text)
	if before+len(chunk) >= s.perItemCap {
		keep := s.perItemCap - before
		if keep > 0 {
			entry.text += chunk[:keep]
		}
		entry.text += TruncationMarker
		entry.truncated = true
	} else {
		entry.text += chunk
	}
	s.totalBytes += len(entry.text) - before
	s.evict(toolID)
	return true
}

// evict drops whole entries in first-write order until the store is back
// under its global budget. The entry written most recently never goes;
// the per-item cap keeps a single surviving entry within budget.
func (s *ToolOutputStore) evict(justWrote string) {
	if s.totalBytes <= s.globalCap {
		return
	}
	kept := s.order[:0]
	for i, id := range s.order {
		if s.totalBytes <= s.globalCap {
			kept = append(kept, s.order[i:]...)
			break
		}
		if id == justWrote {
			kept = append(kept, id)
			continue
		}
		if entry, ok := s.entries[id]; ok {
			s.totalBytes -= len(entry.text)
			delete(s.entries, id)
		}
	}
	s.order = kept
}

func (s *ToolOutputStore) FullOutput(toolID string) string {
	if s == nil {
		return ""
	}
	entry, ok := s.entries[toolID]
	if !ok {
		return ""
	}
	return entry.text
}

func (s *ToolOutputStore) OutputBytes(toolID string) int {
	if s == nil {
		return 0
	}
	entry, ok := s.entries[toolID]
	if !ok {
		return 0
	}
	return len(entry.text)
}

func (s *ToolOutputStore) TotalBytes() int {
	if s == nil {
		return 0
	}
	return s.totalBytes
}

func (s *ToolOutputStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Drop removes a single entry, if present.
func (s *ToolOutputStore) Drop(toolID string) {
	if s == nil {
		return
	}
	entry, ok := s.entries[toolID]
	if !ok {
		return
	}
	s.totalBytes -= len(entry.text)
	delete(s.entries, toolID)
	for i, id := range s.order {
		if id == toolID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Clear drops all stored output and reports the bytes freed.
func (s *ToolOutputStore) Clear() int {
	if s == nil {
		return 0
	}
	freed := s.totalBytes
	s.entries = map[string]*toolOutputEntry{}
	s.order = nil
	s.totalBytes = 0
	return freed
}
