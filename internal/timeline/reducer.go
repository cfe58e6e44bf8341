package timeline

import (
	"fmt"
	"strings"
	"time"

	"parley/internal/types"
)

// Limits bounds the reducer's memory use and preview sizes.
type Limits struct {
	PerToolOutputBytes   int
	TotalOutputBytes     int
	OutputPreviewBytes   int
	ThinkingPreviewRunes int
}

func DefaultLimits() Limits {
	return Limits{
		PerToolOutputBytes:   512 << 10,
		TotalOutputBytes:     4 << 20,
		OutputPreviewBytes:   200,
		ThinkingPreviewRunes: 500,
	}
}

func (l Limits) normalized() Limits {
	defaults := DefaultLimits()
	if l.PerToolOutputBytes < 1 {
		l.PerToolOutputBytes = defaults.PerToolOutputBytes
	}
	if l.TotalOutputBytes < l.PerToolOutputBytes {
		l.TotalOutputBytes = defaults.TotalOutputBytes
	}
	if l.OutputPreviewBytes < 1 {
		l.OutputPreviewBytes = defaults.OutputPreviewBytes
	}
	if l.ThinkingPreviewRunes < 1 {
		l.ThinkingPreviewRunes = defaults.ThinkingPreviewRunes
	}
	return l
}

// Reducer folds live agent events and historical traces into one ordered
// chat item list. It is single-writer and synchronous: every public
// mutation completes without blocking and must run on one owning
// goroutine. Malformed input never panics; each anomaly degrades to a
// defined no-op.
type Reducer struct {
	limits Limits

	items   []ChatItem
	idIndex map[string]int

	renderVersion int

	streamingAssistantID string
	thinkingID           string
	turnOpen             bool
	openTools            map[string]struct{}

	expanded map[string]struct{}

	outputs *ToolOutputStore
	args    *ToolArgsStore
	details *ToolDetailsStore

	lastTrace              []types.TraceEvent
	lastSigCount           int
	lastSigLastID          string
	hasTraceSignature      bool
	lastLoadWasIncremental bool
	mutatedSinceLoad       bool

	idSeq int
}

func NewReducer() *Reducer {
	return NewReducerWithLimits(DefaultLimits())
}

func NewReducerWithLimits(limits Limits) *Reducer {
	limits = limits.normalized()
	return &Reducer{
		limits:    limits,
		idIndex:   map[string]int{},
		openTools: map[string]struct{}{},
		expanded:  map[string]struct{}{},
		outputs:   NewToolOutputStore(limits.PerToolOutputBytes, limits.TotalOutputBytes),
		args:      NewToolArgsStore(),
		details:   NewToolDetailsStore(),
	}
}

// Items returns the ordered display list. Callers must treat it as
// read-only; it is only valid until the next mutation.
func (r *Reducer) Items() []ChatItem {
	if r == nil {
		return nil
	}
	return r.items
}

func (r *Reducer) RenderVersion() int {
	if r == nil {
		return 0
	}
	return r.renderVersion
}

// StreamingAssistantID identifies the assistant item currently receiving
// text deltas, or "" when no turn is streaming text.
func (r *Reducer) StreamingAssistantID() string {
	if r == nil {
		return ""
	}
	return r.streamingAssistantID
}

func (r *Reducer) OutputStore() *ToolOutputStore {
	if r == nil {
		return nil
	}
	return r.outputs
}

func (r *Reducer) ArgsStore() *ToolArgsStore {
	if r == nil {
		return nil
	}
	return r.args
}

func (r *Reducer) DetailsStore() *ToolDetailsStore {
	if r == nil {
		return nil
	}
	return r.details
}

// Process applies one live event, bumping the render version once if the
// event produced an observable change.
func (r *Reducer) Process(event types.AgentEvent) {
	if r == nil {
		return
	}
	if r.applyEvent(event) {
		r.mutatedSinceLoad = true
		r.renderVersion++
	}
}

// ProcessBatch applies events in order with at most one render version
// bump for the whole batch. The final state is identical to calling
// Process for each event sequentially.
func (r *Reducer) ProcessBatch(events []types.AgentEvent) {
	if r == nil || len(events) == 0 {
		return
	}
	changed := false
	for _, event := range events {
		if r.applyEvent(event) {
			changed = true
		}
	}
	if changed {
		r.mutatedSinceLoad = true
		r.renderVersion++
	}
}

func (r *Reducer) applyEvent(event types.AgentEvent) bool {
	switch event.Kind {
	case types.AgentEventStart:
		return r.applyAgentStart()
	case types.AgentEventEnd:
		return r.closeTurn()
	case types.AgentEventTextDelta:
		return r.applyTextDelta(event.Delta)
	case types.AgentEventThinkingDelta:
		return r.applyThinkingDelta(event.Delta)
	case types.AgentEventMessageEnd:
		return r.applyMessageEnd(event.Content)
	case types.AgentEventToolStart:
		return r.applyToolStart(event.ToolEventID, event.Tool, event.Args)
	case types.AgentEventToolOutput:
		return r.applyToolOutput(event.ToolEventID, event.Output, event.IsError)
	case types.AgentEventToolEnd:
		return r.applyToolEnd(event.ToolEventID, event.Details)
	case types.AgentEventCompactionStart:
		return r.appendItem(ChatItem{
			ID:        r.nextID("compaction"),
			Kind:      ItemCompaction,
			Timestamp: time.Now(),
			Text:      "Compacting conversation",
		})
	case types.AgentEventCompactionEnd:
		return r.appendItem(ChatItem{
			ID:        r.nextID("sys"),
			Kind:      ItemSystemEvent,
			Timestamp: time.Now(),
			Text:      compactionMessage(event.TokensBefore, event.Summary),
		})
	case types.AgentEventSessionEnded:
		changed := r.closeTurn()
		message := strings.TrimSpace(event.Message)
		if message == "" {
			message = "Session ended"
		}
		if r.appendItem(ChatItem{
			ID:        r.nextID("sys"),
			Kind:      ItemSystemEvent,
			Timestamp: time.Now(),
			Text:      message,
		}) {
			changed = true
		}
		return changed
	case types.AgentEventPermissionRequest:
		id := event.PermissionID
		if id == "" {
			id = r.nextID("perm")
		}
		return r.appendItem(ChatItem{
			ID:        id,
			Kind:      ItemPermission,
			Timestamp: time.Now(),
			Tool:      event.Tool,
			Text:      event.Message,
		})
	case types.AgentEventPermissionResolved:
		idx, ok := r.idIndex[event.PermissionID]
		if !ok || r.items[idx].Kind != ItemPermission {
			return false
		}
		r.items[idx].Kind = ItemPermissionResolved
		r.items[idx].Outcome = event.Outcome
		return true
	case types.AgentEventError:
		// Appended regardless of turn state; late errors after a session
		// has logically ended are still shown.
		return r.appendItem(ChatItem{
			ID:        r.nextID("err"),
			Kind:      ItemError,
			Timestamp: time.Now(),
			Text:      event.Message,
		})
	default:
		return false
	}
}

// applyAgentStart opens a new turn. A duplicate start mid-turn keeps the
// first turn's items in place and simply moves the streaming cursor on.
func (r *Reducer) applyAgentStart() bool {
	changed := r.streamingAssistantID != ""
	r.streamingAssistantID = ""
	r.thinkingID = ""
	r.turnOpen = true
	return changed
}

func (r *Reducer) applyTextDelta(delta string) bool {
	if delta == "" {
		return false
	}
	if r.streamingAssistantID == "" {
		item := ChatItem{
			ID:        r.nextID("msg"),
			Kind:      ItemAssistantMessage,
			Timestamp: time.Now(),
			Text:      delta,
		}
		if !r.appendItem(item) {
			return false
		}
		r.streamingAssistantID = item.ID
		return true
	}
	idx, ok := r.idIndex[r.streamingAssistantID]
	if !ok {
		r.streamingAssistantID = ""
		return r.applyTextDelta(delta)
	}
	r.items[idx].Text += delta
	return true
}

func (r *Reducer) applyThinkingDelta(delta string) bool {
	if delta == "" {
		return false
	}
	if r.thinkingID == "" {
		item := ChatItem{
			ID:        r.nextID("thinking"),
			Kind:      ItemThinking,
			Timestamp: time.Now(),
			Preview:   delta,
			HasMore:   len([]rune(delta)) > r.limits.ThinkingPreviewRunes,
		}
		if !r.appendItem(item) {
			return false
		}
		r.thinkingID = item.ID
		return true
	}
	idx, ok := r.idIndex[r.thinkingID]
	if !ok {
		r.thinkingID = ""
		return r.applyThinkingDelta(delta)
	}
	// Preview always holds the full accumulated text; HasMore is a
	// display hint, not a data-loss signal.
	r.items[idx].Preview += delta
	r.items[idx].HasMore = len([]rune(r.items[idx].Preview)) > r.limits.ThinkingPreviewRunes
	return true
}

// applyMessageEnd replaces the streaming item's accumulated deltas with
// the authoritative final content, or creates the item outright when no
// deltas ever arrived.
func (r *Reducer) applyMessageEnd(content string) bool {
	if r.streamingAssistantID != "" {
		idx, ok := r.idIndex[r.streamingAssistantID]
		r.streamingAssistantID = ""
		if !ok {
			return false
		}
		r.items[idx].Text = content
		return true
	}
	if strings.TrimSpace(content) == "" {
		return false
	}
	return r.appendItem(ChatItem{
		ID:        r.nextID("msg"),
		Kind:      ItemAssistantMessage,
		Timestamp: time.Now(),
		Text:      content,
	})
}

func (r *Reducer) applyToolStart(toolID, tool string, args map[string]any) bool {
	if toolID == "" {
		return false
	}
	if idx, ok := r.idIndex[toolID]; ok {
		if r.items[idx].Kind != ItemToolCall {
			return false
		}
		// Duplicate start, or a restart of a row loaded from history:
		// update in place, never a second row.
		r.items[idx].Tool = tool
		r.items[idx].ArgsSummary = summarizeArgs(args)
		r.items[idx].IsDone = false
		r.args.Set(args, toolID)
		r.openTools[toolID] = struct{}{}
		return true
	}
	r.finishStreamingSegment()
	if !r.appendItem(ChatItem{
		ID:          toolID,
		Kind:        ItemToolCall,
		Timestamp:   time.Now(),
		Tool:        tool,
		ArgsSummary: summarizeArgs(args),
	}) {
		return false
	}
	r.args.Set(args, toolID)
	r.openTools[toolID] = struct{}{}
	return true
}

func (r *Reducer) applyToolOutput(toolID, output string, isError bool) bool {
	if toolID == "" {
		return false
	}
	changed := r.outputs.Append(output, toolID)
	idx, ok := r.idIndex[toolID]
	if !ok || r.items[idx].Kind != ItemToolCall {
		// Output for an unknown tool is stored but reflected nowhere.
		return changed
	}
	erroring := r.items[idx].IsError || isError
	if !changed && erroring == r.items[idx].IsError {
		// True no-op past the cap: skip the render bump entirely.
		return false
	}
	r.items[idx].IsError = erroring
	r.items[idx].OutputPreview = outputPreview(r.outputs.FullOutput(toolID), r.limits.OutputPreviewBytes)
	r.items[idx].OutputBytes = r.outputs.OutputBytes(toolID)
	return true
}

func (r *Reducer) applyToolEnd(toolID string, details []byte) bool {
	idx, ok := r.idIndex[toolID]
	if !ok || r.items[idx].Kind != ItemToolCall {
		// A late end with no matching row never creates one.
		return false
	}
	delete(r.openTools, toolID)
	if r.items[idx].IsDone && len(details) == 0 {
		return false
	}
	r.items[idx].IsDone = true
	r.details.Set(details, toolID)
	return true
}

// closeTurn finalizes the streaming cursor and orphan-closes any tool
// rows still open, without synthesizing missing output.
func (r *Reducer) closeTurn() bool {
	changed := false
	if r.streamingAssistantID != "" {
		changed = true
		r.finishStreamingSegment()
	}
	if r.thinkingID != "" {
		if idx, ok := r.idIndex[r.thinkingID]; ok && !r.items[idx].IsDone {
			r.items[idx].IsDone = true
			changed = true
		}
		r.thinkingID = ""
	}
	for toolID := range r.openTools {
		if idx, ok := r.idIndex[toolID]; ok && !r.items[idx].IsDone {
			r.items[idx].IsDone = true
			changed = true
		}
	}
	r.openTools = map[string]struct{}{}
	r.turnOpen = false
	return changed
}

// finishStreamingSegment closes the current assistant segment so the next
// delta starts a fresh item. A whitespace-only segment bordering a tool
// call is dropped rather than left as an empty row.
func (r *Reducer) finishStreamingSegment() {
	id := r.streamingAssistantID
	r.streamingAssistantID = ""
	if id == "" {
		return
	}
	idx, ok := r.idIndex[id]
	if !ok {
		return
	}
	if strings.TrimSpace(r.items[idx].Text) != "" {
		return
	}
	r.removeItem(idx)
}

// AppendPermissionRequest records a pending tool approval row. The
// surrounding app layer owns when these appear; the reducer only keeps
// them ordered and unique.
func (r *Reducer) AppendPermissionRequest(req PermissionRequest) {
	if r == nil {
		return
	}
	id := req.ID
	if id == "" {
		id = r.nextID("perm")
	}
	if r.appendItem(ChatItem{
		ID:        id,
		Kind:      ItemPermission,
		Timestamp: time.Now(),
		Tool:      req.Tool,
		Text:      req.Summary,
	}) {
		r.mutatedSinceLoad = true
		r.renderVersion++
	}
}

// ResolvePermission converts a pending permission row into its resolved
// form in place, preserving position and identity.
func (r *Reducer) ResolvePermission(id, outcome string) {
	if r == nil {
		return
	}
	idx, ok := r.idIndex[id]
	if !ok || r.items[idx].Kind != ItemPermission {
		return
	}
	r.items[idx].Kind = ItemPermissionResolved
	r.items[idx].Outcome = outcome
	r.mutatedSinceLoad = true
	r.renderVersion++
}

// ToggleExpanded flips the UI expansion state for an item and returns the
// new state.
func (r *Reducer) ToggleExpanded(id string) bool {
	if r == nil || id == "" {
		return false
	}
	if _, ok := r.expanded[id]; ok {
		delete(r.expanded, id)
		r.renderVersion++
		return false
	}
	r.expanded[id] = struct{}{}
	r.renderVersion++
	return true
}

func (r *Reducer) IsExpanded(id string) bool {
	if r == nil {
		return false
	}
	_, ok := r.expanded[id]
	return ok
}

func (r *Reducer) ExpandedCount() int {
	if r == nil {
		return 0
	}
	return len(r.expanded)
}

// MemoryReliefReport summarizes what HandleMemoryWarning released.
type MemoryReliefReport struct {
	OutputBytesFreed int
	DetailsCleared   int
	ItemsCollapsed   int
	ImagesStripped   int
}

// HandleMemoryWarning sheds reconstructible weight: tool output, tool
// details, expansion state, and inline image payloads. The rows
// themselves are never removed, and the render version moves exactly once
// for the whole sweep.
func (r *Reducer) HandleMemoryWarning() MemoryReliefReport {
	if r == nil {
		return MemoryReliefReport{}
	}
	var report MemoryReliefReport
	report.OutputBytesFreed = r.outputs.Clear()
	report.DetailsCleared = r.details.Len()
	r.details.ClearAll()
	report.ItemsCollapsed = len(r.expanded)
	r.expanded = map[string]struct{}{}
	for i := range r.items {
		if r.items[i].Kind == ItemUserMessage && len(r.items[i].Images) > 0 {
			r.items[i].Images = nil
			report.ImagesStripped++
		}
	}
	if report.OutputBytesFreed > 0 || report.DetailsCleared > 0 ||
		report.ItemsCollapsed > 0 || report.ImagesStripped > 0 {
		r.renderVersion++
	}
	return report
}

// Reset clears items, side stores, trace bookkeeping, and the streaming
// cursor atomically, with a single render version bump.
func (r *Reducer) Reset() {
	if r == nil {
		return
	}
	r.items = nil
	r.idIndex = map[string]int{}
	r.streamingAssistantID = ""
	r.thinkingID = ""
	r.turnOpen = false
	r.openTools = map[string]struct{}{}
	r.expanded = map[string]struct{}{}
	r.outputs.Clear()
	r.args.ClearAll()
	r.details.ClearAll()
	r.lastTrace = nil
	r.lastSigCount = 0
	r.lastSigLastID = ""
	r.hasTraceSignature = false
	r.lastLoadWasIncremental = false
	r.mutatedSinceLoad = false
	r.renderVersion++
}

func (r *Reducer) appendItem(item ChatItem) bool {
	if item.ID == "" {
		return false
	}
	if _, exists := r.idIndex[item.ID]; exists {
		// Duplicate IDs are a correctness bug upstream; never let one
		// shadow an existing row.
		return false
	}
	r.idIndex[item.ID] = len(r.items)
	r.items = append(r.items, item)
	return true
}

func (r *Reducer) removeItem(idx int) {
	if idx < 0 || idx >= len(r.items) {
		return
	}
	delete(r.idIndex, r.items[idx].ID)
	copy(r.items[idx:], r.items[idx+1:])
	r.items = r.items[:len(r.items)-1]
	for i := idx; i < len(r.items); i++ {
		r.idIndex[r.items[i].ID] = i
	}
}

func (r *Reducer) nextID(prefix string) string {
	r.idSeq++
	return fmt.Sprintf("%s-%d", prefix, r.idSeq)
}

func compactionMessage(tokensBefore int, summary string) string {
	if strings.TrimSpace(summary) == "" {
		return fmt.Sprintf("Compacted %s tokens of history", formatTokenCount(tokensBefore))
	}
	// The summary rides along verbatim, never truncated.
	return fmt.Sprintf("Compacted %s tokens of history\n\n%s", formatTokenCount(tokensBefore), summary)
}
