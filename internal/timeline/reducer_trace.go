package timeline

import (
	"fmt"
	"strings"

	"parley/internal/types"
)

// LoadSession applies a complete historical trace. Reapplying a trace
// with an unchanged (count, last ID) signature is a no-op. A trace that
// purely extends the previously loaded one is applied incrementally;
// anything else rebuilds the item list from scratch. Side stores are left
// alone except for the tool output/args the trace itself carries.
func (r *Reducer) LoadSession(trace []types.TraceEvent) {
	if r == nil {
		return
	}
	count := len(trace)
	lastID := ""
	if count > 0 {
		lastID = trace[count-1].ID
	}
	if r.hasTraceSignature && count == r.lastSigCount && lastID == r.lastSigLastID {
		return
	}

	// In-flight streaming state supersedes nothing: history wins, and a
	// diverged stream invalidates the incremental path outright. So do
	// live events applied since the last load, even from a turn that
	// already closed: the trace suffix now covers rows the stream built,
	// and appending it would duplicate them.
	streaming := r.turnOpen || r.streamingAssistantID != "" || r.thinkingID != "" || len(r.openTools) > 0
	if streaming {
		r.streamingAssistantID = ""
		r.thinkingID = ""
		r.turnOpen = false
		r.openTools = map[string]struct{}{}
	}

	if !streaming && !r.mutatedSinceLoad && r.isPureExtension(trace) {
		r.materializeTrace(trace[len(r.lastTrace):], len(r.lastTrace))
		r.lastLoadWasIncremental = true
	} else {
		r.items = nil
		r.idIndex = map[string]int{}
		r.materializeTrace(trace, 0)
		r.lastLoadWasIncremental = false
	}

	r.lastTrace = append([]types.TraceEvent(nil), trace...)
	r.lastSigCount = count
	r.lastSigLastID = lastID
	r.hasTraceSignature = true
	r.mutatedSinceLoad = false
	r.renderVersion++
}

// LastLoadWasIncremental reports whether the most recent LoadSession
// appended a suffix instead of rebuilding. Exposed for tests.
func (r *Reducer) LastLoadWasIncremental() bool {
	if r == nil {
		return false
	}
	return r.lastLoadWasIncremental
}

// isPureExtension reports whether trace strictly extends the previously
// loaded trace with a field-equal prefix. Conservative on purpose: any
// divergence, including equal length, forces a full rebuild.
func (r *Reducer) isPureExtension(trace []types.TraceEvent) bool {
	if len(r.lastTrace) == 0 || len(trace) <= len(r.lastTrace) {
		return false
	}
	for i := range r.lastTrace {
		if !r.lastTrace[i].Equal(trace[i]) {
			return false
		}
	}
	return true
}

// materializeTrace folds trace records into display items. startIndex is
// the event's absolute position in the full trace, used for fallback IDs
// so incremental and full application agree.
func (r *Reducer) materializeTrace(events []types.TraceEvent, startIndex int) {
	// Trace output is authoritative: the first fold for a tool in this
	// load replaces whatever a live stream had accumulated under its ID.
	folded := map[string]struct{}{}
	for i, event := range events {
		id := event.ID
		if id == "" {
			id = fmt.Sprintf("trace-%d", startIndex+i)
		}
		switch event.Type {
		case types.TraceEventUser:
			clean, images := extractDataImages(event.Text)
			r.appendItem(ChatItem{
				ID:        id,
				Kind:      ItemUserMessage,
				Timestamp: event.Timestamp,
				Text:      clean,
				Images:    images,
			})
		case types.TraceEventAssistant:
			clean, _ := extractDataImages(event.Text)
			r.appendItem(ChatItem{
				ID:        id,
				Kind:      ItemAssistantMessage,
				Timestamp: event.Timestamp,
				Text:      clean,
			})
		case types.TraceEventToolCall:
			// Every tool call in a trace is inherently resolved.
			if !r.appendItem(ChatItem{
				ID:          id,
				Kind:        ItemToolCall,
				Timestamp:   event.Timestamp,
				Tool:        event.Tool,
				ArgsSummary: summarizeArgs(event.Args),
				IsError:     event.IsError,
				IsDone:      true,
			}) {
				continue
			}
			r.args.Set(event.Args, id)
			r.details.Set(event.Details, id)
			if event.Output != "" {
				r.foldToolOutput(id, event.Output, event.IsError, folded)
			}
		case types.TraceEventToolResult:
			// Folded onto the matching tool call, never its own row.
			r.foldToolOutput(event.ToolCallID, event.Output, event.IsError, folded)
		case types.TraceEventThinking:
			text := event.Thinking
			if text == "" {
				text = event.Text
			}
			r.appendItem(ChatItem{
				ID:        id,
				Kind:      ItemThinking,
				Timestamp: event.Timestamp,
				Preview:   text,
				HasMore:   len([]rune(text)) > r.limits.ThinkingPreviewRunes,
				IsDone:    true,
			})
		case types.TraceEventSystem:
			r.appendItem(ChatItem{
				ID:        id,
				Kind:      ItemSystemEvent,
				Timestamp: event.Timestamp,
				Text:      event.Text,
			})
		case types.TraceEventError:
			r.appendItem(ChatItem{
				ID:        id,
				Kind:      ItemError,
				Timestamp: event.Timestamp,
				Text:      event.Text,
			})
		case types.TraceEventCompaction:
			message := event.Text
			if strings.TrimSpace(message) == "" || event.TokensBefore > 0 || event.Summary != "" {
				message = compactionMessage(event.TokensBefore, event.Summary)
			}
			r.appendItem(ChatItem{
				ID:        id,
				Kind:      ItemSystemEvent,
				Timestamp: event.Timestamp,
				Text:      message,
			})
		default:
			// Unknown record types are the transport's problem, not ours.
		}
	}
}

func (r *Reducer) foldToolOutput(toolID, output string, isError bool, folded map[string]struct{}) {
	if toolID == "" {
		return
	}
	idx, ok := r.idIndex[toolID]
	if !ok || r.items[idx].Kind != ItemToolCall {
		return
	}
	if _, ok := folded[toolID]; !ok {
		folded[toolID] = struct{}{}
		r.outputs.Drop(toolID)
	}
	r.outputs.Append(output, toolID)
	r.items[idx].IsError = r.items[idx].IsError || isError
	r.items[idx].OutputPreview = outputPreview(r.outputs.FullOutput(toolID), r.limits.OutputPreviewBytes)
	r.items[idx].OutputBytes = r.outputs.OutputBytes(toolID)
}
