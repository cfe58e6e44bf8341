package timeline

import (
	"strings"
	"testing"

	"parley/internal/types"
)

func evStart() types.AgentEvent {
	return types.AgentEvent{Kind: types.AgentEventStart, SessionID: "s1"}
}

func evEnd() types.AgentEvent {
	return types.AgentEvent{Kind: types.AgentEventEnd, SessionID: "s1"}
}

func evText(delta string) types.AgentEvent {
	return types.AgentEvent{Kind: types.AgentEventTextDelta, SessionID: "s1", Delta: delta}
}

func evThinking(delta string) types.AgentEvent {
	return types.AgentEvent{Kind: types.AgentEventThinkingDelta, SessionID: "s1", Delta: delta}
}

func evMessageEnd(content string) types.AgentEvent {
	return types.AgentEvent{Kind: types.AgentEventMessageEnd, SessionID: "s1", Content: content}
}

func evToolStart(id, tool string) types.AgentEvent {
	return types.AgentEvent{Kind: types.AgentEventToolStart, SessionID: "s1", ToolEventID: id, Tool: tool}
}

func evToolOutput(id, output string, isError bool) types.AgentEvent {
	return types.AgentEvent{Kind: types.AgentEventToolOutput, SessionID: "s1", ToolEventID: id, Output: output, IsError: isError}
}

func evToolEnd(id string) types.AgentEvent {
	return types.AgentEvent{Kind: types.AgentEventToolEnd, SessionID: "s1", ToolEventID: id}
}

func assertUniqueIDs(t *testing.T, r *Reducer) {
	t.Helper()
	seen := map[string]struct{}{}
	for _, item := range r.Items() {
		if _, ok := seen[item.ID]; ok {
			t.Fatalf("duplicate item ID %q", item.ID)
		}
		seen[item.ID] = struct{}{}
	}
}

func TestReducerSplitsTextAroundToolCalls(t *testing.T) {
	r := NewReducer()
	r.Process(evStart())
	r.Process(evText("before"))
	r.Process(evToolStart("t1", "bash"))
	r.Process(evToolEnd("t1"))
	r.Process(evText("after"))
	r.Process(evEnd())

	items := r.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Kind != ItemAssistantMessage || items[0].Text != "before" {
		t.Fatalf("unexpected first item %+v", items[0])
	}
	if items[1].Kind != ItemToolCall || items[1].ID != "t1" {
		t.Fatalf("unexpected second item %+v", items[1])
	}
	if items[2].Kind != ItemAssistantMessage || items[2].Text != "after" {
		t.Fatalf("unexpected third item %+v", items[2])
	}
	assertUniqueIDs(t, r)
}

func TestReducerDiscardsWhitespaceSegmentBeforeTool(t *testing.T) {
	r := NewReducer()
	r.Process(evStart())
	r.Process(evText("\n\n"))
	r.Process(evToolStart("t1", "bash"))
	r.Process(evToolEnd("t1"))
	r.Process(evText("Done!"))
	r.Process(evEnd())

	items := r.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Kind != ItemToolCall {
		t.Fatalf("expected tool call first, got %+v", items[0])
	}
	if items[1].Kind != ItemAssistantMessage || items[1].Text != "Done!" {
		t.Fatalf("unexpected trailing message %+v", items[1])
	}
}

func TestReducerDuplicateToolStartUpdatesInPlace(t *testing.T) {
	r := NewReducer()
	r.Process(evStart())
	r.Process(evToolStart("t1", "bash"))
	r.Process(evToolStart("t1", "shell"))

	items := r.Items()
	if len(items) != 1 {
		t.Fatalf("expected exactly one tool row, got %d", len(items))
	}
	if items[0].Tool != "shell" {
		t.Fatalf("expected tool name updated in place, got %q", items[0].Tool)
	}
	if items[0].IsDone {
		t.Fatalf("expected tool still open after duplicate start")
	}
}

func TestReducerOrphanToolClosedOnAgentEnd(t *testing.T) {
	r := NewReducer()
	r.Process(evStart())
	r.Process(evToolStart("t1", "bash"))
	r.Process(evEnd())

	items := r.Items()
	if len(items) != 1 || !items[0].IsDone {
		t.Fatalf("expected orphan tool closed on agent end, got %+v", items)
	}
	if items[0].OutputBytes != 0 {
		t.Fatalf("expected no synthesized output for orphan, got %d bytes", items[0].OutputBytes)
	}
}

func TestReducerLateToolEndIsNoOp(t *testing.T) {
	r := NewReducer()
	r.Process(evStart())
	v := r.RenderVersion()
	r.Process(evToolEnd("ghost"))

	if len(r.Items()) != 0 {
		t.Fatalf("expected no row created for unknown tool end")
	}
	if r.RenderVersion() != v {
		t.Fatalf("expected no render bump for a no-op")
	}
}

func TestReducerToolOutputAccumulatesAndFlagsErrors(t *testing.T) {
	r := NewReducer()
	r.Process(evStart())
	r.Process(evToolStart("t1", "bash"))
	r.Process(evToolOutput("t1", "line one\n", false))
	r.Process(evToolOutput("t1", "line two\n", true))
	r.Process(evToolOutput("t1", "line three\n", false))

	items := r.Items()
	if len(items) != 1 {
		t.Fatalf("expected one tool row, got %d", len(items))
	}
	if !items[0].IsError {
		t.Fatalf("expected error flag to accumulate via OR")
	}
	if got := r.OutputStore().FullOutput("t1"); got != "line one\nline two\nline three\n" {
		t.Fatalf("unexpected accumulated output %q", got)
	}
	if items[0].OutputBytes != len("line one\nline two\nline three\n") {
		t.Fatalf("unexpected byte count %d", items[0].OutputBytes)
	}
}

func TestReducerSkipsRenderBumpForCappedOutput(t *testing.T) {
	r := NewReducerWithLimits(Limits{PerToolOutputBytes: 8, TotalOutputBytes: 64})
	r.Process(evStart())
	r.Process(evToolStart("t1", "bash"))
	r.Process(evToolOutput("t1", "0123456789", false))

	v := r.RenderVersion()
	for i := 0; i < 50; i++ {
		r.Process(evToolOutput("t1", "tiny chunk", false))
	}
	if r.RenderVersion() != v {
		t.Fatalf("expected no render bumps after cap, version moved %d -> %d", v, r.RenderVersion())
	}
}

func TestReducerOutputForUnknownToolIsStoredSilently(t *testing.T) {
	r := NewReducer()
	r.Process(evStart())
	r.Process(evToolOutput("mystery", "data", false))

	if len(r.Items()) != 0 {
		t.Fatalf("expected no row for unknown tool output")
	}
	if got := r.OutputStore().FullOutput("mystery"); got != "data" {
		t.Fatalf("expected output stored anyway, got %q", got)
	}
}

func TestReducerMessageEndReplacesAccumulatedDeltas(t *testing.T) {
	r := NewReducer()
	r.Process(evStart())
	r.Process(evText("Hel"))
	r.Process(evText("lo wor"))
	r.Process(evMessageEnd("Hello world"))

	items := r.Items()
	if len(items) != 1 || items[0].Text != "Hello world" {
		t.Fatalf("expected authoritative content to replace deltas, got %+v", items)
	}
	if r.StreamingAssistantID() != "" {
		t.Fatalf("expected streaming pointer cleared after message end")
	}
}

func TestReducerMessageEndWithoutDeltasCreatesItem(t *testing.T) {
	r := NewReducer()
	r.Process(evStart())
	r.Process(evMessageEnd("fast answer"))

	items := r.Items()
	if len(items) != 1 || items[0].Kind != ItemAssistantMessage || items[0].Text != "fast answer" {
		t.Fatalf("expected direct assistant item, got %+v", items)
	}
}

func TestReducerStreamingPointerTracksActiveItem(t *testing.T) {
	r := NewReducer()
	r.Process(evStart())
	if r.StreamingAssistantID() != "" {
		t.Fatalf("expected no streaming item before first delta")
	}
	r.Process(evText("hi"))
	id := r.StreamingAssistantID()
	if id == "" {
		t.Fatalf("expected streaming pointer after first delta")
	}
	r.Process(evToolStart("t1", "bash"))
	if r.StreamingAssistantID() != "" {
		t.Fatalf("expected streaming pointer cleared when a tool starts")
	}
	r.Process(evText("more"))
	if next := r.StreamingAssistantID(); next == "" || next == id {
		t.Fatalf("expected a fresh streaming item after the tool, got %q", next)
	}
}

func TestReducerDuplicateAgentStartKeepsFirstTurn(t *testing.T) {
	r := NewReducer()
	r.Process(evStart())
	r.Process(evText("first turn text"))
	r.Process(evStart())
	r.Process(evText("second turn text"))
	r.Process(evEnd())

	items := r.Items()
	if len(items) != 2 {
		t.Fatalf("expected both turns' items visible, got %d", len(items))
	}
	if items[0].Text != "first turn text" || items[1].Text != "second turn text" {
		t.Fatalf("unexpected turn contents %+v", items)
	}
	assertUniqueIDs(t, r)
}

func TestReducerThinkingPreviewKeepsFullText(t *testing.T) {
	r := NewReducerWithLimits(Limits{ThinkingPreviewRunes: 10})
	r.Process(evStart())
	r.Process(evThinking("short"))

	items := r.Items()
	if len(items) != 1 || items[0].Kind != ItemThinking {
		t.Fatalf("expected thinking item, got %+v", items)
	}
	if items[0].HasMore {
		t.Fatalf("expected HasMore false under threshold")
	}

	r.Process(evThinking(" and then a lot more reasoning"))
	items = r.Items()
	if len(items) != 1 {
		t.Fatalf("expected a single thinking item per turn, got %d", len(items))
	}
	if !items[0].HasMore {
		t.Fatalf("expected HasMore once past threshold")
	}
	if items[0].Preview != "short and then a lot more reasoning" {
		t.Fatalf("expected full accumulated text retained, got %q", items[0].Preview)
	}

	r.Process(evEnd())
	if !r.Items()[0].IsDone {
		t.Fatalf("expected thinking marked done at turn end")
	}
}

func TestReducerErrorAppendsEvenAfterSessionEnd(t *testing.T) {
	r := NewReducer()
	r.Process(evStart())
	r.Process(evText("hello"))
	r.Process(types.AgentEvent{Kind: types.AgentEventSessionEnded, SessionID: "s1"})
	r.Process(types.AgentEvent{Kind: types.AgentEventError, SessionID: "s1", Message: "connection dropped"})

	items := r.Items()
	last := items[len(items)-1]
	if last.Kind != ItemError || last.Text != "connection dropped" {
		t.Fatalf("expected late error appended, got %+v", last)
	}
}

func TestReducerSessionEndedClosesOpenTools(t *testing.T) {
	r := NewReducer()
	r.Process(evStart())
	r.Process(evToolStart("t1", "bash"))
	r.Process(types.AgentEvent{Kind: types.AgentEventSessionEnded, SessionID: "s1"})

	items := r.Items()
	if len(items) != 2 {
		t.Fatalf("expected tool row plus session-ended row, got %d", len(items))
	}
	if !items[0].IsDone {
		t.Fatalf("expected open tool closed on session end")
	}
	if items[1].Kind != ItemSystemEvent {
		t.Fatalf("expected system event row, got %+v", items[1])
	}
}

func TestReducerCompactionEndEmbedsTokenCountAndSummary(t *testing.T) {
	summary := strings.Repeat("a long compaction summary. ", 40)
	r := NewReducer()
	r.Process(types.AgentEvent{Kind: types.AgentEventCompactionStart, SessionID: "s1"})
	r.Process(types.AgentEvent{
		Kind:         types.AgentEventCompactionEnd,
		SessionID:    "s1",
		TokensBefore: 123456,
		Summary:      summary,
	})

	items := r.Items()
	if len(items) != 2 {
		t.Fatalf("expected compaction start and end rows, got %d", len(items))
	}
	if items[0].Kind != ItemCompaction {
		t.Fatalf("expected compaction row first, got %+v", items[0])
	}
	message := items[1].Text
	if !strings.Contains(message, "123,456") {
		t.Fatalf("expected thousands-separated token count, got %q", message)
	}
	if !strings.Contains(message, summary) {
		t.Fatalf("expected full summary verbatim in %q", message)
	}
}

func TestReducerBatchMatchesSequentialApplication(t *testing.T) {
	events := []types.AgentEvent{
		evStart(),
		evText("before "),
		evThinking("hmm"),
		evToolStart("t1", "bash"),
		evToolOutput("t1", "out", false),
		evToolEnd("t1"),
		evText("after"),
		evMessageEnd("after"),
		evEnd(),
	}

	sequential := NewReducer()
	for _, event := range events {
		sequential.Process(event)
	}
	batched := NewReducer()
	batched.ProcessBatch(events)

	a, b := sequential.Items(), batched.Items()
	if len(a) != len(b) {
		t.Fatalf("item count mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].Text != b[i].Text || a[i].IsDone != b[i].IsDone {
			t.Fatalf("item %d mismatch: %+v vs %+v", i, a[i], b[i])
		}
	}
	if sequential.OutputStore().FullOutput("t1") != batched.OutputStore().FullOutput("t1") {
		t.Fatalf("side store mismatch between batch and sequential")
	}
	if batched.RenderVersion() != 1 {
		t.Fatalf("expected exactly one render bump for the batch, got %d", batched.RenderVersion())
	}
}

func TestReducerBatchWithNoChangesSkipsRenderBump(t *testing.T) {
	r := NewReducer()
	v := r.RenderVersion()
	r.ProcessBatch([]types.AgentEvent{evToolEnd("ghost"), evToolEnd("ghost2")})
	if r.RenderVersion() != v {
		t.Fatalf("expected no bump for an all-no-op batch")
	}
}

func TestReducerResetIsolatesSessions(t *testing.T) {
	r := NewReducer()
	r.Process(evStart())
	r.Process(evText("s1 text"))
	r.Process(evToolStart("t1", "bash"))
	r.Process(evToolOutput("t1", "s1 output", false))
	r.ToggleExpanded("t1")

	r.Reset()
	if len(r.Items()) != 0 {
		t.Fatalf("expected no items after reset")
	}
	if r.OutputStore().TotalBytes() != 0 || r.ArgsStore().Len() != 0 || r.DetailsStore().Len() != 0 {
		t.Fatalf("expected side stores cleared by reset")
	}
	if r.ExpandedCount() != 0 {
		t.Fatalf("expected expansion state cleared by reset")
	}
	if r.StreamingAssistantID() != "" {
		t.Fatalf("expected streaming pointer cleared by reset")
	}

	r.Process(types.AgentEvent{Kind: types.AgentEventStart, SessionID: "s2"})
	r.Process(types.AgentEvent{Kind: types.AgentEventTextDelta, SessionID: "s2", Delta: "s2 text"})
	for _, item := range r.Items() {
		if strings.Contains(item.Text, "s1") {
			t.Fatalf("found leftover s1 content after reset: %+v", item)
		}
	}
	assertUniqueIDs(t, r)
}

func TestReducerMemoryWarningShedsWeightButKeepsRows(t *testing.T) {
	r := NewReducer()
	r.LoadSession([]types.TraceEvent{
		{ID: "u1", Type: types.TraceEventUser, Text: "look data:image/png;base64,AAAA= here"},
	})
	r.Process(evStart())
	r.Process(evToolStart("t1", "bash"))
	r.Process(evToolOutput("t1", "lots of output", false))
	r.Process(types.AgentEvent{Kind: types.AgentEventToolEnd, SessionID: "s1", ToolEventID: "t1", Details: []byte(`{"exit":0}`)})
	r.ToggleExpanded("t1")

	itemCount := len(r.Items())
	v := r.RenderVersion()
	report := r.HandleMemoryWarning()

	if r.OutputStore().TotalBytes() != 0 {
		t.Fatalf("expected output store emptied")
	}
	if r.DetailsStore().Len() != 0 {
		t.Fatalf("expected details store emptied")
	}
	if r.ExpandedCount() != 0 {
		t.Fatalf("expected expanded set emptied")
	}
	for _, item := range r.Items() {
		if item.Kind == ItemUserMessage && len(item.Images) != 0 {
			t.Fatalf("expected image payloads stripped, got %+v", item)
		}
	}
	if len(r.Items()) != itemCount {
		t.Fatalf("expected item rows preserved, had %d now %d", itemCount, len(r.Items()))
	}
	if r.RenderVersion() != v+1 {
		t.Fatalf("expected exactly one render bump, got %d -> %d", v, r.RenderVersion())
	}
	if report.OutputBytesFreed == 0 || report.ItemsCollapsed != 1 || report.ImagesStripped != 1 || report.DetailsCleared != 1 {
		t.Fatalf("unexpected relief report %+v", report)
	}
}

func TestReducerPermissionLifecycle(t *testing.T) {
	r := NewReducer()
	r.AppendPermissionRequest(PermissionRequest{ID: "p1", Tool: "bash", Summary: "run ls"})

	items := r.Items()
	if len(items) != 1 || items[0].Kind != ItemPermission {
		t.Fatalf("expected permission row, got %+v", items)
	}

	r.ResolvePermission("p1", "allowed")
	items = r.Items()
	if items[0].Kind != ItemPermissionResolved || items[0].Outcome != "allowed" {
		t.Fatalf("expected resolved row in place, got %+v", items[0])
	}
	if items[0].ID != "p1" {
		t.Fatalf("expected identity preserved across resolution")
	}
}

func TestReducerPermissionEventsOnStream(t *testing.T) {
	r := NewReducer()
	r.ProcessBatch([]types.AgentEvent{
		{Kind: types.AgentEventPermissionRequest, SessionID: "s1", PermissionID: "p9", Tool: "bash", Message: "run rm"},
		{Kind: types.AgentEventPermissionRequest, SessionID: "s1", PermissionID: "p9", Tool: "bash", Message: "run rm"},
	})

	items := r.Items()
	if len(items) != 1 || items[0].Kind != ItemPermission || items[0].Text != "run rm" {
		t.Fatalf("expected single permission row, got %+v", items)
	}

	r.Process(types.AgentEvent{Kind: types.AgentEventPermissionResolved, SessionID: "s1", PermissionID: "p9", Outcome: "denied"})
	items = r.Items()
	if items[0].Kind != ItemPermissionResolved || items[0].Outcome != "denied" {
		t.Fatalf("expected resolved row, got %+v", items[0])
	}

	// Resolving an unknown or already-resolved ID is a no-op.
	v := r.RenderVersion()
	r.Process(types.AgentEvent{Kind: types.AgentEventPermissionResolved, SessionID: "s1", PermissionID: "p9", Outcome: "allowed"})
	r.Process(types.AgentEvent{Kind: types.AgentEventPermissionResolved, SessionID: "s1", PermissionID: "nope", Outcome: "allowed"})
	if r.RenderVersion() != v || r.Items()[0].Outcome != "denied" {
		t.Fatalf("expected resolution to be final")
	}
}

func TestReducerRenderVersionIsMonotonic(t *testing.T) {
	r := NewReducer()
	last := r.RenderVersion()
	events := []types.AgentEvent{
		evStart(), evText("a"), evToolStart("t1", "bash"), evToolEnd("t1"),
		evToolEnd("t1"), evEnd(), evEnd(),
	}
	for _, event := range events {
		r.Process(event)
		if r.RenderVersion() < last {
			t.Fatalf("render version went backwards")
		}
		last = r.RenderVersion()
		assertUniqueIDs(t, r)
	}
}
