package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type ItemKind string

const (
	ItemUserMessage        ItemKind = "userMessage"
	ItemAssistantMessage   ItemKind = "assistantMessage"
	ItemToolCall           ItemKind = "toolCall"
	ItemThinking           ItemKind = "thinking"
	ItemSystemEvent        ItemKind = "systemEvent"
	ItemError              ItemKind = "error"
	ItemPermission         ItemKind = "permission"
	ItemPermissionResolved ItemKind = "permissionResolved"
	ItemCompaction         ItemKind = "compaction"
)

// PermissionRequest is appended by the surrounding app layer when the
// server asks for a tool approval; the reducer only records and resolves it.
type PermissionRequest struct {
	ID      string
	Tool    string
	Summary string
}

// ChatItem is one renderable timeline row. Kind selects which payload
// fields are meaningful; ID is stable for the item's whole lifetime and
// unique across the list.
type ChatItem struct {
	ID        string
	Kind      ItemKind
	Timestamp time.Time

	// userMessage / assistantMessage / systemEvent / error / compaction
	Text   string
	Images []string

	// toolCall
	Tool          string
	ArgsSummary   string
	OutputPreview string
	OutputBytes   int
	IsError       bool
	IsDone        bool

	// thinking
	Preview string
	HasMore bool

	// permission / permissionResolved
	Outcome string
}

const argsSummaryMaxRunes = 120

// summarizeArgs renders an argument map as a stable one-line summary.
// Keys are sorted so the same map always produces the same string.
func summarizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", key, args[key]))
	}
	summary := strings.Join(parts, ", ")
	runes := []rune(summary)
	if len(runes) > argsSummaryMaxRunes {
		summary = string(runes[:argsSummaryMaxRunes-1]) + "…"
	}
	return summary
}

// outputPreview collapses the tail of a tool's accumulated output into a
// single display line.
func outputPreview(full string, maxBytes int) string {
	if full == "" || maxBytes <= 0 {
		return ""
	}
	if len(full) > maxBytes {
		tail := full[len(full)-maxBytes:]
		if idx := strings.IndexByte(tail, '\n'); idx >= 0 && idx+1 < len(tail) {
			tail = tail[idx+1:]
		}
		full = tail
	}
	full = strings.ReplaceAll(full, "\n", " ")
	return strings.TrimSpace(full)
}

// formatTokenCount renders n with thousands separators, e.g. 1234567
// becomes "1,234,567".
func formatTokenCount(n int) string {
	if n < 0 {
		return "-" + formatTokenCount(-n)
	}
	raw := fmt.Sprintf("%d", n)
	if len(raw) <= 3 {
		return raw
	}
	var b strings.Builder
	lead := len(raw) % 3
	if lead > 0 {
		b.WriteString(raw[:lead])
	}
	for i := lead; i < len(raw); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(raw[i : i+3])
	}
	return b.String()
}
