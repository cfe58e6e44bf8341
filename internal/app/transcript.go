package app

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/mattn/go-runewidth"

	"parley/internal/timeline"
)

const (
	thinkingCollapsedLines = 3
	thinkingCollapsedChars = 280
	outputIndent           = "  "
)

// transcriptRenderer turns one chat item into its on-screen block. The
// output store is consulted only for expanded tool rows; everything else
// renders from the item itself.
type transcriptRenderer struct {
	outputs *timeline.ToolOutputStore
}

func (r transcriptRenderer) RenderItem(item timeline.ChatItem, width int, expanded bool) string {
	if width <= 0 {
		width = 80
	}
	switch item.Kind {
	case timeline.ItemUserMessage:
		return r.renderUser(item, width)
	case timeline.ItemAssistantMessage:
		return r.renderAssistant(item, width)
	case timeline.ItemThinking:
		return r.renderThinking(item, width, expanded)
	case timeline.ItemToolCall:
		return r.renderToolCall(item, width, expanded)
	case timeline.ItemSystemEvent:
		return systemLineStyle.Render(item.Text)
	case timeline.ItemError:
		return errorLineStyle.Render("✗ " + item.Text)
	case timeline.ItemPermission:
		line := "Permission requested: " + item.Tool
		if strings.TrimSpace(item.Text) != "" {
			line += " · " + item.Text
		}
		return permissionStyle.Render(line)
	case timeline.ItemPermissionResolved:
		return permissionDimmed.Render(fmt.Sprintf("Permission %s: %s", item.Tool, item.Outcome))
	case timeline.ItemCompaction:
		return compactionStyle.Render(item.Text)
	default:
		return ""
	}
}

func (r transcriptRenderer) renderUser(item timeline.ChatItem, width int) string {
	innerWidth := bubbleInnerWidth(width)
	text := renderMarkdown(escapeMarkdown(item.Text), innerWidth)
	lines := make([]string, 0, 4)
	if text != "" {
		bubble := userBubbleStyle.Render(text)
		lines = append(lines, strings.Split(lipgloss.PlaceHorizontal(width, lipgloss.Right, bubble), "\n")...)
	}
	for range item.Images {
		marker := imageMarkerStyle.Render("[image attached]")
		lines = append(lines, lipgloss.PlaceHorizontal(width, lipgloss.Right, marker))
	}
	return strings.Join(lines, "\n")
}

func (r transcriptRenderer) renderAssistant(item timeline.ChatItem, width int) string {
	innerWidth := bubbleInnerWidth(width)
	text := renderMarkdown(item.Text, innerWidth)
	if text == "" {
		return ""
	}
	return agentBubbleStyle.Render(text)
}

func (r transcriptRenderer) renderThinking(item timeline.ChatItem, width int, expanded bool) string {
	text := strings.TrimSpace(item.Preview)
	if text == "" {
		return ""
	}
	if !expanded {
		preview, truncated := collapsedPreviewText(text, thinkingCollapsedLines, thinkingCollapsedChars)
		if truncated || item.HasMore {
			preview += "\n… (press e to expand)"
		}
		text = preview
	}
	header := "Thinking"
	if !item.IsDone {
		header = "Thinking…"
	}
	return thinkingStyle.Render(header + "\n" + text)
}

func (r transcriptRenderer) renderToolCall(item timeline.ChatItem, width int, expanded bool) string {
	style := toolLineStyle
	if item.IsError {
		style = toolErrorStyle
	}
	head := "⚙ " + item.Tool
	if item.ArgsSummary != "" {
		head += "  " + item.ArgsSummary
	}
	switch {
	case item.IsError:
		head += "  ✗"
	case !item.IsDone:
		head += "  …"
	}
	lines := []string{style.Render(runewidth.Truncate(head, width, "…"))}

	if expanded {
		full := ""
		if r.outputs != nil {
			full = r.outputs.FullOutput(item.ID)
		}
		if full != "" {
			for _, line := range strings.Split(strings.TrimRight(full, "\n"), "\n") {
				lines = append(lines, toolOutputStyle.Render(outputIndent+runewidth.Truncate(line, width-len(outputIndent), "…")))
			}
		}
	} else if item.OutputPreview != "" {
		preview := outputIndent + item.OutputPreview
		if item.OutputBytes > len(item.OutputPreview) {
			preview += " …"
		}
		lines = append(lines, toolOutputStyle.Render(runewidth.Truncate(preview, width, "…")))
	}
	return strings.Join(lines, "\n")
}

func bubbleInnerWidth(width int) int {
	maxBubbleWidth := width - 4
	if maxBubbleWidth < 10 {
		maxBubbleWidth = width
	}
	innerWidth := maxBubbleWidth - 2 - 2
	if innerWidth < 1 {
		innerWidth = 1
	}
	return innerWidth
}

func collapsedPreviewText(text string, maxLines, maxChars int) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	lines := strings.Split(text, "\n")
	truncated := false
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
		truncated = true
	}
	preview := strings.Join(lines, "\n")
	if maxChars > 0 && len(preview) > maxChars {
		preview = preview[:maxChars]
		truncated = true
	}
	return strings.TrimSpace(preview), truncated
}

// Transcript renders the reducer's item list into viewport content,
// memoizing per-item renders across frames.
type Transcript struct {
	renderer itemRenderer
}

func NewTranscript(outputs *timeline.ToolOutputStore, cacheEntries, cacheBytes int) *Transcript {
	base := transcriptRenderer{outputs: outputs}
	return &Transcript{
		renderer: newCachedItemRenderer(base, newItemRenderCache(cacheEntries, cacheBytes)),
	}
}

func (t *Transcript) Render(items []timeline.ChatItem, width int, isExpanded func(string) bool) string {
	if t == nil || len(items) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(items))
	for _, item := range items {
		expanded := false
		if isExpanded != nil {
			expanded = isExpanded(item.ID)
		}
		block := t.renderer.RenderItem(item, width, expanded)
		if block == "" {
			continue
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n")
}
