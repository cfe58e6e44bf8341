package app

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	glamouransi "github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	xansi "github.com/charmbracelet/x/ansi"
)

// markdownRenderers caches one glamour renderer per (width, background)
// pair. Renderers are expensive to build and the transcript re-renders
// the same widths constantly.
type markdownRenderers struct {
	mu    sync.Mutex
	dark  bool
	byKey map[markdownKey]*glamour.TermRenderer
}

type markdownKey struct {
	width int
	dark  bool
}

var markdownCache = &markdownRenderers{
	dark:  true,
	byKey: map[markdownKey]*glamour.TermRenderer{},
}

func renderMarkdown(input string, width int) string {
	input = strings.TrimRight(input, "\n")
	if input == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	r := markdownCache.rendererFor(width)
	if r == nil {
		return input
	}
	out, err := r.Render(input)
	if err != nil {
		return input
	}
	out = strings.TrimRight(out, "\n")
	out = xansi.Hardwrap(out, width, true)
	return strings.TrimRight(out, "\n")
}

// setMarkdownBackgroundDark records the terminal background and reports
// whether it changed, so the caller knows to re-render the transcript.
func setMarkdownBackgroundDark(dark bool) bool {
	markdownCache.mu.Lock()
	defer markdownCache.mu.Unlock()
	changed := markdownCache.dark != dark
	markdownCache.dark = dark
	return changed
}

func (c *markdownRenderers) rendererFor(width int) *glamour.TermRenderer {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := markdownKey{width: width, dark: c.dark}
	if r, ok := c.byKey[key]; ok && r != nil {
		return r
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(transcriptStyleConfig(c.dark)),
		glamour.WithWordWrap(width),
		glamour.WithEmoji(),
	)
	if err != nil {
		return nil
	}
	c.byKey[key] = r
	return r
}

// transcriptStyleConfig tunes glamour's stock style for bubble-embedded
// rendering: lipgloss owns all outer spacing, and headings follow the
// session-list accent instead of glamour's defaults.
func transcriptStyleConfig(dark bool) glamouransi.StyleConfig {
	cfg := styles.LightStyleConfig
	if dark {
		cfg = styles.DarkStyleConfig
	}
	cfg.Document.StylePrimitive.BlockPrefix = ""
	cfg.Document.StylePrimitive.BlockSuffix = ""
	noMargin := uint(0)
	cfg.Document.Margin = &noMargin
	cfg.CodeBlock.Margin = &noMargin

	accent := "63"
	cfg.Heading.StylePrimitive.Color = &accent
	cfg.H1.StylePrimitive.BackgroundColor = nil
	cfg.H1.StylePrimitive.Color = &accent

	dim := "245"
	italic := true
	cfg.BlockQuote.StylePrimitive.Color = &dim
	cfg.BlockQuote.StylePrimitive.Italic = &italic
	return cfg
}

// escapeMarkdown neutralizes markdown syntax in user-authored text so it
// renders literally inside the transcript.
func escapeMarkdown(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.ReplaceAll(line, "`", "\\`")
		trimmed := strings.TrimLeft(line, " \t")
		prefix := line[:len(line)-len(trimmed)]
		if startsBlockSyntax(trimmed) {
			lines[i] = prefix + "\\" + trimmed
		} else {
			lines[i] = prefix + trimmed
		}
	}
	return strings.Join(lines, "\n")
}

// startsBlockSyntax reports whether a line would open a markdown block
// construct: a heading, quote, list bullet, or ordered-list number.
func startsBlockSyntax(line string) bool {
	switch {
	case strings.HasPrefix(line, "#"),
		strings.HasPrefix(line, ">"),
		strings.HasPrefix(line, "- "),
		strings.HasPrefix(line, "* "),
		strings.HasPrefix(line, "+ "):
		return true
	}
	dot := strings.IndexByte(line, '.')
	if dot <= 0 || dot+1 >= len(line) || line[dot+1] != ' ' {
		return false
	}
	for i := 0; i < dot; i++ {
		if line[i] < '0' || line[i] > '9' {
			return false
		}
	}
	return true
}
