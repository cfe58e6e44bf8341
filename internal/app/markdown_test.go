package app

import (
	"strings"
	"testing"

	xansi "github.com/charmbracelet/x/ansi"
)

func TestTranscriptStyleConfigOwnsNoOuterSpacing(t *testing.T) {
	for _, dark := range []bool{true, false} {
		cfg := transcriptStyleConfig(dark)
		if cfg.Document.StylePrimitive.BlockPrefix != "" || cfg.Document.StylePrimitive.BlockSuffix != "" {
			t.Fatalf("dark=%v: expected empty document prefix/suffix", dark)
		}
		if cfg.Document.Margin == nil || *cfg.Document.Margin != 0 {
			t.Fatalf("dark=%v: expected zero document margin", dark)
		}
		if cfg.CodeBlock.Margin == nil || *cfg.CodeBlock.Margin != 0 {
			t.Fatalf("dark=%v: expected zero code block margin", dark)
		}
		if cfg.H1.StylePrimitive.BackgroundColor != nil {
			t.Fatalf("dark=%v: expected no heading background", dark)
		}
	}
}

func TestRenderMarkdownWrapsToWidth(t *testing.T) {
	out := renderMarkdown(strings.Repeat("word ", 30), 24)
	for _, line := range strings.Split(xansi.Strip(out), "\n") {
		if len(line) > 24 {
			t.Fatalf("line wider than requested width: %q", line)
		}
	}
}

func TestRenderMarkdownEmptyInput(t *testing.T) {
	if got := renderMarkdown("\n\n", 40); got != "" {
		t.Fatalf("expected empty render, got %q", got)
	}
}

func TestEscapeMarkdownNeutralizesBlockSyntax(t *testing.T) {
	in := "# not a heading\n> not a quote\n- not a bullet\n3. not a list\nplain"
	got := escapeMarkdown(in)
	want := "\\# not a heading\n\\> not a quote\n\\- not a bullet\n\\3. not a list\nplain"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestEscapeMarkdownEscapesBackticks(t *testing.T) {
	if got := escapeMarkdown("run `ls` now"); got != "run \\`ls\\` now" {
		t.Fatalf("unexpected escape %q", got)
	}
}

func TestStartsBlockSyntaxNumberedLists(t *testing.T) {
	if !startsBlockSyntax("12. item") {
		t.Fatalf("expected numbered list detected")
	}
	if startsBlockSyntax("3.14 is pi") || startsBlockSyntax(".5 leading dot") {
		t.Fatalf("expected non-list numbers left alone")
	}
}
