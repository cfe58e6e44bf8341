package app

import (
	"strings"
	"testing"

	"parley/internal/timeline"
)

type countingItemRenderer struct {
	calls int
}

func (r *countingItemRenderer) RenderItem(item timeline.ChatItem, width int, expanded bool) string {
	r.calls++
	line := item.Text
	if expanded {
		line += " [expanded]"
	}
	return line
}

func TestCachedItemRendererCachesByItemWidthAndExpansion(t *testing.T) {
	counter := &countingItemRenderer{}
	renderer := newCachedItemRenderer(counter, newItemRenderCache(32, 1<<20))

	item := timeline.ChatItem{ID: "a1", Kind: timeline.ItemAssistantMessage, Text: "hello"}

	renderer.RenderItem(item, 80, false)
	renderer.RenderItem(item, 80, false)
	if counter.calls != 1 {
		t.Fatalf("expected cache hit on identical render, got %d calls", counter.calls)
	}

	renderer.RenderItem(item, 120, false)
	if counter.calls != 2 {
		t.Fatalf("expected width change to rerender, got %d calls", counter.calls)
	}

	renderer.RenderItem(item, 80, true)
	if counter.calls != 3 {
		t.Fatalf("expected expansion change to rerender, got %d calls", counter.calls)
	}
}

func TestCachedItemRendererInvalidatesOnContentChange(t *testing.T) {
	counter := &countingItemRenderer{}
	renderer := newCachedItemRenderer(counter, newItemRenderCache(32, 1<<20))

	item := timeline.ChatItem{ID: "t1", Kind: timeline.ItemToolCall, Tool: "bash", OutputPreview: "a", OutputBytes: 1}
	renderer.RenderItem(item, 80, false)

	item.OutputPreview = "ab"
	item.OutputBytes = 2
	renderer.RenderItem(item, 80, false)
	if counter.calls != 2 {
		t.Fatalf("expected preview change to rerender, got %d calls", counter.calls)
	}

	// Growth of the out-of-row output alone must also invalidate, since
	// expanded rendering reads the side store that the key cannot see.
	item.OutputBytes = 4096
	renderer.RenderItem(item, 80, false)
	if counter.calls != 3 {
		t.Fatalf("expected byte-count change to rerender, got %d calls", counter.calls)
	}
}

func TestItemRenderCacheEvictsOldestBeyondEntryBudget(t *testing.T) {
	cache := newItemRenderCache(2, 1<<20)

	cache.Set(itemRenderKey{itemHash: 1, width: 80}, "first")
	cache.Set(itemRenderKey{itemHash: 2, width: 80}, "second")
	cache.Set(itemRenderKey{itemHash: 3, width: 80}, "third")

	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", cache.Len())
	}
	if _, ok := cache.Get(itemRenderKey{itemHash: 1, width: 80}); ok {
		t.Fatalf("expected oldest entry to be evicted")
	}
	if _, ok := cache.Get(itemRenderKey{itemHash: 3, width: 80}); !ok {
		t.Fatalf("expected newest entry to survive")
	}
}

func TestItemRenderCacheEvictsOnByteBudget(t *testing.T) {
	cache := newItemRenderCache(100, 32)

	cache.Set(itemRenderKey{itemHash: 1}, strings.Repeat("a", 20))
	cache.Set(itemRenderKey{itemHash: 2}, strings.Repeat("b", 20))

	if _, ok := cache.Get(itemRenderKey{itemHash: 1}); ok {
		t.Fatalf("expected byte budget to evict first entry")
	}
	if _, ok := cache.Get(itemRenderKey{itemHash: 2}); !ok {
		t.Fatalf("expected second entry to remain")
	}
}

func TestItemRenderCacheKeepsOversizedNewestEntry(t *testing.T) {
	cache := newItemRenderCache(100, 8)

	cache.Set(itemRenderKey{itemHash: 1}, strings.Repeat("x", 64))
	if _, ok := cache.Get(itemRenderKey{itemHash: 1}); !ok {
		t.Fatalf("expected a single oversized entry to be kept")
	}
}

func TestHashChatItemDistinguishesFields(t *testing.T) {
	base := timeline.ChatItem{ID: "x", Kind: timeline.ItemToolCall, Tool: "bash"}

	variants := []timeline.ChatItem{
		{ID: "y", Kind: timeline.ItemToolCall, Tool: "bash"},
		{ID: "x", Kind: timeline.ItemAssistantMessage, Tool: "bash"},
		{ID: "x", Kind: timeline.ItemToolCall, Tool: "grep"},
		{ID: "x", Kind: timeline.ItemToolCall, Tool: "bash", IsError: true},
		{ID: "x", Kind: timeline.ItemToolCall, Tool: "bash", IsDone: true},
		{ID: "x", Kind: timeline.ItemToolCall, Tool: "bash", OutputBytes: 7},
	}
	baseHash := hashChatItem(base)
	for i, variant := range variants {
		if hashChatItem(variant) == baseHash {
			t.Fatalf("variant %d unexpectedly collided with base hash", i)
		}
	}
	if hashChatItem(base) != baseHash {
		t.Fatalf("expected hash to be deterministic")
	}
}
