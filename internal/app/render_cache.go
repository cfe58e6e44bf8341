package app

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"sync"

	"parley/internal/timeline"
)

type itemRenderer interface {
	RenderItem(item timeline.ChatItem, width int, expanded bool) string
}

type itemRenderKey struct {
	itemHash uint64
	width    int
	expanded bool
}

// itemRenderCache memoizes rendered items. Eviction is oldest-first and
// runs on two budgets: entry count and total rendered bytes, since a
// single expanded tool row can dwarf hundreds of compact ones.
type itemRenderCache struct {
	mu         sync.Mutex
	entries    map[itemRenderKey]string
	order      []itemRenderKey
	maxEntries int
	maxBytes   int
	totalBytes int
}

func newItemRenderCache(maxEntries, maxBytes int) *itemRenderCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	if maxBytes < 1 {
		maxBytes = 1 << 20
	}
	return &itemRenderCache{
		entries:    map[itemRenderKey]string{},
		order:      make([]itemRenderKey, 0, maxEntries),
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
	}
}

func (c *itemRenderCache) Get(key itemRenderKey) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.entries[key]
	return val, ok
}

func (c *itemRenderCache) Set(key itemRenderKey, value string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		c.totalBytes -= len(existing)
	} else {
		c.order = append(c.order, key)
	}
	c.entries[key] = value
	c.totalBytes += len(value)
	for len(c.order) > 1 && (len(c.order) > c.maxEntries || c.totalBytes > c.maxBytes) {
		evict := c.order[0]
		c.order = c.order[1:]
		c.totalBytes -= len(c.entries[evict])
		delete(c.entries, evict)
	}
}

func (c *itemRenderCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type cachedItemRenderer struct {
	next  itemRenderer
	cache *itemRenderCache
}

func newCachedItemRenderer(next itemRenderer, cache *itemRenderCache) itemRenderer {
	if next == nil {
		next = transcriptRenderer{}
	}
	return &cachedItemRenderer{next: next, cache: cache}
}

func (r *cachedItemRenderer) RenderItem(item timeline.ChatItem, width int, expanded bool) string {
	if r == nil || r.next == nil {
		return ""
	}
	key := itemRenderKey{
		itemHash: hashChatItem(item),
		width:    width,
		expanded: expanded,
	}
	if cached, ok := r.cache.Get(key); ok {
		return cached
	}
	rendered := r.next.RenderItem(item, width, expanded)
	r.cache.Set(key, rendered)
	return rendered
}

func hashChatItem(item timeline.ChatItem) uint64 {
	hasher := fnv.New64a()
	writeHashString(hasher, item.ID)
	writeHashString(hasher, string(item.Kind))
	writeHashString(hasher, item.Text)
	writeHashString(hasher, item.Tool)
	writeHashString(hasher, item.ArgsSummary)
	writeHashString(hasher, item.OutputPreview)
	writeHashString(hasher, item.Preview)
	writeHashString(hasher, item.Outcome)
	writeHashInt(hasher, item.OutputBytes)
	writeHashInt(hasher, len(item.Images))
	writeHashBool(hasher, item.IsError)
	writeHashBool(hasher, item.IsDone)
	writeHashBool(hasher, item.HasMore)
	return hasher.Sum64()
}

func writeHashString(hasher hash.Hash64, value string) {
	if hasher == nil {
		return
	}
	_, _ = hasher.Write([]byte(value))
	_, _ = hasher.Write([]byte{0})
}

func writeHashInt(hasher hash.Hash64, value int) {
	if hasher == nil {
		return
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(value))
	_, _ = hasher.Write(buf)
}

func writeHashBool(hasher hash.Hash64, value bool) {
	if hasher == nil {
		return
	}
	if value {
		_, _ = hasher.Write([]byte{1})
		return
	}
	_, _ = hasher.Write([]byte{0})
}
