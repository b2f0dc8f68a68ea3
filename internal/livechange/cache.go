package livechange

import (
	"container/list"
	"sync"

	"intermap/internal/symbols"
)

// CacheLimits bounds a span cache by entry count and approximate bytes.
// Either cap breaching triggers LRU eviction until both are satisfied.
type CacheLimits struct {
	MaxEntries int
	MaxBytes   int
}

// fileKey identifies working-tree file content without reading it: any of
// the nanosecond timestamps or the size changing invalidates the entry.
type fileKey struct {
	path    string
	mtimeNS int64
	ctimeNS int64
	size    int64
}

// baselineKey identifies historical file content. The revision component
// must be an immutable commit id, never a mutable reference name.
type baselineKey struct {
	project  string
	revision string
	path     string
}

// spanCache is a mutex-guarded LRU cache of symbol span lists with an
// entry-count ceiling and an approximate byte-size ceiling. Callers must
// treat returned span slices as read-only; they may be shared across calls.
type spanCache[K comparable] struct {
	mu         sync.Mutex
	maxEntries int
	maxBytes   int
	totalBytes int
	entries    map[K]*list.Element
	order      *list.List // front = least recently used
}

type cacheEntry[K comparable] struct {
	key   K
	spans []symbols.Span
	size  int
}

func newSpanCache[K comparable](limits CacheLimits) *spanCache[K] {
	return &spanCache[K]{
		maxEntries: limits.MaxEntries,
		maxBytes:   limits.MaxBytes,
		entries:    map[K]*list.Element{},
		order:      list.New(),
	}
}

// get returns the cached spans and marks the entry most recently used.
func (c *spanCache[K]) get(key K) ([]symbols.Span, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToBack(elem)
	return elem.Value.(*cacheEntry[K]).spans, true
}

// put stores spans under key, refunding any previous entry's byte cost,
// then evicts least-recently-used entries while either cap is exceeded.
func (c *spanCache[K]) put(key K, spans []symbols.Span) {
	size := estimateSpanBytes(spans)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry[K])
		c.totalBytes -= entry.size
		entry.spans = spans
		entry.size = size
		c.totalBytes += size
		c.order.MoveToBack(elem)
	} else {
		elem := c.order.PushBack(&cacheEntry[K]{key: key, spans: spans, size: size})
		c.entries[key] = elem
		c.totalBytes += size
	}

	for c.order.Len() > c.maxEntries || c.totalBytes > c.maxBytes {
		front := c.order.Front()
		if front == nil {
			break
		}
		evicted := front.Value.(*cacheEntry[K])
		c.order.Remove(front)
		delete(c.entries, evicted.key)
		c.totalBytes -= evicted.size
	}
}

func (c *spanCache[K]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *spanCache[K]) bytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBytes
}

// spanOverhead approximates the fixed per-record cost beyond the name and
// kind strings. An estimate is enough: the budget only needs to correlate
// monotonically with list size.
const spanOverhead = 24

func estimateSpanBytes(spans []symbols.Span) int {
	total := 0
	for _, s := range spans {
		total += len(s.Name) + len(s.Kind) + spanOverhead
	}
	return total
}
