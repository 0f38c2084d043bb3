package typst

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// documentCache is an LRU of compiled documents keyed by source hash.
type documentCache struct {
	mu    sync.Mutex
	order *list.List // front = most recently used
	items map[string]*list.Element
}

func newDocumentCache() *documentCache {
	return &documentCache{
		order: list.New(),
		items: make(map[string]*list.Element),
	}
}

// get returns the cached document and marks it as recently used.
func (c *documentCache) get(key string) (*Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*Document), true
}

// put inserts or refreshes a document.
func (c *documentCache) put(doc *Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[doc.key]; ok {
		el.Value = doc
		c.order.MoveToFront(el)
		return
	}
	c.items[doc.key] = c.order.PushFront(doc)
}

// evict drops least recently used documents until at most max remain.
// Returns the number of evicted entries.
func (c *documentCache) evict(max int) int {
	if max < 0 {
		max = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for c.order.Len() > max {
		el := c.order.Back()
		c.order.Remove(el)
		delete(c.items, el.Value.(*Document).key)
		evicted++
	}
	return evicted
}

func (c *documentCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// sourceKey hashes a main file so identical sources share one cache entry.
func sourceKey(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}
