package hydromet

import (
	"context"
	"sync"

	"github.com/couchcryptid/hydro-chart-service/internal/domain"
)

// CachedClient wraps a Client with an in-memory LRU cache for well metadata.
// The historical and forecast passes both need a well's info, and the
// platform serves it only via the full data endpoint; caching halves those
// round trips. Series data is never cached; every pass refetches it.
type CachedClient struct {
	*Client
	cache *lruCache
}

// NewCachedClient creates a cache decorator around a hydromet client.
func NewCachedClient(inner *Client, maxEntries int) *CachedClient {
	return &CachedClient{
		Client: inner,
		cache:  newLRUCache(maxEntries),
	}
}

// WellInfo returns cached metadata when available.
func (c *CachedClient) WellInfo(ctx context.Context, wellID string) (domain.WellInfo, error) {
	if info, ok := c.cache.get(wellID); ok {
		return info, nil
	}
	info, err := c.Client.WellInfo(ctx, wellID)
	if err != nil {
		return info, err
	}
	c.cache.put(wellID, info)
	return info, nil
}

// WellData populates the metadata cache as a side effect, so a later
// WellInfo for the same well is free.
func (c *CachedClient) WellData(ctx context.Context, wellID string) (domain.WellInfo, []domain.RawMeasurement, error) {
	info, data, err := c.Client.WellData(ctx, wellID)
	if err != nil {
		return info, data, err
	}
	c.cache.put(wellID, info)
	return info, data, nil
}

// lruCache is a simple thread-safe LRU cache for well metadata.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.WellInfo
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.WellInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.WellInfo{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.WellInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
