// Package cache provides an in-memory TTL cache used by the store for hot
// reads. The cache is an explicit handle owned by its creator; there is no
// package-level shared state.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Config holds the cache settings.
type Config struct {
	// DefaultTTL is applied when Set is called with a non-positive ttl.
	DefaultTTL time.Duration
	// CleanupInterval is how often expired entries are swept. Zero disables
	// the background sweeper; expired entries are then dropped lazily on Get.
	CleanupInterval time.Duration
	// MaxItems bounds the cache size. Least recently used entries are evicted
	// first. Non-positive means 1000.
	MaxItems int
	// OnEviction is called outside the cache lock for each evicted or expired
	// entry. May be nil.
	OnEviction func(key string, value any)
}

type entry struct {
	key       string
	value     any
	expiresAt time.Time
	element   *list.Element
}

// Cache is a bounded in-memory key/value cache with per-entry expiry.
type Cache struct {
	config Config

	mu    sync.Mutex
	items map[string]*entry
	order *list.List // LRU ordering, front is most recently used

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a new cache and starts its cleanup goroutine when a
// CleanupInterval is configured.
func New(config Config) *Cache {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 10 * time.Minute
	}
	if config.MaxItems <= 0 {
		config.MaxItems = 1000
	}

	c := &Cache{
		config: config,
		items:  make(map[string]*entry),
		order:  list.New(),
		stop:   make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go c.cleanupLoop(config.CleanupInterval)
	}
	return c
}

// Get retrieves a value. Expired entries are treated as absent.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	e, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.removeLocked(e)
		c.mu.Unlock()
		c.notifyEviction(e)
		return nil, false
	}
	c.order.MoveToFront(e.element)
	value := e.value
	c.mu.Unlock()
	return value, true
}

// Set stores a value with the given ttl, evicting LRU entries at capacity.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}

	var evicted []*entry
	c.mu.Lock()
	if e, ok := c.items[key]; ok {
		e.value = value
		e.expiresAt = time.Now().Add(ttl)
		c.order.MoveToFront(e.element)
		c.mu.Unlock()
		return
	}

	for len(c.items) >= c.config.MaxItems {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		e := oldest.Value.(*entry)
		c.removeLocked(e)
		evicted = append(evicted, e)
	}

	e := &entry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	e.element = c.order.PushFront(e)
	c.items[key] = e
	c.mu.Unlock()

	for _, e := range evicted {
		c.notifyEviction(e)
	}
}

// Delete removes a key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	e, ok := c.items[key]
	if ok {
		c.removeLocked(e)
	}
	c.mu.Unlock()
	if ok {
		c.notifyEviction(e)
	}
}

// Size returns the number of cached entries, including not-yet-swept expired ones.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close stops the cleanup goroutine. The cache remains usable afterwards.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()
	var expired []*entry
	c.mu.Lock()
	for _, e := range c.items {
		if now.After(e.expiresAt) {
			expired = append(expired, e)
		}
	}
	for _, e := range expired {
		c.removeLocked(e)
	}
	c.mu.Unlock()

	for _, e := range expired {
		c.notifyEviction(e)
	}
}

// removeLocked must be called with the lock held.
func (c *Cache) removeLocked(e *entry) {
	c.order.Remove(e.element)
	delete(c.items, e.key)
}

func (c *Cache) notifyEviction(e *entry) {
	if c.config.OnEviction != nil {
		c.config.OnEviction(e.key, e.value)
	}
}
