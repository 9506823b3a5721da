package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskmaster/gtd/internal/domain/entities"
)

// MemoryCache is the single-process fallback used when Redis is not configured.
// Values are stored encoded so callers never share slices with the cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
	ttl   time.Duration
	now   func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

type cacheItem struct {
	value      []byte
	expiration time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	c := &MemoryCache{
		items: make(map[string]cacheItem),
		ttl:   ttl,
		now:   time.Now,
		done:  make(chan struct{}),
	}

	go c.cleanup(time.Minute)

	return c
}

func (c *MemoryCache) Get(_ context.Context, parentID int64, userID uuid.UUID) ([]entities.TaskView, bool, error) {
	key := subtasksKey(parentID, userID)

	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if c.now().After(item.expiration) {
		c.mu.Lock()
		// a Set may have replaced the entry since the read lock was dropped
		if cur, ok := c.items[key]; ok && c.now().After(cur.expiration) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	var rows []entities.TaskView
	if err := json.Unmarshal(item.value, &rows); err != nil {
		return nil, false, fmt.Errorf("decode cached subtasks: %w", err)
	}
	return rows, true, nil
}

func (c *MemoryCache) Set(_ context.Context, parentID int64, userID uuid.UUID, rows []entities.TaskView) error {
	raw, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode subtasks: %w", err)
	}

	c.mu.Lock()
	c.items[subtasksKey(parentID, userID)] = cacheItem{value: raw, expiration: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, parentID int64) error {
	prefix := strings.TrimSuffix(subtasksPattern(parentID), "*")

	c.mu.Lock()
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *MemoryCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *MemoryCache) evictExpired() {
	now := c.now()

	c.mu.Lock()
	for key, item := range c.items {
		if now.After(item.expiration) {
			delete(c.items, key)
		}
	}
	c.mu.Unlock()
}

// Close stops the background eviction loop.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}
