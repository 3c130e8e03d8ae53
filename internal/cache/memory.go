package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry[V any] struct {
	value      V
	insertedAt time.Time
}

// MemoryCache 进程内有界 TTL 缓存
type MemoryCache[K Key, V any] struct {
	mu         sync.RWMutex
	ttl        time.Duration
	maxEntries int
	entries    map[K]memoryEntry[V]
	generation uint64
	now        func() time.Time
}

// NewMemoryCache 创建进程内缓存，maxEntries <= 0 时不限制条目数
func NewMemoryCache[K Key, V any](ttl time.Duration, maxEntries int) *MemoryCache[K, V] {
	return &MemoryCache[K, V]{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[K]memoryEntry[V]),
		now:        time.Now,
	}
}

// WithClock 替换时钟，用于测试
func (c *MemoryCache[K, V]) WithClock(now func() time.Time) *MemoryCache[K, V] {
	if now != nil {
		c.now = now
	}
	return c
}

// TTL 返回条目有效期
func (c *MemoryCache[K, V]) TTL() time.Duration {
	return c.ttl
}

// Get 读取条目，仅当 now - insertedAt < ttl 时有效
func (c *MemoryCache[K, V]) Get(_ context.Context, key K) (V, bool, error) {
	var zero V
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false, nil
	}
	if !c.valid(entry) {
		c.mu.Lock()
		if current, still := c.entries[key]; still && current.insertedAt.Equal(entry.insertedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false, nil
	}
	return entry.value, true, nil
}

// Set 写入或替换条目
func (c *MemoryCache[K, V]) Set(_ context.Context, key K, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
	return nil
}

// Generation 返回当前清空代号
func (c *MemoryCache[K, V]) Generation(_ context.Context) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation, nil
}

// SetIfGeneration 代号未变化时写入
func (c *MemoryCache[K, V]) SetIfGeneration(_ context.Context, key K, value V, generation uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return false, nil
	}
	c.setLocked(key, value)
	return true, nil
}

func (c *MemoryCache[K, V]) setLocked(key K, value V) {
	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = memoryEntry[V]{value: value, insertedAt: c.now()}
}

// Delete 删除条目
func (c *MemoryCache[K, V]) Delete(_ context.Context, key K) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Purge 清空全部条目并递增代号
func (c *MemoryCache[K, V]) Purge(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[K]memoryEntry[V])
	c.generation++
	c.mu.Unlock()
	return nil
}

// Len 当前条目数（含未清理的过期条目）
func (c *MemoryCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache[K, V]) valid(entry memoryEntry[V]) bool {
	if c.ttl <= 0 {
		return false
	}
	return c.now().Sub(entry.insertedAt) < c.ttl
}

// evictLocked 先清理过期条目，仍满时淘汰最早写入的一条
func (c *MemoryCache[K, V]) evictLocked() {
	var (
		oldestKey K
		oldestAt  time.Time
		found     bool
	)
	for key, entry := range c.entries {
		if !c.valid(entry) {
			delete(c.entries, key)
			continue
		}
		if !found || entry.insertedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = key, entry.insertedAt, true
		}
	}
	if len(c.entries) >= c.maxEntries && found {
		delete(c.entries, oldestKey)
	}
}
