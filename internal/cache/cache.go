package cache

import (
	"context"
	"time"
)

// Key 缓存键约束：可比较且能序列化为稳定字符串（操作名 + 参数）
type Key interface {
	comparable
	CacheKey() string
}

// Cache 带 TTL 的读穿缓存。条目写入后不可变，只会被整体替换或丢弃。
// 缓存仅是优化层，任何错误都不应影响调用方的正确性。
type Cache[K Key, V any] interface {
	Get(ctx context.Context, key K) (V, bool, error)
	Set(ctx context.Context, key K, value V) error
	Delete(ctx context.Context, key K) error
	Purge(ctx context.Context) error
	TTL() time.Duration
	// Generation 返回当前清空代号，每次 Purge 后递增
	Generation(ctx context.Context) (uint64, error)
	// SetIfGeneration 仅当代号未变化时写入，返回是否写入。
	// 回源前取代号、回源后用它写入，可避免清空期间读到的旧数据重新进入缓存。
	SetIfGeneration(ctx context.Context, key K, value V, generation uint64) (bool, error)
}

// Purger 只需要清空能力的调用方使用
type Purger interface {
	Purge(ctx context.Context) error
}

// New 按 Redis 是否启用选择实现
func New[K Key, V any](namespace string, ttl time.Duration, maxEntries int) Cache[K, V] {
	if Enabled() {
		return NewRedisCache[K, V](Client(), namespace, ttl)
	}
	return NewMemoryCache[K, V](ttl, maxEntries)
}
