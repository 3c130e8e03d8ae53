package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache 基于 Redis 的共享缓存。清空通过递增代号实现，旧代号的键依赖 TTL 自然过期。
type RedisCache[K Key, V any] struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
}

// NewRedisCache 创建 Redis 缓存
func NewRedisCache[K Key, V any](client redis.UniversalClient, namespace string, ttl time.Duration) *RedisCache[K, V] {
	return &RedisCache[K, V]{client: client, namespace: namespace, ttl: ttl}
}

// TTL 返回条目有效期
func (c *RedisCache[K, V]) TTL() time.Duration {
	return c.ttl
}

// Get 读取条目
func (c *RedisCache[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var zero V
	if c.client == nil {
		return zero, false, nil
	}
	fullKey, err := c.entryKey(ctx, key)
	if err != nil {
		return zero, false, err
	}
	raw, err := c.client.Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	var value V
	if err := json.Unmarshal(raw, &value); err != nil {
		return zero, false, err
	}
	return value, true, nil
}

// Set 写入条目
func (c *RedisCache[K, V]) Set(ctx context.Context, key K, value V) error {
	if c.client == nil || c.ttl <= 0 {
		return nil
	}
	fullKey, err := c.entryKey(ctx, key)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, fullKey, payload, c.ttl).Err()
}

// Generation 返回当前代号，代号键不存在时为 0
func (c *RedisCache[K, V]) Generation(ctx context.Context) (uint64, error) {
	if c.client == nil {
		return 0, nil
	}
	raw, err := c.client.Get(ctx, c.generationKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(raw, 10, 64)
}

// SetIfGeneration 写入指定代号下的键。代号已变化时跳过；
// 检查与写入之间发生的清空只会让条目落在旧代号下，不会被读到。
func (c *RedisCache[K, V]) SetIfGeneration(ctx context.Context, key K, value V, generation uint64) (bool, error) {
	if c.client == nil || c.ttl <= 0 {
		return false, nil
	}
	current, err := c.Generation(ctx)
	if err != nil {
		return false, err
	}
	if current != generation {
		return false, nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	if err := c.client.Set(ctx, c.keyFor(generation, key), payload, c.ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Delete 删除当前代号下的条目
func (c *RedisCache[K, V]) Delete(ctx context.Context, key K) error {
	if c.client == nil {
		return nil
	}
	fullKey, err := c.entryKey(ctx, key)
	if err != nil {
		return err
	}
	return c.client.Del(ctx, fullKey).Err()
}

// Purge 递增代号，使全部旧条目失效
func (c *RedisCache[K, V]) Purge(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, c.generationKey()).Err()
}

func (c *RedisCache[K, V]) generationKey() string {
	return BuildKey(fmt.Sprintf("cache:%s:gen", c.namespace))
}

func (c *RedisCache[K, V]) entryKey(ctx context.Context, key K) (string, error) {
	generation, err := c.Generation(ctx)
	if err != nil {
		return "", err
	}
	return c.keyFor(generation, key), nil
}

func (c *RedisCache[K, V]) keyFor(generation uint64, key K) string {
	return BuildKey(fmt.Sprintf("cache:%s:g%d:%s", c.namespace, generation, key.CacheKey()))
}
