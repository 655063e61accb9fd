package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger 基于 Redis 的拉取标记，多个进程共享同一组标记
type RedisLedger struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLedger 创建 Redis 拉取标记，键统一加上 prefix
func NewRedisLedger(client *redis.Client, prefix string, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, prefix: prefix, ttl: ttl}
}

// Mark 使用 SET NX 写入标记
func (l *RedisLedger) Mark(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+key, time.Now().UTC().Unix(), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark pull %s: %w", key, err)
	}
	return ok, nil
}

// Clear 删除标记
func (l *RedisLedger) Clear(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to clear pull %s: %w", key, err)
	}
	return nil
}
