// Package lock 在定位或创建远端资源期间串行化同一自然键上的操作。
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired 在上下文结束前未能获得锁
var ErrNotAcquired = errors.New("lock not acquired")

// Locker 获取指定键上的互斥锁，返回的 unlock 必须被调用
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NopLocker 不做任何事，单进程部署时使用
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker 使用 SET NX 与随机令牌实现的跨进程锁
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker 创建 Redis 锁，ttl 为锁的最长持有时间
func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		retry:  50 * time.Millisecond,
	}
}

// Lock 轮询直到获得锁或上下文结束
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	name := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, name, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, name, ctx.Err())
		case <-time.After(l.retry):
		}
	}

	unlock := func() {
		// 只释放自己持有的锁；释放失败时等待 TTL 过期
		_, _ = releaseScript.Run(context.Background(), l.client, []string{name}, token).Result()
	}
	return unlock, nil
}
