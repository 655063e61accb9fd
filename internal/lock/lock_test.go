package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	l := NewRedisLocker(client, "mailmirror:lock:", time.Second)
	l.retry = 5 * time.Millisecond
	return l, mr
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("加锁与释放", func(t *testing.T) {
		l, mr := newLocker(t)
		unlock, err := l.Lock(ctx, "domain:example.com")
		require.NoError(t, err)
		assert.True(t, mr.Exists("mailmirror:lock:domain:example.com"))

		unlock()
		assert.False(t, mr.Exists("mailmirror:lock:domain:example.com"))
	})

	t.Run("锁被占用时等待到超时", func(t *testing.T) {
		l, _ := newLocker(t)
		unlock, err := l.Lock(ctx, "k")
		require.NoError(t, err)
		defer unlock()

		short, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()
		_, err = l.Lock(short, "k")
		assert.ErrorIs(t, err, ErrNotAcquired)
	})

	t.Run("不释放他人持有的锁", func(t *testing.T) {
		l, mr := newLocker(t)
		unlock, err := l.Lock(ctx, "k")
		require.NoError(t, err)

		// 模拟锁过期后被其他进程获得
		require.NoError(t, mr.Set("mailmirror:lock:k", "someone-else"))
		unlock()

		got, err := mr.Get("mailmirror:lock:k")
		require.NoError(t, err)
		assert.Equal(t, "someone-else", got)
	})

	t.Run("并发调用依次获得锁", func(t *testing.T) {
		l, _ := newLocker(t)
		var (
			mu     sync.Mutex
			inside int
			peak   int
			wg     sync.WaitGroup
		)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := l.Lock(ctx, "shared")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				inside++
				if inside > peak {
					peak = inside
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, peak)
	})
}

func TestNopLocker(t *testing.T) {
	unlock, err := NopLocker{}.Lock(context.Background(), "k")
	require.NoError(t, err)
	assert.NotPanics(t, unlock)
}
