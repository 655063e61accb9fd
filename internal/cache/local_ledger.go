package cache

import (
	"context"
	"sync"
	"time"
)

// LocalLedger 进程内拉取标记
//
// 特点：
// - 使用 sync.Map 实现无锁读取
// - 支持 TTL 过期，ttl 为 0 表示永不过期
// - 后台定期清理过期条目
type LocalLedger struct {
	data sync.Map
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

type ledgerEntry struct {
	expiresAt time.Time
}

func (e *ledgerEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewLocalLedger 创建进程内拉取标记
func NewLocalLedger(ttl time.Duration) *LocalLedger {
	l := &LocalLedger{
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}

	// 启动定期清理
	go l.cleanupLoop()

	return l
}

// Mark 写入标记，键已被标记时返回 false
func (l *LocalLedger) Mark(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if val, ok := l.data.Load(key); ok && !val.(*ledgerEntry).expired(now) {
		return false, nil
	}

	entry := &ledgerEntry{}
	if l.ttl > 0 {
		entry.expiresAt = now.Add(l.ttl)
	}
	l.data.Store(key, entry)
	return true, nil
}

// Clear 删除标记
func (l *LocalLedger) Clear(_ context.Context, key string) error {
	l.data.Delete(key)
	return nil
}

// Close 停止后台清理
func (l *LocalLedger) Close() {
	l.once.Do(func() { close(l.stop) })
}

// cleanupLoop 定期清理过期条目
func (l *LocalLedger) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *LocalLedger) sweep() {
	now := l.now()
	l.data.Range(func(key, value any) bool {
		if value.(*ledgerEntry).expired(now) {
			l.data.Delete(key)
		}
		return true
	})
}
