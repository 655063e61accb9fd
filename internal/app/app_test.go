package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailmirror/backend/internal/config"
	"mailmirror/backend/internal/mailmantest"
	"mailmirror/backend/internal/service"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Core: config.CoreConfig{BaseURL: baseURL, Timeout: 5 * time.Second, Burst: 1},
		Sync: config.SyncConfig{
			ImmutableKinds: []string{"domain", "mailinglist", "membership", "email"},
			PullTTL:        time.Minute,
			LockTTL:        5 * time.Second,
		},
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("内存存储与进程内标记", func(t *testing.T) {
		srv := mailmantest.New(t)
		a, err := New(testConfig(srv.BaseURL()), zap.NewNop())
		require.NoError(t, err)
		defer a.Close()

		d, err := a.Domains.Create(ctx, service.CreateDomainInput{MailHost: "example.com"})
		require.NoError(t, err)
		assert.Equal(t, "domains/example.com", d.PartialURL)

		results := a.Health.CheckHealth(ctx)
		assert.Equal(t, "OK", results["database"])
		assert.Equal(t, "OK", results["core"])
		assert.Equal(t, "NOT_AVAILABLE", results["redis"])
	})

	t.Run("启用 Redis", func(t *testing.T) {
		srv := mailmantest.New(t)
		mr := miniredis.RunT(t)

		cfg := testConfig(srv.BaseURL())
		cfg.Redis = config.RedisConfig{Enabled: true, Address: mr.Addr()}
		a, err := New(cfg, zap.NewNop())
		require.NoError(t, err)
		defer a.Close()

		srv.AddDomain("remote.org")
		rows, err := a.Domains.List(ctx, nil)
		require.NoError(t, err)
		require.Len(t, rows, 1)

		keys := mr.Keys()
		require.NotEmpty(t, keys)
		assert.Contains(t, keys[0], redisPrefix+"pull:")
		assert.Equal(t, "OK", a.Health.CheckHealth(ctx)["redis"])
	})

	t.Run("不可变类型名非法", func(t *testing.T) {
		cfg := testConfig("http://localhost:8001/3.0/")
		cfg.Sync.ImmutableKinds = []string{"mailbox"}
		_, err := New(cfg, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("Redis 不可达", func(t *testing.T) {
		cfg := testConfig("http://localhost:8001/3.0/")
		cfg.Redis = config.RedisConfig{Enabled: true, Address: "127.0.0.1:1"}
		_, err := New(cfg, zap.NewNop())
		assert.Error(t, err)
	})
}
