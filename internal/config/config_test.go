package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"MAILMIRROR_SERVER_HOST",
	"MAILMIRROR_SERVER_PORT",
	"MAILMIRROR_LOG_LEVEL",
	"MAILMIRROR_DATABASE_TYPE",
	"MAILMIRROR_DATABASE_DSN",
	"MAILMIRROR_REDIS_ENABLED",
	"MAILMIRROR_CORE_BASE_URL",
	"MAILMIRROR_CORE_USERNAME",
	"MAILMIRROR_CORE_PASSWORD",
	"MAILMIRROR_CORE_TIMEOUT",
	"MAILMIRROR_CORE_RATE_LIMIT",
	"MAILMIRROR_SYNC_IMMUTABLE_KINDS",
	"MAILMIRROR_SYNC_PULL_TTL",
}

func TestLoad(t *testing.T) {
	// 保存原始环境变量
	originalEnvs := make(map[string]string)
	for _, key := range envKeys {
		originalEnvs[key] = os.Getenv(key)
	}

	// 测试后恢复环境变量
	defer func() {
		for key, value := range originalEnvs {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	resetEnv := func() {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
	}

	t.Run("加载默认配置成功", func(t *testing.T) {
		resetEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "", cfg.Database.Type)
		assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, "http://localhost:8001/3.0/", cfg.Core.BaseURL)
		assert.Equal(t, 30*time.Second, cfg.Core.Timeout)
		assert.Equal(t, 1, cfg.Core.Burst)
		assert.Equal(t, []string{"domain", "mailinglist", "membership", "email"}, cfg.Sync.ImmutableKinds)
		assert.Equal(t, 5*time.Minute, cfg.Sync.PullTTL)
		assert.Equal(t, 30*time.Second, cfg.Sync.LockTTL)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		resetEnv()
		os.Setenv("MAILMIRROR_SERVER_PORT", "9191")
		os.Setenv("MAILMIRROR_DATABASE_TYPE", "SQLite")
		os.Setenv("MAILMIRROR_DATABASE_DSN", "file:mirror.db")
		os.Setenv("MAILMIRROR_CORE_BASE_URL", "http://core.internal:8001/3.1/")
		os.Setenv("MAILMIRROR_CORE_USERNAME", "restadmin")
		os.Setenv("MAILMIRROR_CORE_PASSWORD", "restpass")
		os.Setenv("MAILMIRROR_CORE_TIMEOUT", "5s")
		os.Setenv("MAILMIRROR_CORE_RATE_LIMIT", "2.5")
		os.Setenv("MAILMIRROR_SYNC_IMMUTABLE_KINDS", "Domain, membership")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9191, cfg.Server.Port)
		assert.Equal(t, "sqlite", cfg.Database.Type)
		assert.Equal(t, "file:mirror.db", cfg.Database.DSN)
		assert.Equal(t, "http://core.internal:8001/3.1/", cfg.Core.BaseURL)
		assert.Equal(t, "restadmin", cfg.Core.Username)
		assert.Equal(t, "restpass", cfg.Core.Password)
		assert.Equal(t, 5*time.Second, cfg.Core.Timeout)
		assert.Equal(t, 2.5, cfg.Core.RateLimit)
		assert.Equal(t, []string{"domain", "membership"}, cfg.Sync.ImmutableKinds)
	})

	t.Run("用户名与密码必须同时设置", func(t *testing.T) {
		resetEnv()
		os.Setenv("MAILMIRROR_CORE_USERNAME", "restadmin")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("不支持的数据库类型", func(t *testing.T) {
		resetEnv()
		os.Setenv("MAILMIRROR_DATABASE_TYPE", "oracle")
		os.Setenv("MAILMIRROR_DATABASE_DSN", "x")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("数据库类型需要 DSN", func(t *testing.T) {
		resetEnv()
		os.Setenv("MAILMIRROR_DATABASE_TYPE", "postgres")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("无效的超时时间", func(t *testing.T) {
		resetEnv()
		os.Setenv("MAILMIRROR_CORE_TIMEOUT", "soon")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseList(" a, ,b "))
	assert.Empty(t, parseList(""))
	assert.Equal(t, []string{"domain", "email"}, parseKinds("DOMAIN,Email"))
}
