package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"mailmirror/backend/internal/storage"
)

// Pinger 可探测的外部依赖（远端 API、Redis）
type Pinger func(ctx context.Context) error

// HealthChecker 健康检查器
//
// 存活检查只看本地存储；就绪检查额外探测远端 API 与 Redis。
type HealthChecker struct {
	health  healthcheck.Handler
	store   storage.Store
	remote  Pinger
	redis   Pinger
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthChecker 创建健康检查器，remote 与 redis 可以为 nil
func NewHealthChecker(store storage.Store, remote, redis Pinger, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health:  healthcheck.NewHandler(),
		store:   store,
		remote:  remote,
		redis:   redis,
		timeout: 5 * time.Second,
		logger:  logger,
	}

	hc.addChecks()

	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	// 数据库连接检查
	hc.health.AddLivenessCheck("database", func() error {
		return hc.store.Health()
	})

	if hc.remote != nil {
		hc.health.AddReadinessCheck("core", hc.check("core", hc.remote))
	}
	if hc.redis != nil {
		hc.health.AddReadinessCheck("redis", hc.check("redis", hc.redis))
	}
}

func (hc *HealthChecker) check(name string, ping Pinger) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), hc.timeout)
		defer cancel()

		if err := ping(ctx); err != nil {
			hc.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			return err
		}
		return nil
	}
}

// Handler 返回健康检查处理器，提供 /live 与 /ready
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// CheckHealth 执行全部检查并返回结果
func (hc *HealthChecker) CheckHealth(ctx context.Context) map[string]string {
	results := make(map[string]string)

	if err := hc.store.Health(); err != nil {
		results["database"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["database"] = "OK"
	}

	for name, ping := range map[string]Pinger{"core": hc.remote, "redis": hc.redis} {
		if ping == nil {
			results[name] = "NOT_AVAILABLE"
			continue
		}
		if err := ping(ctx); err != nil {
			results[name] = fmt.Sprintf("ERROR: %v", err)
		} else {
			results[name] = "OK"
		}
	}

	results["timestamp"] = time.Now().Format(time.RFC3339)
	return results
}
