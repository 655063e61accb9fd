// Package app 按配置组装存储、远端连接、同步层与服务层，供各个命令共用。
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"mailmirror/backend/internal/binding"
	"mailmirror/backend/internal/cache"
	"mailmirror/backend/internal/config"
	"mailmirror/backend/internal/core"
	"mailmirror/backend/internal/health"
	"mailmirror/backend/internal/lock"
	"mailmirror/backend/internal/monitoring"
	"mailmirror/backend/internal/resolver"
	"mailmirror/backend/internal/service"
	"mailmirror/backend/internal/storage"
	"mailmirror/backend/internal/storage/memory"
	"mailmirror/backend/internal/storage/redis"
	"mailmirror/backend/internal/storage/sql"
)

// redisPrefix 拉取标记与同步锁共用的键前缀
const redisPrefix = "mailmirror:"

// App 组装完成的应用
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Store   storage.Store
	Conn    *core.Connection
	Binder  *binding.Binder
	Metrics *monitoring.Metrics
	Health  *health.HealthChecker

	Domains     *service.DomainService
	Lists       *service.ListService
	Users       *service.UserService
	Preferences *service.PreferencesService
	Access      *service.AccessPolicy

	redis   *redis.Client
	closers []func() error
}

// New 按配置创建应用
//
// 数据库类型为空时使用内存存储；Redis 未启用时拉取标记与同步锁都在进程内。
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	store, err := openStore(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = monitoring.NewMetrics(registry)

	opts := binding.Options{Metrics: a.Metrics, Logger: log, LockTTL: cfg.Sync.LockTTL}
	if opts.ImmutableKinds, err = binding.ParseKinds(cfg.Sync.ImmutableKinds); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Redis.Enabled {
		client, err := redis.New(&cfg.Redis, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		a.closers = append(a.closers, client.Close)
		opts.Ledger = cache.NewRedisLedger(client.Client(), redisPrefix+"pull:", cfg.Sync.PullTTL)
		opts.Locker = lock.NewRedisLocker(client.Client(), redisPrefix+"lock:", cfg.Sync.LockTTL)
		log.Info("using redis for pull ledger and sync locks", zap.String("address", cfg.Redis.Address))
	} else {
		ledger := cache.NewLocalLedger(cfg.Sync.PullTTL)
		a.closers = append(a.closers, func() error { ledger.Close(); return nil })
		opts.Ledger = ledger
	}

	conn, err := core.NewConnection(&cfg.Core, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create core connection: %w", err)
	}
	conn.SetObserver(a.Metrics)
	a.Conn = conn

	a.Binder = binding.New(store, resolver.New(conn), opts)

	a.Domains = service.NewDomainService(store, a.Binder, log)
	a.Lists = service.NewListService(store, a.Binder, conn, log)
	a.Users = service.NewUserService(store, a.Binder, conn, log)
	a.Preferences = service.NewPreferencesService(store, a.Binder, log)
	a.Access = service.NewAccessPolicy(store)

	var redisPing health.Pinger
	if a.redis != nil {
		redisPing = a.redis.Ping
	}
	a.Health = health.NewHealthChecker(store, a.pingCore, redisPing, log)

	return a, nil
}

func openStore(cfg config.DatabaseConfig, log *zap.Logger) (storage.Store, error) {
	if cfg.Type == "" {
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	}
	store, err := sql.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database storage: %w", err)
	}
	log.Info("database storage initialized", zap.String("type", store.DriverName()))
	return store, nil
}

func (a *App) pingCore(ctx context.Context) error {
	_, err := a.Conn.System(ctx)
	return err
}

// Close 按创建的逆序释放资源
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
