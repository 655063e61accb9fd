package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailmirror/backend/internal/app"
	"mailmirror/backend/internal/config"
	"mailmirror/backend/internal/logger"
	httptransport "mailmirror/backend/internal/transport/http"
)

// main 启动同步层的运维服务：健康检查、指标与手动刷新。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.NewLogger(logger.FromConfig(cfg.Log))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("starting mailmirror server",
		zap.String("core", cfg.Core.BaseURL),
		zap.String("database", cfg.Database.Type),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Strings("immutable_kinds", cfg.Sync.ImmutableKinds),
	)

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}
	defer a.Close()

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Refresher: a.Binder,
		System:    a.Conn,
		Health:    a.Health,
		Metrics:   a.Metrics,
		Logger:    log,
	})

	httpAddr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute, // 全量刷新可能持续较久
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 启动时探测一次远端，仅记录结果
	group.Go(func() error {
		checkCtx, cancel := context.WithTimeout(groupCtx, cfg.Core.Timeout)
		defer cancel()
		info, err := a.Conn.System(checkCtx)
		if err != nil {
			log.Warn("core API not reachable, remote sync is skipped while offline", zap.Error(err))
			return nil
		}
		log.Info("connected to core API", zap.Any("versions", info))
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
