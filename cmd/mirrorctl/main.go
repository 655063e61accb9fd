package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"mailmirror/backend/internal/app"
	"mailmirror/backend/internal/config"
	"mailmirror/backend/internal/logger"
)

// main 命令行管理工具：在本地存储中创建记录并同步到远端。
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: 加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.FromConfig(cfg.Log)
	// 命令行输出只保留警告以上的日志
	if logCfg.Level == "info" || logCfg.Level == "debug" {
		logCfg.Level = "warn"
	}
	log, err := logger.NewLogger(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: 初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Database.Type == "" {
		log.Warn("no database configured, records live only for this invocation")
	}

	a, err := app.New(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = dispatch(ctx, a, os.Args[1:], os.Stdout)
	stop()
	if cerr := a.Close(); cerr != nil {
		log.Warn("failed to close application", zap.Error(cerr))
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
