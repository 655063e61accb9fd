package httptransport

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailmirror/backend/internal/binding"
	"mailmirror/backend/internal/domain"
	"mailmirror/backend/internal/health"
	"mailmirror/backend/internal/middleware"
	"mailmirror/backend/internal/monitoring"
)

// Refresher 拉取整个远端集合，返回新建的本地记录数
type Refresher interface {
	Refresh(ctx context.Context, kind domain.Kind) (int, error)
}

// SystemReader 读取远端系统信息
type SystemReader interface {
	System(ctx context.Context) (map[string]any, error)
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Refresher Refresher
	System    SystemReader
	Health    *health.HealthChecker
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
}

// Handler 运维接口处理器
type Handler struct {
	refresher Refresher
	system    SystemReader
	health    *health.HealthChecker
	logger    *zap.Logger
}

// NewRouter 创建运维接口路由：健康检查、指标与手动刷新
func NewRouter(deps RouterDependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		refresher: deps.Refresher,
		system:    deps.System,
		health:    deps.Health,
		logger:    logger,
	}

	router := gin.New()
	mm := middleware.NewMonitoringMiddleware(deps.Metrics, logger)
	router.Use(mm.PanicRecovery())
	router.Use(mm.HTTPMetrics())

	// healthcheck 处理器按 /live 与 /ready 分发
	healthHandler := http.StripPrefix("/health", deps.Health.Handler())
	router.GET("/health", h.healthDetail)
	router.GET("/health/live", gin.WrapH(healthHandler))
	router.GET("/health/ready", gin.WrapH(healthHandler))
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/system", h.systemInfo)
		v1.POST("/sync", h.refreshAll)
		v1.POST("/sync/:kind", h.refreshKind)
	}

	return router
}

func (h *Handler) healthDetail(c *gin.Context) {
	Success(c, h.health.CheckHealth(c.Request.Context()))
}

func (h *Handler) systemInfo(c *gin.Context) {
	info, err := h.system.System(c.Request.Context())
	if err != nil {
		h.logger.Warn("failed to read remote system info", zap.Error(err))
		writeError(c, err)
		return
	}
	Success(c, info)
}

func (h *Handler) refreshKind(c *gin.Context) {
	kind, err := domain.ParseKind(c.Param("kind"))
	if err != nil {
		writeError(c, err)
		return
	}
	created, err := h.refresher.Refresh(c.Request.Context(), kind)
	if err != nil {
		h.logger.Warn("refresh failed", zap.String("kind", string(kind)), zap.Error(err))
		writeError(c, err)
		return
	}
	h.logger.Info("refresh completed", zap.String("kind", string(kind)), zap.Int("created", created))
	Success(c, gin.H{"kind": kind, "created": created})
}

// refreshAll 依次刷新所有带远端集合的类型，遇到错误即停止
func (h *Handler) refreshAll(c *gin.Context) {
	counts := make(map[domain.Kind]int, len(binding.RefreshOrder))
	for _, kind := range binding.RefreshOrder {
		created, err := h.refresher.Refresh(c.Request.Context(), kind)
		if err != nil {
			h.logger.Warn("refresh failed", zap.String("kind", string(kind)), zap.Error(err))
			writeError(c, err)
			return
		}
		counts[kind] = created
	}
	Success(c, counts)
}
