package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 同步结果
const (
	OutcomeLocated = "located" // 远端已存在，直接绑定
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped" // 不可变类型或无可写字段
	OutcomeOffline = "offline" // 远端不可达，本地保存继续
	OutcomeFailed  = "failed"
)

// 拉取结果
const (
	PullLocal   = "local"   // 本地已有结果
	PullMarked  = "marked"  // 已拉取过，不再请求远端
	PullFetched = "fetched" // 向远端拉取
	PullFailed  = "failed"
)

// Metrics 监控指标
//
// 所有方法都允许在 nil 接收者上调用，未启用指标时可直接传 nil。
type Metrics struct {
	registry prometheus.Gatherer

	// 远端调用指标
	RemoteCallsTotal   *prometheus.CounterVec
	RemoteCallDuration *prometheus.HistogramVec

	// 同步指标
	SyncTotal         *prometheus.CounterVec
	PullsTotal        *prometheus.CounterVec
	MaterializedTotal *prometheus.CounterVec
	ConnectionErrors  prometheus.Counter

	// 运维 HTTP 指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics 在 reg 上注册监控指标
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,

		RemoteCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailmirror_remote_calls_total",
				Help: "Total number of calls to the remote REST API",
			},
			[]string{"method", "status_code"},
		),

		RemoteCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailmirror_remote_call_duration_seconds",
				Help:    "Remote REST API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),

		SyncTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailmirror_sync_total",
				Help: "Total number of local saves pushed to the remote API",
			},
			[]string{"kind", "outcome"},
		),

		PullsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailmirror_pulls_total",
				Help: "Total number of local queries by pull-through outcome",
			},
			[]string{"kind", "outcome"},
		),

		MaterializedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailmirror_materialized_total",
				Help: "Total number of local rows created from remote entries",
			},
			[]string{"kind"},
		),

		ConnectionErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailmirror_connection_errors_total",
				Help: "Total number of remote connection failures swallowed during sync",
			},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailmirror_http_requests_total",
				Help: "Total number of ops HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailmirror_http_request_duration_seconds",
				Help:    "Ops HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
	}
}

// ObserveCall 记录一次远端调用，status 为 0 表示通信失败
func (m *Metrics) ObserveCall(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RemoteCallsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.RemoteCallDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordSync 记录一次保存同步
func (m *Metrics) RecordSync(kind, outcome string) {
	if m == nil {
		return
	}
	m.SyncTotal.WithLabelValues(kind, outcome).Inc()
	if outcome == OutcomeOffline {
		m.ConnectionErrors.Inc()
	}
}

// RecordPull 记录一次查询的拉取结果
func (m *Metrics) RecordPull(kind, outcome string) {
	if m == nil {
		return
	}
	m.PullsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordMaterialized 记录从远端补建的本地记录
func (m *Metrics) RecordMaterialized(kind string) {
	if m == nil {
		return
	}
	m.MaterializedTotal.WithLabelValues(kind).Inc()
}

// RecordHTTPRequest 记录运维 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// HTTPHandler 返回 Prometheus 抓取处理器
func (m *Metrics) HTTPHandler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
