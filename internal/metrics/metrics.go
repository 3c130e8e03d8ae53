package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP 指标
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benefit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "benefit_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 权益核销指标
	RedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benefit_redemptions_total",
			Help: "Redemption attempts by outcome",
		},
		[]string{"outcome"},
	)

	// 列表缓存指标
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benefit_cache_lookups_total",
			Help: "Read-through cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)

	// 权益目录数据源失败次数
	CatalogSourceFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benefit_catalog_source_failures_total",
			Help: "Catalog sub-source failures that degraded a listing",
		},
		[]string{"source"},
	)

	// 计数同步与维护任务指标
	CounterSyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benefit_counter_sync_total",
			Help: "Active benefit counter synchronizations by result",
		},
		[]string{"result"},
	)
	MaintenanceTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benefit_maintenance_transitions_total",
			Help: "State transitions applied by the expiry sweep",
		},
		[]string{"status"},
	)

	// 推送订阅数
	ActiveSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "benefit_active_subscriptions",
			Help: "Number of live benefit-list subscriptions",
		},
	)
)

var registerOnce sync.Once

// InitMetrics 注册全部指标，可重复调用
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(RedemptionsTotal)
		prometheus.MustRegister(CacheLookupsTotal)
		prometheus.MustRegister(CatalogSourceFailuresTotal)
		prometheus.MustRegister(CounterSyncTotal)
		prometheus.MustRegister(MaintenanceTransitionsTotal)
		prometheus.MustRegister(ActiveSubscriptions)
	})
}

// Handler 指标暴露端点
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRedemption 记录一次核销结果
func ObserveRedemption(outcome string) {
	RedemptionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCacheLookup 记录缓存命中情况
func ObserveCacheLookup(cacheName string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(cacheName, result).Inc()
}

// ObserveCatalogSourceFailure 记录目录数据源失败
func ObserveCatalogSourceFailure(source string) {
	CatalogSourceFailuresTotal.WithLabelValues(source).Inc()
}

// ObserveCounterSync 记录计数同步结果
func ObserveCounterSync(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	CounterSyncTotal.WithLabelValues(result).Inc()
}

// ObserveMaintenanceTransition 记录维护任务状态迁移
func ObserveMaintenanceTransition(status string) {
	MaintenanceTransitionsTotal.WithLabelValues(status).Inc()
}
