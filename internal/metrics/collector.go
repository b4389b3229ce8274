// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 分词指标
	tokenizeRequestsTotal   *prometheus.CounterVec
	tokenizeDuration        *prometheus.HistogramVec
	tokensProduced          *prometheus.CounterVec
	tokenizeSharedResponses *prometheus.CounterVec

	// 演示会话指标
	liveSessions       prometheus.Gauge
	submissionsTotal   *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 分词指标
	c.tokenizeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokenize_requests_total",
			Help:      "Total number of tokenization calls",
		},
		[]string{"tokenizer", "status"}, // status: ok, error, cached
	)

	c.tokenizeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tokenize_duration_seconds",
			Help:      "Tokenization duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"tokenizer"},
	)

	c.tokensProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_produced_total",
			Help:      "Total number of token ids returned to clients",
		},
		[]string{"tokenizer"},
	)

	c.tokenizeSharedResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokenize_shared_total",
			Help:      "Tokenization results shared between identical concurrent requests",
		},
		[]string{"tokenizer"},
	)

	// 演示会话指标
	c.liveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Number of connected live demo sessions",
		},
	)

	c.submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "demo_submissions_total",
			Help:      "Total number of demo tokenize submissions by outcome",
		},
		[]string{"outcome"}, // outcome: success, request_failure, transport_failure
	)

	c.submissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "demo_submission_duration_seconds",
			Help:      "Demo submission round-trip duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// 缓存指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🔤 分词指标记录
// =============================================================================

// RecordTokenize 记录一次分词调用
func (c *Collector) RecordTokenize(tokenizer, status string, duration time.Duration, tokens int) {
	c.tokenizeRequestsTotal.WithLabelValues(tokenizer, status).Inc()
	c.tokenizeDuration.WithLabelValues(tokenizer).Observe(duration.Seconds())
	if tokens > 0 {
		c.tokensProduced.WithLabelValues(tokenizer).Add(float64(tokens))
	}
}

// RecordTokenizeShared 记录一次被合并的重复分词请求
func (c *Collector) RecordTokenizeShared(tokenizer string) {
	c.tokenizeSharedResponses.WithLabelValues(tokenizer).Inc()
}

// =============================================================================
// 🖥️ 演示会话指标记录
// =============================================================================

// LiveSessionOpened 实时会话建立
func (c *Collector) LiveSessionOpened() {
	c.liveSessions.Inc()
}

// LiveSessionClosed 实时会话断开
func (c *Collector) LiveSessionClosed() {
	c.liveSessions.Dec()
}

// RecordSubmission 记录一次演示页面提交结果
func (c *Collector) RecordSubmission(outcome string, duration time.Duration) {
	c.submissionsTotal.WithLabelValues(outcome).Inc()
	c.submissionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
