package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.httpRequestDuration)
	assert.NotNil(t, collector.tokenizeRequestsTotal)
	assert.NotNil(t, collector.tokensProduced)
	assert.NotNil(t, collector.liveSessions)
	assert.NotNil(t, collector.submissionsTotal)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("POST", "/api/tokens", 200, 100*time.Millisecond, 64, 128)
	collector.RecordHTTPRequest("POST", "/api/tokens", 200, 50*time.Millisecond, 32, 64)
	collector.RecordHTTPRequest("POST", "/api/tokens", 500, 10*time.Millisecond, 32, 64)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/api/tokens", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/api/tokens", "5xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.httpRequestDuration))
}

func TestCollector_RecordTokenize(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordTokenize("tiktoken[cl100k_base]", "ok", time.Millisecond, 2)
	collector.RecordTokenize("tiktoken[cl100k_base]", "cached", time.Microsecond, 3)
	collector.RecordTokenize("tiktoken[cl100k_base]", "error", time.Millisecond, 0)
	collector.RecordTokenizeShared("tiktoken[cl100k_base]")

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.tokenizeRequestsTotal.WithLabelValues("tiktoken[cl100k_base]", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.tokenizeRequestsTotal.WithLabelValues("tiktoken[cl100k_base]", "error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(collector.tokensProduced.WithLabelValues("tiktoken[cl100k_base]")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.tokenizeSharedResponses.WithLabelValues("tiktoken[cl100k_base]")))
}

func TestCollector_LiveSessions(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.LiveSessionOpened()
	collector.LiveSessionOpened()
	collector.LiveSessionClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.liveSessions))
}

func TestCollector_RecordSubmission(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordSubmission("success", 20*time.Millisecond)
	collector.RecordSubmission("request_failure", 5*time.Millisecond)
	collector.RecordSubmission("success", 30*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.submissionsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.submissionsTotal.WithLabelValues("request_failure")))
}

func TestCollector_RecordCache(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordCacheHit("tokens")
	collector.RecordCacheHit("tokens")
	collector.RecordCacheMiss("tokens")

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.cacheHits.WithLabelValues("tokens")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.cacheMisses.WithLabelValues("tokens")))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{413, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
		{100, "unknown"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, statusCode(tt.code))
		})
	}
}
