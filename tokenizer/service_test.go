package tokenizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/tokendemo/internal/cache"
	"github.com/BaSui01/tokendemo/types"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

var errBoom = errors.New("boom")

// fakeRecorder 记录调用, 便于断言.
type fakeRecorder struct {
	mu       sync.Mutex
	statuses []string
	tokens   int
	shared   int
	hits     int
	misses   int
}

func (r *fakeRecorder) RecordTokenize(_ string, status string, _ time.Duration, tokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	r.tokens += tokens
}

func (r *fakeRecorder) RecordTokenizeShared(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shared++
}

func (r *fakeRecorder) RecordCacheHit(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits++
}

func (r *fakeRecorder) RecordCacheMiss(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.misses++
}

func newRedisCache(t *testing.T) (*miniredis.Miniredis, *cache.Manager) {
	t.Helper()
	mr := miniredis.RunT(t)
	m, err := cache.NewManager(cache.Config{Addr: mr.Addr(), KeyPrefix: "tokendemo:", DefaultTTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return mr, m
}

// =============================================================================
// 🧪 Service 测试
// =============================================================================

func TestService_Encode(t *testing.T) {
	rec := &fakeRecorder{}
	svc := NewService(&wordTokenizer{}, WithRecorder(rec), WithLogger(zaptest.NewLogger(t)))

	ids, err := svc.Encode(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []int{5, 5}, ids)
	assert.Equal(t, "words", svc.Name())

	assert.Equal(t, []string{StatusOK}, rec.statuses)
	assert.Equal(t, 2, rec.tokens)
	assert.Zero(t, rec.hits+rec.misses, "no cache configured")
}

func TestService_EncodeError(t *testing.T) {
	rec := &fakeRecorder{}
	svc := NewService(&wordTokenizer{err: errBoom}, WithRecorder(rec))

	_, err := svc.Encode(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, types.ErrTokenizerError, types.GetErrorCode(err))
	assert.True(t, errors.Is(err, errBoom))
	assert.Equal(t, []string{StatusError}, rec.statuses)
}

func TestService_CacheHit(t *testing.T) {
	mr, c := newRedisCache(t)
	tok := &wordTokenizer{}
	rec := &fakeRecorder{}
	svc := NewService(tok, WithCache(c, 30*time.Second), WithRecorder(rec))
	ctx := context.Background()

	first, err := svc.Encode(ctx, "a bb ccc")
	require.NoError(t, err)
	second, err := svc.Encode(ctx, "a bb ccc")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), tok.calls.Load())
	assert.Equal(t, []string{StatusOK, StatusCached}, rec.statuses)
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "tokendemo:tokens:words:")
	assert.Equal(t, 30*time.Second, mr.TTL(keys[0]))
}

func TestService_CacheKeyIncludesTokenizerName(t *testing.T) {
	mr, c := newRedisCache(t)
	ctx := context.Background()

	_, err := NewService(&wordTokenizer{name: "one"}, WithCache(c, 0)).Encode(ctx, "same text")
	require.NoError(t, err)
	_, err = NewService(&wordTokenizer{name: "two"}, WithCache(c, 0)).Encode(ctx, "same text")
	require.NoError(t, err)

	assert.Len(t, mr.Keys(), 2)
}

func TestService_CacheFailureDegrades(t *testing.T) {
	mr, c := newRedisCache(t)
	tok := &wordTokenizer{}
	rec := &fakeRecorder{}
	svc := NewService(tok, WithCache(c, 0), WithRecorder(rec))

	mr.SetError("LOADING")

	ids, err := svc.Encode(context.Background(), "still works")
	require.NoError(t, err)
	assert.Equal(t, []int{5, 5}, ids)
	assert.Equal(t, 1, rec.misses)
}

func TestService_CollapsesConcurrentDuplicates(t *testing.T) {
	tok := &wordTokenizer{gate: make(chan struct{})}
	rec := &fakeRecorder{}
	svc := NewService(tok, WithRecorder(rec))

	const callers = 5
	results := make([][]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids, err := svc.Encode(context.Background(), "x yy")
			assert.NoError(t, err)
			results[i] = ids
		}(i)
	}

	// 等第一个调用进入编码后再放行
	require.Eventually(t, func() bool { return tok.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(tok.gate)
	wg.Wait()

	assert.Less(t, tok.calls.Load(), int32(callers))
	for _, ids := range results {
		assert.Equal(t, []int{1, 2}, ids)
	}

	// 共享结果互不影响
	results[0][0] = 99
	for _, ids := range results[1:] {
		assert.Equal(t, 1, ids[0])
	}
}

func TestService_Decode(t *testing.T) {
	svc := NewService(&wordTokenizer{})
	text, err := svc.Decode(context.Background(), []int{2, 1})
	require.NoError(t, err)
	assert.Equal(t, "xx x", text)

	svc = NewService(&wordTokenizer{err: errBoom})
	_, err = svc.Decode(context.Background(), []int{1})
	assert.Equal(t, types.ErrTokenizerError, types.GetErrorCode(err))
}

func TestService_Check(t *testing.T) {
	assert.NoError(t, NewService(&wordTokenizer{}).Check(context.Background()))

	err := NewService(&wordTokenizer{err: errBoom}).Check(context.Background())
	assert.Equal(t, types.ErrServiceUnavailable, types.GetErrorCode(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewService(&wordTokenizer{}).Check(ctx), context.Canceled)
}

func TestService_EncodeSpan(t *testing.T) {
	orig := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(orig) })

	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	_, err := NewService(&wordTokenizer{}).Encode(context.Background(), "a b")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "tokenizer.Encode", spans[0].Name())

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "words", attrs["tokenizer.name"])
	assert.Equal(t, int64(2), attrs["tokenizer.tokens"])
}
