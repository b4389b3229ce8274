package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/tokendemo/api"
	"github.com/BaSui01/tokendemo/demo"
	"github.com/BaSui01/tokendemo/web"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// =============================================================================
// 🧪 实时通道测试
// =============================================================================

type vocabSubmitter struct {
	err error
}

func (s vocabSubmitter) Tokenize(_ context.Context, text string) ([]demo.Token, error) {
	if s.err != nil {
		return nil, s.err
	}
	vocab := map[string]int{"hello": 15339, "world": 1917}
	var out []demo.Token
	for _, w := range strings.Fields(text) {
		out = append(out, demo.NumberToken(vocab[w]))
	}
	return out, nil
}

type liveRecorder struct {
	mu          sync.Mutex
	opened      int
	closed      int
	submissions []string
}

func (r *liveRecorder) LiveSessionOpened() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened++
}

func (r *liveRecorder) LiveSessionClosed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
}

func (r *liveRecorder) RecordSubmission(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions = append(r.submissions, outcome)
}

func (r *liveRecorder) snapshot() (int, int, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened, r.closed, append([]string(nil), r.submissions...)
}

func newLiveServer(t *testing.T, sub demo.Submitter, opts ...LiveOption) *httptest.Server {
	t.Helper()
	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	h := NewLiveHandler(sub, renderer, zap.NewNop(), opts...)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleLive))
	t.Cleanup(srv.Close)
	return srv
}

func dialLive(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg api.LiveMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

// readUntil 读取推送直到 match 成立。视图只保留最新值，中间状态可能被合并。
func readUntil(t *testing.T, conn *websocket.Conn, match func(api.LiveUpdate) bool) api.LiveUpdate {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)

		var u api.LiveUpdate
		require.NoError(t, json.Unmarshal(data, &u))
		if match(u) {
			return u
		}
	}
}

func TestLiveHandler_InitialView(t *testing.T) {
	conn := dialLive(t, newLiveServer(t, vocabSubmitter{}))

	u := readUntil(t, conn, func(api.LiveUpdate) bool { return true })
	assert.Empty(t, u.Error)
	assert.Empty(t, u.Tokens)
	// 空输入得到一个空词
	assert.Equal(t, 1, strings.Count(u.Words, "<span"))
	assert.Contains(t, u.Words, "></span>")
}

func TestLiveHandler_InputAndSubmit(t *testing.T) {
	conn := dialLive(t, newLiveServer(t, vocabSubmitter{}))

	send(t, conn, api.LiveMessage{Type: api.LiveMessageInput, Text: "hello world"})
	u := readUntil(t, conn, func(u api.LiveUpdate) bool { return strings.Count(u.Words, "<span") == 2 })
	assert.Contains(t, u.Words, ">hello</span>")
	assert.Contains(t, u.Words, ">world</span>")
	assert.Empty(t, u.Tokens)

	send(t, conn, api.LiveMessage{Type: api.LiveMessageSubmit})
	u = readUntil(t, conn, func(u api.LiveUpdate) bool { return u.Tokens != "" })
	assert.Contains(t, u.Tokens, ">15339</span>")
	assert.Contains(t, u.Tokens, ">1917</span>")
	assert.Empty(t, u.Error)
}

func TestLiveHandler_SubmitFailure(t *testing.T) {
	rec := &liveRecorder{}
	srv := newLiveServer(t, vocabSubmitter{err: &demo.RequestFailure{StatusCode: 500}}, WithLiveRecorder(rec))
	conn := dialLive(t, srv)

	send(t, conn, api.LiveMessage{Type: api.LiveMessageInput, Text: "hello"})
	send(t, conn, api.LiveMessage{Type: api.LiveMessageSubmit})

	u := readUntil(t, conn, func(u api.LiveUpdate) bool { return u.Error != "" })
	assert.Contains(t, u.Error, `role="alert"`)
	assert.Contains(t, u.Error, "Error:")
	assert.Contains(t, u.Error, demo.ErrorMessage)
	assert.Empty(t, u.Tokens)

	assert.Eventually(t, func() bool {
		_, _, subs := rec.snapshot()
		return len(subs) == 1 && subs[0] == demo.OutcomeRequestFailure
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLiveHandler_UnknownTypeIgnored(t *testing.T) {
	conn := dialLive(t, newLiveServer(t, vocabSubmitter{}))

	send(t, conn, api.LiveMessage{Type: "resize"})
	send(t, conn, api.LiveMessage{Type: api.LiveMessageInput, Text: "hello"})

	u := readUntil(t, conn, func(u api.LiveUpdate) bool { return strings.Contains(u.Words, ">hello</span>") })
	assert.Equal(t, 1, strings.Count(u.Words, "<span"))
}

func TestLiveHandler_InvalidMessageClosesConnection(t *testing.T) {
	conn := dialLive(t, newLiveServer(t, vocabSubmitter{}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("not json")))

	var err error
	for err == nil {
		_, _, err = conn.Read(ctx)
	}
	assert.Equal(t, websocket.StatusUnsupportedData, websocket.CloseStatus(err))
}

func TestLiveHandler_SessionMetrics(t *testing.T) {
	rec := &liveRecorder{}
	srv := newLiveServer(t, vocabSubmitter{}, WithLiveRecorder(rec))
	conn := dialLive(t, srv)

	send(t, conn, api.LiveMessage{Type: api.LiveMessageSubmit})
	readUntil(t, conn, func(api.LiveUpdate) bool { return true })

	assert.Eventually(t, func() bool {
		opened, _, subs := rec.snapshot()
		return opened == 1 && len(subs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))

	assert.Eventually(t, func() bool {
		_, closed, _ := rec.snapshot()
		return closed == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, _, subs := rec.snapshot()
	assert.Equal(t, []string{demo.OutcomeSuccess}, subs)
}

func TestLiveHandler_RejectsPlainHTTP(t *testing.T) {
	srv := newLiveServer(t, vocabSubmitter{})

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestLiveHandler_Shutdown(t *testing.T) {
	renderer, err := web.NewRenderer()
	require.NoError(t, err)
	h := NewLiveHandler(vocabSubmitter{}, renderer, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleLive))
	t.Cleanup(srv.Close)

	conn := dialLive(t, srv)
	readUntil(t, conn, func(api.LiveUpdate) bool { return true })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))

	// 服务端已结束会话，客户端读取失败
	var readErr error
	for readErr == nil {
		_, _, readErr = conn.Read(ctx)
	}
	assert.Error(t, readErr)

	// 关闭后新连接被拒绝
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestLiveHandler_SubmitRateLimitSharedPerIP(t *testing.T) {
	rec := &liveRecorder{}
	srv := newLiveServer(t, vocabSubmitter{}, WithLiveRecorder(rec), WithSubmitRateLimit(0.001, 1))
	first := dialLive(t, srv)
	second := dialLive(t, srv)

	send(t, first, api.LiveMessage{Type: api.LiveMessageInput, Text: "hello"})
	send(t, first, api.LiveMessage{Type: api.LiveMessageSubmit})
	u := readUntil(t, first, func(u api.LiveUpdate) bool { return u.Tokens != "" })
	assert.Contains(t, u.Tokens, ">15339</span>")

	// 同一 IP 的另一个连接共享令牌桶
	send(t, second, api.LiveMessage{Type: api.LiveMessageInput, Text: "hello"})
	send(t, second, api.LiveMessage{Type: api.LiveMessageSubmit})
	u = readUntil(t, second, func(u api.LiveUpdate) bool { return u.Error != "" })
	assert.Contains(t, u.Error, demo.ErrorMessage)
	assert.Empty(t, u.Tokens)

	assert.Eventually(t, func() bool {
		_, _, subs := rec.snapshot()
		return len(subs) == 2
	}, 2*time.Second, 10*time.Millisecond)
	_, _, subs := rec.snapshot()
	assert.Equal(t, []string{demo.OutcomeSuccess, demo.OutcomeRequestFailure}, subs)
}

func TestSubmitLimits_AcquireRelease(t *testing.T) {
	var h LiveHandler
	WithSubmitRateLimit(1, 2)(&h)
	require.NotNil(t, h.limits)

	a := h.limits.acquire("192.0.2.2")
	assert.Same(t, a, h.limits.acquire("192.0.2.2"))
	assert.NotSame(t, a, h.limits.acquire("192.0.2.3"))

	h.limits.release("192.0.2.2")
	assert.Len(t, h.limits.byIP, 2)
	h.limits.release("192.0.2.2")
	h.limits.release("192.0.2.3")
	assert.Empty(t, h.limits.byIP)

	// 非正数配置不启用限流
	var off LiveHandler
	WithSubmitRateLimit(0, 10)(&off)
	assert.Nil(t, off.limits)
}

func TestLimitedSubmitter(t *testing.T) {
	s := &limitedSubmitter{next: vocabSubmitter{}, limiter: rate.NewLimiter(rate.Limit(0.001), 1)}

	got, err := s.Tokenize(context.Background(), "world")
	require.NoError(t, err)
	assert.Equal(t, []demo.Token{demo.NumberToken(1917)}, got)

	_, err = s.Tokenize(context.Background(), "world")
	var rf *demo.RequestFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, http.StatusTooManyRequests, rf.StatusCode)
}
