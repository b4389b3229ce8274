package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/BaSui01/tokendemo/api"
	"github.com/BaSui01/tokendemo/demo"
	"github.com/BaSui01/tokendemo/internal/ctxkeys"
	"github.com/BaSui01/tokendemo/types"
	"github.com/BaSui01/tokendemo/web"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// =============================================================================
// 📡 实时通道 Handler
// =============================================================================

const (
	// defaultLiveReadLimit 是单条客户端消息的默认上限
	defaultLiveReadLimit = 64 << 10
	// liveWriteTimeout 限制单次推送的耗时
	liveWriteTimeout = 10 * time.Second
)

// LiveRecorder 记录实时会话指标（metrics.Collector 满足该接口）。
type LiveRecorder interface {
	LiveSessionOpened()
	LiveSessionClosed()
	RecordSubmission(outcome string, duration time.Duration)
}

// LiveHandler 为每个 WebSocket 连接运行一个 demo.Session，
// 把浏览器事件转为会话事件，并把每个新视图渲染为页面片段推回浏览器。
type LiveHandler struct {
	submitter      demo.Submitter
	renderer       *web.Renderer
	recorder       LiveRecorder
	originPatterns []string
	readLimit      int64
	limits         *submitLimits
	logger         *zap.Logger

	// base 在 Shutdown 时取消，结束所有在线会话
	base     context.Context
	stop     context.CancelFunc
	mu       sync.Mutex
	closing  bool
	sessions sync.WaitGroup
}

// LiveOption 配置 LiveHandler
type LiveOption func(*LiveHandler)

// WithLiveRecorder 设置指标记录器
func WithLiveRecorder(r LiveRecorder) LiveOption {
	return func(h *LiveHandler) { h.recorder = r }
}

// WithOriginPatterns 允许来自这些跨域来源的连接（同源始终允许）
func WithOriginPatterns(patterns ...string) LiveOption {
	return func(h *LiveHandler) { h.originPatterns = patterns }
}

// WithReadLimit 设置单条客户端消息的最大字节数
func WithReadLimit(n int64) LiveOption {
	return func(h *LiveHandler) {
		if n > 0 {
			h.readLimit = n
		}
	}
}

// WithSubmitRateLimit 按客户端 IP 限制提交频率，同一 IP 的所有实时连接共享一个令牌桶。
// 超出限制的提交按 429 请求失败处理，页面显示固定错误提示。
func WithSubmitRateLimit(rps float64, burst int) LiveOption {
	return func(h *LiveHandler) {
		if rps > 0 && burst > 0 {
			h.limits = &submitLimits{
				rps:   rate.Limit(rps),
				burst: burst,
				byIP:  make(map[string]*sharedLimiter),
			}
		}
	}
}

// NewLiveHandler 创建实时通道处理器
func NewLiveHandler(submitter demo.Submitter, renderer *web.Renderer, logger *zap.Logger, opts ...LiveOption) *LiveHandler {
	h := &LiveHandler{
		submitter: submitter,
		renderer:  renderer,
		readLimit: defaultLiveReadLimit,
		logger:    logger.With(zap.String("component", "live_handler")),
	}
	h.base, h.stop = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Shutdown 结束所有在线会话并等待其退出。
// 被劫持的连接不受 http.Server.Shutdown 管理，需要单独关闭。
func (h *LiveHandler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()
	h.stop()

	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleLive 处理 WebSocket 连接
// @Summary 实时演示通道
// @Description 客户端发送 input/submit 消息，服务端推送渲染后的页面片段
// @Tags 演示
// @Router /live [get]
func (h *LiveHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	if !h.enter() {
		WriteErrorMessage(w, r, http.StatusServiceUnavailable, types.ErrServiceUnavailable, "server is shutting down", h.logger)
		return
	}
	defer h.sessions.Done()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		// Accept 已写出错误响应
		h.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(h.readLimit)

	id := uuid.NewString()
	logger := h.logger.With(zap.String("session_id", id))

	ctx, cancel := context.WithCancel(ctxkeys.WithSessionID(r.Context(), id))
	defer cancel()
	stopOnShutdown := context.AfterFunc(h.base, cancel)
	defer stopOnShutdown()

	submitter := h.submitter
	if h.limits != nil {
		ip := clientIP(r)
		limiter := h.limits.acquire(ip)
		defer h.limits.release(ip)
		submitter = &limitedSubmitter{next: submitter, limiter: limiter}
	}

	sess := demo.NewSession(submitter,
		demo.WithSessionID(id),
		demo.WithSessionLogger(logger),
		demo.WithOutcomeHook(h.recordOutcome),
	)
	views, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	go sess.Run(ctx)

	if h.recorder != nil {
		h.recorder.LiveSessionOpened()
		defer h.recorder.LiveSessionClosed()
	}
	logger.Info("live session opened", zap.String("remote_addr", r.RemoteAddr))

	pushed := make(chan struct{})
	go func() {
		defer close(pushed)
		defer cancel()
		if err := h.pushViews(ctx, conn, sess.View(), views); err != nil && ctx.Err() == nil {
			logger.Warn("live push failed", zap.Error(err))
		}
	}()

	status, reason := h.readEvents(ctx, conn, sess, logger)
	if status != -1 {
		conn.Close(status, reason)
	}

	cancel()
	<-pushed
	<-sess.Done()

	logger.Info("live session closed", zap.Int("close_status", int(status)))
}

// enter 登记一个新会话，Shutdown 之后返回 false。
func (h *LiveHandler) enter() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.sessions.Add(1)
	return true
}

// readEvents 把客户端消息转交会话，直到连接断开或会话结束。
// 返回值为需要发送的关闭状态，-1 表示无需再发送。
func (h *LiveHandler) readEvents(ctx context.Context, conn *websocket.Conn, sess *demo.Session, logger *zap.Logger) (websocket.StatusCode, string) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				logger.Debug("client closed live channel")
			default:
				if ctx.Err() == nil {
					logger.Debug("live read failed", zap.Error(err))
				}
			}
			return -1, ""
		}
		if typ != websocket.MessageText {
			return websocket.StatusUnsupportedData, "text messages only"
		}

		var msg api.LiveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("invalid live message", zap.Error(err))
			return websocket.StatusUnsupportedData, "invalid message"
		}

		switch msg.Type {
		case api.LiveMessageInput:
			err = sess.SetInput(msg.Text)
		case api.LiveMessageSubmit:
			err = sess.Submit()
		default:
			logger.Warn("unknown live message type", zap.String("type", msg.Type))
			continue
		}
		if errors.Is(err, demo.ErrSessionClosed) {
			return websocket.StatusGoingAway, "session closed"
		}
	}
}

// pushViews 先推送当前视图，再推送订阅到的每个新视图，直到订阅关闭。
// 连接上只有这一个写者。
func (h *LiveHandler) pushViews(ctx context.Context, conn *websocket.Conn, initial demo.View, views <-chan demo.View) error {
	if err := h.write(ctx, conn, initial); err != nil {
		return err
	}
	for v := range views {
		if err := h.write(ctx, conn, v); err != nil {
			return err
		}
	}
	return nil
}

func (h *LiveHandler) write(ctx context.Context, conn *websocket.Conn, v demo.View) error {
	update, err := h.renderer.RenderUpdate(v)
	if err != nil {
		return err
	}
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

func (h *LiveHandler) recordOutcome(out demo.Outcome) {
	if h.recorder != nil {
		h.recorder.RecordSubmission(out.Label(), out.Duration)
	}
}

// =============================================================================
// 🚦 提交限流
// =============================================================================

// submitLimits 为每个在线客户端 IP 维护一个令牌桶，最后一个连接关闭时移除。
type submitLimits struct {
	rps   rate.Limit
	burst int

	mu   sync.Mutex
	byIP map[string]*sharedLimiter
}

type sharedLimiter struct {
	limiter *rate.Limiter
	refs    int
}

func (l *submitLimits) acquire(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.byIP[ip]
	if !ok {
		s = &sharedLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.byIP[ip] = s
	}
	s.refs++
	return s.limiter
}

func (l *submitLimits) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.byIP[ip]; ok {
		s.refs--
		if s.refs <= 0 {
			delete(l.byIP, ip)
		}
	}
}

// limitedSubmitter 在令牌不足时不发出请求，直接返回 429 请求失败。
type limitedSubmitter struct {
	next    demo.Submitter
	limiter *rate.Limiter
}

func (s *limitedSubmitter) Tokenize(ctx context.Context, text string) ([]demo.Token, error) {
	if !s.limiter.Allow() {
		return nil, &demo.RequestFailure{StatusCode: http.StatusTooManyRequests, Body: "too many submissions"}
	}
	return s.next.Tokenize(ctx, text)
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
