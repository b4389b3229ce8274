package demo

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Submitter 把文本发送给分词服务. *Client 满足该接口.
type Submitter interface {
	Tokenize(ctx context.Context, text string) ([]Token, error)
}

// Outcome 描述一次已应用到状态上的提交结果.
type Outcome struct {
	Attempt  uint64
	Text     string
	Tokens   []Token
	Err      error
	Duration time.Duration
}

// Label 返回结果标签 (success、request_failure、transport_failure).
func (o Outcome) Label() string {
	return Classify(o.Err)
}

// Session 是单个观看者的演示状态机.
//
// 状态只由 Run 所在的 goroutine 读写. SetInput、Submit 与请求完成
// 都作为事件进入同一个队列, 按到达顺序应用. 多个请求可以同时在途,
// 最后到达的结果生效, 与发出顺序无关.
type Session struct {
	submitter Submitter
	logger    *zap.Logger
	id        string
	onOutcome func(Outcome)

	events chan func()
	done   chan struct{}
	once   sync.Once

	// 以下字段只在事件循环内访问
	state   State
	attempt uint64
	reqCtx  context.Context

	subMu  sync.Mutex
	subs   map[int]chan View
	nextID int
	closed bool
}

// SessionOption 配置 Session.
type SessionOption func(*Session)

// WithSessionLogger 设置日志记录器.
func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// WithSessionID 设置会话 ID, 出现在日志字段中.
func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// WithOutcomeHook 在每个提交结果应用后调用 fn. fn 在事件循环中执行, 不应阻塞.
func WithOutcomeHook(fn func(Outcome)) SessionOption {
	return func(s *Session) { s.onOutcome = fn }
}

// NewSession 创建会话. 调用 Run 之前, SetInput、Submit 与 View 会阻塞.
func NewSession(submitter Submitter, opts ...SessionOption) *Session {
	s := &Session{
		submitter: submitter,
		logger:    zap.NewNop(),
		events:    make(chan func()),
		done:      make(chan struct{}),
		subs:      make(map[int]chan View),
		reqCtx:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "demo_session"))
	if s.id != "" {
		s.logger = s.logger.With(zap.String("session_id", s.id))
	}
	return s
}

// ID 返回会话 ID.
func (s *Session) ID() string {
	return s.id
}

// Run 运行事件循环直到 ctx 结束. 只能调用一次.
// 请求使用脱离取消的 ctx 副本, 在途请求不会因会话结束而中断,
// 但它们的结果在会话结束后被丢弃.
func (s *Session) Run(ctx context.Context) {
	s.once.Do(func() {
		s.reqCtx = context.WithoutCancel(ctx)
		s.loop(ctx)
	})
}

func (s *Session) loop(ctx context.Context) {
	defer s.shutdown()

	s.logger.Debug("session started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("session stopped", zap.Uint64("attempts", s.attempt))
			return
		case fn := <-s.events:
			fn()
		}
	}
}

func (s *Session) shutdown() {
	close(s.done)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// Done 在事件循环退出后关闭.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// post 把事件送入循环; 循环已退出时返回 ErrSessionClosed.
func (s *Session) post(fn func()) error {
	select {
	case s.events <- fn:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// SetInput 替换输入文本并发布新视图, 不访问网络.
func (s *Session) SetInput(text string) error {
	return s.post(func() {
		s.state.InputText = text
		s.publish()
	})
}

// Submit 清除错误, 以当前输入文本发起一次独立请求后立即返回.
// 在途请求不会阻止新的提交.
func (s *Session) Submit() error {
	return s.post(func() {
		s.state.Error = ""
		s.attempt++
		attempt, text := s.attempt, s.state.InputText
		s.publish()

		s.logger.Debug("submitting text",
			zap.Uint64("attempt", attempt),
			zap.Int("input_bytes", len(text)),
		)
		go s.request(s.reqCtx, attempt, text)
	})
}

// request 在独立 goroutine 中运行, 不触碰状态, 结果作为事件回送.
func (s *Session) request(ctx context.Context, attempt uint64, text string) {
	start := time.Now()
	tokens, err := s.submitter.Tokenize(ctx, text)
	out := Outcome{
		Attempt:  attempt,
		Text:     text,
		Tokens:   tokens,
		Err:      err,
		Duration: time.Since(start),
	}

	if perr := s.post(func() { s.complete(out) }); perr != nil {
		s.logger.Debug("dropping result of closed session",
			zap.Uint64("attempt", attempt),
			zap.String("outcome", out.Label()),
		)
	}
}

func (s *Session) complete(out Outcome) {
	if out.Err != nil {
		// 失败时保留旧 token
		s.logger.Error("failed to generate tokens",
			zap.Uint64("attempt", out.Attempt),
			zap.String("outcome", out.Label()),
			zap.Duration("duration", out.Duration),
			zap.Error(out.Err),
		)
		s.state.Error = ErrorMessage
	} else {
		s.logger.Debug("received tokens",
			zap.Uint64("attempt", out.Attempt),
			zap.Stringers("tokens", out.Tokens),
			zap.Duration("duration", out.Duration),
		)
		s.state.Tokens = out.Tokens
	}
	s.publish()

	if s.onOutcome != nil {
		s.onOutcome(out)
	}
}

// View 返回当前视图. 会话结束后返回最终视图.
func (s *Session) View() View {
	reply := make(chan View, 1)
	if err := s.post(func() { reply <- Render(s.state) }); err != nil {
		// done 已关闭, 循环不再写 state
		return Render(s.state)
	}
	return <-reply
}

// Subscribe 注册观察者. 通道只保留最新视图, 慢速观察者不会阻塞事件循环.
// 会话结束或调用返回的取消函数后通道关闭.
func (s *Session) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)

	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
	return ch, cancel
}

// publish 只在事件循环中调用.
func (s *Session) publish() {
	v := Render(s.state)

	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
