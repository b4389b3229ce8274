package main

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/BaSui01/tokendemo/api"
	"github.com/BaSui01/tokendemo/api/handlers"
	"github.com/BaSui01/tokendemo/config"
	"github.com/BaSui01/tokendemo/demo"
	"github.com/BaSui01/tokendemo/internal/cache"
	"github.com/BaSui01/tokendemo/internal/metrics"
	"github.com/BaSui01/tokendemo/internal/server"
	"github.com/BaSui01/tokendemo/internal/telemetry"
	"github.com/BaSui01/tokendemo/tokenizer"
	"github.com/BaSui01/tokendemo/web"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

const (
	metricsNamespace    = "tokendemo"
	cacheKeyPrefix      = "tokendemo:"
	cacheHealthInterval = 30 * time.Second
	livePath            = "/live"

	// internalCallHeader 携带本进程令牌，标记实时会话发回本服务的分词请求
	internalCallHeader = "X-TokenDemo-Internal"
)

// Server 是 TokenDemo 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 依赖
	metricsCollector *metrics.Collector
	cache            *cache.Manager
	tokenizer        tokenizer.Tokenizer
	service          *tokenizer.Service
	renderer         *web.Renderer

	// Handlers
	healthHandler *handlers.HealthHandler
	tokensHandler *handlers.TokensHandler
	pageHandler   *handlers.PageHandler
	liveHandler   *handlers.LiveHandler

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
	// internalToken 每个进程随机生成，只在实时会话客户端的请求上出现
	internalToken string
}

// ServerOption 配置 Server
type ServerOption func(*Server)

// WithTokenizer 使用指定的分词器，跳过按配置构建
func WithTokenizer(t tokenizer.Tokenizer) ServerOption {
	return func(s *Server) { s.tokenizer = t }
}

// WithMetricsCollector 使用指定的指标收集器
func WithMetricsCollector(c *metrics.Collector) ServerOption {
	return func(s *Server) { s.metricsCollector = c }
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers, opts ...ServerOption) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		otel:   otelProviders,

		internalToken: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	if err := s.init(); err != nil {
		return err
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("tokenizer", s.service.Name()),
		zap.Bool("cache_enabled", s.cache != nil),
		zap.Bool("live_enabled", s.cfg.Demo.LiveEnabled),
	)

	return nil
}

// init 构建依赖与 handlers，不监听端口
func (s *Server) init() error {
	if s.metricsCollector == nil {
		s.metricsCollector = metrics.NewCollector(metricsNamespace, s.logger)
	}

	if err := s.initTokenizer(); err != nil {
		return fmt.Errorf("failed to init tokenizer: %w", err)
	}

	s.initCache()
	s.initService()

	if err := s.initHandlers(); err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}
	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

func (s *Server) initTokenizer() error {
	if s.tokenizer != nil {
		return nil
	}
	tokenizer.RegisterOpenAITokenizers()

	t, err := tokenizer.FromConfig(s.cfg.Tokenizer)
	if err != nil {
		return err
	}
	s.tokenizer = t
	return nil
}

// initCache 连接 Redis。连接失败时退化为不使用缓存。
func (s *Server) initCache() {
	if !s.cfg.Redis.Enabled {
		s.logger.Info("Redis cache disabled")
		return
	}

	m, err := cache.NewManager(cache.Config{
		Addr:                s.cfg.Redis.Addr,
		Password:            s.cfg.Redis.Password,
		DB:                  s.cfg.Redis.DB,
		KeyPrefix:           cacheKeyPrefix,
		DefaultTTL:          s.cfg.Tokenizer.CacheTTL,
		MaxRetries:          3,
		PoolSize:            s.cfg.Redis.PoolSize,
		MinIdleConns:        s.cfg.Redis.MinIdleConns,
		TLS:                 s.cfg.Redis.TLS,
		HealthCheckInterval: cacheHealthInterval,
	}, s.logger)
	if err != nil {
		s.logger.Warn("Redis not available, tokenizing without cache", zap.Error(err))
		return
	}
	s.cache = m
}

func (s *Server) initService() {
	opts := []tokenizer.ServiceOption{
		tokenizer.WithRecorder(s.metricsCollector),
		tokenizer.WithLogger(s.logger),
	}
	if s.cache != nil {
		opts = append(opts, tokenizer.WithCache(s.cache, s.cfg.Tokenizer.CacheTTL))
	}
	s.service = tokenizer.NewService(s.tokenizer, opts...)
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() error {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewTokenizerHealthCheck(s.service.Check))
	if s.cache != nil {
		s.healthHandler.RegisterCheck(handlers.NewRedisHealthCheck(s.cache.Ping))
	}

	s.tokensHandler = handlers.NewTokensHandler(s.service, s.cfg.Tokenizer.MaxInputBytes, s.logger)

	renderer, err := web.NewRenderer()
	if err != nil {
		return err
	}
	s.renderer = renderer

	s.pageHandler = handlers.NewPageHandler(renderer, web.PageData{
		LiveEnabled: s.cfg.Demo.LiveEnabled,
		LivePath:    livePath,
		TokensPath:  demo.TokensPath,
	}, s.logger)

	if s.cfg.Demo.LiveEnabled {
		// 实时提交在 LiveHandler 中按观众 IP 限流，发回本服务的请求凭令牌跳过 HTTP 限流
		client := demo.NewClient(s.cfg.APIBaseURL(),
			demo.WithHeader(internalCallHeader, s.internalToken),
			demo.WithClientLogger(s.logger),
		)
		s.liveHandler = handlers.NewLiveHandler(client, renderer, s.logger,
			handlers.WithLiveRecorder(s.metricsCollector),
			handlers.WithSubmitRateLimit(float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst),
			handlers.WithOriginPatterns(originPatterns(s.cfg.Server.CORSAllowedOrigins)...),
			handlers.WithReadLimit(int64(s.cfg.Tokenizer.MaxInputBytes)+1024),
		)
	}

	s.logger.Info("Handlers initialized", zap.String("api_base_url", s.cfg.APIBaseURL()))
	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// routes 构建带中间件链的 HTTP handler
func (s *Server) routes(rateLimiterCtx context.Context) http.Handler {
	mux := http.NewServeMux()

	// 演示页面与静态资源
	mux.HandleFunc("/", s.pageHandler.HandlePage)
	mux.Handle("/static/", web.StaticHandler())

	// 分词接口
	mux.HandleFunc(demo.TokensPath, s.tokensHandler.HandleTokens)

	// 实时通道
	if s.liveHandler != nil {
		mux.HandleFunc(livePath, s.liveHandler.HandleLive)
	}

	// 健康检查端点
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(api.VersionResponse{
		Version:   Version,
		Tokenizer: s.service.Name(),
	}))

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		MetricsMiddleware(s.metricsCollector),
		SecurityHeaders(),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger,
			WithRateLimitSkip(s.isInternalCall),
		),
	)
}

// isInternalCall 判断请求是否来自本进程的实时会话客户端：
// 来源为回环地址且携带本进程令牌。
func (s *Server) isInternalCall(r *http.Request) bool {
	token := r.Header.Get(internalCallHeader)
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.internalToken)) != 1 {
		return false
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
		Name:            "http",
	}

	s.httpManager = server.NewManager(s.routes(rateLimiterCtx), serverConfig, s.logger)

	if s.cfg.Server.TLSCertFile != "" {
		return s.httpManager.StartTLS(s.cfg.Server.TLSCertFile, s.cfg.Server.TLSKeyFile)
	}
	return s.httpManager.Start()
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器，端口为 0 时不启动
func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsPort == 0 {
		s.logger.Info("Metrics server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
		Name:            "metrics",
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	return s.metricsManager.Start()
}

// originPatterns 把 CORS 来源（https://host:port）转换为 WebSocket 的 host 匹配模式
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 1. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 2. 关闭 HTTP 服务器，不再接受新连接
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 3. 结束实时会话（被劫持的连接不受 http.Server 管理）
	if s.liveHandler != nil {
		if err := s.liveHandler.Shutdown(ctx); err != nil {
			s.logger.Error("Live sessions shutdown error", zap.Error(err))
		}
	}

	// 4. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 5. 关闭缓存连接
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("Cache close error", zap.Error(err))
		}
	}

	// 6. 刷新遥测数据
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
