package tokenizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"time"

	"github.com/BaSui01/tokendemo/internal/cache"
	"github.com/BaSui01/tokendemo/internal/telemetry"
	"github.com/BaSui01/tokendemo/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// 指标状态标签
const (
	StatusOK     = "ok"
	StatusCached = "cached"
	StatusError  = "error"
)

const cacheType = "tokens"

// Cache 是 Service 使用的结果缓存, *cache.Manager 满足该接口.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Recorder 记录分词指标, *metrics.Collector 满足该接口.
type Recorder interface {
	RecordTokenize(tokenizer, status string, duration time.Duration, tokens int)
	RecordTokenizeShared(tokenizer string)
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// Service 在 Tokenizer 之上提供缓存、重复请求合并、指标与链路追踪.
type Service struct {
	tokenizer Tokenizer
	cache     Cache
	cacheTTL  time.Duration
	recorder  Recorder
	logger    *zap.Logger
	group     singleflight.Group
}

// ServiceOption 配置 Service.
type ServiceOption func(*Service)

// WithCache 启用结果缓存, ttl 为 0 时使用缓存自身的默认过期时间.
func WithCache(c Cache, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithRecorder 设置指标记录器.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// WithLogger 设置日志记录器.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService 创建分词服务.
func NewService(t Tokenizer, opts ...ServiceOption) *Service {
	s := &Service{
		tokenizer: t,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "tokenizer"), zap.String("tokenizer", t.Name()))
	return s
}

// Name 返回底层分词器名称.
func (s *Service) Name() string {
	return s.tokenizer.Name()
}

// Encode 将文本编码为 token ID.
// 顺序: 缓存查找 → 合并相同文本的并发请求 → 编码 → 回填缓存.
// 缓存读写失败只记录日志, 不影响结果.
func (s *Service) Encode(ctx context.Context, text string) ([]int, error) {
	ctx, span := telemetry.Tracer("tokenizer").Start(ctx, "tokenizer.Encode")
	defer span.End()
	span.SetAttributes(
		attribute.String("tokenizer.name", s.tokenizer.Name()),
		attribute.Int("tokenizer.input_bytes", len(text)),
	)

	start := time.Now()
	key := s.cacheKey(text)

	if ids, ok := s.lookup(ctx, key); ok {
		span.SetAttributes(attribute.Bool("tokenizer.cache_hit", true))
		s.record(StatusCached, start, len(ids))
		return ids, nil
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		ids, err := s.tokenizer.Encode(text)
		if err != nil {
			return nil, err
		}
		s.fill(ctx, key, ids)
		return ids, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		s.record(StatusError, start, 0)
		s.logger.Error("encode failed", zap.Int("input_bytes", len(text)), zap.Error(err))
		return nil, types.NewError(types.ErrTokenizerError, "failed to tokenize input").WithCause(err)
	}

	ids := v.([]int)
	if shared {
		// 其他调用方持有同一切片
		ids = slices.Clone(ids)
		if s.recorder != nil {
			s.recorder.RecordTokenizeShared(s.tokenizer.Name())
		}
	}

	span.SetAttributes(attribute.Int("tokenizer.tokens", len(ids)))
	s.record(StatusOK, start, len(ids))
	return ids, nil
}

// Decode 将 token ID 还原为文本, 不经过缓存.
func (s *Service) Decode(ctx context.Context, ids []int) (string, error) {
	_, span := telemetry.Tracer("tokenizer").Start(ctx, "tokenizer.Decode")
	defer span.End()

	text, err := s.tokenizer.Decode(ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return "", types.NewError(types.ErrTokenizerError, "failed to decode tokens").WithCause(err)
	}
	return text, nil
}

// Check 确认编码数据可用, 用于就绪检查.
func (s *Service) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.tokenizer.CountTokens("ready"); err != nil {
		return types.NewError(types.ErrServiceUnavailable, "tokenizer not ready").WithCause(err)
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, key string) ([]int, bool) {
	if s.cache == nil {
		return nil, false
	}

	var ids []int
	err := s.cache.GetJSON(ctx, key, &ids)
	switch {
	case err == nil:
		if s.recorder != nil {
			s.recorder.RecordCacheHit(cacheType)
		}
		return ids, true
	case cache.IsCacheMiss(err):
	default:
		s.logger.Warn("token cache lookup failed", zap.Error(err))
	}

	if s.recorder != nil {
		s.recorder.RecordCacheMiss(cacheType)
	}
	return nil, false
}

func (s *Service) fill(ctx context.Context, key string, ids []int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, ids, s.cacheTTL); err != nil {
		s.logger.Warn("token cache fill failed", zap.Error(err))
	}
}

func (s *Service) record(status string, start time.Time, tokens int) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordTokenize(s.tokenizer.Name(), status, time.Since(start), tokens)
}

// cacheKey 以分词器名称区分不同编码的结果.
func (s *Service) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "tokens:" + s.tokenizer.Name() + ":" + hex.EncodeToString(sum[:])
}
