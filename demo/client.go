package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/tokendemo/api"
	"github.com/BaSui01/tokendemo/internal/ctxkeys"
	"github.com/BaSui01/tokendemo/internal/tlsutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// TokensPath 是分词接口路径.
const TokensPath = "/api/tokens"

// maxFailureBody 限制非 2xx 响应体中保留用于日志的字节数.
const maxFailureBody = 4 << 10

var errMissingTokens = errors.New(`response has no "tokens" field`)

// Client 调用 POST /api/tokens. 没有超时, 每次调用运行到结束或 ctx 被取消.
type Client struct {
	baseURL    string
	httpClient *http.Client
	header     http.Header
	logger     *zap.Logger
}

// ClientOption 配置 Client.
type ClientOption func(*Client)

// WithHTTPClient 替换底层 HTTP 客户端.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithHeader 为每个请求附加一个请求头.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) { c.header.Set(key, value) }
}

// WithClientLogger 设置日志记录器.
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient 创建客户端. https 地址使用加固的 TLS 传输.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	c := &Client{
		baseURL: baseURL,
		header:  make(http.Header),
		logger:  zap.NewNop(),
	}
	if strings.HasPrefix(baseURL, "https://") {
		c.httpClient = tlsutil.SecureHTTPClient(0)
	} else {
		c.httpClient = &http.Client{}
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "tokens_client"))
	return c
}

// Tokenize 发送 {"inputText": text} 并返回 tokens.
// 非 2xx 返回 *RequestFailure; 网络、读取或解析错误返回 *TransportFailure.
func (c *Client) Tokenize(ctx context.Context, text string) ([]Token, error) {
	logger := c.logger
	if id, ok := ctxkeys.SessionID(ctx); ok {
		logger = logger.With(zap.String("session_id", id))
	}

	body, err := json.Marshal(api.TokensRequest{InputText: text})
	if err != nil {
		return nil, &TransportFailure{Op: "encode", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+TokensPath, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportFailure{Op: "build", Err: err}
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportFailure{Op: "send", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxFailureBody))
		logger.Debug("tokens request rejected", zap.Int("status", resp.StatusCode))
		return nil, &RequestFailure{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportFailure{Op: "read", Err: err}
	}

	var payload struct {
		Tokens *[]Token `json:"tokens"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &TransportFailure{Op: "decode", Err: err}
	}
	if payload.Tokens == nil {
		return nil, &TransportFailure{Op: "decode", Err: errMissingTokens}
	}

	logger.Debug("tokens received", zap.Int("count", len(*payload.Tokens)))
	return *payload.Tokens, nil
}
