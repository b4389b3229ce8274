package tokenizer

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/BaSui01/tokendemo/config"
	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding 是未知模型回退使用的编码.
const DefaultEncoding = "cl100k_base"

// modelEncodings 将模型名称映射到其 tiktoken 编码.
var modelEncodings = map[string]string{
	"gpt-4o":                 "o200k_base",
	"gpt-4o-mini":            "o200k_base",
	"gpt-4-turbo":            "cl100k_base",
	"gpt-4":                  "cl100k_base",
	"gpt-3.5-turbo":          "cl100k_base",
	"text-embedding-ada-002": "cl100k_base",
	"text-embedding-3-large": "cl100k_base",
	"text-embedding-3-small": "cl100k_base",
	"text-davinci-003":       "p50k_base",
	"davinci":                "r50k_base",
}

// TiktokenTokenizer 为 OpenAI 系列模型封装 tiktoken.
type TiktokenTokenizer struct {
	model    string
	encoding string
	// load 加载编码数据, 测试中可替换
	load func(encoding string) (*tiktoken.Tiktoken, error)

	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// TiktokenOption 配置 TiktokenTokenizer.
type TiktokenOption func(*TiktokenTokenizer)

// WithEncoding 显式指定编码, 优先于模型推断.
func WithEncoding(encoding string) TiktokenOption {
	return func(t *TiktokenTokenizer) {
		if encoding != "" {
			t.encoding = encoding
		}
	}
}

// NewTiktokenTokenizer 为给定模型创建基于 tiktoken 的分词器.
// 编码数据在第一次使用时才加载.
func NewTiktokenTokenizer(model string, opts ...TiktokenOption) *TiktokenTokenizer {
	t := &TiktokenTokenizer{
		model:    model,
		encoding: EncodingForModel(model),
		load:     tiktoken.GetEncoding,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// EncodingForModel 返回模型对应的编码, 取最长前缀匹配, 未知模型返回 DefaultEncoding.
func EncodingForModel(model string) string {
	if enc, ok := modelEncodings[model]; ok {
		return enc
	}
	best, bestLen := DefaultEncoding, 0
	for prefix, enc := range modelEncodings {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = enc, len(prefix)
		}
	}
	return best
}

// init 惰性初始化 tiktoken 编码 (可能在第一次使用时下载数据).
// 加载失败不会被记住, 下一次调用会重新加载.
func (t *TiktokenTokenizer) init() (*tiktoken.Tiktoken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enc != nil {
		return t.enc, nil
	}
	enc, err := t.load(t.encoding)
	if err != nil {
		return nil, fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
	}
	t.enc = enc
	return enc, nil
}

func (t *TiktokenTokenizer) Encode(text string) ([]int, error) {
	enc, err := t.init()
	if err != nil {
		return nil, err
	}
	return enc.Encode(text, nil, nil), nil
}

func (t *TiktokenTokenizer) Decode(tokens []int) (string, error) {
	enc, err := t.init()
	if err != nil {
		return "", err
	}
	return enc.Decode(tokens), nil
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	ids, err := t.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Model 返回创建时的模型名称.
func (t *TiktokenTokenizer) Model() string {
	return t.model
}

// Encoding 返回实际使用的编码名称.
func (t *TiktokenTokenizer) Encoding() string {
	return t.encoding
}

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}

// RegisterOpenAITokenizers 为所有已知的 OpenAI 模型注册分词器.
func RegisterOpenAITokenizers() {
	for model := range modelEncodings {
		RegisterTokenizer(model, NewTiktokenTokenizer(model))
	}
}

// FromConfig 按配置构建分词器. 设置了 CacheDir 时,
// tiktoken 的 BPE 文件会缓存到该目录.
func FromConfig(cfg config.TokenizerConfig) (Tokenizer, error) {
	if cfg.CacheDir != "" {
		if err := os.Setenv("TIKTOKEN_CACHE_DIR", cfg.CacheDir); err != nil {
			return nil, fmt.Errorf("set tiktoken cache dir: %w", err)
		}
	}
	if cfg.Encoding != "" {
		return NewTiktokenTokenizer(cfg.Model, WithEncoding(cfg.Encoding)), nil
	}
	if t, err := GetTokenizer(cfg.Model); err == nil {
		return t, nil
	}
	return NewTiktokenTokenizer(cfg.Model), nil
}
