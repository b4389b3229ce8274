package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/BaSui01/tokendemo/api"
	"github.com/BaSui01/tokendemo/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🔤 分词接口 Handler
// =============================================================================

// Encoder 是分词接口依赖的编码服务（tokenizer.Service 满足该接口）。
type Encoder interface {
	Encode(ctx context.Context, text string) ([]int, error)
}

// TokensHandler 分词接口处理器
type TokensHandler struct {
	encoder       Encoder
	maxInputBytes int64
	logger        *zap.Logger
}

// NewTokensHandler 创建分词处理器
func NewTokensHandler(encoder Encoder, maxInputBytes int, logger *zap.Logger) *TokensHandler {
	return &TokensHandler{
		encoder:       encoder,
		maxInputBytes: int64(maxInputBytes),
		logger:        logger.With(zap.String("component", "tokens_handler")),
	}
}

// HandleTokens 处理分词请求
// @Summary 文本分词
// @Description 返回输入文本的 token ID 序列
// @Tags 分词
// @Accept json
// @Produce json
// @Param request body api.TokensRequest true "分词请求"
// @Success 200 {object} api.TokensResponse "分词结果"
// @Failure 400 {object} Response "无效请求"
// @Failure 405 {object} Response "方法不允许"
// @Failure 413 {object} Response "输入过大"
// @Failure 500 {object} Response "分词失败"
// @Router /api/tokens [post]
func (h *TokensHandler) HandleTokens(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost, h.logger) {
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.TokensRequest
	if err := DecodeJSONBody(w, r, &req, h.maxInputBytes, h.logger); err != nil {
		return
	}

	ids, err := h.encoder.Encode(r.Context(), req.InputText)
	if err != nil {
		h.handleEncodeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []int{}
	}

	h.logger.Debug("tokenized",
		zap.Int("input_bytes", len(req.InputText)),
		zap.Int("tokens", len(ids)),
	)

	WriteJSON(w, http.StatusOK, api.TokensResponse{Tokens: ids})
}

func (h *TokensHandler) handleEncodeError(w http.ResponseWriter, r *http.Request, err error) {
	if typedErr, ok := types.AsError(err); ok {
		WriteError(w, r, typedErr, h.logger)
		return
	}
	if errors.Is(err, context.Canceled) {
		// 客户端已断开
		h.logger.Debug("client went away during tokenize", zap.Error(err))
		return
	}
	WriteError(w, r, types.NewError(types.ErrTokenizerError, "failed to tokenize input").WithCause(err), h.logger)
}
