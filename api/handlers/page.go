package handlers

import (
	"net/http"

	"github.com/BaSui01/tokendemo/demo"
	"github.com/BaSui01/tokendemo/internal/pool"
	"github.com/BaSui01/tokendemo/types"
	"github.com/BaSui01/tokendemo/web"
	"go.uber.org/zap"
)

// =============================================================================
// 📄 演示页面 Handler
// =============================================================================

// PageHandler 渲染演示页面的初始状态
type PageHandler struct {
	renderer *web.Renderer
	data     web.PageData
	logger   *zap.Logger
}

// NewPageHandler 创建页面处理器。data 中的 View 会被忽略，每次都渲染空状态。
func NewPageHandler(renderer *web.Renderer, data web.PageData, logger *zap.Logger) *PageHandler {
	data.View = demo.Render(demo.State{})
	return &PageHandler{
		renderer: renderer,
		data:     data,
		logger:   logger.With(zap.String("component", "page_handler")),
	}
}

// HandlePage 处理 GET /
// @Summary 演示页面
// @Tags 演示
// @Produce html
// @Success 200 {string} string "HTML 页面"
// @Router / [get]
func (h *PageHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		WriteError(w, r, types.NewError(types.ErrMethodNotAllowed, "method not allowed"), h.logger)
		return
	}

	buf := pool.Buffers.Get()
	defer pool.Buffers.Put(buf)

	if err := h.renderer.RenderPage(buf, h.data); err != nil {
		h.logger.Error("render page failed", zap.Error(err))
		WriteError(w, r, types.NewError(types.ErrInternalError, "failed to render page").WithCause(err), h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(buf.Bytes())
	}
}
