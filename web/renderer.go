package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/BaSui01/tokendemo/api"
	"github.com/BaSui01/tokendemo/demo"
	"github.com/BaSui01/tokendemo/internal/pool"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// PageTitle 是页面标题与主标题.
const PageTitle = "Tokenization Demo"

// PageData 是整页模板的输入.
type PageData struct {
	Title       string
	View        demo.View
	LiveEnabled bool
	LivePath    string
	TokensPath  string
}

// Renderer 渲染演示页面与实时通道使用的片段.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer 解析内嵌模板.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("demo").
		Funcs(template.FuncMap{"css": cssColor}).
		ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// cssColor 把颜色标记为可信 CSS; hsl(...) 中的括号会被 html/template 视为不安全.
func cssColor(c demo.Color) template.CSS {
	return template.CSS(c.String())
}

// RenderPage 渲染整页. Title 为空时使用 PageTitle.
func (r *Renderer) RenderPage(w io.Writer, data PageData) error {
	if data.Title == "" {
		data.Title = PageTitle
	}
	return r.tmpl.ExecuteTemplate(w, "page", data)
}

// RenderUpdate 渲染错误、单词与 token 三个区域.
func (r *Renderer) RenderUpdate(v demo.View) (api.LiveUpdate, error) {
	var update api.LiveUpdate

	buf := pool.Buffers.Get()
	defer pool.Buffers.Put(buf)

	for _, part := range []struct {
		name string
		dst  *string
	}{
		{"error", &update.Error},
		{"words", &update.Words},
		{"tokens", &update.Tokens},
	} {
		buf.Reset()
		if err := r.tmpl.ExecuteTemplate(buf, part.name, v); err != nil {
			return api.LiveUpdate{}, fmt.Errorf("render %s fragment: %w", part.name, err)
		}
		*part.dst = buf.String()
	}
	return update, nil
}

// StaticHandler 提供内嵌的 JS 与 CSS, 挂载在 /static/ 下.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
