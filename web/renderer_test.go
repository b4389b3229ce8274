package web

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BaSui01/tokendemo/demo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

// findAll 返回满足 match 的所有节点, 按文档顺序.
func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func byID(id string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, "id") == id
	}
}

func element(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

func text(n *html.Node) string {
	var b strings.Builder
	for _, t := range findAll(n, func(n *html.Node) bool { return n.Type == html.TextNode }) {
		b.WriteString(t.Data)
	}
	return b.String()
}

func renderPage(t *testing.T, data PageData) *html.Node {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPage(&buf, data))

	doc, err := html.Parse(&buf)
	require.NoError(t, err)
	return doc
}

func one(t *testing.T, doc *html.Node, match func(*html.Node) bool) *html.Node {
	t.Helper()
	nodes := findAll(doc, match)
	require.Len(t, nodes, 1)
	return nodes[0]
}

// =============================================================================
// 🧪 整页渲染测试
// =============================================================================

func TestRenderPage_InitialState(t *testing.T) {
	doc := renderPage(t, PageData{View: demo.Render(demo.State{}), LiveEnabled: true, LivePath: "/live", TokensPath: "/api/tokens"})

	assert.Equal(t, PageTitle, text(one(t, doc, element("title"))))
	assert.Equal(t, PageTitle, text(one(t, doc, element("h1"))))

	input := one(t, doc, byID("input-text"))
	assert.Equal(t, "input", input.Data)
	assert.Equal(t, "Type something...", attr(input, "placeholder"))
	assert.Equal(t, "", attr(input, "value"))

	button := one(t, doc, byID("tokenize-button"))
	assert.Equal(t, "Tokenize text", text(button))

	// 无错误时不渲染提示
	assert.Empty(t, findAll(doc, func(n *html.Node) bool { return attr(n, "role") == "alert" }))

	// 空输入渲染一个空单词
	words := findAll(one(t, doc, byID("word-preview")), element("span"))
	require.Len(t, words, 1)
	assert.Equal(t, "", text(words[0]))
	assert.Equal(t, "background-color: hsl(0, 50%, 80%)", attr(words[0], "style"))

	assert.Empty(t, findAll(one(t, doc, byID("token-preview")), element("span")))

	body := one(t, doc, element("body"))
	assert.Equal(t, "true", attr(body, "data-live"))
	assert.Equal(t, "/live", attr(body, "data-live-path"))
	assert.Equal(t, "/api/tokens", attr(body, "data-tokens-path"))
}

func TestRenderPage_WordsTokensAndError(t *testing.T) {
	view := demo.Render(demo.State{
		InputText: "hello world",
		Tokens:    []demo.Token{demo.NumberToken(15339), demo.NumberToken(1917)},
		Error:     demo.ErrorMessage,
	})
	doc := renderPage(t, PageData{View: view})

	words := findAll(one(t, doc, byID("word-preview")), element("span"))
	require.Len(t, words, 2)
	assert.Equal(t, "hello", text(words[0]))
	assert.Equal(t, "world", text(words[1]))
	assert.Equal(t, "background-color: "+demo.ColorFor("hello").String(), attr(words[0], "style"))

	tokens := findAll(one(t, doc, byID("token-preview")), element("span"))
	require.Len(t, tokens, 2)
	assert.Equal(t, "15339", text(tokens[0]))
	assert.Equal(t, "1917", text(tokens[1]))

	alert := one(t, doc, func(n *html.Node) bool { return attr(n, "role") == "alert" })
	assert.Equal(t, "Error:", text(one(t, alert, element("strong"))))
	assert.Contains(t, text(alert), demo.ErrorMessage)

	assert.Equal(t, "hello world", attr(one(t, doc, byID("input-text")), "value"))
	assert.Equal(t, "false", attr(one(t, doc, element("body")), "data-live"))
}

func TestRenderPage_EscapesInput(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPage(&buf, PageData{View: demo.Render(demo.State{InputText: `<script>alert(1)</script> "x"`})}))

	assert.NotContains(t, buf.String(), "<script>alert(1)</script>")
	assert.Contains(t, buf.String(), "&lt;script&gt;")
}

// =============================================================================
// 🧪 片段渲染测试
// =============================================================================

func TestRenderUpdate(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	update, err := r.RenderUpdate(demo.Render(demo.State{InputText: "a b", Tokens: []demo.Token{demo.NumberToken(64)}}))
	require.NoError(t, err)

	assert.Empty(t, strings.TrimSpace(update.Error))
	assert.Equal(t, 2, strings.Count(update.Words, "<span"))
	assert.Equal(t, 1, strings.Count(update.Tokens, "<span"))
	assert.Contains(t, update.Tokens, ">64</span>")
	assert.Contains(t, update.Words, demo.ColorFor("a").String())

	update, err = r.RenderUpdate(demo.Render(demo.State{Error: demo.ErrorMessage}))
	require.NoError(t, err)
	assert.Contains(t, update.Error, `role="alert"`)
	assert.Contains(t, update.Error, demo.ErrorMessage)
}

// =============================================================================
// 🧪 静态资源测试
// =============================================================================

func TestStaticHandler(t *testing.T) {
	h := StaticHandler()

	for _, name := range []string{"demo.js", "demo.css"} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/"+name, nil))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.NotEmpty(t, w.Body.String())
		})
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/missing.js", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// 两种模式下词预览都在页面内同步渲染, 实时推送只更新错误与 token 区域.
func TestStaticScript_WordsRenderLocally(t *testing.T) {
	data, err := staticFS.ReadFile("static/demo.js")
	require.NoError(t, err)
	script := string(data)

	section := func(start, end string) string {
		i := strings.Index(script, start)
		require.GreaterOrEqual(t, i, 0, start)
		j := strings.Index(script[i:], end)
		require.Greater(t, j, 0, end)
		return script[i : i+j]
	}

	live := section("function startLive()", "function colorFor(")
	assert.Contains(t, live, "renderWords();")
	assert.NotContains(t, live, "wordPreview.innerHTML")
	assert.Contains(t, live, "tokenPreview.innerHTML = update.tokens")

	direct := section("function startDirect()", "startLive();")
	assert.Contains(t, direct, "input.oninput = renderWords;")
}
