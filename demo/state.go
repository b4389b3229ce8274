package demo

// ErrorMessage 是提交失败时展示给用户的固定提示, 具体原因只写日志.
const ErrorMessage = "There was an error generating tokens. Please try again."

// State 是演示页面的全部可变状态.
type State struct {
	InputText string
	Tokens    []Token
	// Error 为空表示没有错误
	Error string
}

// Span 是一个带背景色的文本片段.
type Span struct {
	Text  string
	Color Color
}

// View 是由 State 计算出的展示内容.
type View struct {
	InputText string
	Words     []Span
	Tokens    []Span
	Error     string
}

// HasError 报告是否需要展示错误区域.
func (v View) HasError() bool {
	return v.Error != ""
}

// Render 从状态计算视图. 单词列表每次都从 InputText 重新切分.
func Render(s State) View {
	words := SplitWords(s.InputText)
	v := View{
		InputText: s.InputText,
		Words:     make([]Span, len(words)),
		Tokens:    make([]Span, len(s.Tokens)),
		Error:     s.Error,
	}
	for i, w := range words {
		v.Words[i] = Span{Text: w, Color: ColorFor(w)}
	}
	for i, t := range s.Tokens {
		v.Tokens[i] = Span{Text: t.String(), Color: TokenColor(t)}
	}
	return v
}
