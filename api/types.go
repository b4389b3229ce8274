package api

// =============================================================================
// 分词类型
// =============================================================================

// TokensRequest 代表 POST /api/tokens 的请求体。
// @Description 分词请求结构
type TokensRequest struct {
	// 待分词的文本，允许为空字符串
	InputText string `json:"inputText" example:"hello world"`
}

// TokensResponse 代表 POST /api/tokens 的成功响应。
// 成功时直接返回该结构，不使用统一响应信封。
// @Description 分词响应结构
type TokensResponse struct {
	// 按顺序排列的 token ID
	Tokens []int `json:"tokens" example:"15339,1917"`
}

// =============================================================================
// 实时通道类型
// =============================================================================

// 客户端消息类型
const (
	LiveMessageInput  = "input"
	LiveMessageSubmit = "submit"
)

// LiveMessage 是浏览器通过 /live 发送的消息。
// @Description 实时通道客户端消息
type LiveMessage struct {
	// 消息类型（input、submit）
	Type string `json:"type" example:"input"`
	// 输入框的完整文本，仅 input 消息使用
	Text string `json:"text,omitempty" example:"hello world"`
}

// LiveUpdate 是服务端推送的页面片段，每个字段都是已转义的 HTML。
// @Description 实时通道服务端更新
type LiveUpdate struct {
	// 错误提示区域
	Error string `json:"error"`
	// 单词预览区域
	Words string `json:"words"`
	// token 预览区域
	Tokens string `json:"tokens"`
}

// =============================================================================
// 服务信息类型
// =============================================================================

// VersionResponse 表示 /version 的响应。
// @Description 版本信息
type VersionResponse struct {
	// 构建版本
	Version string `json:"version" example:"v0.1.0"`
	// 分词器名称
	Tokenizer string `json:"tokenizer" example:"tiktoken[cl100k_base]"`
	// Go 版本
	GoVersion string `json:"go_version" example:"go1.24.0"`
}
