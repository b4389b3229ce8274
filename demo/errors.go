package demo

import (
	"errors"
	"fmt"
)

// ErrSessionClosed 在会话事件循环退出后返回.
var ErrSessionClosed = errors.New("demo session closed")

// RequestFailure 表示分词服务返回了非 2xx 状态.
type RequestFailure struct {
	StatusCode int
	// Body 是响应体的前若干字节, 仅用于日志
	Body string
}

func (e *RequestFailure) Error() string {
	return fmt.Sprintf("tokens request failed with status %d", e.StatusCode)
}

// TransportFailure 表示请求没有得到可用的响应:
// 网络错误、读取响应体失败或 JSON 解析失败.
type TransportFailure struct {
	Op  string
	Err error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("tokens request %s: %v", e.Op, e.Err)
}

func (e *TransportFailure) Unwrap() error {
	return e.Err
}

// 提交结果标签, 用于日志与指标
const (
	OutcomeSuccess          = "success"
	OutcomeRequestFailure   = "request_failure"
	OutcomeTransportFailure = "transport_failure"
)

// Classify 返回错误对应的结果标签, nil 为 success.
// 不属于已知类型的错误按 transport_failure 处理.
func Classify(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	var rf *RequestFailure
	if errors.As(err, &rf) {
		return OutcomeRequestFailure
	}
	return OutcomeTransportFailure
}
