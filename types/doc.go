// Copyright (c) TokenDemo Authors.
// Licensed under the MIT License.

/*
Package types 提供 tokendemo 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 api、tokenizer、demo
等上层模块提供统一的错误契约。

# 核心类型

  - Error / ErrorCode: 结构化错误，含 HTTP 状态码与 Retryable 标记

# 主要能力

  - 链式构造：NewError(...).WithCause(...).WithHTTPStatus(...)
  - 错误链查询：AsError / GetErrorCode / IsRetryable
*/
package types
