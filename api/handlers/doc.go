// Copyright (c) TokenDemo Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 TokenDemo HTTP 端点的请求处理器实现。

# 概述

handlers 包实现分词接口、演示页面、实时通道与健康检查，
以及统一的响应/错误处理。所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - TokensHandler   : POST /api/tokens，成功时直接返回 {"tokens":[...]}
  - PageHandler     : GET /，渲染演示页面初始状态
  - LiveHandler     : GET /live，每个 WebSocket 连接驱动一个 demo.Session
  - HealthHandler   : 服务健康检查（/health, /healthz, /ready, /readyz, /version）
  - Response        : 统一 JSON 错误信封（success + error + timestamp）
  - ResponseWriter  : 包装 http.ResponseWriter，记录状态码并支持 Hijack
  - HealthCheck     : 可插拔健康检查接口（tokenizer、redis）

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（大小上限，超出返回 413）、ValidateContentType、RequireMethod
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 实时通道：input/submit 消息驱动会话，推送渲染后的 HTML 片段
*/
package handlers
