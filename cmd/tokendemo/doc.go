// Copyright (c) TokenDemo Authors.
// Licensed under the MIT License.

/*
Package main 提供 TokenDemo 服务端程序入口。

# 概述

cmd/tokendemo 是分词演示的可执行入口，提供演示页面、/api/tokens
分词接口、/live 实时通道、健康检查和版本查询。程序支持 YAML 配置文件加载、
环境变量覆盖、结构化日志（zap）、Prometheus 指标与 OpenTelemetry 追踪。

# 核心类型

  - Server     : 主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware : HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、tokenize（调用分词接口）、decode（本地还原 token）、version、health
  - 中间件链：Recovery、RequestID、OTelTracing、MetricsMiddleware、
    SecurityHeaders、RequestLogger、CORS、RateLimiter（基于 IP）
  - 分词结果缓存：启用 Redis 时经 internal/cache 缓存，连接失败时退化为直接编码
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 关闭 HTTP → 结束实时会话 → 关闭 Metrics → 关闭缓存 → 刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
