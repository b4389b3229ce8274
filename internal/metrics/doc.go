// Copyright (c) TokenDemo Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、分词、
演示会话与缓存四个维度。

# 核心类型

  - Collector：指标收集器，使用 promauto 自动注册，按 namespace 隔离。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 分词指标：调用次数（ok/error/cached）、耗时、产出 token 数、合并请求数。
  - 演示会话指标：在线实时会话数、提交结果（success/request_failure/transport_failure）。
  - 缓存指标：命中与未命中计数，按 cache_type 分组。
*/
package metrics
