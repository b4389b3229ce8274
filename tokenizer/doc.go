// Copyright (c) TokenDemo Authors.
// Licensed under the MIT License.

/*
包 tokenizer 提供 /api/tokens 背后的分词能力.

分词算法本身委托给 github.com/pkoukk/tiktoken-go, 本包只负责
选择编码、管理注册表, 以及在服务层提供缓存与并发合并.

# 核心类型

  - Tokenizer: 统一分词接口 (Encode/Decode/CountTokens/Name).
  - TiktokenTokenizer: 按模型名或显式编码惰性加载 tiktoken 编码,
    未知模型回退到 cl100k_base.
  - Service: 带 Redis 缓存、singleflight 合并、Prometheus 指标与
    OpenTelemetry span 的分词服务.

# 注册表

RegisterTokenizer/GetTokenizer 维护模型名到分词器的映射,
查找时支持最长前缀匹配. RegisterOpenAITokenizers 注册所有已知模型.
*/
package tokenizer
