// Copyright (c) TokenDemo Authors.
// Licensed under the MIT License.

/*
包 cache 提供基于 Redis 的缓存管理能力，用于保存分词结果，
让同一段文本的重复请求不必再次编码。

# 核心类型

  - Manager：缓存管理器，持有 Redis 客户端与连接池配置，
    提供 Get/Set/Delete/Ping 基础操作与 GetJSON/SetJSON 序列化方法。
  - Config：缓存配置，包含地址、密码、键前缀、默认 TTL、
    TLS 开关与健康检查间隔等参数。

# 主要能力

  - 键前缀：所有键自动加上 KeyPrefix，便于与其他应用共用 Redis。
  - 健康检查：后台定时 Ping，Close 时停止并等待退出。
  - 错误语义：提供 ErrCacheMiss 与 ErrClosed 哨兵错误，配合 errors.Is 使用。
*/
package cache
