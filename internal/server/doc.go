// Copyright (c) TokenDemo Authors.
// Licensed under the MIT License.

/*
包 server 提供 HTTP/HTTPS 服务器生命周期管理，支持非阻塞启动、
优雅关闭与系统信号监听。

# 核心类型

  - Manager：封装 net/http.Server 与 net.Listener，提供
    Start/StartTLS/Shutdown/WaitForShutdown 等生命周期方法。
  - Config：监听地址、读写超时、空闲超时、最大请求头与关闭超时。

# 主要能力

  - 非阻塞启动，ListenAddr 返回实际监听地址（支持 ":0"）。
  - StartTLS 使用 internal/tlsutil 的 TLS 1.2+ AEAD 配置。
  - WaitForShutdown 监听 SIGINT/SIGTERM 或异步错误后优雅关闭。
*/
package server
