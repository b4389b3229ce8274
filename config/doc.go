// Copyright (c) TokenDemo Authors.
// Licensed under the MIT License.

// Package config 提供 tokendemo 的配置管理功能。
//
// 配置来源依次为默认值、YAML 文件与 TOKENDEMO_ 前缀的环境变量，
// 覆盖服务器、分词器、演示页面、Redis 缓存、日志与遥测六个部分。
package config
