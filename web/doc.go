// Copyright (c) TokenDemo Authors.
// Licensed under the MIT License.

// Package web 渲染分词演示页面.
//
// 模板、脚本与样式通过 embed 打包进二进制. Renderer 既能输出整页,
// 也能单独输出错误、单词与 token 三个区域, 供实时通道推送.
package web
