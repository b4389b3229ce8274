// Copyright (c) TokenDemo Authors.
// Licensed under the MIT License.

/*
包 demo 实现分词演示页面的状态机、着色规则与分词客户端.

# 数据模型

  - State: 输入文本、最近一次成功返回的 tokens、错误提示.
  - View: 由 Render 从 State 计算得到; 单词列表每次按单个空格重新切分.
  - Token: 保留文本形式的标识符, 数字与字符串都可展示.

# 着色

ColorFor 取首个 UTF-16 码元乘以黄金角 137.508 再对 360 取模得到色相,
饱和度 50%, 亮度 80%. 首字符相同则颜色相同, 不同首字符允许碰撞.

# 提交流程

Session 以单个 goroutine 持有状态. 每次 Submit 清除错误并发起一个独立请求,
不禁用、不取消、不设超时; 结果按到达顺序应用, 最后到达的生效.
失败时展示固定提示 ErrorMessage, 原因只写日志, 旧 tokens 保持可见.

# 客户端

Client 调用 POST /api/tokens. 非 2xx 为 RequestFailure,
网络与解析错误为 TransportFailure.
*/
package demo
