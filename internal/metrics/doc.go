// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、会话、LLM 与
数据库四个维度。

# 核心类型

  - Collector：持有全部向量指标，使用 promauto 注册，按 namespace 隔离。
    它实现 session.Observer，会话事件直接落到计数器上。

# 主要能力

  - HTTP 指标：请求总数、耗时、响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 会话指标：轮次总数（按路由方式与作者）、轮次耗时、拦截次数
    （按来源与规则）、纠正次数、生成失败次数（按失败类别）、活跃会话数。
  - LLM 指标：InstrumentProvider 包装任意 llm.Provider，记录请求数、
    耗时与 Token 用量。
  - 数据库指标：SQL 快照后端的活跃/空闲连接数。
*/
package metrics
