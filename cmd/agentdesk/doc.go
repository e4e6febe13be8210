// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package main 提供 AgentDesk 的命令行入口。

# 概述

cmd/agentdesk 装配会话管理器、Agent 目录、快照存储与生成后端，
对外提供 HTTP API 和终端交互两种入口，并附带数据库迁移与健康检查。

# 子命令

  - serve：启动 API 服务（默认 :8080）与 Metrics 服务（默认 :9091）
  - chat：终端 REPL，支持 /history [n]、/clear、/quit
  - migrate：up / down / down-all / steps / goto / force / version / status / info
  - version、health

# 核心类型

  - App：serve 与 chat 共用的运行时装配，负责有序关闭
  - Server：两个 internal/server.Manager 放在 errgroup 中运行
  - REPL：逐行读取输入并调用 session.Manager
  - Middleware：func(http.Handler) http.Handler

# 中间件链

Recovery、RequestID、SecurityHeaders、OTelTracing、MetricsMiddleware、
RequestLogger、CORS，之后按配置追加 RateLimiter（按 IP）与
Authenticate（X-API-Key 或 HS256 Bearer JWT）。

# 构建注入

Version、BuildTime、GitCommit 通过 ldflags 设置。
*/
package main
