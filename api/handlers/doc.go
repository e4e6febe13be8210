// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package handlers 实现 AgentDesk 的 HTTP 端点。

# 核心类型

  - ChatHandler：对话、历史查询（limit 取尾部）与清空
  - AgentHandler：Agent 配置增删改查，变更通过 AgentCatalog 重建会话
  - StatusHandler：系统状态（active/inactive、Agent 数、最后消息时间）
  - HealthHandler：/health、/ready 与 /version，支持注册就绪检查
  - Response / ErrorInfo：统一的 JSON 信封

会话层从不返回错误，拦截、失败与纠正都以普通回复返回 200；
只有请求本身无效、对话 ID 非法或管理器已关闭时才返回错误码。
types.ErrorCode 到 HTTP 状态码的映射集中在 mapErrorCodeToHTTPStatus。
*/
package handlers
