// Package api 定义 AgentDesk HTTP API 的请求与响应结构。
//
// # API 概览
//
//	POST   /api/v1/chat                      处理一条用户消息
//	GET    /api/v1/conversations/{id}/history?limit=N
//	DELETE /api/v1/conversations/{id}/history
//	GET    /api/v1/agents                    Agent 列表
//	POST   /api/v1/agents                    创建 Agent
//	GET    /api/v1/agents/{name}
//	PUT    /api/v1/agents/{name}
//	DELETE /api/v1/agents/{name}
//	GET    /api/v1/status                    系统状态
//	GET    /health /healthz /ready /version
//
// 所有 JSON 响应都包在 handlers.Response 信封里。
//
// # 认证
//
// 配置了 server.api_keys 时需要 X-API-Key 头；配置了 server.jwt_secret 时
// 也接受 Authorization: Bearer <jwt>。
package api
