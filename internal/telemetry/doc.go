// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package telemetry 封装 OpenTelemetry SDK 初始化。会话管线在每轮对话上
// 开启 span（session.turn 及其子步骤），本包负责把它们通过 OTLP gRPC
// 导出。遥测关闭时保持全局 noop 实现，不连接任何外部服务。
package telemetry
