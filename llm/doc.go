// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供生成后端的统一抽象。

# 概述

Agent 调用、triage 编排与语义安全规则都通过 [Provider] 访问模型。
上层只依赖这里的请求/响应模型，具体服务商实现在 llm/providers 下。

# 核心类型

  - [Provider]：Completion / HealthCheck / Name
  - [ChatRequest] / [ChatResponse]：聊天请求与响应，工具通过
    ChatRequest.Tools 传递，模型以 ToolCalls 返回转交指令
  - [Error] 与 [ErrorCode]：统一错误码，会话层据此把失败归类为
    超时、密钥、模型不存在、限流、输出格式错误等用户可见类别
  - [Generate]：不需要工具调用时的 generate(system, context) 便捷函数

# 子包

  - llm/providers/openaicompat：OpenAI 兼容的 HTTP 实现
  - llm/moderation：内容审核 provider 与带超时的 Moderator
  - llm/tokenizer：tiktoken 计数，失败时退回估算器
*/
package llm
