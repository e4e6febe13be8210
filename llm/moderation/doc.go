// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 moderation 提供通用的内容审核能力，作为 guardrails 之外的第二道
生成前检查，分类体系与 guardrails 相互独立。

# 核心类型

  - ModerationProvider：审核后端接口（Name + Moderate），内置 OpenAI 适配
  - ModerationResult：单条输入的原始结果，分类与评分均为 map
  - Moderator：对外入口，Evaluate 返回 Result{Flagged, Categories, TopScore}

# 失败语义

Moderator 对所有后端错误（网络、状态码、解码、空结果）一律放行并记录
Warn 日志。审核不可用永远不会让对话失败。
*/
package moderation
