// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 session 提供单个对话的编排会话及多对话管理。

# 处理流程

Session.ProcessTurn 对每条用户消息依次执行：

 1. 安全闸门（agent/guardrails），命中则持久化系统通知并返回
 2. 内容审核（llm/moderation），命中则持久化系统通知并返回
 3. 记录用户轮次
 4. 路由（agent/handoff.Router）：forced / continuity / orchestrated
 5. 生成；编排路径整体受 OrchestrationTimeout（默认 25s）约束
 6. 响应分类与纠正：triage 的文字转交改为直接转交或请用户重述，
    专家的越界拒答改为 triage 的兜底回复
 7. 记录结果轮次并保存快照

生成失败被归类为 timeout / api_key / model_not_found / rate_limit /
malformed_output / generic，转成系统回复并持久化，ProcessTurn 从不返回错误。
只有 New 在配置不一致时返回 CONFIG_INVALID。

# 生命周期

Open 恢复历史并进入 open 状态（ProcessTurn 会按需打开）；Close 停止接收
新轮次，等待在途工作结束后保存最终快照。

# Manager

Manager 按对话 ID 持有会话，按对话串行化轮次，并在 Agent 或安全规则
变化时通过 Rebuild 重建全部会话，旧会话排空后关闭，历史保留。
*/
package session
