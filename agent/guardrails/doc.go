// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 guardrails 提供生成前的安全闸门（Safety Gate）。

# 概述

每条配置的 GuardrailRule 被编译为一个 [Validator]：

  - keyword：大小写不敏感的子串匹配，任一关键词命中即拦截
  - semantic：一次 LLM 分类调用，固定的 BLOCK / ALLOW 两类提示模板，
    回复以 BLOCK 开头才拦截

[Gate] 按声明顺序评估启用的规则，首个命中即短路返回，后续规则不再执行。

# 失败语义

语义分类失败（网络、超时、空响应）记录日志后按 ALLOW 处理（fail open）。
内容审核（llm/moderation）是独立的第二道防线。
*/
package guardrails
