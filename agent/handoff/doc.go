// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 handoff 决定每一轮由哪个 Agent 回答，并在生成之后纠正误路由。

# 概述

LLM 的路由是非确定的：triage 可能用文字宣布转交而不调用工具，
专家可能回答越界问题，通用编排每轮从零决策，容易在专家追问中途
把用户弹回 triage。本包用确定性的规则包住这种非确定性。

# 路由优先级

Router.Route 按以下顺序选择，第一个适用的胜出：

  - forced_keyword：消息命中 RoutingTable 中的类别（tech > hr > flight，
    flight 内部区分 seat / status），直接交给对应专家，使用 narrow 负载
  - continuity：最近 3 轮中最后发言的专家正在提问（结尾问号或
    QuestionCues 中的指令短语），新消息直接交回该专家
  - orchestrated：构建 wide 负载，由 Orchestrator 让 triage 回答或通过
    transfer_to_* 工具转交给恰好一个专家

路由目标未注册时放弃该规则，落到下一优先级。

# 响应分类

Classifier.Classify 把输出标记为 normal、textual_handoff_attempt
（仅 triage）或 out_of_scope（仅专家），纠正动作由会话层执行。
所有短语表都在 tables.go 中集中维护。
*/
package handoff
