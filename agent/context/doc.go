// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 context 为生成调用构建有界、信息密集的上下文负载。

# 概述

LLM 在多轮对话中会逐渐丢失早期信息，专家 Agent 因而反复追问
用户已经给出的航班号、座位号。本包在每次生成前从对话窗口中
重新抽取结构化事实，以清单形式显式放在负载中。

# 核心模型

  - Builder：负载构建器，持有窗口大小、截断长度与分词器
  - Payload：渲染后的文本、事实列表、轮次数与 token 数
  - Fact：结构化事实（flight_number / seat_code / intent），
    按 (kind, value) 去重，按首次出现顺序排列

# 两种负载

  - Wide：编排路径使用。最近 15 轮，每轮渲染为
    "<Role>(<author>): <content>"（内容截断到 300 字符），
    其后是事实清单与当前用户消息
  - Narrow：强制/延续路径使用。只包含目标 Agent 最近 5 条发言，
    渲染为 "You said: <content>"，其后是原始用户消息

# 与其他包协同

History 接口由 agent/conversation.Store 满足；agent/handoff 的
Router 按路由方式选择 Wide 或 Narrow。
*/
package context
