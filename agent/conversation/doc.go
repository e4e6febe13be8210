// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 conversation 提供单个对话的有序消息存储（Conversation Store）。

# 概述

Store 是只追加的 Turn 序列，顺序只由插入顺序决定，不依赖时间戳
（同一毫秒内生成的多条消息时间戳可能相同）。Store 被一个编排会话独占，
会话在每次对外可见的变更后触发整体快照持久化。

# 核心接口

  - Store：Append / All / Recent / RecentByAuthor / ByRole / Clear
  - SnapshotStore：整体快照的保存与加载后端，由 persistence 包实现

# 持久化语义

快照以逐条 JSON 记录保存。加载时每条记录独立解码与校验，损坏的记录
被跳过并计数，不会中止整个加载过程（尽力恢复）。
*/
package conversation
