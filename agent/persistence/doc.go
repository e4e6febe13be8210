// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 persistence 提供对话快照的持久化后端。

# 概述

每个对话以整体快照的形式保存：一个有序的 JSON 记录列表。后端只负责
原样存取记录，逐条解码与损坏记录的跳过由 conversation.Store 完成，
因此所有后端都天然具备"单条损坏不影响整体加载"的语义。

# 后端

  - memory：进程内 map，开发与测试使用（默认）
  - file：每个对话一个 JSON 数组文件，临时文件 + rename 原子写入
  - bolt：单个 BoltDB 文件，每个对话一个嵌套 bucket，键为大端序位置
  - redis：每个对话一个 list，MULTI 事务中 DEL + RPUSH 整体替换
  - sql：GORM 表 conversation_turns，按 position 排序，支持
    postgres / mysql / sqlite

# 使用

	store, err := persistence.NewSnapshotStore(cfg, logger)
	conv := conversation.NewStore("default", store, logger)
*/
package persistence
