// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 AgentDesk 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 agent、llm、api 等上层模块
提供统一的类型契约。

# 核心类型

  - Turn / Role      ：对话中的一条消息，追加后不可变
  - AgentSpec        ：专家 Agent 的静态描述（名称、描述、指令、能力）
  - GuardrailRule    ：keyword / semantic 两类安全规则
  - Error / ErrorCode：结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记

# 约定

  - 用户消息的 Author 固定为 AuthorUser，系统消息为 AuthorSystem
  - 配置错误统一使用 ErrConfigInvalid，在会话构建阶段直接返回
*/
package types
