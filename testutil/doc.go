// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 AgentDesk 测试的共享工具和辅助函数。

# 概述

testutil 包为各包的单元测试提供统一的上下文、断言与数据辅助，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertTurns / AssertEventuallyTrue
  - 数据工具: MustJSON / MustParseJSON

# 子包

  - testutil/mocks: 可编排的 MockProvider（按系统提示词匹配回复、
    工具调用、延迟与错误注入）与 MockModerationProvider
  - testutil/fixtures: 航空客服场景的 Agent 配置、安全规则、
    ChatResponse 与对话历史样例

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().
		On("SeatBookingAgent", mocks.Reply{Content: "Which seat?"})
	resp, err := provider.Completion(ctx, req)
*/
package testutil
