// =============================================================================
// 📦 测试数据工厂 - LLM 响应与对话历史
// =============================================================================
package fixtures

import (
	"encoding/json"

	"github.com/BaSui01/agentdesk/llm"
	"github.com/BaSui01/agentdesk/types"
)

// =============================================================================
// 💬 ChatResponse 工厂
// =============================================================================

// ChatResponse 返回只含文本内容的响应
func ChatResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:       "resp-001",
		Provider: "mock",
		Model:    "gpt-4o-mini",
		Choices: []llm.ChatChoice{{
			FinishReason: "stop",
			Message:      llm.Message{Role: llm.RoleAssistant, Content: content},
		}},
	}
}

// TransferCall 返回转交给 agent 的工具调用
func TransferCall(agent string) llm.ToolCall {
	return llm.ToolCall{
		ID:        "call_" + agent,
		Name:      "transfer_to_" + agent,
		Arguments: json.RawMessage(`{}`),
	}
}

// =============================================================================
// 📜 对话历史工厂
// =============================================================================

// SeatChangeHistory 返回一段座位变更对话：用户请求，SeatBookingAgent 追问座位
func SeatChangeHistory() []types.Turn {
	return []types.Turn{
		types.UserTurn("I want to change my seat on flight JJ1234"),
		types.AssistantTurn(SeatBookingAgent, "Sure. What is your seat number?", "gpt-4o-mini"),
	}
}
