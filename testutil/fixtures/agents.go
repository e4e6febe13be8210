// =============================================================================
// 📦 测试数据工厂 - Agent 与安全规则
// =============================================================================
// 提供航空客服场景的预定义 Agent 配置与安全规则，用于测试
// =============================================================================
package fixtures

import (
	"github.com/BaSui01/agentdesk/types"
)

// Agent 名称
const (
	TriageAgent       = "TriageAgent"
	TechSupportAgent  = "TechSupportAgent"
	HRAgent           = "HRAgent"
	SeatBookingAgent  = "SeatBookingAgent"
	FlightStatusAgent = "FlightStatusAgent"
)

// Marker 返回某个 Agent 系统提示词的开头，用于 MockProvider.On 匹配。
// Triage 的提示词会列出所有专家名称，因此不能直接用名称匹配。
func Marker(agent string) string {
	return "You are " + agent + "."
}

// =============================================================================
// 🤖 Agent 配置工厂
// =============================================================================

// AirlineAgents 返回完整的航空客服 Agent 集合，Triage 在首位
func AirlineAgents() []types.AgentSpec {
	return []types.AgentSpec{
		{
			Name:         TriageAgent,
			Description:  "Routes customers to the right specialist",
			Instructions: Marker(TriageAgent) + " Route the customer to the right specialist. Never answer domain questions yourself.",
		},
		{
			Name:         TechSupportAgent,
			Description:  "Technical support for logins, passwords and the mobile app",
			Instructions: Marker(TechSupportAgent) + " Help with technical problems.",
		},
		{
			Name:         HRAgent,
			Description:  "Human resources questions such as vacation and payroll",
			Instructions: Marker(HRAgent) + " Answer HR questions.",
		},
		{
			Name:         SeatBookingAgent,
			Description:  "Seat selection and seat changes on booked flights",
			Instructions: Marker(SeatBookingAgent) + " Help customers change seats. Ask for the flight number and the desired seat.",
		},
		{
			Name:         FlightStatusAgent,
			Description:  "Flight status, delays and departure times",
			Instructions: Marker(FlightStatusAgent) + " Report flight status.",
		},
	}
}

// =============================================================================
// 🛡️ 安全规则工厂
// =============================================================================

// PIIRule 返回拦截 email 的关键词规则
func PIIRule() types.GuardrailRule {
	return types.GuardrailRule{
		Name:     "pii",
		Type:     types.RuleKeyword,
		Enabled:  types.Bool(true),
		Keywords: []string{"email"},
	}
}

// KeywordRule 返回启用的关键词规则
func KeywordRule(name string, keywords ...string) types.GuardrailRule {
	return types.GuardrailRule{
		Name:     name,
		Type:     types.RuleKeyword,
		Enabled:  types.Bool(true),
		Keywords: keywords,
	}
}

// SemanticRule 返回启用的语义规则
func SemanticRule(name, policy string) types.GuardrailRule {
	return types.GuardrailRule{
		Name:              name,
		Type:              types.RuleSemantic,
		Enabled:           types.Bool(true),
		PolicyDescription: policy,
	}
}
