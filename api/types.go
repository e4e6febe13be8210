package api

import (
	"time"

	"github.com/BaSui01/agentdesk/types"
)

// =============================================================================
// 对话
// =============================================================================

// ChatRequest 一次用户输入
// @Description 聊天请求
type ChatRequest struct {
	// 用户消息
	Message string `json:"message" example:"I need to change my seat"`
	// 对话 ID，为空时使用 default
	ConversationID string `json:"conversation_id,omitempty" example:"alice"`
}

// ChatResponse 一次轮次的结果。服务端总是返回一段可展示的文本。
// @Description 聊天响应
type ChatResponse struct {
	ConversationID string `json:"conversation_id"`
	// 回复作者：Agent 名称或 system
	Author  string `json:"author" example:"SeatBookingAgent"`
	Content string `json:"content"`
	// 被安全规则或审核拦截
	Blocked bool `json:"blocked,omitempty"`
	// 路由方式：forced_keyword / continuity / orchestrated
	Method string `json:"method,omitempty"`
	// 纠正标签，例如 out_of_scope
	Label string `json:"label,omitempty"`
	// 生成失败类别
	Failure string `json:"failure,omitempty"`
	TurnID  string `json:"turn_id,omitempty"`
}

// =============================================================================
// 历史
// =============================================================================

// Turn 对话中的一条记录
type Turn struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse 对话历史
type HistoryResponse struct {
	ConversationID string `json:"conversation_id"`
	Turns          []Turn `json:"turns"`
	Total          int    `json:"total"`
}

// TurnsFromDomain 转换为 API 表示
func TurnsFromDomain(turns []types.Turn) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[i] = Turn{
			ID:        t.ID,
			Role:      string(t.Role),
			Author:    t.Author,
			Content:   t.Content,
			Model:     t.ModelID,
			Timestamp: t.Timestamp,
		}
	}
	return out
}

// =============================================================================
// Agent 配置
// =============================================================================

// AgentRequest 创建或更新 Agent。更新时 name 为空表示保持原名。
type AgentRequest struct {
	Name         string   `json:"name" example:"BaggageAgent"`
	Description  string   `json:"description"`
	Instructions string   `json:"instructions"`
	Model        string   `json:"model,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Spec 转换为领域类型
func (r AgentRequest) Spec() types.AgentSpec {
	return types.AgentSpec{
		Name:         r.Name,
		Description:  r.Description,
		Instructions: r.Instructions,
		Model:        r.Model,
		Capabilities: r.Capabilities,
	}
}

// AgentListResponse Agent 列表
type AgentListResponse struct {
	Agents []types.AgentSpec `json:"agents"`
	Total  int               `json:"total"`
	Max    int               `json:"max"`
}

// =============================================================================
// 系统状态
// =============================================================================

// StatusResponse 系统状态
type StatusResponse struct {
	// active：对话运行时已打开
	Status            string     `json:"status"`
	TotalAgents       int        `json:"total_agents"`
	Agents            []string   `json:"agents"`
	GuardrailRules    []string   `json:"guardrail_rules"`
	ModerationEnabled bool       `json:"moderation_enabled"`
	Conversations     []string   `json:"conversations"`
	RuntimeOpen       bool       `json:"runtime_open"`
	LastMessageAt     *time.Time `json:"last_message_at,omitempty"`
}
