// MockProvider 的 LLM 提供商测试模拟实现。
//
// 支持固定响应、按系统提示词编排回复、工具调用与错误/延迟注入。
package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/agentdesk/llm"
)

// --- MockProvider 结构 ---

// Reply 是一次编排好的回复
type Reply struct {
	Content   string
	ToolCalls []llm.ToolCall
	Err       error
	Delay     time.Duration
}

type scriptedReply struct {
	match string
	reply Reply
}

// MockProvider 是 llm.Provider 的模拟实现
type MockProvider struct {
	mu sync.RWMutex

	name     string
	fallback Reply
	script   []scriptedReply

	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	// 调用记录
	calls []MockProviderCall
}

// MockProviderCall 记录单次调用
type MockProviderCall struct {
	Request  *llm.ChatRequest
	Response *llm.ChatResponse
	Error    error
}

var _ llm.Provider = (*MockProvider)(nil)

// --- 构造函数和 Builder 方法 ---

// NewMockProvider 创建新的 MockProvider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name:     "mock",
		fallback: Reply{Content: "Mock response"},
	}
}

// WithName 设置 Provider 名称
func (m *MockProvider) WithName(name string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// WithResponse 设置默认响应内容
func (m *MockProvider) WithResponse(response string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback.Content = response
	return m
}

// WithError 设置默认返回错误
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback.Err = err
	return m
}

// WithToolCalls 设置默认工具调用响应
func (m *MockProvider) WithToolCalls(toolCalls []llm.ToolCall) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback.ToolCalls = toolCalls
	return m
}

// WithDelay 设置默认响应延迟，延迟期间响应 ctx 取消
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback.Delay = d
	return m
}

// WithCompletionFunc 设置自定义 Completion 函数，优先于所有编排
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionFunc = fn
	return m
}

// On 为系统提示词包含 match 的请求编排回复。按注册顺序匹配，首个命中生效。
func (m *MockProvider) On(match string, reply Reply) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scriptedReply{match: match, reply: reply})
	return m
}

// --- llm.Provider 实现 ---

// Name 返回 Provider 名称
func (m *MockProvider) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name
}

// HealthCheck 总是健康
func (m *MockProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

// Completion 返回编排好的响应
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.RLock()
	fn := m.completionFunc
	reply := m.pick(req)
	m.mu.RUnlock()

	var (
		resp *llm.ChatResponse
		err  error
	)
	if fn != nil {
		resp, err = fn(ctx, req)
	} else {
		resp, err = m.respond(ctx, req, reply)
	}

	m.mu.Lock()
	m.calls = append(m.calls, MockProviderCall{Request: req, Response: resp, Error: err})
	m.mu.Unlock()
	return resp, err
}

func (m *MockProvider) pick(req *llm.ChatRequest) Reply {
	system := SystemPrompt(req)
	for _, s := range m.script {
		if strings.Contains(system, s.match) {
			return s.reply
		}
	}
	return m.fallback
}

func (m *MockProvider) respond(ctx context.Context, req *llm.ChatRequest, reply Reply) (*llm.ChatResponse, error) {
	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	finish := "stop"
	if len(reply.ToolCalls) > 0 {
		finish = "tool_calls"
	}
	return &llm.ChatResponse{
		ID:       "mock-response",
		Provider: m.name,
		Model:    req.Model,
		Choices: []llm.ChatChoice{{
			FinishReason: finish,
			Message: llm.Message{
				Role:      llm.RoleAssistant,
				Content:   reply.Content,
				ToolCalls: reply.ToolCalls,
			},
		}},
		Usage:     llm.ChatUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		CreatedAt: time.Now(),
	}, nil
}

// --- 调用记录 ---

// Calls 返回所有调用记录的副本
func (m *MockProvider) Calls() []MockProviderCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MockProviderCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回调用次数
func (m *MockProvider) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

// CallsMatching 返回系统提示词包含 match 的调用次数
func (m *MockProvider) CallsMatching(match string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.calls {
		if strings.Contains(SystemPrompt(c.Request), match) {
			n++
		}
	}
	return n
}

// LastRequest 返回最后一次请求，没有调用时为 nil
func (m *MockProvider) LastRequest() *llm.ChatRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1].Request
}

// Reset 清空调用记录
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// SystemPrompt 返回请求中第一条 system 消息
func SystemPrompt(req *llm.ChatRequest) string {
	if req == nil {
		return ""
	}
	for _, msg := range req.Messages {
		if msg.Role == llm.RoleSystem {
			return msg.Content
		}
	}
	return ""
}

// UserPrompt 返回请求中最后一条 user 消息
func UserPrompt(req *llm.ChatRequest) string {
	if req == nil {
		return ""
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == llm.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}
