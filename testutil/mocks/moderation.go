package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/agentdesk/llm/moderation"
)

// MockModerationProvider 是 moderation.ModerationProvider 的模拟实现
type MockModerationProvider struct {
	mu sync.Mutex

	result moderation.ModerationResult
	err    error
	inputs []string
}

var _ moderation.ModerationProvider = (*MockModerationProvider)(nil)

// NewMockModerationProvider 创建默认不命中的 MockModerationProvider
func NewMockModerationProvider() *MockModerationProvider {
	return &MockModerationProvider{}
}

// WithFlagged 让后续请求命中给定类别，得分为 score
func (m *MockModerationProvider) WithFlagged(score float64, categories ...string) *MockModerationProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	cats := make(map[string]bool, len(categories))
	scores := make(map[string]float64, len(categories))
	for _, c := range categories {
		cats[c] = true
		scores[c] = score
	}
	m.result = moderation.ModerationResult{Flagged: true, Categories: cats, Scores: scores}
	return m
}

// WithError 设置返回错误
func (m *MockModerationProvider) WithError(err error) *MockModerationProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Name 返回名称
func (m *MockModerationProvider) Name() string { return "mock-moderation" }

// Moderate 返回预设结果
func (m *MockModerationProvider) Moderate(ctx context.Context, req *moderation.ModerationRequest) (*moderation.ModerationResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, req.Input...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	return &moderation.ModerationResponse{
		Provider: m.Name(),
		Results:  []moderation.ModerationResult{m.result},
	}, nil
}

// Inputs 返回所有被审核的文本
func (m *MockModerationProvider) Inputs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.inputs))
	copy(out, m.inputs)
	return out
}
