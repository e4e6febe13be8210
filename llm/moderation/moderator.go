package moderation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Result 是单条消息的审核结论.
type Result struct {
	Flagged    bool            `json:"flagged"`
	Categories map[string]bool `json:"categories"`
	TopScore   float64         `json:"top_score"`
}

// Moderator 包装 ModerationProvider，所有失败都按未命中处理（fail open）。
// 审核不可用时对话必须继续进行.
type Moderator struct {
	provider ModerationProvider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewModerator creates a Moderator. A nil provider yields a moderator that
// never flags, which is how moderation is disabled.
func NewModerator(provider ModerationProvider, timeout time.Duration, logger *zap.Logger) *Moderator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Moderator{
		provider: provider,
		timeout:  timeout,
		logger:   logger.With(zap.String("component", "moderator")),
	}
}

// Enabled reports whether a backend is configured.
func (m *Moderator) Enabled() bool { return m != nil && m.provider != nil }

// Evaluate runs one moderation call over text.
func (m *Moderator) Evaluate(ctx context.Context, text string) Result {
	if !m.Enabled() {
		return Result{Categories: map[string]bool{}}
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	resp, err := m.provider.Moderate(ctx, &ModerationRequest{Input: []string{text}})
	if err == nil && (resp == nil || len(resp.Results) == 0) {
		err = errors.New("moderation response has no results")
	}
	if err != nil {
		m.logger.Warn("moderation unavailable, allowing message",
			zap.String("provider", m.provider.Name()),
			zap.Error(err))
		return Result{Categories: map[string]bool{}}
	}

	r := resp.Results[0]
	cats := r.Categories
	if cats == nil {
		cats = map[string]bool{}
	}
	res := Result{Flagged: r.Flagged, Categories: cats, TopScore: r.TopScore()}
	if res.Flagged {
		m.logger.Warn("message flagged by moderation",
			zap.Strings("categories", r.FlaggedCategories()),
			zap.Float64("top_score", res.TopScore))
	}
	return res
}
