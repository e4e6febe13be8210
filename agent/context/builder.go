package context

import (
	"strings"

	"github.com/BaSui01/agentdesk/llm/tokenizer"
	"github.com/BaSui01/agentdesk/types"
	"go.uber.org/zap"
)

// History 是构建负载所需的只读历史视图，由 conversation.Store 实现。
type History interface {
	Recent(n int) []types.Turn
	RecentByAuthor(author string, n int) []types.Turn
}

// Config 负载构建配置
type Config struct {
	Window       int `json:"window" yaml:"window"`               // wide 负载的轮次窗口
	NarrowWindow int `json:"narrow_window" yaml:"narrow_window"` // narrow 负载中目标 Agent 的发言数
	Truncate     int `json:"truncate" yaml:"truncate"`           // 每轮内容的最大字符数
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{Window: 15, NarrowWindow: 5, Truncate: 300}
}

// Payload 是交给一次生成调用的上下文
type Payload struct {
	Text   string `json:"text"`
	Facts  []Fact `json:"facts"`
	Turns  int    `json:"turns"`
	Tokens int    `json:"tokens"`
}

// Builder 构建 wide / narrow 负载
type Builder struct {
	cfg       Config
	tokenizer tokenizer.Tokenizer
	logger    *zap.Logger
}

// NewBuilder creates a Builder. Non-positive config values take the defaults.
// tok may be nil, in which case the estimator is used for token accounting.
func NewBuilder(cfg Config, tok tokenizer.Tokenizer, logger *zap.Logger) *Builder {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.NarrowWindow <= 0 {
		cfg.NarrowWindow = def.NarrowWindow
	}
	if cfg.Truncate <= 0 {
		cfg.Truncate = def.Truncate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		cfg:       cfg,
		tokenizer: tok,
		logger:    logger.With(zap.String("component", "context_builder")),
	}
}

// Config returns the effective configuration.
func (b *Builder) Config() Config { return b.cfg }

// Wide 渲染最近 Window 轮、事实清单与当前用户消息。
func (b *Builder) Wide(h History, message string) Payload {
	turns := h.Recent(b.cfg.Window)
	facts := ExtractFacts(turns)

	var sb strings.Builder
	if len(turns) == 0 {
		sb.WriteString("[Conversation context: first interaction]\n")
	} else {
		sb.WriteString("[Conversation context]\n")
		sb.WriteString(b.Narrative(turns))
		sb.WriteString("\n")
	}
	if len(facts) > 0 {
		sb.WriteString("\n[Known facts - do not ask the user for these again]\n")
		for _, f := range facts {
			sb.WriteString("- ")
			sb.WriteString(f.String())
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\nCurrent user message: ")
	sb.WriteString(message)

	p := Payload{Text: sb.String(), Facts: facts, Turns: len(turns)}
	p.Tokens = tokenizer.Count(b.tokenizer, p.Text)
	b.logger.Debug("wide payload built",
		zap.Int("turns", p.Turns),
		zap.Int("facts", len(p.Facts)),
		zap.Int("tokens", p.Tokens))
	return p
}

// Narrow 只渲染 agent 自己最近的发言，后接原始用户消息。
func (b *Builder) Narrow(h History, agent, message string) Payload {
	own := h.RecentByAuthor(agent, b.cfg.NarrowWindow)

	var sb strings.Builder
	for _, t := range own {
		sb.WriteString("You said: ")
		sb.WriteString(truncate(t.Content, b.cfg.Truncate))
		sb.WriteString("\n")
	}
	if len(own) > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(message)

	p := Payload{Text: sb.String(), Facts: []Fact{}, Turns: len(own)}
	p.Tokens = tokenizer.Count(b.tokenizer, p.Text)
	return p
}

// Narrative 把 turns 按时间顺序渲染为 "<Role>(<author>): <content>" 行。
func (b *Builder) Narrative(turns []types.Turn) string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.Role.Title() + "(" + t.Author + "): " + truncate(t.Content, b.cfg.Truncate)
	}
	return strings.Join(lines, "\n")
}

// truncate 按字符（rune）截断，不切断多字节字符。
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
