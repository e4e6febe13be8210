package session

import (
	"time"

	agentctx "github.com/BaSui01/agentdesk/agent/context"
	"github.com/BaSui01/agentdesk/agent/handoff"
)

// DefaultTriageAgent 是默认的 triage Agent 名称
const DefaultTriageAgent = "TriageAgent"

// Config 会话配置
type Config struct {
	TriageAgent          string
	Context              agentctx.Config
	ContinuityWindow     int
	OrchestrationTimeout time.Duration
	DefaultModel         string
	ClassifierModel      string // 语义安全规则使用的模型，空时用 DefaultModel
	SemanticTimeout      time.Duration
	ModerationTimeout    time.Duration
	Routing              handoff.RoutingTable
}

// DefaultConfig 返回默认会话配置
func DefaultConfig() Config {
	return Config{
		TriageAgent:          DefaultTriageAgent,
		Context:              agentctx.DefaultConfig(),
		ContinuityWindow:     3,
		OrchestrationTimeout: 25 * time.Second,
		DefaultModel:         "gpt-4o-mini",
		SemanticTimeout:      10 * time.Second,
		ModerationTimeout:    10 * time.Second,
		Routing:              handoff.DefaultRoutingTable(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TriageAgent == "" {
		c.TriageAgent = def.TriageAgent
	}
	if c.ContinuityWindow <= 0 {
		c.ContinuityWindow = def.ContinuityWindow
	}
	if c.OrchestrationTimeout <= 0 {
		c.OrchestrationTimeout = def.OrchestrationTimeout
	}
	if c.DefaultModel == "" {
		c.DefaultModel = def.DefaultModel
	}
	if c.ClassifierModel == "" {
		c.ClassifierModel = c.DefaultModel
	}
	if c.SemanticTimeout <= 0 {
		c.SemanticTimeout = def.SemanticTimeout
	}
	if c.ModerationTimeout <= 0 {
		c.ModerationTimeout = def.ModerationTimeout
	}
	if c.Routing == nil {
		c.Routing = def.Routing
	}
	return c
}
