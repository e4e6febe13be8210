package handoff

import (
	"regexp"
	"strings"

	agentctx "github.com/BaSui01/agentdesk/agent/context"
	"github.com/BaSui01/agentdesk/types"
	"go.uber.org/zap"
)

// Method 路由方式
type Method string

const (
	MethodForced       Method = "forced_keyword"
	MethodContinuity   Method = "continuity"
	MethodOrchestrated Method = "orchestrated"
)

// Decision 是单轮的路由结果，不持久化。
type Decision struct {
	Target   string           `json:"target_agent"`
	Method   Method           `json:"method"`
	Category string           `json:"category,omitempty"`
	Payload  agentctx.Payload `json:"context_payload"`
}

// RouterConfig 路由配置
type RouterConfig struct {
	Table            RoutingTable
	TriageAgent      string
	ContinuityWindow int      // 识别活跃 Agent 时回看的轮次数
	QuestionCues     []string // nil 时使用 QuestionCues
}

type compiledRoute struct {
	Route
	pattern *regexp.Regexp
	split   []compiledRoute
}

// Router 按 forced > continuity > orchestrated 的顺序为每轮选择目标 Agent。
type Router struct {
	routes           []compiledRoute
	agents           map[string]types.AgentSpec
	triage           string
	cues             []string
	continuityWindow int
	builder          *agentctx.Builder
	logger           *zap.Logger
}

// NewRouter validates the routing table against the registered agents. A
// table naming an unknown agent or the triage agent is a configuration error.
func NewRouter(cfg RouterConfig, agents []types.AgentSpec, builder *agentctx.Builder, logger *zap.Logger) (*Router, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if builder == nil {
		builder = agentctx.NewBuilder(agentctx.DefaultConfig(), nil, logger)
	}
	if cfg.ContinuityWindow <= 0 {
		cfg.ContinuityWindow = 3
	}
	if cfg.QuestionCues == nil {
		cfg.QuestionCues = QuestionCues
	}
	if cfg.Table == nil {
		cfg.Table = DefaultRoutingTable()
	}

	r := &Router{
		agents:           make(map[string]types.AgentSpec, len(agents)),
		triage:           cfg.TriageAgent,
		continuityWindow: cfg.ContinuityWindow,
		builder:          builder,
		logger:           logger.With(zap.String("component", "router")),
	}
	for _, a := range agents {
		r.agents[a.Name] = a
	}
	if _, ok := r.agents[r.triage]; !ok {
		return nil, types.NewConfigError("triage agent %q is not registered", r.triage)
	}
	for _, c := range cfg.QuestionCues {
		r.cues = append(r.cues, strings.ToLower(c))
	}

	routes, err := r.compile(cfg.Table)
	if err != nil {
		return nil, err
	}
	r.routes = routes
	return r, nil
}

func (r *Router) compile(routes []Route) ([]compiledRoute, error) {
	out := make([]compiledRoute, 0, len(routes))
	for _, route := range routes {
		if route.Agent == r.triage {
			return nil, types.NewConfigError("route %q targets the triage agent", route.Category)
		}
		if _, ok := r.agents[route.Agent]; !ok {
			return nil, types.NewConfigError("route %q targets unknown agent %q", route.Category, route.Agent)
		}
		pattern := keywordPattern(route.Keywords)
		if pattern == nil {
			return nil, types.NewConfigError("route %q has no keywords", route.Category)
		}
		split, err := r.compile(route.Split)
		if err != nil {
			return nil, err
		}
		out = append(out, compiledRoute{Route: route, pattern: pattern, split: split})
	}
	return out, nil
}

// keywordPattern 编译为大小写不敏感的整词匹配，允许简单复数形式。
func keywordPattern(keywords []string) *regexp.Regexp {
	alts := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k != "" {
			alts = append(alts, regexp.QuoteMeta(k))
		}
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)(?:s|es)?\b`)
}

// Triage returns the triage agent name.
func (r *Router) Triage() string { return r.triage }

// Agent looks up a registered agent.
func (r *Router) Agent(name string) (types.AgentSpec, bool) {
	a, ok := r.agents[name]
	return a, ok
}

// Match 返回 text 命中的第一个类别对应的 Agent。
func (r *Router) Match(text string) (agent, category string, ok bool) {
	for _, route := range r.routes {
		if !route.pattern.MatchString(text) {
			continue
		}
		for _, sub := range route.split {
			if sub.pattern.MatchString(text) {
				return sub.Agent, sub.Category, true
			}
		}
		return route.Agent, route.Category, true
	}
	return "", "", false
}

// ActiveAgent 返回最近 ContinuityWindow 轮中最后发言的专家（非 triage、非 system）。
func (r *Router) ActiveAgent(h agentctx.History) (string, bool) {
	turns := h.Recent(r.continuityWindow)
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if t.Role != types.RoleAssistant || t.Author == r.triage || t.Author == types.AuthorSystem {
			continue
		}
		return t.Author, true
	}
	return "", false
}

// awaitingAnswer 判断 agent 在窗口内的发言是否在向用户提问。
func (r *Router) awaitingAnswer(h agentctx.History, agent string) bool {
	for _, t := range h.Recent(r.continuityWindow) {
		if t.Role == types.RoleAssistant && t.Author == agent && r.HasQuestionCue(t.Content) {
			return true
		}
	}
	return false
}

// HasQuestionCue reports a terminal question mark or a directive phrase.
func (r *Router) HasQuestionCue(content string) bool {
	trimmed := strings.TrimSpace(content)
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	lower := normalize(trimmed)
	for _, cue := range r.cues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

// Route 选择本轮的目标。未注册的目标会被放弃并落到下一优先级。
func (r *Router) Route(h agentctx.History, message string) Decision {
	if agent, category, ok := r.Match(message); ok {
		if _, registered := r.agents[agent]; registered {
			r.logger.Debug("forced route", zap.String("target", agent), zap.String("category", category))
			return Decision{
				Target:   agent,
				Method:   MethodForced,
				Category: category,
				Payload:  r.builder.Narrow(h, agent, message),
			}
		}
	}

	if agent, ok := r.ActiveAgent(h); ok {
		if _, registered := r.agents[agent]; !registered {
			r.logger.Warn("active agent from history is not registered, skipping continuity", zap.String("agent", agent))
		} else if r.awaitingAnswer(h, agent) {
			r.logger.Debug("continuity route", zap.String("target", agent))
			return Decision{
				Target:  agent,
				Method:  MethodContinuity,
				Payload: r.builder.Narrow(h, agent, message),
			}
		}
	}

	return Decision{
		Target:  r.triage,
		Method:  MethodOrchestrated,
		Payload: r.builder.Wide(h, message),
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "’", "'"))
}
