package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentdesk/internal/ctxkeys"
	"github.com/BaSui01/agentdesk/llm"
	"github.com/BaSui01/agentdesk/types"
	"go.uber.org/zap"
)

// Outcome 是一次生成的结构化结果，由调用方决定如何持久化。
type Outcome struct {
	Author    string        `json:"author"`
	Content   string        `json:"content"`
	Model     string        `json:"model,omitempty"`
	Delegated bool          `json:"delegated,omitempty"` // triage 通过工具调用转交
	Elapsed   time.Duration `json:"elapsed"`
}

// =============================================================================
// Invoker
// =============================================================================

// Invoker 以 AgentSpec 的指令作为系统提示调用生成后端。
type Invoker struct {
	provider     llm.Provider
	defaultModel string
	logger       *zap.Logger
}

// NewInvoker creates an Invoker. defaultModel applies to agents without a model.
func NewInvoker(provider llm.Provider, defaultModel string, logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{
		provider:     provider,
		defaultModel: defaultModel,
		logger:       logger.With(zap.String("component", "invoker")),
	}
}

// Provider returns the generation backend.
func (i *Invoker) Provider() llm.Provider { return i.provider }

func (i *Invoker) model(spec types.AgentSpec) string {
	if spec.Model != "" {
		return spec.Model
	}
	return i.defaultModel
}

// Invoke runs a single agent over payload. An empty answer is malformed output.
func (i *Invoker) Invoke(ctx context.Context, spec types.AgentSpec, payload string) (Outcome, error) {
	start := time.Now()
	model := i.model(spec)
	content, err := llm.Generate(ctx, i.provider, model, spec.Instructions, payload)
	elapsed := time.Since(start)
	if err != nil {
		return Outcome{Author: spec.Name, Model: model, Elapsed: elapsed}, err
	}
	if content == "" {
		return Outcome{Author: spec.Name, Model: model, Elapsed: elapsed},
			&llm.Error{Code: llm.ErrMalformedOutput, Message: "empty completion from " + spec.Name, Provider: i.provider.Name()}
	}
	i.logger.Debug("agent answered",
		zap.String("agent", spec.Name),
		zap.String("model", model),
		zap.Duration("elapsed", elapsed))
	return Outcome{Author: spec.Name, Content: content, Model: model, Elapsed: elapsed}, nil
}

// =============================================================================
// Orchestrator
// =============================================================================

// ToolPrefix 是转交工具名前缀
const ToolPrefix = "transfer_to_"

var emptyParameters = json.RawMessage(`{"type":"object","properties":{}}`)

// ToolName returns the transfer tool name for agent. Characters outside
// [A-Za-z0-9_-] become underscores and the name is capped at 64 characters.
func ToolName(agent string) string {
	var sb strings.Builder
	sb.WriteString(ToolPrefix)
	for _, r := range agent {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	name := sb.String()
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

// Orchestrator 让 triage 决定直接回答还是通过 transfer_to_* 工具转交给
// 恰好一个专家。超时由调用方通过 ctx 控制。
type Orchestrator struct {
	invoker *Invoker
	triage  types.AgentSpec
	system  string
	tools   []llm.ToolSchema
	byTool  map[string]types.AgentSpec
	logger  *zap.Logger
}

// NewOrchestrator builds the triage prompt and one transfer tool per specialist.
func NewOrchestrator(invoker *Invoker, triage types.AgentSpec, specialists []types.AgentSpec, logger *zap.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		invoker: invoker,
		triage:  triage,
		byTool:  make(map[string]types.AgentSpec, len(specialists)),
		logger:  logger.With(zap.String("component", "orchestrator")),
	}

	var roster strings.Builder
	for _, s := range specialists {
		name := ToolName(s.Name)
		if prev, dup := o.byTool[name]; dup {
			return nil, types.NewConfigError("agents %q and %q map to the same transfer tool %q", prev.Name, s.Name, name)
		}
		o.byTool[name] = s
		o.tools = append(o.tools, llm.ToolSchema{
			Name:        name,
			Description: "Transfer to this agent if the issue is related to " + strings.ToLower(s.Description),
			Parameters:  emptyParameters,
		})
		fmt.Fprintf(&roster, "- %s: %s\n", s.Name, s.Description)
	}

	o.system = fmt.Sprintf("%s\n\nSPECIALISTS:\n%s\nUse the %s* functions to route the user to exactly one specialist. Be brief.",
		strings.TrimSpace(triage.Instructions), roster.String(), ToolPrefix)
	return o, nil
}

// Tools returns the transfer tools offered to triage.
func (o *Orchestrator) Tools() []llm.ToolSchema { return o.tools }

// Run asks triage once. The first tool call naming a known specialist wins and
// that specialist answers with the same payload. Unknown targets are ignored.
// An Outcome with empty Content means triage neither answered nor delegated.
func (o *Orchestrator) Run(ctx context.Context, payload string) (Outcome, error) {
	start := time.Now()
	model := o.invoker.model(o.triage)

	traceID, _ := ctxkeys.RequestID(ctx)
	resp, err := o.invoker.provider.Completion(ctx, &llm.ChatRequest{
		TraceID: traceID,
		Model:   model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: o.system},
			{Role: llm.RoleUser, Content: payload},
		},
		Tools:      o.tools,
		ToolChoice: "auto",
	})
	if err != nil {
		return Outcome{Author: o.triage.Name, Model: model, Elapsed: time.Since(start)}, err
	}
	msg, err := resp.FirstMessage()
	if err != nil {
		return Outcome{Author: o.triage.Name, Model: model, Elapsed: time.Since(start)}, err
	}

	for _, call := range msg.ToolCalls {
		target, ok := o.byTool[call.Name]
		if !ok {
			o.logger.Warn("triage requested unknown handoff target", zap.String("tool", call.Name))
			continue
		}
		o.logger.Info("handoff",
			zap.String("from", o.triage.Name),
			zap.String("to", target.Name))
		out, err := o.invoker.Invoke(ctx, target, payload)
		out.Delegated = true
		out.Elapsed = time.Since(start)
		return out, err
	}

	return Outcome{
		Author:  o.triage.Name,
		Content: strings.TrimSpace(msg.Content),
		Model:   model,
		Elapsed: time.Since(start),
	}, nil
}
