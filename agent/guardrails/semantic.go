package guardrails

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentdesk/llm"
	"go.uber.org/zap"
)

const semanticSystemPrompt = "You are a moderation system that decides whether a message violates a specific policy. Be strict but fair."

const semanticPromptTemplate = `Decide whether the following message violates the policy: "%s"

Message: "%s"

Answer only with:
- "BLOCK" if the message violates the policy (even indirectly)
- "ALLOW" if the message does not violate the policy

Followed by a one-line justification.`

// SemanticValidator asks an LLM to classify text against a policy description.
type SemanticValidator struct {
	name     string
	policy   string
	provider llm.Provider
	model    string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewSemanticValidator creates a semantic validator.
func NewSemanticValidator(name, policy string, provider llm.Provider, model string, timeout time.Duration, logger *zap.Logger) *SemanticValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticValidator{
		name:     name,
		policy:   policy,
		provider: provider,
		model:    model,
		timeout:  timeout,
		logger:   logger,
	}
}

func (v *SemanticValidator) Name() string { return v.name }

// Check blocks only on a reply starting with BLOCK. Anything else, including a
// classifier error, allows.
func (v *SemanticValidator) Check(ctx context.Context, text string) Result {
	if v.provider == nil {
		return Allow
	}
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	resp, err := v.provider.Completion(ctx, &llm.ChatRequest{
		Model:       v.model,
		MaxTokens:   100,
		Temperature: 0.1,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: semanticSystemPrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf(semanticPromptTemplate, v.policy, text)},
		},
	})
	var reply string
	if err == nil {
		var msg llm.Message
		msg, err = resp.FirstMessage()
		reply = strings.TrimSpace(msg.Content)
	}
	if err != nil {
		v.logger.Error("semantic guardrail failed, allowing message",
			zap.String("rule", v.name),
			zap.Error(err))
		return Allow
	}

	verdict, explanation := splitVerdict(reply)
	if verdict != "BLOCK" {
		return Allow
	}
	if explanation == "" {
		explanation = "policy violation detected by semantic analysis"
	}
	return Result{Blocked: true, RuleName: v.name, Reason: explanation}
}

// splitVerdict separates the leading BLOCK/ALLOW token from the justification.
func splitVerdict(reply string) (string, string) {
	if !strings.HasPrefix(reply, "BLOCK") {
		return "", reply
	}
	rest := strings.TrimPrefix(reply, "BLOCK")
	rest = strings.TrimLeft(rest, " :-\n\t")
	return "BLOCK", strings.TrimSpace(rest)
}
