package guardrails

import (
	"context"
	"time"

	"github.com/BaSui01/agentdesk/llm"
	"github.com/BaSui01/agentdesk/types"
	"go.uber.org/zap"
)

// GateConfig configures semantic classification.
type GateConfig struct {
	// Provider backs semantic rules. Nil disables them (they allow).
	Provider llm.Provider
	// Model used for classification; empty means the provider default.
	Model string
	// Timeout per semantic call. Zero means no extra bound.
	Timeout time.Duration
}

// Gate evaluates enabled rules in declaration order, stopping at the first block.
type Gate struct {
	validators []Validator
	logger     *zap.Logger
}

// NewGate compiles rules into validators. Disabled rules are dropped here,
// so the order of the remaining ones is the declaration order.
func NewGate(rules []types.GuardrailRule, cfg GateConfig, logger *zap.Logger) (*Gate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "guardrails"))

	g := &Gate{logger: logger}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if !r.IsEnabled() {
			continue
		}
		switch r.Type {
		case types.RuleKeyword:
			g.validators = append(g.validators, NewKeywordValidator(r.Name, r.Keywords))
		case types.RuleSemantic:
			g.validators = append(g.validators, NewSemanticValidator(r.Name, r.PolicyDescription, cfg.Provider, cfg.Model, cfg.Timeout, logger))
		}
	}
	return g, nil
}

// NewGateWithValidators builds a gate from pre-built validators.
func NewGateWithValidators(logger *zap.Logger, validators ...Validator) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{validators: validators, logger: logger.With(zap.String("component", "guardrails"))}
}

// Rules returns the active rule names in evaluation order.
func (g *Gate) Rules() []string {
	names := make([]string, len(g.validators))
	for i, v := range g.validators {
		names[i] = v.Name()
	}
	return names
}

// Evaluate runs the validators in order and returns the first block.
func (g *Gate) Evaluate(ctx context.Context, text string) Result {
	for _, v := range g.validators {
		res := v.Check(ctx, text)
		if res.Blocked {
			g.logger.Warn("message blocked by guardrail",
				zap.String("rule", res.RuleName),
				zap.String("reason", res.Reason))
			return res
		}
	}
	return Allow
}
