package types

import (
	"fmt"
	"strings"
)

// AgentSpec 描述一个 Agent。会话生命周期内视为不可变，修改需重建会话。
type AgentSpec struct {
	Name         string   `json:"name" yaml:"name"`
	Description  string   `json:"description" yaml:"description"`
	Instructions string   `json:"instructions" yaml:"instructions"`
	Model        string   `json:"model,omitempty" yaml:"model,omitempty"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// MaxAgentNameLength bounds AgentSpec.Name.
const MaxAgentNameLength = 50

// Validate checks required fields.
func (a AgentSpec) Validate() error {
	name := strings.TrimSpace(a.Name)
	switch {
	case name == "":
		return NewConfigError("agent name is required")
	case len(name) > MaxAgentNameLength:
		return NewConfigError("agent name %q exceeds %d characters", name, MaxAgentNameLength)
	case strings.TrimSpace(a.Description) == "":
		return NewConfigError("agent %q: description is required", name)
	case strings.TrimSpace(a.Instructions) == "":
		return NewConfigError("agent %q: instructions are required", name)
	}
	return nil
}

// RuleType 安全规则类型
type RuleType string

const (
	RuleKeyword  RuleType = "keyword"
	RuleSemantic RuleType = "semantic"
)

// GuardrailRule 是一条安全规则。按声明顺序评估，首个命中即拦截。
type GuardrailRule struct {
	Name              string   `json:"name" yaml:"name"`
	Type              RuleType `json:"type" yaml:"type"`
	Enabled           *bool    `json:"enabled" yaml:"enabled"`
	Keywords          []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	PolicyDescription string   `json:"policy_description,omitempty" yaml:"policy_description,omitempty"`
}

// IsEnabled returns the enabled flag; an absent flag reads as disabled.
func (r GuardrailRule) IsEnabled() bool {
	return r.Enabled != nil && *r.Enabled
}

// Validate checks required fields for the rule type.
func (r GuardrailRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return NewConfigError("guardrail name is required")
	}
	if r.Enabled == nil {
		return NewConfigError("guardrail %q: enabled is required", r.Name)
	}
	switch r.Type {
	case RuleKeyword:
		if len(r.Keywords) == 0 {
			return NewConfigError("guardrail %q: keyword rule needs keywords", r.Name)
		}
	case RuleSemantic:
		if strings.TrimSpace(r.PolicyDescription) == "" {
			return NewConfigError("guardrail %q: semantic rule needs policy_description", r.Name)
		}
	default:
		return NewConfigError("guardrail %q: unknown type %q", r.Name, r.Type)
	}
	return nil
}

// Bool returns a pointer to b. Handy for GuardrailRule.Enabled literals.
func Bool(b bool) *bool { return &b }

// String implements fmt.Stringer for log output.
func (r GuardrailRule) String() string {
	return fmt.Sprintf("%s(%s)", r.Name, r.Type)
}
