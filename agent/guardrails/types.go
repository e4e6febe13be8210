package guardrails

import "context"

// Result 是闸门的评估结果
type Result struct {
	Blocked  bool   `json:"blocked"`
	RuleName string `json:"rule_name,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Allow is the zero-value pass result.
var Allow = Result{}

// Validator 是编译后的单条规则
type Validator interface {
	// Check 返回 Blocked=true 表示命中。实现自行吞掉内部错误（fail open）。
	Check(ctx context.Context, text string) Result
	// Name 返回规则名称
	Name() string
}
