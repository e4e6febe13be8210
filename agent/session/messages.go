package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BaSui01/agentdesk/llm"
	"github.com/BaSui01/agentdesk/types"
)

// 面向用户的固定文案
const (
	MsgSessionClosed = "This conversation session is closed. Please start a new one."
	MsgRephrase      = "🔄 There was a routing problem with your request. Please rephrase your question."

	msgGuardrailBlocked  = "⛔ Your message was blocked by safety rules (%s): %s"
	msgModerationBlocked = "⚠️ Sensitive content detected (%s). The message was blocked."
)

// GuardrailNotice renders the system notice for a guardrail block.
func GuardrailNotice(rule, reason string) string {
	return fmt.Sprintf(msgGuardrailBlocked, rule, reason)
}

// ModerationNotice renders the system notice for a moderation block.
func ModerationNotice(categories []string) string {
	if len(categories) == 0 {
		categories = []string{"unspecified"}
	}
	return fmt.Sprintf(msgModerationBlocked, strings.Join(categories, ", "))
}

// OutOfScopeMessage 是专家越界拒答后由 triage 给出的兜底回复，列出可用领域。
func OutOfScopeMessage(specialists []types.AgentSpec) string {
	var sb strings.Builder
	sb.WriteString("I'm sorry, that request is outside what our specialists can help with. I can help you with:\n")
	for _, s := range specialists {
		fmt.Fprintf(&sb, "- %s\n", s.Description)
	}
	sb.WriteString("Please rephrase your request within one of these areas.")
	return sb.String()
}

// =============================================================================
// 生成失败分类
// =============================================================================

// FailureKind 生成失败类别
type FailureKind string

const (
	FailureTimeout         FailureKind = "timeout"
	FailureAPIKey          FailureKind = "api_key"
	FailureModelNotFound   FailureKind = "model_not_found"
	FailureRateLimit       FailureKind = "rate_limit"
	FailureMalformedOutput FailureKind = "malformed_output"
	FailureGeneric         FailureKind = "generic"
)

// Message returns the user-facing text for the failure.
func (k FailureKind) Message() string {
	switch k {
	case FailureTimeout:
		return "⏰ Timeout: processing took too long. Please try again."
	case FailureAPIKey:
		return "🔑 The language model rejected our credentials. Please check the API key configuration."
	case FailureModelNotFound:
		return "❌ The configured language model is not available. Please check the model configuration."
	case FailureRateLimit:
		return "⏳ The language model is busy or out of quota. Please wait a moment and try again."
	case FailureMalformedOutput:
		return "🔄 The system detected an overload. Please try asking your question in a simpler way."
	default:
		return "❌ Sorry, something went wrong while processing your message. Please try again."
	}
}

// ClassifyFailure 依次按 llm.Error 错误码、types.Error 错误码、ctx 超时、
// 错误文本启发式归类。
func ClassifyFailure(err error) FailureKind {
	var le *llm.Error
	if errors.As(err, &le) {
		switch le.Code {
		case llm.ErrUnauthorized, llm.ErrForbidden:
			return FailureAPIKey
		case llm.ErrModelNotFound:
			return FailureModelNotFound
		case llm.ErrRateLimited, llm.ErrQuotaExceeded, llm.ErrModelOverloaded:
			return FailureRateLimit
		case llm.ErrUpstreamTimeout:
			return FailureTimeout
		case llm.ErrMalformedOutput:
			return FailureMalformedOutput
		}
	}

	switch types.GetErrorCode(err) {
	case types.ErrUnauthorized, types.ErrAuthentication, types.ErrForbidden:
		return FailureAPIKey
	case types.ErrModelNotFound:
		return FailureModelNotFound
	case types.ErrRateLimit, types.ErrQuotaExceeded:
		return FailureRateLimit
	case types.ErrTimeout, types.ErrUpstreamTimeout:
		return FailureTimeout
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "api key", "api_key", "invalid_api_key", "unauthorized"):
		return FailureAPIKey
	case containsAny(msg, "model_not_found", "model not found", "does not exist"):
		return FailureModelNotFound
	case containsAny(msg, "quota", "rate limit", "rate_limit", "too many requests"):
		return FailureRateLimit
	case containsAny(msg, "model_error", "invalid content"):
		return FailureMalformedOutput
	case containsAny(msg, "timeout", "timed out"):
		return FailureTimeout
	}
	return FailureGeneric
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
