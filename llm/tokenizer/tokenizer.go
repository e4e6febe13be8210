package tokenizer

import "strings"

// Tokenizer 是统一的 token 计数接口.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// MaxTokens 返回模型的最大上下文长度.
	MaxTokens() int

	// Name 返回分词器的名称.
	Name() string
}

// ForModel returns a tiktoken tokenizer for OpenAI-family models and the
// estimator for anything else. The tiktoken encoding is loaded lazily.
func ForModel(model string) Tokenizer {
	if _, ok := lookupEncoding(model); ok {
		return NewTiktokenTokenizer(model)
	}
	return NewEstimatorTokenizer(model, 0)
}

// Count counts tokens with t and falls back to the estimator when t fails,
// e.g. when the tiktoken encoding cannot be downloaded.
func Count(t Tokenizer, text string) int {
	if t != nil {
		if n, err := t.CountTokens(text); err == nil {
			return n
		}
	}
	n, _ := NewEstimatorTokenizer("", 0).CountTokens(text)
	return n
}

// lookupEncoding 精确匹配后尝试前缀匹配(如"gpt-4o-mini-2024"匹配"gpt-4o-mini").
func lookupEncoding(model string) (encodingInfo, bool) {
	if info, ok := modelEncodings[model]; ok {
		return info, true
	}
	best := ""
	for prefix := range modelEncodings {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return encodingInfo{}, false
	}
	return modelEncodings[best], true
}
