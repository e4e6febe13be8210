package guardrails

import (
	"context"
	"fmt"
	"strings"
)

// KeywordValidator blocks text containing any keyword, case-insensitively.
type KeywordValidator struct {
	name     string
	keywords []string // lower-cased
}

// NewKeywordValidator creates a keyword validator. Empty keywords are ignored.
func NewKeywordValidator(name string, keywords []string) *KeywordValidator {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			kw = append(kw, k)
		}
	}
	return &KeywordValidator{name: name, keywords: kw}
}

func (v *KeywordValidator) Name() string { return v.name }

func (v *KeywordValidator) Check(_ context.Context, text string) Result {
	lower := strings.ToLower(text)
	for _, k := range v.keywords {
		if strings.Contains(lower, k) {
			return Result{
				Blocked:  true,
				RuleName: v.name,
				Reason:   fmt.Sprintf("contains forbidden term %q", k),
			}
		}
	}
	return Allow
}
