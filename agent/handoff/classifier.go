package handoff

import "strings"

// Label 是生成结果的分类
type Label string

const (
	LabelNormal         Label = "normal"
	LabelTextualHandoff Label = "textual_handoff_attempt"
	LabelOutOfScope     Label = "out_of_scope"
)

// Classifier 在生成之后检查输出：triage 的文字转交与专家的越界拒答。
type Classifier struct {
	triage  string
	handoff []string
	refusal []string
}

// NewClassifier creates a classifier with the default phrase tables.
func NewClassifier(triage string) *Classifier {
	return NewClassifierWithPhrases(triage, HandoffPhrases, RefusalPhrases)
}

// NewClassifierWithPhrases creates a classifier with custom phrase tables.
func NewClassifierWithPhrases(triage string, handoff, refusal []string) *Classifier {
	lower := func(in []string) []string {
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = normalize(s)
		}
		return out
	}
	return &Classifier{triage: triage, handoff: lower(handoff), refusal: lower(refusal)}
}

// Classify labels content produced by author.
func (c *Classifier) Classify(author, content string) Label {
	lower := normalize(content)
	if author == c.triage {
		if containsAny(lower, c.handoff) {
			return LabelTextualHandoff
		}
		return LabelNormal
	}
	if author != "" && containsAny(lower, c.refusal) {
		return LabelOutOfScope
	}
	return LabelNormal
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
