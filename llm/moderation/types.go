package moderation

import (
	"context"
	"sort"
	"time"
)

// ModerationProvider defines the interface for a moderation backend.
type ModerationProvider interface {
	Name() string
	Moderate(ctx context.Context, req *ModerationRequest) (*ModerationResponse, error)
}

// ModerationRequest represents a moderation request.
type ModerationRequest struct {
	Input []string `json:"input"`           // Text inputs to moderate
	Model string   `json:"model,omitempty"` // Model to use
}

// ModerationResponse represents a moderation response.
type ModerationResponse struct {
	Provider  string             `json:"provider"`
	Model     string             `json:"model"`
	Results   []ModerationResult `json:"results"`
	CreatedAt time.Time          `json:"created_at"`
}

// ModerationResult represents the raw result for a single input. Category
// names are kept as the backend reports them ("hate/threatening", ...).
type ModerationResult struct {
	Flagged    bool               `json:"flagged"`
	Categories map[string]bool    `json:"categories"`
	Scores     map[string]float64 `json:"scores"`
}

// TopScore returns the highest confidence score across all categories.
func (r ModerationResult) TopScore() float64 {
	top := 0.0
	for _, s := range r.Scores {
		if s > top {
			top = s
		}
	}
	return top
}

// FlaggedCategories returns the sorted names of categories marked true.
func (r ModerationResult) FlaggedCategories() []string {
	var out []string
	for name, hit := range r.Categories {
		if hit {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
