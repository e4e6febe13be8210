package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role 表示消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Title returns the capitalised role name used when rendering history.
func (r Role) Title() string {
	s := string(r)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Author sentinels. Assistant turns carry the agent name instead.
const (
	AuthorSystem = "system"
	AuthorUser   = "user"
)

// Turn 是对话中的一条消息。追加到存储后不再修改，顺序只由插入顺序决定。
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ModelID   string    `json:"model_id,omitempty"`
}

// NewTurn builds a turn with a fresh id and the current time.
func NewTurn(role Role, author, content string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Author:    author,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// UserTurn builds a user-authored turn.
func UserTurn(content string) Turn {
	return NewTurn(RoleUser, AuthorUser, content)
}

// SystemTurn builds a system-authored turn.
func SystemTurn(content string) Turn {
	return NewTurn(RoleSystem, AuthorSystem, content)
}

// AssistantTurn builds an assistant turn authored by the named agent.
func AssistantTurn(agent, content, model string) Turn {
	t := NewTurn(RoleAssistant, agent, content)
	t.ModelID = model
	return t
}

// Validate checks the fields required for a turn restored from storage.
func (t Turn) Validate() error {
	if !t.Role.Valid() {
		return fmt.Errorf("invalid role %q", t.Role)
	}
	if t.Author == "" {
		return fmt.Errorf("turn author is empty")
	}
	return nil
}
