package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/BaSui01/agentdesk/types"
	"go.uber.org/zap"
)

// MaxAgents 是 Agent 总数上限（含 triage）
const MaxAgents = 10

// ApplyFunc 在新的 Agent/规则集合生效前调用，返回错误时变更被放弃。
type ApplyFunc func(ctx context.Context, agents []types.AgentSpec, rules []types.GuardrailRule) error

// =============================================================================
// JSON 文件读写
// =============================================================================

// LoadAgents reads a JSON list of agents and validates each record and name
// uniqueness. A missing file is an error.
func LoadAgents(path string) ([]types.AgentSpec, error) {
	var agents []types.AgentSpec
	if err := readJSON(path, &agents); err != nil {
		return nil, err
	}
	if err := validateAgentList(agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// SaveAgents writes agents as an indented JSON list.
func SaveAgents(path string, agents []types.AgentSpec) error {
	if err := validateAgentList(agents); err != nil {
		return err
	}
	return writeJSON(path, agents)
}

// LoadGuardrails reads a JSON list of guardrail rules. A missing file means no rules.
func LoadGuardrails(path string) ([]types.GuardrailRule, error) {
	var rules []types.GuardrailRule
	if err := readJSON(path, &rules); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []types.GuardrailRule{}, nil
		}
		return nil, err
	}
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("guardrail %d: %w", i, err)
		}
	}
	if rules == nil {
		rules = []types.GuardrailRule{}
	}
	return rules, nil
}

// SaveGuardrails writes rules as an indented JSON list.
func SaveGuardrails(path string, rules []types.GuardrailRule) error {
	return writeJSON(path, rules)
}

func validateAgentList(agents []types.AgentSpec) error {
	seen := make(map[string]bool, len(agents))
	for i, a := range agents {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("agent %d: %w", i, err)
		}
		if seen[a.Name] {
			return types.NewConfigError("duplicate agent name %q", a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return types.NewConfigError("parse %s: %v", path, err).WithCause(err)
	}
	return nil
}

// writeJSON 先写临时文件再 rename，避免读到半个文件
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// =============================================================================
// AgentCatalog
// =============================================================================

// AgentCatalog 持有当前生效的 Agent 与安全规则，提供带校验的增删改。
// 每次变更先交给 ApplyFunc（通常是重建会话），成功后才写回 JSON 文件。
type AgentCatalog struct {
	agentsPath     string
	guardrailsPath string
	triage         string
	logger         *zap.Logger

	mu     sync.RWMutex
	agents []types.AgentSpec
	rules  []types.GuardrailRule
	apply  ApplyFunc
}

// NewAgentCatalog loads both files. The triage agent must be present.
func NewAgentCatalog(cfg AgentsConfig, triage string, logger *zap.Logger) (*AgentCatalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &AgentCatalog{
		agentsPath:     cfg.AgentsFile,
		guardrailsPath: cfg.GuardrailsFile,
		triage:         triage,
		logger:         logger.With(zap.String("component", "agent_catalog")),
	}
	agents, rules, err := c.load()
	if err != nil {
		return nil, err
	}
	c.agents, c.rules = agents, rules
	c.logger.Info("agent catalog loaded",
		zap.Int("agents", len(agents)),
		zap.Int("guardrails", len(rules)))
	return c, nil
}

func (c *AgentCatalog) load() ([]types.AgentSpec, []types.GuardrailRule, error) {
	agents, err := LoadAgents(c.agentsPath)
	if err != nil {
		return nil, nil, err
	}
	if !containsAgent(agents, c.triage) {
		return nil, nil, types.NewConfigError("triage agent %q missing from %s", c.triage, c.agentsPath)
	}
	if len(agents) > MaxAgents {
		return nil, nil, types.NewConfigError("%s declares %d agents, limit is %d", c.agentsPath, len(agents), MaxAgents)
	}
	rules, err := LoadGuardrails(c.guardrailsPath)
	if err != nil {
		return nil, nil, err
	}
	return agents, rules, nil
}

// SetApplier registers the hook run before every change takes effect.
func (c *AgentCatalog) SetApplier(fn ApplyFunc) {
	c.mu.Lock()
	c.apply = fn
	c.mu.Unlock()
}

// Paths returns the watched file paths.
func (c *AgentCatalog) Paths() []string {
	return []string{c.agentsPath, c.guardrailsPath}
}

// Agents returns a copy of the current agents.
func (c *AgentCatalog) Agents() []types.AgentSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]types.AgentSpec(nil), c.agents...)
}

// Rules returns a copy of the current guardrail rules.
func (c *AgentCatalog) Rules() []types.GuardrailRule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]types.GuardrailRule(nil), c.rules...)
}

// Get returns one agent by name.
func (c *AgentCatalog) Get(name string) (types.AgentSpec, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := indexOf(c.agents, name); i >= 0 {
		return c.agents[i], nil
	}
	return types.AgentSpec{}, notFound(name)
}

// Create adds an agent.
func (c *AgentCatalog) Create(ctx context.Context, spec types.AgentSpec) (types.AgentSpec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := spec.Validate(); err != nil {
		return types.AgentSpec{}, err
	}
	if indexOf(c.agents, spec.Name) >= 0 {
		return types.AgentSpec{}, types.NewError(types.ErrAgentExists, fmt.Sprintf("agent %q already exists", spec.Name)).WithHTTPStatus(409)
	}
	if len(c.agents) >= MaxAgents {
		return types.AgentSpec{}, types.NewError(types.ErrAgentLimit, fmt.Sprintf("maximum number of agents reached (%d)", MaxAgents)).WithHTTPStatus(422)
	}

	next := append(append([]types.AgentSpec(nil), c.agents...), spec)
	if err := c.commitLocked(ctx, next); err != nil {
		return types.AgentSpec{}, err
	}
	c.logger.Info("agent created", zap.String("agent", spec.Name))
	return spec, nil
}

// Update replaces the agent called name. An empty spec.Name keeps the name.
// The triage agent cannot be renamed.
func (c *AgentCatalog) Update(ctx context.Context, name string, spec types.AgentSpec) (types.AgentSpec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := indexOf(c.agents, name)
	if i < 0 {
		return types.AgentSpec{}, notFound(name)
	}
	if spec.Name == "" {
		spec.Name = name
	}
	if err := spec.Validate(); err != nil {
		return types.AgentSpec{}, err
	}
	if spec.Name != name {
		if name == c.triage {
			return types.AgentSpec{}, protected("renamed")
		}
		if indexOf(c.agents, spec.Name) >= 0 {
			return types.AgentSpec{}, types.NewError(types.ErrAgentExists, fmt.Sprintf("agent %q already exists", spec.Name)).WithHTTPStatus(409)
		}
	}

	next := append([]types.AgentSpec(nil), c.agents...)
	next[i] = spec
	if err := c.commitLocked(ctx, next); err != nil {
		return types.AgentSpec{}, err
	}
	c.logger.Info("agent updated", zap.String("agent", name), zap.String("name", spec.Name))
	return spec, nil
}

// Delete removes an agent. The triage agent cannot be removed.
func (c *AgentCatalog) Delete(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == c.triage {
		return protected("removed")
	}
	i := indexOf(c.agents, name)
	if i < 0 {
		return notFound(name)
	}
	next := append(append([]types.AgentSpec(nil), c.agents[:i]...), c.agents[i+1:]...)
	if err := c.commitLocked(ctx, next); err != nil {
		return err
	}
	c.logger.Info("agent deleted", zap.String("agent", name))
	return nil
}

// Reload re-reads both files and applies them when they differ from the
// current state. Invalid files are rejected and the current state kept.
func (c *AgentCatalog) Reload(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	agents, rules, err := c.load()
	if err != nil {
		return false, err
	}
	if reflect.DeepEqual(agents, c.agents) && reflect.DeepEqual(rules, c.rules) {
		return false, nil
	}
	if c.apply != nil {
		if err := c.apply(ctx, agents, rules); err != nil {
			return false, err
		}
	}
	c.agents, c.rules = agents, rules
	c.logger.Info("agent catalog reloaded",
		zap.Int("agents", len(agents)),
		zap.Int("guardrails", len(rules)))
	return true, nil
}

func (c *AgentCatalog) commitLocked(ctx context.Context, next []types.AgentSpec) error {
	if c.apply != nil {
		if err := c.apply(ctx, next, c.rules); err != nil {
			return err
		}
	}
	// 已生效的变更不回滚，写文件失败只报告
	c.agents = next
	if err := SaveAgents(c.agentsPath, next); err != nil {
		return types.NewError(types.ErrPersistence, "save agents file").WithCause(err)
	}
	return nil
}

func indexOf(agents []types.AgentSpec, name string) int {
	for i, a := range agents {
		if a.Name == name {
			return i
		}
	}
	return -1
}

func containsAgent(agents []types.AgentSpec, name string) bool {
	return indexOf(agents, name) >= 0
}

func notFound(name string) error {
	return types.NewError(types.ErrAgentNotFound, fmt.Sprintf("agent %q not found", name)).WithHTTPStatus(404)
}

func protected(action string) error {
	return types.NewError(types.ErrAgentProtected, "the triage agent cannot be "+action).WithHTTPStatus(403)
}
