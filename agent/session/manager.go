package session

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/BaSui01/agentdesk/agent/conversation"
	"github.com/BaSui01/agentdesk/agent/handoff"
	"github.com/BaSui01/agentdesk/agent/persistence"
	"github.com/BaSui01/agentdesk/types"
	"go.uber.org/zap"
)

// DefaultConversation 是未指定对话 ID 时使用的对话
const DefaultConversation = "default"

// Manager 按对话 ID 管理会话。每个对话有自己的快照 key，并在这里按对话串行化
// ProcessTurn。Agent 或安全规则变化时 Rebuild 重建全部会话，历史保留。
type Manager struct {
	backend conversation.SnapshotStore
	logger  *zap.Logger

	mu       sync.RWMutex
	closed   bool
	template Options
	// routing 是启动时配置的完整路由表，Rebuild 时按现有 Agent 裁剪
	routing  handoff.RoutingTable
	sessions map[string]*Session
	turnLock map[string]*sync.Mutex
}

// NewManager validates opts by building the default conversation. opts.Store
// is ignored; stores are created per conversation over backend.
func NewManager(ctx context.Context, opts Options, backend conversation.SnapshotStore) (*Manager, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		backend:  backend,
		logger:   logger.With(zap.String("component", "session_manager")),
		template: opts,
		routing:  opts.Config.withDefaults().Routing,
		sessions: make(map[string]*Session),
		turnLock: make(map[string]*sync.Mutex),
	}
	if _, err := m.Session(ctx, DefaultConversation); err != nil {
		return nil, err
	}
	return m, nil
}

// Session returns the open session for id, creating and restoring it on first use.
func (m *Manager) Session(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		id = DefaultConversation
	}
	if err := persistence.ValidateKey(id); err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "invalid conversation id").WithCause(err).WithHTTPStatus(400)
	}

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, types.NewError(types.ErrSessionClosed, "session manager is closed")
	}
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s, err := m.build(m.template, conversation.NewStore(id, m.backend, m.template.Logger))
	if err != nil {
		return nil, err
	}
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	m.sessions[id] = s
	m.turnLock[id] = &sync.Mutex{}
	m.reportActiveLocked()
	return s, nil
}

// conversationGauge 由需要活跃对话数的 Observer 实现
type conversationGauge interface {
	SetActiveConversations(n int)
}

func (m *Manager) reportActiveLocked() {
	if g, ok := m.template.Observer.(conversationGauge); ok {
		g.SetActiveConversations(len(m.sessions))
	}
}

func (m *Manager) build(opts Options, store *conversation.Store) (*Session, error) {
	opts.Store = store
	return New(opts)
}

// ProcessTurn serializes turns per conversation and runs one through its session.
func (m *Manager) ProcessTurn(ctx context.Context, id, text string) (Response, error) {
	s, err := m.Session(ctx, id)
	if err != nil {
		return Response{}, err
	}
	unlock := m.lockTurn(s)
	defer unlock()
	// 等锁期间可能发生了 Rebuild，取最新的会话
	if cur, err := m.Session(ctx, id); err == nil {
		s = cur
	}
	return s.ProcessTurn(ctx, text), nil
}

// Clear empties the conversation's history. It waits for an in-flight turn
// on the same conversation, so a turn never persists over a clear.
func (m *Manager) Clear(ctx context.Context, id string) error {
	s, err := m.Session(ctx, id)
	if err != nil {
		return err
	}
	unlock := m.lockTurn(s)
	defer unlock()
	if cur, err := m.Session(ctx, id); err == nil {
		s = cur
	}
	return s.Clear(ctx)
}

func (m *Manager) lockTurn(s *Session) func() {
	m.mu.RLock()
	lock := m.turnLock[s.Store().Key()]
	m.mu.RUnlock()
	lock.Lock()
	return lock.Unlock
}

// Agents returns the agent specs currently in effect.
func (m *Manager) Agents() []types.AgentSpec {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.AgentSpec(nil), m.template.Agents...)
}

// Rules returns the guardrail rules currently in effect.
func (m *Manager) Rules() []types.GuardrailRule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.GuardrailRule(nil), m.template.Rules...)
}

// Conversations returns the ids of live sessions, sorted.
func (m *Manager) Conversations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Rebuild replaces every session with one built from the new agents and rules.
// Stores are carried over so history is preserved. If any session fails to
// build, nothing is replaced. Old sessions are closed with drain.
func (m *Manager) Rebuild(ctx context.Context, agents []types.AgentSpec, rules []types.GuardrailRule) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return types.NewError(types.ErrSessionClosed, "session manager is closed")
	}
	next := m.template
	next.Agents = agents
	next.Rules = rules
	next.Config.Routing = m.restrictRouting(agents)

	fresh := make(map[string]*Session, len(m.sessions))
	for id, old := range m.sessions {
		s, err := m.build(next, old.Store())
		if err != nil {
			m.mu.Unlock()
			return err
		}
		fresh[id] = s
	}
	if len(fresh) == 0 {
		if _, err := m.build(next, nil); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	for _, s := range fresh {
		if err := s.Open(ctx); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	old := m.sessions
	m.sessions = fresh
	m.template = next
	m.mu.Unlock()

	m.logger.Info("sessions rebuilt", zap.Int("sessions", len(fresh)), zap.Int("agents", len(agents)))
	return closeAll(ctx, old)
}

// restrictRouting 去掉指向已删除 Agent 的路由。Agent 重新加入后路由随之恢复。
func (m *Manager) restrictRouting(agents []types.AgentSpec) handoff.RoutingTable {
	registered := make(map[string]bool, len(agents))
	for _, a := range agents {
		registered[a.Name] = true
	}
	table, dropped := m.routing.Restrict(registered)
	if len(dropped) > 0 {
		m.logger.Warn("routes dropped, target agent not registered", zap.Strings("routes", dropped))
	}
	return table
}

// Close closes every session with drain.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	old := m.sessions
	m.sessions = make(map[string]*Session)
	m.reportActiveLocked()
	m.mu.Unlock()
	return closeAll(ctx, old)
}

func closeAll(ctx context.Context, sessions map[string]*Session) error {
	var errs []error
	for _, s := range sessions {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
