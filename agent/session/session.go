package session

import (
	"context"
	"sync"
	"time"

	agentctx "github.com/BaSui01/agentdesk/agent/context"
	"github.com/BaSui01/agentdesk/agent/conversation"
	"github.com/BaSui01/agentdesk/agent/guardrails"
	"github.com/BaSui01/agentdesk/agent/handoff"
	"github.com/BaSui01/agentdesk/internal/ctxkeys"
	"github.com/BaSui01/agentdesk/llm"
	"github.com/BaSui01/agentdesk/llm/moderation"
	"github.com/BaSui01/agentdesk/llm/tokenizer"
	"github.com/BaSui01/agentdesk/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/BaSui01/agentdesk/agent/session"

// State 会话生命周期状态
type State string

const (
	StateNew    State = "new"
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// Options 构建会话所需的依赖。Agents 与 Rules 在会话生命周期内固定。
type Options struct {
	Config     Config
	Agents     []types.AgentSpec
	Rules      []types.GuardrailRule
	Provider   llm.Provider
	Moderation moderation.ModerationProvider // nil 表示关闭审核
	Store      *conversation.Store           // nil 时使用不持久化的内存存储
	Observer   Observer
	Logger     *zap.Logger
}

// Response 是 ProcessTurn 的结果，总是一段可展示的文本。
type Response struct {
	Author  string         `json:"author"`
	Content string         `json:"content"`
	Blocked bool           `json:"blocked,omitempty"`
	Method  handoff.Method `json:"method,omitempty"`
	Label   handoff.Label  `json:"label,omitempty"`
	Failure FailureKind    `json:"failure,omitempty"`
	TurnID  string         `json:"turn_id,omitempty"`
}

// Status 会话状态快照
type Status struct {
	Conversation      string     `json:"conversation"`
	State             State      `json:"state"`
	Agents            []string   `json:"agents"`
	TotalAgents       int        `json:"total_agents"`
	Turns             int        `json:"turns"`
	GuardrailRules    []string   `json:"guardrail_rules"`
	ModerationEnabled bool       `json:"moderation_enabled"`
	LastMessageAt     *time.Time `json:"last_message_at,omitempty"`
}

// Session 持有单个对话的运行时：安全闸门、审核、路由、生成与纠正。
// ProcessTurn 需由调用方按对话串行调用。
type Session struct {
	cfg         Config
	agents      []types.AgentSpec
	specialists []types.AgentSpec

	store        *conversation.Store
	gate         *guardrails.Gate
	moderator    *moderation.Moderator
	builder      *agentctx.Builder
	router       *handoff.Router
	classifier   *handoff.Classifier
	invoker      *handoff.Invoker
	orchestrator *handoff.Orchestrator

	observer Observer
	tracer   trace.Tracer
	logger   *zap.Logger

	mu          sync.Mutex
	state       State
	lastMessage time.Time
	inflight    sync.WaitGroup
}

// New validates the configuration and wires the components. Any error is a
// CONFIG_INVALID *types.Error and the session must not be used.
func New(opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config.withDefaults()

	if opts.Provider == nil {
		return nil, types.NewConfigError("generation provider is required")
	}
	agents, specialists, err := validateAgents(opts.Agents, cfg.TriageAgent)
	if err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		store = conversation.NewStore("default", nil, logger)
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	logger = logger.With(zap.String("component", "session"), zap.String("conversation", store.Key()))

	gate, err := guardrails.NewGate(opts.Rules, guardrails.GateConfig{
		Provider: opts.Provider,
		Model:    cfg.ClassifierModel,
		Timeout:  cfg.SemanticTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	builder := agentctx.NewBuilder(cfg.Context, tokenizer.ForModel(cfg.DefaultModel), logger)
	router, err := handoff.NewRouter(handoff.RouterConfig{
		Table:            cfg.Routing,
		TriageAgent:      cfg.TriageAgent,
		ContinuityWindow: cfg.ContinuityWindow,
	}, agents, builder, logger)
	if err != nil {
		return nil, err
	}

	triage, _ := router.Agent(cfg.TriageAgent)
	invoker := handoff.NewInvoker(opts.Provider, cfg.DefaultModel, logger)
	orchestrator, err := handoff.NewOrchestrator(invoker, triage, specialists, logger)
	if err != nil {
		return nil, err
	}

	return &Session{
		cfg:          cfg,
		agents:       agents,
		specialists:  specialists,
		store:        store,
		gate:         gate,
		moderator:    moderation.NewModerator(opts.Moderation, cfg.ModerationTimeout, logger),
		builder:      builder,
		router:       router,
		classifier:   handoff.NewClassifier(cfg.TriageAgent),
		invoker:      invoker,
		orchestrator: orchestrator,
		observer:     observer,
		tracer:       otel.Tracer(tracerName),
		logger:       logger,
		state:        StateNew,
	}, nil
}

// validateAgents 检查必填字段、重名、triage 存在且至少有一个专家。
func validateAgents(specs []types.AgentSpec, triage string) (all, specialists []types.AgentSpec, err error) {
	seen := make(map[string]bool, len(specs))
	hasTriage := false
	for _, a := range specs {
		if err := a.Validate(); err != nil {
			return nil, nil, err
		}
		if seen[a.Name] {
			return nil, nil, types.NewConfigError("duplicate agent name %q", a.Name)
		}
		seen[a.Name] = true
		all = append(all, a)
		if a.Name == triage {
			hasTriage = true
			continue
		}
		specialists = append(specialists, a)
	}
	if !hasTriage {
		return nil, nil, types.NewConfigError("triage agent %q is not configured", triage)
	}
	if len(specialists) == 0 {
		return nil, nil, types.NewConfigError("at least one specialist agent is required")
	}
	return all, specialists, nil
}

// =============================================================================
// 生命周期
// =============================================================================

// Open starts the session and restores history from the snapshot backend when
// the store is still empty. A failed restore is logged; the session opens anyway.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(ctx)
}

func (s *Session) openLocked(ctx context.Context) error {
	switch s.state {
	case StateOpen:
		return nil
	case StateClosed:
		return types.NewError(types.ErrSessionClosed, "session is closed")
	}
	if s.store.Len() == 0 {
		stats, err := s.store.Load(ctx)
		if err != nil {
			s.logger.Warn("failed to restore conversation, starting empty", zap.Error(err))
		} else if stats.Loaded > 0 || stats.Skipped > 0 {
			s.logger.Info("conversation restored",
				zap.Int("loaded", stats.Loaded),
				zap.Int("skipped", stats.Skipped))
		}
	}
	s.state = StateOpen
	s.logger.Info("session opened", zap.Int("agents", len(s.agents)))
	return nil
}

// Close stops accepting turns and waits for in-flight work to finish, or for
// ctx to expire. Closing twice is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("session close timed out with work in flight")
		return ctx.Err()
	}

	if err := s.store.Persist(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("final snapshot failed", zap.Error(err))
	}
	s.logger.Info("session closed")
	return nil
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// enter registers a turn as in-flight, opening the session lazily.
func (s *Session) enter(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.openLocked(ctx); err != nil {
		return false
	}
	s.inflight.Add(1)
	return true
}

// =============================================================================
// 对话
// =============================================================================

// Store returns the conversation store.
func (s *Session) Store() *conversation.Store { return s.store }

// Agents returns the agent specs fixed for this session.
func (s *Session) Agents() []types.AgentSpec {
	return append([]types.AgentSpec(nil), s.agents...)
}

// History returns the last limit turns, or all of them when limit <= 0.
func (s *Session) History(limit int) []types.Turn {
	if limit <= 0 {
		return s.store.All()
	}
	return s.store.Recent(limit)
}

// Clear empties the conversation and persists the empty snapshot.
func (s *Session) Clear(ctx context.Context) error {
	s.store.Clear()
	s.logger.Info("conversation cleared")
	return s.store.Persist(ctx)
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	state, last := s.state, s.lastMessage
	s.mu.Unlock()

	names := make([]string, len(s.agents))
	for i, a := range s.agents {
		names[i] = a.Name
	}
	st := Status{
		Conversation:      s.store.Key(),
		State:             state,
		Agents:            names,
		TotalAgents:       len(names),
		Turns:             s.store.Len(),
		GuardrailRules:    s.gate.Rules(),
		ModerationEnabled: s.moderator.Enabled(),
	}
	if !last.IsZero() {
		st.LastMessageAt = &last
	}
	return st
}

// ProcessTurn runs one user message through the whole pipeline. It never
// returns an error: blocks, generation failures and corrections all become a
// plain Response.
func (s *Session) ProcessTurn(ctx context.Context, text string) Response {
	if !s.enter(ctx) {
		return Response{Author: types.AuthorSystem, Content: MsgSessionClosed}
	}
	defer s.inflight.Done()

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "session.ProcessTurn",
		trace.WithAttributes(attribute.String("conversation", s.store.Key())))
	defer span.End()

	resp := s.processTurn(ctx, text, start)

	span.SetAttributes(
		attribute.String("author", resp.Author),
		attribute.String("method", string(resp.Method)),
		attribute.Bool("blocked", resp.Blocked))
	if resp.Failure != "" {
		span.SetStatus(codes.Error, string(resp.Failure))
	}
	s.observer.TurnProcessed(string(resp.Method), resp.Author, time.Since(start))

	s.mu.Lock()
	s.lastMessage = time.Now()
	s.mu.Unlock()
	return resp
}

func (s *Session) processTurn(ctx context.Context, text string, start time.Time) Response {
	if res := s.gate.Evaluate(ctx, text); res.Blocked {
		s.observer.MessageBlocked("guardrail", res.RuleName)
		return s.finish(ctx, types.SystemTurn(GuardrailNotice(res.RuleName, res.Reason)), Response{Blocked: true})
	}
	if res := s.moderator.Evaluate(ctx, text); res.Flagged {
		cats := flaggedCategories(res.Categories)
		s.observer.MessageBlocked("moderation", "moderation")
		return s.finish(ctx, types.SystemTurn(ModerationNotice(cats)), Response{Blocked: true})
	}

	s.store.Append(types.UserTurn(text))

	decision := s.router.Route(s.store, text)
	requestID, _ := ctxkeys.RequestID(ctx)
	s.logger.Info("turn routed",
		zap.String("request_id", requestID),
		zap.String("target", decision.Target),
		zap.String("method", string(decision.Method)),
		zap.String("category", decision.Category),
		zap.Int("payload_tokens", decision.Payload.Tokens))

	var (
		out handoff.Outcome
		err error
	)
	if decision.Method == handoff.MethodOrchestrated {
		out, err = s.orchestrate(ctx, decision.Payload.Text)
	} else {
		spec, _ := s.router.Agent(decision.Target)
		out, err = s.invoker.Invoke(ctx, spec, decision.Payload.Text)
	}
	if err != nil {
		return s.fail(ctx, err, decision.Method, start)
	}

	out, label, err := s.correct(ctx, out, text)
	if err != nil {
		return s.fail(ctx, err, decision.Method, start)
	}
	return s.finish(ctx, types.AssistantTurn(out.Author, out.Content, out.Model), Response{
		Method: decision.Method,
		Label:  label,
	})
}

// orchestrate 在独立 goroutine 中运行编排，整体受 OrchestrationTimeout 约束。
// 超时后丢弃结果；goroutine 计入 inflight，Close 会等待它退出。
func (s *Session) orchestrate(ctx context.Context, payload string) (handoff.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OrchestrationTimeout)
	defer cancel()

	type result struct {
		out handoff.Outcome
		err error
	}
	done := make(chan result, 1)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		out, err := s.orchestrator.Run(ctx, payload)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		return handoff.Outcome{}, ctx.Err()
	}
}

// correct 执行分类后的纠正动作。
func (s *Session) correct(ctx context.Context, out handoff.Outcome, text string) (handoff.Outcome, handoff.Label, error) {
	triage := s.router.Triage()
	if out.Author == triage && out.Content == "" {
		return handoff.Outcome{Author: triage, Content: MsgRephrase, Model: out.Model}, handoff.LabelNormal, nil
	}

	label := s.classifier.Classify(out.Author, out.Content)
	switch label {
	case handoff.LabelTextualHandoff:
		s.observer.ResponseCorrected(string(label))
		agent, category, ok := s.router.Match(out.Content)
		if !ok {
			s.logger.Warn("triage attempted a textual handoff without a known domain")
			return handoff.Outcome{Author: triage, Content: MsgRephrase, Model: out.Model}, label, nil
		}
		spec, _ := s.router.Agent(agent)
		s.logger.Info("correcting textual handoff with a direct handoff",
			zap.String("target", agent),
			zap.String("category", category))
		fixed, err := s.invoker.Invoke(ctx, spec, s.builder.Narrow(s.store, agent, text).Text)
		if err != nil {
			return fixed, label, err
		}
		// 被纠正后的专家回答只再分类一次，拒答同样回退到 triage
		if s.classifier.Classify(fixed.Author, fixed.Content) == handoff.LabelOutOfScope {
			return s.outOfScope(fixed.Author), handoff.LabelOutOfScope, nil
		}
		return fixed, label, nil

	case handoff.LabelOutOfScope:
		return s.outOfScope(out.Author), label, nil
	}
	return out, label, nil
}

// outOfScope 丢弃专家的拒答，换成 triage 署名的领域列表
func (s *Session) outOfScope(agent string) handoff.Outcome {
	s.observer.ResponseCorrected(string(handoff.LabelOutOfScope))
	s.logger.Info("specialist answered out of scope, falling back to triage", zap.String("agent", agent))
	return handoff.Outcome{Author: s.router.Triage(), Content: OutOfScopeMessage(s.specialists)}
}

func (s *Session) fail(ctx context.Context, err error, method handoff.Method, start time.Time) Response {
	kind := ClassifyFailure(err)
	s.logger.Error("generation failed",
		zap.String("kind", string(kind)),
		zap.String("method", string(method)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	s.observer.GenerationFailed(string(kind))
	return s.finish(ctx, types.SystemTurn(kind.Message()), Response{Method: method, Failure: kind})
}

// finish 追加结果轮次并保存快照。保存失败只记录日志，不影响返回。
func (s *Session) finish(ctx context.Context, turn types.Turn, resp Response) Response {
	s.store.Append(turn)
	if err := s.store.Persist(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("failed to persist conversation", zap.Error(err))
	}
	resp.Author = turn.Author
	resp.Content = turn.Content
	resp.TurnID = turn.ID
	return resp
}

func flaggedCategories(cats map[string]bool) []string {
	r := moderation.ModerationResult{Categories: cats}
	return r.FlaggedCategories()
}
