package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/BaSui01/agentdesk/agent/session"
	"github.com/BaSui01/agentdesk/api"
	"github.com/BaSui01/agentdesk/llm"
	"go.uber.org/zap"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// HealthHandler 健康检查处理器
type HealthHandler struct {
	logger  *zap.Logger
	timeout time.Duration
	mu      sync.RWMutex
	checks  []HealthCheck
}

// HealthCheck 健康检查接口
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status    string                 `json:"status"` // healthy / unhealthy
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status  string `json:"status"` // pass / fail
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger:  logger.With(zap.String("component", "health_handler")),
		timeout: 5 * time.Second,
	}
}

// RegisterCheck 注册就绪检查
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// Register 注册路由
func (h *HealthHandler) Register(mux *http.ServeMux, version, buildTime, gitCommit string) {
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /healthz", h.HandleHealth)
	mux.HandleFunc("GET /ready", h.HandleReady)
	mux.HandleFunc("GET /readyz", h.HandleReady)
	mux.HandleFunc("GET /version", h.HandleVersion(version, buildTime, gitCommit))
}

// HandleHealth 存活探针，只说明进程在运行
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{Status: "healthy", Timestamp: time.Now()})
}

// HandleReady 就绪探针，依次执行已注册的检查
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}
	for _, check := range checks {
		start := time.Now()
		err := check.Check(ctx)
		latency := time.Since(start)

		result := CheckResult{Status: "pass", Latency: latency.String()}
		if err != nil {
			result.Status = "fail"
			result.Message = err.Error()
			status.Status = "unhealthy"
			h.logger.Warn("health check failed",
				zap.String("check", check.Name()),
				zap.Error(err),
				zap.Duration("latency", latency))
		}
		status.Checks[check.Name()] = result
	}

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, status)
}

// HandleVersion 返回版本信息
// @Router /version [get]
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}

// =============================================================================
// 🔧 内置健康检查
// =============================================================================

// CheckFunc 把函数包装为 HealthCheck
type CheckFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewCheck 创建具名检查，例如快照存储的 Ping
func NewCheck(name string, fn func(ctx context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

func (c *CheckFunc) Name() string                    { return c.name }
func (c *CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// NewProviderCheck 用 Provider.HealthCheck 检查生成后端
func NewProviderCheck(p llm.Provider) *CheckFunc {
	return NewCheck("llm:"+p.Name(), func(ctx context.Context) error {
		_, err := p.HealthCheck(ctx)
		return err
	})
}

// =============================================================================
// 📊 系统状态 Handler
// =============================================================================

// StatusHandler 汇总全部对话的运行状态
type StatusHandler struct {
	conversations ConversationService
	logger        *zap.Logger
}

// NewStatusHandler 创建状态处理器
func NewStatusHandler(conversations ConversationService, logger *zap.Logger) *StatusHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusHandler{conversations: conversations, logger: logger.With(zap.String("component", "status_handler"))}
}

// Register 注册路由
func (h *StatusHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/status", h.HandleStatus)
}

// HandleStatus 返回系统状态。default 对话决定 Agent 与规则信息，
// 最后消息时间取所有对话中最新的一条。
// @Router /api/v1/status [get]
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := api.StatusResponse{Status: "inactive", Conversations: h.conversations.Conversations()}

	def, err := h.conversations.Session(r.Context(), session.DefaultConversation)
	if err != nil {
		// 管理器已关闭时仍返回 inactive 状态
		h.logger.Debug("default conversation unavailable", zap.Error(err))
		WriteSuccess(w, resp)
		return
	}
	st := def.Status()
	resp.TotalAgents = st.TotalAgents
	resp.Agents = st.Agents
	resp.GuardrailRules = st.GuardrailRules
	resp.ModerationEnabled = st.ModerationEnabled
	resp.RuntimeOpen = st.State == session.StateOpen
	if resp.RuntimeOpen {
		resp.Status = "active"
	}

	for _, id := range resp.Conversations {
		s, err := h.conversations.Session(r.Context(), id)
		if err != nil {
			continue
		}
		if last := s.Status().LastMessageAt; last != nil && (resp.LastMessageAt == nil || last.After(*resp.LastMessageAt)) {
			resp.LastMessageAt = last
		}
	}
	WriteSuccess(w, resp)
}
