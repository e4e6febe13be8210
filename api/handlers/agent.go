package handlers

import (
	"context"
	"net/http"

	"github.com/BaSui01/agentdesk/api"
	"github.com/BaSui01/agentdesk/config"
	"github.com/BaSui01/agentdesk/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🤖 Agent 配置 Handler
// =============================================================================

// AgentCatalog Agent 配置的增删改查，由 config.AgentCatalog 实现。
// 每次变更都会先重建会话，再写回 JSON 文件。
type AgentCatalog interface {
	Agents() []types.AgentSpec
	Get(name string) (types.AgentSpec, error)
	Create(ctx context.Context, spec types.AgentSpec) (types.AgentSpec, error)
	Update(ctx context.Context, name string, spec types.AgentSpec) (types.AgentSpec, error)
	Delete(ctx context.Context, name string) error
}

var _ AgentCatalog = (*config.AgentCatalog)(nil)

// AgentHandler Agent 配置处理器
type AgentHandler struct {
	catalog AgentCatalog
	logger  *zap.Logger
}

// NewAgentHandler 创建 Agent 配置处理器
func NewAgentHandler(catalog AgentCatalog, logger *zap.Logger) *AgentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentHandler{
		catalog: catalog,
		logger:  logger.With(zap.String("component", "agent_handler")),
	}
}

// Register 注册路由
func (h *AgentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/agents", h.HandleList)
	mux.HandleFunc("POST /api/v1/agents", h.HandleCreate)
	mux.HandleFunc("GET /api/v1/agents/{name}", h.HandleGet)
	mux.HandleFunc("PUT /api/v1/agents/{name}", h.HandleUpdate)
	mux.HandleFunc("DELETE /api/v1/agents/{name}", h.HandleDelete)
}

// HandleList 列出全部 Agent
// @Router /api/v1/agents [get]
func (h *AgentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	agents := h.catalog.Agents()
	WriteSuccess(w, api.AgentListResponse{Agents: agents, Total: len(agents), Max: config.MaxAgents})
}

// HandleGet 按名称查询
// @Router /api/v1/agents/{name} [get]
func (h *AgentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	spec, err := h.catalog.Get(r.PathValue("name"))
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	WriteSuccess(w, spec)
}

// HandleCreate 创建 Agent
// @Router /api/v1/agents [post]
func (h *AgentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	spec, err := h.catalog.Create(r.Context(), req.Spec())
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	WriteSuccessStatus(w, http.StatusCreated, spec)
}

// HandleUpdate 更新 Agent，body 中 name 为空时保持原名
// @Router /api/v1/agents/{name} [put]
func (h *AgentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	spec, err := h.catalog.Update(r.Context(), r.PathValue("name"), req.Spec())
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	WriteSuccess(w, spec)
}

// HandleDelete 删除 Agent，triage Agent 不可删除
// @Router /api/v1/agents/{name} [delete]
func (h *AgentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.catalog.Delete(r.Context(), name); err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"name": name, "status": "deleted"})
}

func (h *AgentHandler) decode(w http.ResponseWriter, r *http.Request) (api.AgentRequest, bool) {
	var req api.AgentRequest
	if !ValidateContentType(w, r, h.logger) {
		return req, false
	}
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return req, false
	}
	return req, true
}
