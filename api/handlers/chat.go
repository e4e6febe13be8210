package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/agentdesk/agent/session"
	"github.com/BaSui01/agentdesk/api"
	"github.com/BaSui01/agentdesk/types"
	"go.uber.org/zap"
)

// =============================================================================
// 💬 对话 Handler
// =============================================================================

// ConversationService 对话运行时，由 session.Manager 实现
type ConversationService interface {
	ProcessTurn(ctx context.Context, id, text string) (session.Response, error)
	Session(ctx context.Context, id string) (*session.Session, error)
	Clear(ctx context.Context, id string) error
	Conversations() []string
}

var _ ConversationService = (*session.Manager)(nil)

// ChatHandler 处理对话、历史查询与清空
type ChatHandler struct {
	conversations ConversationService
	logger        *zap.Logger
}

// NewChatHandler 创建对话处理器
func NewChatHandler(conversations ConversationService, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		conversations: conversations,
		logger:        logger.With(zap.String("component", "chat_handler")),
	}
}

// Register 注册路由
func (h *ChatHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/chat", h.HandleChat)
	mux.HandleFunc("GET /api/v1/conversations", h.HandleListConversations)
	mux.HandleFunc("GET /api/v1/conversations/{id}/history", h.HandleHistory)
	mux.HandleFunc("DELETE /api/v1/conversations/{id}/history", h.HandleClearHistory)
}

// HandleChat 处理一条用户消息
// @Summary 对话
// @Tags 对话
// @Accept json
// @Produce json
// @Param request body api.ChatRequest true "聊天请求"
// @Success 200 {object} api.ChatResponse
// @Failure 400 {object} Response
// @Router /api/v1/chat [post]
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.ChatRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "message is required", h.logger)
		return
	}
	id := conversationID(req.ConversationID)

	start := time.Now()
	resp, err := h.conversations.ProcessTurn(r.Context(), id, req.Message)
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}

	h.logger.Info("turn processed",
		zap.String("conversation", id),
		zap.String("author", resp.Author),
		zap.String("method", string(resp.Method)),
		zap.Bool("blocked", resp.Blocked),
		zap.Duration("elapsed", time.Since(start)))

	WriteSuccess(w, api.ChatResponse{
		ConversationID: id,
		Author:         resp.Author,
		Content:        resp.Content,
		Blocked:        resp.Blocked,
		Method:         string(resp.Method),
		Label:          string(resp.Label),
		Failure:        string(resp.Failure),
		TurnID:         resp.TurnID,
	})
}

// HandleListConversations 列出活跃对话
// @Router /api/v1/conversations [get]
func (h *ChatHandler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string][]string{"conversations": h.conversations.Conversations()})
}

// HandleHistory 返回对话历史，limit 取最近 N 条
// @Param id path string true "对话 ID"
// @Param limit query int false "最近 N 条"
// @Router /api/v1/conversations/{id}/history [get]
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "limit must be a non-negative integer", h.logger)
			return
		}
		limit = n
	}

	id := conversationID(r.PathValue("id"))
	s, err := h.conversations.Session(r.Context(), id)
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	turns := s.History(limit)
	WriteSuccess(w, api.HistoryResponse{
		ConversationID: id,
		Turns:          api.TurnsFromDomain(turns),
		Total:          s.Store().Len(),
	})
}

// HandleClearHistory 清空对话。重复清空结果相同。
// @Router /api/v1/conversations/{id}/history [delete]
func (h *ChatHandler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	id := conversationID(r.PathValue("id"))
	if err := h.conversations.Clear(r.Context(), id); err != nil {
		WriteFailure(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"conversation_id": id, "status": "cleared"})
}

func conversationID(id string) string {
	if id = strings.TrimSpace(id); id == "" {
		return session.DefaultConversation
	}
	return id
}
