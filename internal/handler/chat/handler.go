package chat

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-counsel/backend/internal/model/chat"
	"github.com/zhouzirui/z-counsel/backend/internal/model/persona"
	chatService "github.com/zhouzirui/z-counsel/backend/internal/service/chat"
	"github.com/zhouzirui/z-counsel/backend/internal/service/counsel"
	"github.com/zhouzirui/z-counsel/backend/pkg/utils"
)

// DefaultRenderTurns 未指定 maxTurns 时渲染的轮次数
const DefaultRenderTurns = 5

// Handler 会话与上下文窗口的HTTP处理器
type Handler struct {
	chatSvc      *chatService.Service
	counselSvc   *counsel.Service
	personaStore persona.Store
	logger       *zap.Logger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, counselSvc *counsel.Service, personaStore persona.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc:      chatSvc,
		counselSvc:   counselSvc,
		personaStore: personaStore,
		logger:       logger,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Post("/messages", h.handleSaveMessage)
	r.Post("/ask", h.handleAsk)

	r.Route("/sessions/{sessionID}", func(s chi.Router) {
		s.Delete("/", h.handleEndSession)
		s.Post("/turns", h.handleAddTurn)
		s.Get("/context", h.handleContext)
		s.Delete("/context", h.handleResetContext)
		s.Get("/stats", h.handleStats)
		s.Get("/transcript", h.handleTranscript)
	})
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID    string `json:"userId"`
		PersonaID string `json:"personaId"`
	}

	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.PersonaID == "" {
		payload.PersonaID = persona.DefaultID
	}

	if _, ok := h.personaStore.FindByID(payload.PersonaID); !ok {
		utils.RespondError(w, http.StatusBadRequest, "persona not found")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.UserID, payload.PersonaID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

// handleEndSession 结束会话并释放上下文窗口
func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.EndSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSaveMessage 保存消息
func (h *Handler) handleSaveMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
		Sender    string `json:"sender"`
		Content   string `json:"content"`
		Emotion   string `json:"emotion"`
	}

	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message := chat.Message{
		SessionID: payload.SessionID,
		Sender:    payload.Sender,
		Content:   payload.Content,
		Emotion:   payload.Emotion,
	}

	if err := h.chatSvc.SaveMessage(r.Context(), message); err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// handleAddTurn 直接写入一轮已完成的对话
func (h *Handler) handleAddTurn(w http.ResponseWriter, r *http.Request) {
	var payload chat.TurnInput
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.chatSvc.RecordTurn(r.Context(), chi.URLParam(r, "sessionID"), payload)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, out)
}

// handleContext 返回渲染后的上下文
func (h *Handler) handleContext(w http.ResponseWriter, r *http.Request) {
	maxTurns := DefaultRenderTurns
	if raw := r.URL.Query().Get("maxTurns"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "maxTurns must be an integer")
			return
		}
		maxTurns = n
	}

	rendered, err := h.chatSvc.FormattedContext(r.Context(), chi.URLParam(r, "sessionID"), maxTurns)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, rendered)
}

// handleResetContext 清空上下文窗口
func (h *Handler) handleResetContext(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.ResetContext(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStats 返回上下文统计
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.chatSvc.Statistics(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, stats)
}

// handleTranscript 返回完整对话记录
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

// handleAsk 完整的一次咨询交互
func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
		Query     string `json:"query"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if h.counselSvc == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, counsel.ErrModelUnavailable.Error())
		return
	}

	result, err := h.counselSvc.Ask(r.Context(), payload.SessionID, payload.Query)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	utils.RespondError(w, status, err.Error())
}

// StatusFor maps service errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrPersonaRequired), errors.Is(err, counsel.ErrMessageRequired):
		return http.StatusBadRequest
	case errors.Is(err, counsel.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
