package stream

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-counsel/backend/internal/analysis/crisis"
	chathandler "github.com/zhouzirui/z-counsel/backend/internal/handler/chat"
	"github.com/zhouzirui/z-counsel/backend/internal/logger"
	"github.com/zhouzirui/z-counsel/backend/internal/service/counsel"
	"github.com/zhouzirui/z-counsel/backend/pkg/utils"
)

// Handler manages streaming counselor replies via Server-Sent Events
type Handler struct {
	counsel *counsel.Service
	logger  *zap.Logger
}

// New creates a new stream handler
func New(counselSvc *counsel.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{counsel: counselSvc, logger: log.Named("stream")}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Risk      string `json:"risk,omitempty"`
	Data      any    `json:"data,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RegisterRoutes 注册流式路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := r.URL.Query().Get("message")
	if userMessage == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	ex, err := h.counsel.Prepare(r.Context(), sessionID, userMessage)
	if err != nil {
		utils.RespondError(w, chathandler.StatusFor(err), err.Error())
		return
	}
	if !ex.Risk.NeedsIntervention() && !h.counsel.ModelAvailable() {
		utils.RespondError(w, http.StatusServiceUnavailable, counsel.ErrModelUnavailable.Error())
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, ex); err != nil {
		logger.Session(h.logger, sessionID).Warn("stream failed", zap.Error(err))
	}
}

// HandleStreamRequest streams one prepared exchange. Headers are committed
// before the first event, so failures are reported as error events.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, ex *counsel.Exchange) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	name := "咨询师"
	if ex.Persona != nil {
		name = ex.Persona.Name
	}
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: ex.SessionID,
		Content:   fmt.Sprintf("%s的回复:", name),
		Risk:      string(ex.Risk.Level),
	})

	answer, err := h.counsel.Stream(ctx, ex, func(delta string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "delta",
			SessionID: ex.SessionID,
			Content:   delta,
		})
	})
	if err != nil {
		h.sendSSEError(w, flusher, fmt.Sprintf("AI generation failed: %v", err))
		return err
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: ex.SessionID,
		Content:   answer,
	})

	result, err := h.counsel.Complete(ctx, ex, answer)
	if err != nil {
		h.sendSSEError(w, flusher, fmt.Sprintf("failed to record turn: %v", err))
		return err
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "emotion",
		SessionID: ex.SessionID,
		Data: map[string]any{
			"emotion":   result.Emotion,
			"intensity": result.Intensity,
		},
	})
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "stats",
		SessionID: ex.SessionID,
		Data:      result.Statistics,
	})
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: ex.SessionID,
		Risk:      string(result.Risk.Level),
		Finished:  true,
	})

	log := logger.Session(h.logger, ex.SessionID)
	if result.Risk.Level == crisis.High {
		log.Warn("crisis intervention streamed")
	}
	log.Info("stream completed", zap.Int("answer_length", len(answer)))
	return nil
}

// sendSSEError sends an error via Server-Sent Events
func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, errorMsg string) {
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event: "error",
		Error: errorMsg,
	})
}
