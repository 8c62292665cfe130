// Package live 提供基于 WebSocket 的实时咨询通道。
package live

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	chathandler "github.com/zhouzirui/z-counsel/backend/internal/handler/chat"
	"github.com/zhouzirui/z-counsel/backend/internal/logger"
	chatservice "github.com/zhouzirui/z-counsel/backend/internal/service/chat"
	"github.com/zhouzirui/z-counsel/backend/internal/service/counsel"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// 客户端消息类型
const (
	TypeMessage = "message"
	TypeStats   = "stats"
	TypeReset   = "reset"
)

// 服务端消息类型
const (
	TypeConnected = "connected"
	TypeDelta     = "delta"
	TypeReply     = "reply"
	TypeError     = "error"
)

// InboundMessage 客户端发来的帧
type InboundMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// OutgoingMessage 服务端下发的帧
type OutgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Handler WebSocket咨询处理器
type Handler struct {
	chatSvc    *chatservice.Service
	counselSvc *counsel.Service
	upgrader   websocket.Upgrader
	logger     *zap.Logger

	readTimeout time.Duration
}

// New 创建WebSocket处理器
func New(chatSvc *chatservice.Service, counselSvc *counsel.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		chatSvc:    chatSvc,
		counselSvc: counselSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:      log.Named("live"),
		readTimeout: readTimeout,
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, err.Error(), chathandler.StatusFor(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := logger.Session(h.logger, sessionID)
	log.Info("connection opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})
	go pingLoop(ctx, conn)

	h.send(conn, sessionID, TypeConnected, map[string]any{"persona": session.PersonaID})

	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("read error", zap.Error(err))
			}
			return
		}

		err := h.handleMessage(ctx, conn, sessionID, msg)
		// 生成期间不处理 pong，处理完成后再续期。
		_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		if err != nil {
			h.send(conn, sessionID, TypeError, map[string]any{
				"message": err.Error(),
				"status":  chathandler.StatusFor(err),
			})
			if errors.Is(err, chatservice.ErrSessionNotFound) {
				return
			}
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, sessionID string, msg InboundMessage) error {
	switch msg.Type {
	case TypeMessage:
		return h.handleUserMessage(ctx, conn, sessionID, msg.Content)
	case TypeStats:
		stats, err := h.chatSvc.Statistics(ctx, sessionID)
		if err != nil {
			return err
		}
		h.send(conn, sessionID, TypeStats, stats)
		return nil
	case TypeReset:
		if err := h.chatSvc.ResetContext(ctx, sessionID); err != nil {
			return err
		}
		h.send(conn, sessionID, TypeReset, map[string]any{"ok": true})
		return nil
	default:
		return errors.New("unsupported message type: " + msg.Type)
	}
}

func (h *Handler) handleUserMessage(ctx context.Context, conn *websocket.Conn, sessionID, content string) error {
	ex, err := h.counselSvc.Prepare(ctx, sessionID, content)
	if err != nil {
		return err
	}

	answer, err := h.counselSvc.Stream(ctx, ex, func(delta string) error {
		h.send(conn, sessionID, TypeDelta, map[string]any{"text": delta})
		return nil
	})
	if err != nil {
		return err
	}

	result, err := h.counselSvc.Complete(ctx, ex, answer)
	if err != nil {
		return err
	}
	h.send(conn, sessionID, TypeReply, result)
	return nil
}

func (h *Handler) send(conn *websocket.Conn, sessionID, kind string, data any) {
	msg := OutgoingMessage{
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Warn("write failed", zap.String("type", kind), zap.Error(err))
	}
}

// pingLoop 定期发送ping消息，WriteControl 可与 WriteJSON 并发调用。
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
