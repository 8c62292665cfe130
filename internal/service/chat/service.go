package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-counsel/backend/internal/contextwindow"
	"github.com/zhouzirui/z-counsel/backend/internal/logger"
	"github.com/zhouzirui/z-counsel/backend/internal/metrics"
	"github.com/zhouzirui/z-counsel/backend/internal/model/chat"
	"github.com/zhouzirui/z-counsel/backend/internal/store"
)

var (
	ErrPersonaRequired = errors.New("persona id is required")
	ErrSessionNotFound = errors.New("session not found")
)

// Service is the session registry: it owns one context window per session
// and forwards raw transcripts to the transcript store.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	windows  map[string]*contextwindow.Window

	windowCfg   contextwindow.Config
	transcripts store.TranscriptStore
	logger      *zap.Logger
}

// NewService validates the window configuration up front so a bad budget is
// reported before any session exists.
func NewService(windowCfg contextwindow.Config, transcripts store.TranscriptStore, log *zap.Logger) (*Service, error) {
	if err := windowCfg.Validate(); err != nil {
		return nil, err
	}
	if transcripts == nil {
		transcripts = store.NewMemoryTranscriptStore(0)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		sessions:    make(map[string]chat.Session),
		windows:     make(map[string]*contextwindow.Window),
		windowCfg:   windowCfg,
		transcripts: transcripts,
		logger:      log,
	}, nil
}

// CreateSession provisions an anonymous session bound to a counselor persona.
func (s *Service) CreateSession(_ context.Context, userID, personaID string) (chat.Session, error) {
	if personaID == "" {
		return chat.Session{}, ErrPersonaRequired
	}
	if userID == "" {
		userID = chat.AnonymousUser
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		PersonaID: personaID,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("persona_id", personaID),
	)
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// EndSession tears the session down together with its window and transcript.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	if _, ok := s.sessions[sessionID]; !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	if _, ok := s.windows[sessionID]; ok {
		delete(s.windows, sessionID)
		metrics.ActiveWindows.Dec()
	}
	s.mu.Unlock()

	if err := s.transcripts.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	logger.Session(s.logger, sessionID).Info("session ended")
	return nil
}

// RecordTurn appends a completed exchange to the session's context window,
// creating the window on the first turn.
func (s *Service) RecordTurn(ctx context.Context, sessionID string, in chat.TurnInput) (contextwindow.Outcome, error) {
	window, err := s.window(sessionID, true)
	if err != nil {
		return contextwindow.Outcome{}, err
	}

	out := window.AddTurn(in.UserMessage, in.AIResponse, in.EmotionScore, in.Keywords)
	stats := window.Statistics()
	metrics.ObserveTurn(out, stats)

	log := logger.Session(s.logger, sessionID)
	log.Debug("turn recorded",
		zap.Uint64("seq", out.Seq),
		zap.Int("tokens", out.Tokens),
		zap.Int("summarized", out.Summarized),
		zap.Float64("utilization", stats.UtilizationRate),
	)
	if out.OverBudget {
		log.Warn("context window over budget", zap.Int("active_tokens", stats.ActiveTokens))
	}

	now := time.Now().UTC()
	messages := []chat.Message{
		{ID: uuid.NewString(), SessionID: sessionID, Sender: chat.SenderUser, Content: in.UserMessage, CreatedAt: now},
		{ID: uuid.NewString(), SessionID: sessionID, Sender: chat.SenderAssistant, Content: in.AIResponse, Emotion: in.EmotionLabel, CreatedAt: now},
	}
	if err := s.transcripts.Append(ctx, messages...); err != nil {
		log.Warn("failed to persist transcript", zap.Error(err))
	}
	return out, nil
}

// FormattedContext renders the newest maxTurns turns of the session.
func (s *Service) FormattedContext(_ context.Context, sessionID string, maxTurns int) (contextwindow.Rendered, error) {
	window, err := s.window(sessionID, false)
	if err != nil {
		return contextwindow.Rendered{}, err
	}
	if window == nil {
		return contextwindow.Rendered{}, nil
	}
	return window.Render(maxTurns), nil
}

// Statistics reports the session's context accounting. Sessions without any
// turn yet report an empty window.
func (s *Service) Statistics(_ context.Context, sessionID string) (contextwindow.Statistics, error) {
	window, err := s.window(sessionID, false)
	if err != nil {
		return contextwindow.Statistics{}, err
	}
	if window == nil {
		return contextwindow.Statistics{
			ReservedTokens:  s.windowCfg.ReservedSystemPromptTokens,
			AvailableTokens: s.windowCfg.MaxTokens - s.windowCfg.ReservedSystemPromptTokens,
			MaxTokens:       s.windowCfg.MaxTokens,
		}, nil
	}
	return window.Statistics(), nil
}

// ResetContext empties the session's window; the transcript is kept.
func (s *Service) ResetContext(_ context.Context, sessionID string) error {
	window, err := s.window(sessionID, false)
	if err != nil {
		return err
	}
	if window != nil {
		window.Reset()
	}
	logger.Session(s.logger, sessionID).Info("context reset")
	return nil
}

// SaveMessage appends a message to the session transcript.
func (s *Service) SaveMessage(ctx context.Context, message chat.Message) error {
	if message.SessionID == "" {
		return ErrSessionNotFound
	}
	if _, err := s.GetSession(ctx, message.SessionID); err != nil {
		return err
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	return s.transcripts.Append(ctx, message)
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.transcripts.Load(ctx, sessionID)
}

// ActiveWindows counts sessions that have recorded at least one turn.
func (s *Service) ActiveWindows() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.windows)
}

// window looks up the session's window. With create it is built on demand;
// otherwise a session without turns yields a nil window and no error.
func (s *Service) window(sessionID string, create bool) (*contextwindow.Window, error) {
	s.mu.RLock()
	_, ok := s.sessions[sessionID]
	window := s.windows[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if window != nil || !create {
		return window, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}
	if window = s.windows[sessionID]; window != nil {
		return window, nil
	}

	window, err := contextwindow.New(s.windowCfg, contextwindow.WithLogger(logger.Session(s.logger, sessionID)))
	if err != nil {
		return nil, fmt.Errorf("create context window: %w", err)
	}
	s.windows[sessionID] = window
	metrics.ActiveWindows.Inc()
	return window, nil
}
