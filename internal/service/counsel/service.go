// Package counsel runs one counseling exchange end to end: crisis screening,
// signal extraction, model reply and recording the turn into the session's
// context window. Every transport (REST, SSE, websocket) goes through it.
package counsel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-counsel/backend/internal/analysis/crisis"
	analysis "github.com/zhouzirui/z-counsel/backend/internal/analysis/emotion"
	"github.com/zhouzirui/z-counsel/backend/internal/analysis/keywords"
	"github.com/zhouzirui/z-counsel/backend/internal/contextwindow"
	"github.com/zhouzirui/z-counsel/backend/internal/logger"
	"github.com/zhouzirui/z-counsel/backend/internal/metrics"
	"github.com/zhouzirui/z-counsel/backend/internal/model/chat"
	"github.com/zhouzirui/z-counsel/backend/internal/model/persona"
	"github.com/zhouzirui/z-counsel/backend/internal/model/profile"
	aiservice "github.com/zhouzirui/z-counsel/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/z-counsel/backend/internal/service/chat"
	emotionservice "github.com/zhouzirui/z-counsel/backend/internal/service/emotion"
	profileservice "github.com/zhouzirui/z-counsel/backend/internal/service/profile"
)

var (
	ErrMessageRequired  = errors.New("message is required")
	ErrModelUnavailable = errors.New("AI service not configured")
)

// Generator produces counselor replies; *ai.Service implements it.
type Generator interface {
	GenerateResponse(ctx context.Context, req aiservice.Request) (*schema.Message, error)
	StreamResponse(ctx context.Context, req aiservice.Request) (*schema.StreamReader[*schema.Message], error)
	StreamingEnabled() bool
}

// Config 咨询流程参数
type Config struct {
	// RenderTurns 拼入提示词的近期轮次数
	RenderTurns    int
	CrisisKeywords []string
}

// Exchange is a prepared exchange awaiting its reply.
type Exchange struct {
	SessionID string
	UserID    string
	Persona   *persona.Persona
	Message   string
	Context   string
	// Profile 来访者画像摘要，新用户为空
	Profile  string
	Risk     crisis.Assessment
	Keywords []string
	Guidance emotionservice.Guidance
}

func (e *Exchange) request() aiservice.Request {
	guidance := e.Guidance
	return aiservice.Request{
		SessionID: e.SessionID,
		Persona:   e.Persona,
		Context:   e.Context,
		Profile:   e.Profile,
		Query:     e.Message,
		Guidance:  &guidance,
		Risk:      e.Risk,
	}
}

// Result 一次咨询交互的结果
type Result struct {
	SessionID  string                   `json:"sessionId"`
	Answer     string                   `json:"answer"`
	Risk       crisis.Assessment        `json:"risk"`
	Emotion    analysis.Label           `json:"emotion"`
	Intensity  float64                  `json:"intensity"`
	Keywords   []string                 `json:"keywords,omitempty"`
	Outcome    contextwindow.Outcome    `json:"outcome"`
	Statistics contextwindow.Statistics `json:"statistics"`
}

// Service wires the session registry, analyzers and model together.
type Service struct {
	sessions  *chatservice.Service
	personas  persona.Store
	generator Generator
	emotions  *emotionservice.Service
	profiles  *profileservice.Service
	tracker   *crisis.Tracker
	extractor *keywords.Extractor
	cfg       Config
	logger    *zap.Logger
}

// NewService builds the pipeline. generator may be nil, in which case only
// crisis interventions can be answered. Nil profiles or tracker get
// in-memory defaults.
func NewService(
	sessions *chatservice.Service,
	personas persona.Store,
	generator Generator,
	emotions *emotionservice.Service,
	profiles *profileservice.Service,
	tracker *crisis.Tracker,
	cfg Config,
	log *zap.Logger,
) *Service {
	if cfg.RenderTurns <= 0 {
		cfg.RenderTurns = 5
	}
	if len(cfg.CrisisKeywords) == 0 {
		cfg.CrisisKeywords = contextwindow.DefaultCrisisKeywords
	}
	if log == nil {
		log = zap.NewNop()
	}
	if profiles == nil {
		profiles = profileservice.NewService(nil, log)
	}
	if tracker == nil {
		tracker = crisis.NewTracker()
	}

	return &Service{
		sessions:  sessions,
		personas:  personas,
		generator: generator,
		emotions:  emotions,
		profiles:  profiles,
		tracker:   tracker,
		extractor: keywords.New(0, keywords.Lexicon, cfg.CrisisKeywords),
		cfg:       cfg,
		logger:    log.Named("counsel"),
	}
}

// Profiles exposes the per-user profile service.
func (s *Service) Profiles() *profileservice.Service {
	return s.profiles
}

// CrisisStats 进程启动以来的危机筛查统计
func (s *Service) CrisisStats() crisis.Stats {
	return s.tracker.Stats()
}

// ModelAvailable reports whether non-crisis messages can be answered.
func (s *Service) ModelAvailable() bool {
	return s.generator != nil
}

// Prepare resolves the session and computes every signal for the message.
func (s *Service) Prepare(ctx context.Context, sessionID, message string) (*Exchange, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrMessageRequired
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	p := persona.Resolve(s.personas, session.PersonaID)

	risk := crisis.Detect(message)
	s.tracker.Record(risk)
	if risk.Level != crisis.Low {
		logger.Session(s.logger, sessionID).Warn("crisis signal detected",
			zap.String("level", string(risk.Level)),
			zap.Float64("score", risk.Score),
			zap.Strings("matched", risk.Matched),
		)
	}

	rendered, err := s.sessions.FormattedContext(ctx, sessionID, s.cfg.RenderTurns)
	if err != nil {
		return nil, err
	}

	return &Exchange{
		SessionID: sessionID,
		UserID:    session.UserID,
		Persona:   p,
		Message:   message,
		Context:   rendered.Text,
		Profile:   s.profiles.Summary(ctx, session.UserID),
		Risk:      risk,
		Keywords:  s.extractor.Extract(message),
		Guidance:  s.analyze(ctx, p, rendered.Text, message, ""),
	}, nil
}

// Reply produces the full answer. High risk messages get the fixed
// intervention without a model call.
func (s *Service) Reply(ctx context.Context, ex *Exchange) (string, error) {
	if ex.Risk.NeedsIntervention() {
		return crisis.HighRiskResponse, nil
	}
	if s.generator == nil {
		return "", ErrModelUnavailable
	}

	msg, err := s.generator.GenerateResponse(ctx, ex.request())
	if err != nil {
		metrics.GenerationErrors.Inc()
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return crisis.Respond(ex.Risk, strings.TrimSpace(msg.Content)), nil
}

// Stream emits the answer in chunks through onDelta and returns the full
// answer. It degrades to a single chunk when streaming is disabled.
func (s *Service) Stream(ctx context.Context, ex *Exchange, onDelta func(string) error) (string, error) {
	if ex.Risk.NeedsIntervention() || s.generator == nil || !s.generator.StreamingEnabled() {
		answer, err := s.Reply(ctx, ex)
		if err != nil {
			return "", err
		}
		return answer, onDelta(answer)
	}

	stream, err := s.generator.StreamResponse(ctx, ex.request())
	if err != nil {
		metrics.GenerationErrors.Inc()
		return "", fmt.Errorf("stream reply: %w", err)
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			metrics.GenerationErrors.Inc()
			return "", fmt.Errorf("stream reply: %w", recvErr)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		builder.WriteString(chunk.Content)
		if err := onDelta(chunk.Content); err != nil {
			return "", err
		}
	}

	reply := strings.TrimSpace(builder.String())
	answer := crisis.Respond(ex.Risk, reply)
	if answer != reply {
		// 中危提示追加在回复之后。
		if err := onDelta(answer[len(reply):]); err != nil {
			return "", err
		}
	}
	return answer, nil
}

// Complete records the finished exchange into the session's context window.
func (s *Service) Complete(ctx context.Context, ex *Exchange, answer string) (Result, error) {
	decision := ex.Guidance.Decision
	if decision.Score == 0 {
		decision = analysis.Analyze(ex.Message, answer)
	}

	// 回复中的危机词同样提高该轮的保留权重。
	kws := s.extractor.Extract(ex.Message, answer)
	for _, w := range append(append([]string(nil), ex.Keywords...), ex.Risk.Matched...) {
		if !slices.Contains(kws, w) {
			kws = append(kws, w)
		}
	}

	outcome, err := s.sessions.RecordTurn(ctx, ex.SessionID, chat.TurnInput{
		UserMessage:  ex.Message,
		AIResponse:   answer,
		EmotionScore: decision.Intensity(),
		EmotionLabel: string(decision.Emotion),
		Keywords:     kws,
	})
	if err != nil {
		return Result{}, err
	}

	stats, err := s.sessions.Statistics(ctx, ex.SessionID)
	if err != nil {
		return Result{}, err
	}
	metrics.AsksTotal.WithLabelValues(string(ex.Risk.Level)).Inc()

	// 画像写入失败不影响本轮结果。
	if _, err := s.profiles.Record(ctx, ex.UserID, profile.Record{
		Emotion:   string(decision.Emotion),
		Intensity: decision.Intensity(),
		Negative:  decision.Negative(),
		Risk:      string(ex.Risk.Level),
		Topics:    kws,
	}); err != nil {
		logger.Session(s.logger, ex.SessionID).Warn("record profile failed", zap.Error(err))
	}

	return Result{
		SessionID:  ex.SessionID,
		Answer:     answer,
		Risk:       ex.Risk,
		Emotion:    decision.Emotion,
		Intensity:  decision.Intensity(),
		Keywords:   kws,
		Outcome:    outcome,
		Statistics: stats,
	}, nil
}

// Ask runs Prepare, Reply and Complete.
func (s *Service) Ask(ctx context.Context, sessionID, message string) (Result, error) {
	ex, err := s.Prepare(ctx, sessionID, message)
	if err != nil {
		return Result{}, err
	}
	answer, err := s.Reply(ctx, ex)
	if err != nil {
		return Result{}, err
	}
	return s.Complete(ctx, ex, answer)
}

func (s *Service) analyze(ctx context.Context, p *persona.Persona, history, user, assistant string) emotionservice.Guidance {
	if s.emotions != nil {
		return s.emotions.Analyze(ctx, p, history, user, assistant)
	}
	return emotionservice.Guidance{Decision: analysis.Analyze(user, assistant), Reason: "fallback"}
}
