package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-counsel/backend/internal/analysis/crisis"
	"github.com/zhouzirui/z-counsel/backend/internal/analysis/emotion"
	"github.com/zhouzirui/z-counsel/backend/internal/config"
	"github.com/zhouzirui/z-counsel/backend/internal/model/persona"
	emotionservice "github.com/zhouzirui/z-counsel/backend/internal/service/emotion"
)

// Request carries everything one model call needs.
type Request struct {
	SessionID string
	Persona   *persona.Persona
	// Context 为上下文窗口渲染出的近期对话历史。
	Context string
	// Profile 为来访者跨会话画像摘要，新用户为空。
	Profile  string
	Query    string
	Guidance *emotionservice.Guidance
	Risk     crisis.Assessment
}

// Service encapsulates AI-powered counseling replies
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
	prompts   *PersonaPromptManager
	logger    *zap.Logger
}

// NewService creates a new AI service instance
func NewService(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
		prompts:   NewPersonaPromptManager(),
		logger:    logger.Named("ai"),
	}, nil
}

// StreamingEnabled 指示是否开启 SSE 流式输出。
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// GenerateResponse generates the counselor reply for one exchange
func (s *Service) GenerateResponse(ctx context.Context, req Request) (*schema.Message, error) {
	response, err := s.chain.Invoke(ctx, s.buildChainInput(req))
	if err != nil {
		return nil, fmt.Errorf("failed to run AI chain: %w", err)
	}

	s.logger.Info("generated response",
		zap.String("session_id", req.SessionID),
		zap.String("persona_id", personaID(req.Persona)),
		zap.Int("length", len(response.Content)),
	)
	return response, nil
}

// StreamResponse streams reply chunks via the configured chain.
func (s *Service) StreamResponse(ctx context.Context, req Request) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}

	stream, err := s.chain.Stream(ctx, s.buildChainInput(req))
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	return stream, nil
}

// GetChatModel 返回底层的聊天模型
func (s *Service) GetChatModel() model.ChatModel {
	return s.chatModel
}

func (s *Service) buildChainInput(req Request) map[string]any {
	return map[string]any{
		"system": BuildSystemPrompt(s.prompts, req),
		"query":  req.Query,
	}
}

// BuildSystemPrompt assembles persona prompt, emotion guidance, risk hint and
// the rendered dialogue history.
func BuildSystemPrompt(prompts *PersonaPromptManager, req Request) string {
	var builder strings.Builder
	builder.WriteString(prompts.BuildSystemPrompt(req.Persona))

	if g := req.Guidance; g != nil && g.Decision.Emotion != "" {
		builder.WriteString("\n\n基于来访者当前状态的情绪分析：")
		if desc := describeEmotion(g.Decision.Emotion); desc != "" {
			builder.WriteString(desc)
		} else {
			builder.WriteString(fmt.Sprintf("情绪标签=%s", string(g.Decision.Emotion)))
		}
		builder.WriteString(fmt.Sprintf("，强度约 %.1f。", g.Decision.Scale))
		if g.Style != "" {
			builder.WriteString("\n回复建议：")
			builder.WriteString(g.Style)
		}
		if g.Reason != "" && g.Reason != "fallback" {
			builder.WriteString("\n情绪推断理由：")
			builder.WriteString(g.Reason)
		}
	}

	if req.Risk.Level == crisis.Medium {
		builder.WriteString("\n\n风险提示：来访者表达了较强的负面情绪（")
		builder.WriteString(req.Risk.Reason)
		builder.WriteString("），请格外温和，关注其安全感受。")
	}

	if profile := strings.TrimSpace(req.Profile); profile != "" {
		builder.WriteString("\n\n【用户画像】\n")
		builder.WriteString(profile)
	}

	if history := strings.TrimSpace(req.Context); history != "" {
		builder.WriteString("\n\n【近期对话历史】\n")
		builder.WriteString(history)
		builder.WriteString("\n\n请结合以上历史理解来访者的处境，保持前后一致。")
	}
	return builder.String()
}

func personaID(p *persona.Persona) string {
	if p == nil {
		return ""
	}
	return p.ID
}

func describeEmotion(label emotion.Label) string {
	switch label {
	case emotion.Calm:
		return "来访者情绪较为平稳。"
	case emotion.Happy:
		return "来访者情绪积极，可以一起肯定这份进展。"
	case emotion.Anxious:
		return "来访者感到焦虑紧张，需要稳定、落地的回应。"
	case emotion.Sad:
		return "来访者情绪低落，需要温柔的陪伴与理解。"
	case emotion.Angry:
		return "来访者感到愤怒或委屈，需要先被理解再被引导。"
	case emotion.Hopeless:
		return "来访者流露出无望感，需要传递希望并关注安全。"
	case emotion.Neutral:
		return "来访者情绪平和，请保持耐心与开放。"
	default:
		return ""
	}
}
