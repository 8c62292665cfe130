package emotion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	analysis "github.com/zhouzirui/z-counsel/backend/internal/analysis/emotion"
	"github.com/zhouzirui/z-counsel/backend/internal/model/persona"
)

// Config 控制情绪分析服务的行为。
type Config struct {
	Enabled bool
	// ContextLimit 截断传给分类模型的对话上下文（按字符）。
	ContextLimit int
}

// Guidance 表示情绪分析的结果以及对回复语气的建议。
type Guidance struct {
	Decision   analysis.Decision
	Style      string
	Confidence float32
	Reason     string
}

// Service 使用大模型对来访者情绪进行分析，并在必要时回退到启发式规则。
type Service struct {
	enabled      bool
	classifier   compose.Runnable[map[string]any, *schema.Message]
	fallback     func(user, assistant string) analysis.Decision
	contextLimit int
	logger       *zap.Logger
}

// NewService 创建情绪分析服务。chatModel 可重用现有的大模型实例，为 nil 时只使用启发式规则。
func NewService(ctx context.Context, chatModel model.ChatModel, cfg Config, logger *zap.Logger) (*Service, error) {
	contextLimit := cfg.ContextLimit
	if contextLimit <= 0 {
		contextLimit = 2000
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	svc := &Service{
		enabled:      cfg.Enabled && chatModel != nil,
		fallback:     analysis.Analyze,
		contextLimit: contextLimit,
		logger:       logger.Named("emotion"),
	}

	if !svc.enabled {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(emotionSystemPrompt),
		schema.UserMessage(emotionUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile emotion classifier chain: %w", err)
	}

	svc.classifier = runnable
	return svc, nil
}

// Enabled 返回模型分类是否启用。
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.classifier != nil
}

// Analyze 根据渲染后的对话上下文与回复预测情绪。assistantMessage 为空时同样运行，以便在回复前获取语气建议。
func (s *Service) Analyze(ctx context.Context, personaObj *persona.Persona, dialogueContext, userMessage, assistantMessage string) Guidance {
	if !s.Enabled() {
		return s.fallbackGuidance(userMessage, assistantMessage)
	}

	input := map[string]any{
		"persona":         summarizePersona(personaObj),
		"history":         clipContext(dialogueContext, s.contextLimit),
		"user_message":    strings.TrimSpace(userMessage),
		"assistant_draft": strings.TrimSpace(assistantMessage),
	}

	msg, err := s.classifier.Invoke(ctx, input)
	if err != nil {
		s.logger.Warn("classifier invoke failed, use fallback", zap.Error(err))
		return s.fallbackGuidance(userMessage, assistantMessage)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return s.fallbackGuidance(userMessage, assistantMessage)
	}

	result, err := parseClassifierOutput(msg.Content)
	if err != nil {
		s.logger.Warn("classifier output parse failed, use fallback", zap.Error(err))
		return s.fallbackGuidance(userMessage, assistantMessage)
	}

	label, ok := parseEmotionLabel(result.Emotion)
	if !ok {
		return s.fallbackGuidance(userMessage, assistantMessage)
	}

	scale := clampScale(result.Scale)
	decision := analysis.Decision{
		Emotion: label,
		Scale:   scale,
		Score:   int(scale * 2),
	}
	if label == analysis.Neutral {
		decision.Score = 0
	}

	style := strings.TrimSpace(result.Style)
	if style == "" {
		style = defaultStyleByEmotion[decision.Emotion]
	}

	confidence := result.Confidence
	if confidence <= 0 {
		confidence = 0.6
	}
	if confidence > 1 {
		confidence = 1
	}

	return Guidance{
		Decision:   decision,
		Style:      style,
		Confidence: confidence,
		Reason:     strings.TrimSpace(result.Reason),
	}
}

func (s *Service) fallbackGuidance(userMessage, assistantMessage string) Guidance {
	decision := s.fallback(userMessage, assistantMessage)
	style := defaultStyleByEmotion[decision.Emotion]
	if style == "" {
		style = "保持温和、耐心的语气。"
	}

	confidence := float32(0.3)
	if decision.Score > 0 {
		confidence = 0.55
	}

	return Guidance{
		Decision:   decision,
		Style:      style,
		Confidence: confidence,
		Reason:     "fallback",
	}
}

// parseClassifierOutput 解析大模型返回的 JSON。
func parseClassifierOutput(content string) (*classifierPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := &classifierPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func summarizePersona(p *persona.Persona) string {
	if p == nil {
		return "通用心理咨询师。"
	}

	sections := []string{
		fmt.Sprintf("名字:%s", strings.TrimSpace(p.Name)),
		fmt.Sprintf("定位:%s", strings.TrimSpace(p.Title)),
	}
	if tone := strings.TrimSpace(p.Tone); tone != "" {
		sections = append(sections, fmt.Sprintf("语气:%s", tone))
	}
	return strings.Join(sections, " | ")
}

// clipContext 保留上下文末尾 limit 个字符，较新的轮次在末尾。
func clipContext(text string, limit int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "无历史对话"
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return "……" + string(runes[len(runes)-limit:])
}

func parseEmotionLabel(raw string) (analysis.Label, bool) {
	switch label := analysis.Label(strings.ToLower(strings.TrimSpace(raw))); label {
	case analysis.Neutral, analysis.Calm, analysis.Happy, analysis.Anxious,
		analysis.Sad, analysis.Angry, analysis.Hopeless:
		return label, true
	default:
		return "", false
	}
}

func clampScale(val float32) float32 {
	if val <= 0 {
		return 3
	}
	if val < 1 {
		return 1
	}
	if val > 5 {
		return 5
	}
	return val
}

type classifierPayload struct {
	Emotion    string  `json:"emotion"`
	Scale      float32 `json:"scale"`
	Confidence float32 `json:"confidence"`
	Style      string  `json:"style"`
	Reason     string  `json:"reason"`
}

const emotionSystemPrompt = "你是一名心理咨询中的情绪评估助手。请阅读咨询师设定、近期对话、来访者输入以及（可选的）咨询师草稿，推断来访者当前情绪，并给出咨询师回复应该采用的语气建议。\n输出要求：只返回一个 JSON 对象，字段如下：emotion (必须是 neutral/calm/happy/anxious/sad/angry/hopeless 之一)、scale (1~5 之间的数字，表示情绪强度，可有小数)、confidence (0~1 之间的小数)、style (一句话描述建议的语气)、reason (简要中文理由)。不得输出多余文本。"

const emotionUserPrompt = "咨询师信息：\n{persona}\n\n近期对话：\n{history}\n\n来访者最新输入：\n{user_message}\n\n咨询师回复草稿（可能为空）：\n{assistant_draft}\n\n请基于这些信息给出 JSON。"

var defaultStyleByEmotion = map[analysis.Label]string{
	analysis.Neutral:  "语气平和、耐心，鼓励来访者多表达。",
	analysis.Calm:     "语气舒缓，肯定来访者的稳定状态。",
	analysis.Happy:    "语气温暖，真诚地分享来访者的喜悦。",
	analysis.Anxious:  "语气稳定、放慢节奏，帮助来访者落地到当下。",
	analysis.Sad:      "语气柔和、富有同理心，先陪伴再引导。",
	analysis.Angry:    "语气沉稳，先承认情绪的合理性，再帮助梳理。",
	analysis.Hopeless: "语气温暖坚定，传递希望与支持，关注安全。",
}
