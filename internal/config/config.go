package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/z-counsel/backend/internal/contextwindow"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Context ContextConfig
	Store   StoreConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	ctxCfg, err := loadContextConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Context: ctxCfg,
		Store:   store,
		Log:     loadLogConfig(),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	origins := splitList(os.Getenv("CORS_ALLOW_ORIGINS"))

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey              string
	AccessKey           string
	SecretKey           string
	Model               string
	BaseURL             string
	Region              string
	Temperature         *float64
	TopP                *float64
	MaxTokens           *int
	StreamResponse      bool
	EmotionLLMEnabled   bool
	EmotionContextChars int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("ARK_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	emotionEnabled, err := parseBoolEnv("AI_EMOTION_LLM_ENABLED", false)
	if err != nil {
		return AIConfig{}, err
	}

	emotionContext := 2000
	if contextOverride, err := parseOptionalIntEnv("AI_EMOTION_CONTEXT_CHARS"); err != nil {
		return AIConfig{}, err
	} else if contextOverride != nil {
		if *contextOverride < 100 {
			emotionContext = 100
		} else {
			emotionContext = *contextOverride
		}
	}

	return AIConfig{
		APIKey:              strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:           strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:           strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:               strings.TrimSpace(os.Getenv("Model")),
		BaseURL:             getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:              getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:         temperature,
		TopP:                topP,
		MaxTokens:           maxTokens,
		StreamResponse:      stream,
		EmotionLLMEnabled:   emotionEnabled,
		EmotionContextChars: emotionContext,
	}, nil
}

// Tokenizer 选择上下文窗口的 token 估算方式。
type Tokenizer string

const (
	TokenizerChars    Tokenizer = "chars"
	TokenizerTiktoken Tokenizer = "tiktoken"
)

// ContextConfig 描述会话上下文窗口的预算配置。
type ContextConfig struct {
	MaxTokens        int
	CharsPerToken    float64
	ReservedTokens   int
	ProtectedTurns   int
	SummaryMaxTokens int
	ReferenceTokens  int
	CrisisKeywords   []string
	RenderTurns      int
	Tokenizer        Tokenizer
	TiktokenEncoding string
}

// WindowConfig 转换为上下文窗口的构造参数。Estimator 由调用方按 Tokenizer 注入。
func (c ContextConfig) WindowConfig() contextwindow.Config {
	return contextwindow.Config{
		MaxTokens:                  c.MaxTokens,
		CharsPerToken:              c.CharsPerToken,
		ReservedSystemPromptTokens: c.ReservedTokens,
		ProtectedWindowSize:        c.ProtectedTurns,
		SummaryMaxTokens:           c.SummaryMaxTokens,
		ReferenceTokens:            c.ReferenceTokens,
		CrisisKeywords:             append([]string(nil), c.CrisisKeywords...),
	}
}

func loadContextConfig() (ContextConfig, error) {
	defaults := contextwindow.DefaultConfig()
	cfg := ContextConfig{
		MaxTokens:        defaults.MaxTokens,
		CharsPerToken:    defaults.CharsPerToken,
		ReservedTokens:   defaults.ReservedSystemPromptTokens,
		ProtectedTurns:   defaults.ProtectedWindowSize,
		SummaryMaxTokens: defaults.SummaryMaxTokens,
		ReferenceTokens:  defaults.ReferenceTokens,
		CrisisKeywords:   defaults.CrisisKeywords,
		RenderTurns:      5,
		TiktokenEncoding: getEnvOrDefault("CONTEXT_TIKTOKEN_ENCODING", "cl100k_base"),
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"CONTEXT_MAX_TOKENS", &cfg.MaxTokens},
		{"CONTEXT_RESERVED_TOKENS", &cfg.ReservedTokens},
		{"CONTEXT_PROTECTED_TURNS", &cfg.ProtectedTurns},
		{"CONTEXT_SUMMARY_MAX_TOKENS", &cfg.SummaryMaxTokens},
		{"CONTEXT_REFERENCE_TOKENS", &cfg.ReferenceTokens},
		{"CONTEXT_RENDER_TURNS", &cfg.RenderTurns},
	}
	for _, item := range ints {
		val, err := parseOptionalIntEnv(item.key)
		if err != nil {
			return ContextConfig{}, err
		}
		if val != nil {
			*item.dst = *val
		}
	}

	ratio, err := parseOptionalFloatEnv("CONTEXT_CHARS_PER_TOKEN")
	if err != nil {
		return ContextConfig{}, err
	}
	if ratio != nil {
		cfg.CharsPerToken = *ratio
	}

	if raw := strings.TrimSpace(os.Getenv("CONTEXT_CRISIS_KEYWORDS")); raw != "" {
		cfg.CrisisKeywords = splitList(raw)
	}

	switch tokenizer := Tokenizer(strings.ToLower(getEnvOrDefault("CONTEXT_TOKENIZER", string(TokenizerChars)))); tokenizer {
	case TokenizerChars, TokenizerTiktoken:
		cfg.Tokenizer = tokenizer
	default:
		return ContextConfig{}, fmt.Errorf("invalid CONTEXT_TOKENIZER value %q", tokenizer)
	}

	if err := cfg.WindowConfig().Validate(); err != nil {
		return ContextConfig{}, fmt.Errorf("invalid CONTEXT_* settings: %w", err)
	}
	return cfg, nil
}

// StoreConfig 描述对话记录的存储后端。
type StoreConfig struct {
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	TranscriptTTL   time.Duration
	TranscriptLimit int
	// ProfileTTL 来访者画像的保留时长，按最近一次交互续期
	ProfileTTL time.Duration
}

// RedisEnabled 表示是否配置了 Redis。
func (c StoreConfig) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func loadStoreConfig() (StoreConfig, error) {
	cfg := StoreConfig{
		RedisAddr:       strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		TranscriptTTL:   7 * 24 * time.Hour,
		TranscriptLimit: 200,
		ProfileTTL:      30 * 24 * time.Hour,
	}

	db, err := parseOptionalIntEnv("REDIS_DB")
	if err != nil {
		return StoreConfig{}, err
	}
	if db != nil {
		cfg.RedisDB = *db
	}

	if raw := strings.TrimSpace(os.Getenv("TRANSCRIPT_TTL")); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return StoreConfig{}, fmt.Errorf("invalid TRANSCRIPT_TTL value %q: %w", raw, err)
		}
		cfg.TranscriptTTL = ttl
	}

	limit, err := parseOptionalIntEnv("TRANSCRIPT_LIMIT")
	if err != nil {
		return StoreConfig{}, err
	}
	if limit != nil {
		cfg.TranscriptLimit = *limit
	}

	if raw := strings.TrimSpace(os.Getenv("PROFILE_TTL")); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return StoreConfig{}, fmt.Errorf("invalid PROFILE_TTL value %q: %w", raw, err)
		}
		cfg.ProfileTTL = ttl
	}

	return cfg, nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Format string
	Output string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "console")),
		Output: getEnvOrDefault("LOG_OUTPUT", "stdout"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '，'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
