package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-counsel/backend/internal/analysis/crisis"
	"github.com/zhouzirui/z-counsel/backend/internal/config"
	"github.com/zhouzirui/z-counsel/backend/internal/contextwindow"
	"github.com/zhouzirui/z-counsel/backend/internal/handler"
	"github.com/zhouzirui/z-counsel/backend/internal/logger"
	"github.com/zhouzirui/z-counsel/backend/internal/model/persona"
	"github.com/zhouzirui/z-counsel/backend/internal/service/ai"
	"github.com/zhouzirui/z-counsel/backend/internal/service/chat"
	"github.com/zhouzirui/z-counsel/backend/internal/service/counsel"
	emotionservice "github.com/zhouzirui/z-counsel/backend/internal/service/emotion"
	profileservice "github.com/zhouzirui/z-counsel/backend/internal/service/profile"
	"github.com/zhouzirui/z-counsel/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLogger, err := logger.FromConfig(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	zap.ReplaceGlobals(zapLogger)

	if envErr != nil {
		zapLogger.Info("未找到 .env 文件，仅使用系统环境变量", zap.Error(envErr))
	}

	windowCfg, err := buildWindowConfig(cfg.Context)
	if err != nil {
		zapLogger.Fatal("上下文窗口配置无效", zap.Error(err))
	}

	stores := openStores(ctx, cfg.Store, zapLogger)
	defer stores.close()

	personaStore := persona.NewMemoryStore(persona.Seed())
	chatService, err := chat.NewService(windowCfg, stores.transcripts, zapLogger)
	if err != nil {
		zapLogger.Fatal("初始化会话服务失败", zap.Error(err))
	}

	// Initialize AI service
	var generator counsel.Generator
	var chatModel model.ChatModel
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI, zapLogger)
		if err != nil {
			zapLogger.Warn("AI 服务初始化失败，仅提供危机干预回复 - 请检查 Ark 模型相关环境变量", zap.Error(err))
		} else {
			generator = aiService
			chatModel = aiService.GetChatModel()
			zapLogger.Info("AI service initialized", zap.String("model", cfg.AI.Model))
		}
	} else {
		zapLogger.Info("Ark 凭证未配置，跳过 AI 功能初始化")
	}

	// LLM 情绪分类，不可用时回退到启发式分析
	emotionCfg := emotionservice.Config{
		Enabled:      cfg.AI.EmotionLLMEnabled,
		ContextLimit: cfg.AI.EmotionContextChars,
	}
	emotionSvc, err := emotionservice.NewService(ctx, chatModel, emotionCfg, zapLogger)
	if err != nil {
		zapLogger.Warn("情绪分析服务初始化失败，使用启发式分析", zap.Error(err))
		emotionSvc = nil
	} else if emotionSvc != nil && emotionSvc.Enabled() {
		zapLogger.Info("Emotion classifier service enabled")
	} else if emotionCfg.Enabled {
		zapLogger.Info("Emotion classifier requested but chat model unavailable, falling back to heuristics")
	}

	profileService := profileservice.NewService(stores.profiles, zapLogger)
	counselService := counsel.NewService(chatService, personaStore, generator, emotionSvc, profileService, crisis.NewTracker(), counsel.Config{
		RenderTurns:    cfg.Context.RenderTurns,
		CrisisKeywords: cfg.Context.CrisisKeywords,
	}, zapLogger)

	router := handler.NewRouter(handler.Dependencies{
		Personas:       personaStore,
		Chat:           chatService,
		Counsel:        counselService,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         zapLogger,
	})

	startServer(ctx, cfg.Server, router, zapLogger)
}

func buildWindowConfig(cfg config.ContextConfig) (contextwindow.Config, error) {
	windowCfg := cfg.WindowConfig()
	if cfg.Tokenizer == config.TokenizerTiktoken {
		est, err := contextwindow.NewTiktokenEstimator(cfg.TiktokenEncoding)
		if err != nil {
			return contextwindow.Config{}, err
		}
		windowCfg.Estimator = est
	}
	return windowCfg, windowCfg.Validate()
}

type storeSet struct {
	transcripts store.TranscriptStore
	profiles    store.ProfileStore
	close       func()
}

// openStores 配置了 Redis 时对话记录与画像共用一个连接，不可用则全部回退到内存。
func openStores(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) storeSet {
	memory := storeSet{
		transcripts: store.NewMemoryTranscriptStore(cfg.TranscriptLimit),
		profiles:    store.NewMemoryProfileStore(),
		close:       func() {},
	}
	if !cfg.RedisEnabled() {
		log.Info("使用内存存储", zap.Int("transcript_limit", cfg.TranscriptLimit))
		return memory
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := store.OpenRedis(pingCtx, cfg)
	if err != nil {
		log.Warn("Redis 不可用，回退到内存存储", zap.Error(err))
		return memory
	}

	log.Info("使用 Redis 存储",
		zap.String("addr", cfg.RedisAddr),
		zap.Duration("transcript_ttl", cfg.TranscriptTTL),
		zap.Duration("profile_ttl", cfg.ProfileTTL),
	)
	return storeSet{
		transcripts: store.NewRedisTranscriptStore(client, cfg.TranscriptTTL, cfg.TranscriptLimit),
		profiles:    store.NewRedisProfileStore(client, cfg.ProfileTTL),
		close:       func() { _ = client.Close() },
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("Z Counsel backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
