package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-counsel/backend/internal/handler/chat"
	"github.com/zhouzirui/z-counsel/backend/internal/handler/crisis"
	"github.com/zhouzirui/z-counsel/backend/internal/handler/live"
	"github.com/zhouzirui/z-counsel/backend/internal/handler/persona"
	"github.com/zhouzirui/z-counsel/backend/internal/handler/profile"
	"github.com/zhouzirui/z-counsel/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/z-counsel/backend/internal/middleware"
	personaModel "github.com/zhouzirui/z-counsel/backend/internal/model/persona"
	chatService "github.com/zhouzirui/z-counsel/backend/internal/service/chat"
	"github.com/zhouzirui/z-counsel/backend/internal/service/counsel"
	"github.com/zhouzirui/z-counsel/backend/pkg/utils"
)

// Dependencies 路由所需的服务集合
type Dependencies struct {
	Personas       personaModel.Store
	Chat           *chatService.Service
	Counsel        *counsel.Service
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(log.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":        "ok",
			"activeWindows": deps.Chat.ActiveWindows(),
			"modelEnabled":  deps.Counsel.ModelAvailable(),
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	personaHandler := persona.New(deps.Personas)
	chatHandler := chat.New(deps.Chat, deps.Counsel, deps.Personas, log)
	streamHandler := stream.New(deps.Counsel, log)
	liveHandler := live.New(deps.Chat, deps.Counsel, log)
	profileHandler := profile.New(deps.Counsel.Profiles(), log)
	crisisHandler := crisis.New(deps.Counsel)

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		liveHandler.RegisterRoutes(api)
		profileHandler.RegisterRoutes(api)
		crisisHandler.RegisterRoutes(api)
	})

	return r
}
