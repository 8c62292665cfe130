package profile

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-counsel/backend/internal/model/profile"
	profileservice "github.com/zhouzirui/z-counsel/backend/internal/service/profile"
	"github.com/zhouzirui/z-counsel/backend/pkg/utils"
)

const defaultTrendLimit = 20

// Handler 来访者画像与情绪趋势接口
type Handler struct {
	profiles *profileservice.Service
	logger   *zap.Logger
}

func New(profiles *profileservice.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{profiles: profiles, logger: logger}
}

// RegisterRoutes 注册画像相关路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/profiles/{userID}", func(r chi.Router) {
		r.Get("/", h.handleGetProfile)
		r.Delete("/", h.handleDeleteProfile)
		r.Get("/emotions", h.handleEmotionTrend)
	})
}

type profileResponse struct {
	profile.Profile
	Summary string `json:"summary"`
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.respondLoadError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, profileResponse{Profile: p, Summary: p.Summary()})
}

func (h *Handler) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.profiles.Delete(r.Context(), chi.URLParam(r, "userID")); err != nil {
		h.logger.Error("delete profile failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete profile")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleEmotionTrend(w http.ResponseWriter, r *http.Request) {
	limit := defaultTrendLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	trend, err := h.profiles.Trend(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		h.respondLoadError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, trend)
}

func (h *Handler) respondLoadError(w http.ResponseWriter, err error) {
	if errors.Is(err, profileservice.ErrProfileNotFound) {
		utils.RespondError(w, http.StatusNotFound, "profile not found")
		return
	}
	h.logger.Error("load profile failed", zap.Error(err))
	utils.RespondError(w, http.StatusInternalServerError, "failed to load profile")
}
