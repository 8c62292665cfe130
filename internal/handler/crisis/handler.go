package crisis

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-counsel/backend/internal/analysis/crisis"
	"github.com/zhouzirui/z-counsel/backend/pkg/utils"
)

const defaultSample = "我觉得活着没意思"

// 筛查后的处理方式
const (
	ActionIntervention = "intervention"
	ActionModelReply   = "model_reply"
)

// StatsSource 提供危机筛查统计，*counsel.Service 实现该接口。
type StatsSource interface {
	CrisisStats() crisis.Stats
}

// Handler 危机筛查统计与自检接口
type Handler struct {
	stats StatsSource
}

func New(stats StatsSource) *Handler {
	return &Handler{stats: stats}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/crisis/stats", h.handleStats)
	r.Get("/crisis/test", h.handleTest)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.stats.CrisisStats())
}

type checkResponse struct {
	Input      string            `json:"input"`
	Assessment crisis.Assessment `json:"assessment"`
	Action     string            `json:"action"`
	Response   string            `json:"response,omitempty"`
}

// handleTest 对一段文本做分级但不计入统计
func (h *Handler) handleTest(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("text"))
	if text == "" {
		text = defaultSample
	}

	a := crisis.Detect(text)
	resp := checkResponse{Input: text, Assessment: a, Action: ActionModelReply}
	if a.NeedsIntervention() {
		resp.Action = ActionIntervention
		resp.Response = crisis.HighRiskResponse
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}
