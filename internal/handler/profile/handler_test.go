package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-counsel/backend/internal/model/profile"
	profileservice "github.com/zhouzirui/z-counsel/backend/internal/service/profile"
)

func setupRouter(t *testing.T) (*chi.Mux, *profileservice.Service) {
	t.Helper()
	svc := profileservice.NewService(nil, nil)
	r := chi.NewRouter()
	New(svc, nil).RegisterRoutes(r)
	return r, svc
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
	return resp
}

func TestGetProfile(t *testing.T) {
	r, svc := setupRouter(t)

	assert.Equal(t, http.StatusNotFound, get(r, "/profiles/u1").Code)

	_, err := svc.Record(context.Background(), "u1", profile.Record{Emotion: "anxious", Intensity: 0.5, Risk: "low", Topics: []string{"考试"}})
	require.NoError(t, err)

	resp := get(r, "/profiles/u1")
	require.Equal(t, http.StatusOK, resp.Code)
	var got struct {
		UserID       string   `json:"userId"`
		TotalChats   int      `json:"totalChats"`
		CommonTopics []string `json:"commonTopics"`
		Summary      string   `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, 1, got.TotalChats)
	assert.Equal(t, []string{"考试"}, got.CommonTopics)
	assert.Equal(t, "该用户已咨询1次。主要困扰领域：考试。", got.Summary)
}

func TestDeleteProfile(t *testing.T) {
	r, svc := setupRouter(t)
	_, err := svc.Record(context.Background(), "u1", profile.Record{Emotion: "calm", Risk: "low"})
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/profiles/u1", nil))
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/profiles/u1").Code)
}

func TestEmotionTrend(t *testing.T) {
	r, svc := setupRouter(t)
	ctx := context.Background()
	for _, e := range []string{"calm", "sad", "hopeless", "sad"} {
		_, err := svc.Record(ctx, "u1", profile.Record{Emotion: e, Intensity: 0.8, Risk: "low"})
		require.NoError(t, err)
	}

	resp := get(r, "/profiles/u1/emotions?limit=3")
	require.Equal(t, http.StatusOK, resp.Code)
	var trend profile.Trend
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &trend))
	assert.Len(t, trend.Points, 3)
	assert.Equal(t, profile.TrendConcern, trend.Analysis)
	assert.True(t, trend.RiskAlert)

	assert.Equal(t, http.StatusBadRequest, get(r, "/profiles/u1/emotions?limit=zero").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/profiles/nobody/emotions").Code)
}
