package crisis

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-counsel/backend/internal/analysis/crisis"
)

func setupRouter(tracker *crisis.Tracker) *chi.Mux {
	r := chi.NewRouter()
	New(trackerSource{tracker}).RegisterRoutes(r)
	return r
}

type trackerSource struct{ t *crisis.Tracker }

func (s trackerSource) CrisisStats() crisis.Stats { return s.t.Stats() }

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
	return resp
}

func TestStats(t *testing.T) {
	tracker := crisis.NewTracker()
	tracker.Record(crisis.Detect("我想自杀"))
	r := setupRouter(tracker)

	resp := get(r, "/crisis/stats")
	require.Equal(t, http.StatusOK, resp.Code)
	var stats crisis.Stats
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Screened)
	assert.Equal(t, 1, stats.Interventions)
	assert.Equal(t, 1, stats.ByLevel[crisis.High])
}

func TestSelfCheckDoesNotCount(t *testing.T) {
	tracker := crisis.NewTracker()
	r := setupRouter(tracker)

	resp := get(r, "/crisis/test?text="+url.QueryEscape("我不想活了"))
	require.Equal(t, http.StatusOK, resp.Code)
	var got checkResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, crisis.High, got.Assessment.Level)
	assert.Equal(t, ActionIntervention, got.Action)
	assert.Equal(t, crisis.HighRiskResponse, got.Response)
	assert.Equal(t, 0, tracker.Stats().Screened)
}

func TestSelfCheckDefaultSample(t *testing.T) {
	resp := get(setupRouter(crisis.NewTracker()), "/crisis/test")
	require.Equal(t, http.StatusOK, resp.Code)

	var got checkResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, defaultSample, got.Input)
	assert.Equal(t, crisis.Medium, got.Assessment.Level)
	assert.Equal(t, ActionModelReply, got.Action)
	assert.Empty(t, got.Response)
}
