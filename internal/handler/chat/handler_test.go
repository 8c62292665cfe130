package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-counsel/backend/internal/analysis/crisis"
	"github.com/zhouzirui/z-counsel/backend/internal/contextwindow"
	"github.com/zhouzirui/z-counsel/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/z-counsel/backend/internal/service/chat"
	"github.com/zhouzirui/z-counsel/backend/internal/service/counsel"
)

func setupRouter(t *testing.T) (*chi.Mux, *chatservice.Service, persona.Store) {
	t.Helper()
	chatSvc, err := chatservice.NewService(contextwindow.DefaultConfig(), nil, nil)
	require.NoError(t, err)
	store := persona.NewMemoryStore(persona.Seed())
	counselSvc := counsel.NewService(chatSvc, store, nil, nil, nil, nil, counsel.Config{}, nil)
	handler := New(chatSvc, counselSvc, store, nil)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc, store
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, r http.Handler) string {
	t.Helper()
	resp := do(r, http.MethodPost, "/session", map[string]string{"personaId": "gentle-listener", "userId": "u1"})
	require.Equal(t, http.StatusCreated, resp.Code)

	var session struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &session))
	return session.ID
}

func TestCreateSessionValidPersona(t *testing.T) {
	r, _, store := setupRouter(t)
	resp := do(r, http.MethodPost, "/session", map[string]string{"personaId": store.List()[0].ID})
	assert.Equal(t, http.StatusCreated, resp.Code)
}

func TestCreateSessionInvalidPersona(t *testing.T) {
	r, _, _ := setupRouter(t)
	resp := do(r, http.MethodPost, "/session", map[string]string{"personaId": "non-existent"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateSessionDefaultsPersona(t *testing.T) {
	r, chatSvc, _ := setupRouter(t)
	resp := do(r, http.MethodPost, "/session", map[string]string{})
	require.Equal(t, http.StatusCreated, resp.Code)

	var body struct {
		ID        string `json:"id"`
		PersonaID string `json:"personaId"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, persona.DefaultID, body.PersonaID)

	_, err := chatSvc.GetSession(context.Background(), body.ID)
	assert.NoError(t, err)
}

func TestCreateSessionInvalidBody(t *testing.T) {
	r, _, _ := setupRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader("{"))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestTurnLifecycle(t *testing.T) {
	r, _, _ := setupRouter(t)
	id := createSession(t, r)

	resp := do(r, http.MethodPost, "/sessions/"+id+"/turns", map[string]any{
		"userMessage":  "最近压力很大",
		"aiResponse":   "可以说说是什么让你有压力吗？",
		"emotionScore": 0.5,
		"keywords":     []string{"压力"},
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	var out contextwindow.Outcome
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, uint64(1), out.Seq)
	assert.Positive(t, out.Tokens)

	resp = do(r, http.MethodGet, "/sessions/"+id+"/context?maxTurns=3", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var rendered contextwindow.Rendered
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &rendered))
	assert.Equal(t, 1, rendered.Turns)
	assert.Contains(t, rendered.Text, "用户：最近压力很大")

	resp = do(r, http.MethodGet, "/sessions/"+id+"/stats", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var stats contextwindow.Statistics
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalTurnsSeen)
	assert.Equal(t, 128000, stats.MaxTokens)

	resp = do(r, http.MethodGet, "/sessions/"+id+"/transcript", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var transcript []map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &transcript))
	assert.Len(t, transcript, 2)

	resp = do(r, http.MethodDelete, "/sessions/"+id+"/context", nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = do(r, http.MethodGet, "/sessions/"+id+"/stats", nil)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stats))
	assert.Zero(t, stats.TotalTurnsSeen)

	resp = do(r, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = do(r, http.MethodGet, "/sessions/"+id+"/stats", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestContextRejectsBadMaxTurns(t *testing.T) {
	r, _, _ := setupRouter(t)
	id := createSession(t, r)

	resp := do(r, http.MethodGet, "/sessions/"+id+"/context?maxTurns=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(r, http.MethodGet, "/sessions/"+id+"/context?maxTurns=0", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"text":""`)
}

func TestUnknownSessionIs404(t *testing.T) {
	r, _, _ := setupRouter(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/sessions/missing/context"},
		{http.MethodGet, "/sessions/missing/stats"},
		{http.MethodDelete, "/sessions/missing/context"},
		{http.MethodGet, "/sessions/missing/transcript"},
		{http.MethodDelete, "/sessions/missing"},
	} {
		resp := do(r, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, resp.Code, tc.method+" "+tc.path)
	}

	resp := do(r, http.MethodPost, "/sessions/missing/turns", map[string]string{"userMessage": "hi"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAskWithoutModel(t *testing.T) {
	r, _, _ := setupRouter(t)
	id := createSession(t, r)

	resp := do(r, http.MethodPost, "/ask", map[string]string{"sessionId": id, "query": "今天心情一般"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	resp = do(r, http.MethodPost, "/ask", map[string]string{"sessionId": id, "query": ""})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAskCrisisShortCircuit(t *testing.T) {
	r, _, _ := setupRouter(t)
	id := createSession(t, r)

	resp := do(r, http.MethodPost, "/ask", map[string]string{"sessionId": id, "query": "我真的想死"})
	require.Equal(t, http.StatusOK, resp.Code)

	var result counsel.Result
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Equal(t, crisis.HighRiskResponse, result.Answer)
	assert.Equal(t, crisis.High, result.Risk.Level)
	assert.Equal(t, 1, result.Statistics.TotalTurnsSeen)
}

func TestSaveMessageUnknownSession(t *testing.T) {
	r, _, _ := setupRouter(t)
	resp := do(r, http.MethodPost, "/messages", map[string]string{"sessionId": "missing", "content": "hi"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
