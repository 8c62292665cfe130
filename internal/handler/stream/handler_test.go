package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-counsel/backend/internal/analysis/crisis"
	"github.com/zhouzirui/z-counsel/backend/internal/contextwindow"
	"github.com/zhouzirui/z-counsel/backend/internal/model/persona"
	aiservice "github.com/zhouzirui/z-counsel/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/z-counsel/backend/internal/service/chat"
	"github.com/zhouzirui/z-counsel/backend/internal/service/counsel"
)

type chunkGenerator struct {
	chunks []string
}

func (g *chunkGenerator) GenerateResponse(context.Context, aiservice.Request) (*schema.Message, error) {
	return schema.AssistantMessage(strings.Join(g.chunks, ""), nil), nil
}

func (g *chunkGenerator) StreamResponse(context.Context, aiservice.Request) (*schema.StreamReader[*schema.Message], error) {
	msgs := make([]*schema.Message, len(g.chunks))
	for i, c := range g.chunks {
		msgs[i] = schema.AssistantMessage(c, nil)
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func (g *chunkGenerator) StreamingEnabled() bool { return true }

func setup(t *testing.T, gen counsel.Generator) (*chi.Mux, *chatservice.Service, string) {
	t.Helper()
	chatSvc, err := chatservice.NewService(contextwindow.DefaultConfig(), nil, nil)
	require.NoError(t, err)
	session, err := chatSvc.CreateSession(context.Background(), "u1", "mindfulness-guide")
	require.NoError(t, err)

	counselSvc := counsel.NewService(chatSvc, persona.NewMemoryStore(persona.Seed()), gen, nil, nil, nil, counsel.Config{}, nil)
	r := chi.NewRouter()
	New(counselSvc, nil).RegisterRoutes(r)
	return r, chatSvc, session.ID
}

func readEvents(t *testing.T, body string) []StreamResponse {
	t.Helper()
	var events []StreamResponse
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev StreamResponse
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func streamPath(sessionID, message string) string {
	return "/stream/" + sessionID + "?message=" + url.QueryEscape(message)
}

func TestStreamEvents(t *testing.T) {
	r, chatSvc, sessionID := setup(t, &chunkGenerator{chunks: []string{"先", "深呼吸。"}})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, streamPath(sessionID, "考试前很紧张"), nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/event-stream", resp.Header().Get("Content-Type"))

	events := readEvents(t, resp.Body.String())
	kinds := make([]string, len(events))
	for i, ev := range events {
		kinds[i] = ev.Event
	}
	assert.Equal(t, []string{"start", "delta", "delta", "message", "emotion", "stats", "end"}, kinds)
	assert.Contains(t, events[0].Content, "正念引导者")
	assert.Equal(t, "先深呼吸。", events[3].Content)
	assert.True(t, events[6].Finished)

	stats, err := chatSvc.Statistics(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTurnsSeen)
}

func TestStreamCrisisWithoutModel(t *testing.T) {
	r, _, sessionID := setup(t, nil)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, streamPath(sessionID, "我想结束生命"), nil))
	require.Equal(t, http.StatusOK, resp.Code)

	events := readEvents(t, resp.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, string(crisis.High), events[0].Risk)
	assert.Equal(t, crisis.HighRiskResponse, events[1].Content)
}

func TestStreamRejects(t *testing.T) {
	r, _, sessionID := setup(t, nil)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stream/"+sessionID, nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, streamPath("missing", "你好"), nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, streamPath(sessionID, "你好"), nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
