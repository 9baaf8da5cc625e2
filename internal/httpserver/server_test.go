package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiusdt/adsight/internal/config"
	"github.com/radiusdt/adsight/internal/insight"
	"github.com/radiusdt/adsight/internal/metrics"
	"github.com/radiusdt/adsight/internal/middleware"
	"github.com/radiusdt/adsight/internal/models"
)

type fakeAsker struct {
	got   insight.AskRequest
	calls int
}

func (f *fakeAsker) Ask(_ context.Context, req insight.AskRequest) *models.Result {
	f.calls++
	f.got = req
	sql := "SELECT SUM(spend) FROM video_ad_performance"
	return &models.Result{
		RequestID: req.RequestID,
		Success:   true,
		SQL:       &sql,
		Answer:    "You spent $150.",
		Goal:      models.GoalConversion,
		State:     "COMPLETE",
	}
}

type fakeCheck struct{ err error }

func (f fakeCheck) Health(context.Context) error { return f.err }

func testConfig() *config.Config {
	return &config.Config{
		Auth:    config.AuthConfig{SkipPaths: []string{"/health", "/metrics"}},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestServer(asker Asker, cfg *config.Config, checks map[string]HealthChecker) http.Handler {
	return NewServer(&Dependencies{
		Pipeline: asker,
		Checks:   checks,
		Config:   cfg,
		Metrics:  metrics.NewMetrics("test", prometheus.NewRegistry()),
	})
}

func TestHandleAsk(t *testing.T) {
	asker := &fakeAsker{}
	srv := newTestServer(asker, testConfig(), nil)

	body := `{"question":"  How much did we spend?  ","history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello","goal":"CONVERSION"}]}`
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "How much did we spend?", asker.got.Question)
	assert.Equal(t, "req-42", asker.got.RequestID)
	require.Len(t, asker.got.History, 2)
	assert.Equal(t, "CONVERSION", asker.got.History[1].Goal)

	var res models.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "req-42", res.RequestID)
	assert.Equal(t, models.GoalConversion, res.Goal)
	assert.Nil(t, res.Visualization)
}

func TestHandleAsk_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "question=hi"},
		{"missing question", `{"history":[]}`},
		{"blank question", `{"question":"   "}`},
		{"too long", `{"question":"` + strings.Repeat("a", maxQuestionLen+1) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asker := &fakeAsker{}
			rec := httptest.NewRecorder()
			newTestServer(asker, testConfig(), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, asker.calls)
		})
	}
}

func TestHandleAsk_TrimsHistory(t *testing.T) {
	asker := &fakeAsker{}
	history := make([]models.HistoryMessage, maxHistoryTurns+10)
	for i := range history {
		history[i] = models.HistoryMessage{Role: "user", Content: "q"}
	}
	history[len(history)-1].Content = "last"
	payload, err := json.Marshal(AskRequest{Question: "and now?", History: history})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	newTestServer(asker, testConfig(), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(string(payload))))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, asker.got.History, maxHistoryTurns)
	assert.Equal(t, "last", asker.got.History[maxHistoryTurns-1].Content)
}

func TestHandleAsk_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeAsker{}, testConfig(), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ask", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleAsk_RequiresAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []string{"secret"}
	asker := &fakeAsker{}
	srv := newTestServer(asker, cfg, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"hi"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, asker.calls)

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"hi"}`))
	req.Header.Set(middleware.AuthHeaderName, "secret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health is exempt from auth")
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeAsker{}, testConfig(), map[string]HealthChecker{"postgres": fakeCheck{}}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","components":{"postgres":"ok"}}`, rec.Body.String())
}

func TestHandleHealth_Degraded(t *testing.T) {
	checks := map[string]HealthChecker{
		"postgres": fakeCheck{},
		"redis":    fakeCheck{err: errors.New("connection refused")},
	}
	rec := httptest.NewRecorder()
	newTestServer(&fakeAsker{}, testConfig(), checks).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","components":{"postgres":"ok","redis":"unavailable"}}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	m.RecordRenderFallback()
	srv := NewServer(&Dependencies{Pipeline: &fakeAsker{}, Config: testConfig(), Metrics: m})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_render_fallbacks_total 1")
}
