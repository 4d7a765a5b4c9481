package ui

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadscope/adapters/stats/backtest"
	"leadscope/adapters/stats/cascade"
	"leadscope/app"
	"leadscope/internal/metrics"
	"leadscope/internal/testkit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	recorder := metrics.New(reg)
	engine, err := cascade.New(cascade.DefaultConfig(), cascade.WithObserver(recorder))
	require.NoError(t, err)
	service := app.NewScanService(engine, backtest.NewBacktester(backtest.Config{}, zerolog.Nop()), zerolog.Nop(),
		cascade.WithObserver(recorder))
	return NewServer(service, reg, zerolog.Nop())
}

func post(t *testing.T, s *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Analyze(t *testing.T) {
	s := newTestServer(t)
	target := testkit.Ramp(50, 0, 1)
	candidate := testkit.Map(target, func(v float64) float64 { return 3*v - 2 })

	rec := post(t, s, "/api/v1/analyze", gin.H{"target": target, "candidate": candidate})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		RunID  string `json:"run_id"`
		Result struct {
			Status     string `json:"status"`
			Method     string `json:"method"`
			SignalType string `json:"signal_type"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.RunID)
	assert.Equal(t, "FOUND", body.Result.Status)
	assert.Equal(t, "RANK_CORR", body.Result.Method)
	assert.Equal(t, "PARALLEL", body.Result.SignalType)
}

func TestServer_ScanAndMetrics(t *testing.T) {
	s := newTestServer(t)
	target := testkit.Ramp(201, -1, 1)

	rec := post(t, s, "/api/v1/scan", gin.H{
		"target": target,
		"candidates": gin.H{
			"linear":  testkit.Map(target, func(v float64) float64 { return v + 4 }),
			"squared": testkit.Map(target, func(v float64) float64 { return v * v }),
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Ranked  []string `json:"ranked"`
		Summary struct {
			Found int `json:"found"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"linear", "squared"}, body.Ranked)
	assert.Equal(t, 2, body.Summary.Found)

	metricsRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, metricsRec.Code)
	assert.True(t, strings.Contains(metricsRec.Body.String(), "leadscope_pair_results_total"))
}

func TestServer_Backtest(t *testing.T) {
	s := newTestServer(t)
	target := testkit.Ramp(40, 0, 1)

	rec := post(t, s, "/api/v1/backtest", gin.H{"target": target, "candidate": target, "window_size": 30})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report backtest.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, backtest.StatusInsufficientData, report.Status)
}

func TestServer_ErrorMapping(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"malformed body", "/api/v1/analyze", "not an object", http.StatusBadRequest, "INVALID_INPUT"},
		{"missing candidate", "/api/v1/analyze", gin.H{"target": []float64{1, 2}}, http.StatusBadRequest, "INVALID_INPUT"},
		{"misaligned", "/api/v1/analyze", gin.H{"target": []float64{1, 2}, "candidate": []float64{1}}, http.StatusBadRequest, "INVALID_INPUT"},
		{"bad override", "/api/v1/analyze", gin.H{
			"target": []float64{1, 2, 3}, "candidate": []float64{1, 2, 3},
			"config": gin.H{"layer3_radius": 0},
		}, http.StatusBadRequest, "CONFIG_INVALID"},
		{"no window", "/api/v1/backtest", gin.H{"target": []float64{1}, "candidate": []float64{1}}, http.StatusBadRequest, "INVALID_INPUT"},
		{"no candidates", "/api/v1/scan", gin.H{"target": []float64{1}, "candidates": gin.H{}}, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, s, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestServer_RejectsOversizedRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	engine, err := cascade.New(cascade.DefaultConfig())
	require.NoError(t, err)
	service := app.NewScanService(engine, backtest.NewBacktester(backtest.Config{}, zerolog.Nop()), zerolog.Nop())
	s := NewServer(service, reg, zerolog.Nop(), WithLimits(Limits{
		MaxBodyBytes:    512,
		MaxSeriesLength: 40,
		MaxCandidates:   2,
	}))

	small := testkit.Ramp(20, 0, 19)
	short := testkit.Ramp(10, 0, 9)

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{"within limits", "/api/v1/analyze", gin.H{"target": small, "candidate": small}, http.StatusOK},
		{"series too long", "/api/v1/analyze", gin.H{"target": testkit.Ramp(50, 0, 49), "candidate": testkit.Ramp(50, 0, 49)},
			http.StatusRequestEntityTooLarge},
		{"too many candidates", "/api/v1/scan", gin.H{"target": short, "candidates": gin.H{"a": short, "b": short, "c": short}},
			http.StatusRequestEntityTooLarge},
		{"body too large", "/api/v1/analyze", gin.H{"target": testkit.Ramp(30, 0, 1), "candidate": testkit.Ramp(30, 0, 1)},
			http.StatusRequestEntityTooLarge},
		{"backtest series too long", "/api/v1/backtest", gin.H{"target": testkit.Ramp(45, 0, 44), "candidate": testkit.Ramp(45, 0, 44),
			"window_size": 5}, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, s, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusOK {
				return
			}

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "INVALID_INPUT", body.Code)
		})
	}
}

func TestDefaultLimits(t *testing.T) {
	limits := DefaultLimits()

	assert.Equal(t, int64(8<<20), limits.MaxBodyBytes)
	assert.Equal(t, 5000, limits.MaxSeriesLength)
	assert.Equal(t, 200, limits.MaxCandidates)
}
