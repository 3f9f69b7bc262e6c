package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	config "price-elasticity-api/configs"
	"price-elasticity-api/pkg/server"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// テスト環境の設定
	gin.SetMode(gin.TestMode)

	// テスト実行
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                   "0",
		Environment:            "test",
		APIKey:                 "test-key",
		LogLevel:               "error",
		RandomSeed:             42,
		ForestTrees:            10,
		AnalysisWorkers:        2,
		MaxUploadMB:            1,
		DefaultForecastPeriods: 5,
	}
}

func serve(r http.Handler, method, path, apiKey string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-KEY", apiKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	r := server.NewRouter(testConfig())

	w := serve(r, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), "price-elasticity-api")
}

func TestAPIKeyRequired(t *testing.T) {
	r := server.NewRouter(testConfig())

	w := serve(r, http.MethodGet, "/api/v1/analysis/settings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/api/v1/analysis/settings", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/api/v1/analysis/settings", "test-key", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyDisabledWhenUnset(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""
	r := server.NewRouter(cfg)

	w := serve(r, http.MethodGet, "/api/v1/analysis/settings", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsAfterAnalysis(t *testing.T) {
	r := server.NewRouter(testConfig())

	body := []byte(`{"columns":["product","price","quantity"],"rows":[["A",10,100],["A",12,80],["A",14,65]]}`)
	w := serve(r, http.MethodPost, "/api/v1/analysis/elasticity/data", "test-key", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	metrics := w.Body.String()
	assert.Contains(t, metrics, `pricing_analysis_runs_total{status="completed",type="elasticity"} 1`)
	assert.Contains(t, metrics, "pricing_analysis_duration_seconds_bucket")
	assert.Contains(t, metrics, `pricing_analysis_products_count{type="elasticity"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	r := server.NewRouter(testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analysis/settings", nil)
	req.Header.Set("Origin", "https://frontend.example.org")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "X-API-KEY")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
