package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	config "price-elasticity-api/configs"
	"price-elasticity-api/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:            "test",
		RandomSeed:             42,
		ForestTrees:            10,
		AnalysisWorkers:        2,
		MaxUploadMB:            1,
		DefaultForecastPeriods: 5,
		AdminUsername:          "admin",
		AdminPassword:          "secret",
	}
}

// newTestRouter は本番と同じ構成のルートをテスト用に組み立てます。
func newTestRouter(t *testing.T) (*gin.Engine, *AdminHandler, *services.MonitoringService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	monitoring := services.NewMonitoringService()
	analysis := services.NewAnalysisService(nil, monitoring)

	analysisHandler := NewAnalysisHandler(analysis, cfg)
	adminHandler := NewAdminHandler(cfg)
	monitoringHandler := NewMonitoringHandler(monitoring)

	r := gin.New()
	r.Use(monitoring.LoggingMiddleware())
	r.GET("/health", adminHandler.HealthCheck)

	v1 := r.Group("/api/v1")
	v1.GET("/analysis/settings", analysisHandler.GetSettings)
	v1.POST("/analysis/:type", adminHandler.MaintenanceGuard(), analysisHandler.RunFileAnalysis)
	v1.POST("/analysis/:type/data", adminHandler.MaintenanceGuard(), analysisHandler.RunDataAnalysis)
	v1.POST("/admin/maintenance/start", adminHandler.StartMaintenance)
	v1.POST("/admin/maintenance/stop", adminHandler.StopMaintenance)
	v1.GET("/admin/health-status", adminHandler.GetHealthStatus)
	v1.GET("/monitoring/logs", monitoringHandler.GetLogs)

	return r, adminHandler, monitoring
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

var elasticityRequest = gin.H{
	"columns": []string{"product", "price", "quantity"},
	"rows": [][]any{
		{"A", 10, 100}, {"A", 12, 80}, {"A", 14, 65}, {"A", 16, 50},
		{"B", 5, 40}, {"B", 6, 39}, {"B", 7, 38}, {"B", 8, 37},
	},
}

func TestRunDataAnalysis_Elasticity(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/analysis/elasticity/data", elasticityRequest)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]any)
	assert.Equal(t, "elasticity", data["analysis_type"])
	assert.Equal(t, services.RunStatusCompleted, data["status"])
	assert.NotEmpty(t, data["id"])
	assert.NotEmpty(t, data["summary"])

	result := data["result"].(map[string]any)
	byProduct := result["elasticity_by_product"].(map[string]any)
	require.Len(t, byProduct, 2)
	assert.Less(t, byProduct["A"].(float64), -1.0)
	assert.Greater(t, byProduct["B"].(float64), -1.0)
	assert.Contains(t, result["elastic_products"], "A")
	assert.Contains(t, result["inelastic_products"], "B")
}

func TestRunDataAnalysis_JapaneseHeaders(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := gin.H{
		"columns": []string{"製品名", "価格", "数量"},
		"rows": [][]any{
			{"りんご", 100, 50}, {"りんご", 120, 40}, {"りんご", 140, 30},
		},
	}
	w := doJSON(t, r, http.MethodPost, "/api/v1/analysis/elasticity/data", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decodeBody(t, w)["data"].(map[string]any)
	params := data["parameters"].(map[string]any)
	assert.Equal(t, "価格", params["price_column"])
	assert.Equal(t, "数量", params["quantity_column"])
	assert.Equal(t, "製品名", params["product_column"])

	byProduct := data["result"].(map[string]any)["elasticity_by_product"].(map[string]any)
	assert.Contains(t, byProduct, "りんご")
}

func TestRunDataAnalysis_ExplicitColumnsWin(t *testing.T) {
	in := analysisParamsInput{PriceColumn: "list_price"}
	p := in.resolve(testConfig().DefaultParams(), []string{"price", "list_price", "数量"})
	assert.Equal(t, "list_price", p.PriceColumn)
	assert.Equal(t, "数量", p.QuantityColumn)
	assert.Equal(t, "product", p.ProductColumn)
	assert.Equal(t, 10, p.Trees)
	assert.Equal(t, uint64(42), p.RandomSeed)
}

func TestRunDataAnalysis_Errors(t *testing.T) {
	r, _, _ := newTestRouter(t)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		errMsg string
	}{
		{
			name:   "未対応の分析タイプ",
			path:   "/api/v1/analysis/clustering/data",
			body:   elasticityRequest,
			status: http.StatusBadRequest,
			errMsg: "unsupported analysis type",
		},
		{
			name: "必須列なし",
			path: "/api/v1/analysis/elasticity/data",
			body: gin.H{
				"columns": []string{"product", "price"},
				"rows":    [][]any{{"A", 10}, {"A", 12}},
			},
			status: http.StatusBadRequest,
			errMsg: "quantity",
		},
		{
			name: "数値でない価格",
			path: "/api/v1/analysis/optimization/data",
			body: gin.H{
				"columns": []string{"price", "quantity"},
				"rows":    [][]any{{"abc", 10}},
			},
			status: http.StatusBadRequest,
			errMsg: "abc",
		},
		{
			name:   "rows なし",
			path:   "/api/v1/analysis/elasticity/data",
			body:   gin.H{"columns": []string{"price"}},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)

			body := decodeBody(t, w)
			assert.Equal(t, false, body["success"])
			if tt.errMsg != "" {
				assert.Contains(t, body["error"], tt.errMsg)
			}
		})
	}
}

func TestRunFileAnalysis_CSVUpload(t *testing.T) {
	r, _, _ := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "sales.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("price,quantity,cost\n8,120,4\n10,100,4\n12,80,4\n"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("parameters", `{"cost_column":"cost"}`))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/optimization", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decodeBody(t, w)["data"].(map[string]any)
	result := data["result"].(map[string]any)
	prices := result["optimal_prices"].(map[string]any)
	assert.InDelta(t, 12, prices["overall"].(float64), 1e-4)
}

func TestRunFileAnalysis_RejectsUnknownFormat(t *testing.T) {
	r, _, _ := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "sales.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("price quantity"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/elasticity", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported file format")
}

func TestRunFileAnalysis_MissingFile(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/elasticity", strings.NewReader(""))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSettings(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/analysis/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeBody(t, w)["data"].(map[string]any)
	assert.ElementsMatch(t, []any{"elasticity", "forecast", "optimization"}, data["analysis_types"])
	assert.Equal(t, float64(1), data["max_upload_mb"])

	defaults := data["default_parameters"].(map[string]any)
	assert.Equal(t, float64(5), defaults["forecast_periods"])
	assert.Equal(t, float64(42), defaults["random_seed"])
}

func TestMaintenanceMode(t *testing.T) {
	r, admin, _ := newTestRouter(t)
	creds := AdminCredentials{Username: "admin", Password: "secret"}

	w := doJSON(t, r, http.MethodPost, "/api/v1/admin/maintenance/start", AdminCredentials{Username: "admin", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, admin.IsMaintenanceMode())

	w = doJSON(t, r, http.MethodPost, "/api/v1/admin/maintenance/start", gin.H{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/admin/maintenance/start", creds)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, admin.IsMaintenanceMode())

	w = doJSON(t, r, http.MethodPost, "/api/v1/analysis/elasticity/data", elasticityRequest)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/admin/health-status", nil)
	assert.Equal(t, true, decodeBody(t, w)["isMaintenanceMode"])

	w = doJSON(t, r, http.MethodPost, "/api/v1/admin/maintenance/stop", creds)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, admin.IsMaintenanceMode())

	w = doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "price-elasticity-api")
}

func TestMaintenanceRequiresConfiguredCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	admin := NewAdminHandler(&config.Config{})
	r := gin.New()
	r.POST("/start", admin.StartMaintenance)

	w := doJSON(t, r, http.MethodPost, "/start", AdminCredentials{Username: "x", Password: "y"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, admin.IsMaintenanceMode())
}

func TestGetLogs(t *testing.T) {
	r, _, _ := newTestRouter(t)

	doJSON(t, r, http.MethodPost, "/api/v1/analysis/elasticity/data", elasticityRequest)
	doJSON(t, r, http.MethodPost, "/api/v1/analysis/clustering/data", elasticityRequest)

	w := doJSON(t, r, http.MethodGet, "/api/v1/monitoring/logs?period=1h", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	analyses := body["analyses"].(map[string]any)
	elasticity := analyses["elasticity"].(map[string]any)
	assert.Equal(t, float64(1), elasticity["runs"])
	assert.Equal(t, float64(0), elasticity["failures"])
	assert.Len(t, body["recentAnalyses"], 1)
}

func TestPeriodHours(t *testing.T) {
	assert.Equal(t, 1, periodHours("1h"))
	assert.Equal(t, 24, periodHours("24h"))
	assert.Equal(t, 168, periodHours("7d"))
	assert.Equal(t, 24, periodHours("1y"))
}

func TestRunFileAnalysis_TooLarge(t *testing.T) {
	r, _, _ := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "sales.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("price,quantity\n"))
	require.NoError(t, err)
	// MAX_UPLOAD_MB=1 を超える本文
	row := []byte("10,100\n")
	for written := 0; written <= 1<<20; written += len(row) {
		_, err = fw.Write(row)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/elasticity", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "request body too large")
}
