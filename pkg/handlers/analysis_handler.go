package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	config "price-elasticity-api/configs"
	"price-elasticity-api/pkg/models"
	"price-elasticity-api/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AnalysisHandler は価格分析APIのハンドラです。
type AnalysisHandler struct {
	service        *services.AnalysisService
	defaults       models.AnalysisParams
	maxUploadBytes int64
}

// NewAnalysisHandler は新しいAnalysisHandlerを生成します。
func NewAnalysisHandler(service *services.AnalysisService, cfg *config.Config) *AnalysisHandler {
	maxMB := cfg.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 10
	}
	return &AnalysisHandler{
		service:        service,
		defaults:       cfg.DefaultParams(),
		maxUploadBytes: int64(maxMB) << 20,
	}
}

// AnalysisDataRequest はJSONで表データを渡す分析リクエストです。
type AnalysisDataRequest struct {
	Parameters analysisParamsInput `json:"parameters"`
	Columns    []string            `json:"columns" binding:"required"`
	Rows       [][]any             `json:"rows" binding:"required"`
}

func (h *AnalysisHandler) analysisType(c *gin.Context) (string, bool) {
	analysisType := c.Param("type")
	if !slices.Contains(services.SupportedAnalysisTypes, analysisType) {
		respondError(c, fmt.Errorf("%w: %s", services.ErrUnsupportedAnalysis, analysisType))
		return "", false
	}
	return analysisType, true
}

// RunFileAnalysis はアップロードされたCSV/Excelファイルを分析します。
// multipart フォーム: file（必須）、parameters（JSON文字列、任意）
func (h *AnalysisHandler) RunFileAnalysis(c *gin.Context) {
	analysisType, ok := h.analysisType(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	file, fileHeader, err := c.Request.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "ファイルの取得に失敗しました。"})
		return
	}
	defer file.Close()

	var input analysisParamsInput
	if raw := c.PostForm("parameters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "parameters のJSONが不正です: " + err.Error()})
			return
		}
	}

	table, err := services.LoadTable(file, fileHeader.Filename)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Info().
		Str("file", fileHeader.Filename).
		Int("rows", len(table.Rows)).
		Strs("columns", table.Columns).
		Msg("📂 ファイルを読み込みました")

	h.run(c, analysisType, table, input)
}

// RunDataAnalysis はJSONで渡された表データを分析します。
func (h *AnalysisHandler) RunDataAnalysis(c *gin.Context) {
	analysisType, ok := h.analysisType(c)
	if !ok {
		return
	}

	var req AnalysisDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "リクエストの形式が不正です: " + err.Error()})
		return
	}

	table, err := services.TableFromRecords(req.Columns, req.Rows)
	if err != nil {
		respondError(c, err)
		return
	}

	h.run(c, analysisType, table, req.Parameters)
}

func (h *AnalysisHandler) run(c *gin.Context, analysisType string, table *models.Table, input analysisParamsInput) {
	params := input.resolve(h.defaults, table.Columns)

	run, err := h.service.Run(c.Request.Context(), analysisType, table, params)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    run,
	})
}

// GetSettings は分析のデフォルト設定と対応している分析タイプを返します。
func (h *AnalysisHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"analysis_types":     services.SupportedAnalysisTypes,
			"default_parameters": h.defaults,
			"supported_formats":  []string{".csv", ".xlsx"},
			"max_upload_mb":      h.maxUploadBytes >> 20,
		},
	})
}
