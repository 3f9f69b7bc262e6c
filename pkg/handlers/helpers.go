package handlers

import (
	"errors"
	"net/http"
	"strings"

	"price-elasticity-api/pkg/models"
	"price-elasticity-api/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// findIndex finds the index of the first candidate in a slice
func findIndex(slice []string, candidates ...string) int {
	for _, candidate := range candidates {
		for i, item := range slice {
			if strings.EqualFold(strings.TrimSpace(item), candidate) {
				return i
			}
		}
	}
	return -1
}

// 列名が指定されていない場合に試す別名（日本語ヘッダーのファイルに対応）
var (
	priceAliases    = []string{"price", "価格", "単価", "販売価格", "unit_price"}
	quantityAliases = []string{"quantity", "数量", "販売数", "sales", "qty"}
	productAliases  = []string{"product", "製品ID", "製品id", "製品コード", "商品ID", "商品コード", "product_id", "製品", "商品", "製品名", "商品名"}
	dateAliases     = []string{"date", "日付", "年月日", "販売日"}
)

// analysisParamsInput はリクエストで受け取る分析パラメータです。
// 未指定の項目はサーバー側のデフォルト値で補完されます。
type analysisParamsInput struct {
	PriceColumn     string  `json:"price_column"`
	QuantityColumn  string  `json:"quantity_column"`
	ProductColumn   string  `json:"product_column"`
	DateColumn      string  `json:"date_column"`
	CostColumn      string  `json:"cost_column"`
	ForecastPeriods int     `json:"forecast_periods"`
	RandomSeed      *uint64 `json:"random_seed"`
	Trees           int     `json:"trees"`
}

// resolve はデフォルト値に入力を上書きし、列名が未指定の役割はヘッダーから別名で探します。
func (in analysisParamsInput) resolve(base models.AnalysisParams, header []string) models.AnalysisParams {
	p := base

	pick := func(explicit string, current *string, aliases []string) {
		if explicit != "" {
			*current = explicit
			return
		}
		if idx := findIndex(header, *current); idx >= 0 {
			*current = header[idx]
			return
		}
		if idx := findIndex(header, aliases...); idx >= 0 {
			*current = header[idx]
		}
	}
	pick(in.PriceColumn, &p.PriceColumn, priceAliases)
	pick(in.QuantityColumn, &p.QuantityColumn, quantityAliases)
	pick(in.ProductColumn, &p.ProductColumn, productAliases)
	pick(in.DateColumn, &p.DateColumn, dateAliases)

	if in.CostColumn != "" {
		p.CostColumn = in.CostColumn
	}
	if in.ForecastPeriods > 0 {
		p.ForecastPeriods = in.ForecastPeriods
	}
	if in.RandomSeed != nil {
		p.RandomSeed = *in.RandomSeed
	}
	if in.Trees > 0 {
		p.Trees = in.Trees
	}
	return p.WithDefaults()
}

// respondError はエラーの種類に応じたステータスコードでエラーレスポンスを返します。
func respondError(c *gin.Context, err error) {
	var maxBytesErr *http.MaxBytesError
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &maxBytesErr):
		status = http.StatusRequestEntityTooLarge
	case services.IsClientError(err), errors.Is(err, services.ErrUnsupportedFormat):
		status = http.StatusBadRequest
	}

	if status >= 500 {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("❌ 分析リクエストの処理に失敗しました")
	} else {
		log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("⚠️ 分析リクエストが不正です")
	}

	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}
