package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"price-elasticity-api/pkg/models"
)

// GenerateSummary 分析結果から人が読むための要約テキストを作成する
func GenerateSummary(analysisType string, result interface{}) string {
	switch r := result.(type) {
	case *models.ElasticityResult:
		return elasticitySummary(r)
	case *models.ForecastResult:
		return forecastRunSummary(r)
	case *models.OptimizationResult:
		return optimizationSummary(r)
	}
	return fmt.Sprintf("%s 分析の結果は詳細レポートを参照してください。", analysisType)
}

func elasticitySummary(r *models.ElasticityResult) string {
	var b strings.Builder
	b.WriteString("価格弾力性分析の結果:\n\n")
	b.WriteString("製品別の弾力性:\n")
	for _, product := range sortedKeys(r.ElasticityByProduct) {
		e := r.ElasticityByProduct[product]
		label := "非弾力的"
		if math.Abs(e) > 1 {
			label = "弾力的"
		}
		b.WriteString(fmt.Sprintf("- %s: %.2f（%s）\n", product, e, label))
	}
	b.WriteString(fmt.Sprintf("\n平均弾力性: %.2f", r.AverageElasticity))
	return b.String()
}

func forecastRunSummary(r *models.ForecastResult) string {
	var b strings.Builder
	b.WriteString(r.ForecastSummary)
	b.WriteString(fmt.Sprintf("全体の予測精度: %.2f%%", r.ForecastAccuracy))
	if r.DroppedRows > 0 {
		b.WriteString(fmt.Sprintf("\n※日付を解析できなかった %d 行は除外されました。", r.DroppedRows))
	}
	return b.String()
}

func optimizationSummary(r *models.OptimizationResult) string {
	var b strings.Builder
	b.WriteString("価格最適化の結果:\n\n")
	b.WriteString("利益を最大化する最適価格:\n")
	for _, product := range sortedKeys(r.OptimalPrices) {
		b.WriteString(fmt.Sprintf("- %s: %.2f\n", product, r.OptimalPrices[product]))
	}

	failed := 0
	for _, rec := range r.PriceRecommendations {
		if IsOptimizationFailure(rec) {
			failed++
		}
	}
	if failed > 0 {
		b.WriteString(fmt.Sprintf("\n※%d 製品は最適化が収束しなかったため現在の価格のままです。\n", failed))
	}

	b.WriteString(fmt.Sprintf("\n予想利益増加率: %.2f%%", r.ExpectedProfitIncrease))
	return b.String()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
