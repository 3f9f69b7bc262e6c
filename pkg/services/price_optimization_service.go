package services

import (
	"context"
	"fmt"
	"math"

	"price-elasticity-api/pkg/models"

	"github.com/rs/zerolog/log"
)

// 推奨文で「維持」とみなす価格変化率（%）
const keepPriceThresholdPct = 0.05

// PriceOptimizationService 利益最大化の価格最適化サービス
type PriceOptimizationService struct {
	optimizerConfig OptimizerConfig
}

// NewPriceOptimizationService 新しい価格最適化サービスを作成
func NewPriceOptimizationService() *PriceOptimizationService {
	return &PriceOptimizationService{optimizerConfig: DefaultOptimizerConfig()}
}

// groupOptimum 1グループの最適化結果と利益・売上の集計値
type groupOptimum struct {
	rec              models.PriceRecommendation
	currentProfit    float64
	optimizedProfit  float64
	currentRevenue   float64
	optimizedRevenue float64
}

// OptimizePrices 製品ごとに数量 = a + b×価格 を当てはめ、(価格 − コスト)×数量 を最大化する価格を探す
func (s *PriceOptimizationService) OptimizePrices(ctx context.Context, table *models.Table, params models.AnalysisParams) (*models.OptimizationResult, error) {
	params = params.WithDefaults()

	ds, err := ResolveDataset(table, params, RolePrice, RoleQuantity)
	if err != nil {
		return nil, err
	}
	if params.CostColumn != "" && !ds.HasCost {
		log.Warn().Str("column", params.CostColumn).Msg("⚠️ コスト列が見つからないためコスト0で計算します")
	}

	groups := ds.GroupByProduct()
	optima := make([]groupOptimum, len(groups))
	err = forEachGroup(ctx, groups, params.Workers, func(i int, g ProductGroup) error {
		optima[i] = s.optimizeGroup(g)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &models.OptimizationResult{
		OptimalPrices:        make(map[string]float64, len(groups)),
		PriceRecommendations: make([]models.PriceRecommendation, 0, len(groups)),
	}

	var currentProfit, optimizedProfit, currentRevenue, optimizedRevenue float64
	for _, o := range optima {
		result.OptimalPrices[o.rec.Product] = o.rec.OptimalPrice
		result.PriceRecommendations = append(result.PriceRecommendations, o.rec)
		currentProfit += o.currentProfit
		optimizedProfit += o.optimizedProfit
		currentRevenue += o.currentRevenue
		optimizedRevenue += o.optimizedRevenue
	}

	// 現状の合計が 0 以下なら変化率は 0 とする
	if profit := safePercentChange(currentProfit, optimizedProfit); currentProfit > 0 && !profit.Degenerate {
		result.ExpectedProfitIncrease = profit.Value
	}
	if revenue := safePercentChange(currentRevenue, optimizedRevenue); currentRevenue > 0 && !revenue.Degenerate {
		result.ExpectedRevenueChange = revenue.Value
	}

	log.Debug().
		Int("products", len(groups)).
		Float64("profit_increase", result.ExpectedProfitIncrease).
		Msg("💰 価格最適化完了")

	return result, nil
}

// optimizeGroup 1グループの最適価格を求める。
// 価格が1種類・最適点で需要が負・最適化失敗の場合は現状の価格と数量をそのまま返す
func (s *PriceOptimizationService) optimizeGroup(g ProductGroup) groupOptimum {
	currentPrice := calculateMean(g.Prices())
	currentQuantity := calculateMean(g.Quantities())
	cost := calculateMean(g.Costs())

	optimalPrice, expectedQuantity := currentPrice, currentQuantity
	status := models.RecommendationOptimized
	evaluations := 0

	fit, ok := fitLinear(g.Prices(), g.Quantities())
	switch {
	case g.DistinctPrices() < 2 || !ok:
		status = models.RecommendationInsufficientPrices
	default:
		// 予測数量が負になる価格帯では売れないものとして利益 0
		objective := func(price float64) float64 {
			return (price - cost) * clampNonNegative(fit.Predict(price)).Value
		}

		res, err := NewBoundedMaximizer(s.optimizerConfig).Maximize(objective, currentPrice)
		evaluations = res.Evaluations
		if err != nil || !res.Converged {
			status = models.RecommendationOptimizationFailed
			log.Warn().Err(err).Str("product", g.Product).Int("evaluations", res.Evaluations).Msg("⚠️ 価格最適化が収束しませんでした。現在の価格を維持します")
			break
		}
		if demand := clampNonNegative(fit.Predict(res.X)); demand.Degenerate {
			status = models.RecommendationNegativeDemand
		} else {
			optimalPrice = res.X
			expectedQuantity = demand.Value
		}
	}

	priceChange := safePercentChange(currentPrice, optimalPrice)
	quantityChange := safePercentChange(currentQuantity, expectedQuantity)

	rec := models.PriceRecommendation{
		Product:               g.Product,
		CurrentPrice:          currentPrice,
		OptimalPrice:          optimalPrice,
		PriceChangePercent:    priceChange.Value,
		CurrentQuantity:       currentQuantity,
		ExpectedQuantity:      expectedQuantity,
		QuantityChangePercent: quantityChange.Value,
		UnitCost:              cost,
		Status:                status,
		OptimizerEvaluations:  evaluations,
	}
	if quantityChange.Degenerate {
		rec.Degenerate = append(rec.Degenerate, models.DegenerateQuantityChange)
	}
	rec.Recommendation = recommendationText(rec)

	return groupOptimum{
		rec:              rec,
		currentProfit:    (currentPrice - cost) * currentQuantity,
		optimizedProfit:  (optimalPrice - cost) * expectedQuantity,
		currentRevenue:   currentPrice * currentQuantity,
		optimizedRevenue: optimalPrice * expectedQuantity,
	}
}

// recommendationText 価格変更の方向と幅を示す推奨文
func recommendationText(rec models.PriceRecommendation) string {
	change := rec.PriceChangePercent
	switch {
	case rec.Status == models.RecommendationOptimizationFailed:
		return "最適価格を算出できなかったため、現在の価格を維持することを推奨します。"
	case math.Abs(change) < keepPriceThresholdPct:
		return fmt.Sprintf("現在の価格（%.2f）を維持することを推奨します。", rec.CurrentPrice)
	case change > 0:
		return fmt.Sprintf("利益を最大化するため、価格を%.1f%%引き上げることを推奨します。", math.Abs(change))
	default:
		return fmt.Sprintf("利益を最大化するため、価格を%.1f%%引き下げることを推奨します。", math.Abs(change))
	}
}

// IsOptimizationFailure 推奨が最適化失敗によるフォールバックかどうか
func IsOptimizationFailure(rec models.PriceRecommendation) bool {
	return rec.Status == models.RecommendationOptimizationFailed
}
