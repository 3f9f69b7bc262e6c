package services

import (
	"context"
	"fmt"
	"math"

	"price-elasticity-api/pkg/models"

	"github.com/rs/zerolog/log"
)

// ElasticityService 価格弾力性の推定サービス
type ElasticityService struct{}

// NewElasticityService 新しい弾力性推定サービスを作成
func NewElasticityService() *ElasticityService {
	return &ElasticityService{}
}

// EstimateElasticity 製品ごとに log(数量) を log(価格) に回帰し、傾きを弾力性として返す
func (s *ElasticityService) EstimateElasticity(ctx context.Context, table *models.Table, params models.AnalysisParams) (*models.ElasticityResult, error) {
	params = params.WithDefaults()

	ds, err := ResolveDataset(table, params, RolePrice, RoleQuantity)
	if err != nil {
		return nil, err
	}

	groups := ds.GroupByProduct()
	elasticities := make([]float64, len(groups))
	err = forEachGroup(ctx, groups, params.Workers, func(i int, g ProductGroup) error {
		e, err := productElasticity(g, params.QuantityColumn)
		if err != nil {
			return err
		}
		elasticities[i] = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &models.ElasticityResult{
		ElasticityByProduct: make(map[string]float64, len(groups)),
		ElasticProducts:     []string{},
		InelasticProducts:   []string{},
		Segmentation: models.ElasticitySegmentation{
			LowElasticity:    []string{},
			MediumElasticity: []string{},
			HighElasticity:   []string{},
		},
	}

	for i, g := range groups {
		e := elasticities[i]
		result.ElasticityByProduct[g.Product] = e
		if isElastic(e) {
			result.ElasticProducts = append(result.ElasticProducts, g.Product)
		} else {
			result.InelasticProducts = append(result.InelasticProducts, g.Product)
		}
	}
	result.AverageElasticity = calculateMean(elasticities)
	result.Segmentation = segmentElasticities(groups, elasticities)

	if ds.HasDate {
		byMonth, err := s.elasticityByMonth(ds, params.QuantityColumn)
		if err != nil {
			return nil, err
		}
		if len(byMonth) > 0 {
			result.ElasticityByMonth = byMonth
		}
	}

	log.Debug().
		Int("products", len(groups)).
		Float64("average", result.AverageElasticity).
		Msg("📉 弾力性推定完了")

	return result, nil
}

// elasticityByMonth 年月ごとに製品別弾力性を計算する。価格が1種類しかない製品×月はスキップ
func (s *ElasticityService) elasticityByMonth(ds *Dataset, quantityColumn string) (map[string]models.MonthlyElasticity, error) {
	months := ds.DistinctMonths()
	if len(months) <= 1 {
		return nil, nil
	}

	byMonth := make(map[string][]Observation, len(months))
	for _, o := range ds.Observations {
		if !o.HasDate {
			continue
		}
		key := monthKey(o.Date)
		byMonth[key] = append(byMonth[key], o)
	}

	out := make(map[string]models.MonthlyElasticity)
	for _, month := range months {
		monthly := models.MonthlyElasticity{Elasticities: make(map[string]float64)}
		var values []float64
		for _, g := range groupObservations(byMonth[month]) {
			if g.DistinctPrices() <= 1 {
				continue
			}
			e, err := productElasticity(g, quantityColumn)
			if err != nil {
				return nil, fmt.Errorf("%s の月別弾力性: %w", month, err)
			}
			monthly.Elasticities[g.Product] = e
			values = append(values, e)
		}
		if len(values) == 0 {
			continue
		}
		monthly.Average = calculateMean(values)
		out[month] = monthly
	}
	return out, nil
}

// productElasticity 1グループの弾力性。異なる価格が2つ未満なら 0
func productElasticity(g ProductGroup, quantityColumn string) (float64, error) {
	if g.DistinctPrices() < 2 {
		return 0, nil
	}

	logPrice := make([]float64, len(g.Observations))
	logQty := make([]float64, len(g.Observations))
	for i, o := range g.Observations {
		if o.Quantity <= 0 {
			return 0, &InvalidDataError{
				Column: quantityColumn,
				Row:    o.Row,
				Value:  fmt.Sprintf("%g", o.Quantity),
				Reason: fmt.Sprintf("製品 '%s' の弾力性計算には正の数量が必要です（対数が定義できません）", g.Product),
			}
		}
		logPrice[i] = math.Log(o.Price)
		logQty[i] = math.Log(o.Quantity)
	}

	fit, ok := fitLinear(logPrice, logQty)
	if !ok {
		return 0, nil
	}
	return fit.Slope, nil
}

// isElastic |e| > 1 なら弾力的
func isElastic(e float64) bool {
	return math.Abs(e) > 1
}

// segmentElasticities 33/66パーセンタイルで low/medium/high に分割する。境界上の値は下側に入る
func segmentElasticities(groups []ProductGroup, elasticities []float64) models.ElasticitySegmentation {
	seg := models.ElasticitySegmentation{
		LowElasticity:    []string{},
		MediumElasticity: []string{},
		HighElasticity:   []string{},
	}
	if len(elasticities) == 0 {
		return seg
	}
	seg.LowThreshold = percentile(elasticities, 33)
	seg.HighThreshold = percentile(elasticities, 66)

	for i, g := range groups {
		e := elasticities[i]
		switch {
		case e <= seg.LowThreshold:
			seg.LowElasticity = append(seg.LowElasticity, g.Product)
		case e <= seg.HighThreshold:
			seg.MediumElasticity = append(seg.MediumElasticity, g.Product)
		default:
			seg.HighElasticity = append(seg.HighElasticity, g.Product)
		}
	}
	return seg
}
