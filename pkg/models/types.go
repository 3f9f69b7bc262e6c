package models

import "time"

// 分析タイプ
const (
	AnalysisTypeElasticity   = "elasticity"
	AnalysisTypeForecast     = "forecast"
	AnalysisTypeOptimization = "optimization"
)

// OverallProductKey 製品列がない場合に全体を1製品として扱うキー
const OverallProductKey = "overall"

// Table アップロードされた表形式データ（ヘッダー + データ行）
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// HasColumn 指定した列名が存在するか
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// ColumnIndex 列名のインデックスを返す（存在しない場合は -1）
func (t *Table) ColumnIndex(name string) int {
	if name == "" {
		return -1
	}
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// AnalysisParams 分析パラメータ（列名の上書き、予測期間、乱数シード）
type AnalysisParams struct {
	PriceColumn     string `json:"price_column" yaml:"price_column"`
	QuantityColumn  string `json:"quantity_column" yaml:"quantity_column"`
	ProductColumn   string `json:"product_column" yaml:"product_column"`
	DateColumn      string `json:"date_column" yaml:"date_column"`
	CostColumn      string `json:"cost_column,omitempty" yaml:"cost_column,omitempty"`
	ForecastPeriods int    `json:"forecast_periods" yaml:"forecast_periods"`
	RandomSeed      uint64 `json:"random_seed" yaml:"random_seed"`
	Trees           int    `json:"trees,omitempty" yaml:"trees,omitempty"`
	Workers         int    `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// DefaultAnalysisParams デフォルトの分析パラメータ
func DefaultAnalysisParams() AnalysisParams {
	return AnalysisParams{
		PriceColumn:     "price",
		QuantityColumn:  "quantity",
		ProductColumn:   "product",
		DateColumn:      "date",
		ForecastPeriods: 30,
		RandomSeed:      42,
		Trees:           100,
		Workers:         1,
	}
}

// WithDefaults 未指定の項目をデフォルト値で補完したコピーを返す
func (p AnalysisParams) WithDefaults() AnalysisParams {
	d := DefaultAnalysisParams()
	if p.PriceColumn == "" {
		p.PriceColumn = d.PriceColumn
	}
	if p.QuantityColumn == "" {
		p.QuantityColumn = d.QuantityColumn
	}
	if p.ProductColumn == "" {
		p.ProductColumn = d.ProductColumn
	}
	if p.DateColumn == "" {
		p.DateColumn = d.DateColumn
	}
	if p.ForecastPeriods <= 0 {
		p.ForecastPeriods = d.ForecastPeriods
	}
	if p.Trees <= 0 {
		p.Trees = d.Trees
	}
	if p.Workers <= 0 {
		p.Workers = d.Workers
	}
	return p
}

// MonthlyElasticity 月別の製品別弾力性
type MonthlyElasticity struct {
	Elasticities map[string]float64 `json:"elasticities"`
	Average      float64            `json:"average"`
}

// ElasticitySegmentation 弾力性の三分位セグメント
type ElasticitySegmentation struct {
	LowElasticity    []string `json:"low_elasticity"`
	MediumElasticity []string `json:"medium_elasticity"`
	HighElasticity   []string `json:"high_elasticity"`
	LowThreshold     float64  `json:"low_threshold"`
	HighThreshold    float64  `json:"high_threshold"`
}

// ElasticityResult 価格弾力性分析の結果
type ElasticityResult struct {
	ElasticityByProduct map[string]float64           `json:"elasticity_by_product"`
	AverageElasticity   float64                      `json:"average_elasticity"`
	ElasticProducts     []string                     `json:"elastic_products"`
	InelasticProducts   []string                     `json:"inelastic_products"`
	Segmentation        ElasticitySegmentation       `json:"segmentation"`
	ElasticityByMonth   map[string]MonthlyElasticity `json:"elasticity_by_month,omitempty"`
}

// ScenarioValues 3つの価格シナリオ（現行・+5%・-5%）の値
type ScenarioValues struct {
	CurrentPrice   float64 `json:"current_price"`
	IncreasedPrice float64 `json:"increased_price"`
	DecreasedPrice float64 `json:"decreased_price"`
}

// ForecastPeriod 予測期間1日分
type ForecastPeriod struct {
	Period      int            `json:"period"`
	Date        string         `json:"date"`
	Prices      ScenarioValues `json:"prices"`
	Predictions ScenarioValues `json:"predictions"`
}

// ProductForecast 製品別の予測結果
type ProductForecast struct {
	Periods            []ForecastPeriod   `json:"periods"`
	Accuracy           float64            `json:"accuracy"`
	FeatureImportance  map[string]float64 `json:"feature_importance"`
	TrainSize          int                `json:"train_size"`
	TestSize           int                `json:"test_size"`
	Trend              string             `json:"trend"`
	TrendChangePercent float64            `json:"trend_change_percent"`
	ScenarioElasticity float64            `json:"scenario_elasticity"`
	HighSensitivity    bool               `json:"high_sensitivity"`

	// 計算できず代替値（0）になった項目名
	Degenerate []string `json:"degenerate,omitempty"`
}

// 代替値になった項目（ProductForecast.Degenerate / PriceRecommendation.Degenerate）
const (
	DegenerateAccuracy           = "accuracy"
	DegenerateTrend              = "trend_change_percent"
	DegenerateScenarioElasticity = "scenario_elasticity"
	DegenerateQuantityChange     = "quantity_change_percent"
)

// ForecastResult 需要予測の結果
type ForecastResult struct {
	Forecast         map[string]ProductForecast `json:"forecast"`
	ForecastAccuracy float64                    `json:"forecast_accuracy"`
	ForecastSummary  string                     `json:"forecast_summary"`
	DroppedRows      int                        `json:"dropped_rows"`
}

// 推奨ステータス
const (
	RecommendationOptimized          = "optimized"
	RecommendationInsufficientPrices = "insufficient_price_variation"
	RecommendationNegativeDemand     = "negative_demand"
	RecommendationOptimizationFailed = "optimization_failed"
)

// PriceRecommendation 製品別の価格推奨
type PriceRecommendation struct {
	Product               string  `json:"product"`
	CurrentPrice          float64 `json:"current_price"`
	OptimalPrice          float64 `json:"optimal_price"`
	PriceChangePercent    float64 `json:"price_change_percent"`
	CurrentQuantity       float64 `json:"current_quantity"`
	ExpectedQuantity      float64 `json:"expected_quantity"`
	QuantityChangePercent float64 `json:"quantity_change_percent"`
	UnitCost              float64 `json:"unit_cost"`
	Status                string  `json:"status"`
	Recommendation        string  `json:"recommendation"`
	OptimizerEvaluations  int     `json:"optimizer_evaluations,omitempty"`

	// 計算できず代替値（0）になった項目名
	Degenerate []string `json:"degenerate,omitempty"`
}

// OptimizationResult 価格最適化の結果
type OptimizationResult struct {
	OptimalPrices          map[string]float64    `json:"optimal_prices"`
	ExpectedProfitIncrease float64               `json:"expected_profit_increase"`
	ExpectedRevenueChange  float64               `json:"expected_revenue_change"`
	PriceRecommendations   []PriceRecommendation `json:"price_recommendations"`
}

// AnalysisRun 1回の分析実行の記録（結果 + 要約）
type AnalysisRun struct {
	ID           string         `json:"id"`
	AnalysisType string         `json:"analysis_type"`
	Status       string         `json:"status"`
	Parameters   AnalysisParams `json:"parameters"`
	Result       interface{}    `json:"result"`
	Summary      string         `json:"summary"`
	Products     int            `json:"products"`
	StartedAt    time.Time      `json:"started_at"`
	DurationMs   int64          `json:"duration_ms"`
}
