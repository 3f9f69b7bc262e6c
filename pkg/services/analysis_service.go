package services

import (
	"context"
	"fmt"
	"time"

	"price-elasticity-api/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// 実行ステータス
const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// SupportedAnalysisTypes 対応している分析タイプ
var SupportedAnalysisTypes = []string{
	models.AnalysisTypeElasticity,
	models.AnalysisTypeForecast,
	models.AnalysisTypeOptimization,
}

// AnalysisService 分析タイプに応じて各サービスを呼び出し、要約・メトリクス・モニタリングを記録する
type AnalysisService struct {
	elasticity   *ElasticityService
	forecast     *DemandForecastService
	optimization *PriceOptimizationService
	metrics      *AnalysisMetrics
	monitoring   *MonitoringService
}

// NewAnalysisService 新しい分析サービスを作成。metrics と monitoring は nil でもよい
func NewAnalysisService(metrics *AnalysisMetrics, monitoring *MonitoringService) *AnalysisService {
	return &AnalysisService{
		elasticity:   NewElasticityService(),
		forecast:     NewDemandForecastService(),
		optimization: NewPriceOptimizationService(),
		metrics:      metrics,
		monitoring:   monitoring,
	}
}

// Run 分析を1回実行する
func (s *AnalysisService) Run(ctx context.Context, analysisType string, table *models.Table, params models.AnalysisParams) (*models.AnalysisRun, error) {
	params = params.WithDefaults()
	run := &models.AnalysisRun{
		ID:           uuid.New().String(),
		AnalysisType: analysisType,
		Parameters:   params,
		StartedAt:    time.Now(),
	}

	log.Info().
		Str("run_id", run.ID).
		Str("type", analysisType).
		Int("rows", rowCount(table)).
		Msg("📊 分析を開始します")

	result, products, err := s.dispatch(ctx, analysisType, table, params)
	elapsed := time.Since(run.StartedAt)
	run.DurationMs = elapsed.Milliseconds()
	run.Products = products

	if err != nil {
		run.Status = RunStatusFailed
		s.record(run, elapsed, err)
		log.Error().Err(err).Str("run_id", run.ID).Str("type", analysisType).Msg("❌ 分析に失敗しました")
		return nil, err
	}

	run.Status = RunStatusCompleted
	run.Result = result
	run.Summary = GenerateSummary(analysisType, result)
	s.record(run, elapsed, nil)

	log.Info().
		Str("run_id", run.ID).
		Str("type", analysisType).
		Int("products", products).
		Int64("duration_ms", run.DurationMs).
		Msg("✅ 分析が完了しました")

	return run, nil
}

func (s *AnalysisService) dispatch(ctx context.Context, analysisType string, table *models.Table, params models.AnalysisParams) (interface{}, int, error) {
	switch analysisType {
	case models.AnalysisTypeElasticity:
		r, err := s.elasticity.EstimateElasticity(ctx, table, params)
		if err != nil {
			return nil, 0, err
		}
		return r, len(r.ElasticityByProduct), nil
	case models.AnalysisTypeForecast:
		r, err := s.forecast.Forecast(ctx, table, params)
		if err != nil {
			return nil, 0, err
		}
		return r, len(r.Forecast), nil
	case models.AnalysisTypeOptimization:
		r, err := s.optimization.OptimizePrices(ctx, table, params)
		if err != nil {
			return nil, 0, err
		}
		return r, len(r.OptimalPrices), nil
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedAnalysis, analysisType)
	}
}

func (s *AnalysisService) record(run *models.AnalysisRun, elapsed time.Duration, err error) {
	if s.metrics != nil {
		s.metrics.Observe(run.AnalysisType, run.Status, run.Products, elapsed)
	}
	if s.monitoring != nil {
		entry := AnalysisLogEntry{
			Timestamp:    run.StartedAt,
			RunID:        run.ID,
			AnalysisType: run.AnalysisType,
			Status:       run.Status,
			Products:     run.Products,
			Duration:     elapsed,
		}
		if err != nil {
			entry.Error = err.Error()
		}
		s.monitoring.LogAnalysis(entry)
	}
}

func rowCount(table *models.Table) int {
	if table == nil {
		return 0
	}
	return len(table.Rows)
}
