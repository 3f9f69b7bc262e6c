package services

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AnalysisMetrics は分析実行のPrometheusメトリクスを保持します。
// グローバルレジストリではなく専用レジストリに登録するため、複数インスタンスを作成できます。
type AnalysisMetrics struct {
	registry *prometheus.Registry

	Duration *prometheus.HistogramVec
	Runs     *prometheus.CounterVec
	Products *prometheus.HistogramVec
}

// NewAnalysisMetrics は新しいメトリクスレジストリを作成します。
func NewAnalysisMetrics() *AnalysisMetrics {
	m := &AnalysisMetrics{
		registry: prometheus.NewRegistry(),

		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricing_analysis_duration_seconds",
				Help:    "Duration of each analysis run in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"type", "status"},
		),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_analysis_runs_total",
				Help: "Total number of analysis runs by type and status",
			},
			[]string{"type", "status"},
		),

		Products: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricing_analysis_products",
				Help:    "Number of product groups per analysis run",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"type"},
		),
	}

	m.registry.MustRegister(m.Duration, m.Runs, m.Products)
	return m
}

// Observe は1回の分析実行を記録します。
func (m *AnalysisMetrics) Observe(analysisType, status string, products int, elapsed time.Duration) {
	m.Duration.WithLabelValues(analysisType, status).Observe(elapsed.Seconds())
	m.Runs.WithLabelValues(analysisType, status).Inc()
	if products > 0 {
		m.Products.WithLabelValues(analysisType).Observe(float64(products))
	}
}

// Handler は /metrics 用のHTTPハンドラを返します。
func (m *AnalysisMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
