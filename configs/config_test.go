package config

import (
	"os"
	"path/filepath"
	"testing"

	"price-elasticity-api/pkg/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// テスト用の環境変数を設定
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("API_KEY", "test-key")
	t.Setenv("RANDOM_SEED", "7")
	t.Setenv("FOREST_TREES", "25")
	t.Setenv("ANALYSIS_WORKERS", "8")
	t.Setenv("MAX_UPLOAD_MB", "5")
	t.Setenv("DEFAULT_FORECAST_PERIODS", "14")
	t.Setenv("ADMIN_USERNAME", "admin")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "test-key", cfg.APIKey)
	assert.Equal(t, uint64(7), cfg.RandomSeed)
	assert.Equal(t, 25, cfg.ForestTrees)
	assert.Equal(t, 8, cfg.AnalysisWorkers)
	assert.Equal(t, 5, cfg.MaxUploadMB)
	assert.Equal(t, 14, cfg.DefaultForecastPeriods)
	assert.Equal(t, "admin", cfg.AdminUsername)
}

func TestLoadConfigDefaults(t *testing.T) {
	// 環境変数をクリア
	vars := []string{
		"PORT", "ENVIRONMENT", "API_KEY", "LOG_LEVEL", "RANDOM_SEED", "FOREST_TREES",
		"ANALYSIS_WORKERS", "MAX_UPLOAD_MB", "DEFAULT_FORECAST_PERIODS",
	}
	for _, v := range vars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, uint64(42), cfg.RandomSeed)
	assert.Equal(t, 100, cfg.ForestTrees)
	assert.Equal(t, 4, cfg.AnalysisWorkers)
	assert.Equal(t, 10, cfg.MaxUploadMB)
	assert.Equal(t, 30, cfg.DefaultForecastPeriods)
}

func TestGetEnvIntFallsBackOnMalformed(t *testing.T) {
	t.Setenv("FOREST_TREES", "many")
	t.Setenv("ANALYSIS_WORKERS", "-3")

	cfg := LoadConfig()

	assert.Equal(t, 100, cfg.ForestTrees)
	assert.Equal(t, 4, cfg.AnalysisWorkers)
}

func TestDefaultParams(t *testing.T) {
	cfg := &Config{RandomSeed: 99, ForestTrees: 20, AnalysisWorkers: 3, DefaultForecastPeriods: 7}

	p := cfg.DefaultParams()

	assert.Equal(t, "price", p.PriceColumn)
	assert.Equal(t, "quantity", p.QuantityColumn)
	assert.Equal(t, uint64(99), p.RandomSeed)
	assert.Equal(t, 20, p.Trees)
	assert.Equal(t, 3, p.Workers)
	assert.Equal(t, 7, p.ForecastPeriods)
}

func TestParseAnalysisParams(t *testing.T) {
	data := []byte(`
price_column: 販売価格
quantity_column: 販売数
cost_column: 原価
forecast_periods: 14
`)

	p, err := ParseAnalysisParams(data, models.DefaultAnalysisParams())
	require.NoError(t, err)

	assert.Equal(t, "販売価格", p.PriceColumn)
	assert.Equal(t, "販売数", p.QuantityColumn)
	assert.Equal(t, "product", p.ProductColumn)
	assert.Equal(t, "date", p.DateColumn)
	assert.Equal(t, "原価", p.CostColumn)
	assert.Equal(t, 14, p.ForecastPeriods)
	assert.Equal(t, uint64(42), p.RandomSeed)
}

func TestParseAnalysisParams_Invalid(t *testing.T) {
	base := models.DefaultAnalysisParams()
	p, err := ParseAnalysisParams([]byte("forecast_periods: [1, 2"), base)
	assert.Error(t, err)
	assert.Equal(t, base, p)
}

func TestLoadAnalysisParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("random_seed: 123\ntrees: 50\n"), 0o600))

	p, err := LoadAnalysisParams(path, models.DefaultAnalysisParams())
	require.NoError(t, err)
	assert.Equal(t, uint64(123), p.RandomSeed)
	assert.Equal(t, 50, p.Trees)

	_, err = LoadAnalysisParams(filepath.Join(t.TempDir(), "missing.yaml"), models.DefaultAnalysisParams())
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	SetupLogger(&Config{LogLevel: "WARN"})
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	SetupLogger(&Config{LogLevel: "verbose"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
