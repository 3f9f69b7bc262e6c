package config

import (
	"os"
	"strconv"

	"price-elasticity-api/pkg/models"
)

// Config holds the application configuration
type Config struct {
	Port                   string
	Environment            string
	APIKey                 string
	LogLevel               string
	RandomSeed             uint64
	ForestTrees            int
	AnalysisWorkers        int
	MaxUploadMB            int
	DefaultForecastPeriods int
	AdminUsername          string
	AdminPassword          string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:                   getEnv("PORT", "8080"),
		Environment:            getEnv("ENVIRONMENT", "development"),
		APIKey:                 getEnv("API_KEY", ""),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		RandomSeed:             uint64(getEnvInt("RANDOM_SEED", 42)),
		ForestTrees:            getEnvInt("FOREST_TREES", 100),
		AnalysisWorkers:        getEnvInt("ANALYSIS_WORKERS", 4),
		MaxUploadMB:            getEnvInt("MAX_UPLOAD_MB", 10),
		DefaultForecastPeriods: getEnvInt("DEFAULT_FORECAST_PERIODS", 30),
		AdminUsername:          getEnv("ADMIN_USERNAME", ""),
		AdminPassword:          getEnv("ADMIN_PASSWORD", ""),
	}
}

// IsProduction 本番環境かどうか
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DefaultParams 環境設定を反映した分析パラメータのデフォルト値
func (c *Config) DefaultParams() models.AnalysisParams {
	p := models.DefaultAnalysisParams()
	p.RandomSeed = c.RandomSeed
	if c.ForestTrees > 0 {
		p.Trees = c.ForestTrees
	}
	if c.AnalysisWorkers > 0 {
		p.Workers = c.AnalysisWorkers
	}
	if c.DefaultForecastPeriods > 0 {
		p.ForecastPeriods = c.DefaultForecastPeriods
	}
	return p
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable, falling back to the default when unset or malformed
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}
