package server

import (
	"net/http"

	config "price-elasticity-api/configs"
	"price-elasticity-api/pkg/handlers"
	"price-elasticity-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// NewRouter はサービスとハンドラーを初期化し、すべてのルートを登録したGinエンジンを返します。
func NewRouter(cfg *config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	// サービスの初期化
	monitoringService := services.NewMonitoringService()
	metrics := services.NewAnalysisMetrics()
	analysisService := services.NewAnalysisService(metrics, monitoringService)

	// ハンドラーの初期化
	analysisHandler := handlers.NewAnalysisHandler(analysisService, cfg)
	adminHandler := handlers.NewAdminHandler(cfg)
	monitoringHandler := handlers.NewMonitoringHandler(monitoringService)

	// ミドルウェアの登録
	r.Use(monitoringService.LoggingMiddleware())
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-API-KEY")
	r.Use(cors.New(corsConfig))

	r.GET("/health", adminHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(APIKeyAuth(cfg.APIKey))
	{
		// 価格分析API
		analysis := v1.Group("/analysis")
		{
			analysis.GET("/settings", analysisHandler.GetSettings)
			analysis.POST("/:type", adminHandler.MaintenanceGuard(), analysisHandler.RunFileAnalysis)
			analysis.POST("/:type/data", adminHandler.MaintenanceGuard(), analysisHandler.RunDataAnalysis)
		}

		// 管理者向けAPI
		admin := v1.Group("/admin")
		{
			admin.GET("/health-status", adminHandler.GetHealthStatus)
			admin.POST("/maintenance/start", adminHandler.StartMaintenance)
			admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
		}

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}
	}

	return r
}

// APIKeyAuth は X-API-KEY ヘッダーを検証する認証ミドルウェアです。キーが未設定なら認証しません。
func APIKeyAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-KEY") != apiKey {
			log.Warn().Str("path", c.Request.URL.Path).Msg("❌ [認証] 無効なAPI Key")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
