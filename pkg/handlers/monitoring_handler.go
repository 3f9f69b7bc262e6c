package handlers

import (
	"net/http"

	"price-elasticity-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// MonitoringHandler はモニタリング関連の操作のハンドラです。
type MonitoringHandler struct {
	Service *services.MonitoringService
}

// NewMonitoringHandler は新しいMonitoringHandlerを生成します。
func NewMonitoringHandler(service *services.MonitoringService) *MonitoringHandler {
	return &MonitoringHandler{
		Service: service,
	}
}

// periodHours は period クエリ（1h / 24h / 7d）を時間数に変換します。不明な値は 24h 扱いです。
func periodHours(period string) int {
	switch period {
	case "1h":
		return 1
	case "7d":
		return 24 * 7
	default:
		return 24
	}
}

// GetLogs は集計されたリクエストログと分析実行ログを返します。
func (h *MonitoringHandler) GetLogs(c *gin.Context) {
	hours := periodHours(c.DefaultQuery("period", "24h"))
	c.JSON(http.StatusOK, h.Service.GetDashboardData(hours))
}
