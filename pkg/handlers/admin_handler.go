package handlers

import (
	"crypto/subtle"
	"net/http"
	"sync/atomic"

	config "price-elasticity-api/configs"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AdminHandler は管理者向け操作（メンテナンスモード）のハンドラです。
type AdminHandler struct {
	AdminUsername string
	AdminPassword string

	// メンテナンス中は分析APIとヘルスチェックが 503 を返します。
	maintenance atomic.Bool
}

// NewAdminHandler は新しいAdminHandlerを生成します。
func NewAdminHandler(cfg *config.Config) *AdminHandler {
	return &AdminHandler{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
	}
}

// AdminCredentials は管理者認証のためのリクエストボディです。
type AdminCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// StartMaintenance はメンテナンスモードを開始します。
func (h *AdminHandler) StartMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	h.maintenance.Store(true)
	log.Warn().Msg("🚧 メンテナンスモードを開始しました")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "メンテナンスモードを開始しました"})
}

// StopMaintenance はメンテナンスモードを停止します。
func (h *AdminHandler) StopMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	h.maintenance.Store(false)
	log.Info().Msg("✅ メンテナンスモードを終了しました")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "メンテナンスモードを終了しました"})
}

func (h *AdminHandler) authorize(c *gin.Context) bool {
	var input AdminCredentials
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "ユーザー名とパスワードは必須です"})
		return false
	}

	// 管理者情報が未設定の場合は常に拒否
	if h.AdminUsername == "" || h.AdminPassword == "" ||
		subtle.ConstantTimeCompare([]byte(input.Username), []byte(h.AdminUsername)) != 1 ||
		subtle.ConstantTimeCompare([]byte(input.Password), []byte(h.AdminPassword)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "認証情報が正しくありません"})
		return false
	}
	return true
}

// IsMaintenanceMode はメンテナンス中かどうかを返します。
func (h *AdminHandler) IsMaintenanceMode() bool {
	return h.maintenance.Load()
}

// GetHealthStatus は現在のサーバーの状態を返します。
func (h *AdminHandler) GetHealthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"isMaintenanceMode": h.maintenance.Load()})
}

// HealthCheck は外部のヘルスチェッカー（例: ロードバランサー）からのリクエストに応答します。
func (h *AdminHandler) HealthCheck(c *gin.Context) {
	if h.maintenance.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": "メンテナンス中です"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "price-elasticity-api"})
}

// MaintenanceGuard はメンテナンス中のリクエストを 503 で拒否するミドルウェアです。
func (h *AdminHandler) MaintenanceGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.maintenance.Load() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "メンテナンス中のため分析を受け付けていません"})
			return
		}
		c.Next()
	}
}
