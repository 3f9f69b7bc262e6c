package handler

import (
	"net/http"
	"sync"

	config "price-elasticity-api/configs"
	"price-elasticity-api/pkg/server"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var (
	app  *gin.Engine
	once sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() *gin.Engine {
	once.Do(func() {
		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()
		config.SetupLogger(cfg)

		app = server.NewRouter(cfg)
		log.Info().Msg("🟢 [setupApp] Gin application initialized")
	})
	return app
}

// Handler はVercelからのすべてのリクエストを処理するエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	setupApp().ServeHTTP(w, r)
}
