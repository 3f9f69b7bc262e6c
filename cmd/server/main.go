package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "price-elasticity-api/configs"
	"price-elasticity-api/pkg/server"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// .envファイルを読み込み
	envErr := godotenv.Load()

	// 設定の読み込み
	cfg := config.LoadConfig()
	config.SetupLogger(cfg)
	if envErr != nil {
		log.Warn().Err(envErr).Msg(".env file not found or could not be loaded")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("environment", cfg.Environment).Msg("🚀 Starting price-elasticity-api server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("🛑 Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
}
