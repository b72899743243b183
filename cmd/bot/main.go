package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"melodyforge-bot/internal/client/lastfm"
	"melodyforge-bot/internal/config"
	"melodyforge-bot/internal/downloader"
	"melodyforge-bot/internal/services/music"
	"melodyforge-bot/internal/store"
	"melodyforge-bot/internal/transport/telegram"
	"melodyforge-bot/internal/utils"
)

func main() {
	// Load .env when running locally; ignored if file is absent.
	_ = godotenv.Load()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() // best-effort flush

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("store init failed", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer db.Close()

	httpClient := &http.Client{Timeout: 10 * time.Second}
	metaClient := lastfm.NewClient(httpClient, cfg.LastFMAPIKey, logger)
	fetcher := downloader.New(cfg.YTDLPPath, cfg.DownloadDir, logger)
	musicService := music.NewService(db, metaClient, fetcher, logger)

	bot, err := telegram.NewBot(cfg.TelegramToken, musicService, logger)
	if err != nil {
		logger.Fatal("telegram init failed", zap.Error(err))
	}

	logger.Info("bot is starting")
	if err := bot.Start(ctx); err != nil {
		logger.Fatal("bot stopped with error", zap.Error(err))
	}
}
