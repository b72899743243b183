package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds application settings sourced from environment variables.
type Config struct {
	TelegramToken string
	LastFMAPIKey  string
	DBPath        string
	DownloadDir   string
	YTDLPPath     string
	LogLevel      string
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		LastFMAPIKey:  strings.TrimSpace(os.Getenv("LASTFM_API_KEY")),
		DBPath:        strings.TrimSpace(os.Getenv("DB_PATH")),
		DownloadDir:   strings.TrimSpace(os.Getenv("DOWNLOAD_DIR")),
		YTDLPPath:     strings.TrimSpace(os.Getenv("YTDLP_PATH")),
		LogLevel:      strings.TrimSpace(os.Getenv("LOG_LEVEL")),
	}

	if cfg.DBPath == "" {
		cfg.DBPath = "melodyforge.db"
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = "downloads"
	}
	if cfg.YTDLPPath == "" {
		cfg.YTDLPPath = "yt-dlp"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}
	if cfg.LastFMAPIKey == "" {
		return cfg, fmt.Errorf("LASTFM_API_KEY is not set")
	}

	return cfg, nil
}
