// Package config holds all application configuration, read from
// environment variables with sensible defaults.
//
// Environment Variables:
// - PORT: HTTP listen port (default: 8080)
// - DATABASE_PATH: SQLite database file (default: data/voxkeep.db)
// - FAL_API_KEY: fal.ai API key for Kokoro synthesis (optional; mock TTS without it)
// - KOKORO_API_URL: synthesis queue endpoint override (optional)
// - GEMINI_API_KEY: Gemini API key for translations (optional; mock translator without it)
// - JWT_SECRET: signing secret for view tokens (required outside dev)
// - REFRESH_INTERVAL_SECONDS: view poll interval (default: 5)
// - MAINTENANCE_CRON: store health sweep schedule (default: "0 3 * * *")
// - TRANSLATION_TARGET_LANG: target language for generated translations (default: Japanese)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	Port            string
	DatabasePath    string
	FalAPIKey       string
	KokoroAPIURL    string
	GeminiAPIKey    string
	JWTSecret       string
	RefreshInterval time.Duration
	MaintenanceCron string
	TargetLanguage  string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DatabasePath:    getEnv("DATABASE_PATH", "data/voxkeep.db"),
		FalAPIKey:       os.Getenv("FAL_API_KEY"),
		KokoroAPIURL:    os.Getenv("KOKORO_API_URL"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		MaintenanceCron: getEnv("MAINTENANCE_CRON", "0 3 * * *"),
		TargetLanguage:  getEnv("TRANSLATION_TARGET_LANG", "Japanese"),
	}

	seconds, err := getEnvInt("REFRESH_INTERVAL_SECONDS", 5)
	if err != nil {
		return nil, err
	}
	if seconds < 1 {
		return nil, fmt.Errorf("REFRESH_INTERVAL_SECONDS must be at least 1, got %d", seconds)
	}
	cfg.RefreshInterval = time.Duration(seconds) * time.Second

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if _, err := cron.ParseStandard(c.MaintenanceCron); err != nil {
		return fmt.Errorf("invalid MAINTENANCE_CRON: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
