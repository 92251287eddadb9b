package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/adapters/kokoro"
	"github.com/voxkeep/voxkeep/adapters/sqlite"
	"github.com/voxkeep/voxkeep/adapters/translate"
	"github.com/voxkeep/voxkeep/domain/repositories"
	"github.com/voxkeep/voxkeep/internal/api"
	"github.com/voxkeep/voxkeep/internal/auth"
	"github.com/voxkeep/voxkeep/internal/config"
	"github.com/voxkeep/voxkeep/internal/maintenance"
	"github.com/voxkeep/voxkeep/internal/websocket"
	"github.com/voxkeep/voxkeep/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load .env if present; real environment wins
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Storage: lifecycle client + record repository. The client owns
	// the connection; everything else receives the repository.
	dbClient, err := sqlite.NewClient(cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatal("Failed to create database client", zap.Error(err))
	}
	defer dbClient.Close()
	audioRepo := sqlite.NewAudioRepository(dbClient, logger)

	// Notification relay
	hub := websocket.NewHub(websocket.NewLogNotifier(logger), logger)
	go hub.Run()

	// Synthesis adapter
	var tts repositories.TextToSpeech
	if cfg.FalAPIKey != "" {
		tts, err = kokoro.NewClient(kokoro.Config{
			APIKey:     cfg.FalAPIKey,
			APIBaseURL: cfg.KokoroAPIURL,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create synthesis client", zap.Error(err))
		}
	} else {
		logger.Warn("FAL_API_KEY not set, using mock synthesis")
		tts = kokoro.NewMockTTS(logger)
	}

	// Translation adapter
	var translator repositories.Translator
	if cfg.GeminiAPIKey != "" {
		translator, err = translate.NewGeminiTranslator(cfg.GeminiAPIKey, logger)
		if err != nil {
			logger.Fatal("Failed to create translator", zap.Error(err))
		}
	} else {
		logger.Warn("GEMINI_API_KEY not set, using mock translator")
		translator = translate.NewMockTranslator()
	}

	// Usecase services
	archiveService := usecase.NewArchiveService(tts, audioRepo, hub, logger)
	translationService := usecase.NewTranslationService(translator, audioRepo, hub, cfg.TargetLanguage, logger)

	// Scheduled store health sweep
	sweeper := maintenance.NewSweeper(audioRepo, dbClient, logger)
	scheduler, err := sweeper.Start(cfg.MaintenanceCron)
	if err != nil {
		logger.Fatal("Failed to schedule maintenance sweep", zap.Error(err))
	}
	defer scheduler.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, 24*time.Hour)
	api.InitRoutes(e, archiveService, translationService, audioRepo, hub, issuer, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
