package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"readit/internal/app"
	"readit/internal/config"
	"readit/internal/ratelimit"
	"readit/internal/server"
	"readit/internal/util"
	"readit/pkg/ai"
	"readit/pkg/storage"
	"readit/pkg/store"
	"readit/pkg/tts"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	sessionStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	var objects storage.ObjectStore
	switch {
	case cfg.MinioEndpoint != "":
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
	case cfg.LocalStoragePath != "":
		objects, err = storage.NewLocalStore(cfg.LocalStoragePath)
		if err != nil {
			log.Fatalf("failed to init local storage: %v", err)
		}
	default:
		slog.Warn("no object storage configured, original uploads will not be retained")
	}

	synth := tts.NewAzureSynthesizer(cfg.SpeechEndpoint, cfg.SpeechAPIKey, 0)
	speech, err := tts.NewGateway(cfg.AudioCacheDir, synth)
	if err != nil {
		log.Fatalf("failed to init speech gateway: %v", err)
	}

	generator := ai.NewOpenAICompatGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, time.Duration(cfg.AskTimeoutSeconds)*time.Second)

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" && cfg.RateLimitPerMinute > 0 {
		limiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "", cfg.RateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
	}

	appCore, err := app.New(app.Config{
		Store:           sessionStore,
		Objects:         objects,
		Speech:          speech,
		Generator:       generator,
		WordsPerSegment: cfg.WordsPerSegment,
		AskTimeout:      time.Duration(cfg.AskTimeoutSeconds) * time.Second,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		Limiter:        limiter,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	go runMaintenance(appCore, cfg)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("readit server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

// runMaintenance periodically purges inactive sessions and evicts stale
// cached audio.
func runMaintenance(appCore *app.App, cfg config.FileConfig) {
	interval := time.Duration(cfg.MaintenanceIntervalMinutes) * time.Minute
	retention := time.Duration(cfg.SessionRetentionHours) * time.Hour
	audioMaxAge := time.Duration(cfg.AudioMaxAgeHours) * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if _, err := appCore.PurgeInactiveSessions(retention); err != nil {
			slog.Error("session purge failed", "err", err)
		}
		if _, err := appCore.EvictStaleAudio(audioMaxAge); err != nil {
			slog.Error("audio eviction failed", "err", err)
		}
	}
}
