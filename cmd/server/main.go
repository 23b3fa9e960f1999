package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"skycafe/backend/internal/cache"
	"skycafe/backend/internal/config"
	"skycafe/backend/internal/httpapi"
	"skycafe/backend/internal/logger"
	"skycafe/backend/internal/service"
	"skycafe/backend/internal/store"
	"skycafe/backend/internal/store/memory"
	sheetstore "skycafe/backend/internal/store/sheets"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg := config.Load()
	if err := logger.Setup(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}
	mainLog := logger.WithComponent("main")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	var userStore store.UserStore
	var exporter service.Exporter
	closers := make([]func() error, 0, 1)

	memStore := memory.NewSeeded()
	userStore = memStore

	if cfg.SpreadsheetID != "" {
		sheetsRepo, err := sheetstore.New(ctx, cfg.SpreadsheetID)
		if err != nil {
			mainLog.Fatal().Err(err).Msg("google sheets unavailable and SPREADSHEET_ID is set; refusing to start with in-memory fallback")
		}
		if err := sheetsRepo.EnsureSchema(ctx); err != nil {
			mainLog.Fatal().Err(err).Msg("failed to ensure worksheet schema")
		}
		repo = sheetsRepo
		exporter = sheetsRepo
		mainLog.Info().Msg("repository: google sheets")
	} else {
		repo = memStore
		mainLog.Info().Msg("repository: in-memory (no SPREADSHEET_ID configured)")
	}

	statsCache := cache.StatsCache(cache.NoopStatsCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisStatsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			mainLog.Warn().Err(err).Msg("redis unavailable, using noop stats cache")
		} else {
			statsCache = redisCache
			closers = append(closers, redisCache.Close)
			mainLog.Info().Msg("stats cache: redis")
		}
	} else {
		mainLog.Info().Msg("stats cache: noop")
	}

	svc := service.New(repo, statsCache, time.Duration(cfg.StatsCacheTTLSeconds)*time.Second, exporter, cfg.Timezone)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, userStore)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		mainLog.Info().Str("addr", cfg.Address()).Msg("back-office API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			mainLog.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLog.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			mainLog.Error().Err(err).Msg("close error")
		}
	}

	mainLog.Info().Msg("server stopped")
}
