// Package main is the entry point for the Brand Dos API server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"branddos/internal/ai"
	"branddos/internal/cache"
	"branddos/internal/config"
	"branddos/internal/database"
	"branddos/internal/handlers"
	"branddos/internal/imaging"
	"branddos/internal/library"
	"branddos/internal/middleware"
	"branddos/internal/pipeline"
	"branddos/internal/router"
	"branddos/internal/session"
	"branddos/internal/storage"
	"branddos/internal/store"
)

// authAttemptsPerMin bounds signup, login and 2FA attempts per caller.
const authAttemptsPerMin = 10

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if !cfg.IsDev() {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})))
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"refine_mode", cfg.RefineMode,
	)

	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed a demo account (no-op if one already exists).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Valkey backs sessions, rate limits and the signed URL cache.
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	secureCookies := !cfg.IsDev()
	sessionStore := session.NewStore(valkeyClient, secureCookies)

	userStore := store.NewUserStore(db)
	brandStore := store.NewBrandStore(db)
	postStore := store.NewPostStore(db)
	chatStore := store.NewChatStore(db)

	texts := ai.NewRegistry(cfg.AIProvider, map[string]ai.ProviderConfig{
		"openai":  {APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel, BaseURL: cfg.OpenAIBaseURL},
		"gemini":  {APIKey: cfg.GeminiKey, Model: cfg.GeminiModel},
		"claude":  {APIKey: cfg.ClaudeKey, Model: cfg.ClaudeModel, BaseURL: cfg.ClaudeBaseURL},
		"mistral": {APIKey: cfg.MistralKey, Model: cfg.MistralModel, BaseURL: cfg.MistralBaseURL},
	})
	images := ai.NewImageRegistry(cfg.ImageProvider, map[string]ai.ProviderConfig{
		"stability": {APIKey: cfg.StabilityKey, Model: cfg.StabilityEngine, BaseURL: cfg.StabilityBaseURL},
		"runware":   {APIKey: cfg.RunwareKey, Model: cfg.RunwareModel, BaseURL: cfg.RunwareBaseURL},
		"openai":    {APIKey: cfg.OpenAIKey, Model: cfg.OpenAIImageModel, BaseURL: cfg.OpenAIBaseURL},
		"gemini":    {APIKey: cfg.GeminiKey, Model: cfg.GeminiImageModel},
	})
	slog.Info("ai providers initialized",
		"text", texts.ActiveName(),
		"text_available", texts.Available(),
		"image", images.ActiveName(),
		"image_available", images.Available(),
	)

	catalog, err := imaging.DefaultCatalog()
	if err != nil {
		slog.Error("failed to load overlay presets", "error", err)
		os.Exit(1)
	}

	var recompress func([]byte) ([]byte, error)
	if cfg.ImageRecompress {
		imaging.Startup(0)
		defer imaging.Shutdown()
		recompress = func(b []byte) ([]byte, error) {
			return imaging.Recompress(b, imaging.DefaultWebPQuality)
		}
	}

	storageClient, err := storage.New(
		cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey,
		cfg.S3BucketImages, cfg.S3BucketLogos, cfg.S3PublicURL,
	)
	if err != nil {
		slog.Error("failed to initialize S3 storage", "error", err)
		os.Exit(1)
	}

	// Interfaces stay nil without storage so handlers report 503.
	var (
		imageLibrary handlers.ImageLibrary
		logoStore    handlers.LogoStore
	)
	if storageClient != nil {
		urls := cache.NewURLCache(valkeyClient, cfg.SignedURLTTL)
		imageLibrary = library.New(storageClient, storageClient.ImagesBucket(), cfg.SignedURLTTL, urls)
		logoStore = storageClient
		slog.Info("s3 storage connected",
			"endpoint", cfg.S3Endpoint,
			"images_bucket", cfg.S3BucketImages,
			"logos_bucket", cfg.S3BucketLogos,
		)
	} else {
		slog.Warn("s3 storage not configured, image generation and logo uploads disabled")
	}

	refiner := pipeline.New(texts, images, pipeline.Mode(cfg.RefineMode))

	h := router.Handlers{
		Auth:    handlers.NewAuth(sessionStore, userStore),
		Brand:   handlers.NewBrand(brandStore, logoStore),
		Content: handlers.NewContent(brandStore, postStore, chatStore, texts),
		Images:  handlers.NewImages(brandStore, postStore, texts, refiner, imageLibrary, catalog, recompress),
	}
	r := router.New(sessionStore, h, router.Options{
		SecureCookies: secureCookies,
		AuthLimit:     middleware.NewRateLimiter(valkeyClient, "auth", authAttemptsPerMin, time.Minute),
		AILimit:       middleware.NewRateLimiter(valkeyClient, "ai", cfg.AIRateLimitPerMin, time.Minute),
	})

	// WriteTimeout must cover the slowest path: refinement, image
	// synthesis and the overlay in one request.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
