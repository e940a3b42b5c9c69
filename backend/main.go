package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hivedesk/onboarding/backend/config"
	"github.com/hivedesk/onboarding/backend/handler"
	"github.com/hivedesk/onboarding/backend/middleware"
	"github.com/hivedesk/onboarding/backend/model"
	"github.com/hivedesk/onboarding/backend/service"
	"github.com/hivedesk/onboarding/pkg/logger"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully",
		"storage", cfg.Storage.Driver,
		"store", cfg.Store.Driver,
		"cache", cfg.Cache.Driver,
		"ai_mode", cfg.AI.Mode,
	)

	ctx := context.Background()

	storage, err := service.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	if err := storage.EnsureBucket(ctx); err != nil {
		slog.Error("failed to ensure bucket", "error", err)
		os.Exit(1)
	}

	store, err := service.NewDocumentStore(&cfg.Store)
	if err != nil {
		slog.Error("failed to initialize document store", "error", err)
		os.Exit(1)
	}

	cache, err := service.NewAnalysisCache(ctx, &cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize analysis cache", "error", err)
		os.Exit(1)
	}

	analyzer, err := service.NewAnalyzer(ctx, &cfg.AI)
	if err != nil {
		slog.Error("failed to initialize analyzer", "error", err)
		os.Exit(1)
	}
	slog.Info("analyzer ready", "analyzer", analyzer.Name())

	documents := service.NewDocumentService(storage, store, analyzer, cache, cfg.AI.ConfidenceThreshold)

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(cfg, handler.NewAuthHandler(cfg), handler.NewDocumentHandler(documents))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
		// analysis is synchronous and bounded by the model timeout
		ReadTimeout:  60 * time.Second,
		WriteTimeout: time.Duration(cfg.AI.TimeoutSeconds+30) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	for _, dep := range []any{cache, storage, store} {
		if closer, ok := dep.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				slog.Warn("failed to close dependency", "type", fmt.Sprintf("%T", dep), "error", err)
			}
		}
	}

	slog.Info("server exited gracefully")
}

func newRouter(cfg *config.Config, auth *handler.AuthHandler, documents *handler.DocumentHandler) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, time.Minute))

	// uploads are capped at 10 MiB; leave room for the multipart envelope
	router.MaxMultipartMemory = model.MaxUploadSize + 1<<20

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api", middleware.NoStore())
	api.POST("/auth/login", auth.Login)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", auth.GetCurrentUser)

		protected.POST("/documents", documents.Upload)
		protected.GET("/documents", documents.List)
		protected.GET("/documents/:id", documents.Get)
		protected.DELETE("/documents/:id", documents.Delete)
		protected.POST("/documents/:id/analysis", documents.Analyze)
		protected.GET("/documents/:id/analysis", documents.GetAnalysis)
		protected.GET("/documents/:id/download", documents.Download)
		protected.POST("/documents/:id/verify", middleware.RequireRole(model.RoleHR), documents.Review)
	}

	return router
}
