package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/resetlink/backend/internal/config"
	"github.com/resetlink/backend/internal/handlers"
	"github.com/resetlink/backend/internal/logger"
	"github.com/resetlink/backend/internal/middleware"
	"github.com/resetlink/backend/internal/models"
	"github.com/resetlink/backend/internal/services"
	"github.com/resetlink/backend/internal/store"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.New()

	if err := logger.Init(cfg.Env, cfg.LogLevel, cfg.LogDir); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Log.Sync()

	// Initialize database
	db, err := models.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("failed to initialize database", zap.Error(err))
	}

	// Run migrations
	if err := models.Migrate(db); err != nil {
		logger.Log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Initialize services
	tokenStore := store.NewTokenStore(db)
	tokenService := services.NewTokenService(tokenStore, cfg)

	// The actual credential write lives in an external user store; wire a
	// real PasswordSetter here when integrating.
	var passwordSetter services.PasswordSetter = services.NoopPasswordSetter{}

	// Setup Gin router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	resetHandler := handlers.NewResetHandler(tokenService, passwordSetter)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET(cfg.ResetPath, resetHandler.ShowResetForm)
	router.POST(cfg.ResetPath, resetHandler.SubmitNewPassword)

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Log.Info("starting server",
			zap.String("port", cfg.Port),
			zap.String("reset_path", cfg.ResetPath))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("server exited")
}
