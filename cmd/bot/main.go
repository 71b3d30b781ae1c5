package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/resetlink/backend/internal/bot"
	"github.com/resetlink/backend/internal/config"
	"github.com/resetlink/backend/internal/logger"
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

	if cfg.BotToken == "" {
		logger.Log.Fatal("BOT_TOKEN is required for bot mode")
	}

	// Initialize database
	db, err := models.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("failed to initialize database", zap.Error(err))
	}

	if err := models.Migrate(db); err != nil {
		logger.Log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Initialize services
	tokenStore := store.NewTokenStore(db)
	tokenService := services.NewTokenService(tokenStore, cfg)
	emailService := services.NewEmailService(cfg)

	// Dialogue state lives in memory unless Redis is configured, in which
	// case it survives worker restarts.
	sessions := bot.NewMemorySessionStore()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		sessions = bot.NewRedisSessionStore(client)
		logger.Log.Info("using redis session store", zap.String("addr", cfg.RedisAddr))
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Log.Fatal("failed to connect to telegram", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resetBot := bot.New(api, tokenService, emailService, sessions)
	if err := resetBot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.Fatal("bot stopped", zap.Error(err))
	}

	logger.Log.Info("bot exited")
}
