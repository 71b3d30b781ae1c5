package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Reset link
	FrontendBase string
	ResetPath    string
	ResetExpiry  time.Duration

	// Telegram
	BotToken string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	FromEmail    string

	// Database
	DatabaseURL string
	SQLitePath  string

	// Redis (optional, bot dialogue state)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Logging
	LogLevel string
	LogDir   string
}

func New() *Config {
	smtpUser := getEnv("SMTP_USER", "")

	return &Config{
		Port: getEnv("PORT", "8000"),
		Env:  getEnv("ENV", "development"),

		FrontendBase: strings.TrimRight(getEnv("FRONTEND_BASE", "http://localhost:8000"), "/"),
		ResetPath:    getEnv("RESET_PATH", "/reset"),
		ResetExpiry:  time.Duration(getEnvAsInt("RESET_EXPIRY_MINUTES", 60)) * time.Minute,

		BotToken: getEnv("BOT_TOKEN", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     smtpUser,
		SMTPPassword: getEnv("SMTP_PASS", ""),
		FromEmail:    getEnv("FROM_EMAIL", smtpUser),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "reset_tokens.db"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogDir:   getEnv("LOG_DIR", "logs"),
	}
}

// ResetURL builds the link embedded in reset emails.
func (c *Config) ResetURL(token string) string {
	path := c.ResetPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s%s?token=%s", c.FrontendBase, path, token)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
