package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shivortex/bot/internal/models"
)

// DefaultModel is the Workers AI model used when CF_MODEL is not set.
// The 3b model is faster; swap to 8b for quality.
const DefaultModel = "@cf/meta/llama-3-3b-instruct"

// Load loads configuration from environment variables
// It first attempts to load from .env file, then reads environment variables
func Load() (*models.BotConfig, error) {
	// Try to load .env file (optional, ignore error if not found)
	_ = godotenv.Load()

	config := &models.BotConfig{
		// Telegram settings
		TelegramToken: getEnv("TELEGRAM_TOKEN", ""),
		AdminID:       getEnvInt64("ADMIN_TELEGRAM_ID", 0),

		// Cloudflare Workers AI settings
		CFAccountID: getEnv("CF_ACCOUNT_ID", ""),
		CFAPIKey:    getEnv("CF_API_KEY", ""),
		CFModel:     getEnv("CF_MODEL", DefaultModel),
		CFTimeout:   getEnvInt("CF_TIMEOUT", 45),

		// Supabase settings
		SupabaseURL:     getEnv("SUPABASE_URL", ""),
		SupabaseKey:     getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseTimeout: getEnvInt("SUPABASE_TIMEOUT", 10),

		// App settings
		HistoryLimit: getEnvInt("HISTORY_LIMIT", 4),
		RestartDelay: getEnvInt("RESTART_DELAY", 5),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Environment:  getEnv("ENVIRONMENT", "production"),
	}

	// Validate configuration
	if err := validate(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validate checks if all required configuration values are set
func validate(cfg *models.BotConfig) error {
	if cfg.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if cfg.AdminID == 0 {
		return fmt.Errorf("ADMIN_TELEGRAM_ID is required")
	}
	if cfg.CFAccountID == "" {
		return fmt.Errorf("CF_ACCOUNT_ID is required")
	}
	if cfg.CFAPIKey == "" {
		return fmt.Errorf("CF_API_KEY is required")
	}
	if cfg.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.SupabaseKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required")
	}

	// Validate positive values
	if cfg.CFTimeout <= 0 {
		return fmt.Errorf("CF_TIMEOUT must be positive, got %d", cfg.CFTimeout)
	}
	if cfg.SupabaseTimeout <= 0 {
		return fmt.Errorf("SUPABASE_TIMEOUT must be positive, got %d", cfg.SupabaseTimeout)
	}
	if cfg.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive, got %d", cfg.HistoryLimit)
	}
	if cfg.RestartDelay <= 0 {
		return fmt.Errorf("RESTART_DELAY must be positive, got %d", cfg.RestartDelay)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error; got %s", cfg.LogLevel)
	}

	return nil
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves environment variable as integer or returns default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvInt64 retrieves environment variable as int64 or returns default value
func getEnvInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
