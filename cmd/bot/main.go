package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shivortex/bot/internal/bot"
	"github.com/shivortex/bot/internal/config"
	"github.com/shivortex/bot/internal/llm"
	"github.com/shivortex/bot/internal/models"
	"github.com/shivortex/bot/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.Environment)
	logger.Info().
		Str("environment", cfg.Environment).
		Str("model", cfg.CFModel).
		Int("history_limit", cfg.HistoryLimit).
		Msg("Starting SHIVORTEX bot")

	// Create context that listens for termination signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage client
	logger.Info().Msg("Initializing Supabase client...")
	storageClient, err := storage.NewClient(
		cfg.SupabaseURL,
		cfg.SupabaseKey,
		cfg.SupabaseTimeout,
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create storage client")
	}

	// Ping Supabase to verify connection
	if err := storageClient.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Supabase")
	}
	logger.Info().Msg("Supabase connection successful")

	// Initialize Workers AI client
	logger.Info().Msg("Initializing Workers AI client...")
	llmClient := llm.NewClient(cfg, storageClient, logger)

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigChan
		logger.Info().Str("signal", sig.String()).Msg("Received termination signal")
		cancel()
	}()

	// Supervised run loop: any bot failure restarts the whole bot after a
	// fixed delay. This is the only fault recovery; individual operations
	// are not retried here.
	restartDelay := time.Duration(cfg.RestartDelay) * time.Second
	for {
		runErr := runBot(ctx, cfg, storageClient, llmClient, logger)

		if ctx.Err() != nil {
			logger.Info().Msg("Bot stopped")
			return
		}

		logger.Error().
			Err(runErr).
			Dur("restart_delay", restartDelay).
			Msg("Bot crashed, restarting")

		select {
		case <-ctx.Done():
			logger.Info().Msg("Bot stopped")
			return
		case <-time.After(restartDelay):
		}
	}
}

// runBot constructs the bot and runs its update loop until it fails or the
// context is cancelled
func runBot(
	ctx context.Context,
	cfg *models.BotConfig,
	storageClient *storage.Client,
	llmClient *llm.Client,
	logger zerolog.Logger,
) error {
	telegramBot, err := bot.New(cfg, storageClient, llmClient, logger)
	if err != nil {
		return err
	}

	logger.Info().
		Str("username", telegramBot.GetUsername()).
		Int64("admin_id", cfg.AdminID).
		Msg("Bot initialized successfully")

	return telegramBot.Start(ctx)
}

// setupLogger configures and returns a zerolog logger
func setupLogger(level, environment string) zerolog.Logger {
	// Parse log level
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	// Configure output format
	var logger zerolog.Logger
	if environment == "development" {
		// Pretty console output for development
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Caller().Logger()
	} else {
		// JSON output for production
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	return logger
}
