package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/shivortex/bot/internal/models"
)

// Store is the storage surface the handlers need
type Store interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	UpdatePrompt(ctx context.Context, prompt string) error
	SetStyle(ctx context.Context, style models.Style) error
	SetMaxWords(ctx context.Context, n int) error

	EnsureChat(ctx context.Context, chatID int64) error
	SaveTurn(ctx context.Context, chatID int64, role, content string) error
	LoadRecent(ctx context.Context, chatID int64, limit int) ([]models.Turn, error)
	LoadAll(ctx context.Context, chatID int64) ([]models.Turn, error)
	DeleteAll(ctx context.Context, chatID int64) error
}

// Responder produces a reply for an inbound user message
type Responder interface {
	Ask(ctx context.Context, chatID int64, userMessage string) (string, error)
}

// Bot represents the Telegram bot
type Bot struct {
	api    *tgbotapi.BotAPI
	config *models.BotConfig
	store  Store
	llm    Responder
	logger zerolog.Logger
	wg     sync.WaitGroup // Tracks active handlers for graceful shutdown
}

// New creates a new bot instance
func New(
	config *models.BotConfig,
	store Store,
	llm Responder,
	logger zerolog.Logger,
) (*Bot, error) {
	// Create Telegram bot API client
	api, err := tgbotapi.NewBotAPI(config.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	// Set debug mode based on log level
	api.Debug = config.LogLevel == "debug"

	logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authorized")

	return &Bot{
		api:    api,
		config: config,
		store:  store,
		llm:    llm,
		logger: logger.With().Str("component", "bot").Logger(),
	}, nil
}

// Start starts the bot
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info().Msg("Starting bot...")

	// Configure update settings
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	// Get updates channel
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info().Msg("Bot started, waiting for messages...")

	// Process updates
	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Shutting down bot...")
			b.api.StopReceivingUpdates()

			// Wait for all active handlers to complete
			b.logger.Info().Msg("Waiting for active handlers to complete...")
			b.wg.Wait()
			b.logger.Info().Msg("All handlers completed")

			return nil

		case update := <-updates:
			// Track this handler in WaitGroup
			b.wg.Add(1)
			// Process update in a goroutine to not block.
			// There is no per-chat serialization: two messages from the
			// same chat may interleave their history reads and writes.
			go func(upd tgbotapi.Update) {
				defer b.wg.Done()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// Stop stops the bot
func (b *Bot) Stop() {
	b.logger.Info().Msg("Stopping bot...")
	b.api.StopReceivingUpdates()
}

// GetUsername returns bot username
func (b *Bot) GetUsername() string {
	return b.api.Self.UserName
}
