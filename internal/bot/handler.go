package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shivortex/bot/internal/llm"
	"github.com/shivortex/bot/internal/models"
)

// refusalMessage is sent when a non-admin issues an admin command
const refusalMessage = "⛔ Not allowed."

// previewSample is the canned message used by /promptpreview
const previewSample = "Hello, remind me briefly what you know about my agency."

// previewLimit caps the preview sent back to Telegram, in runes
const previewLimit = 4000

// handleUpdate processes incoming update
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	// Wrap in recover middleware
	b.recoverMiddleware(func() {
		// Handle message
		if update.Message != nil {
			b.handleMessage(ctx, update.Message)
		}
	})
}

// handleMessage processes incoming message
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	// Handle commands
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	b.handleText(ctx, message)
}

// handleCommand processes bot commands
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	command := message.Command()

	b.logger.Info().
		Str("command", command).
		Int64("user_id", message.From.ID).
		Str("username", message.From.UserName).
		Msg("Received command")

	switch command {
	case "start":
		b.sendMessage(message.Chat.ID, "✅ SHIVORTEX online. Use normal chat or admin commands if you are the owner.")
	case "whoami":
		b.handleWhoAmICommand(message)
	case "amadmin":
		b.handleAmAdminCommand(message)
	case "setprompt":
		b.handleSetPromptCommand(ctx, message)
	case "viewprompt":
		b.handleViewPromptCommand(ctx, message)
	case "setstyle":
		b.handleSetStyleCommand(ctx, message)
	case "setmax":
		b.handleSetMaxCommand(ctx, message)
	case "promptpreview":
		b.handlePromptPreviewCommand(ctx, message)
	case "reset":
		b.handleResetCommand(ctx, message)
	case "export":
		b.handleExportCommand(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "❓ Unknown command.")
	}
}

// isAdmin checks the sender against the single configured admin identifier
func (b *Bot) isAdmin(message *tgbotapi.Message) bool {
	return b.config.IsAdmin(message.From.ID)
}

// handleWhoAmICommand handles /whoami
func (b *Bot) handleWhoAmICommand(message *tgbotapi.Message) {
	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"User: %s\nUser ID: %d",
		fullName(message.From), message.From.ID,
	))
}

// handleAmAdminCommand handles /amadmin
func (b *Bot) handleAmAdminCommand(message *tgbotapi.Message) {
	if b.isAdmin(message) {
		b.sendMessage(message.Chat.ID, "✅ You are recognised as ADMIN.")
		return
	}
	b.sendMessage(message.Chat.ID, "❌ You are NOT recognised as admin.")
}

// handleSetPromptCommand handles /setprompt <text>
func (b *Bot) handleSetPromptCommand(ctx context.Context, message *tgbotapi.Message) {
	if !b.isAdmin(message) {
		b.sendMessage(message.Chat.ID, refusalMessage)
		return
	}

	text := strings.TrimSpace(message.CommandArguments())
	if text == "" {
		b.sendMessage(message.Chat.ID, "Usage: /setprompt <text>")
		return
	}

	if err := b.store.UpdatePrompt(ctx, text); err != nil {
		b.logger.Error().Err(err).Msg("Failed to update prompt")
		b.sendErrorMessage(message.Chat.ID, "❌ Failed to update prompt.")
		return
	}

	b.sendMessage(message.Chat.ID, "✅ System prompt updated.")
}

// handleViewPromptCommand handles /viewprompt
func (b *Bot) handleViewPromptCommand(ctx context.Context, message *tgbotapi.Message) {
	if !b.isAdmin(message) {
		b.sendMessage(message.Chat.ID, refusalMessage)
		return
	}

	settings, err := b.store.GetSettings(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to load settings")
		b.sendErrorMessage(message.Chat.ID, "❌ Failed to load settings.")
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"SYSTEM PROMPT:\n%s\n\nSTYLE: %s\nMAX_WORDS: %d",
		settings.SystemPrompt, settings.Style, settings.MaxWords,
	))
}

// handleSetStyleCommand handles /setstyle brief|detailed
func (b *Bot) handleSetStyleCommand(ctx context.Context, message *tgbotapi.Message) {
	if !b.isAdmin(message) {
		b.sendMessage(message.Chat.ID, refusalMessage)
		return
	}

	style := models.Style(strings.ToLower(strings.TrimSpace(message.CommandArguments())))
	if !style.Valid() {
		b.sendMessage(message.Chat.ID, "Usage: /setstyle brief|detailed")
		return
	}

	if err := b.store.SetStyle(ctx, style); err != nil {
		b.logger.Error().Err(err).Msg("Failed to set style")
		b.sendErrorMessage(message.Chat.ID, "❌ Failed to set style.")
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf("✅ Style set to %s.", style))
}

// handleSetMaxCommand handles /setmax <int>
func (b *Bot) handleSetMaxCommand(ctx context.Context, message *tgbotapi.Message) {
	if !b.isAdmin(message) {
		b.sendMessage(message.Chat.ID, refusalMessage)
		return
	}

	n, err := strconv.Atoi(strings.TrimSpace(message.CommandArguments()))
	if err != nil {
		b.sendMessage(message.Chat.ID, "Usage: /setmax <n>")
		return
	}

	if err := b.store.SetMaxWords(ctx, n); err != nil {
		b.logger.Error().Err(err).Msg("Failed to set max words")
		b.sendErrorMessage(message.Chat.ID, "❌ Failed to set max words.")
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf("✅ max words set to %d.", n))
}

// handlePromptPreviewCommand handles /promptpreview: shows the prompt the
// model would receive for a canned sample message
func (b *Bot) handlePromptPreviewCommand(ctx context.Context, message *tgbotapi.Message) {
	if !b.isAdmin(message) {
		b.sendMessage(message.Chat.ID, refusalMessage)
		return
	}

	chatID := message.Chat.ID

	settings, err := b.store.GetSettings(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to load settings")
		b.sendErrorMessage(chatID, "❌ Failed to load settings.")
		return
	}

	history, err := b.store.LoadRecent(ctx, chatID, b.config.HistoryLimit)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to load history")
		b.sendErrorMessage(chatID, "❌ Failed to load history.")
		return
	}

	prompt := llm.BuildPrompt(settings, history, previewSample)
	if runes := []rune(prompt); len(runes) > previewLimit {
		prompt = string(runes[:previewLimit])
	}

	b.sendMessage(chatID, "=== PROMPT PREVIEW ===\n"+prompt)
}

// handleResetCommand handles /reset: deletes the invoking chat's history
func (b *Bot) handleResetCommand(ctx context.Context, message *tgbotapi.Message) {
	if !b.isAdmin(message) {
		b.sendMessage(message.Chat.ID, refusalMessage)
		return
	}

	chatID := message.Chat.ID
	if err := b.store.DeleteAll(ctx, chatID); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to reset history")
		b.sendErrorMessage(chatID, "❌ Failed to reset chat memory.")
		return
	}

	b.sendMessage(chatID, "✅ Chat memory reset.")
}

// handleText processes a plain text message through the model
func (b *Bot) handleText(ctx context.Context, message *tgbotapi.Message) {
	text := strings.TrimSpace(message.Text)
	if text == "" {
		return
	}

	chatID := message.Chat.ID

	b.logger.Info().
		Int64("chat_id", chatID).
		Int64("user_id", message.From.ID).
		Int("text_len", len(text)).
		Msg("Processing message")

	// Existence marker only; a failure here should not block the reply
	if err := b.store.EnsureChat(ctx, chatID); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to upsert chat")
	}

	b.sendTypingAction(chatID)

	reply, err := b.llm.Ask(ctx, chatID, text)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to produce reply")
		b.sendErrorMessage(chatID, "❌ Error processing your message. Try again later.")
		return
	}

	// Persist both turns before replying, user first
	if err := b.store.SaveTurn(ctx, chatID, models.RoleUser, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to save user turn")
		b.sendErrorMessage(chatID, "❌ Error processing your message. Try again later.")
		return
	}
	if err := b.store.SaveTurn(ctx, chatID, models.RoleAssistant, reply); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to save assistant turn")
		b.sendErrorMessage(chatID, "❌ Error processing your message. Try again later.")
		return
	}

	b.sendMessage(chatID, reply)
}

// fullName renders a Telegram user's display name
func fullName(user *tgbotapi.User) string {
	if user.LastName == "" {
		return user.FirstName
	}
	return user.FirstName + " " + user.LastName
}
