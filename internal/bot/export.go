package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shivortex/bot/internal/models"
)

// handleExportCommand handles /export: sends the chat's full history as a
// downloadable text file
func (b *Bot) handleExportCommand(ctx context.Context, message *tgbotapi.Message) {
	if !b.isAdmin(message) {
		b.sendMessage(message.Chat.ID, refusalMessage)
		return
	}

	chatID := message.Chat.ID

	turns, err := b.store.LoadAll(ctx, chatID)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to load history for export")
		b.sendErrorMessage(chatID, "❌ Failed to load history.")
		return
	}

	if len(turns) == 0 {
		b.sendMessage(chatID, "No history to export.")
		return
	}

	path := filepath.Join(os.TempDir(), fmt.Sprintf("shivortex_%d.txt", chatID))
	if err := os.WriteFile(path, []byte(renderExport(chatID, turns)), 0o600); err != nil {
		b.logger.Error().Err(err).Str("path", path).Msg("Failed to write export file")
		b.sendErrorMessage(chatID, "❌ Failed to write export file.")
		return
	}
	defer os.Remove(path)

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = "Chat export"

	if _, err := b.api.Send(doc); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send export document")
		b.sendErrorMessage(chatID, "❌ Failed to send export.")
		return
	}

	b.logger.Info().
		Int64("chat_id", chatID).
		Int("turns", len(turns)).
		Msg("History exported")
}

// renderExport formats the chronological history as a role-labeled text file
func renderExport(chatID int64, turns []models.Turn) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SHIVORTEX Chat Export\nChat ID: %d\n\n", chatID)

	for _, turn := range turns {
		label := "Assistant:\n"
		if turn.Role == models.RoleUser {
			label = "User:\n"
		}
		sb.WriteString(label)
		sb.WriteString(strings.TrimSpace(turn.Content))
		sb.WriteString("\n\n")
	}

	return sb.String()
}
