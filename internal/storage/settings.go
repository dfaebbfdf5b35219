package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shivortex/bot/internal/models"
)

// settingsRowID is the fixed id of the singleton bot_settings row
const settingsRowID = 1

// Default settings applied when the singleton row does not exist yet
const (
	DefaultSystemPrompt = "You are SHIVORTEX, a private AI assistant for Shivam. Use only user-provided facts. Be concise and practical."
	DefaultMaxWords     = 140
)

// DefaultStyle is the response style applied on first access
const DefaultStyle = models.StyleBrief

func defaultSettings() *models.Settings {
	return &models.Settings{
		SystemPrompt: DefaultSystemPrompt,
		Style:        DefaultStyle,
		MaxWords:     DefaultMaxWords,
	}
}

// GetSettings returns the singleton settings row.
// If the row does not exist it is created with defaults and the defaults
// are returned. Missing fields fall back to their defaults.
func (c *Client) GetSettings(ctx context.Context) (*models.Settings, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, _, err := c.client.From("bot_settings").
		Select("system_prompt,style,max_tokens", "exact", false).
		Eq("id", strconv.Itoa(settingsRowID)).
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to fetch settings: %w", err)
	}

	var rows []models.Settings
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if len(rows) > 0 {
		settings := rows[0]
		if !settings.Style.Valid() {
			settings.Style = DefaultStyle
		}
		if settings.MaxWords <= 0 {
			settings.MaxWords = DefaultMaxWords
		}

		c.logger.Debug().
			Str("style", string(settings.Style)).
			Int("max_words", settings.MaxWords).
			Msg("Settings loaded")

		return &settings, nil
	}

	// First access, upsert the defaults row
	settings := defaultSettings()
	if err := c.upsertSettings(settings); err != nil {
		return nil, err
	}

	c.logger.Info().Msg("Settings row created with defaults")
	return settings, nil
}

// UpdatePrompt overwrites the system prompt, keeping style and max words.
// Read-modify-upsert: concurrent admin edits are last-writer-wins.
func (c *Client) UpdatePrompt(ctx context.Context, prompt string) error {
	settings, err := c.GetSettings(ctx)
	if err != nil {
		return err
	}

	settings.SystemPrompt = prompt
	if err := c.upsertSettings(settings); err != nil {
		return err
	}

	c.logger.Info().Int("prompt_len", len(prompt)).Msg("System prompt updated")
	return nil
}

// SetStyle overwrites the response style, keeping the other fields
func (c *Client) SetStyle(ctx context.Context, style models.Style) error {
	if !style.Valid() {
		return fmt.Errorf("invalid style %q", style)
	}

	settings, err := c.GetSettings(ctx)
	if err != nil {
		return err
	}

	settings.Style = style
	if err := c.upsertSettings(settings); err != nil {
		return err
	}

	c.logger.Info().Str("style", string(style)).Msg("Style updated")
	return nil
}

// SetMaxWords overwrites the soft word limit, keeping the other fields
func (c *Client) SetMaxWords(ctx context.Context, n int) error {
	settings, err := c.GetSettings(ctx)
	if err != nil {
		return err
	}

	settings.MaxWords = n
	if err := c.upsertSettings(settings); err != nil {
		return err
	}

	c.logger.Info().Int("max_words", n).Msg("Max words updated")
	return nil
}

// upsertSettings writes the full settings row under the fixed id
func (c *Client) upsertSettings(settings *models.Settings) error {
	data := map[string]interface{}{
		"id":            settingsRowID,
		"system_prompt": settings.SystemPrompt,
		"style":         string(settings.Style),
		"max_tokens":    settings.MaxWords,
	}

	_, _, err := c.client.From("bot_settings").
		Insert(data, true, "", "", "").
		Execute()

	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}

	return nil
}
