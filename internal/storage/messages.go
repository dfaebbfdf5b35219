package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shivortex/bot/internal/models"
	postgrest "github.com/supabase/postgrest-go"
)

// SaveTurn inserts one role-tagged message for a chat.
// Single insert, no retry: a failure propagates to the caller.
func (c *Client) SaveTurn(ctx context.Context, chatID int64, role, content string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data := map[string]interface{}{
		"chat_id": chatID,
		"role":    role,
		"content": content,
	}

	_, _, err := c.client.From("messages").
		Insert(data, false, "", "", "").
		Execute()

	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}

	c.logger.Debug().
		Int64("chat_id", chatID).
		Str("role", role).
		Int("content_len", len(content)).
		Msg("Turn saved")

	return nil
}

// LoadRecent returns the most recent turns for a chat in chronological
// order, oldest first. The store is queried descending by created_at and
// the result reversed.
func (c *Client) LoadRecent(ctx context.Context, chatID int64, limit int) ([]models.Turn, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, _, err := c.client.From("messages").
		Select("role,content", "exact", false).
		Eq("chat_id", strconv.FormatInt(chatID, 10)).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent turns: %w", err)
	}

	turns, err := unmarshalTurns(data)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int64("chat_id", chatID).
		Int("count", len(turns)).
		Msg("Recent turns loaded")

	return turns, nil
}

// LoadAll returns the full history for a chat in chronological order,
// including timestamps, for export.
func (c *Client) LoadAll(ctx context.Context, chatID int64) ([]models.Turn, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, _, err := c.client.From("messages").
		Select("role,content,created_at", "exact", false).
		Eq("chat_id", strconv.FormatInt(chatID, 10)).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to fetch full history: %w", err)
	}

	turns, err := unmarshalTurns(data)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int64("chat_id", chatID).
		Int("count", len(turns)).
		Msg("Full history loaded")

	return turns, nil
}

// DeleteAll removes every turn for the chat. Irreversible.
func (c *Client) DeleteAll(ctx context.Context, chatID int64) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, _, err := c.client.From("messages").
		Delete("", "").
		Eq("chat_id", strconv.FormatInt(chatID, 10)).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}

	c.logger.Info().
		Int64("chat_id", chatID).
		Msg("Chat history deleted")

	return nil
}

// unmarshalTurns parses a descending query result and reverses it to
// chronological order in place.
func unmarshalTurns(data []byte) ([]models.Turn, error) {
	var turns []models.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal turns: %w", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}
