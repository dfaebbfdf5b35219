package storage

import (
	"context"
	"fmt"
)

// EnsureChat upserts the existence marker for a chat before its first
// message is processed. The chats row carries no other attributes.
func (c *Client) EnsureChat(ctx context.Context, chatID int64) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data := map[string]interface{}{
		"chat_id": chatID,
	}

	_, _, err := c.client.From("chats").
		Insert(data, true, "chat_id", "", "").
		Execute()

	if err != nil {
		return fmt.Errorf("failed to upsert chat: %w", err)
	}

	return nil
}
