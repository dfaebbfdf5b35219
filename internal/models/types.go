package models

import "time"

// Style controls how the assistant formats its answers
type Style string

const (
	// StyleBrief keeps answers to one or two sentences
	StyleBrief Style = "brief"

	// StyleDetailed produces bullet points with steps
	StyleDetailed Style = "detailed"
)

// Valid reports whether the style is one of the known values
func (s Style) Valid() bool {
	return s == StyleBrief || s == StyleDetailed
}

// Turn roles as stored in the messages table
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Settings is the singleton configuration row (bot_settings, id=1).
// MaxWords is a soft limit; the column is named max_tokens for
// backwards compatibility with the original schema.
type Settings struct {
	SystemPrompt string `json:"system_prompt"`
	Style        Style  `json:"style"`
	MaxWords     int    `json:"max_tokens"`
}

// Turn is one role-tagged message stored against a chat
type Turn struct {
	ChatID    int64     `json:"chat_id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// BotConfig represents bot configuration
type BotConfig struct {
	// Telegram settings
	TelegramToken string
	AdminID       int64

	// Cloudflare Workers AI settings
	CFAccountID string
	CFAPIKey    string
	CFModel     string
	CFTimeout   int

	// Supabase settings
	SupabaseURL     string
	SupabaseKey     string
	SupabaseTimeout int

	// App settings
	HistoryLimit int
	RestartDelay int
	LogLevel     string
	Environment  string
}

// IsAdmin checks if the given Telegram user ID is the configured admin
func (c *BotConfig) IsAdmin(userID int64) bool {
	return userID == c.AdminID
}
