package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shivortex/bot/internal/models"
)

// BuildPrompt assembles the system block sent to the model: the stored
// system prompt, the enforced rules, a style instruction, the soft word
// limit, the chronological history (each turn truncated) and the new
// user message with an Assistant: tail for the model to complete.
func BuildPrompt(settings *models.Settings, history []models.Turn, userMessage string) string {
	styleInstruction := "Style: brief, 1-2 sentences."
	if settings.Style == models.StyleDetailed {
		styleInstruction = "Style: detailed, clear bullet points with steps."
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(settings.SystemPrompt))
	b.WriteString("\n\n")
	b.WriteString(EnforcedRules)
	b.WriteString("\n")
	b.WriteString(styleInstruction)
	b.WriteString("\n")
	fmt.Fprintf(&b, "MAX_APPROX_WORDS: %d\n\n", settings.MaxWords)

	if len(history) > 0 {
		b.WriteString("History:\n")
		for _, turn := range history {
			label := "Assistant"
			if turn.Role == models.RoleUser {
				label = "User"
			}
			fmt.Fprintf(&b, "%s: %s\n", label, truncateTurn(turn.Content))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "User: %s\nAssistant:", userMessage)
	return b.String()
}

// truncateTurn compresses a history turn to its first runes to keep the
// prompt small
func truncateTurn(content string) string {
	if utf8.RuneCountInString(content) <= historyTurnLimit {
		return content
	}
	return string([]rune(content)[:historyTurnLimit]) + "..."
}

// lowQuality reports whether a reply looks truncated or contains banned
// self-referential language. Deliberately literal: a legitimate short
// answer like "Yes." is flagged too.
func lowQuality(text string) bool {
	if strings.HasSuffix(text, "...") || strings.HasSuffix(text, "..") {
		return true
	}
	if utf8.RuneCountInString(text) < minResponseLen {
		return true
	}

	low := strings.ToLower(text)
	for _, phrase := range bannedPhrases {
		if strings.Contains(low, phrase) {
			return true
		}
	}

	return false
}
