package llm

import (
	"strings"
	"testing"

	"github.com/shivortex/bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() *models.Settings {
	return &models.Settings{
		SystemPrompt: "You are a private assistant.",
		Style:        models.StyleBrief,
		MaxWords:     140,
	}
}

func TestBuildPrompt_OrdersSections(t *testing.T) {
	history := []models.Turn{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
	}

	prompt := BuildPrompt(testSettings(), history, "what's 2+2?")

	// Sections appear in order: system prompt, rules, style, limit,
	// history, then the new message with the Assistant: tail.
	positions := []int{
		strings.Index(prompt, "You are a private assistant."),
		strings.Index(prompt, "ENFORCED RULES:"),
		strings.Index(prompt, "Style: brief, 1-2 sentences."),
		strings.Index(prompt, "MAX_APPROX_WORDS: 140"),
		strings.Index(prompt, "History:"),
		strings.Index(prompt, "User: hi"),
		strings.Index(prompt, "Assistant: hello"),
		strings.Index(prompt, "User: what's 2+2?\nAssistant:"),
	}

	for i, pos := range positions {
		require.GreaterOrEqual(t, pos, 0, "section %d missing from prompt:\n%s", i, prompt)
		if i > 0 {
			assert.Greater(t, pos, positions[i-1], "section %d out of order", i)
		}
	}

	assert.True(t, strings.HasSuffix(prompt, "User: what's 2+2?\nAssistant:"))
}

func TestBuildPrompt_OmitsHistoryBlockWhenEmpty(t *testing.T) {
	prompt := BuildPrompt(testSettings(), nil, "hello")

	assert.NotContains(t, prompt, "History:")
	assert.True(t, strings.HasSuffix(prompt, "User: hello\nAssistant:"))
}

func TestBuildPrompt_DetailedStyleInstruction(t *testing.T) {
	settings := testSettings()
	settings.Style = models.StyleDetailed

	prompt := BuildPrompt(settings, nil, "hello")

	assert.Contains(t, prompt, "Style: detailed, clear bullet points with steps.")
	assert.NotContains(t, prompt, "Style: brief")
}

func TestBuildPrompt_TruncatesLongHistoryTurns(t *testing.T) {
	long := strings.Repeat("a", 500)
	history := []models.Turn{{Role: models.RoleUser, Content: long}}

	prompt := BuildPrompt(testSettings(), history, "next")

	assert.Contains(t, prompt, "User: "+strings.Repeat("a", 240)+"...")
	assert.NotContains(t, prompt, strings.Repeat("a", 241))
}

func TestLowQuality(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"ellipsis", "The answer is probably...", true},
		{"double dot", "It depends..", true},
		{"short", "Yes.", true}, // the heuristic is literal: short answers misfire
		{"apology", "I apologize for the confusion, here is the real answer to that.", true},
		{"self reference", "As mentioned earlier, the total comes out to forty-two.", true},
		{"chatbot", "I'm a chatbot and cannot really answer subjective questions.", true},
		{"good", "The total comes out to forty-two.", false},
		{"case insensitive phrase", "PREVIOUSLY we discussed this at length and settled it.", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, lowQuality(tc.text))
		})
	}
}

func TestBuildParameters_ClampsTokenBudget(t *testing.T) {
	assert.Equal(t, 420, buildParameters(140).MaxOutputTokens)
	assert.Equal(t, 120, buildParameters(10).MaxOutputTokens)
	assert.Equal(t, 1024, buildParameters(5000).MaxOutputTokens)
}
