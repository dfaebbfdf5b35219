package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shivortex/bot/internal/models"
)

// attempts is the request budget per user message, network errors included
const attempts = 2

const (
	networkRetryDelay = 600 * time.Millisecond
	gateRetryDelay    = 400 * time.Millisecond
)

// PromptSource supplies the settings and history needed to build a prompt
type PromptSource interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	LoadRecent(ctx context.Context, chatID int64, limit int) ([]models.Turn, error)
}

// Client calls a Cloudflare Workers AI inference endpoint
type Client struct {
	endpoint     string
	apiKey       string
	timeout      time.Duration
	historyLimit int
	httpClient   *http.Client
	source       PromptSource
	logger       zerolog.Logger

	// delays between attempts, shortened in tests
	networkDelay time.Duration
	gateDelay    time.Duration
}

// NewClient creates a Workers AI client for the configured account and model
func NewClient(cfg *models.BotConfig, source PromptSource, logger zerolog.Logger) *Client {
	timeout := time.Duration(cfg.CFTimeout) * time.Second

	return &Client{
		endpoint: fmt.Sprintf(
			"https://api.cloudflare.com/client/v4/accounts/%s/ai/run/%s",
			cfg.CFAccountID, cfg.CFModel,
		),
		apiKey:       cfg.CFAPIKey,
		timeout:      timeout,
		historyLimit: cfg.HistoryLimit,
		httpClient:   &http.Client{Timeout: timeout},
		source:       source,
		logger:       logger.With().Str("component", "llm").Logger(),
		networkDelay: networkRetryDelay,
		gateDelay:    gateRetryDelay,
	}
}

// Ask builds a prompt from settings and recent history, calls the model
// and returns the best available reply text. Network failures surface as
// a user-visible warning string; only settings/history store failures
// return an error.
func (c *Client) Ask(ctx context.Context, chatID int64, userMessage string) (string, error) {
	settings, err := c.source.GetSettings(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load settings: %w", err)
	}

	params := buildParameters(settings.MaxWords)

	var last string
	for attempt := 0; attempt < attempts; attempt++ {
		history, err := c.source.LoadRecent(ctx, chatID, c.historyLimit)
		if err != nil {
			return "", fmt.Errorf("failed to load history: %w", err)
		}

		prompt := BuildPrompt(settings, history, userMessage)

		body, err := c.post(ctx, prompt, userMessage, params)
		var text, modelErr string
		if err == nil {
			text, modelErr, err = parseResponse(body)
		}
		if err != nil {
			last = "⚠️ LLM network error: " + err.Error()
			c.logger.Warn().
				Err(err).
				Int64("chat_id", chatID).
				Int("attempt", attempt+1).
				Msg("Model request failed")
			if attempt == attempts-1 {
				return last, nil
			}
			time.Sleep(c.networkDelay)
			continue
		}

		// Model-reported errors short-circuit without retry
		if modelErr != "" {
			c.logger.Error().
				Str("model_error", modelErr).
				Int64("chat_id", chatID).
				Msg("Model returned an error")
			return "❌ Model error: " + modelErr, nil
		}

		text = strings.TrimSpace(text)
		last = text

		if !lowQuality(text) {
			c.logger.Info().
				Int64("chat_id", chatID).
				Int("response_len", len(text)).
				Msg("Model response accepted")
			return text, nil
		}

		// One regeneration with a stricter instruction. Whatever comes
		// back is the answer; the gate is not applied twice.
		c.logger.Info().
			Int64("chat_id", chatID).
			Int("response_len", len(text)).
			Msg("Low-quality response, regenerating with strict instruction")

		time.Sleep(c.gateDelay)

		retryBody, retryErr := c.post(ctx, prompt+StrictSuffix, userMessage, params)
		if retryErr != nil {
			return "⚠️ LLM retry failed: " + retryErr.Error(), nil
		}

		retryText, retryModelErr, parseErr := parseResponse(retryBody)
		if parseErr != nil {
			return "⚠️ LLM retry failed: " + parseErr.Error(), nil
		}
		if retryModelErr != "" {
			return "❌ Model error: " + retryModelErr, nil
		}

		return strings.TrimSpace(retryText), nil
	}

	if last == "" {
		last = FallbackMessage
	}
	return last, nil
}

// post sends one inference request and returns the raw response body.
// Non-2xx statuses are not treated as errors; the body is parsed either way.
func (c *Client) post(ctx context.Context, systemPrompt, userMessage string, params parameters) ([]byte, error) {
	payload := requestPayload{
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		Parameters: params,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return data, nil
}

// parseResponse extracts reply text from a Workers AI response body.
// Recognized shapes: {result:{response}}, {generated_text}, {error}.
// Any other valid JSON is stringified and returned as the reply text;
// invalid JSON is a network-level error.
func parseResponse(data []byte) (text, modelErr string, err error) {
	if !json.Valid(data) {
		return "", "", fmt.Errorf("invalid JSON in response")
	}

	var env responseEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		// valid JSON of an unexpected kind (scalar, array)
		return strings.TrimSpace(string(data)), "", nil
	}

	if env.Error != nil {
		var msg string
		if json.Unmarshal(env.Error, &msg) != nil {
			msg = string(env.Error)
		}
		return "", msg, nil
	}
	if env.Result != nil && env.Result.Response != nil {
		return *env.Result.Response, "", nil
	}
	if env.GeneratedText != nil {
		return *env.GeneratedText, "", nil
	}

	return string(data), "", nil
}

// buildParameters maps the soft word limit onto the generation block.
// Token budget is roughly three tokens per word, clamped to [120, 1024].
func buildParameters(maxWords int) parameters {
	tokens := maxWords * 3
	if tokens < 120 {
		tokens = 120
	}
	if tokens > 1024 {
		tokens = 1024
	}

	return parameters{
		MaxOutputTokens:   tokens,
		Temperature:       0.25,
		TopP:              0.9,
		RepetitionPenalty: 1.02,
	}
}
