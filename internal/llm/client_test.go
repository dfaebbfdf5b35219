package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shivortex/bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	settings *models.Settings
	history  []models.Turn
}

func (f *fakeSource) GetSettings(ctx context.Context) (*models.Settings, error) {
	return f.settings, nil
}

func (f *fakeSource) LoadRecent(ctx context.Context, chatID int64, limit int) ([]models.Turn, error) {
	return f.history, nil
}

func newTestClient(endpoint string) *Client {
	return &Client{
		endpoint:     endpoint,
		apiKey:       "test-key",
		timeout:      2 * time.Second,
		historyLimit: 4,
		httpClient:   &http.Client{Timeout: 2 * time.Second},
		source: &fakeSource{
			settings: &models.Settings{
				SystemPrompt: "You are a test assistant.",
				Style:        models.StyleBrief,
				MaxWords:     140,
			},
		},
		logger:       zerolog.Nop(),
		networkDelay: time.Millisecond,
		gateDelay:    time.Millisecond,
	}
}

// modelServer replies with the given bodies in sequence and records every
// request payload it receives
func modelServer(t *testing.T, bodies ...string) (*httptest.Server, *[]requestPayload) {
	t.Helper()

	var seen []requestPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload requestPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		seen = append(seen, payload)

		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		idx := len(seen) - 1
		if idx >= len(bodies) {
			idx = len(bodies) - 1
		}
		body := bodies[idx]
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	return srv, &seen
}

func resultBody(text string) string {
	data, _ := json.Marshal(map[string]any{"result": map[string]any{"response": text}})
	return string(data)
}

func TestAsk_ReturnsAcceptedResponse(t *testing.T) {
	srv, seen := modelServer(t, resultBody("The answer is four."))
	c := newTestClient(srv.URL)

	reply, err := c.Ask(context.Background(), 42, "what's 2+2?")

	require.NoError(t, err)
	assert.Equal(t, "The answer is four.", reply)
	require.Len(t, *seen, 1)

	// system message carries the assembled prompt, user message the raw text
	payload := (*seen)[0]
	require.Len(t, payload.Messages, 2)
	assert.Equal(t, "system", payload.Messages[0].Role)
	assert.Contains(t, payload.Messages[0].Content, "ENFORCED RULES:")
	assert.Equal(t, "user", payload.Messages[1].Role)
	assert.Equal(t, "what's 2+2?", payload.Messages[1].Content)
	assert.Equal(t, 420, payload.Parameters.MaxOutputTokens)
}

func TestAsk_TruncatedResponseTriggersOneStrictRetry(t *testing.T) {
	srv, seen := modelServer(t,
		resultBody("Well, it would be..."),
		resultBody("The answer is four."),
	)
	c := newTestClient(srv.URL)

	reply, err := c.Ask(context.Background(), 42, "what's 2+2?")

	require.NoError(t, err)
	assert.Equal(t, "The answer is four.", reply)
	require.Len(t, *seen, 2)

	assert.NotContains(t, (*seen)[0].Messages[0].Content, "STRICT:")
	assert.Contains(t, (*seen)[1].Messages[0].Content, "STRICT: Do NOT apologize")
}

func TestAsk_RetryResultReturnedWithoutSecondGate(t *testing.T) {
	srv, seen := modelServer(t,
		resultBody("Hmm..."),
		resultBody("Still bad..."),
	)
	c := newTestClient(srv.URL)

	reply, err := c.Ask(context.Background(), 42, "question")

	require.NoError(t, err)
	assert.Equal(t, "Still bad...", reply)
	assert.Len(t, *seen, 2)
}

func TestAsk_ApologyTriggersRetry(t *testing.T) {
	srv, seen := modelServer(t,
		resultBody("I apologize for my earlier answer, let me reconsider this question."),
		resultBody("The capital of France is Paris."),
	)
	c := newTestClient(srv.URL)

	reply, err := c.Ask(context.Background(), 42, "capital of France?")

	require.NoError(t, err)
	assert.Equal(t, "The capital of France is Paris.", reply)
	assert.Len(t, *seen, 2)
}

func TestAsk_ModelErrorShortCircuits(t *testing.T) {
	srv, seen := modelServer(t, `{"error":"model is over capacity"}`)
	c := newTestClient(srv.URL)

	reply, err := c.Ask(context.Background(), 42, "question")

	require.NoError(t, err)
	assert.Equal(t, "❌ Model error: model is over capacity", reply)
	assert.Len(t, *seen, 1)
}

func TestAsk_GeneratedTextShape(t *testing.T) {
	srv, _ := modelServer(t, `{"generated_text":"A perfectly complete answer."}`)
	c := newTestClient(srv.URL)

	reply, err := c.Ask(context.Background(), 42, "question")

	require.NoError(t, err)
	assert.Equal(t, "A perfectly complete answer.", reply)
}

func TestAsk_UnknownShapeIsStringified(t *testing.T) {
	srv, _ := modelServer(t, `{"outcome":{"text":"something unexpected"}}`)
	c := newTestClient(srv.URL)

	reply, err := c.Ask(context.Background(), 42, "question")

	require.NoError(t, err)
	assert.Contains(t, reply, `"outcome"`)
}

func TestAsk_NetworkErrorOnBothAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused for every attempt
	c := newTestClient(srv.URL)

	reply, err := c.Ask(context.Background(), 42, "question")

	require.NoError(t, err)
	assert.Contains(t, reply, "⚠️ LLM network error:")
}

func TestAsk_InvalidJSONIsNetworkError(t *testing.T) {
	srv, seen := modelServer(t, `<html>bad gateway</html>`)
	c := newTestClient(srv.URL)

	reply, err := c.Ask(context.Background(), 42, "question")

	require.NoError(t, err)
	assert.Contains(t, reply, "⚠️ LLM network error:")
	assert.Len(t, *seen, 2)
}

func TestAsk_HistoryRenderedChronologically(t *testing.T) {
	srv, seen := modelServer(t, resultBody("A complete answer, rendered."))
	c := newTestClient(srv.URL)
	c.source = &fakeSource{
		settings: &models.Settings{SystemPrompt: "sys", Style: models.StyleBrief, MaxWords: 140},
		history: []models.Turn{
			{Role: models.RoleUser, Content: "hi"},
			{Role: models.RoleAssistant, Content: "hello"},
		},
	}

	_, err := c.Ask(context.Background(), 42, "what's 2+2?")
	require.NoError(t, err)

	prompt := (*seen)[0].Messages[0].Content
	assert.Contains(t, prompt, "History:\nUser: hi\nAssistant: hello\n")
}

func TestParseResponse_ErrorObjectKeptRaw(t *testing.T) {
	_, modelErr, err := parseResponse([]byte(`{"error":{"code":7009,"message":"upstream"}}`))

	require.NoError(t, err)
	assert.Contains(t, modelErr, "7009")
}
