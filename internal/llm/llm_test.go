package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexwday/report-designer/internal/common/config"
	"github.com/alexwday/report-designer/internal/common/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(config.OpenAIConfig{
		APIKey:      "test-key",
		BaseURL:     server.URL + "/v1",
		Model:       "gpt-4o",
		Temperature: 0.7,
		MaxTokens:   2000,
	}, logger.NewTestLogger(t))
	return client, server
}

func chatResponse(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "gpt-4o",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	}
}

func TestCompleteParsesJSONEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse(`{"title": "Capital Strength", "content": "CET1 held at 13.2%."}`))
	})

	env, err := client.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "Capital Strength", env.Title)
	assert.Equal(t, "CET1 held at 13.2%.", env.Content)
}

func TestCompleteDegradesOnMalformedJSON(t *testing.T) {
	raw := "Here is the narrative without any JSON wrapping."
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse(raw))
	})

	env, err := client.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Empty(t, env.Title)
	assert.Equal(t, raw, env.Content)
}

func TestCompleteSurfacesAPIErrors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"message": "upstream exploded"}}`))
	})

	_, err := client.Complete(context.Background(), "system", "user")
	require.Error(t, err)
}

func TestCompleteAbortsAfterConfiguredTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	client := NewClient(config.OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
		Model:   "gpt-4o",
		Timeout: 50,
	}, logger.NewTestLogger(t))

	start := time.Now()
	_, err := client.Complete(context.Background(), "system", "user")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantTitle   string
		wantContent string
	}{
		{
			name:        "full envelope",
			raw:         `{"title": "Q1 Overview", "content": "Revenue rose."}`,
			wantTitle:   "Q1 Overview",
			wantContent: "Revenue rose.",
		},
		{
			name:        "null title",
			raw:         `{"title": null, "content": "Revenue rose."}`,
			wantTitle:   "",
			wantContent: "Revenue rose.",
		},
		{
			name:        "plain text fallback",
			raw:         "Just prose.",
			wantTitle:   "",
			wantContent: "Just prose.",
		},
		{
			name:        "json without content falls back to raw",
			raw:         `{"headline": "wrong shape"}`,
			wantTitle:   "",
			wantContent: `{"headline": "wrong shape"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := ParseEnvelope(tt.raw, logger.NewNoOpLogger())
			assert.Equal(t, tt.wantTitle, env.Title)
			assert.Equal(t, tt.wantContent, env.Content)
		})
	}
}
