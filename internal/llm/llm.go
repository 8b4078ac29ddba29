// Package llm wraps the completion service behind a single Complete
// operation. The model is asked for a small JSON envelope {title, content};
// anything it returns that fails to parse is degraded to plain content
// rather than an error, since a usable narrative without a title beats a
// failed subsection.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alexwday/report-designer/internal/common/config"
	"github.com/alexwday/report-designer/internal/common/errors"
	"github.com/alexwday/report-designer/internal/common/logger"
)

// Envelope is the parsed model response.
type Envelope struct {
	Title   string
	Content string
}

// Completer is the LLM collaborator interface.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (Envelope, error)
}

// Client is the OpenAI-backed Completer.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
	log         logger.Logger
}

func NewClient(cfg config.OpenAIConfig, log logger.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		apiCfg.HTTPClient = &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Millisecond}
	}
	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		log:         log,
	}
}

func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (Envelope, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return Envelope{}, errors.NewLLMSynthesisFailedError(err)
	}
	if len(resp.Choices) == 0 {
		return Envelope{}, errors.NewLLMSynthesisFailedError(fmt.Errorf("no completion choices returned"))
	}

	return ParseEnvelope(resp.Choices[0].Message.Content, c.log), nil
}

// ParseEnvelope extracts {title, content} from raw model output. Non-JSON
// and malformed JSON degrade to the raw text as content with no title.
func ParseEnvelope(raw string, log logger.Logger) Envelope {
	trimmed := strings.TrimSpace(raw)

	var parsed struct {
		Title   *string `json:"title"`
		Content string  `json:"content"`
	}
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Content != "" {
		env := Envelope{Content: parsed.Content}
		if parsed.Title != nil {
			env.Title = strings.TrimSpace(*parsed.Title)
		}
		return env
	}

	if log != nil {
		log.Debug("model response was not a JSON envelope, using raw text", map[string]interface{}{
			"length": len(trimmed),
		})
	}
	return Envelope{Content: trimmed}
}
