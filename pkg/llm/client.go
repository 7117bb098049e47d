// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KummariJohnson/boston-api/internal/config"
	"github.com/KummariJohnson/boston-api/pkg/log"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// Defaults matching the generation settings the chatbot was tuned with.
const (
	DefaultModel       = "gemini-1.5-pro-latest"
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 512
)

// ErrEmptyCompletion is returned when the API answers without any choice.
var ErrEmptyCompletion = errors.New("llm returned no choices")

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client defines the interface for an LLM client.
type Client interface {
	// Complete sends the messages and returns the full, non-streamed answer.
	Complete(ctx context.Context, messages []Message) (string, error)
	Model() string
}

type chatClient struct {
	cfg    config.LLMConfig
	client openai.Client
}

// NewClient creates a chat-completions client. Gemini is reached through its
// OpenAI-compatible endpoint, so the same client serves any compatible vendor.
// SDK retries are disabled; a failed call surfaces immediately.
func NewClient(cfg config.LLMConfig) Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &chatClient{
		cfg: cfg,
		client: openai.NewClient(
			option.WithBaseURL(baseURL),
			option.WithAPIKey(cfg.APIKey),
			option.WithMaxRetries(0),
		),
	}
}

func (c *chatClient) Model() string {
	return c.cfg.Model
}

// Complete calls the chat completions API.
func (c *chatClient) Complete(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.cfg.Model),
		Messages:    toParams(messages),
		Temperature: openai.Float(c.cfg.Temperature),
		MaxTokens:   openai.Int(int64(c.cfg.MaxTokens)),
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		log.Errorf("[LLMClient] 调用 chat api 失败, model: %s, error: %v", c.cfg.Model, err)
		return "", fmt.Errorf("failed to call chat api: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return completion.Choices[0].Message.Content, nil
}

func toParams(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
