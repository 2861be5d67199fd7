package completion

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompleter talks to any OpenAI-compatible chat completions endpoint.
type OpenAICompleter struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewOpenAICompleter(cfg Config) *OpenAICompleter {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = strings.TrimRight(baseURL, "/")
	config.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAICompleter{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (c *OpenAICompleter) Model() string {
	return c.model
}

func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system := systemPrompt(req); system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserText,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}
