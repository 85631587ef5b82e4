// Package ai wraps the OpenRouter-compatible chat completion API used to
// generate coach replies.
package ai

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// Config holds the generation provider configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// DefaultConfig returns the default configuration, pointed at OpenRouter.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://openrouter.ai/api/v1",
		Model:      "meta-llama/llama-3.1-8b-instruct:free",
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}
}

// Message is one chat turn sent to the model.
type Message struct {
	Role    string
	Content string
}

// Generator produces a reply from a conversation. The chat pipeline depends
// on this interface so tests can substitute a fake.
type Generator interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Provider implements Generator over an OpenAI-compatible endpoint.
type Provider struct {
	client *openai.Client
	config *Config
}

// NewProvider creates a provider from config, applying defaults for unset
// values.
func NewProvider(cfg *Config) *Provider {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "meta-llama/llama-3.1-8b-instruct:free"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// Chat performs a chat completion with bounded retry on transient failures.
func (p *Provider) Chat(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    p.config.Model,
		Messages: make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, msg := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
	}

	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			slog.Warn("chat completion retry", "attempt", attempt, "backoff", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		resp, err := p.client.CreateChatCompletion(callCtx, req)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errors.New("empty completion response")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", errors.Wrap(lastErr, "chat completion")
}
