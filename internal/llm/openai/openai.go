// Package openai wraps langchaingo's OpenAI chat model behind domain.ChatModel.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// Config configures the chat client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
}

// Client sends one prompt per call and returns the generated text.
type Client struct {
	llm         llms.Model
	model       string
	temperature float64
}

// NewClient creates a chat client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing API key for chat model")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-5-nano"
	}
	opts := []lcopenai.Option{
		lcopenai.WithToken(cfg.APIKey),
		lcopenai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lcopenai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := lcopenai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}
	temp := cfg.Temperature
	if !supportsTemperature(cfg.Model) {
		temp = 1
	}
	return &Client{llm: llm, model: cfg.Model, temperature: temp}, nil
}

// supportsTemperature reports whether the model accepts a temperature other
// than 1. Reasoning models (o-series, gpt-5 except the chat variants) reject it.
func supportsTemperature(model string) bool {
	m := strings.ToLower(model)
	if i := strings.LastIndex(m, "/"); i >= 0 {
		m = m[i+1:]
	}
	switch {
	case strings.HasPrefix(m, "gpt-5-chat"):
		return true
	case strings.HasPrefix(m, "gpt-5"),
		strings.HasPrefix(m, "o1"),
		strings.HasPrefix(m, "o3"),
		strings.HasPrefix(m, "o4"):
		return false
	}
	return true
}

// Model returns the chat model name.
func (c *Client) Model() string { return c.model }

// Complete blocks until the model returns text for prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, llms.WithTemperature(c.temperature))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return out, nil
}
