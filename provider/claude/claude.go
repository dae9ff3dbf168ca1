// Package claude backs full-page regeneration with the Anthropic SDK.
package claude

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// DefaultConfig returns default Anthropic configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:       string(anthropic.ModelClaudeSonnet4_20250514),
		MaxTokens:   8192,
		Temperature: 0.7,
	}
}

// Provider talks to the Anthropic messages API. It implements the
// editor.Generator interface.
type Provider struct {
	config *Config
	client anthropic.Client
}

// New creates an Anthropic provider using the official SDK.
func New(config *Config) *Provider {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Model == "" {
		config.Model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 8192
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
		option.WithAuthToken(""),
	)

	return &Provider{
		config: config,
		client: client,
	}
}

// Generate implements editor.Generator with a single system+user exchange.
func (p *Provider) Generate(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: p.config.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}
	if p.config.Temperature > 0 {
		params.Temperature = param.NewOpt(p.config.Temperature)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}

	var text string
	for _, content := range resp.Content {
		if content.Type == "text" {
			text += content.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text content returned from Anthropic")
	}
	return text, nil
}
