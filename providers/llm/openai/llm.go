// Package openai adapts the OpenAI chat completions API to the llm.LLM
// capability: the same client (github.com/openai/openai-go/v3) and
// message-building conventions as the embedding provider, trimmed to
// a single-turn, non-streaming, tool-free exchange.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/orbitretrieval/engine/llm"
)

var _ llm.LLM = (*LLM)(nil)

// Config configures the OpenAI-backed LLM.
type Config struct {
	// APIKey is the OpenAI API key. Required.
	APIKey string

	// Model is the chat model name, e.g. "gpt-4o-mini". Required.
	Model string

	// RequestOptions are additional client options, e.g. a custom base
	// URL for an OpenAI-compatible endpoint.
	RequestOptions []option.RequestOption
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return errors.New("openai llm: api key is required")
	}
	if c.Model == "" {
		return errors.New("openai llm: model is required")
	}
	return nil
}

// LLM is an llm.LLM backed by the OpenAI chat completions API.
type LLM struct {
	client openai.Client
	model  string
}

// New validates config and returns a ready LLM.
func New(config *Config) (*LLM, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	options := append(append([]option.RequestOption{}, config.RequestOptions...), option.WithAPIKey(config.APIKey))
	client := openai.NewClient(options...)

	return &LLM{
		client: client,
		model:  config.Model,
	}, nil
}

// Generate sends systemPrompt and userPrompt as a two-message chat
// completion request and returns the first choice's text content.
func (l *LLM) Generate(ctx context.Context, systemPrompt, userPrompt string, opts llm.Options) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: l.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	}
	if opts.Temperature != 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.MaxTokens != 0 {
		params.MaxTokens = openai.Int(opts.MaxTokens)
	}

	resp, err := l.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai llm: request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai llm: response contained no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
