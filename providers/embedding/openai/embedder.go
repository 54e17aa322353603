// Package openai adapts the OpenAI embeddings API to the embedding.Embedder
// capability: the same client (github.com/openai/openai-go/v3) and
// apiKey+option.RequestOption construction used elsewhere in this
// codebase's OpenAI providers, trimmed to the single EmbedQuery
// operation this engine needs.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/orbitretrieval/engine/embedding"
)

var _ embedding.Embedder = (*Embedder)(nil)

// Config configures the OpenAI-backed Embedder.
type Config struct {
	// APIKey is the OpenAI API key. Required.
	APIKey string

	// Model is the embedding model name, e.g. "text-embedding-3-small".
	// Required.
	Model string

	// Dimensions constrains the output vector length. Required: the
	// engine needs this value up front to size the vector store
	// collection, and the API otherwise returns the model's native
	// dimensionality which may not match what was provisioned.
	Dimensions int

	// RequestOptions are additional client options, e.g. a custom base
	// URL for an OpenAI-compatible endpoint.
	RequestOptions []option.RequestOption
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return errors.New("openai embedder: api key is required")
	}
	if c.Model == "" {
		return errors.New("openai embedder: model is required")
	}
	if c.Dimensions <= 0 {
		return errors.New("openai embedder: dimensions must be positive")
	}
	return nil
}

// Embedder is an embedding.Embedder backed by the OpenAI embeddings API.
type Embedder struct {
	client     openai.Client
	model      string
	dimensions int
}

// New validates config and returns a ready Embedder.
func New(config *Config) (*Embedder, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	options := append(append([]option.RequestOption{}, config.RequestOptions...), option.WithAPIKey(config.APIKey))
	client := openai.NewClient(options...)

	return &Embedder{
		client:     client,
		model:      config.Model,
		dimensions: config.Dimensions,
	}, nil
}

// Dimensions reports the configured embedding dimensionality.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// EmbedQuery embeds a single piece of text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("openai embedder: text must not be empty")
	}

	params := openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
		Dimensions:     openai.Int(int64(e.dimensions)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai embedder: response contained no embeddings")
	}

	values := resp.Data[0].Embedding
	vector := make([]float32, len(values))
	for i, v := range values {
		vector[i] = float32(v)
	}
	return vector, nil
}
