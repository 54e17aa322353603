// Package llm defines the LLM capability the ParameterExtractor uses to
// turn a matched template and a user query into structured parameter
// values.
package llm

import "context"

// Options adjusts a single Generate call.
type Options struct {
	// Temperature controls sampling randomness. Zero value lets the
	// provider use its own default.
	Temperature float64

	// MaxTokens caps the length of the generated completion. Zero
	// means unset.
	MaxTokens int64
}

// LLM generates a text completion for a prompt. The ParameterExtractor
// treats the model as a single-turn, non-streaming text generator: it
// sends one system+user exchange and expects one JSON-bearing response.
type LLM interface {
	// Generate sends systemPrompt and userPrompt as a two-message
	// exchange and returns the model's text response.
	Generate(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error)
}
