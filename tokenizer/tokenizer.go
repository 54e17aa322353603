// Package tokenizer defines the token-count Estimator the
// ParameterExtractor uses to keep prompts within a model's context
// budget.
package tokenizer

import "context"

// Estimator counts how many tokens a piece of text would consume.
type Estimator interface {
	// EstimateText returns the token count for text.
	EstimateText(ctx context.Context, text string) (int, error)
}
