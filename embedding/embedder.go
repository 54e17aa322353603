// Package embedding defines the Embedder capability the
// TemplateMatcher uses to turn template embedding text and user
// queries into vectors.
package embedding

import "context"

// Embedder converts text into a fixed-dimensionality vector.
type Embedder interface {
	// EmbedQuery embeds a single piece of text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the dimensionality D of vectors this
	// Embedder produces.
	Dimensions() int
}
