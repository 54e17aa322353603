// Package vectorstore defines the capability interface the retrieval
// engine uses to persist and query one embedding per template. The
// store is treated as an opaque external capability: the engine
// requires only monotone similarity (larger = closer) in [0,1] and
// id-addressed upsert/delete/query operations.
package vectorstore

import "context"

// Record is one template's persisted entry: its embedding plus enough
// metadata to drive diff-based reconciliation without holding a
// reference back to the Template itself (breaking the cyclic
// reference between store and template).
type Record struct {
	ID          string
	Embedding   []float32
	ContentHash string
	Version     string
}

// Match is one query result: the stored template id plus its
// similarity to the query, already normalized into [0,1] where 1 is
// an exact match.
type Match struct {
	ID         string
	Similarity float64
}

// Store is the persistent external vector store capability consumed
// by TemplateMatcher and the engine's startup reconciliation.
type Store interface {
	// Upsert writes or overwrites the record for id.
	Upsert(ctx context.Context, record Record) error

	// Delete removes the record for id. Deleting a nonexistent id is
	// not an error.
	Delete(ctx context.Context, id string) error

	// Query returns up to k records nearest to embedding, ordered by
	// similarity descending.
	Query(ctx context.Context, embedding []float32, k int) ([]Match, error)

	// GetAll returns the id and content hash of every record
	// currently stored, used to diff against the live template
	// library during startup reconciliation.
	GetAll(ctx context.Context) (map[string]string, error)

	// Dimensions reports the embedding dimensionality this store was
	// configured for.
	Dimensions() int
}
