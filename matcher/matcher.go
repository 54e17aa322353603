// Package matcher turns a natural-language query into ranked template
// candidates: it embeds the query, queries the vector store for
// nearest templates, and filters by a confidence threshold.
package matcher

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/orbitretrieval/engine/embedding"
	"github.com/orbitretrieval/engine/template"
	"github.com/orbitretrieval/engine/vectorstore"
)

// Candidate is one ranked template match.
type Candidate struct {
	Template   *template.Template
	Similarity float64
}

// Matcher finds the best-matching templates for a query. library is
// held behind an atomic pointer so SetLibrary can swap it in place
// after a reload without requiring callers to rebuild the Matcher.
type Matcher struct {
	embedder embedding.Embedder
	store    vectorstore.Store
	library  *atomic.Pointer[template.Library]
	logger   zerolog.Logger
}

// New returns a Matcher over library, backed by embedder and store.
func New(embedder embedding.Embedder, store vectorstore.Store, library *template.Library, logger zerolog.Logger) *Matcher {
	libPtr := &atomic.Pointer[template.Library]{}
	libPtr.Store(library)
	return &Matcher{
		embedder: embedder,
		store:    store,
		library:  libPtr,
		logger:   logger.With().Str("component", "matcher").Logger(),
	}
}

// SetLibrary atomically swaps the library FindBest and Reconcile
// operate against. Safe to call concurrently with in-flight FindBest
// or Reconcile calls, which keep using whichever library they already
// loaded.
func (m *Matcher) SetLibrary(library *template.Library) {
	m.library.Store(library)
}

// FindBest embeds query, queries the store for up to k nearest
// templates, maps the results back to Templates, and drops any whose
// similarity is below threshold. Results are ordered by similarity
// descending; a candidate exactly at threshold is kept (inclusive:
// a similarity equal to the threshold counts as a match).
//
// Any embedder or store failure is logged and surfaces as an empty
// candidate list rather than an error: callers treat an empty list the
// same as "nothing matched".
func (m *Matcher) FindBest(ctx context.Context, query string, k int, threshold float64) []Candidate {
	if query == "" || k <= 0 {
		return nil
	}

	vector, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to embed query")
		return nil
	}

	matches, err := m.store.Query(ctx, vector, k)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to query vector store")
		return nil
	}

	library := m.library.Load()
	candidates := lo.FilterMap(matches, func(match vectorstore.Match, _ int) (Candidate, bool) {
		if match.Similarity < threshold {
			return Candidate{}, false
		}
		tmpl, ok := library.Get(match.ID)
		if !ok {
			m.logger.Warn().Str("template_id", match.ID).Msg("vector store referenced an unknown template")
			return Candidate{}, false
		}
		return Candidate{Template: tmpl, Similarity: match.Similarity}, true
	})

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	return candidates
}

// Reconcile computes the embedding-text content hash of every template
// in the library, compares it against what the store currently holds,
// and upserts any template that is new or whose hash changed. Deleting
// ids no longer present in the library is handled by the caller
// (engine's startup reconciliation), since Reconcile has no authority
// to decide whether a missing template means "removed" or "not yet
// loaded".
func (m *Matcher) Reconcile(ctx context.Context, storedHashes map[string]string) (upserted []string, err error) {
	for _, tmpl := range m.library.Load().All() {
		hash := tmpl.ContentHash()
		if storedHashes[tmpl.ID] == hash {
			continue
		}

		vector, embedErr := m.embedder.EmbedQuery(ctx, tmpl.EmbeddingText())
		if embedErr != nil {
			return upserted, fmt.Errorf("matcher: failed to embed template %s: %w", tmpl.ID, embedErr)
		}

		record := vectorstore.Record{
			ID:          tmpl.ID,
			Embedding:   vector,
			ContentHash: hash,
			Version:     tmpl.Version,
		}
		if upsertErr := m.store.Upsert(ctx, record); upsertErr != nil {
			return upserted, fmt.Errorf("matcher: failed to upsert template %s: %w", tmpl.ID, upsertErr)
		}

		upserted = append(upserted, tmpl.ID)
	}

	return upserted, nil
}
