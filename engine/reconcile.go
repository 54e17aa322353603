package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/orbitretrieval/engine/domain"
	"github.com/orbitretrieval/engine/matcher"
	"github.com/orbitretrieval/engine/template"
	"github.com/orbitretrieval/engine/vectorstore"
)

// ReloadReport summarizes what a Reload changed against the vector
// store: which template ids were upserted (new or changed content
// hash) and which were deleted (present in the store but no longer in
// the library). A report with both lists empty means the reload was a
// no-op against the store.
type ReloadReport struct {
	Upserted []string
	Deleted  []string
}

// Reload parses domainPath and templatePaths, reconciles the new
// library's embeddings against store, and atomically swaps the
// engine's live library and domain config. In-flight RetrieveContext
// calls keep using the snapshot they already loaded.
func (e *Engine) Reload(ctx context.Context, domainPath string, templatePaths []string, store vectorstore.Store) (*ReloadReport, error) {
	cfg, err := domain.Load(domainPath)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to load domain config: %w", err)
	}

	lib, problems, err := template.Load(templatePaths...)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to load template library: %w", err)
	}
	for _, p := range problems {
		e.logger.Warn().Err(p).Msg("template rejected during reload")
	}

	report, err := Reconcile(ctx, e.matcher, store, lib)
	if err != nil {
		return nil, fmt.Errorf("engine: reconciliation failed: %w", err)
	}

	e.domain.Store(cfg)
	e.library.Store(lib)

	return report, nil
}

// Reconcile diffs lib's templates against what store currently holds
// and upserts any new-or-changed template, then deletes any stored id
// no longer present in lib. Upserts run one at a time through the
// matcher; the stale-id deletes run concurrently, bounded by a fixed
// concurrency limit of 8 through an errgroup.
func Reconcile(ctx context.Context, m *matcher.Matcher, store vectorstore.Store, lib *template.Library) (*ReloadReport, error) {
	m.SetLibrary(lib)

	storedHashes, err := store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVectorStoreUnavailable, err)
	}

	liveIDs := make(map[string]struct{}, lib.Len())
	for _, tmpl := range lib.All() {
		liveIDs[tmpl.ID] = struct{}{}
	}

	upserted, err := m.Reconcile(ctx, storedHashes)
	if err != nil {
		return nil, err
	}

	var toDelete []string
	for id := range storedHashes {
		if _, ok := liveIDs[id]; !ok {
			toDelete = append(toDelete, id)
		}
	}

	if len(toDelete) > 0 {
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(8)
		for _, id := range toDelete {
			group.Go(func() error {
				return store.Delete(groupCtx, id)
			})
		}
		if err := group.Wait(); err != nil {
			return nil, fmt.Errorf("engine: failed to delete stale template(s): %w", err)
		}
	}

	return &ReloadReport{Upserted: upserted, Deleted: toDelete}, nil
}
