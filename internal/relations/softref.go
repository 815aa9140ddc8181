package relations

import (
	"context"
	"fmt"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/docstore"
)

// SoftRefs is a list of document IDs whose targets may have been deleted.
type SoftRefs struct {
	Collection string
	IDs        []string
}

// Resolve returns the referenced documents that still exist, in reference
// order. Dangling IDs are dropped.
func (r SoftRefs) Resolve(ctx context.Context, store docstore.Store) ([]docstore.Document, int, error) {
	if len(r.IDs) == 0 {
		return []docstore.Document{}, 0, nil
	}
	docs, err := store.GetMany(ctx, r.Collection, r.IDs)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve %s refs: %w", r.Collection, err)
	}
	out := make([]docstore.Document, 0, len(docs))
	dropped := 0
	for _, doc := range docs {
		if doc == nil {
			dropped++
			continue
		}
		out = append(out, *doc)
	}
	return out, dropped, nil
}

func (m *Manager) resolve(ctx context.Context, refs SoftRefs) ([]docstore.Document, error) {
	docs, dropped, err := refs.Resolve(ctx, m.store)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		m.logger.Debug("skipped dangling references", "collection", refs.Collection, "dropped", dropped)
	}
	return docs, nil
}

func resolveAs[T any](ctx context.Context, m *Manager, refs SoftRefs) ([]T, error) {
	docs, err := m.resolve(ctx, refs)
	if err != nil {
		return nil, err
	}
	return docstore.DecodeAll[T](docs)
}
