package relations

import (
	"context"
	"fmt"
	"maps"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/docstore"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/model"
)

// BulkCreate stores records as new documents in one batch. Every record gets
// the same created_at and starts with empty relationship fields. IDs are
// returned in input order; on failure nothing is created.
func (m *Manager) BulkCreate(ctx context.Context, collection string, records []map[string]any) ([]string, error) {
	ids := make([]string, 0, len(records))
	if len(records) == 0 {
		return ids, nil
	}
	stamp := docstore.FormatTime(m.now())
	batch := m.store.Batch()
	for _, record := range records {
		fields := maps.Clone(record)
		delete(fields, "id")
		fields[model.FieldCreatedAt] = stamp
		model.ResetRelationFields(collection, fields)
		id := m.store.NewID(collection)
		batch.Set(collection, id, fields)
		ids = append(ids, id)
	}
	if err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("bulk create %s: %w", collection, err)
	}
	m.logger.Info("bulk created", "collection", collection, "count", len(ids))
	return ids, nil
}
