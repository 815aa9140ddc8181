// Package relations keeps the links between planning documents consistent.
//
// Every relationship is stored on both documents (epic.stories and
// story.epic_id, story.tasks and task.story_id, task.assignees and
// developer.assigned_tasks), so mutations here always write both sides in one
// atomic batch. Task dependencies are one-sided and must stay acyclic.
//
// References are soft: deleting a document does not cascade, and every read
// path silently drops IDs whose documents no longer exist.
package relations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/docstore"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/model"
)

var (
	// ErrEntityNotFound matches every *NotFoundError.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrCircularDependency matches every *CycleError.
	ErrCircularDependency = errors.New("circular dependency")
)

// NotFoundError names the document a guarded operation could not find.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrEntityNotFound }

// CycleError rejects a dependency edge that would close a cycle.
type CycleError struct {
	TaskID      string
	DependsOnID string
}

func (e *CycleError) Error() string {
	if e.TaskID == e.DependsOnID {
		return fmt.Sprintf("task %s cannot depend on itself", e.TaskID)
	}
	return fmt.Sprintf("task %s cannot depend on %s: it would create a cycle", e.TaskID, e.DependsOnID)
}

func (e *CycleError) Is(target error) bool { return target == ErrCircularDependency }

// Manager performs relationship mutations and reads.
type Manager struct {
	store  docstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewManager returns a Manager over store.
func NewManager(store docstore.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger, now: time.Now}
}

// Store returns the underlying document store.
func (m *Manager) Store() docstore.Store { return m.store }

// require fetches one document, translating absence into a NotFoundError.
func (m *Manager) require(ctx context.Context, collection, id string) (*docstore.Document, error) {
	doc, err := m.store.Get(ctx, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, &NotFoundError{Kind: model.Kind(collection), ID: id}
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// requireAll fetches ids in order and fails on the first absent one.
func (m *Manager) requireAll(ctx context.Context, collection string, ids []string) ([]*docstore.Document, error) {
	docs, err := m.store.GetMany(ctx, collection, ids)
	if err != nil {
		return nil, err
	}
	for i, doc := range docs {
		if doc == nil {
			return nil, &NotFoundError{Kind: model.Kind(collection), ID: ids[i]}
		}
	}
	return docs, nil
}

// lookup fetches one document, returning nil without error when absent.
func (m *Manager) lookup(ctx context.Context, collection, id string) (*docstore.Document, error) {
	doc, err := m.store.Get(ctx, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	return doc, err
}

func touched(fields map[string]any) map[string]any {
	fields[model.FieldUpdatedAt] = docstore.ServerTimestamp
	return fields
}

// dedupe drops blank and repeated IDs, keeping first occurrence order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
