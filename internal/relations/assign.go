package relations

import (
	"context"
	"fmt"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/docstore"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/model"
)

// Assign adds developers to a task's assignees and the task to each
// developer's assigned_tasks. The task and every developer are validated
// first; nothing is written unless all exist.
func (m *Manager) Assign(ctx context.Context, taskID string, developerIDs []string) error {
	return m.setAssignment(ctx, "assign", taskID, developerIDs, docstore.ArrayUnion[string])
}

// Unassign is the inverse of Assign with the same validation.
func (m *Manager) Unassign(ctx context.Context, taskID string, developerIDs []string) error {
	return m.setAssignment(ctx, "unassign", taskID, developerIDs, docstore.ArrayRemove[string])
}

func (m *Manager) setAssignment(ctx context.Context, op, taskID string, developerIDs []string, transform func(...string) any) error {
	if _, err := m.require(ctx, model.Tasks, taskID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	ids := dedupe(developerIDs)
	if len(ids) == 0 {
		return nil
	}
	if _, err := m.requireAll(ctx, model.Developers, ids); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	batch := m.store.Batch()
	batch.Update(model.Tasks, taskID, touched(map[string]any{model.FieldAssignees: transform(ids...)}))
	for _, id := range ids {
		batch.Update(model.Developers, id, touched(map[string]any{model.FieldAssignedTasks: transform(taskID)}))
	}
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	m.logger.Debug("assignment changed", "op", op, "task", taskID, "developers", len(ids))
	return nil
}

// TaskAssignees returns the existing developers assigned to a task.
func (m *Manager) TaskAssignees(ctx context.Context, taskID string) ([]model.Developer, error) {
	doc, err := m.lookup(ctx, model.Tasks, taskID)
	if err != nil {
		return nil, fmt.Errorf("task assignees: %w", err)
	}
	if doc == nil {
		return []model.Developer{}, nil
	}
	return resolveAs[model.Developer](ctx, m, SoftRefs{Collection: model.Developers, IDs: doc.Strings(model.FieldAssignees)})
}

// DeveloperTasks returns the existing tasks assigned to a developer.
func (m *Manager) DeveloperTasks(ctx context.Context, developerID string) ([]model.Task, error) {
	doc, err := m.lookup(ctx, model.Developers, developerID)
	if err != nil {
		return nil, fmt.Errorf("developer tasks: %w", err)
	}
	if doc == nil {
		return []model.Task{}, nil
	}
	return resolveAs[model.Task](ctx, m, SoftRefs{Collection: model.Tasks, IDs: doc.Strings(model.FieldAssignedTasks)})
}
