package relations

import (
	"context"
	"fmt"
	"slices"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/docstore"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/graph"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/model"
)

// dependencyEdges reads a task's dependency list straight from the store.
// Deleted tasks have no outgoing edges.
func (m *Manager) dependencyEdges(ctx context.Context, id string) ([]string, error) {
	doc, err := m.lookup(ctx, model.Tasks, id)
	if err != nil {
		return nil, fmt.Errorf("load dependencies of %s: %w", id, err)
	}
	if doc == nil {
		return nil, nil
	}
	return doc.Strings(model.FieldDependencies), nil
}

// HasCycle reports whether toID is reachable from fromID along dependency
// edges, or whether the walk runs into a cycle that already exists.
func (m *Manager) HasCycle(ctx context.Context, fromID, toID string) (bool, error) {
	return graph.Reachable(ctx, fromID, toID, m.dependencyEdges)
}

// AddDependency records that taskID depends on dependsOnID. Both tasks must
// exist, and the edge is rejected when it would close a cycle.
func (m *Manager) AddDependency(ctx context.Context, taskID, dependsOnID string) error {
	if _, err := m.requireAll(ctx, model.Tasks, dedupe([]string{taskID, dependsOnID})); err != nil {
		return fmt.Errorf("add dependency: %w", err)
	}
	if taskID == dependsOnID {
		return &CycleError{TaskID: taskID, DependsOnID: dependsOnID}
	}
	cyclic, err := m.HasCycle(ctx, dependsOnID, taskID)
	if err != nil {
		return fmt.Errorf("add dependency: %w", err)
	}
	if cyclic {
		m.logger.Info("dependency rejected", "task", taskID, "depends_on", dependsOnID, "reason", "cycle")
		return &CycleError{TaskID: taskID, DependsOnID: dependsOnID}
	}
	if err := m.store.Update(ctx, model.Tasks, taskID, touched(map[string]any{
		model.FieldDependencies: docstore.ArrayUnion(dependsOnID),
	})); err != nil {
		return fmt.Errorf("add dependency: %w", err)
	}
	return nil
}

// RemoveDependency drops the edge if present. Missing tasks and absent edges
// are not errors.
func (m *Manager) RemoveDependency(ctx context.Context, taskID, dependsOnID string) error {
	doc, err := m.lookup(ctx, model.Tasks, taskID)
	if err != nil {
		return fmt.Errorf("remove dependency: %w", err)
	}
	if doc == nil || !slices.Contains(doc.Strings(model.FieldDependencies), dependsOnID) {
		return nil
	}
	if err := m.store.Update(ctx, model.Tasks, taskID, touched(map[string]any{
		model.FieldDependencies: docstore.ArrayRemove(dependsOnID),
	})); err != nil {
		return fmt.Errorf("remove dependency: %w", err)
	}
	return nil
}

// Dependencies returns the existing tasks taskID depends on.
func (m *Manager) Dependencies(ctx context.Context, taskID string) ([]model.Task, error) {
	ids, err := m.dependencyEdges(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return resolveAs[model.Task](ctx, m, SoftRefs{Collection: model.Tasks, IDs: ids})
}

// Dependents returns every task that depends on taskID.
func (m *Manager) Dependents(ctx context.Context, taskID string) ([]model.Task, error) {
	docs, err := m.store.Where(ctx, model.Tasks, model.FieldDependencies, docstore.OpArrayContains, taskID)
	if err != nil {
		return nil, fmt.Errorf("dependents of %s: %w", taskID, err)
	}
	return docstore.DecodeAll[model.Task](docs)
}
