package relations

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/docstore"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/model"
)

// Relation is a mirrored containment link: the parent holds a set of child
// IDs and each child holds at most one parent ID.
type Relation struct {
	Name          string
	Parent        string
	Child         string
	ChildrenField string
	ParentField   string
}

var (
	EpicStory = Relation{
		Name:          "epic-story",
		Parent:        model.Epics,
		Child:         model.Stories,
		ChildrenField: model.FieldStories,
		ParentField:   model.FieldEpicID,
	}
	StoryTask = Relation{
		Name:          "story-task",
		Parent:        model.Stories,
		Child:         model.Tasks,
		ChildrenField: model.FieldTasks,
		ParentField:   model.FieldStoryID,
	}
)

// Link attaches child to parent. Both must exist. A child attached to a
// different parent is moved, and the old parent loses it in the same batch.
// Linking an existing pair again changes no relationship state.
func (m *Manager) Link(ctx context.Context, rel Relation, childID, parentID string) error {
	return m.BulkLink(ctx, rel, parentID, []string{childID})
}

// BulkLink attaches every child to parent. The parent and every child are
// validated before anything is written; all writes commit in one batch.
func (m *Manager) BulkLink(ctx context.Context, rel Relation, parentID string, childIDs []string) error {
	if _, err := m.require(ctx, rel.Parent, parentID); err != nil {
		return fmt.Errorf("link %s: %w", rel.Name, err)
	}
	ids := dedupe(childIDs)
	if len(ids) == 0 {
		return nil
	}
	children, err := m.requireAll(ctx, rel.Child, ids)
	if err != nil {
		return fmt.Errorf("link %s: %w", rel.Name, err)
	}

	batch := m.store.Batch()
	batch.Update(rel.Parent, parentID, touched(map[string]any{
		rel.ChildrenField: docstore.ArrayUnion(ids...),
	}))

	moved := make(map[string][]string)
	for i, child := range children {
		if prev := child.String(rel.ParentField); prev != "" && prev != parentID {
			moved[prev] = append(moved[prev], ids[i])
		}
		batch.Update(rel.Child, ids[i], touched(map[string]any{rel.ParentField: parentID}))
	}

	if len(moved) > 0 {
		prevIDs := slices.Sorted(maps.Keys(moved))
		prevDocs, err := m.store.GetMany(ctx, rel.Parent, prevIDs)
		if err != nil {
			return fmt.Errorf("link %s: load previous parents: %w", rel.Name, err)
		}
		for i, prev := range prevDocs {
			if prev == nil {
				continue
			}
			batch.Update(rel.Parent, prevIDs[i], touched(map[string]any{
				rel.ChildrenField: docstore.ArrayRemove(moved[prevIDs[i]]...),
			}))
		}
	}

	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("link %s: %w", rel.Name, err)
	}
	m.logger.Debug("linked", "relation", rel.Name, "parent", parentID, "children", len(ids), "moved", len(moved))
	return nil
}

// Unlink detaches child from parent. Neither document has to exist; only the
// sides that still exist and still reference each other are updated.
func (m *Manager) Unlink(ctx context.Context, rel Relation, childID, parentID string) error {
	parent, err := m.lookup(ctx, rel.Parent, parentID)
	if err != nil {
		return fmt.Errorf("unlink %s: %w", rel.Name, err)
	}
	child, err := m.lookup(ctx, rel.Child, childID)
	if err != nil {
		return fmt.Errorf("unlink %s: %w", rel.Name, err)
	}

	batch := m.store.Batch()
	if parent != nil && slices.Contains(parent.Strings(rel.ChildrenField), childID) {
		batch.Update(rel.Parent, parentID, touched(map[string]any{
			rel.ChildrenField: docstore.ArrayRemove(childID),
		}))
	}
	if child != nil && child.String(rel.ParentField) == parentID {
		batch.Update(rel.Child, childID, touched(map[string]any{rel.ParentField: docstore.Delete}))
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("unlink %s: %w", rel.Name, err)
	}
	m.logger.Debug("unlinked", "relation", rel.Name, "parent", parentID, "child", childID)
	return nil
}

// Children returns the existing children of parent in link order. A missing
// parent has no children.
func (m *Manager) Children(ctx context.Context, rel Relation, parentID string) ([]docstore.Document, error) {
	parent, err := m.lookup(ctx, rel.Parent, parentID)
	if err != nil {
		return nil, fmt.Errorf("children %s: %w", rel.Name, err)
	}
	if parent == nil {
		return []docstore.Document{}, nil
	}
	return m.resolve(ctx, SoftRefs{Collection: rel.Child, IDs: parent.Strings(rel.ChildrenField)})
}

// Family is a parent with its resolved children.
type Family struct {
	Parent   docstore.Document
	Children []docstore.Document
}

// ListWithChildren returns every parent with its children, fetching all
// children in a single GetMany.
func (m *Manager) ListWithChildren(ctx context.Context, rel Relation) ([]Family, error) {
	parents, err := m.store.List(ctx, rel.Parent)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", rel.Parent, err)
	}
	var all []string
	for i := range parents {
		all = append(all, parents[i].Strings(rel.ChildrenField)...)
	}
	all = dedupe(all)

	byID := make(map[string]docstore.Document, len(all))
	if len(all) > 0 {
		docs, err := m.store.GetMany(ctx, rel.Child, all)
		if err != nil {
			return nil, fmt.Errorf("list %s children: %w", rel.Name, err)
		}
		for _, doc := range docs {
			if doc != nil {
				byID[doc.ID] = *doc
			}
		}
	}

	out := make([]Family, 0, len(parents))
	for _, parent := range parents {
		f := Family{Parent: parent, Children: []docstore.Document{}}
		for _, id := range parent.Strings(rel.ChildrenField) {
			if child, ok := byID[id]; ok {
				f.Children = append(f.Children, child)
			}
		}
		out = append(out, f)
	}
	return out, nil
}
