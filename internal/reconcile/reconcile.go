// Package reconcile finds and repairs relationship drift. Deletes do not
// cascade, so over time parents keep IDs of deleted children, children point
// at deleted parents, and interrupted writers may leave one side of a mirror
// without the other.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/docstore"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/graph"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/model"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/relations"
)

type IssueKind string

const (
	// IssueDanglingRef: a relation field holds the ID of a deleted document.
	IssueDanglingRef IssueKind = "dangling_ref"
	// IssueMissingBackRef: a parent lists a child whose parent field disagrees.
	IssueMissingBackRef IssueKind = "missing_back_ref"
	// IssueMissingChildEntry: a child points at a parent that does not list it.
	IssueMissingChildEntry IssueKind = "missing_child_entry"
	// IssueOneSidedAssignment: an assignment is recorded on one side only.
	IssueOneSidedAssignment IssueKind = "one_sided_assignment"
	// IssueDependencyCycle: the dependency graph contains a cycle.
	IssueDependencyCycle IssueKind = "dependency_cycle"
)

type FixOp string

const (
	FixArrayUnion  FixOp = "array_union"
	FixArrayRemove FixOp = "array_remove"
	FixSet         FixOp = "set"
	FixDelete      FixOp = "delete"
)

// Fix is a single field write that resolves an issue.
type Fix struct {
	Op         FixOp  `json:"op"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Field      string `json:"field"`
	Value      string `json:"value,omitempty"`
}

type Issue struct {
	Kind       IssueKind `json:"kind"`
	Relation   string    `json:"relation,omitempty"`
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Field      string    `json:"field,omitempty"`
	Ref        string    `json:"ref,omitempty"`
	Cycle      []string  `json:"cycle,omitempty"`
	Fix        *Fix      `json:"fix,omitempty"`
}

// Report is the outcome of Check.
type Report struct {
	CheckedAt time.Time      `json:"checked_at"`
	Documents map[string]int `json:"documents"`
	Issues    []Issue        `json:"issues"`
}

// Counts returns the number of issues per kind.
func (r *Report) Counts() map[IssueKind]int {
	counts := make(map[IssueKind]int)
	for _, issue := range r.Issues {
		counts[issue.Kind]++
	}
	return counts
}

// Repairable returns the number of issues that carry a fix.
func (r *Report) Repairable() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Fix != nil {
			n++
		}
	}
	return n
}

// RepairResult summarizes a Repair run.
type RepairResult struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

// Reconciler checks and repairs relationship consistency.
type Reconciler struct {
	store  docstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// New returns a reconciler over store.
func New(store docstore.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, logger: logger, now: time.Now}
}

var scanned = []string{model.Epics, model.Stories, model.Tasks, model.Developers}

type snapshot map[string]map[string]*docstore.Document

// load reads every scanned collection concurrently.
func (r *Reconciler) load(ctx context.Context) (snapshot, [][]docstore.Document, error) {
	lists := make([][]docstore.Document, len(scanned))
	g, gctx := errgroup.WithContext(ctx)
	for i, collection := range scanned {
		g.Go(func() error {
			docs, err := r.store.List(gctx, collection)
			if err != nil {
				return fmt.Errorf("load %s: %w", collection, err)
			}
			lists[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	snap := make(snapshot, len(scanned))
	for i, collection := range scanned {
		byID := make(map[string]*docstore.Document, len(lists[i]))
		for j := range lists[i] {
			byID[lists[i][j].ID] = &lists[i][j]
		}
		snap[collection] = byID
	}
	return snap, lists, nil
}

// Check scans every relation and reports inconsistencies with planned fixes.
func (r *Reconciler) Check(ctx context.Context) (*Report, error) {
	report, err := r.scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile check: %w", err)
	}
	r.logger.Info("reconcile check complete", "issues", len(report.Issues), "repairable", report.Repairable())
	return report, nil
}

func (r *Reconciler) scan(ctx context.Context) (*Report, error) {
	snap, lists, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	report := &Report{
		CheckedAt: r.now().UTC(),
		Documents: make(map[string]int, len(scanned)),
		Issues:    []Issue{},
	}
	ordered := make(map[string][]docstore.Document, len(scanned))
	for i, collection := range scanned {
		report.Documents[collection] = len(lists[i])
		ordered[collection] = lists[i]
	}

	for _, rel := range []relations.Relation{relations.EpicStory, relations.StoryTask} {
		report.Issues = append(report.Issues, checkContainment(rel, snap, ordered)...)
	}
	report.Issues = append(report.Issues, checkAssignments(snap, ordered)...)
	report.Issues = append(report.Issues, checkDependencies(ordered[model.Tasks])...)
	return report, nil
}

func checkContainment(rel relations.Relation, snap snapshot, ordered map[string][]docstore.Document) []Issue {
	var issues []Issue
	parents, children := snap[rel.Parent], snap[rel.Child]
	// children given a parent by this pass; a child listed by two parents is
	// adopted only once
	adopted := make(map[string]string)

	for _, parent := range ordered[rel.Parent] {
		for _, childID := range parent.Strings(rel.ChildrenField) {
			child, ok := children[childID]
			if !ok {
				issues = append(issues, Issue{
					Kind: IssueDanglingRef, Relation: rel.Name,
					Collection: rel.Parent, ID: parent.ID, Field: rel.ChildrenField, Ref: childID,
					Fix: &Fix{Op: FixArrayRemove, Collection: rel.Parent, ID: parent.ID, Field: rel.ChildrenField, Value: childID},
				})
				continue
			}
			current := child.String(rel.ParentField)
			if current == parent.ID {
				continue
			}
			issue := Issue{
				Kind: IssueMissingBackRef, Relation: rel.Name,
				Collection: rel.Parent, ID: parent.ID, Field: rel.ChildrenField, Ref: childID,
			}
			_, taken := adopted[childID]
			orphan := current == "" || parents[current] == nil
			if orphan && !taken {
				adopted[childID] = parent.ID
				issue.Fix = &Fix{Op: FixSet, Collection: rel.Child, ID: childID, Field: rel.ParentField, Value: parent.ID}
			} else {
				issue.Fix = &Fix{Op: FixArrayRemove, Collection: rel.Parent, ID: parent.ID, Field: rel.ChildrenField, Value: childID}
			}
			issues = append(issues, issue)
		}
	}

	for _, child := range ordered[rel.Child] {
		parentID := child.String(rel.ParentField)
		if parentID == "" {
			continue
		}
		parent, ok := parents[parentID]
		if !ok {
			if _, taken := adopted[child.ID]; taken {
				continue
			}
			issues = append(issues, Issue{
				Kind: IssueDanglingRef, Relation: rel.Name,
				Collection: rel.Child, ID: child.ID, Field: rel.ParentField, Ref: parentID,
				Fix: &Fix{Op: FixDelete, Collection: rel.Child, ID: child.ID, Field: rel.ParentField},
			})
			continue
		}
		if !slices.Contains(parent.Strings(rel.ChildrenField), child.ID) {
			issues = append(issues, Issue{
				Kind: IssueMissingChildEntry, Relation: rel.Name,
				Collection: rel.Child, ID: child.ID, Field: rel.ParentField, Ref: parentID,
				Fix: &Fix{Op: FixArrayUnion, Collection: rel.Parent, ID: parentID, Field: rel.ChildrenField, Value: child.ID},
			})
		}
	}
	return issues
}

func checkAssignments(snap snapshot, ordered map[string][]docstore.Document) []Issue {
	const relation = "assignment"
	var issues []Issue
	tasks, devs := snap[model.Tasks], snap[model.Developers]

	for _, task := range ordered[model.Tasks] {
		for _, devID := range task.Strings(model.FieldAssignees) {
			dev, ok := devs[devID]
			if !ok {
				issues = append(issues, Issue{
					Kind: IssueDanglingRef, Relation: relation,
					Collection: model.Tasks, ID: task.ID, Field: model.FieldAssignees, Ref: devID,
					Fix: &Fix{Op: FixArrayRemove, Collection: model.Tasks, ID: task.ID, Field: model.FieldAssignees, Value: devID},
				})
				continue
			}
			if !slices.Contains(dev.Strings(model.FieldAssignedTasks), task.ID) {
				issues = append(issues, Issue{
					Kind: IssueOneSidedAssignment, Relation: relation,
					Collection: model.Tasks, ID: task.ID, Field: model.FieldAssignees, Ref: devID,
					Fix: &Fix{Op: FixArrayUnion, Collection: model.Developers, ID: devID, Field: model.FieldAssignedTasks, Value: task.ID},
				})
			}
		}
	}

	for _, dev := range ordered[model.Developers] {
		for _, taskID := range dev.Strings(model.FieldAssignedTasks) {
			task, ok := tasks[taskID]
			if !ok {
				issues = append(issues, Issue{
					Kind: IssueDanglingRef, Relation: relation,
					Collection: model.Developers, ID: dev.ID, Field: model.FieldAssignedTasks, Ref: taskID,
					Fix: &Fix{Op: FixArrayRemove, Collection: model.Developers, ID: dev.ID, Field: model.FieldAssignedTasks, Value: taskID},
				})
				continue
			}
			if !slices.Contains(task.Strings(model.FieldAssignees), dev.ID) {
				issues = append(issues, Issue{
					Kind: IssueOneSidedAssignment, Relation: relation,
					Collection: model.Developers, ID: dev.ID, Field: model.FieldAssignedTasks, Ref: taskID,
					Fix: &Fix{Op: FixArrayUnion, Collection: model.Tasks, ID: taskID, Field: model.FieldAssignees, Value: dev.ID},
				})
			}
		}
	}
	return issues
}

func checkDependencies(tasks []docstore.Document) []Issue {
	nodes := make([]graph.Node, 0, len(tasks))
	for _, task := range tasks {
		nodes = append(nodes, graph.Node{ID: task.ID, DependsOn: task.Strings(model.FieldDependencies)})
	}
	g := graph.BuildDepGraph(nodes)

	var issues []Issue
	for _, edge := range g.Missing() {
		issues = append(issues, Issue{
			Kind: IssueDanglingRef, Relation: "dependency",
			Collection: model.Tasks, ID: edge.From, Field: model.FieldDependencies, Ref: edge.To,
			Fix: &Fix{Op: FixArrayRemove, Collection: model.Tasks, ID: edge.From, Field: model.FieldDependencies, Value: edge.To},
		})
	}
	for _, cycle := range g.Cycles() {
		issues = append(issues, Issue{
			Kind: IssueDependencyCycle, Relation: "dependency",
			Collection: model.Tasks, ID: cycle[0], Field: model.FieldDependencies, Cycle: cycle,
		})
	}
	return issues
}

// Repair applies the planned fixes of report in one atomic batch. The store
// is scanned again first and only fixes that the fresh scan still plans are
// applied; the rest (targets deleted, links changed since the check) are
// skipped. A write landing between that scan and the commit is not detected.
// Cycles are never repaired automatically; which edge to drop is a planning
// decision.
func (r *Reconciler) Repair(ctx context.Context, report *Report) (*RepairResult, error) {
	result := &RepairResult{}
	if report == nil || report.Repairable() == 0 {
		return result, nil
	}

	fresh, err := r.scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile repair: %w", err)
	}
	planned := make(map[Fix]bool, len(fresh.Issues))
	for _, issue := range fresh.Issues {
		if issue.Fix != nil {
			planned[*issue.Fix] = true
		}
	}

	batch := r.store.Batch()
	for _, issue := range report.Issues {
		fix := issue.Fix
		if fix == nil {
			continue
		}
		if !planned[*fix] {
			result.Skipped++
			continue
		}
		var value any
		switch fix.Op {
		case FixArrayUnion:
			value = docstore.ArrayUnion(fix.Value)
		case FixArrayRemove:
			value = docstore.ArrayRemove(fix.Value)
		case FixSet:
			value = fix.Value
		case FixDelete:
			value = docstore.Delete
		default:
			return nil, fmt.Errorf("reconcile repair: unknown fix %q", fix.Op)
		}
		batch.Update(fix.Collection, fix.ID, map[string]any{
			fix.Field:            value,
			model.FieldUpdatedAt: docstore.ServerTimestamp,
		})
		result.Applied++
	}
	if err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("reconcile repair: %w", err)
	}
	r.logger.Info("reconcile repair complete", "applied", result.Applied, "skipped", result.Skipped)
	return result, nil
}
