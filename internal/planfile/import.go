package planfile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/model"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/relations"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/repo"
)

// Result maps plan keys to the created document IDs.
type Result struct {
	Developers map[string]string `json:"developers"`
	Epics      map[string]string `json:"epics"`
	Stories    map[string]string `json:"stories"`
	Tasks      map[string]string `json:"tasks"`
}

// Importer materializes plans.
type Importer struct {
	rel    *relations.Manager
	logger *slog.Logger
}

// NewImporter returns an importer writing through rel.
func NewImporter(rel *relations.Manager, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{rel: rel, logger: logger}
}

// Import creates every entity of plan, one batch per collection, then links
// stories, tasks, dependencies and assignments. The plan is validated before
// the first write. A failure after creation leaves the created documents in
// place; the error names the step that failed.
func (im *Importer) Import(ctx context.Context, plan *Plan) (*Result, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	var (
		stories []StorySpec
		tasks   []TaskSpec
	)
	for _, e := range plan.Epics {
		for _, s := range e.Stories {
			stories = append(stories, s)
			tasks = append(tasks, s.Tasks...)
		}
	}

	res := &Result{}
	var err error
	if res.Developers, err = createAll(ctx, im.rel, model.Developers, plan.Developers, func(d DeveloperSpec) (string, any) {
		v := d.model()
		return d.Key, &v
	}); err != nil {
		return nil, err
	}
	if res.Epics, err = createAll(ctx, im.rel, model.Epics, plan.Epics, func(e EpicSpec) (string, any) {
		v := e.model()
		return e.Key, &v
	}); err != nil {
		return nil, err
	}
	if res.Stories, err = createAll(ctx, im.rel, model.Stories, stories, func(s StorySpec) (string, any) {
		v := s.model()
		return s.Key, &v
	}); err != nil {
		return nil, err
	}
	if res.Tasks, err = createAll(ctx, im.rel, model.Tasks, tasks, func(t TaskSpec) (string, any) {
		v := t.model()
		return t.Key, &v
	}); err != nil {
		return nil, err
	}

	for _, e := range plan.Epics {
		if len(e.Stories) == 0 {
			continue
		}
		ids := make([]string, 0, len(e.Stories))
		for _, s := range e.Stories {
			ids = append(ids, res.Stories[s.Key])
		}
		if err := im.rel.BulkLinkStoriesToEpic(ctx, res.Epics[e.Key], ids); err != nil {
			return nil, fmt.Errorf("import: link epic %q: %w", e.Key, err)
		}
		for _, s := range e.Stories {
			if len(s.Tasks) == 0 {
				continue
			}
			ids := make([]string, 0, len(s.Tasks))
			for _, t := range s.Tasks {
				ids = append(ids, res.Tasks[t.Key])
			}
			if err := im.rel.BulkLinkTasksToStory(ctx, res.Stories[s.Key], ids); err != nil {
				return nil, fmt.Errorf("import: link story %q: %w", s.Key, err)
			}
		}
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if err := im.rel.AddDependency(ctx, res.Tasks[t.Key], res.Tasks[dep]); err != nil {
				return nil, fmt.Errorf("import: dependency %q -> %q: %w", t.Key, dep, err)
			}
		}
		if len(t.Assign) == 0 {
			continue
		}
		devIDs := make([]string, 0, len(t.Assign))
		for _, key := range t.Assign {
			devIDs = append(devIDs, res.Developers[key])
		}
		if err := im.rel.Assign(ctx, res.Tasks[t.Key], devIDs); err != nil {
			return nil, fmt.Errorf("import: assign %q: %w", t.Key, err)
		}
	}

	im.logger.Info("plan imported",
		"epics", len(res.Epics),
		"stories", len(res.Stories),
		"tasks", len(res.Tasks),
		"developers", len(res.Developers),
	)
	return res, nil
}

// createAll bulk-creates one collection and returns key -> ID.
func createAll[S any](ctx context.Context, rel *relations.Manager, collection string, specs []S, build func(S) (string, any)) (map[string]string, error) {
	out := make(map[string]string, len(specs))
	if len(specs) == 0 {
		return out, nil
	}
	keys := make([]string, 0, len(specs))
	records := make([]map[string]any, 0, len(specs))
	for _, spec := range specs {
		key, v := build(spec)
		fields, err := repo.CreateFields(collection, v)
		if err != nil {
			return nil, fmt.Errorf("import %s %q: %w", collection, key, err)
		}
		keys = append(keys, key)
		records = append(records, fields)
	}
	ids, err := rel.BulkCreate(ctx, collection, records)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	for i, key := range keys {
		out[key] = ids[i]
	}
	return out, nil
}
