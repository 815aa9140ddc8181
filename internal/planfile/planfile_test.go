package planfile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/docstore"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/model"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/relations"
)

const samplePlan = `
developers:
  - key: ada
    name: Ada
    experience_level: Senior
    skills: [go, sql]
  - key: bob
    name: Bob
epics:
  - key: auth
    title: Authentication
    priority: high
    stories:
      - key: login
        title: Login page
        acceptance_criteria: ["user can sign in"]
        tasks:
          - key: schema
            title: Users table
          - key: api
            title: Login endpoint
            depends_on: [schema]
            assign: [ada]
          - key: form
            title: Login form
            depends_on: [api]
            assign: [ada, bob]
  - key: billing
    title: Billing
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("epics:\n  - key: a\n    titel: typo\n"))
	require.ErrorIs(t, err, ErrInvalidPlan)
	require.ErrorContains(t, err, "titel")
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	require.ErrorIs(t, err, ErrInvalidPlan)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "duplicate key",
			yaml: "epics:\n  - {key: a, title: A}\n  - {key: a, title: B}\n",
			want: `duplicate key "a"`,
		},
		{
			name: "missing key",
			yaml: "epics:\n  - {title: A}\n",
			want: "epic without key",
		},
		{
			name: "invalid entity",
			yaml: "epics:\n  - {key: a, title: A, priority: whenever}\n",
			want: `epic "a"`,
		},
		{
			name: "unknown dependency",
			yaml: "epics:\n  - key: e\n    title: E\n    stories:\n      - key: s\n        title: S\n        tasks:\n          - {key: t, title: T, depends_on: [ghost]}\n",
			want: `unknown task "ghost"`,
		},
		{
			name: "unknown developer",
			yaml: "epics:\n  - key: e\n    title: E\n    stories:\n      - key: s\n        title: S\n        tasks:\n          - {key: t, title: T, assign: [ghost]}\n",
			want: `unknown developer "ghost"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.yaml))
			require.ErrorIs(t, err, ErrInvalidPlan)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestValidateRejectsCycles(t *testing.T) {
	plan := "epics:\n  - key: e\n    title: E\n    stories:\n      - key: s\n        title: S\n        tasks:\n" +
		"          - {key: a, title: A, depends_on: [b]}\n          - {key: b, title: B, depends_on: [a]}\n"
	_, err := Parse(strings.NewReader(plan))
	require.ErrorIs(t, err, ErrInvalidPlan)
	require.True(t, errors.Is(err, relations.ErrCircularDependency))
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePlan), 0o644))
	plan, err := Load(path)
	require.NoError(t, err)

	store := docstore.NewMemory()
	rel := relations.NewManager(store, testLogger())
	res, err := NewImporter(rel, testLogger()).Import(ctx, plan)
	require.NoError(t, err)
	require.Len(t, res.Epics, 2)
	require.Len(t, res.Stories, 1)
	require.Len(t, res.Tasks, 3)
	require.Len(t, res.Developers, 2)

	stories, err := rel.EpicStories(ctx, res.Epics["auth"])
	require.NoError(t, err)
	require.Len(t, stories, 1)
	require.Equal(t, res.Epics["auth"], stories[0].EpicID)

	tasks, err := rel.StoryTasks(ctx, res.Stories["login"])
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	require.Equal(t, "Users table", tasks[0].Title)

	deps, err := rel.Dependencies(ctx, res.Tasks["form"])
	require.NoError(t, err)
	require.Len(t, deps, 1)
	require.Equal(t, res.Tasks["api"], deps[0].ID)

	adaTasks, err := rel.DeveloperTasks(ctx, res.Developers["ada"])
	require.NoError(t, err)
	require.Len(t, adaTasks, 2)

	// the new chain is live: closing it is rejected
	err = rel.AddDependency(ctx, res.Tasks["schema"], res.Tasks["form"])
	require.ErrorIs(t, err, relations.ErrCircularDependency)

	epic, err := store.Get(ctx, model.Epics, res.Epics["billing"])
	require.NoError(t, err)
	require.Empty(t, epic.Strings(model.FieldStories))
	require.NotEmpty(t, epic.String(model.FieldCreatedAt))
}

func TestImportInvalidPlanWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	rel := relations.NewManager(store, testLogger())

	plan := &Plan{Epics: []EpicSpec{{Key: "a", Title: "A"}, {Key: "a", Title: "B"}}}
	_, err := NewImporter(rel, testLogger()).Import(ctx, plan)
	require.ErrorIs(t, err, ErrInvalidPlan)

	docs, err := store.List(ctx, model.Epics)
	require.NoError(t, err)
	require.Empty(t, docs)
}
