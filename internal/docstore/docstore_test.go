package docstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func tempSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"), time.Second)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// forEachStore runs fn against every backend.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) { fn(t, tempSQLite(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestSetGetUpdate(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.Set(ctx, "tasks", "t1", map[string]any{"title": "Login API", "points": 3}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := s.Update(ctx, "tasks", "t1", map[string]any{
			"status":     "in_progress",
			"points":     Delete,
			"updated_at": ServerTimestamp,
		}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		doc, err := s.Get(ctx, "tasks", "t1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if doc.String("title") != "Login API" || doc.String("status") != "in_progress" {
			t.Fatalf("unexpected data: %#v", doc.Data)
		}
		if _, ok := doc.Data["points"]; ok {
			t.Fatalf("points should have been deleted: %#v", doc.Data)
		}
		stamp := doc.String("updated_at")
		if _, err := time.Parse(time.RFC3339Nano, stamp); err != nil || len(stamp) != len("2006-01-02T15:04:05.000000000Z") {
			t.Fatalf("updated_at = %q, want fixed-width UTC timestamp", stamp)
		}
	})
}

func TestMissingDocuments(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if _, err := s.Get(ctx, "epics", "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get missing: expected ErrNotFound, got %v", err)
		}
		if err := s.Update(ctx, "epics", "nope", map[string]any{"title": "x"}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Update missing: expected ErrNotFound, got %v", err)
		}
		if err := s.Delete(ctx, "epics", "nope"); err != nil {
			t.Fatalf("Delete missing should be a no-op, got %v", err)
		}
	})
}

func TestArrayTransforms(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.Set(ctx, "epics", "e1", map[string]any{"title": "Auth"}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		for range 2 {
			if err := s.Update(ctx, "epics", "e1", map[string]any{"stories": ArrayUnion("s1", "s2")}); err != nil {
				t.Fatalf("ArrayUnion failed: %v", err)
			}
		}
		if err := s.Update(ctx, "epics", "e1", map[string]any{"stories": ArrayRemove("s1", "missing")}); err != nil {
			t.Fatalf("ArrayRemove failed: %v", err)
		}
		doc, err := s.Get(ctx, "epics", "e1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got := doc.Strings("stories"); !slices.Equal(got, []string{"s2"}) {
			t.Fatalf("stories = %v, want [s2]", got)
		}
	})
}

func TestBatchIsAtomic(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.Set(ctx, "stories", "s1", map[string]any{"title": "Login"}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		err := s.Batch().
			Update("stories", "s1", map[string]any{"epic_id": "e1"}).
			Set("stories", "s2", map[string]any{"title": "Logout"}).
			Update("epics", "e-missing", map[string]any{"stories": ArrayUnion("s1")}).
			Commit(ctx)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound from batch, got %v", err)
		}

		doc, err := s.Get(ctx, "stories", "s1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if _, ok := doc.Data["epic_id"]; ok {
			t.Fatalf("failed batch must not apply earlier writes: %#v", doc.Data)
		}
		if _, err := s.Get(ctx, "stories", "s2"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("failed batch must not create documents, got %v", err)
		}
	})
}

func TestBatchSequentialWritesOnSameDocument(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		err := s.Batch().
			Set("tasks", "t1", map[string]any{"title": "A"}).
			Update("tasks", "t1", map[string]any{"dependencies": ArrayUnion("t0")}).
			Commit(ctx)
		if err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
		doc, err := s.Get(ctx, "tasks", "t1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got := doc.Strings("dependencies"); !slices.Equal(got, []string{"t0"}) {
			t.Fatalf("dependencies = %v", got)
		}

		b := s.Batch()
		if err := b.Commit(ctx); err != nil {
			t.Fatalf("empty commit failed: %v", err)
		}
		if err := b.Commit(ctx); err == nil {
			t.Fatal("expected error committing a batch twice")
		}
	})
}

func TestGetManyPreservesOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, id := range []string{"a", "b", "c"} {
			if err := s.Set(ctx, "tasks", id, map[string]any{"title": id}); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
		}
		docs, err := s.GetMany(ctx, "tasks", []string{"c", "gone", "a", "c"})
		if err != nil {
			t.Fatalf("GetMany failed: %v", err)
		}
		if len(docs) != 4 {
			t.Fatalf("expected 4 entries, got %d", len(docs))
		}
		if docs[0].ID != "c" || docs[1] != nil || docs[2].ID != "a" || docs[3].ID != "c" {
			t.Fatalf("unexpected GetMany result: %v %v %v %v", docs[0], docs[1], docs[2], docs[3])
		}
		docs[0].Data["title"] = "mutated"
		if docs[3].String("title") != "c" {
			t.Fatal("repeated ids must not share data")
		}
	})
}

func TestListOrdering(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		path := Sub("tasks", "t1", "activity")
		entries := []struct{ id, ts string }{
			{"first", "2024-03-02T00:00:00.000000000Z"},
			{"second", "2024-03-01T00:00:00.000000000Z"},
			{"third", "2024-03-03T00:00:00.000000000Z"},
		}
		for _, e := range entries {
			if err := s.Set(ctx, path, e.id, map[string]any{"timestamp": e.ts}); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
		}

		docs, err := s.List(ctx, path)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if got := ids(docs); !slices.Equal(got, []string{"first", "second", "third"}) {
			t.Fatalf("insertion order = %v", got)
		}

		docs, err = s.List(ctx, path, OrderBy("timestamp"))
		if err != nil {
			t.Fatalf("List ordered failed: %v", err)
		}
		if got := ids(docs); !slices.Equal(got, []string{"second", "first", "third"}) {
			t.Fatalf("timestamp order = %v", got)
		}

		docs, err = s.List(ctx, path, OrderBy("timestamp"), Limit(1))
		if err != nil {
			t.Fatalf("List limited failed: %v", err)
		}
		if len(docs) != 1 || docs[0].ID != "second" {
			t.Fatalf("limited list = %v", ids(docs))
		}

		if _, err := s.List(ctx, path, OrderBy("bad field")); err == nil {
			t.Fatal("expected error for invalid order field")
		}

		other, err := s.List(ctx, "tasks")
		if err != nil {
			t.Fatalf("List parent failed: %v", err)
		}
		if len(other) != 0 {
			t.Fatalf("subcollection documents leaked into parent collection: %v", ids(other))
		}
	})
}

func TestWhere(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seed := map[string]map[string]any{
			"a": {"dependencies": []string{}, "status": "todo"},
			"b": {"dependencies": []string{"a"}, "status": "done"},
			"c": {"dependencies": []string{"a", "b"}, "status": "todo"},
			"d": {"dependencies": "a", "status": "todo"},
		}
		for _, id := range []string{"a", "b", "c", "d"} {
			if err := s.Set(ctx, "tasks", id, seed[id]); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
		}

		docs, err := s.Where(ctx, "tasks", "dependencies", OpArrayContains, "a")
		if err != nil {
			t.Fatalf("Where array_contains failed: %v", err)
		}
		if got := ids(docs); !slices.Equal(got, []string{"b", "c"}) {
			t.Fatalf("array_contains a = %v, want [b c]", got)
		}

		docs, err = s.Where(ctx, "tasks", "status", OpEqual, "todo")
		if err != nil {
			t.Fatalf("Where == failed: %v", err)
		}
		if got := ids(docs); !slices.Equal(got, []string{"a", "c", "d"}) {
			t.Fatalf("status == todo = %v", got)
		}

		if _, err := s.Where(ctx, "tasks", "status", Op("like"), "x"); err == nil {
			t.Fatal("expected error for unsupported operator")
		}
	})
}

func TestStreamAndDataTo(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i, title := range []string{"one", "two", "three"} {
			id := s.NewID("tasks")
			if err := s.Set(ctx, "tasks", id, map[string]any{"title": title, "rank": i}); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
		}

		type task struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			Rank  int    `json:"rank"`
		}
		var got []task
		for doc, err := range s.Stream(ctx, "tasks") {
			if err != nil {
				t.Fatalf("Stream failed: %v", err)
			}
			var tk task
			if err := doc.DataTo(&tk); err != nil {
				t.Fatalf("DataTo failed: %v", err)
			}
			if tk.ID != doc.ID {
				t.Fatalf("DataTo id = %q, want %q", tk.ID, doc.ID)
			}
			got = append(got, tk)
		}
		if len(got) != 3 || got[0].Title != "one" || got[2].Rank != 2 {
			t.Fatalf("unexpected stream result: %+v", got)
		}

		n := 0
		for range s.Stream(ctx, "tasks") {
			n++
			break
		}
		if n != 1 {
			t.Fatalf("early break yielded %d documents", n)
		}
	})
}

func TestSetOverwritesButKeepsCreateTime(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.Set(ctx, "sprints", "sp1", map[string]any{"name": "S1", "goal": "ship"}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		first, err := s.Get(ctx, "sprints", "sp1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if err := s.Set(ctx, "sprints", "sp1", map[string]any{"name": "S1b"}); err != nil {
			t.Fatalf("Set overwrite failed: %v", err)
		}
		second, err := s.Get(ctx, "sprints", "sp1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if _, ok := second.Data["goal"]; ok {
			t.Fatalf("Set should replace the document: %#v", second.Data)
		}
		if !second.CreateTime.Equal(first.CreateTime) {
			t.Fatalf("create time changed: %v -> %v", first.CreateTime, second.CreateTime)
		}
	})
}

func TestNewIDUnique(t *testing.T) {
	s := NewMemory()
	seen := make(map[string]struct{})
	for range 1000 {
		id := s.NewID("tasks")
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestInvalidPaths(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.Set(ctx, "tasks", "", map[string]any{}); err == nil {
			t.Fatal("expected error for empty id")
		}
		if err := s.Set(ctx, "tasks", "a/b", map[string]any{}); err == nil {
			t.Fatal("expected error for id containing a slash")
		}
		if err := s.Set(ctx, "tasks", "ok", map[string]any{"bad.field": 1}); err == nil {
			t.Fatal("expected error for invalid field name")
		}
	})
}

func TestOpenBackends(t *testing.T) {
	mem, err := Open(BackendMemory, "", 0)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := mem.(*MemoryStore); !ok {
		t.Fatalf("memory backend returned %T", mem)
	}

	path := filepath.Join(t.TempDir(), "nested", "scrum.db")
	st, err := Open(BackendSQLite, path, time.Second)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	st.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}

	if _, err := Open("postgres", path, 0); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
