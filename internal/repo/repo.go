// Package repo provides per-kind CRUD over the document store. Relationship
// fields are never written here; they change only through the relations
// package so both sides of every link stay in step.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/docstore"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/model"
)

// ErrNotFound is returned when the requested document does not exist.
var ErrNotFound = docstore.ErrNotFound

// ErrReadOnlyField is returned by Update for fields callers may not set.
var ErrReadOnlyField = errors.New("field is not updatable")

// Repository stores documents of type T in one collection.
type Repository[T any] struct {
	store      docstore.Store
	collection string
	validate   func(*T) error
	updatable  map[string]struct{}
	logger     *slog.Logger
}

// New returns a repository for collection. validate may be nil.
func New[T any](store docstore.Store, collection string, validate func(*T) error, logger *slog.Logger) *Repository[T] {
	if logger == nil {
		logger = slog.Default()
	}
	updatable := make(map[string]struct{})
	for _, name := range jsonFieldNames(reflect.TypeFor[T]()) {
		switch name {
		case "id", model.FieldCreatedAt, model.FieldUpdatedAt:
			continue
		}
		if model.IsRelationField(collection, name) {
			continue
		}
		updatable[name] = struct{}{}
	}
	return &Repository[T]{
		store:      store,
		collection: collection,
		validate:   validate,
		updatable:  updatable,
		logger:     logger.With("collection", collection),
	}
}

// Collection returns the collection name.
func (r *Repository[T]) Collection() string { return r.collection }

// UpdatableFields returns the sorted fields Update accepts.
func (r *Repository[T]) UpdatableFields() []string {
	return slices.Sorted(maps.Keys(r.updatable))
}

// Create validates v and stores it under a new ID. Relationship fields always
// start empty.
func (r *Repository[T]) Create(ctx context.Context, v *T) (string, error) {
	fields, err := r.Prepare(v)
	if err != nil {
		return "", err
	}
	id := r.store.NewID(r.collection)
	if err := r.store.Set(ctx, r.collection, id, fields); err != nil {
		return "", fmt.Errorf("create %s: %w", model.Kind(r.collection), err)
	}
	r.logger.Debug("document created", "id", id)
	return id, nil
}

// Prepare validates v and returns the field map Create would write. Bulk
// callers use it so every record passes the same checks as Create.
func (r *Repository[T]) Prepare(v *T) (map[string]any, error) {
	if r.validate != nil {
		if err := r.validate(v); err != nil {
			return nil, fmt.Errorf("create %s: %w", model.Kind(r.collection), err)
		}
	}
	return CreateFields(r.collection, v)
}

// CreateFields converts v into the field map written on creation: the ID is
// dropped, created_at is stamped by the store, and relationship fields are
// reset to empty.
func CreateFields(collection string, v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", model.Kind(collection), err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", model.Kind(collection), err)
	}
	delete(fields, "id")
	delete(fields, model.FieldUpdatedAt)
	fields[model.FieldCreatedAt] = docstore.ServerTimestamp
	model.ResetRelationFields(collection, fields)
	return fields, nil
}

// Get returns the document or an error wrapping ErrNotFound.
func (r *Repository[T]) Get(ctx context.Context, id string) (*T, error) {
	doc, err := r.store.Get(ctx, r.collection, id)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", model.Kind(r.collection), id, err)
	}
	var v T
	if err := doc.DataTo(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// List returns every document in insertion order.
func (r *Repository[T]) List(ctx context.Context) ([]T, error) {
	docs, err := r.store.List(ctx, r.collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.collection, err)
	}
	return docstore.DecodeAll[T](docs)
}

// Update merges fields into the document and stamps updated_at. The merged
// document must still validate.
func (r *Repository[T]) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return fmt.Errorf("update %s %s: no fields", model.Kind(r.collection), id)
	}
	for name := range fields {
		if _, ok := r.updatable[name]; !ok {
			return fmt.Errorf("update %s %s: %q: %w", model.Kind(r.collection), id, name, ErrReadOnlyField)
		}
	}

	doc, err := r.store.Get(ctx, r.collection, id)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", model.Kind(r.collection), id, err)
	}
	if r.validate != nil {
		merged := maps.Clone(doc.Data)
		for k, v := range fields {
			if v == nil {
				delete(merged, k)
				continue
			}
			merged[k] = v
		}
		candidate := docstore.Document{ID: id, Data: merged}
		var v T
		if err := candidate.DataTo(&v); err != nil {
			return fmt.Errorf("update %s %s: %w: %v", model.Kind(r.collection), id, model.ErrInvalid, err)
		}
		if err := r.validate(&v); err != nil {
			return fmt.Errorf("update %s %s: %w", model.Kind(r.collection), id, err)
		}
	}

	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		if v == nil {
			updates[k] = docstore.Delete
			continue
		}
		updates[k] = v
	}
	updates[model.FieldUpdatedAt] = docstore.ServerTimestamp
	if err := r.store.Update(ctx, r.collection, id, updates); err != nil {
		return fmt.Errorf("update %s %s: %w", model.Kind(r.collection), id, err)
	}
	return nil
}

// Delete removes the document. Other documents that reference it are left
// alone; reads skip the dangling IDs.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, r.collection, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", model.Kind(r.collection), id, err)
	}
	r.logger.Debug("document deleted", "id", id)
	return nil
}

func (r *Repository[T]) requireParent(ctx context.Context, id string) error {
	if _, err := r.store.Get(ctx, r.collection, id); err != nil {
		return fmt.Errorf("%s %s: %w", model.Kind(r.collection), id, err)
	}
	return nil
}

// AddComment appends a comment under the document.
func (r *Repository[T]) AddComment(ctx context.Context, id string, c model.Comment) (string, error) {
	if err := c.Validate(); err != nil {
		return "", fmt.Errorf("add comment: %w", err)
	}
	if err := r.requireParent(ctx, id); err != nil {
		return "", fmt.Errorf("add comment: %w", err)
	}
	path := docstore.Sub(r.collection, id, model.Comments)
	commentID := r.store.NewID(path)
	if err := r.store.Set(ctx, path, commentID, map[string]any{
		"content":            c.Content,
		"author":             c.Author,
		model.FieldCreatedAt: docstore.ServerTimestamp,
	}); err != nil {
		return "", fmt.Errorf("add comment: %w", err)
	}
	return commentID, nil
}

// Comments returns the document's comments in insertion order.
func (r *Repository[T]) Comments(ctx context.Context, id string) ([]model.Comment, error) {
	docs, err := r.store.List(ctx, docstore.Sub(r.collection, id, model.Comments))
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return docstore.DecodeAll[model.Comment](docs)
}

// LogActivity records an activity entry. A zero Timestamp is stamped by the store.
func (r *Repository[T]) LogActivity(ctx context.Context, id string, a model.Activity) (string, error) {
	if err := a.Validate(); err != nil {
		return "", fmt.Errorf("log activity: %w", err)
	}
	if err := r.requireParent(ctx, id); err != nil {
		return "", fmt.Errorf("log activity: %w", err)
	}
	var ts any = docstore.ServerTimestamp
	if !a.Timestamp.IsZero() {
		ts = docstore.FormatTime(a.Timestamp)
	}
	fields := map[string]any{
		"action":             a.Action,
		"user":               a.User,
		model.FieldTimestamp: ts,
	}
	if a.Description != "" {
		fields["description"] = a.Description
	}
	path := docstore.Sub(r.collection, id, model.ActivityLog)
	activityID := r.store.NewID(path)
	if err := r.store.Set(ctx, path, activityID, fields); err != nil {
		return "", fmt.Errorf("log activity: %w", err)
	}
	return activityID, nil
}

// ActivityLog returns the document's activity ordered by timestamp.
func (r *Repository[T]) ActivityLog(ctx context.Context, id string) ([]model.Activity, error) {
	docs, err := r.store.List(ctx, docstore.Sub(r.collection, id, model.ActivityLog),
		docstore.OrderBy(model.FieldTimestamp))
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return docstore.DecodeAll[model.Activity](docs)
}

func jsonFieldNames(t reflect.Type) []string {
	if t.Kind() != reflect.Struct {
		return nil
	}
	names := make([]string, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		names = append(names, name)
	}
	return names
}
