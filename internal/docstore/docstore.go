// Package docstore is a small document database abstraction: schemaless
// documents grouped in collections, single-document atomic updates with
// server-side field transforms, and atomic multi-document batches.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"maps"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// TimeLayout is the fixed-width UTC layout used for stored timestamps so that
// they order lexically.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is implemented by every backend.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	// GetMany returns one entry per requested id, in request order; absent
	// documents are nil.
	GetMany(ctx context.Context, collection string, ids []string) ([]*Document, error)
	Set(ctx context.Context, collection, id string, fields map[string]any) error
	// Update merges fields into an existing document and returns ErrNotFound
	// when it does not exist.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string, opts ...ListOption) ([]Document, error)
	Stream(ctx context.Context, collection string) iter.Seq2[Document, error]
	Where(ctx context.Context, collection, field string, op Op, value any) ([]Document, error)
	NewID(collection string) string
	Batch() Batch
	Close() error
}

// Batch queues writes that are committed all-or-nothing.
type Batch interface {
	Set(collection, id string, fields map[string]any) Batch
	Update(collection, id string, fields map[string]any) Batch
	Delete(collection, id string) Batch
	Len() int
	Commit(ctx context.Context) error
}

// Document is a stored record.
type Document struct {
	ID         string
	Data       map[string]any
	CreateTime time.Time
	UpdateTime time.Time
}

// DataTo decodes the document into v, which is usually a pointer to a struct
// with json tags. The document ID is exposed as the "id" field.
func (d *Document) DataTo(v any) error {
	raw := make(map[string]any, len(d.Data)+1)
	maps.Copy(raw, d.Data)
	raw["id"] = d.ID
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("docstore: encode %s: %w", d.ID, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("docstore: decode %s: %w", d.ID, err)
	}
	return nil
}

// DecodeAll decodes docs into values of T, preserving order.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for i := range docs {
		var v T
		if err := docs[i].DataTo(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// String returns a string field, or "" when missing or not a string.
func (d *Document) String(field string) string {
	s, _ := d.Data[field].(string)
	return s
}

// Strings returns the string members of an array field.
func (d *Document) Strings(field string) []string {
	arr, _ := d.Data[field].([]any)
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Op is a Where predicate.
type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array_contains"
)

type listOptions struct {
	orderBy string
	limit   int
}

// ListOption adjusts List.
type ListOption func(*listOptions)

// OrderBy sorts ascending by a top-level field. Documents missing the field
// sort first; ties keep insertion order.
func OrderBy(field string) ListOption {
	return func(o *listOptions) { o.orderBy = field }
}

// Limit caps the number of returned documents.
func Limit(n int) ListOption {
	return func(o *listOptions) { o.limit = n }
}

func buildListOptions(opts []ListOption) (listOptions, error) {
	var o listOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.orderBy != "" {
		if err := validateField(o.orderBy); err != nil {
			return o, err
		}
	}
	return o, nil
}

// Sub returns the path of a subcollection nested under a document.
func Sub(collection, id, name string) string {
	return collection + "/" + id + "/" + name
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateField(name string) error {
	if !fieldPattern.MatchString(name) {
		return fmt.Errorf("docstore: invalid field name %q", name)
	}
	return nil
}

func validatePath(collection, id string) error {
	if strings.TrimSpace(collection) == "" {
		return errors.New("docstore: collection is required")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("docstore: %s: document id is required", collection)
	}
	if strings.Contains(id, "/") {
		return fmt.Errorf("docstore: %s: invalid document id %q", collection, id)
	}
	return nil
}

func sanitizeContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
