package docstore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"
)

type sentinel int

const (
	// Delete removes the field it is assigned to.
	Delete sentinel = iota + 1
	// ServerTimestamp is replaced with the commit time.
	ServerTimestamp
)

type arrayUnion struct{ values []any }

type arrayRemove struct{ values []any }

// ArrayUnion adds values that are not already present to an array field,
// creating it when missing.
func ArrayUnion[T any](values ...T) any {
	return arrayUnion{values: toAny(values)}
}

// ArrayRemove removes every occurrence of the values from an array field.
func ArrayRemove[T any](values ...T) any {
	return arrayRemove{values: toAny(values)}
}

func toAny[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// applyFields writes fields into dst, resolving transforms against the
// current values. All stored values are JSON-normalized.
func applyFields(dst, fields map[string]any, now time.Time) error {
	stamp := FormatTime(now)
	for key, value := range fields {
		if err := validateField(key); err != nil {
			return err
		}
		switch v := value.(type) {
		case sentinel:
			switch v {
			case Delete:
				delete(dst, key)
			case ServerTimestamp:
				dst[key] = stamp
			default:
				return fmt.Errorf("docstore: unknown transform on %q", key)
			}
		case arrayUnion:
			add, err := normalizeSlice(v.values)
			if err != nil {
				return fmt.Errorf("docstore: field %q: %w", key, err)
			}
			current := asArray(dst[key])
			for _, item := range add {
				if !containsValue(current, item) {
					current = append(current, item)
				}
			}
			dst[key] = current
		case arrayRemove:
			drop, err := normalizeSlice(v.values)
			if err != nil {
				return fmt.Errorf("docstore: field %q: %w", key, err)
			}
			current := asArray(dst[key])
			kept := make([]any, 0, len(current))
			for _, item := range current {
				if !containsValue(drop, item) {
					kept = append(kept, item)
				}
			}
			dst[key] = kept
		default:
			n, err := normalize(value)
			if err != nil {
				return fmt.Errorf("docstore: field %q: %w", key, err)
			}
			dst[key] = n
		}
	}
	return nil
}

func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeSlice(values []any) ([]any, error) {
	out := make([]any, 0, len(values))
	for _, v := range values {
		n, err := normalize(v)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func asArray(v any) []any {
	arr, ok := v.([]any)
	if !ok {
		return []any{}
	}
	return append([]any(nil), arr...)
}

func containsValue(values []any, v any) bool {
	for _, existing := range values {
		if reflect.DeepEqual(existing, v) {
			return true
		}
	}
	return false
}

// copyValue deep-copies a JSON-normalized value.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyData(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

func copyData(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

// compareValues orders field values for OrderBy. Missing values sort first.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return cmp.Compare(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv)
		}
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

type writeKind int

const (
	writeSet writeKind = iota
	writeUpdate
	writeDelete
)

type write struct {
	kind       writeKind
	collection string
	id         string
	fields     map[string]any
}

// writeBatch collects writes and hands them to the backend on Commit.
type writeBatch struct {
	writes    []write
	err       error
	committed bool
	commit    func(ctx context.Context, writes []write) error
}

func (b *writeBatch) add(w write) Batch {
	if b.err == nil {
		b.err = validatePath(w.collection, w.id)
	}
	b.writes = append(b.writes, w)
	return b
}

func (b *writeBatch) Set(collection, id string, fields map[string]any) Batch {
	return b.add(write{kind: writeSet, collection: collection, id: id, fields: fields})
}

func (b *writeBatch) Update(collection, id string, fields map[string]any) Batch {
	return b.add(write{kind: writeUpdate, collection: collection, id: id, fields: fields})
}

func (b *writeBatch) Delete(collection, id string) Batch {
	return b.add(write{kind: writeDelete, collection: collection, id: id})
}

func (b *writeBatch) Len() int { return len(b.writes) }

func (b *writeBatch) Commit(ctx context.Context) error {
	if b.committed {
		return errors.New("docstore: batch already committed")
	}
	b.committed = true
	if b.err != nil {
		return b.err
	}
	if len(b.writes) == 0 {
		return nil
	}
	return b.commit(sanitizeContext(ctx), b.writes)
}

func notFound(collection, id string) error {
	return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
}
