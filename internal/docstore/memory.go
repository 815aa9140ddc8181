package docstore

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and ephemeral deployments.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*memDoc
	seq         int64
	now         func() time.Time
}

type memDoc struct {
	seq     int64
	data    map[string]any
	created time.Time
	updated time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*memDoc),
		now:         time.Now,
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) NewID(string) string { return newID() }

func (d *memDoc) document(id string) *Document {
	return &Document{ID: id, Data: copyData(d.data), CreateTime: d.created, UpdateTime: d.updated}
}

func (m *MemoryStore) Get(_ context.Context, collection, id string) (*Document, error) {
	if err := validatePath(collection, id); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, notFound(collection, id)
	}
	return doc.document(id), nil
}

func (m *MemoryStore) GetMany(_ context.Context, collection string, ids []string) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Document, len(ids))
	coll := m.collections[collection]
	for i, id := range ids {
		if doc, ok := coll[id]; ok {
			out[i] = doc.document(id)
		}
	}
	return out, nil
}

func (m *MemoryStore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	return m.Batch().Set(collection, id, fields).Commit(ctx)
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return m.Batch().Update(collection, id, fields).Commit(ctx)
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	return m.Batch().Delete(collection, id).Commit(ctx)
}

// snapshot returns the collection's documents in insertion order.
func (m *MemoryStore) snapshot(collection string) []Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll := m.collections[collection]
	type entry struct {
		seq int64
		doc *Document
	}
	entries := make([]entry, 0, len(coll))
	for id, doc := range coll {
		entries = append(entries, entry{seq: doc.seq, doc: doc.document(id)})
	}
	slices.SortFunc(entries, func(a, b entry) int { return int(a.seq - b.seq) })
	docs := make([]Document, len(entries))
	for i, e := range entries {
		docs[i] = *e.doc
	}
	return docs
}

func (m *MemoryStore) List(_ context.Context, collection string, opts ...ListOption) ([]Document, error) {
	o, err := buildListOptions(opts)
	if err != nil {
		return nil, err
	}
	docs := m.snapshot(collection)
	if o.orderBy != "" {
		slices.SortStableFunc(docs, func(a, b Document) int {
			return compareValues(a.Data[o.orderBy], b.Data[o.orderBy])
		})
	}
	if o.limit > 0 && len(docs) > o.limit {
		docs = docs[:o.limit]
	}
	return docs, nil
}

func (m *MemoryStore) Stream(_ context.Context, collection string) iter.Seq2[Document, error] {
	docs := m.snapshot(collection)
	return func(yield func(Document, error) bool) {
		for _, doc := range docs {
			if !yield(doc, nil) {
				return
			}
		}
	}
}

func (m *MemoryStore) Where(_ context.Context, collection, field string, op Op, value any) ([]Document, error) {
	if err := validateField(field); err != nil {
		return nil, err
	}
	want, err := normalize(value)
	if err != nil {
		return nil, fmt.Errorf("docstore: query value: %w", err)
	}
	var match func(any) bool
	switch op {
	case OpEqual:
		match = func(v any) bool { return reflect.DeepEqual(v, want) }
	case OpArrayContains:
		match = func(v any) bool {
			arr, ok := v.([]any)
			return ok && containsValue(arr, want)
		}
	default:
		return nil, fmt.Errorf("docstore: unsupported operator %q", op)
	}
	var out []Document
	for _, doc := range m.snapshot(collection) {
		if match(doc.Data[field]) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (m *MemoryStore) Batch() Batch {
	return &writeBatch{commit: m.commit}
}

type docKey struct{ collection, id string }

// commit stages every write against copies and publishes them only when all
// writes succeed.
func (m *MemoryStore) commit(_ context.Context, writes []write) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	staged := make(map[docKey]*memDoc)
	lookup := func(k docKey) *memDoc {
		if doc, ok := staged[k]; ok {
			return doc
		}
		if doc, ok := m.collections[k.collection][k.id]; ok {
			cp := *doc
			cp.data = copyData(doc.data)
			return &cp
		}
		return nil
	}
	seq := m.seq

	for _, w := range writes {
		k := docKey{w.collection, w.id}
		switch w.kind {
		case writeSet:
			data := map[string]any{}
			if err := applyFields(data, w.fields, now); err != nil {
				return err
			}
			if cur := lookup(k); cur != nil {
				cur.data = data
				cur.updated = now
				staged[k] = cur
			} else {
				seq++
				staged[k] = &memDoc{seq: seq, data: data, created: now, updated: now}
			}
		case writeUpdate:
			cur := lookup(k)
			if cur == nil {
				return notFound(w.collection, w.id)
			}
			if err := applyFields(cur.data, w.fields, now); err != nil {
				return err
			}
			cur.updated = now
			staged[k] = cur
		case writeDelete:
			staged[k] = nil
		}
	}

	for k, doc := range staged {
		coll := m.collections[k.collection]
		if doc == nil {
			delete(coll, k.id)
			continue
		}
		if coll == nil {
			coll = make(map[string]*memDoc)
			m.collections[k.collection] = coll
		}
		coll[k.id] = doc
	}
	m.seq = seq
	return nil
}
