package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection, seq);
`

// maxParams keeps IN lists under SQLite's bound-parameter limit.
const maxParams = 500

// SQLiteStore keeps every collection in a single documents table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite creates or opens the database at path and ensures the schema exists.
func OpenSQLite(path string, busyTimeout time.Duration) (*SQLiteStore, error) {
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_txlock=immediate",
		path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("docstore: open %s: %w", path, err)
	}
	if _, err := db.Exec(documentsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("docstore: create schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) NewID(string) string {
	return newID()
}

func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := validatePath(collection, id); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(sanitizeContext(ctx),
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *SQLiteStore) GetMany(ctx context.Context, collection string, ids []string) ([]*Document, error) {
	out := make([]*Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	found := make(map[string]*Document, len(ids))
	for start := 0; start < len(ids); start += maxParams {
		end := min(start+maxParams, len(ids))
		chunk := ids[start:end]
		args := make([]any, 0, len(chunk)+1)
		args = append(args, collection)
		for _, id := range chunk {
			args = append(args, id)
		}
		query := fmt.Sprintf(`SELECT id, data, created_at, updated_at FROM documents
			WHERE collection = ? AND id IN (%s)`, placeholders(len(chunk)))
		docs, err := s.queryDocuments(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("docstore: get many %s: %w", collection, err)
		}
		for i := range docs {
			found[docs[i].ID] = &docs[i]
		}
	}
	for i, id := range ids {
		if doc, ok := found[id]; ok {
			// repeated ids must not share a map
			out[i] = &Document{ID: doc.ID, Data: copyData(doc.Data), CreateTime: doc.CreateTime, UpdateTime: doc.UpdateTime}
		}
	}
	return out, nil
}

func (s *SQLiteStore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.Batch().Set(collection, id, fields).Commit(ctx)
}

func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.Batch().Update(collection, id, fields).Commit(ctx)
}

func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	return s.Batch().Delete(collection, id).Commit(ctx)
}

func (s *SQLiteStore) List(ctx context.Context, collection string, opts ...ListOption) ([]Document, error) {
	o, err := buildListOptions(opts)
	if err != nil {
		return nil, err
	}
	query := `SELECT id, data, created_at, updated_at FROM documents WHERE collection = ?`
	args := []any{collection}
	if o.orderBy != "" {
		query += ` ORDER BY json_extract(data, ?), seq`
		args = append(args, "$."+o.orderBy)
	} else {
		query += ` ORDER BY seq`
	}
	if o.limit > 0 {
		query += ` LIMIT ?`
		args = append(args, o.limit)
	}
	docs, err := s.queryDocuments(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("docstore: list %s: %w", collection, err)
	}
	return docs, nil
}

func (s *SQLiteStore) Stream(ctx context.Context, collection string) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		rows, err := s.db.QueryContext(sanitizeContext(ctx),
			`SELECT id, data, created_at, updated_at FROM documents WHERE collection = ? ORDER BY seq`, collection)
		if err != nil {
			yield(Document{}, fmt.Errorf("docstore: stream %s: %w", collection, err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			doc, err := scanDocument(rows)
			if err != nil {
				yield(Document{}, fmt.Errorf("docstore: stream %s: %w", collection, err))
				return
			}
			if !yield(*doc, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Document{}, fmt.Errorf("docstore: stream %s: %w", collection, err))
		}
	}
}

func (s *SQLiteStore) Where(ctx context.Context, collection, field string, op Op, value any) ([]Document, error) {
	if err := validateField(field); err != nil {
		return nil, err
	}
	path := "$." + field
	var query string
	var args []any
	switch op {
	case OpEqual:
		query = `SELECT id, data, created_at, updated_at FROM documents
			WHERE collection = ? AND json_extract(data, ?) = ? ORDER BY seq`
		args = []any{collection, path, value}
	case OpArrayContains:
		query = `SELECT id, data, created_at, updated_at FROM documents
			WHERE collection = ? AND json_type(data, ?) = 'array'
			AND EXISTS (SELECT 1 FROM json_each(documents.data, ?) WHERE json_each.value = ?)
			ORDER BY seq`
		args = []any{collection, path, path, value}
	default:
		return nil, fmt.Errorf("docstore: unsupported operator %q", op)
	}
	docs, err := s.queryDocuments(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("docstore: query %s where %s %s: %w", collection, field, op, err)
	}
	return docs, nil
}

func (s *SQLiteStore) Batch() Batch {
	return &writeBatch{commit: s.commit}
}

func (s *SQLiteStore) commit(ctx context.Context, writes []write) error {
	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docstore: begin: %w", err)
	}
	for _, w := range writes {
		if err := s.applyWrite(ctx, tx, w, now); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("docstore: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) applyWrite(ctx context.Context, tx *sql.Tx, w write, now time.Time) error {
	stamp := FormatTime(now)
	switch w.kind {
	case writeSet:
		data := map[string]any{}
		if err := applyFields(data, w.fields, now); err != nil {
			return err
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("docstore: encode %s/%s: %w", w.collection, w.id, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO documents (collection, id, data, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			w.collection, w.id, string(raw), stamp, stamp); err != nil {
			return fmt.Errorf("docstore: set %s/%s: %w", w.collection, w.id, err)
		}
	case writeUpdate:
		var raw string
		err := tx.QueryRowContext(ctx, `SELECT data FROM documents WHERE collection = ? AND id = ?`,
			w.collection, w.id).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(w.collection, w.id)
		}
		if err != nil {
			return fmt.Errorf("docstore: read %s/%s: %w", w.collection, w.id, err)
		}
		data := map[string]any{}
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return fmt.Errorf("docstore: decode %s/%s: %w", w.collection, w.id, err)
		}
		if err := applyFields(data, w.fields, now); err != nil {
			return err
		}
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("docstore: encode %s/%s: %w", w.collection, w.id, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
			string(encoded), stamp, w.collection, w.id); err != nil {
			return fmt.Errorf("docstore: update %s/%s: %w", w.collection, w.id, err)
		}
	case writeDelete:
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`,
			w.collection, w.id); err != nil {
			return fmt.Errorf("docstore: delete %s/%s: %w", w.collection, w.id, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc       Document
		raw       string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&doc.ID, &raw, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	doc.Data = map[string]any{}
	if err := json.Unmarshal([]byte(raw), &doc.Data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", doc.ID, err)
	}
	doc.CreateTime, _ = time.Parse(time.RFC3339Nano, createdAt)
	doc.UpdateTime, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &doc, nil
}

func (s *SQLiteStore) queryDocuments(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(sanitizeContext(ctx), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func placeholders(count int) string {
	if count == 0 {
		return ""
	}
	values := make([]string, count)
	for i := range values {
		values[i] = "?"
	}
	return strings.Join(values, ", ")
}
