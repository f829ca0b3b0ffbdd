package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/fampantry/internal/docstore"
)

// DocumentStore is a docstore.Store on database/sql. Documents are JSON rows keyed by
// path; committed writes fan out to watchers through an in-process hub.
type DocumentStore struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
	hub     *hub

	writeMu sync.Mutex
	lastNS  int64
	version atomic.Uint64

	newID func() string
	now   func() time.Time
}

func NewDocumentStore(db *sql.DB, driver string, logger *slog.Logger) *DocumentStore {
	s := &DocumentStore{
		db:      db,
		dialect: newDialect(driver),
		logger:  logger,
		newID:   uuid.NewString,
		now:     time.Now,
	}
	s.hub = newHub()
	return s
}

// Version is the number of writes committed through this store.
func (s *DocumentStore) Version() uint64 {
	return s.version.Load()
}

func (s *DocumentStore) Get(ctx context.Context, path string) (*docstore.Document, error) {
	if _, _, err := docstore.Split(path); err != nil {
		return nil, err
	}
	return s.get(ctx, s.db, path, "")
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *DocumentStore) get(ctx context.Context, q queryer, path, suffix string) (*docstore.Document, error) {
	var (
		id        string
		raw       string
		createdNS int64
		updatedNS int64
	)
	err := q.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT doc_id, data, created_ns, updated_ns FROM documents WHERE path = ?
	`+suffix), path).Scan(&id, &raw, &createdNS, &updatedNS)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return decodeDocument(path, id, raw, createdNS, updatedNS)
}

// Set overwrites the document at path.
func (s *DocumentStore) Set(ctx context.Context, path string, data docstore.Data) error {
	return s.write(ctx, path, func(_ docstore.Data, _ bool) (docstore.Data, error) {
		return applyFields(nil, data), nil
	})
}

// Merge writes the given top-level fields, creating the document if needed.
func (s *DocumentStore) Merge(ctx context.Context, path string, data docstore.Data) error {
	return s.write(ctx, path, func(existing docstore.Data, _ bool) (docstore.Data, error) {
		return applyFields(existing, data), nil
	})
}

// Update merges fields into an existing document and fails with docstore.ErrNotFound
// when there is none.
func (s *DocumentStore) Update(ctx context.Context, path string, data docstore.Data) error {
	return s.write(ctx, path, func(existing docstore.Data, exists bool) (docstore.Data, error) {
		if !exists {
			return nil, docstore.ErrNotFound
		}
		return applyFields(existing, data), nil
	})
}

// Add creates a document with a generated id in collection.
func (s *DocumentStore) Add(ctx context.Context, collection string, data docstore.Data) (string, error) {
	if !docstore.IsCollection(collection) {
		return "", fmt.Errorf("invalid collection path: %s", collection)
	}
	id := s.newID()
	if err := s.Set(ctx, docstore.Join(collection, id), data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *DocumentStore) Delete(ctx context.Context, path string) error {
	collection, _, err := docstore.Split(path)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	result, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		DELETE FROM documents WHERE path = ?
	`), path)
	if err != nil {
		s.writeMu.Unlock()
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.writeMu.Unlock()
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		s.writeMu.Unlock()
		return docstore.ErrNotFound
	}
	s.version.Add(1)
	s.writeMu.Unlock()

	s.hub.publish(collection, path)
	return nil
}

func (s *DocumentStore) write(ctx context.Context, path string, mutate func(docstore.Data, bool) (docstore.Data, error)) error {
	collection, id, err := docstore.Split(path)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.get(ctx, tx, path, s.dialect.forUpdate())
		if err != nil {
			return err
		}

		var current docstore.Data
		if existing != nil {
			current = existing.Data
		}
		next, err := mutate(current, existing != nil)
		if err != nil {
			return err
		}

		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to encode document: %w", err)
		}

		stamp := s.stamp()
		if existing != nil {
			_, err = tx.ExecContext(ctx, s.dialect.rebind(`
				UPDATE documents SET data = ?, updated_ns = ? WHERE path = ?
			`), string(encoded), stamp, path)
		} else {
			_, err = tx.ExecContext(ctx, s.dialect.rebind(`
				INSERT INTO documents (path, collection, doc_id, data, created_ns, updated_ns)
				VALUES (?, ?, ?, ?, ?, ?)
			`), path, collection, id, string(encoded), stamp, stamp)
		}
		if err != nil {
			return fmt.Errorf("failed to write document: %w", err)
		}
		return nil
	})
	if err == nil {
		s.version.Add(1)
	}
	s.writeMu.Unlock()

	if err != nil {
		return err
	}
	s.hub.publish(collection, path)
	return nil
}

func (s *DocumentStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// stamp returns a strictly increasing nanosecond timestamp. Must hold writeMu.
func (s *DocumentStore) stamp() int64 {
	n := s.now().UnixNano()
	if n <= s.lastNS {
		n = s.lastNS + 1
	}
	s.lastNS = n
	return n
}

func (s *DocumentStore) list(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT path, doc_id, data, created_ns, updated_ns FROM documents
		WHERE collection = ? ORDER BY created_ns ASC, path ASC
	`), q.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []docstore.Document{}
	for rows.Next() {
		var (
			path, id, raw        string
			createdNS, updatedNS int64
		)
		if err := rows.Scan(&path, &id, &raw, &createdNS, &updatedNS); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc, err := decodeDocument(path, id, raw, createdNS, updatedNS)
		if err != nil {
			return nil, err
		}
		if q.Matches(doc.Data) {
			docs = append(docs, *doc)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

// Watch delivers the matching documents of q.Collection now and after every write to it.
func (s *DocumentStore) Watch(q docstore.Query, onNext func(docstore.Snapshot), onErr func(error)) docstore.Subscription {
	if !docstore.IsCollection(q.Collection) {
		onErr(fmt.Errorf("invalid collection path: %s", q.Collection))
		return docstore.SubscriptionFunc(func() {})
	}
	w := &watcher{
		hub:   s.hub,
		key:   q.Collection,
		store: s,
		onErr: onErr,
		read: func(version uint64) error {
			docs, err := s.list(context.Background(), q)
			if err != nil {
				return err
			}
			onNext(docstore.Snapshot{Documents: docs, Version: version})
			return nil
		},
	}
	s.logger.Debug("watch started", "collection", q.Collection, "filters", len(q.Filters))
	return s.hub.start(w)
}

// WatchDocument delivers the document at path now and after every write to it.
func (s *DocumentStore) WatchDocument(path string, onNext func(docstore.DocumentSnapshot), onErr func(error)) docstore.Subscription {
	if _, _, err := docstore.Split(path); err != nil {
		onErr(err)
		return docstore.SubscriptionFunc(func() {})
	}
	w := &watcher{
		hub:   s.hub,
		key:   path,
		store: s,
		onErr: onErr,
		read: func(version uint64) error {
			doc, err := s.get(context.Background(), s.db, path, "")
			if err != nil {
				return err
			}
			onNext(docstore.DocumentSnapshot{Path: path, Exists: doc != nil, Document: doc, Version: version})
			return nil
		},
	}
	s.logger.Debug("watch started", "document", path)
	return s.hub.start(w)
}

func decodeDocument(path, id, raw string, createdNS, updatedNS int64) (*docstore.Document, error) {
	data := docstore.Data{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", path, err)
	}
	return &docstore.Document{
		ID:         id,
		Path:       path,
		Data:       data,
		CreateTime: time.Unix(0, createdNS).UTC(),
		UpdateTime: time.Unix(0, updatedNS).UTC(),
	}, nil
}

// applyFields merges patch over base. ArrayUnion values are resolved against base.
func applyFields(base, patch docstore.Data) docstore.Data {
	out := make(docstore.Data, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if union, ok := v.(docstore.ArrayUnion); ok {
			out[k] = unionArray(base[k], union)
			continue
		}
		out[k] = v
	}
	return out
}

func unionArray(existing any, add docstore.ArrayUnion) []any {
	var out []any
	if arr, ok := existing.([]any); ok {
		out = append(out, arr...)
	}
	for _, v := range add {
		nv := normalize(v)
		present := false
		for _, cur := range out {
			if reflect.DeepEqual(normalize(cur), nv) {
				present = true
				break
			}
		}
		if !present {
			out = append(out, nv)
		}
	}
	if out == nil {
		out = []any{}
	}
	return out
}

// normalize gives v the shape it will have after a JSON round trip.
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

var errClosed = errors.New("document store closed")

// Close ends every live watch with an error. Writes keep working.
func (s *DocumentStore) Close() {
	for _, w := range s.hub.drain() {
		w.fail(errClosed)
	}
}
