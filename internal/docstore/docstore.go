// Package docstore describes the document-database contract the client core relies on:
// hierarchical paths, whole-document writes, field transforms and realtime watches.
package docstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrNotFound = errors.New("document not found")

// Data is the field map of a document. Values are JSON-compatible.
type Data map[string]any

type Document struct {
	ID         string
	Path       string
	Data       Data
	CreateTime time.Time
	UpdateTime time.Time
}

// Snapshot is the result of one delivery on a collection watch. Documents are in
// creation order. Version is the store version the snapshot was read at.
type Snapshot struct {
	Documents []Document
	Version   uint64
}

// DocumentSnapshot is one delivery on a document watch. Document is nil when Exists is false.
type DocumentSnapshot struct {
	Path     string
	Exists   bool
	Document *Document
	Version  uint64
}

type Filter struct {
	Field string
	Value any
}

// Query selects documents of one collection whose fields equal every filter value.
type Query struct {
	Collection string
	Filters    []Filter
}

func (q Query) Where(field string, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Value: value})
	return q
}

// Matches reports whether data satisfies every filter.
func (q Query) Matches(data Data) bool {
	for _, f := range q.Filters {
		if !equalValues(data[f.Field], f.Value) {
			return false
		}
	}
	return true
}

// ArrayUnion as a write value adds each element to the stored array unless already present.
type ArrayUnion []any

// Subscription is the cancellation handle of a watch. Cancel is idempotent; once it
// returns no new delivery starts.
type Subscription interface {
	Cancel()
}

// SubscriptionFunc adapts a function to Subscription, running it at most once.
func SubscriptionFunc(fn func()) Subscription {
	return &funcSubscription{fn: fn}
}

type funcSubscription struct {
	once sync.Once
	fn   func()
}

func (s *funcSubscription) Cancel() {
	s.once.Do(s.fn)
}

type Store interface {
	// Get returns nil, nil when the document does not exist.
	Get(ctx context.Context, path string) (*Document, error)
	Set(ctx context.Context, path string, data Data) error
	Merge(ctx context.Context, path string, data Data) error
	Update(ctx context.Context, path string, data Data) error
	Add(ctx context.Context, collection string, data Data) (string, error)
	Delete(ctx context.Context, path string) error
	Watch(q Query, onNext func(Snapshot), onErr func(error)) Subscription
	WatchDocument(path string, onNext func(DocumentSnapshot), onErr func(error)) Subscription
}

const (
	GroupsCollection       = "groups"
	ProfilesCollection     = "users"
	InventorySubcollection = "inventory"
	GrocerySubcollection   = "groceries"
)

func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

func GroupPath(groupID string) string {
	return Join(GroupsCollection, groupID)
}

func ProfilePath(identityID string) string {
	return Join(ProfilesCollection, identityID)
}

func InventoryCollection(groupID string) string {
	return Join(GroupsCollection, groupID, InventorySubcollection)
}

func GroceryCollection(groupID string) string {
	return Join(GroupsCollection, groupID, GrocerySubcollection)
}

// Split validates path and returns its parent collection and final id. Document paths
// have an even number of non-empty segments.
func Split(path string) (collection, id string, err error) {
	segs := strings.Split(path, "/")
	if len(segs)%2 != 0 {
		return "", "", errors.New("invalid document path: " + path)
	}
	for _, s := range segs {
		if s == "" {
			return "", "", errors.New("invalid document path: " + path)
		}
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1], nil
}

// IsCollection reports whether path names a collection (odd, non-empty segment count).
func IsCollection(path string) bool {
	segs := strings.Split(path, "/")
	if len(segs)%2 != 1 {
		return false
	}
	for _, s := range segs {
		if s == "" {
			return false
		}
	}
	return true
}

// JSON round trips turn every number into float64.
func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
