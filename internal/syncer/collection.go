// Package syncer keeps live, typed snapshots of group-scoped collections and documents.
package syncer

import (
	"log/slog"
	"sync"

	"github.com/vbonduro/fampantry/internal/docstore"
	"github.com/vbonduro/fampantry/internal/domain"
)

type watcher interface {
	Watch(q docstore.Query, onNext func(docstore.Snapshot), onErr func(error)) docstore.Subscription
	WatchDocument(path string, onNext func(docstore.DocumentSnapshot), onErr func(error)) docstore.Subscription
}

// Observer receives delivery events, e.g. for metrics.
type Observer interface {
	SnapshotReceived(list string)
	SubscriptionFailed(list string)
}

// Scope parameterizes a collection subscription. An empty Filter means no filter.
type Scope struct {
	GroupID string `json:"groupId"`
	Filter  string `json:"filter"`
}

// State is an immutable snapshot. Items must not be modified.
type State[T any] struct {
	Items   []T    `json:"items"`
	Loading bool   `json:"loading"`
	Err     error  `json:"-"`
	Scope   Scope  `json:"scope"`
	Version uint64 `json:"version"`
}

type Options[T any] struct {
	// Name labels logs and metrics.
	Name string
	// Collection returns the collection path for a group.
	Collection func(groupID string) string
	// FilterField is the field Scope.Filter is matched against.
	FilterField string
	Map         func(docstore.Document) T
	// Sort, when set, orders every snapshot in place.
	Sort func([]T)
}

// Collection maintains at most one live subscription, scoped by group and filter.
type Collection[T any] struct {
	docs     watcher
	logger   *slog.Logger
	observer Observer
	opts     Options[T]

	slot docstore.Slot
	cell *cell[State[T]]

	// scopeMu serializes re-parameterization.
	scopeMu     sync.Mutex
	scope       Scope
	initialized bool
	closed      bool
}

func NewCollection[T any](docs watcher, logger *slog.Logger, observer Observer, opts Options[T]) *Collection[T] {
	return &Collection[T]{
		docs:     docs,
		logger:   logger,
		observer: observer,
		opts:     opts,
		cell:     newCell(State[T]{Items: []T{}, Loading: true}),
	}
}

func (c *Collection[T]) State() State[T] {
	return c.cell.get()
}

// OnChange registers fn and immediately calls it with the current state.
func (c *Collection[T]) OnChange(fn func(State[T])) func() {
	return c.cell.onChange(fn)
}

func (c *Collection[T]) SetGroup(groupID string) {
	c.rescope(func(s *Scope) { s.GroupID = groupID })
}

func (c *Collection[T]) SetFilter(filter string) {
	c.rescope(func(s *Scope) { s.Filter = filter })
}

// SetScope re-parameterizes the subscription. The previous subscription is cancelled
// before the new one starts; an unchanged scope with a live subscription is a no-op.
func (c *Collection[T]) SetScope(groupID, filter string) {
	c.rescope(func(s *Scope) { *s = Scope{GroupID: groupID, Filter: filter} })
}

func (c *Collection[T]) rescope(change func(*Scope)) {
	c.scopeMu.Lock()
	defer c.scopeMu.Unlock()

	next := c.scope
	change(&next)
	next.Filter = normalizeFilter(next.Filter)
	if c.closed {
		return
	}
	if c.initialized && c.scope == next && (next.GroupID == "" || c.slot.Active()) {
		return
	}
	c.initialized = true
	c.scope = next

	c.slot.Clear()
	if next.GroupID == "" {
		c.cell.update(func(st *State[T]) {
			*st = State[T]{Items: []T{}, Scope: next}
		})
		c.logger.Debug("sync stopped", "list", c.opts.Name)
		return
	}

	c.cell.update(func(st *State[T]) {
		*st = State[T]{Items: []T{}, Loading: true, Scope: next}
	})

	q := docstore.Query{Collection: c.opts.Collection(next.GroupID)}
	if next.Filter != "" {
		q = q.Where(c.opts.FilterField, next.Filter)
	}
	c.slot.Replace(func(token uint64) docstore.Subscription {
		c.logger.Debug("sync started", "list", c.opts.Name, "group", next.GroupID, "filter", next.Filter)
		return c.docs.Watch(q,
			func(snap docstore.Snapshot) {
				c.slot.Do(token, func() { c.apply(next, snap) })
			},
			func(err error) {
				c.slot.Do(token, func() { c.fail(next, err) })
				c.slot.Release(token)
			},
		)
	})
}

// Close cancels the subscription; later SetScope calls are ignored.
func (c *Collection[T]) Close() {
	c.scopeMu.Lock()
	c.closed = true
	c.scopeMu.Unlock()
	c.slot.Clear()
}

func (c *Collection[T]) apply(scope Scope, snap docstore.Snapshot) {
	items := make([]T, 0, len(snap.Documents))
	for _, doc := range snap.Documents {
		items = append(items, c.opts.Map(doc))
	}
	if c.opts.Sort != nil {
		c.opts.Sort(items)
	}
	c.cell.update(func(st *State[T]) {
		*st = State[T]{Items: items, Scope: scope, Version: snap.Version}
	})
	if c.observer != nil {
		c.observer.SnapshotReceived(c.opts.Name)
	}
}

func (c *Collection[T]) fail(scope Scope, err error) {
	c.logger.Error("sync failed", "list", c.opts.Name, "group", scope.GroupID, "error", err)
	if c.observer != nil {
		c.observer.SubscriptionFailed(c.opts.Name)
	}
	c.cell.update(func(st *State[T]) {
		st.Loading = false
		st.Err = domain.Subscription("syncer."+c.opts.Name, "Live updates stopped. Please try again.", err)
	})
}

func normalizeFilter(filter string) string {
	if filter == domain.CategoryAll {
		return ""
	}
	return filter
}
