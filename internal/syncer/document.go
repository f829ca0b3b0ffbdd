package syncer

import (
	"log/slog"
	"sync"

	"github.com/vbonduro/fampantry/internal/docstore"
	"github.com/vbonduro/fampantry/internal/domain"
)

type DocumentState[T any] struct {
	Value   *T     `json:"value"`
	Loading bool   `json:"loading"`
	Err     error  `json:"-"`
	GroupID string `json:"groupId"`
	Version uint64 `json:"version"`
}

// Document follows one group-scoped document, e.g. the group record itself.
type Document[T any] struct {
	docs     watcher
	logger   *slog.Logger
	observer Observer
	name     string
	path     func(groupID string) string
	mapDoc   func(docstore.Document) T

	slot docstore.Slot
	cell *cell[DocumentState[T]]

	scopeMu     sync.Mutex
	groupID     string
	initialized bool
	closed      bool
}

func NewDocument[T any](docs watcher, logger *slog.Logger, observer Observer, name string, path func(string) string, mapDoc func(docstore.Document) T) *Document[T] {
	return &Document[T]{
		docs:     docs,
		logger:   logger,
		observer: observer,
		name:     name,
		path:     path,
		mapDoc:   mapDoc,
		cell:     newCell(DocumentState[T]{Loading: true}),
	}
}

func (d *Document[T]) State() DocumentState[T] {
	return d.cell.get()
}

func (d *Document[T]) OnChange(fn func(DocumentState[T])) func() {
	return d.cell.onChange(fn)
}

func (d *Document[T]) SetGroup(groupID string) {
	d.scopeMu.Lock()
	defer d.scopeMu.Unlock()

	if d.closed {
		return
	}
	if d.initialized && d.groupID == groupID && (groupID == "" || d.slot.Active()) {
		return
	}
	d.initialized = true
	d.groupID = groupID

	d.slot.Clear()
	if groupID == "" {
		d.cell.update(func(st *DocumentState[T]) { *st = DocumentState[T]{} })
		return
	}
	d.cell.update(func(st *DocumentState[T]) { *st = DocumentState[T]{Loading: true, GroupID: groupID} })

	path := d.path(groupID)
	d.slot.Replace(func(token uint64) docstore.Subscription {
		d.logger.Debug("sync started", "list", d.name, "group", groupID)
		return d.docs.WatchDocument(path,
			func(snap docstore.DocumentSnapshot) {
				d.slot.Do(token, func() { d.apply(groupID, snap) })
			},
			func(err error) {
				d.slot.Do(token, func() { d.fail(groupID, err) })
				d.slot.Release(token)
			},
		)
	})
}

func (d *Document[T]) Close() {
	d.scopeMu.Lock()
	d.closed = true
	d.scopeMu.Unlock()
	d.slot.Clear()
}

func (d *Document[T]) apply(groupID string, snap docstore.DocumentSnapshot) {
	var value *T
	if snap.Exists && snap.Document != nil {
		v := d.mapDoc(*snap.Document)
		value = &v
	}
	d.cell.update(func(st *DocumentState[T]) {
		*st = DocumentState[T]{Value: value, GroupID: groupID, Version: snap.Version}
	})
	if d.observer != nil {
		d.observer.SnapshotReceived(d.name)
	}
}

func (d *Document[T]) fail(groupID string, err error) {
	d.logger.Error("sync failed", "list", d.name, "group", groupID, "error", err)
	if d.observer != nil {
		d.observer.SubscriptionFailed(d.name)
	}
	d.cell.update(func(st *DocumentState[T]) {
		st.Loading = false
		st.Err = domain.Subscription("syncer."+d.name, "Live updates stopped. Please try again.", err)
	})
}
