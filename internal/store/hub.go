package store

import (
	"sync"
	"sync/atomic"

	"github.com/vbonduro/fampantry/internal/docstore"
)

// hub tracks live watchers by the collection or document path they observe.
type hub struct {
	mu       sync.RWMutex
	watchers map[string]map[*watcher]struct{}
}

func newHub() *hub {
	return &hub{watchers: make(map[string]map[*watcher]struct{})}
}

func (h *hub) start(w *watcher) docstore.Subscription {
	h.mu.Lock()
	set, ok := h.watchers[w.key]
	if !ok {
		set = make(map[*watcher]struct{})
		h.watchers[w.key] = set
	}
	set[w] = struct{}{}
	h.mu.Unlock()

	w.refresh()
	return w
}

func (h *hub) remove(w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.watchers[w.key]; ok {
		delete(set, w)
		if len(set) == 0 {
			delete(h.watchers, w.key)
		}
	}
}

func (h *hub) drain() []*watcher {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*watcher
	for _, set := range h.watchers {
		for w := range set {
			out = append(out, w)
		}
	}
	h.watchers = make(map[string]map[*watcher]struct{})
	return out
}

// publish refreshes every watcher of the written collection or document. It runs on the
// writer's goroutine after the write committed, so watchers have seen the write by the
// time the writer returns.
func (h *hub) publish(keys ...string) {
	h.mu.RLock()
	var targets []*watcher
	for _, k := range keys {
		for w := range h.watchers[k] {
			targets = append(targets, w)
		}
	}
	h.mu.RUnlock()

	for _, w := range targets {
		w.refresh()
	}
}

type watcher struct {
	hub   *hub
	store *DocumentStore
	key   string
	read  func(version uint64) error
	onErr func(error)

	cancelled atomic.Bool

	// mu serializes deliveries; last only moves forward.
	mu        sync.Mutex
	delivered bool
	last      uint64
}

func (w *watcher) refresh() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled.Load() {
		return
	}
	v := w.store.version.Load()
	if w.delivered && v <= w.last {
		return
	}
	if err := w.read(v); err != nil {
		w.store.logger.Error("watch read failed", "key", w.key, "error", err)
		w.cancelled.Store(true)
		w.hub.remove(w)
		w.onErr(err)
		return
	}
	w.delivered = true
	w.last = v
}

func (w *watcher) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled.Swap(true) {
		return
	}
	w.onErr(err)
}

// Cancel stops future deliveries. It does not wait for one already in progress, so it is
// safe to call from inside a callback.
func (w *watcher) Cancel() {
	if w.cancelled.Swap(true) {
		return
	}
	w.hub.remove(w)
	w.store.logger.Debug("watch cancelled", "key", w.key)
}
