package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/vbonduro/fampantry/internal/auth"
	"github.com/vbonduro/fampantry/internal/client"
)

var eventOrder = []client.Kind{
	client.KindSession,
	client.KindGroup,
	client.KindInventory,
	client.KindGroceries,
	client.KindAlerts,
}

// eventQueue keeps only the latest event per kind. Client events are delivered on the
// goroutine that caused them and must not block, so a slow stream skips intermediate
// states rather than holding up writers.
type eventQueue struct {
	mu      sync.Mutex
	pending map[client.Kind]client.Event
	ready   chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{pending: make(map[client.Kind]client.Event), ready: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev client.Event) {
	q.mu.Lock()
	q.pending[ev.Kind] = ev
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []client.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]client.Event, 0, len(q.pending))
	for _, k := range eventOrder {
		if ev, ok := q.pending[k]; ok {
			out = append(out, ev)
			delete(q.pending, k)
		}
	}
	return out
}

// handleEvents streams the caller's session, lists, group and alerts as Server-Sent Events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, c *client.Client, claims *auth.Claims) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	release, evicted := s.sessions.Hold(claims.ID)
	defer release()

	q := newEventQueue()
	stop := c.Subscribe(q.push)
	defer stop()
	s.logger.Debug("event stream opened", "session", claims.ID)

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("event stream closed", "session", claims.ID)
			return
		case <-s.done:
			return
		case <-evicted:
			s.logger.Debug("event stream ended by session eviction", "session", claims.ID)
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-q.ready:
			for _, ev := range q.drain() {
				data, err := json.Marshal(ev.Payload)
				if err != nil {
					s.logger.Error("failed to encode event", "kind", ev.Kind, "error", err)
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
					return
				}
			}
			flusher.Flush()
		}
	}
}
