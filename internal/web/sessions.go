package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vbonduro/fampantry/internal/auth"
	"github.com/vbonduro/fampantry/internal/client"
	"github.com/vbonduro/fampantry/internal/domain"
	"github.com/vbonduro/fampantry/internal/metrics"
)

type liveSession struct {
	client   *client.Client
	expires  time.Time
	lastSeen time.Time
	// streams counts open event streams; a streaming session is never idle.
	streams int
	done    chan struct{}
}

// Registry holds one client per login session, keyed by the session id in the token.
// Sessions are evicted when their token expires or, with a non-zero idle timeout, when no
// request or event stream has used them for that long. An idle-evicted session is
// restored on its next request.
type Registry struct {
	newClient func() *client.Client
	tokens    *auth.TokenManager
	idle      time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	restores singleflight.Group

	mu       sync.Mutex
	sessions map[string]*liveSession
	// revoked maps signed-out session ids to their token expiry.
	revoked map[string]time.Time
}

func NewRegistry(newClient func() *client.Client, tokens *auth.TokenManager, idle time.Duration, m *metrics.Metrics, logger *slog.Logger) *Registry {
	return &Registry{
		newClient: newClient,
		tokens:    tokens,
		idle:      idle,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[string]*liveSession),
		revoked:   make(map[string]time.Time),
	}
}

// Open issues a token for a client that has just signed in and keeps the client.
func (r *Registry) Open(c *client.Client, id domain.Identity) (string, error) {
	token, claims, err := r.tokens.Issue(id)
	if err != nil {
		return "", err
	}
	r.Sweep()
	r.mu.Lock()
	r.sessions[claims.ID] = r.newSession(c, claims)
	r.mu.Unlock()
	r.metrics.SessionOpened()
	r.logger.Info("session opened", "session", claims.ID, "identity", id.ID)
	return token, nil
}

func (r *Registry) newSession(c *client.Client, claims *auth.Claims) *liveSession {
	now := r.now()
	expires := now
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	return &liveSession{client: c, expires: expires, lastSeen: now, done: make(chan struct{})}
}

// Resolve returns the client of a validated token. A session this process has not seen,
// e.g. after a restart or an idle eviction, is restored from the identity in the claims.
func (r *Registry) Resolve(ctx context.Context, claims *auth.Claims) (*client.Client, error) {
	const op = "web.resolveSession"
	sessionID := claims.ID
	r.Sweep()

	if c, revoked := r.touch(sessionID); revoked {
		return nil, domain.Auth(op, "You have signed out. Please sign in again.", nil)
	} else if c != nil {
		return c, nil
	}

	v, err, _ := r.restores.Do(sessionID, func() (any, error) {
		if c, _ := r.touch(sessionID); c != nil {
			return c, nil
		}

		c := r.newClient()
		if _, err := c.Restore(context.WithoutCancel(ctx), claims.UserID); err != nil {
			c.Close()
			return nil, err
		}

		r.mu.Lock()
		if _, ok := r.revoked[sessionID]; ok {
			r.mu.Unlock()
			c.Close()
			return nil, domain.Auth(op, "You have signed out. Please sign in again.", nil)
		}
		r.sessions[sessionID] = r.newSession(c, claims)
		r.mu.Unlock()
		r.metrics.SessionOpened()
		r.logger.Info("session restored", "session", sessionID, "identity", claims.UserID)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*client.Client), nil
}

// touch marks a live session as used and returns its client.
func (r *Registry) touch(sessionID string) (c *client.Client, revoked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.revoked[sessionID]; ok {
		return nil, true
	}
	ls, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	ls.lastSeen = r.now()
	return ls.client, false
}

// Hold keeps a session from going idle while an event stream is open. The returned
// channel is closed when the session is evicted or revoked.
func (r *Registry) Hold(sessionID string) (release func(), done <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls, ok := r.sessions[sessionID]
	if !ok {
		closed := make(chan struct{})
		close(closed)
		return func() {}, closed
	}
	ls.streams++
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			ls.streams--
			ls.lastSeen = r.now()
			r.mu.Unlock()
		})
	}, ls.done
}

// Sweep evicts sessions whose token has expired or that have been idle too long.
func (r *Registry) Sweep() {
	r.mu.Lock()
	now := r.now()
	for id, exp := range r.revoked {
		if exp.Before(now) {
			delete(r.revoked, id)
		}
	}
	var evicted []*liveSession
	for id, ls := range r.sessions {
		expired := !now.Before(ls.expires)
		idle := r.idle > 0 && ls.streams == 0 && now.Sub(ls.lastSeen) >= r.idle
		if expired || idle {
			delete(r.sessions, id)
			evicted = append(evicted, ls)
			r.logger.Info("session evicted", "session", id, "expired", expired)
		}
	}
	r.mu.Unlock()

	for _, ls := range evicted {
		r.close(ls)
	}
}

func (r *Registry) close(ls *liveSession) {
	close(ls.done)
	ls.client.Close()
	r.metrics.SessionClosed()
}

// Revoke signs the session out and closes its client. The token stays rejected until it
// would have expired anyway.
func (r *Registry) Revoke(claims *auth.Claims) {
	expires := r.now()
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}

	r.Sweep()
	r.mu.Lock()
	r.revoked[claims.ID] = expires
	ls, ok := r.sessions[claims.ID]
	delete(r.sessions, claims.ID)
	r.mu.Unlock()

	if ok {
		ls.client.SignOut()
		r.close(ls)
	}
	r.logger.Info("session revoked", "session", claims.ID)
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*liveSession)
	r.mu.Unlock()

	for _, ls := range sessions {
		r.close(ls)
	}
	r.logger.Info("sessions closed", "count", len(sessions))
}
