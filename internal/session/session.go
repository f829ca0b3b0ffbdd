// Package session tracks the signed-in identity of one device and the group its profile
// points at. It owns the single live subscription to that profile.
package session

import (
	"log/slog"
	"sync"

	"github.com/vbonduro/fampantry/internal/docstore"
	"github.com/vbonduro/fampantry/internal/domain"
	"github.com/vbonduro/fampantry/internal/record"
)

// State is a point-in-time view of the session. Dependents must wait for Ready before
// subscribing to anything scoped by GroupID.
type State struct {
	Identity         *domain.Identity `json:"identity"`
	GroupID          string           `json:"groupId"`
	AuthResolving    bool             `json:"authResolving"`
	ProfileResolving bool             `json:"profileResolving"`
	Err              error            `json:"-"`
}

func (s State) Ready() bool {
	return !s.AuthResolving && !s.ProfileResolving
}

// IdentitySource notifies identity changes, starting with the current one.
type IdentitySource interface {
	OnChange(fn func(*domain.Identity)) func()
}

type profileWatcher interface {
	WatchDocument(path string, onNext func(docstore.DocumentSnapshot), onErr func(error)) docstore.Subscription
}

// Observer receives subscription failures, e.g. for metrics.
type Observer interface {
	SubscriptionFailed(list string)
}

type Store struct {
	docs     profileWatcher
	logger   *slog.Logger
	observer Observer

	profile docstore.Slot

	mu        sync.Mutex
	state     State
	listeners map[int]func(State)
	nextID    int
	stopAuth  func()

	notifyMu sync.Mutex
}

func New(docs profileWatcher, logger *slog.Logger, observer Observer) *Store {
	return &Store{
		docs:      docs,
		logger:    logger,
		observer:  observer,
		state:     State{AuthResolving: true, ProfileResolving: true},
		listeners: make(map[int]func(State)),
	}
}

// Init starts following identity changes. Call it once.
func (s *Store) Init(source IdentitySource) {
	stop := source.OnChange(s.onIdentityChange)
	s.mu.Lock()
	s.stopAuth = stop
	s.mu.Unlock()
}

// Teardown stops following identity changes and cancels the profile subscription.
func (s *Store) Teardown() {
	s.mu.Lock()
	stop := s.stopAuth
	s.stopAuth = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.profile.Clear()
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.Identity != nil {
		id := *st.Identity
		st.Identity = &id
	}
	return st
}

// OnChange registers fn and immediately calls it with the current state.
func (s *Store) OnChange(fn func(State)) func() {
	s.notifyMu.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	fn(s.State())
	s.notifyMu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) onIdentityChange(id *domain.Identity) {
	if id == nil {
		s.profile.Clear()
		s.update(func(st *State) {
			*st = State{}
		})
		s.logger.Info("session signed out")
		return
	}

	ident := *id
	s.update(func(st *State) {
		if st.Identity == nil || st.Identity.ID != ident.ID {
			st.GroupID = ""
		}
		st.Identity = &ident
		st.AuthResolving = false
		st.ProfileResolving = true
		st.Err = nil
	})

	path := docstore.ProfilePath(ident.ID)
	s.profile.Replace(func(token uint64) docstore.Subscription {
		s.logger.Debug("profile subscription started", "identity", ident.ID)
		return s.docs.WatchDocument(path,
			func(snap docstore.DocumentSnapshot) {
				s.profile.Do(token, func() { s.applyProfile(snap) })
			},
			func(err error) {
				s.profile.Do(token, func() { s.failProfile(ident.ID, err) })
				s.profile.Release(token)
			},
		)
	})
}

func (s *Store) applyProfile(snap docstore.DocumentSnapshot) {
	groupID := ""
	if snap.Exists && snap.Document != nil {
		groupID = record.Profile(*snap.Document).GroupID
	}
	s.update(func(st *State) {
		st.GroupID = groupID
		st.ProfileResolving = false
		st.Err = nil
	})
}

func (s *Store) failProfile(identityID string, err error) {
	s.logger.Error("profile subscription failed", "identity", identityID, "error", err)
	if s.observer != nil {
		s.observer.SubscriptionFailed("profile")
	}
	s.update(func(st *State) {
		st.ProfileResolving = false
		st.Err = domain.Subscription("session.profile", "Could not load your profile.", err)
	})
}

func (s *Store) update(fn func(*State)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	fn(&s.state)
	fns := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		fns = append(fns, l)
	}
	s.mu.Unlock()

	st := s.State()
	for _, l := range fns {
		l(st)
	}
}
