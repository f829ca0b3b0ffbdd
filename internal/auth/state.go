package auth

import (
	"context"
	"sync"

	"github.com/vbonduro/fampantry/internal/domain"
)

// State is the signed-in identity of one device. Listeners see every change, starting
// with the identity current at registration time.
type State struct {
	provider Provider

	mu        sync.Mutex
	current   *domain.Identity
	listeners map[int]func(*domain.Identity)
	nextID    int

	// notifyMu keeps notifications in change order.
	notifyMu sync.Mutex
}

func NewState(provider Provider) *State {
	return &State{provider: provider, listeners: make(map[int]func(*domain.Identity))}
}

func (s *State) SignUp(ctx context.Context, email, password string) (domain.Identity, error) {
	id, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return domain.Identity{}, err
	}
	s.set(&id)
	return id, nil
}

func (s *State) SignIn(ctx context.Context, email, password string) (domain.Identity, error) {
	id, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return domain.Identity{}, err
	}
	s.set(&id)
	return id, nil
}

// Restore re-establishes a previously issued login for identityID.
func (s *State) Restore(ctx context.Context, identityID string) (domain.Identity, error) {
	const op = "auth.restore"
	id, err := s.provider.Lookup(ctx, identityID)
	if err != nil {
		return domain.Identity{}, domain.Auth(op, "Your session could not be restored.", err)
	}
	if id == nil {
		return domain.Identity{}, domain.Auth(op, "Your session has expired. Please sign in again.", nil)
	}
	s.set(id)
	return *id, nil
}

func (s *State) SignOut() {
	s.set(nil)
}

func (s *State) Current() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	id := *s.current
	return &id
}

// OnChange registers fn and immediately calls it with the current identity. The returned
// func unregisters it.
func (s *State) OnChange(fn func(*domain.Identity)) func() {
	s.notifyMu.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	fn(s.Current())
	s.notifyMu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *State) set(id *domain.Identity) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if id == nil && s.current == nil {
		s.mu.Unlock()
		return
	}
	s.current = id
	fns := make([]func(*domain.Identity), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(s.Current())
	}
}
