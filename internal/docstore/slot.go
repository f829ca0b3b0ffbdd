package docstore

import "sync"

// Slot owns at most one live subscription for a logical stream. Each Replace hands the
// new subscription a token; deliveries gated through Do with a stale token are dropped,
// so nothing from a superseded subscription is applied after the switch.
//
// Callers must not hold locks that fn (passed to Do) also takes while calling Replace
// or Clear.
type Slot struct {
	mu    sync.Mutex
	token uint64
	ended uint64
	sub   Subscription
}

// Replace cancels the current subscription, if any, and installs the one start returns.
func (s *Slot) Replace(start func(token uint64) Subscription) {
	s.mu.Lock()
	s.token++
	tok := s.token
	old := s.sub
	s.sub = nil
	s.mu.Unlock()

	if old != nil {
		old.Cancel()
	}

	sub := start(tok)
	if sub == nil {
		return
	}

	s.mu.Lock()
	if s.token == tok && s.ended != tok {
		s.sub = sub
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	// Superseded or ended while starting.
	sub.Cancel()
}

// Clear cancels the current subscription and invalidates its token.
func (s *Slot) Clear() {
	s.mu.Lock()
	s.token++
	old := s.sub
	s.sub = nil
	s.mu.Unlock()

	if old != nil {
		old.Cancel()
	}
}

// Release drops the subscription for token without cancelling it, e.g. after the store
// ended it with an error. It reports whether token was current.
func (s *Slot) Release(token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != token {
		return false
	}
	s.ended = token
	s.sub = nil
	return true
}

// Do runs fn if token is still current. Deliveries through the same slot never overlap.
func (s *Slot) Do(token uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != token {
		return false
	}
	fn()
	return true
}

// Active reports whether a subscription is installed.
func (s *Slot) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}
