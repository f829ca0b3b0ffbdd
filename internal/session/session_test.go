package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/fampantry/internal/db"
	"github.com/vbonduro/fampantry/internal/docstore"
	"github.com/vbonduro/fampantry/internal/domain"
	"github.com/vbonduro/fampantry/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSource struct {
	mu  sync.Mutex
	fns []func(*domain.Identity)
	cur *domain.Identity
}

func (f *fakeSource) OnChange(fn func(*domain.Identity)) func() {
	f.mu.Lock()
	f.fns = append(f.fns, fn)
	cur := f.cur
	f.mu.Unlock()
	fn(cur)
	return func() {
		f.mu.Lock()
		f.fns = nil
		f.mu.Unlock()
	}
}

func (f *fakeSource) emit(id *domain.Identity) {
	f.mu.Lock()
	f.cur = id
	fns := append([]func(*domain.Identity){}, f.fns...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

// countingWatcher counts live document subscriptions.
type countingWatcher struct {
	inner profileWatcher
	mu    sync.Mutex
	live  int
	total int
}

func (c *countingWatcher) WatchDocument(path string, onNext func(docstore.DocumentSnapshot), onErr func(error)) docstore.Subscription {
	c.mu.Lock()
	c.live++
	c.total++
	c.mu.Unlock()
	sub := c.inner.WatchDocument(path, onNext, onErr)
	return docstore.SubscriptionFunc(func() {
		sub.Cancel()
		c.mu.Lock()
		c.live--
		c.mu.Unlock()
	})
}

func (c *countingWatcher) counts() (live, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live, c.total
}

type failingWatcher struct{}

func (failingWatcher) WatchDocument(_ string, _ func(docstore.DocumentSnapshot), onErr func(error)) docstore.Subscription {
	onErr(errors.New("permission denied"))
	return docstore.SubscriptionFunc(func() {})
}

type observerStub struct{ failures []string }

func (o *observerStub) SubscriptionFailed(list string) { o.failures = append(o.failures, list) }

func newDocs(t *testing.T) *store.DocumentStore {
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return store.NewDocumentStore(d, db.DriverSQLite, discard)
}

func TestInitialStateIsResolving(t *testing.T) {
	s := New(newDocs(t), discard, nil)
	st := s.State()
	assert.True(t, st.AuthResolving)
	assert.True(t, st.ProfileResolving)
	assert.False(t, st.Ready())
}

func TestSignedOutStartIsReady(t *testing.T) {
	s := New(newDocs(t), discard, nil)
	s.Init(&fakeSource{})

	st := s.State()
	assert.True(t, st.Ready())
	assert.Nil(t, st.Identity)
	assert.Empty(t, st.GroupID)
}

func TestProfileDrivesGroupID(t *testing.T) {
	docs := newDocs(t)
	ctx := context.Background()
	require.NoError(t, docs.Set(ctx, "users/u1", docstore.Data{"identityId": "u1", "email": "ann@example.com"}))

	src := &fakeSource{}
	s := New(docs, discard, nil)
	s.Init(src)
	t.Cleanup(s.Teardown)

	src.emit(&domain.Identity{ID: "u1", Email: "ann@example.com"})
	st := s.State()
	assert.True(t, st.Ready())
	assert.Equal(t, "u1", st.Identity.ID)
	assert.Empty(t, st.GroupID)

	require.NoError(t, docs.Merge(ctx, "users/u1", docstore.Data{"groupId": "g1"}))
	assert.Equal(t, "g1", s.State().GroupID)
}

func TestMissingProfileResolvesWithoutGroup(t *testing.T) {
	src := &fakeSource{}
	s := New(newDocs(t), discard, nil)
	s.Init(src)
	t.Cleanup(s.Teardown)

	src.emit(&domain.Identity{ID: "nobody"})
	st := s.State()
	assert.False(t, st.ProfileResolving)
	assert.Empty(t, st.GroupID)
}

func TestAtMostOneProfileSubscription(t *testing.T) {
	docs := newDocs(t)
	ctx := context.Background()
	require.NoError(t, docs.Set(ctx, "users/u1", docstore.Data{"groupId": "g1"}))
	require.NoError(t, docs.Set(ctx, "users/u2", docstore.Data{"groupId": "g2"}))

	w := &countingWatcher{inner: docs}
	src := &fakeSource{}
	s := New(w, discard, nil)
	s.Init(src)

	src.emit(&domain.Identity{ID: "u1"})
	src.emit(&domain.Identity{ID: "u2"})
	live, total := w.counts()
	assert.Equal(t, 1, live)
	assert.Equal(t, 2, total)
	assert.Equal(t, "g2", s.State().GroupID)

	// a write to the superseded profile is not observed
	require.NoError(t, docs.Merge(ctx, "users/u1", docstore.Data{"groupId": "g9"}))
	assert.Equal(t, "g2", s.State().GroupID)

	src.emit(nil)
	live, _ = w.counts()
	assert.Zero(t, live)
	st := s.State()
	assert.Nil(t, st.Identity)
	assert.Empty(t, st.GroupID)
	assert.False(t, st.ProfileResolving)
}

func TestTeardownCancelsSubscription(t *testing.T) {
	w := &countingWatcher{inner: newDocs(t)}
	src := &fakeSource{}
	s := New(w, discard, nil)
	s.Init(src)
	src.emit(&domain.Identity{ID: "u1"})

	s.Teardown()
	live, _ := w.counts()
	assert.Zero(t, live)

	// no longer following identity changes
	src.emit(&domain.Identity{ID: "u2"})
	_, total := w.counts()
	assert.Equal(t, 1, total)
}

func TestProfileErrorIsNotLeftLoading(t *testing.T) {
	obs := &observerStub{}
	src := &fakeSource{}
	s := New(failingWatcher{}, discard, obs)
	s.Init(src)

	src.emit(&domain.Identity{ID: "u1"})
	st := s.State()
	assert.False(t, st.ProfileResolving)
	assert.Empty(t, st.GroupID)
	assert.ErrorIs(t, st.Err, domain.ErrSubscription)
	assert.Equal(t, []string{"profile"}, obs.failures)
}

func TestProfileErrorKeepsGroup(t *testing.T) {
	docs := newDocs(t)
	require.NoError(t, docs.Set(context.Background(), "users/u1", docstore.Data{"groupId": "g1"}))
	src := &fakeSource{}
	s := New(docs, discard, nil)
	s.Init(src)
	src.emit(&domain.Identity{ID: "u1"})
	require.Equal(t, "g1", s.State().GroupID)

	docs.Close()

	st := s.State()
	assert.Equal(t, "g1", st.GroupID)
	assert.False(t, st.ProfileResolving)
	assert.Error(t, st.Err)
}

func TestListenersSeeOrderedStates(t *testing.T) {
	docs := newDocs(t)
	require.NoError(t, docs.Set(context.Background(), "users/u1", docstore.Data{"groupId": "g1"}))
	src := &fakeSource{}
	s := New(docs, discard, nil)

	var states []State
	s.OnChange(func(st State) { states = append(states, st) })
	s.Init(src)
	src.emit(&domain.Identity{ID: "u1"})

	require.GreaterOrEqual(t, len(states), 3)
	last := states[len(states)-1]
	assert.True(t, last.Ready())
	assert.Equal(t, "g1", last.GroupID)

	// the first ready state with an identity already has the group
	for _, st := range states {
		if st.Identity != nil && st.Ready() {
			assert.Equal(t, "g1", st.GroupID)
		}
	}
}
