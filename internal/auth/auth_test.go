package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vbonduro/fampantry/internal/db"
	"github.com/vbonduro/fampantry/internal/domain"
	"github.com/vbonduro/fampantry/internal/store"
)

func newTestProvider(t *testing.T) *PasswordProvider {
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	p := NewPasswordProvider(store.NewAccountStore(d, db.DriverSQLite))
	p.cost = bcrypt.MinCost
	return p
}

func TestSignUpAndSignIn(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	id, err := p.SignUp(ctx, " Ann@Example.com ", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, id.ID)
	assert.Equal(t, "ann@example.com", id.Email)

	again, err := p.SignIn(ctx, "ANN@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	found, err := p.Lookup(ctx, id.ID)
	require.NoError(t, err)
	assert.Equal(t, id, *found)
}

func TestSignUpRejectsShortPassword(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.SignUp(context.Background(), "ann@example.com", "12345")
	assert.ErrorIs(t, err, domain.ErrAuth)
	assert.Equal(t, "Password must be at least 6 characters.", domain.Message(err))
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.SignUp(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	_, err = p.SignUp(ctx, "ann@example.com", "secret2")
	assert.ErrorIs(t, err, domain.ErrAuth)
	assert.ErrorIs(t, err, store.ErrEmailTaken)
}

func TestSignInFailures(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	_, err := p.SignUp(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "ann@example.com", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrAuth)
	assert.Equal(t, "invalid email or password", domain.Message(err))

	_, err = p.SignIn(ctx, "bob@example.com", "secret1")
	assert.Equal(t, "invalid email or password", domain.Message(err))
}

func TestStateNotifiesListeners(t *testing.T) {
	s := NewState(newTestProvider(t))
	ctx := context.Background()

	var seen []*domain.Identity
	unsubscribe := s.OnChange(func(id *domain.Identity) { seen = append(seen, id) })

	require.Len(t, seen, 1)
	assert.Nil(t, seen[0])

	id, err := s.SignUp(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, id.ID, seen[1].ID)
	assert.Equal(t, id.ID, s.Current().ID)

	s.SignOut()
	require.Len(t, seen, 3)
	assert.Nil(t, seen[2])
	assert.Nil(t, s.Current())

	// signing out twice is not a change
	s.SignOut()
	assert.Len(t, seen, 3)

	unsubscribe()
	_, err = s.SignIn(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.Len(t, seen, 3)
}

func TestStateFailedSignInKeepsIdentity(t *testing.T) {
	s := NewState(newTestProvider(t))
	ctx := context.Background()

	_, err := s.SignUp(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	_, err = s.SignIn(ctx, "ann@example.com", "nope")
	assert.Error(t, err)
	assert.NotNil(t, s.Current())
}

func TestStateRestore(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	id, err := p.SignUp(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)

	s := NewState(p)
	restored, err := s.Restore(ctx, id.ID)
	require.NoError(t, err)
	assert.Equal(t, id, restored)

	_, err = NewState(p).Restore(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	token, issued, err := m.Issue(domain.Identity{ID: "u1", Email: "ann@example.com"})
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "ann@example.com", claims.Email)
	assert.NotEmpty(t, issued.ID)
	assert.Equal(t, issued.ID, claims.ID)
	assert.WithinDuration(t, issued.ExpiresAt.Time, claims.ExpiresAt.Time, time.Second)
}

func TestTokenRejections(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	token, _, err := m.Issue(domain.Identity{ID: "u1"})
	require.NoError(t, err)

	_, err = NewTokenManager("other-secret", time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenManager("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
