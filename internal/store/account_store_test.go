package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/fampantry/internal/db"
)

func TestAccountStoreCreateAndGet(t *testing.T) {
	s := NewAccountStore(openTestDB(t), db.DriverSQLite)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Create(ctx, &Account{ID: "u1", Email: "ann@example.com", PasswordHash: "h", CreatedAt: created}))

	byEmail, err := s.GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "u1", byEmail.ID)
	assert.Equal(t, "h", byEmail.PasswordHash)
	assert.True(t, created.Equal(byEmail.CreatedAt))

	byID, err := s.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", byID.Email)
}

func TestAccountStoreDuplicateEmail(t *testing.T) {
	s := NewAccountStore(openTestDB(t), db.DriverSQLite)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &Account{ID: "u1", Email: "ann@example.com", PasswordHash: "h"}))
	err := s.Create(ctx, &Account{ID: "u2", Email: "ann@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAccountStoreMissing(t *testing.T) {
	s := NewAccountStore(openTestDB(t), db.DriverSQLite)

	a, err := s.GetByEmail(context.Background(), "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, a)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT ? FROM t WHERE a = ?", newDialect(db.DriverSQLite).rebind("SELECT ? FROM t WHERE a = ?"))
	assert.Equal(t, "SELECT $1 FROM t WHERE a = $2", newDialect(db.DriverPostgres).rebind("SELECT ? FROM t WHERE a = ?"))
	assert.Equal(t, " FOR UPDATE", newDialect(db.DriverPostgres).forUpdate())
	assert.Empty(t, newDialect(db.DriverSQLite).forUpdate())
}
