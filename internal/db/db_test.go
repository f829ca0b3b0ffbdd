package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenForTesting(t *testing.T) {
	db, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	var tableName string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='documents'").Scan(&tableName)
	require.NoError(t, err)
	assert.Equal(t, "documents", tableName)

	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='accounts'").Scan(&tableName)
	require.NoError(t, err)
	assert.Equal(t, "accounts", tableName)
}

func TestOpenForTestingIsolated(t *testing.T) {
	a, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	b, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, err = a.Exec("INSERT INTO accounts (id, email, password_hash, created_ns) VALUES ('u1', 'a@b.c', 'x', 1)")
	require.NoError(t, err)

	var n int
	require.NoError(t, b.QueryRow("SELECT COUNT(*) FROM accounts").Scan(&n))
	assert.Zero(t, n)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fampantry.db")

	first, err := Open(DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	var version int
	require.NoError(t, second.QueryRow("SELECT version FROM schema_migrations").Scan(&version))
	assert.Equal(t, 2, version)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "whatever")
	assert.ErrorContains(t, err, "unsupported database driver")
}
