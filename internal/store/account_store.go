package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrEmailTaken = errors.New("email already registered")

// Account is a password credential owned by the identity provider.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type AccountStore struct {
	db      *sql.DB
	dialect dialect
}

func NewAccountStore(db *sql.DB, driver string) *AccountStore {
	return &AccountStore{db: db, dialect: newDialect(driver)}
}

func (s *AccountStore) Create(ctx context.Context, a *Account) error {
	existing, err := s.GetByEmail(ctx, a.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrEmailTaken
	}

	_, err = s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO accounts (id, email, password_hash, created_ns) VALUES (?, ?, ?, ?)
	`), a.ID, a.Email, a.PasswordHash, a.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return s.getBy(ctx, "email", email)
}

func (s *AccountStore) GetByID(ctx context.Context, id string) (*Account, error) {
	return s.getBy(ctx, "id", id)
}

func (s *AccountStore) getBy(ctx context.Context, column, value string) (*Account, error) {
	a := &Account{}
	var createdNS int64
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT id, email, password_hash, created_ns FROM accounts WHERE `+column+` = ?
	`), value).Scan(&a.ID, &a.Email, &a.PasswordHash, &createdNS)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	a.CreatedAt = time.Unix(0, createdNS).UTC()
	return a, nil
}
