package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vbonduro/fampantry/internal/domain"
	"github.com/vbonduro/fampantry/internal/store"
)

const MinPasswordLength = 6

// Provider is the identity capability: it creates and verifies credentials.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (domain.Identity, error)
	SignIn(ctx context.Context, email, password string) (domain.Identity, error)
	// Lookup returns nil, nil for an unknown identity.
	Lookup(ctx context.Context, id string) (*domain.Identity, error)
}

// AccountStorage keeps the provider independent of the SQL layer.
type AccountStorage interface {
	Create(ctx context.Context, a *store.Account) error
	GetByEmail(ctx context.Context, email string) (*store.Account, error)
	GetByID(ctx context.Context, id string) (*store.Account, error)
}

// PasswordProvider authenticates with email and a bcrypt-hashed password.
type PasswordProvider struct {
	accounts AccountStorage
	cost     int
	now      func() time.Time
}

func NewPasswordProvider(accounts AccountStorage) *PasswordProvider {
	return &PasswordProvider{accounts: accounts, cost: bcrypt.DefaultCost, now: time.Now}
}

func (p *PasswordProvider) SignUp(ctx context.Context, email, password string) (domain.Identity, error) {
	const op = "auth.signUp"
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.Identity{}, domain.Auth(op, "Please enter a valid email address.", nil)
	}
	if len(password) < MinPasswordLength {
		return domain.Identity{}, domain.Auth(op, fmt.Sprintf("Password must be at least %d characters.", MinPasswordLength), nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return domain.Identity{}, domain.Auth(op, "Could not create the account.", fmt.Errorf("failed to hash password: %w", err))
	}

	account := &store.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    p.now(),
	}
	if err := p.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return domain.Identity{}, domain.Auth(op, "That email is already registered.", err)
		}
		return domain.Identity{}, domain.Auth(op, "Could not create the account.", err)
	}

	return domain.Identity{ID: account.ID, Email: account.Email}, nil
}

func (p *PasswordProvider) SignIn(ctx context.Context, email, password string) (domain.Identity, error) {
	const op = "auth.signIn"
	account, err := p.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return domain.Identity{}, domain.Auth(op, "Could not sign in. Please try again.", err)
	}
	if account == nil {
		return domain.Identity{}, domain.Auth(op, "invalid email or password", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return domain.Identity{}, domain.Auth(op, "invalid email or password", nil)
	}
	return domain.Identity{ID: account.ID, Email: account.Email}, nil
}

func (p *PasswordProvider) Lookup(ctx context.Context, id string) (*domain.Identity, error) {
	account, err := p.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}
	if account == nil {
		return nil, nil
	}
	return &domain.Identity{ID: account.ID, Email: account.Email}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
