// Package onboarding creates and joins groups and binds identities to them.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/fampantry/internal/docstore"
	"github.com/vbonduro/fampantry/internal/domain"
	"github.com/vbonduro/fampantry/internal/record"
)

// documentRepository is the subset of docstore.Store the resolver requires.
type documentRepository interface {
	Get(ctx context.Context, path string) (*docstore.Document, error)
	Set(ctx context.Context, path string, data docstore.Data) error
	Merge(ctx context.Context, path string, data docstore.Data) error
	Update(ctx context.Context, path string, data docstore.Data) error
}

// Member is a group member as shown in the family hub.
type Member struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

type Resolver struct {
	docs   documentRepository
	newID  func() string
	now    func() time.Time
	logger *slog.Logger
}

func NewResolver(docs documentRepository, logger *slog.Logger) *Resolver {
	return &Resolver{docs: docs, newID: uuid.NewString, now: time.Now, logger: logger}
}

// CreateProfile writes the profile record of a newly signed-up identity. It never clears
// an existing group binding.
func (r *Resolver) CreateProfile(ctx context.Context, id domain.Identity) error {
	const op = "onboarding.createProfile"
	if id.ID == "" {
		return domain.Precondition(op, "You need to sign in first.")
	}
	p := record.EncodeProfile(domain.Profile{IdentityID: id.ID, Email: id.Email, CreatedAt: r.now()})
	if err := r.docs.Merge(ctx, docstore.ProfilePath(id.ID), p); err != nil {
		return domain.Mutation(op, "Could not save your profile.", err)
	}
	return nil
}

// CreateGroup creates a group with id as sole member and admin, then binds id to it.
// It returns the new group id, which is also the join code.
func (r *Resolver) CreateGroup(ctx context.Context, id domain.Identity, name string) (string, error) {
	const op = "onboarding.createGroup"
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.Validation(op, "Please enter a family name.")
	}
	if id.ID == "" {
		return "", domain.Precondition(op, "You need to sign in first.")
	}

	groupID := r.newID()
	g := domain.Group{
		ID:                groupID,
		Name:              name,
		Members:           []string{id.ID},
		AdminID:           id.ID,
		CreatedAt:         r.now(),
		LowStockThreshold: domain.DefaultLowStockThreshold,
	}
	if err := r.docs.Set(ctx, docstore.GroupPath(groupID), record.EncodeGroup(g)); err != nil {
		return "", domain.Mutation(op, "Could not create the family.", err)
	}
	r.logger.Info("group created", "group", groupID, "identity", id.ID)

	if err := r.bind(ctx, op, id, groupID); err != nil {
		return "", domain.Mutation(op,
			fmt.Sprintf("The family was created but your profile was not updated. Join with code %s to finish.", groupID),
			err)
	}
	return groupID, nil
}

// JoinGroup adds id to the group whose id is code and binds id to it. Joining a group
// twice leaves its member set unchanged.
func (r *Resolver) JoinGroup(ctx context.Context, id domain.Identity, code string) (*domain.Group, error) {
	const op = "onboarding.joinGroup"
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.Validation(op, "Please enter a family code.")
	}
	if id.ID == "" {
		return nil, domain.Precondition(op, "You need to sign in first.")
	}
	if strings.Contains(code, "/") {
		return nil, domain.NotFound(op, "Invalid family code")
	}

	path := docstore.GroupPath(code)
	doc, err := r.docs.Get(ctx, path)
	if err != nil {
		return nil, domain.Mutation(op, "Could not look up the family.", err)
	}
	if doc == nil {
		return nil, domain.NotFound(op, "Invalid family code")
	}

	if err := r.docs.Update(ctx, path, docstore.Data{"members": docstore.ArrayUnion{id.ID}}); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, domain.NotFound(op, "Invalid family code")
		}
		return nil, domain.Mutation(op, "Could not join the family.", err)
	}
	r.logger.Info("group joined", "group", code, "identity", id.ID)

	if err := r.bind(ctx, op, id, code); err != nil {
		return nil, domain.Mutation(op, "You joined the family but your profile was not updated. Please try again.", err)
	}

	g := record.Group(*doc)
	if !g.HasMember(id.ID) {
		g.Members = append(g.Members, id.ID)
	}
	return &g, nil
}

// bind points the profile of id at groupID. It runs only after the group write succeeded.
func (r *Resolver) bind(ctx context.Context, op string, id domain.Identity, groupID string) error {
	err := r.docs.Merge(ctx, docstore.ProfilePath(id.ID), docstore.Data{
		"identityId": id.ID,
		"email":      id.Email,
		"groupId":    groupID,
	})
	if err != nil {
		// The group already lists id; retrying join repairs the profile.
		r.logger.Error("profile update failed after group write", "op", op, "group", groupID, "identity", id.ID, "error", err)
		return err
	}
	return nil
}

// Group returns nil, nil when the group does not exist.
func (r *Resolver) Group(ctx context.Context, groupID string) (*domain.Group, error) {
	if groupID == "" || strings.Contains(groupID, "/") {
		return nil, nil
	}
	doc, err := r.docs.Get(ctx, docstore.GroupPath(groupID))
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	g := record.Group(*doc)
	return &g, nil
}

// Members lists the group's members with the email from each member's profile.
func (r *Resolver) Members(ctx context.Context, groupID string) ([]Member, error) {
	const op = "onboarding.members"
	g, err := r.Group(ctx, groupID)
	if err != nil {
		return nil, domain.Mutation(op, "Could not load the family.", err)
	}
	if g == nil {
		return nil, domain.NotFound(op, "Family not found")
	}

	members := make([]Member, 0, len(g.Members))
	for _, uid := range g.Members {
		m := Member{ID: uid, IsAdmin: uid == g.AdminID}
		doc, err := r.docs.Get(ctx, docstore.ProfilePath(uid))
		if err != nil {
			return nil, domain.Mutation(op, "Could not load family members.", err)
		}
		if doc != nil {
			m.Email = record.Profile(*doc).Email
		}
		members = append(members, m)
	}
	return members, nil
}
