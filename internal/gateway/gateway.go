// Package gateway issues writes against group-scoped collections. It never touches local
// state: the synchronizers' next snapshot reflects every accepted mutation.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/vbonduro/fampantry/internal/docstore"
	"github.com/vbonduro/fampantry/internal/domain"
	"github.com/vbonduro/fampantry/internal/record"
	"github.com/vbonduro/fampantry/internal/session"
)

// documentRepository is the subset of docstore.Store the gateway requires.
type documentRepository interface {
	Add(ctx context.Context, collection string, data docstore.Data) (string, error)
	Update(ctx context.Context, path string, data docstore.Data) error
	Delete(ctx context.Context, path string) error
}

// Scope provides the identity and group mutations run under.
type Scope interface {
	State() session.State
}

// Observer records mutation outcomes, e.g. for metrics.
type Observer interface {
	MutationCompleted(op string, err error)
}

// NewInventoryItem is the input to AddInventoryItem and ReplaceInventoryItem.
type NewInventoryItem struct {
	Name       string
	Quantity   int
	Category   string
	ExpiryDate time.Time
}

type NewGroceryItem struct {
	Name     string
	Quantity int
	Category string
}

type Gateway struct {
	docs     documentRepository
	scope    Scope
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

func New(docs documentRepository, scope Scope, observer Observer, logger *slog.Logger) *Gateway {
	return &Gateway{docs: docs, scope: scope, observer: observer, logger: logger, now: time.Now}
}

type target struct {
	identity domain.Identity
	groupID  string
}

func (g *Gateway) target(op string) (target, error) {
	st := g.scope.State()
	if st.Identity == nil {
		return target{}, domain.Precondition(op, "You need to sign in first.")
	}
	if st.GroupID == "" {
		return target{}, domain.Precondition(op, "Join or create a family first.")
	}
	return target{identity: *st.Identity, groupID: st.GroupID}, nil
}

func (g *Gateway) AddInventoryItem(ctx context.Context, in NewInventoryItem) (string, error) {
	const op = "gateway.addInventoryItem"
	item, err := validateInventory(op, in, 1)
	if err != nil {
		return "", err
	}
	t, err := g.target(op)
	if err != nil {
		return "", err
	}
	item.AddedBy = t.identity.DisplayName()
	item.CreatedAt = g.now()

	id, err := g.docs.Add(ctx, docstore.InventoryCollection(t.groupID), record.EncodeInventoryItem(item))
	return id, g.done(op, "Could not add the item.", err)
}

func (g *Gateway) AddGroceryItem(ctx context.Context, in NewGroceryItem) (string, error) {
	const op = "gateway.addGroceryItem"
	item, err := validateGrocery(op, in)
	if err != nil {
		return "", err
	}
	t, err := g.target(op)
	if err != nil {
		return "", err
	}
	item.AddedBy = t.identity.DisplayName()
	item.CreatedAt = g.now()

	id, err := g.docs.Add(ctx, docstore.GroceryCollection(t.groupID), record.EncodeGroceryItem(item))
	return id, g.done(op, "Could not add the item.", err)
}

func (g *Gateway) DeleteInventoryItem(ctx context.Context, itemID string) error {
	const op = "gateway.deleteInventoryItem"
	t, err := g.target(op)
	if err != nil {
		return err
	}
	path, err := itemPath(op, docstore.InventoryCollection(t.groupID), itemID)
	if err != nil {
		return err
	}
	return g.done(op, "Could not delete the item.", g.docs.Delete(ctx, path))
}

func (g *Gateway) DeleteGroceryItem(ctx context.Context, itemID string) error {
	const op = "gateway.deleteGroceryItem"
	t, err := g.target(op)
	if err != nil {
		return err
	}
	path, err := itemPath(op, docstore.GroceryCollection(t.groupID), itemID)
	if err != nil {
		return err
	}
	return g.done(op, "Could not delete the item.", g.docs.Delete(ctx, path))
}

// UpdateQuantity adds delta to the item's quantity as last seen in a snapshot. A result
// below zero is rejected without writing.
func (g *Gateway) UpdateQuantity(ctx context.Context, item domain.InventoryItem, delta int) error {
	const op = "gateway.updateQuantity"
	next := item.Quantity + delta
	if next < 0 {
		return domain.Validation(op, "Quantity cannot go below zero.")
	}
	t, err := g.target(op)
	if err != nil {
		return err
	}
	path, err := itemPath(op, docstore.InventoryCollection(t.groupID), item.ID)
	if err != nil {
		return err
	}
	return g.done(op, "Could not update the quantity.", g.docs.Update(ctx, path, docstore.Data{"quantity": next}))
}

// ReplaceInventoryItem overwrites the editable fields of an item.
func (g *Gateway) ReplaceInventoryItem(ctx context.Context, itemID string, in NewInventoryItem) error {
	const op = "gateway.replaceInventoryItem"
	// An edited item may keep the zero quantity UpdateQuantity can leave it at.
	item, err := validateInventory(op, in, 0)
	if err != nil {
		return err
	}
	t, err := g.target(op)
	if err != nil {
		return err
	}
	path, err := itemPath(op, docstore.InventoryCollection(t.groupID), itemID)
	if err != nil {
		return err
	}
	return g.done(op, "Could not save the item.", g.docs.Update(ctx, path, docstore.Data{
		"name":       item.Name,
		"quantity":   item.Quantity,
		"category":   item.Category,
		"expiryDate": record.EncodeTime(item.ExpiryDate),
	}))
}

// ToggleCompleted flips the completed flag the item had in the caller's snapshot.
func (g *Gateway) ToggleCompleted(ctx context.Context, item domain.GroceryItem) error {
	const op = "gateway.toggleCompleted"
	t, err := g.target(op)
	if err != nil {
		return err
	}
	path, err := itemPath(op, docstore.GroceryCollection(t.groupID), item.ID)
	if err != nil {
		return err
	}
	return g.done(op, "Could not update the item.", g.docs.Update(ctx, path, docstore.Data{"completed": !item.Completed}))
}

// AddToGroceryFromInventory puts a copy of an inventory item on the grocery list.
func (g *Gateway) AddToGroceryFromInventory(ctx context.Context, item domain.InventoryItem) (string, error) {
	quantity := item.Quantity
	if quantity < 1 {
		quantity = 1
	}
	return g.AddGroceryItem(ctx, NewGroceryItem{Name: item.Name, Quantity: quantity, Category: item.Category})
}

// SetLowStockThreshold updates the group-wide threshold.
func (g *Gateway) SetLowStockThreshold(ctx context.Context, threshold int) error {
	const op = "gateway.setLowStockThreshold"
	if threshold < 0 {
		return domain.Validation(op, "Please enter a valid non-negative number.")
	}
	t, err := g.target(op)
	if err != nil {
		return err
	}
	return g.done(op, "Could not save the threshold.", g.docs.Update(ctx, docstore.GroupPath(t.groupID), docstore.Data{"lowStockThreshold": threshold}))
}

// done maps a store failure into a MutationError and records the outcome.
func (g *Gateway) done(op, msg string, err error) error {
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			msg = "That item no longer exists."
		}
		err = domain.Mutation(op, msg, err)
		g.logger.Warn("mutation failed", "op", op, "error", err)
	}
	if g.observer != nil {
		g.observer.MutationCompleted(op, err)
	}
	return err
}

func itemPath(op, collection, itemID string) (string, error) {
	if strings.TrimSpace(itemID) == "" || strings.Contains(itemID, "/") {
		return "", domain.Validation(op, "Unknown item.")
	}
	return docstore.Join(collection, itemID), nil
}

func validateInventory(op string, in NewInventoryItem, minQuantity int) (domain.InventoryItem, error) {
	name, category, err := validateCommon(op, in.Name, in.Quantity, minQuantity, in.Category)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	if in.ExpiryDate.IsZero() {
		return domain.InventoryItem{}, domain.Validation(op, "Please enter an expiry date.")
	}
	return domain.InventoryItem{Name: name, Quantity: in.Quantity, Category: category, ExpiryDate: in.ExpiryDate}, nil
}

func validateGrocery(op string, in NewGroceryItem) (domain.GroceryItem, error) {
	name, category, err := validateCommon(op, in.Name, in.Quantity, 1, in.Category)
	if err != nil {
		return domain.GroceryItem{}, err
	}
	return domain.GroceryItem{Name: name, Quantity: in.Quantity, Category: category}, nil
}

func validateCommon(op, name string, quantity, minQuantity int, category string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", domain.Validation(op, "Please enter an item name.")
	}
	if quantity < minQuantity {
		return "", "", domain.Validation(op, "Please enter a valid quantity.")
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = domain.CategoryOther
	}
	if !domain.IsCategory(category) {
		return "", "", domain.Validation(op, "Please choose a valid category.")
	}
	return name, category, nil
}
