package syncer

import (
	"log/slog"
	"slices"

	"github.com/vbonduro/fampantry/internal/docstore"
	"github.com/vbonduro/fampantry/internal/domain"
	"github.com/vbonduro/fampantry/internal/record"
)

type (
	Inventory = Collection[domain.InventoryItem]
	Groceries = Collection[domain.GroceryItem]
	Group     = Document[domain.Group]
)

func NewInventory(docs watcher, logger *slog.Logger, observer Observer) *Inventory {
	return NewCollection(docs, logger, observer, Options[domain.InventoryItem]{
		Name:        "inventory",
		Collection:  docstore.InventoryCollection,
		FilterField: "category",
		Map:         record.InventoryItem,
		Sort:        SortByExpiry,
	})
}

// NewGroceries keeps arrival order.
func NewGroceries(docs watcher, logger *slog.Logger, observer Observer) *Groceries {
	return NewCollection(docs, logger, observer, Options[domain.GroceryItem]{
		Name:        "groceries",
		Collection:  docstore.GroceryCollection,
		FilterField: "category",
		Map:         record.GroceryItem,
	})
}

func NewGroup(docs watcher, logger *slog.Logger, observer Observer) *Group {
	return NewDocument(docs, logger, observer, "group", docstore.GroupPath, record.Group)
}

// SortByExpiry orders items by ascending expiry date. Items without one go last; ties
// keep arrival order.
func SortByExpiry(items []domain.InventoryItem) {
	slices.SortStableFunc(items, func(a, b domain.InventoryItem) int {
		switch {
		case a.ExpiryDate.IsZero() && b.ExpiryDate.IsZero():
			return 0
		case a.ExpiryDate.IsZero():
			return 1
		case b.ExpiryDate.IsZero():
			return -1
		}
		return a.ExpiryDate.Compare(b.ExpiryDate)
	})
}
