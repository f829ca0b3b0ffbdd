package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vbonduro/fampantry/internal/docstore"
	"github.com/vbonduro/fampantry/internal/domain"
)

func TestInventoryDefaults(t *testing.T) {
	item := InventoryItem(docstore.Document{ID: "i1", Data: docstore.Data{"name": "Rice"}})

	assert.Equal(t, "i1", item.ID)
	assert.Equal(t, "Rice", item.Name)
	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, domain.CategoryOther, item.Category)
	assert.True(t, item.ExpiryDate.IsZero())
}

func TestNullFieldsUseDefaults(t *testing.T) {
	item := GroceryItem(docstore.Document{Data: docstore.Data{"quantity": nil, "category": nil}})

	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, domain.CategoryOther, item.Category)
	assert.False(t, item.Completed)
}

func TestUnknownCategoryIsOther(t *testing.T) {
	item := InventoryItem(docstore.Document{Data: docstore.Data{"category": "Toys"}})
	assert.Equal(t, domain.CategoryOther, item.Category)
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := docstore.Data{"name": "Rice"}
	out := Normalize(KindInventory, in)

	assert.Len(t, in, 1)
	assert.Equal(t, 1, out["quantity"])
}

func TestQuantityCoercion(t *testing.T) {
	assert.Equal(t, 3, toInt(float64(3), 1))
	assert.Equal(t, 4, toInt(json.Number("4"), 1))
	assert.Equal(t, 7, toInt(" 7 ", 1))
	assert.Equal(t, 1, toInt("lots", 1))
	assert.Equal(t, 1, toInt([]any{}, 1))
}

func TestTimestampCoercion(t *testing.T) {
	want := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	assert.True(t, want.Equal(toTime(want)))
	assert.True(t, want.Equal(toTime("2024-05-10")))
	assert.True(t, want.Equal(toTime("2024-05-10T00:00:00Z")))
	assert.True(t, want.Equal(toTime(float64(want.UnixMilli()))))
	assert.True(t, want.Equal(toTime(map[string]any{"seconds": float64(want.Unix()), "nanoseconds": float64(0)})))
	assert.True(t, toTime("not a date").IsZero())
	assert.True(t, toTime(nil).IsZero())
}

func TestGroupDefaults(t *testing.T) {
	g := Group(docstore.Document{ID: "g1", Data: docstore.Data{"name": "Smiths", "members": []any{"u1", "u2"}}})

	assert.Equal(t, "g1", g.ID)
	assert.Equal(t, []string{"u1", "u2"}, g.Members)
	assert.Equal(t, domain.DefaultLowStockThreshold, g.LowStockThreshold)

	g = Group(docstore.Document{ID: "g2", Data: docstore.Data{"lowStockThreshold": float64(0)}})
	assert.Equal(t, 0, g.LowStockThreshold)
	assert.Empty(t, g.Members)
}

func TestProfile(t *testing.T) {
	p := Profile(docstore.Document{ID: "u1", Data: docstore.Data{"email": "a@b.c"}})
	assert.Equal(t, "u1", p.IdentityID)
	assert.Empty(t, p.GroupID)

	p = Profile(docstore.Document{ID: "u1", Data: docstore.Data{"groupId": "g1"}})
	assert.Equal(t, "g1", p.GroupID)
}

func TestCreatedAtFallsBackToDocumentTime(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	item := GroceryItem(docstore.Document{CreateTime: created, Data: docstore.Data{}})
	assert.True(t, created.Equal(item.CreatedAt))
}

func TestEncodeInventoryItemRoundTrip(t *testing.T) {
	in := domain.InventoryItem{
		Name:       "Milk",
		Quantity:   2,
		Category:   "Dairy & Eggs",
		ExpiryDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		AddedBy:    "a@b.c",
		CreatedAt:  time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}

	raw, err := json.Marshal(EncodeInventoryItem(in))
	assert.NoError(t, err)
	var data docstore.Data
	assert.NoError(t, json.Unmarshal(raw, &data))

	out := InventoryItem(docstore.Document{ID: "i1", Data: data})
	in.ID = "i1"
	assert.Equal(t, in, out)
}

func TestEncodeProfileOmitsEmptyGroup(t *testing.T) {
	d := EncodeProfile(domain.Profile{IdentityID: "u1", Email: "a@b.c"})
	assert.NotContains(t, d, "groupId")
	assert.Nil(t, d["createdAt"])
}
