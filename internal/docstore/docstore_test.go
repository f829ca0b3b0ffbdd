package docstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSub struct {
	mu        sync.Mutex
	cancelled int
}

func (c *countingSub) Cancel() {
	c.mu.Lock()
	c.cancelled++
	c.mu.Unlock()
}

func (c *countingSub) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "groups/g1", GroupPath("g1"))
	assert.Equal(t, "users/u1", ProfilePath("u1"))
	assert.Equal(t, "groups/g1/inventory", InventoryCollection("g1"))
	assert.Equal(t, "groups/g1/groceries", GroceryCollection("g1"))

	coll, id, err := Split("groups/g1/inventory/i1")
	require.NoError(t, err)
	assert.Equal(t, "groups/g1/inventory", coll)
	assert.Equal(t, "i1", id)

	_, _, err = Split("groups/g1/inventory")
	assert.Error(t, err)
	_, _, err = Split("groups//x/y")
	assert.Error(t, err)

	assert.True(t, IsCollection("groups/g1/inventory"))
	assert.False(t, IsCollection("groups/g1"))
}

func TestQueryMatches(t *testing.T) {
	q := Query{Collection: "groups/g1/inventory"}.Where("category", "Produce")

	assert.True(t, q.Matches(Data{"category": "Produce", "name": "Apples"}))
	assert.False(t, q.Matches(Data{"category": "Frozen"}))
	assert.False(t, q.Matches(Data{}))

	n := Query{}.Where("quantity", 2)
	assert.True(t, n.Matches(Data{"quantity": float64(2)}))
	assert.False(t, n.Matches(Data{"quantity": []any{2}}))
}

func TestWhereDoesNotAlias(t *testing.T) {
	base := Query{Collection: "c"}.Where("a", "1")
	x := base.Where("b", "2")
	y := base.Where("c", "3")

	assert.Len(t, base.Filters, 1)
	assert.Equal(t, "b", x.Filters[1].Field)
	assert.Equal(t, "c", y.Filters[1].Field)
}

func TestSubscriptionFuncRunsOnce(t *testing.T) {
	calls := 0
	sub := SubscriptionFunc(func() { calls++ })
	sub.Cancel()
	sub.Cancel()
	assert.Equal(t, 1, calls)
}

func TestSlotReplaceCancelsPrevious(t *testing.T) {
	var slot Slot
	first := &countingSub{}
	second := &countingSub{}

	var firstToken uint64
	slot.Replace(func(tok uint64) Subscription {
		firstToken = tok
		return first
	})
	assert.True(t, slot.Active())

	slot.Replace(func(uint64) Subscription { return second })

	assert.Equal(t, 1, first.count())
	assert.Equal(t, 0, second.count())
	assert.False(t, slot.Do(firstToken, func() { t.Fatal("stale delivery applied") }))

	slot.Clear()
	assert.Equal(t, 1, second.count())
	assert.False(t, slot.Active())
}

func TestSlotDeliversDuringStart(t *testing.T) {
	var slot Slot
	applied := false
	slot.Replace(func(tok uint64) Subscription {
		applied = slot.Do(tok, func() {})
		return &countingSub{}
	})
	assert.True(t, applied)
}

func TestSlotReleaseDuringStart(t *testing.T) {
	var slot Slot
	sub := &countingSub{}
	slot.Replace(func(tok uint64) Subscription {
		assert.True(t, slot.Release(tok))
		return sub
	})

	assert.False(t, slot.Active())
	assert.Equal(t, 1, sub.count())
}
