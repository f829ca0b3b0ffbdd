package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vbonduro/fampantry/internal/domain"
)

var now = time.Date(2024, 6, 10, 15, 30, 0, 0, time.UTC)

func today(days int) time.Time {
	return time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
}

func TestLowStockBoundary(t *testing.T) {
	assert.True(t, IsLowStock(domain.InventoryItem{Quantity: 5}, 5))
	assert.False(t, IsLowStock(domain.InventoryItem{Quantity: 6}, 5))
	assert.True(t, IsLowStock(domain.InventoryItem{Quantity: 0}, 0))
}

func TestExpiryBoundary(t *testing.T) {
	assert.True(t, IsExpiringSoon(domain.InventoryItem{ExpiryDate: today(7)}, now))
	assert.False(t, IsExpiringSoon(domain.InventoryItem{ExpiryDate: today(8)}, now))
	assert.True(t, IsExpiringSoon(domain.InventoryItem{ExpiryDate: today(-3)}, now))
	assert.False(t, IsExpiringSoon(domain.InventoryItem{}, now))
}

func TestExpiryComparesCalendarDaysAcrossZones(t *testing.T) {
	singapore := time.FixedZone("SGT", 8*60*60)
	morning := time.Date(2026, 10, 14, 10, 0, 0, 0, singapore)

	// Date-only expiries are parsed as UTC midnight.
	day := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			t.Fatal(err)
		}
		return d
	}
	assert.True(t, IsExpiringSoon(domain.InventoryItem{ExpiryDate: day("2026-10-21")}, morning))
	assert.False(t, IsExpiringSoon(domain.InventoryItem{ExpiryDate: day("2026-10-22")}, morning))
	assert.True(t, IsExpiringSoon(domain.InventoryItem{ExpiryDate: day("2026-10-14")}, morning))

	newYork := time.FixedZone("EST", -5*60*60)
	evening := time.Date(2026, 10, 14, 22, 0, 0, 0, newYork)
	assert.True(t, IsExpiringSoon(domain.InventoryItem{ExpiryDate: day("2026-10-21")}, evening))
	assert.False(t, IsExpiringSoon(domain.InventoryItem{ExpiryDate: day("2026-10-22")}, evening))
}

func TestEvaluate(t *testing.T) {
	items := []domain.InventoryItem{
		{ID: "a", Quantity: 10, ExpiryDate: today(30)},
		{ID: "b", Quantity: 2, ExpiryDate: today(30)},
		{ID: "c", Quantity: 10, ExpiryDate: today(1)},
		{ID: "d", Quantity: 1, ExpiryDate: today(0)},
	}

	got := Evaluate(items, 5, now)
	assert.Len(t, got, 3)
	assert.Equal(t, "b", got[0].Item.ID)
	assert.Equal(t, []Reason{ReasonLowStock}, got[0].Reasons)
	assert.Equal(t, []Reason{ReasonExpiringSoon}, got[1].Reasons)
	assert.Equal(t, []Reason{ReasonLowStock, ReasonExpiringSoon}, got[2].Reasons)

	assert.NotNil(t, Evaluate(nil, 5, now))
}

func TestEvaluateIsMonotonicInThreshold(t *testing.T) {
	var items []domain.InventoryItem
	for q := 0; q <= 12; q++ {
		items = append(items, domain.InventoryItem{Quantity: q, ExpiryDate: today(q * 2)})
	}

	prev := len(Evaluate(items, 12, now))
	for th := 11; th >= 0; th-- {
		n := len(Evaluate(items, th, now))
		assert.LessOrEqual(t, n, prev, "threshold %d", th)
		prev = n
	}
}

func TestThreshold(t *testing.T) {
	assert.Equal(t, domain.DefaultLowStockThreshold, Threshold(nil))
	assert.Equal(t, 2, Threshold(&domain.Group{LowStockThreshold: 2}))
}
