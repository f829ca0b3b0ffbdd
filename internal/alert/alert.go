// Package alert flags low-stock and soon-expiring inventory.
package alert

import (
	"time"

	"github.com/vbonduro/fampantry/internal/domain"
)

type Reason string

const (
	ReasonLowStock     Reason = "lowStock"
	ReasonExpiringSoon Reason = "expiringSoon"
)

type Alert struct {
	Item    domain.InventoryItem `json:"item"`
	Reasons []Reason             `json:"reasons"`
}

// Evaluate returns, in input order, the items with quantity <= threshold or an expiry
// date no later than domain.ExpiryWindowDays days after now's calendar day.
func Evaluate(items []domain.InventoryItem, threshold int, now time.Time) []Alert {
	out := []Alert{}
	for _, it := range items {
		var reasons []Reason
		if IsLowStock(it, threshold) {
			reasons = append(reasons, ReasonLowStock)
		}
		if IsExpiringSoon(it, now) {
			reasons = append(reasons, ReasonExpiringSoon)
		}
		if len(reasons) > 0 {
			out = append(out, Alert{Item: it, Reasons: reasons})
		}
	}
	return out
}

func IsLowStock(it domain.InventoryItem, threshold int) bool {
	return it.Quantity <= threshold
}

// IsExpiringSoon is false for items without an expiry date. Expiry dates are compared
// as calendar days: the expiry's day in its own zone against today's day in now's zone.
func IsExpiringSoon(it domain.InventoryItem, now time.Time) bool {
	if it.ExpiryDate.IsZero() {
		return false
	}
	cutoff := calendarDay(now).AddDate(0, 0, domain.ExpiryWindowDays)
	return !calendarDay(it.ExpiryDate).After(cutoff)
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Threshold is the group's low-stock threshold, or the default without a group.
func Threshold(g *domain.Group) int {
	if g == nil {
		return domain.DefaultLowStockThreshold
	}
	return g.LowStockThreshold
}
