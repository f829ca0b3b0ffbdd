package domain

import (
	"slices"
	"time"
)

// DefaultLowStockThreshold applies when a group has never configured one.
const DefaultLowStockThreshold = 5

// ExpiryWindowDays is how many days ahead of today an expiry date counts as "expiring soon".
const ExpiryWindowDays = 7

const (
	// CategoryAll is the filter value that disables category filtering.
	CategoryAll   = "All"
	CategoryOther = "Other"
)

// Categories is the fixed set of item categories, in display order.
var Categories = []string{
	"Dairy & Eggs",
	"Produce",
	"Meat & Seafood",
	"Pantry",
	"Frozen",
	"Beverages",
	"Snacks",
	"Household",
	"Personal Care",
	CategoryOther,
}

// IsCategory reports whether c is one of Categories.
func IsCategory(c string) bool {
	return slices.Contains(Categories, c)
}

// Identity is an authenticated user as reported by the identity provider.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// DisplayName is what gets recorded as the creator of items: the email, or the id when
// the provider has no email on file.
func (i Identity) DisplayName() string {
	if i.Email != "" {
		return i.Email
	}
	return i.ID
}

// Group is a household. Its ID doubles as the join code.
type Group struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Members           []string  `json:"members"`
	AdminID           string    `json:"adminId"`
	CreatedAt         time.Time `json:"createdAt"`
	LowStockThreshold int       `json:"lowStockThreshold"`
}

func (g *Group) HasMember(identityID string) bool {
	return slices.Contains(g.Members, identityID)
}

// Profile is the per-identity record. An empty GroupID means onboarding is incomplete.
type Profile struct {
	IdentityID string    `json:"identityId"`
	Email      string    `json:"email"`
	GroupID    string    `json:"groupId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type InventoryItem struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity"`
	Category   string    `json:"category"`
	ExpiryDate time.Time `json:"expiryDate"`
	AddedBy    string    `json:"addedBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

type GroceryItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Category  string    `json:"category"`
	Completed bool      `json:"completed"`
	AddedBy   string    `json:"addedBy"`
	CreatedAt time.Time `json:"createdAt"`
}
