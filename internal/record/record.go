// Package record maps raw documents to domain entities. Every missing optional field is
// resolved from one default table per record kind, so all readers agree on defaults.
package record

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vbonduro/fampantry/internal/docstore"
	"github.com/vbonduro/fampantry/internal/domain"
)

type Kind string

const (
	KindInventory Kind = "inventory"
	KindGrocery   Kind = "grocery"
	KindGroup     Kind = "group"
	KindProfile   Kind = "profile"
)

// Defaults is the documented default table:
//
//	inventory: quantity=1, category="Other"
//	grocery:   quantity=1, category="Other", completed=false
//	group:     lowStockThreshold=5, members=[]
//	profile:   (none)
var Defaults = map[Kind]docstore.Data{
	KindInventory: {"quantity": 1, "category": domain.CategoryOther},
	KindGrocery:   {"quantity": 1, "category": domain.CategoryOther, "completed": false},
	KindGroup:     {"lowStockThreshold": domain.DefaultLowStockThreshold, "members": []any{}},
	KindProfile:   {},
}

// Normalize returns a copy of data with every absent or null field of kind filled from
// Defaults.
func Normalize(kind Kind, data docstore.Data) docstore.Data {
	out := make(docstore.Data, len(data)+len(Defaults[kind]))
	for k, v := range data {
		if v != nil {
			out[k] = v
		}
	}
	for k, v := range Defaults[kind] {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}

func InventoryItem(doc docstore.Document) domain.InventoryItem {
	d := Normalize(KindInventory, doc.Data)
	return domain.InventoryItem{
		ID:         doc.ID,
		Name:       toString(d["name"]),
		Quantity:   toInt(d["quantity"], 1),
		Category:   category(d["category"]),
		ExpiryDate: toTime(d["expiryDate"]),
		AddedBy:    toString(d["addedBy"]),
		CreatedAt:  createdAt(d, doc),
	}
}

func GroceryItem(doc docstore.Document) domain.GroceryItem {
	d := Normalize(KindGrocery, doc.Data)
	return domain.GroceryItem{
		ID:        doc.ID,
		Name:      toString(d["name"]),
		Quantity:  toInt(d["quantity"], 1),
		Category:  category(d["category"]),
		Completed: toBool(d["completed"]),
		AddedBy:   toString(d["addedBy"]),
		CreatedAt: createdAt(d, doc),
	}
}

func Group(doc docstore.Document) domain.Group {
	d := Normalize(KindGroup, doc.Data)
	return domain.Group{
		ID:                doc.ID,
		Name:              toString(d["name"]),
		Members:           toStrings(d["members"]),
		AdminID:           toString(d["adminId"]),
		CreatedAt:         createdAt(d, doc),
		LowStockThreshold: toInt(d["lowStockThreshold"], domain.DefaultLowStockThreshold),
	}
}

func Profile(doc docstore.Document) domain.Profile {
	d := Normalize(KindProfile, doc.Data)
	id := toString(d["identityId"])
	if id == "" {
		id = doc.ID
	}
	return domain.Profile{
		IdentityID: id,
		Email:      toString(d["email"]),
		GroupID:    toString(d["groupId"]),
		CreatedAt:  createdAt(d, doc),
	}
}

// EncodeInventoryItem is the stored form of an item. ID is part of the path, not the data.
func EncodeInventoryItem(it domain.InventoryItem) docstore.Data {
	return docstore.Data{
		"name":       it.Name,
		"quantity":   it.Quantity,
		"category":   it.Category,
		"expiryDate": EncodeTime(it.ExpiryDate),
		"addedBy":    it.AddedBy,
		"createdAt":  EncodeTime(it.CreatedAt),
	}
}

func EncodeGroceryItem(it domain.GroceryItem) docstore.Data {
	return docstore.Data{
		"name":      it.Name,
		"quantity":  it.Quantity,
		"category":  it.Category,
		"completed": it.Completed,
		"addedBy":   it.AddedBy,
		"createdAt": EncodeTime(it.CreatedAt),
	}
}

func EncodeGroup(g domain.Group) docstore.Data {
	members := make([]any, 0, len(g.Members))
	for _, m := range g.Members {
		members = append(members, m)
	}
	return docstore.Data{
		"name":              g.Name,
		"members":           members,
		"adminId":           g.AdminID,
		"createdAt":         EncodeTime(g.CreatedAt),
		"lowStockThreshold": g.LowStockThreshold,
	}
}

func EncodeProfile(p domain.Profile) docstore.Data {
	d := docstore.Data{
		"identityId": p.IdentityID,
		"email":      p.Email,
		"createdAt":  EncodeTime(p.CreatedAt),
	}
	if p.GroupID != "" {
		d["groupId"] = p.GroupID
	}
	return d
}

// EncodeTime stores t as RFC 3339 in UTC. The zero time is stored as null.
func EncodeTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func createdAt(d docstore.Data, doc docstore.Document) time.Time {
	if t := toTime(d["createdAt"]); !t.IsZero() {
		return t
	}
	return doc.CreateTime
}

func category(v any) string {
	c := toString(v)
	if domain.IsCategory(c) {
		return c
	}
	return domain.CategoryOther
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	}
	return ""
}

func toStrings(v any) []string {
	out := []string{}
	switch arr := v.(type) {
	case []any:
		for _, e := range arr {
			if s := toString(e); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, arr...)
	}
	return out
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, _ := strconv.ParseBool(b)
		return parsed
	}
	return false
}

// toInt accepts any numeric representation; unusable values yield def.
func toInt(v any, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return def
		}
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return def
}

// toTime accepts a native time, a date or timestamp string, unix milliseconds, or a
// {seconds, nanoseconds} timestamp object. Anything else is the zero time.
func toTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case *time.Time:
		if t != nil {
			return *t
		}
	case string:
		return parseTime(t)
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	case int64:
		return time.UnixMilli(t).UTC()
	case int:
		return time.UnixMilli(int64(t)).UTC()
	case json.Number:
		if ms, err := t.Int64(); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	case map[string]any:
		secs, ok := t["seconds"]
		if !ok {
			secs = t["_seconds"]
		}
		if secs == nil {
			return time.Time{}
		}
		nanos := t["nanoseconds"]
		if nanos == nil {
			nanos = t["_nanoseconds"]
		}
		return time.Unix(int64(toInt(secs, 0)), int64(toInt(nanos, 0))).UTC()
	}
	return time.Time{}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
