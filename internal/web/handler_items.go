package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/vbonduro/fampantry/internal/auth"
	"github.com/vbonduro/fampantry/internal/client"
	"github.com/vbonduro/fampantry/internal/domain"
	"github.com/vbonduro/fampantry/internal/gateway"
)

const dateLayout = "2006-01-02"

type inventoryRequest struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	Category   string `json:"category"`
	ExpiryDate string `json:"expiryDate"`
}

func (in inventoryRequest) item() (gateway.NewInventoryItem, error) {
	out := gateway.NewInventoryItem{Name: in.Name, Quantity: in.Quantity, Category: in.Category}
	raw := strings.TrimSpace(in.ExpiryDate)
	if raw == "" {
		return out, nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return out, domain.Validation("web.inventory", "Please enter the expiry date as YYYY-MM-DD.")
	}
	out.ExpiryDate = d
	return out, nil
}

type groceryRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Category string `json:"category"`
}

type created struct {
	ID string `json:"id"`
}

// handleListInventory returns the inventory view. A category query parameter re-filters
// the view, including what the event stream carries.
func (s *Server) handleListInventory(w http.ResponseWriter, r *http.Request, c *client.Client, _ *auth.Claims) {
	if r.URL.Query().Has("category") {
		c.FilterInventory(r.URL.Query().Get("category"))
	}
	writeJSON(w, http.StatusOK, c.Inventory())
}

func (s *Server) handleAddInventory(w http.ResponseWriter, r *http.Request, c *client.Client, _ *auth.Claims) {
	var in inventoryRequest
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	item, err := in.item()
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := c.AddInventoryItem(r.Context(), item)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created{ID: id})
}

func (s *Server) handleReplaceInventory(w http.ResponseWriter, r *http.Request, c *client.Client, _ *auth.Claims) {
	var in inventoryRequest
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	item, err := in.item()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := c.ReplaceInventoryItem(r.Context(), r.PathValue("id"), item); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteInventory(w http.ResponseWriter, r *http.Request, c *client.Client, _ *auth.Claims) {
	if err := c.DeleteInventoryItem(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdjustQuantity(w http.ResponseWriter, r *http.Request, c *client.Client, _ *auth.Claims) {
	var in struct {
		Delta int `json:"delta"`
	}
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	if err := c.AdjustQuantity(r.Context(), r.PathValue("id"), in.Delta); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddToGrocery(w http.ResponseWriter, r *http.Request, c *client.Client, _ *auth.Claims) {
	id, err := c.AddToGrocery(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created{ID: id})
}

func (s *Server) handleListGroceries(w http.ResponseWriter, r *http.Request, c *client.Client, _ *auth.Claims) {
	if r.URL.Query().Has("category") {
		c.FilterGroceries(r.URL.Query().Get("category"))
	}
	writeJSON(w, http.StatusOK, c.Groceries())
}

func (s *Server) handleAddGrocery(w http.ResponseWriter, r *http.Request, c *client.Client, _ *auth.Claims) {
	var in groceryRequest
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	id, err := c.AddGroceryItem(r.Context(), gateway.NewGroceryItem{Name: in.Name, Quantity: in.Quantity, Category: in.Category})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created{ID: id})
}

func (s *Server) handleToggleGrocery(w http.ResponseWriter, r *http.Request, c *client.Client, _ *auth.Claims) {
	if err := c.ToggleGrocery(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteGrocery(w http.ResponseWriter, r *http.Request, c *client.Client, _ *auth.Claims) {
	if err := c.DeleteGroceryItem(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request, c *client.Client, _ *auth.Claims) {
	writeJSON(w, http.StatusOK, c.Alerts())
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request, c *client.Client, _ *auth.Claims) {
	writeJSON(w, http.StatusOK, c.Lookup(r.Context(), r.PathValue("code")))
}

func (s *Server) handleOrderLinks(w http.ResponseWriter, r *http.Request, _ *client.Client, _ *auth.Claims) {
	writeJSON(w, http.StatusOK, s.links)
}
