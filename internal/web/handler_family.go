package web

import (
	"net/http"

	"github.com/vbonduro/fampantry/internal/auth"
	"github.com/vbonduro/fampantry/internal/client"
)

func (s *Server) handleCreateFamily(w http.ResponseWriter, r *http.Request, c *client.Client, _ *auth.Claims) {
	var in struct {
		Name string `json:"name"`
	}
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	code, err := c.CreateFamily(r.Context(), in.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"code": code})
}

func (s *Server) handleJoinFamily(w http.ResponseWriter, r *http.Request, c *client.Client, _ *auth.Claims) {
	var in struct {
		Code string `json:"code"`
	}
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	g, err := c.JoinFamily(r.Context(), in.Code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleGetFamily(w http.ResponseWriter, r *http.Request, c *client.Client, _ *auth.Claims) {
	fam, err := c.Family(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fam)
}

func (s *Server) handleSetThreshold(w http.ResponseWriter, r *http.Request, c *client.Client, _ *auth.Claims) {
	var in struct {
		Threshold *int `json:"threshold"`
	}
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	threshold := -1
	if in.Threshold != nil {
		threshold = *in.Threshold
	}
	if err := c.SetLowStockThreshold(r.Context(), threshold); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
