package web

import (
	"context"
	"net/http"

	"github.com/vbonduro/fampantry/internal/auth"
	"github.com/vbonduro/fampantry/internal/client"
	"github.com/vbonduro/fampantry/internal/domain"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string             `json:"token"`
	Session client.SessionView `json:"session"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	s.login(w, r, http.StatusCreated, func(ctx context.Context, c *client.Client, in credentials) (domain.Identity, error) {
		return c.SignUp(ctx, in.Email, in.Password)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.login(w, r, http.StatusOK, func(ctx context.Context, c *client.Client, in credentials) (domain.Identity, error) {
		return c.SignIn(ctx, in.Email, in.Password)
	})
}

// login runs an identity operation on a fresh client and, on success, opens a session for it.
func (s *Server) login(w http.ResponseWriter, r *http.Request, status int, do func(context.Context, *client.Client, credentials) (domain.Identity, error)) {
	var in credentials
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}

	c := s.sessions.newClient()
	id, err := do(r.Context(), c, in)
	if err != nil && c.Session().Identity == nil {
		c.Close()
		s.writeError(w, err)
		return
	}
	if err != nil {
		// Signed up, but the profile write failed; the session still works and the profile
		// is repaired when the user creates or joins a family.
		s.logger.Error("profile creation failed", "identity", id.ID, "error", err)
	}

	token, err := s.sessions.Open(c, id)
	if err != nil {
		c.Close()
		s.writeError(w, err)
		return
	}
	writeJSON(w, status, loginResponse{Token: token, Session: c.Session()})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, c *client.Client, claims *auth.Claims) {
	s.sessions.Revoke(claims)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, c *client.Client, claims *auth.Claims) {
	writeJSON(w, http.StatusOK, c.Session())
}
