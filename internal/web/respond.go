package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/vbonduro/fampantry/internal/auth"
	"github.com/vbonduro/fampantry/internal/client"
	"github.com/vbonduro/fampantry/internal/docstore"
	"github.com/vbonduro/fampantry/internal/domain"
)

const maxBodySize = 1 << 20

type authedHandler func(w http.ResponseWriter, r *http.Request, c *client.Client, claims *auth.Claims)

// authed resolves the bearer token to the caller's client before calling h.
func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			s.writeError(w, domain.Auth("web.auth", "Please sign in.", nil))
			return
		}
		claims, err := s.tokens.Validate(strings.TrimSpace(token))
		if err != nil {
			s.writeError(w, domain.Auth("web.auth", "Your session has expired. Please sign in again.", err))
			return
		}
		c, err := s.sessions.Resolve(r.Context(), claims)
		if err != nil {
			s.writeError(w, err)
			return
		}
		h(w, r, c, claims)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrPrecondition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMutation):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrSubscription):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the user-facing message of err.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": domain.Message(err)})
}

// decode reads a JSON body into v; malformed input is a validation error.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Validation("web.decode", "The request body is not valid JSON.")
	}
	return nil
}
