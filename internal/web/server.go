package web

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/vbonduro/fampantry/internal/auth"
	"github.com/vbonduro/fampantry/internal/metrics"
)

// OrderLink is an outbound link to a grocery delivery app.
type OrderLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

var DefaultOrderLinks = []OrderLink{
	{Name: "Grab Mart", URL: "https://mart.grab.com/sg/en?is_retargeting=true&af_sub1=order_now&c=organic_web&af_ad=sg&pid=organic_web&af_channel=mart&af_adset=grab_website&af_force_deeplink=true"},
	{Name: "foodpanda", URL: "https://www.foodpanda.sg/restaurants/new?lat=1.36675&lng=103.85656&vertical=shop"},
}

type Server struct {
	sessions *Registry
	tokens   *auth.TokenManager
	metrics  *metrics.Metrics
	links    []OrderLink
	mux      *http.ServeMux
	logger   *slog.Logger

	heartbeat     time.Duration
	sweepInterval time.Duration
	// done is closed when the server starts shutting down; event streams end on it.
	done     chan struct{}
	doneOnce sync.Once
}

func NewServer(sessions *Registry, tokens *auth.TokenManager, m *metrics.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		sessions:  sessions,
		tokens:    tokens,
		metrics:   m,
		links:     DefaultOrderLinks,
		mux:       http.NewServeMux(),
		logger:    logger,
		heartbeat: 25 * time.Second,
		done:      make(chan struct{}),
	}
	s.sweepInterval = time.Minute
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.mux.HandleFunc("POST /api/auth/signup", s.handleSignUp)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/logout", s.authed(s.handleLogout))
	s.mux.HandleFunc("GET /api/session", s.authed(s.handleSession))

	s.mux.HandleFunc("POST /api/family", s.authed(s.handleCreateFamily))
	s.mux.HandleFunc("POST /api/family/join", s.authed(s.handleJoinFamily))
	s.mux.HandleFunc("GET /api/family", s.authed(s.handleGetFamily))
	s.mux.HandleFunc("PUT /api/family/threshold", s.authed(s.handleSetThreshold))

	s.mux.HandleFunc("GET /api/inventory", s.authed(s.handleListInventory))
	s.mux.HandleFunc("POST /api/inventory", s.authed(s.handleAddInventory))
	s.mux.HandleFunc("PUT /api/inventory/{id}", s.authed(s.handleReplaceInventory))
	s.mux.HandleFunc("DELETE /api/inventory/{id}", s.authed(s.handleDeleteInventory))
	s.mux.HandleFunc("PATCH /api/inventory/{id}/quantity", s.authed(s.handleAdjustQuantity))
	s.mux.HandleFunc("POST /api/inventory/{id}/grocery", s.authed(s.handleAddToGrocery))

	s.mux.HandleFunc("GET /api/groceries", s.authed(s.handleListGroceries))
	s.mux.HandleFunc("POST /api/groceries", s.authed(s.handleAddGrocery))
	s.mux.HandleFunc("POST /api/groceries/{id}/toggle", s.authed(s.handleToggleGrocery))
	s.mux.HandleFunc("DELETE /api/groceries/{id}", s.authed(s.handleDeleteGrocery))

	s.mux.HandleFunc("GET /api/alerts", s.authed(s.handleAlerts))
	s.mux.HandleFunc("GET /api/events", s.authed(s.handleEvents))
	s.mux.HandleFunc("GET /api/lookup/{code}", s.authed(s.handleLookup))
	s.mux.HandleFunc("GET /api/order-links", s.authed(s.handleOrderLinks))
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// corsHeaders lets a browser front end on another origin call the API.
func corsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		s.metrics.ObserveRequest(r.Method, route, rec.status, elapsed)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.requestLogger(corsHeaders(securityHeaders(s.mux))).ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully. HTTP/2 is
// accepted in cleartext so one connection can carry many event streams.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      h2c.NewHandler(s, &http2.Server{}),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	go s.sweepSessions(ctx)

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	s.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.sessions.Sweep()
		}
	}
}

// Shutdown ends open event streams and closes every login session.
func (s *Server) Shutdown() {
	s.doneOnce.Do(func() {
		close(s.done)
		s.sessions.CloseAll()
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
