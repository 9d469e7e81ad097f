// Package http exposes the JSON API: Google sign-in, expenses, categories,
// recurring expense rules, the month dashboard and a manual sheet resync.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"bilancio/internal/auth"
	"bilancio/internal/cache"
	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

type Server struct {
	http.Server

	storage   *storage.SQLiteRepository
	expenses  *services.ExpenseService
	recurring *services.RecurringService
	export    *services.ExportService

	google *auth.GoogleAuthenticator
	tokens *auth.TokenIssuer

	rateLimiter   *rateLimiter
	overviewCache *cache.LRU[core.MonthOverview]

	shutdownOnce sync.Once
}

// NewServer wires the routes and returns a ready-to-run server.
func NewServer(
	addr string,
	repo *storage.SQLiteRepository,
	expenses *services.ExpenseService,
	recurring *services.RecurringService,
	export *services.ExportService,
	google *auth.GoogleAuthenticator,
	tokens *auth.TokenIssuer,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		storage:       repo,
		expenses:      expenses,
		recurring:     recurring,
		export:        export,
		google:        google,
		tokens:        tokens,
		rateLimiter:   newRateLimiter(),
		overviewCache: cache.NewLRU[core.MonthOverview](100, 5*time.Minute),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/auth/login", s.withRequestLogging(s.handleLogin))
	mux.HandleFunc("GET /api/auth/callback", s.withRequestLogging(s.handleCallback))

	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return s.withRequestLogging(func(w http.ResponseWriter, r *http.Request) {
			auth.Middleware(s.tokens, http.HandlerFunc(h)).ServeHTTP(w, r)
		})
	}

	mux.HandleFunc("GET /api/auth/me", protected(s.handleMe))

	mux.HandleFunc("POST /api/expenses", protected(s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses", protected(s.handleListExpenses))
	mux.HandleFunc("DELETE /api/expenses/{id}", protected(s.handleDeleteExpense))

	mux.HandleFunc("GET /api/categories", protected(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", protected(s.handleCreateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", protected(s.handleDeleteCategory))

	mux.HandleFunc("POST /api/recurring-expenses", protected(s.handleCreateRecurring))
	mux.HandleFunc("GET /api/recurring-expenses", protected(s.handleListRecurring))
	mux.HandleFunc("GET /api/recurring-expenses/{id}", protected(s.handleGetRecurring))
	mux.HandleFunc("PUT /api/recurring-expenses/{id}", protected(s.handleUpdateRecurring))
	mux.HandleFunc("DELETE /api/recurring-expenses/{id}", protected(s.handleDeleteRecurring))

	mux.HandleFunc("GET /api/dashboard/overview", protected(s.handleMonthOverview))
	mux.HandleFunc("POST /api/sync/sheets", protected(s.handleSyncSheets))

	return s
}

// Shutdown stops the listener and the rate limiter cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withRequestLogging adds a request ID, security headers, rate limiting on
// writes and completion logging.
func (s *Server) withRequestLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		reqLogger := applog.FromContext(r.Context()).With(applog.FieldRequestID, requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = applog.IntoContext(ctx, reqLogger)
		r = r.WithContext(ctx)

		reqLogger.Info("Request started",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			reqLogger.Warn("Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		reqLogger.Info("Request completed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).Milliseconds())
	}
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// responseWriter captures the status code for the completion log line.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.storage.ListUsers(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "storage not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
