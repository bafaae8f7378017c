package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kinship/internal/security"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	UserIDContextKey    ContextKey = "user_id"
	ClaimsContextKey    ContextKey = "claims"
	RequestIDContextKey ContextKey = "request_id"
)

// TokenVerifier validates bearer tokens
type TokenVerifier interface {
	Verify(token string) (*security.Claims, error)
}

// Middleware holds dependencies for middleware functions
type Middleware struct {
	tokens  TokenVerifier
	limiter *security.RateLimiter
	logger  *zap.Logger
}

// NewMiddleware creates a new middleware instance. limiter may be nil.
func NewMiddleware(tokens TokenVerifier, limiter *security.RateLimiter, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{tokens: tokens, limiter: limiter, logger: logger}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's user ID in the request context
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			respondJSON(w, http.StatusUnauthorized, ErrUnauthorized, nil)
			return
		}

		claims, err := m.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			respondJSON(w, http.StatusUnauthorized, ErrUnauthorized, nil)
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			respondJSON(w, http.StatusUnauthorized, ErrUnauthorized, nil)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
		ctx = context.WithValue(ctx, ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimit throttles requests per client IP
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limiter != nil && !m.limiter.Allow(security.GetClientIP(r)) {
			m.logger.Warn("rate limit exceeded", zap.String("ip", security.GetClientIP(r)), zap.String("path", r.URL.Path))
			respondJSON(w, http.StatusTooManyRequests, ErrTooManyRequests, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestID tags each request with an ID, reusing the client's when present
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), RequestIDContextKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging middleware logs HTTP requests
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", RequestIDFromContext(r.Context())),
		)
	})
}

// GetUserIDFromContext retrieves the authenticated user ID from the request context
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDContextKey).(int64)
	return id, ok
}

// RequestIDFromContext returns the request ID, or "" outside a request
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}
