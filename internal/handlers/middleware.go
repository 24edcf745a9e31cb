package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"trainingtracker/internal/models"
	"trainingtracker/internal/security"
	"trainingtracker/internal/utils"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	IdentityContextKey  ContextKey = "identity"
	RequestIDContextKey ContextKey = "request_id"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	jwtSecret   []byte
	jwtIssuer   string
	rateLimiter *security.RateLimiter
}

// NewMiddleware creates a new middleware instance. A nil rate limiter disables rate limiting.
func NewMiddleware(jwtSecret, jwtIssuer string, rateLimiter *security.RateLimiter) *Middleware {
	return &Middleware{
		jwtSecret:   []byte(jwtSecret),
		jwtIssuer:   jwtIssuer,
		rateLimiter: rateLimiter,
	}
}

// RequireIdentity is middleware that requires a valid bearer token and
// puts the caller's identity in the request context
func (m *Middleware) RequireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
			return
		}

		identity, err := m.parseIdentity(token)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "Rejected bearer token", err)
			return
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return token, ok && token != ""
}

// parseIdentity verifies an HS256 token and reads the numeric user ID from its subject
func (m *Middleware) parseIdentity(token string) (models.Identity, error) {
	if len(m.jwtSecret) == 0 {
		return models.Identity{}, errors.New("no JWT secret configured")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.jwtIssuer != "" {
		opts = append(opts, jwt.WithIssuer(m.jwtIssuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.jwtSecret, nil
	})
	if err != nil {
		return models.Identity{}, err
	}
	if !parsed.Valid {
		return models.Identity{}, errors.New("invalid token")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return models.Identity{}, errors.New("subject is not a user id")
	}
	return models.Identity{UserID: userID}, nil
}

// RateLimit is middleware that limits requests per identity. It runs ahead of
// RequireIdentity, so requests without a verifiable token are limited per client IP.
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.rateLimiter == nil {
			next(w, r)
			return
		}

		if !m.rateLimiter.Allow(m.rateLimitKey(r)) {
			w.Header().Set("Retry-After", "60")
			respondWithError(w, http.StatusTooManyRequests, ErrTooManyRequests, "", nil)
			return
		}
		next(w, r)
	}
}

func (m *Middleware) rateLimitKey(r *http.Request) string {
	if token, ok := bearerToken(r); ok {
		if identity, err := m.parseIdentity(token); err == nil {
			return "user:" + strconv.FormatInt(identity.UserID, 10)
		}
	}
	return "ip:" + security.GetClientIP(r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging middleware logs HTTP requests with a request ID, honouring one sent by the caller
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = utils.NewRequestID()
		}
		w.Header().Set(RequestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
		next.ServeHTTP(rec, r.WithContext(ctx))

		log.Printf("[%s] %s %s %d %s", requestID, r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// GetIdentityFromContext retrieves the caller's identity from the request context
func GetIdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey).(models.Identity)
	return identity, ok
}
