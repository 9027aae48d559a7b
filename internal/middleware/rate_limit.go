package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitClass is a fixed-window per-IP limit for one group of endpoints
type RateLimitClass struct {
	MaxRequests int
	Window      time.Duration
}

// LoginRateLimit bounds credential and 2FA guessing
func LoginRateLimit(maxAttempts int, window time.Duration) RateLimitClass {
	return RateLimitClass{MaxRequests: maxAttempts, Window: window}
}

// RegisterRateLimit bounds bulk account creation
func RegisterRateLimit(maxAttempts int, window time.Duration) RateLimitClass {
	return RateLimitClass{MaxRequests: maxAttempts, Window: window}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(class RateLimitClass) func(next http.Handler) http.Handler {
	return httprate.Limit(
		class.MaxRequests,
		class.Window,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Rate limit exceeded","message":"Too many requests, please try again later"}`))
		}),
	)
}
