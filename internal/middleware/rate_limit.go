package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds per-IP request limits for the unauthenticated endpoints.
// Counters are held in process memory.
type RateLimitConfig struct {
	LoginPerMinute        int
	VerificationPerMinute int
}

// DefaultRateLimits returns the limits applied to login and verification routes
func DefaultRateLimits() RateLimitConfig {
	return RateLimitConfig{
		LoginPerMinute:        10,
		VerificationPerMinute: 5,
	}
}

// keyByClientIP keys on the address stored by ClientIP, falling back to the peer address
func keyByClientIP(r *http.Request) (string, error) {
	if ip := pkglogger.ClientIPFromContext(r.Context()); ip != "" {
		return ip, nil
	}
	return pkghttp.ExtractClientIP(r, nil), nil
}

// RateLimitByIP creates a middleware that allows requestsPerMinute requests per client IP
func RateLimitByIP(requestsPerMinute int) func(next http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(keyByClientIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests, please try again later")
		}),
	)
}
