package webapi

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"roomclient/internal/constants"
)

// RateLimiter is a thin wrapper around chi/httprate configuration.
type RateLimiter struct {
	requestLimit int
	windowLength time.Duration
}

// NewRateLimiter builds a RateLimiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{requestLimit: limit, windowLength: window}
}

// Middleware builds the httprate middleware keyed on resolver's client IP.
func (l *RateLimiter) Middleware(resolver *ClientIPResolver) func(http.Handler) http.Handler {
	if resolver == nil {
		resolver, _ = NewClientIPResolver(nil)
	}

	retryAfter := retryAfterSeconds(l.windowLength)

	return httprate.Limit(
		l.requestLimit,
		l.windowLength,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return resolver.Resolve(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, constants.ErrCodeRateLimited, "")
		}),
	)
}

func retryAfterSeconds(window time.Duration) int {
	seconds := int(math.Ceil(window.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
