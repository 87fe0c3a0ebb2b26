package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// EdgeRateLimitConfig holds the coarse per-IP limit applied at the HTTP
// edge. The domain limiter inside the login orchestrator enforces the
// per-endpoint policy; this layer just sheds floods before they reach it.
type EdgeRateLimitConfig struct {
	RequestsPerMinute int
}

// EdgeRateLimit creates a middleware that rate limits requests by client IP
func EdgeRateLimit(config EdgeRateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
		}),
	)
}
