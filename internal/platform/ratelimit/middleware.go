package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"leasecover/pkg/platform/httputil"
	"leasecover/pkg/requestcontext"
)

type exceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// PerClientIP limits each client IP to limit requests per window on the
// routes it wraps. The IP comes from the client metadata middleware. Store
// failures are logged and the request is let through.
func PerClientIP(limiter Limiter, name string, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			if ip == "" {
				ip = "unknown"
			}

			result, err := limiter.Allow(ctx, name+":"+ip, limit, window)
			if err != nil {
				logger.ErrorContext(ctx, "rate limit check failed",
					"limiter", name,
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retry := result.RetryAfter(time.Now())
				logger.WarnContext(ctx, "rate limit exceeded",
					"limiter", name,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				httputil.WriteJSON(w, http.StatusTooManyRequests, exceededResponse{
					Error:      "rate_limit_exceeded",
					Message:    "too many requests, try again later",
					RetryAfter: retry,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
