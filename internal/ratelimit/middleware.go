package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/card-hold/internal/common"
)

// Result is the outcome of a single limiter check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Allower decides whether the caller identified by key may proceed.
type Allower interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Handler enforces rate limits before delegating to the next handler.
type Handler struct {
	Limiter Allower
	Key     func(*http.Request) string
	OnError func(error)
}

// ByClientIP keys requests by caller address and route so each endpoint keeps
// its own budget.
func ByClientIP(r *http.Request) string {
	return common.ClientIP(r) + ":" + r.URL.Path
}

// Middleware implements chi middleware. Limiter errors fail open.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil {
		return next
	}
	keyFn := h.Key
	if keyFn == nil {
		keyFn = ByClientIP
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := h.Limiter.Allow(r.Context(), keyFn(r))
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(max(res.Limit, 0)))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))

		if !res.Allowed {
			retryAfter := max(int(time.Until(res.Reset).Seconds()), 0)
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
