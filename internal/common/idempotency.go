package common

import (
	"context"
	"net/http"
	"strings"
)

// IdempotencyHeader is the request header carrying a client supplied idempotency key.
const IdempotencyHeader = "Idempotency-Key"

// maxIdempotencyKeyLen mirrors the upstream gateway limit for idempotency keys.
const maxIdempotencyKeyLen = 255

type idemKey struct{}

// WithIdempotencyKey stores the idempotency key on the provided context.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idemKey{}, key)
}

// IdempotencyKey extracts the idempotency key from the context if present.
func IdempotencyKey(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(idemKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Idem captures the Idempotency-Key header so downstream gateway calls can
// forward it. Deduplication itself is enforced by the gateway.
type Idem struct{}

// Middleware validates and propagates the idempotency key for write endpoints.
func (Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(header) > maxIdempotencyKeyLen {
			JSONError(w, http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", "idempotency key too long", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdempotencyKey(r.Context(), header)))
	})
}
