package common

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdemMiddlewarePropagatesKey(t *testing.T) {
	var got string
	var found bool
	handler := Idem{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = IdempotencyKey(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/pay", nil)
	req.Header.Set(IdempotencyHeader, " order-42 ")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, found)
	require.Equal(t, "order-42", got)
}

func TestIdemMiddlewareWithoutHeader(t *testing.T) {
	found := true
	handler := Idem{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = IdempotencyKey(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/pay", nil))
	require.False(t, found)
}

func TestIdemMiddlewareRejectsOversizedKey(t *testing.T) {
	called := false
	handler := Idem{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodPost, "/pay", nil)
	req.Header.Set(IdempotencyHeader, strings.Repeat("k", 300))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.False(t, called)
	require.Contains(t, rr.Body.String(), "INVALID_IDEMPOTENCY_KEY")
}
