package common

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	require.Equal(t, "203.0.113.9", ClientIP(req))

	req.RemoteAddr = "198.51.100.7"
	require.Equal(t, "198.51.100.7", ClientIP(req))

	req.RemoteAddr = ""
	req.Header.Set("X-Forwarded-For", "192.0.2.1, 10.0.0.1")
	require.Equal(t, "192.0.2.1", ClientIP(req))

	require.Empty(t, ClientIP(nil))
}

func TestSha256Hex(t *testing.T) {
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Sha256Hex(nil))
}
