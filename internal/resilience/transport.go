package resilience

import (
	"fmt"
	"net/http"
)

// Transport is an http.RoundTripper that consults a Breaker before each
// request. Transport errors and 5xx responses count as failures; any other
// response, including 4xx declines, counts as a success.
type Transport struct {
	Base    http.RoundTripper
	Breaker *Breaker
}

// RoundTrip implements http.RoundTripper.
func (t Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Breaker == nil {
		return base.RoundTrip(req)
	}
	ctx := req.Context()
	if !t.Breaker.Allow(ctx) {
		BreakerRejectedTotal.WithLabelValues(t.Breaker.label()).Inc()
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, ErrOpenCircuit)
	}
	resp, err := base.RoundTrip(req)
	t.Breaker.Report(ctx, err == nil && resp.StatusCode < http.StatusInternalServerError)
	return resp, err
}
