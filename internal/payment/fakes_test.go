package payment_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"

	"github.com/noah-isme/card-hold/internal/payment"
	"github.com/noah-isme/card-hold/internal/pricing"
)

const testWebhookSecret = "whsec_test_secret"

type captureCall struct {
	ID     string
	Amount *int64
}

// fakeGateway records every call and answers from the configured funcs.
type fakeGateway struct {
	mu sync.Mutex

	createFn   func(payment.CreateParams) (payment.Intent, error)
	confirmFn  func(id string) (payment.Intent, error)
	captureFn  func(id string, amount *int64) (payment.Intent, error)
	retrieveFn func(id string) (payment.Intent, error)

	creates   []payment.CreateParams
	confirms  []string
	captures  []captureCall
	retrieves []string
}

func (f *fakeGateway) Create(_ context.Context, p payment.CreateParams) (payment.Intent, error) {
	f.mu.Lock()
	f.creates = append(f.creates, p)
	f.mu.Unlock()
	if f.createFn == nil {
		return payment.Intent{ID: "pi_new", Status: payment.StatusRequiresPaymentMethod, ClientSecret: "pi_new_secret", Amount: p.Amount, Currency: p.Currency}, nil
	}
	return f.createFn(p)
}

func (f *fakeGateway) Confirm(_ context.Context, id string) (payment.Intent, error) {
	f.mu.Lock()
	f.confirms = append(f.confirms, id)
	f.mu.Unlock()
	if f.confirmFn == nil {
		return payment.Intent{ID: id, Status: payment.StatusProcessing}, nil
	}
	return f.confirmFn(id)
}

func (f *fakeGateway) Capture(_ context.Context, id string, amount *int64) (payment.Intent, error) {
	f.mu.Lock()
	f.captures = append(f.captures, captureCall{ID: id, Amount: amount})
	f.mu.Unlock()
	if f.captureFn == nil {
		return payment.Intent{ID: id, Status: payment.StatusSucceeded, ClientSecret: id + "_secret", Amount: 1400}, nil
	}
	return f.captureFn(id, amount)
}

func (f *fakeGateway) Retrieve(_ context.Context, id string) (payment.Intent, error) {
	f.mu.Lock()
	f.retrieves = append(f.retrieves, id)
	f.mu.Unlock()
	if f.retrieveFn == nil {
		return payment.Intent{ID: id, Status: payment.StatusRequiresCapture}, nil
	}
	return f.retrieveFn(id)
}

func (f *fakeGateway) Cancel(_ context.Context, id string) (payment.Intent, error) {
	return payment.Intent{ID: id, Status: payment.StatusCanceled}, nil
}

func (f *fakeGateway) captureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.captures)
}

func (f *fakeGateway) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates) + len(f.confirms) + len(f.captures)
}

func testCatalog() pricing.Catalog {
	return pricing.Catalog{
		Prices:          map[string]pricing.Money{"photo-subscription": 1400, "print-pack": 2500},
		DefaultItem:     "photo-subscription",
		DefaultCurrency: "usd",
	}
}

func newService(gw payment.Gateway) *payment.Service {
	return &payment.Service{Gateway: gw, Catalog: testCatalog(), Logger: zerolog.Nop()}
}

func newVerifier(t *testing.T) *payment.StripeGateway {
	t.Helper()
	gw, err := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		Logger:        zerolog.Nop(),
	})
	require.NoError(t, err)
	return gw
}

// eventPayload renders a webhook event the way the processor sends it.
func eventPayload(id, eventType, intentID, status string, amountCapturable int64) []byte {
	return []byte(fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "api_version": %q,
  "created": 1700000000,
  "type": %q,
  "data": {
    "object": {
      "id": %q,
      "object": "payment_intent",
      "status": %q,
      "amount": 1400,
      "amount_capturable": %d,
      "currency": "usd",
      "client_secret": "%s_secret_abc"
    }
  }
}`, id, stripe.APIVersion, eventType, intentID, status, amountCapturable, intentID))
}

// withAPIVersion restamps an eventPayload as sent by an endpoint pinned to version.
func withAPIVersion(payload []byte, version string) []byte {
	return bytes.Replace(payload, []byte(`"api_version": "`+stripe.APIVersion+`"`), []byte(`"api_version": "`+version+`"`), 1)
}

// signPayload builds a Stripe-Signature header for payload.
func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
