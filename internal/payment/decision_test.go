package payment_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/card-hold/internal/payment"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]payment.Status{
		"requires_payment_method": payment.StatusRequiresPaymentMethod,
		"requires_source":         payment.StatusRequiresPaymentMethod,
		"requires_action":         payment.StatusRequiresAction,
		"requires_source_action":  payment.StatusRequiresAction,
		"requires_capture":        payment.StatusRequiresCapture,
		"REQUIRES_CAPTURE ":       payment.StatusRequiresCapture,
		"succeeded":               payment.StatusSucceeded,
		"processing":              payment.StatusProcessing,
		"canceled":                payment.StatusCanceled,
		"requires_confirmation":   payment.StatusRequiresConfirmation,
		"":                        payment.StatusUnknown,
		"partially_funded":        payment.StatusUnknown,
	}
	for raw, want := range cases {
		require.Equal(t, want, payment.ParseStatus(raw), "raw=%q", raw)
	}
	require.Equal(t, "unknown", payment.StatusUnknown.String())
}

func TestDecideBodies(t *testing.T) {
	cases := []struct {
		name   string
		status string
		body   string
	}{
		{"requires action", "requires_action", `{"requiresAction":true,"paymentIntentId":"pi_1","clientSecret":"pi_1_secret"}`},
		{"legacy source action", "requires_source_action", `{"requiresAction":true,"paymentIntentId":"pi_1","clientSecret":"pi_1_secret"}`},
		{"declined", "requires_payment_method", `{"error":"Your card was denied, please provide a new payment method"}`},
		{"legacy source", "requires_source", `{"error":"Your card was denied, please provide a new payment method"}`},
		{"succeeded", "succeeded", `{"clientSecret":"pi_1_secret"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := payment.Decide(payment.Intent{ID: "pi_1", Status: payment.ParseStatus(tc.status), ClientSecret: "pi_1_secret"})
			rec := httptest.NewRecorder()
			d.Write(rec)
			require.Equal(t, http.StatusOK, rec.Code)
			require.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestDecideAcknowledgesEverythingElse(t *testing.T) {
	for _, st := range []payment.Status{
		payment.StatusProcessing,
		payment.StatusRequiresCapture,
		payment.StatusRequiresConfirmation,
		payment.StatusCanceled,
		payment.StatusUnknown,
	} {
		d := payment.Decide(payment.Intent{ID: "pi_1", Status: st, ClientSecret: "s"})
		require.Equal(t, payment.OutcomeAcknowledge, d.Outcome, "status=%s", st)

		rec := httptest.NewRecorder()
		d.Write(rec)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Body.String())
	}
}

func TestDecideIsPure(t *testing.T) {
	in := payment.Intent{ID: "pi_9", Status: payment.StatusRequiresAction, ClientSecret: "sec"}
	require.Equal(t, payment.Decide(in), payment.Decide(in))
}

func TestFailureBody(t *testing.T) {
	rec := httptest.NewRecorder()
	payment.Failure("Your card has insufficient funds.").Write(rec)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"error":"Your card has insufficient funds."}`, rec.Body.String())
}
