package payment

import (
	"context"
	"errors"
	"fmt"
)

// Event types the webhook reacts to.
const (
	EventAmountCapturableUpdated = "payment_intent.amount_capturable_updated"
	EventPaymentSucceeded        = "payment_intent.succeeded"
	EventPaymentFailed           = "payment_intent.payment_failed"
)

// ErrSignatureVerification is wrapped by every webhook authentication failure.
var ErrSignatureVerification = errors.New("payment: webhook signature verification failed")

// Intent is the subset of a gateway payment intent the checkout needs.
type Intent struct {
	ID               string
	Status           Status
	ClientSecret     string
	Amount           int64
	AmountCapturable int64
	Currency         string
}

// CreateParams describes a new intent. Capture is always manual.
type CreateParams struct {
	Amount             int64
	Currency           string
	PaymentMethodID    string
	Confirm            bool
	ManualConfirmation bool
	IdempotencyKey     string
}

// Gateway is the payment intent API of the card processor.
type Gateway interface {
	Create(ctx context.Context, p CreateParams) (Intent, error)
	Confirm(ctx context.Context, id string) (Intent, error)
	// Capture moves held funds. A nil amount captures everything capturable.
	Capture(ctx context.Context, id string, amount *int64) (Intent, error)
	Retrieve(ctx context.Context, id string) (Intent, error)
	// Cancel releases an uncaptured hold. No checkout flow calls it; it is
	// there for operators voiding holds that will never be captured.
	Cancel(ctx context.Context, id string) (Intent, error)
}

// Event is a verified webhook notification.
type Event struct {
	ID     string
	Type   string
	Intent Intent
}

// EventVerifier authenticates a raw webhook body against its signature header.
type EventVerifier interface {
	ConstructEvent(payload []byte, signatureHeader string) (Event, error)
}

// GatewayError describes a failed gateway call. Message is safe to show to
// the shopper; it is the processor's own wording for declines.
type GatewayError struct {
	Op          string
	Message     string
	Code        string
	DeclineCode string
	HTTPStatus  int
	Err         error
}

func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("payment: %s: %s (%s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("payment: %s: %s", e.Op, e.Message)
}

func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsCardError reports whether the processor rejected the card itself.
func (e *GatewayError) IsCardError() bool {
	return e != nil && (e.DeclineCode != "" || e.Code == "card_declined")
}

// ClientMessage extracts the text the browser should display for err.
func ClientMessage(err error) string {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The payment service timed out, please try again"
	}
	return "The payment could not be processed, please try again"
}
