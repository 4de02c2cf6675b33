package events

// Topic constants for payment events emitted by the checkout flows.
const (
	TopicPaymentSucceeded = "payment.succeeded"
	TopicPaymentCaptured  = "payment.captured"
	TopicPaymentFailed    = "payment.failed"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicPaymentSucceeded,
		TopicPaymentCaptured,
		TopicPaymentFailed,
	}
}

// PaymentPayload is the body carried by every payment topic.
type PaymentPayload struct {
	IntentID string `json:"intentId"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
	// Captured is set on payment.captured.
	Captured int64 `json:"captured,omitempty"`
	// WebhookEventID links the event to the gateway notification that caused it.
	WebhookEventID string `json:"webhookEventId,omitempty"`
}
