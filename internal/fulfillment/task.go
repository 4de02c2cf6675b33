package fulfillment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
)

// TypeFulfillPayment is the asynq task type for a succeeded payment.
const TypeFulfillPayment = "payment:fulfill"

// Payload is the task body handed to the worker.
type Payload struct {
	IntentID string `json:"intentId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
	EventID  string `json:"eventId,omitempty"`
}

// NewTask builds the fulfillment task for an intent.
func NewTask(p Payload) (*asynq.Task, error) {
	if strings.TrimSpace(p.IntentID) == "" {
		return nil, errors.New("fulfillment: intent id is required")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("fulfillment: encode payload: %w", err)
	}
	return asynq.NewTask(TypeFulfillPayment, body), nil
}

// DecodePayload parses a task body.
func DecodePayload(t *asynq.Task) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return Payload{}, fmt.Errorf("fulfillment: decode payload: %w", err)
	}
	if strings.TrimSpace(p.IntentID) == "" {
		return Payload{}, errors.New("fulfillment: payload missing intent id")
	}
	return p, nil
}
