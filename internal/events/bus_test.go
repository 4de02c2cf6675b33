package events_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/card-hold/internal/events"
)

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitStampsAndFansOut(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first := &captureNotifier{}
	second := &captureNotifier{}
	bus := &events.Bus{Notifiers: []events.Notifier{first, second}, Now: func() time.Time { return fixed }}

	payload := events.PaymentPayload{IntentID: "pi_123", Status: "succeeded", Amount: 1400, Currency: "usd"}
	ev, err := bus.Emit(context.Background(), events.TopicPaymentSucceeded, "pi_123", payload)
	require.NoError(t, err)
	require.NotEqual(t, [16]byte{}, [16]byte(ev.ID))
	require.Equal(t, fixed, ev.OccurredAt)
	require.JSONEq(t, `{"intentId":"pi_123","status":"succeeded","amount":1400,"currency":"usd"}`, string(ev.Payload))
	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	require.Equal(t, ev.ID, second.events[0].ID)
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	after := &captureNotifier{}
	bus := &events.Bus{Notifiers: []events.Notifier{
		events.NotifierFunc(func(context.Context, events.Event) error { return errors.New("queue down") }),
		after,
	}}

	ev, err := bus.Emit(context.Background(), events.TopicPaymentCaptured, "pi_1", nil)
	require.ErrorContains(t, err, "queue down")
	require.Equal(t, events.TopicPaymentCaptured, ev.Topic)
	require.Len(t, after.events, 1, "later notifiers still run")
}

func TestEmitValidatesInput(t *testing.T) {
	bus := &events.Bus{}
	_, err := bus.Emit(context.Background(), " ", "pi_1", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicPaymentFailed, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicPaymentFailed, "pi_1", []byte("{not json"))
	require.Error(t, err)
}

func TestNilBusIsNoop(t *testing.T) {
	var bus *events.Bus
	ev, err := bus.Emit(context.Background(), events.TopicPaymentFailed, "pi_1", nil)
	require.NoError(t, err)
	require.Equal(t, "pi_1", ev.AggregateID)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	bus := &events.Bus{Notifiers: []events.Notifier{events.LogNotifier{Logger: zerolog.New(&buf)}}}
	_, err := bus.Emit(context.Background(), events.TopicPaymentFailed, "pi_9", map[string]string{"status": "requires_payment_method"})
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"topic":"payment.failed"`)
	require.Contains(t, buf.String(), `"payment_intent":"pi_9"`)
}
