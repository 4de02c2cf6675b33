package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/card-hold/internal/events"
)

// TaskEnqueuer is the subset of *asynq.Client used to publish tasks.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// DefaultRetention is how long a finished task keeps its intent id reserved.
const DefaultRetention = 7 * 24 * time.Hour

// Enqueuer is an event notifier that turns payment.succeeded into exactly one
// fulfillment task per intent. The intent id is used as the asynq task id and
// the finished task is retained, so a later succeeded event for the same
// intent is absorbed by the queue.
type Enqueuer struct {
	Client   TaskEnqueuer
	Queue    string
	MaxRetry int
	// Retention keeps completed tasks, and their ids, for this long; zero
	// means DefaultRetention.
	Retention time.Duration
	Logger    zerolog.Logger
}

// Notify implements events.Notifier.
func (e Enqueuer) Notify(ctx context.Context, event events.Event) error {
	if event.Topic != events.TopicPaymentSucceeded {
		return nil
	}
	var body events.PaymentPayload
	if err := json.Unmarshal(event.Payload, &body); err != nil {
		return fmt.Errorf("fulfillment: decode event payload: %w", err)
	}
	if body.IntentID == "" {
		body.IntentID = event.AggregateID
	}
	return e.Enqueue(ctx, Payload{
		IntentID: body.IntentID,
		Amount:   body.Amount,
		Currency: body.Currency,
		EventID:  body.WebhookEventID,
	})
}

// Enqueue publishes the fulfillment task. A task id conflict means the intent
// was already queued or fulfilled within the retention window and is reported
// as success.
func (e Enqueuer) Enqueue(ctx context.Context, p Payload) error {
	if e.Client == nil {
		return errors.New("fulfillment: task client not configured")
	}
	task, err := NewTask(p)
	if err != nil {
		return err
	}
	retention := e.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	opts := []asynq.Option{asynq.TaskID(p.IntentID), asynq.Retention(retention)}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	if e.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(e.MaxRetry))
	}
	info, err := e.Client.EnqueueContext(ctx, task, opts...)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict), errors.Is(err, asynq.ErrDuplicateTask):
		e.Logger.Info().Str("payment_intent", p.IntentID).Msg("fulfillment already queued")
		return nil
	case err != nil:
		return fmt.Errorf("fulfillment: enqueue %s: %w", p.IntentID, err)
	}
	e.Logger.Info().Str("payment_intent", p.IntentID).Str("task_id", info.ID).Str("queue", info.Queue).Msg("fulfillment queued")
	return nil
}
