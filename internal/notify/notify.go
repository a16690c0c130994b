// Package notify carries booking domain events to their consumers. The
// engine hands events to the Notifier, which enqueues a dispatch task; the
// worker's Dispatcher persists a notification record and logs delivery.
// Delivery is best effort and never fails the operation that emitted the
// event.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/propflow/propflow/internal/booking"
)

// TaskTypeDispatch is the asynq task type for event dispatch.
const TaskTypeDispatch = "notify:dispatch"

// EventPayload is the wire form of a domain event.
type EventPayload struct {
	Event      string          `json:"event"`
	BookingID  string          `json:"bookingId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// NewDispatchTask wraps a domain event into an asynq task.
func NewDispatchTask(event booking.Event) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(EventPayload{
		Event:      event.EventName(),
		BookingID:  event.AggregateID(),
		OccurredAt: event.OccurredAt(),
		Data:       data,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDispatch, payload), nil
}

// Notifier enqueues domain events for asynchronous dispatch.
type Notifier struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewNotifier constructs a Notifier.
func NewNotifier(client *asynq.Client, logger *slog.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

// Notify implements booking.Notifier. Failures are logged, never returned.
func (n *Notifier) Notify(ctx context.Context, event booking.Event) {
	if n == nil || n.client == nil {
		return
	}
	task, err := NewDispatchTask(event)
	if err != nil {
		n.warn(event, err)
		return
	}
	if _, err := n.client.EnqueueContext(ctx, task); err != nil {
		n.warn(event, err)
	}
}

func (n *Notifier) warn(event booking.Event, err error) {
	if n.logger != nil {
		n.logger.Warn("enqueue notification",
			slog.String("event", event.EventName()),
			slog.String("booking_id", event.AggregateID()),
			slog.Any("error", err))
	}
}
