package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// RecordStore is the persistence surface the dispatcher needs.
type RecordStore interface {
	Record(ctx context.Context, payload EventPayload) (*Notification, error)
}

// Dispatcher consumes dispatch tasks on the worker side.
type Dispatcher struct {
	store  RecordStore
	logger *slog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store RecordStore, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, logger: logger}
}

// Handle processes a TaskTypeDispatch task. A malformed payload is dropped
// rather than retried.
func (d *Dispatcher) Handle(ctx context.Context, t *asynq.Task) error {
	var payload EventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		if d.logger != nil {
			d.logger.Error("malformed notification payload", slog.Any("error", err))
		}
		return asynq.SkipRetry
	}
	if _, err := d.store.Record(ctx, payload); err != nil {
		return err
	}
	if d.logger != nil {
		d.logger.Info("notification dispatched",
			slog.String("event", payload.Event),
			slog.String("booking_id", payload.BookingID))
	}
	return nil
}
