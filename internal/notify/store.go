package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Notification is one delivered event record.
type Notification struct {
	ID        string
	Kind      string
	BookingID string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Store persists notification records.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs the store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Record inserts a notification row for the event payload.
func (s *Store) Record(ctx context.Context, payload EventPayload) (*Notification, error) {
	n := &Notification{
		ID:        uuid.NewString(),
		Kind:      payload.Event,
		BookingID: payload.BookingID,
		Payload:   payload.Data,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO notifications (id, kind, booking_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		n.ID, n.Kind, n.BookingID, n.Payload, n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return n, nil
}
