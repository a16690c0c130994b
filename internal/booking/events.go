package booking

import (
	"time"
)

// Event is a domain event emitted by the booking engine. Delivery and
// formatting belong to the notification collaborator.
type Event interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// BookingCreated is emitted after a booking and its schedule are persisted.
type BookingCreated struct {
	BookingID  string
	PropertyID string
	CustomerID string
	Duration   int
	At         time.Time
}

func (e BookingCreated) EventName() string     { return "booking.created" }
func (e BookingCreated) AggregateID() string   { return e.BookingID }
func (e BookingCreated) OccurredAt() time.Time { return e.At }

// PaymentRecorded is emitted after a payment is applied to an entry.
type PaymentRecorded struct {
	BookingID      string
	SequenceNumber int
	Amount         int64
	PaymentStatus  PaymentStatus
	At             time.Time
}

func (e PaymentRecorded) EventName() string     { return "booking.payment_recorded" }
func (e PaymentRecorded) AggregateID() string   { return e.BookingID }
func (e PaymentRecorded) OccurredAt() time.Time { return e.At }

// StatusChanged is emitted after a lifecycle transition commits.
type StatusChanged struct {
	BookingID string
	From      BookingStatus
	To        BookingStatus
	Trigger   Trigger
	At        time.Time
}

func (e StatusChanged) EventName() string     { return "booking.status_changed" }
func (e StatusChanged) AggregateID() string   { return e.BookingID }
func (e StatusChanged) OccurredAt() time.Time { return e.At }

// EntryOverdue is emitted by the overdue scan when an entry first turns
// overdue.
type EntryOverdue struct {
	BookingID      string
	SequenceNumber int
	DueDate        time.Time
	AmountDue      int64
	AmountPaid     int64
	At             time.Time
}

func (e EntryOverdue) EventName() string     { return "booking.entry_overdue" }
func (e EntryOverdue) AggregateID() string   { return e.BookingID }
func (e EntryOverdue) OccurredAt() time.Time { return e.At }
