package booking

import (
	"time"
)

// BookingStatus enumerates booking lifecycle states.
type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusActive    BookingStatus = "ACTIVE"
	StatusCompleted BookingStatus = "COMPLETED"
	StatusCancelled BookingStatus = "CANCELLED"
	StatusDefaulted BookingStatus = "DEFAULTED"
)

// Terminal reports whether the status admits no further transitions.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// PaymentStatus enumerates per-entry payment states.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentOverdue PaymentStatus = "OVERDUE"
)

// RentScheduleEntry is one period's rent obligation. Entries are owned by
// their booking and never referenced outside of it. Monetary amounts are in
// minor currency units.
type RentScheduleEntry struct {
	SequenceNumber int
	DueDate        time.Time
	AmountDue      int64
	AmountPaid     int64
	PaidDate       *time.Time
	LateFeeApplied int64
	PaymentStatus  PaymentStatus
}

// Outstanding returns the unpaid principal for the entry, never negative.
func (e *RentScheduleEntry) Outstanding() int64 {
	if out := e.AmountDue - e.AmountPaid; out > 0 {
		return out
	}
	return 0
}

// Settled reports whether the principal has been fully paid.
func (e *RentScheduleEntry) Settled() bool {
	return e.AmountPaid >= e.AmountDue
}

// RentalBooking is the aggregate root for a lease: identity references,
// lease terms, the generated rent schedule and the lifecycle status. It is
// created once, mutated by payment recording and status changes, and never
// deleted.
type RentalBooking struct {
	BookingID             string
	PropertyID            string
	CustomerID            string
	AssignedSalespersonID string

	StartDate time.Time
	EndDate   time.Time

	MonthlyRent        int64
	SecurityDeposit    int64
	MaintenanceCharges int64
	AdvanceRent        int
	RentDueDate        int
	LateFeePercentage  float64

	Duration int
	Status   BookingStatus
	Schedule []RentScheduleEntry

	CreatedBy string
	UpdatedBy string
	Published bool
	CreatedAt time.Time
	UpdatedAt time.Time

	// Version guards optimistic concurrency; every committed mutation
	// increments it.
	Version int64
}

// IsActive mirrors the aggregate's convenience flag.
func (b *RentalBooking) IsActive() bool {
	return b.Status == StatusActive
}

// Entry returns the schedule entry with the given sequence number, or nil.
func (b *RentalBooking) Entry(sequenceNumber int) *RentScheduleEntry {
	if sequenceNumber < 1 || sequenceNumber > len(b.Schedule) {
		return nil
	}
	e := &b.Schedule[sequenceNumber-1]
	if e.SequenceNumber != sequenceNumber {
		for i := range b.Schedule {
			if b.Schedule[i].SequenceNumber == sequenceNumber {
				return &b.Schedule[i]
			}
		}
		return nil
	}
	return e
}

// LeaseTerms carries the validated creation request for a booking.
// Identity references are asserted valid by the directory before the
// engine trusts them; the engine only requires non-emptiness.
type LeaseTerms struct {
	PropertyID            string
	CustomerID            string
	AssignedSalespersonID string
	StartDate             time.Time
	EndDate               time.Time
	MonthlyRent           int64
	SecurityDeposit       int64
	MaintenanceCharges    int64
	AdvanceRent           int
	RentDueDate           int
	LateFeePercentage     float64
	CreatedBy             string
}
