package booking

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/propflow/propflow/internal/platform/db"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
)

// Repository provides PostgreSQL backed persistence for booking aggregates.
// The booking row and its schedule entries are written in one
// repeatable-read transaction, and a version column arbitrates concurrent
// mutations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create persists the aggregate and its full schedule atomically. A
// duplicate booking identifier surfaces as ErrConflict so the caller can
// regenerate and retry.
func (r *Repository) Create(ctx context.Context, b *RentalBooking) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO rental_bookings (
			booking_id, property_id, customer_id, salesperson_id,
			start_date, end_date, monthly_rent, security_deposit,
			maintenance_charges, advance_rent, rent_due_date,
			late_fee_percentage, duration, status, created_by, updated_by,
			published, created_at, updated_at, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
			b.BookingID, b.PropertyID, b.CustomerID, b.AssignedSalespersonID,
			b.StartDate, b.EndDate, b.MonthlyRent, b.SecurityDeposit,
			b.MaintenanceCharges, b.AdvanceRent, b.RentDueDate,
			b.LateFeePercentage, b.Duration, b.Status, b.CreatedBy, b.UpdatedBy,
			b.Published, b.CreatedAt, b.UpdatedAt, b.Version)
		if err != nil {
			return err
		}
		for i := range b.Schedule {
			e := &b.Schedule[i]
			_, err := tx.Exec(ctx, `INSERT INTO rent_schedule_entries (
				booking_id, sequence_number, due_date, amount_due,
				amount_paid, paid_date, late_fee_applied, payment_status
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				b.BookingID, e.SequenceNumber, e.DueDate, e.AmountDue,
				e.AmountPaid, e.PaidDate, e.LateFeeApplied, e.PaymentStatus)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return persistenceErr("create booking", err)
	}
	return nil
}

// Get loads a booking with its schedule ordered by sequence number.
func (r *Repository) Get(ctx context.Context, bookingID string) (*RentalBooking, error) {
	var b RentalBooking
	err := r.pool.QueryRow(ctx, `SELECT booking_id, property_id, customer_id,
		salesperson_id, start_date, end_date, monthly_rent, security_deposit,
		maintenance_charges, advance_rent, rent_due_date, late_fee_percentage,
		duration, status, created_by, updated_by, published, created_at,
		updated_at, version
	FROM rental_bookings WHERE booking_id = $1`, bookingID).Scan(
		&b.BookingID, &b.PropertyID, &b.CustomerID, &b.AssignedSalespersonID,
		&b.StartDate, &b.EndDate, &b.MonthlyRent, &b.SecurityDeposit,
		&b.MaintenanceCharges, &b.AdvanceRent, &b.RentDueDate,
		&b.LateFeePercentage, &b.Duration, &b.Status, &b.CreatedBy,
		&b.UpdatedBy, &b.Published, &b.CreatedAt, &b.UpdatedAt, &b.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, persistenceErr("get booking", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT sequence_number, due_date,
		amount_due, amount_paid, paid_date, late_fee_applied, payment_status
	FROM rent_schedule_entries WHERE booking_id = $1 ORDER BY sequence_number`, bookingID)
	if err != nil {
		return nil, persistenceErr("get schedule", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e RentScheduleEntry
		if err := rows.Scan(&e.SequenceNumber, &e.DueDate, &e.AmountDue,
			&e.AmountPaid, &e.PaidDate, &e.LateFeeApplied, &e.PaymentStatus); err != nil {
			return nil, persistenceErr("scan schedule entry", err)
		}
		b.Schedule = append(b.Schedule, e)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate schedule", err)
	}
	return &b, nil
}

// Update commits a mutated aggregate when the stored version still matches;
// otherwise the caller lost the race and receives ErrConflict. Entry payment
// fields are rewritten alongside the booking row in the same transaction.
func (r *Repository) Update(ctx context.Context, b *RentalBooking) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE rental_bookings
			SET status=$1, updated_by=$2, updated_at=$3, version=version+1
			WHERE booking_id=$4 AND version=$5`,
			b.Status, b.UpdatedBy, b.UpdatedAt, b.BookingID, b.Version)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		for i := range b.Schedule {
			e := &b.Schedule[i]
			_, err := tx.Exec(ctx, `UPDATE rent_schedule_entries
				SET amount_paid=$1, paid_date=$2, late_fee_applied=$3, payment_status=$4
				WHERE booking_id=$5 AND sequence_number=$6`,
				e.AmountPaid, e.PaidDate, e.LateFeeApplied, e.PaymentStatus,
				b.BookingID, e.SequenceNumber)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return ErrConflict
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgSerializationFailure {
			return ErrConflict
		}
		return persistenceErr("update booking", err)
	}
	b.Version++
	return nil
}

// ListIDsByStatus returns identifiers of bookings in the given status.
func (r *Repository) ListIDsByStatus(ctx context.Context, status BookingStatus) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT booking_id FROM rental_bookings WHERE status=$1 ORDER BY booking_id`, status)
	if err != nil {
		return nil, persistenceErr("list bookings", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, persistenceErr("scan booking id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate bookings", err)
	}
	return ids, nil
}
