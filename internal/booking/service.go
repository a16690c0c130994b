package booking

import (
	"context"
	"errors"
	"time"
)

// RepositoryPort defines durable storage for booking aggregates. Create
// persists the aggregate and its full schedule atomically and returns
// ErrConflict on a duplicate booking identifier. Update commits only when
// the stored version matches the aggregate's and returns ErrConflict
// otherwise.
type RepositoryPort interface {
	Create(ctx context.Context, b *RentalBooking) error
	Get(ctx context.Context, bookingID string) (*RentalBooking, error)
	Update(ctx context.Context, b *RentalBooking) error
	ListIDsByStatus(ctx context.Context, status BookingStatus) ([]string, error)
}

// ReferenceDirectory resolves external identity references at creation
// time. The boolean reports whether the reference is usable; a non-nil
// error means the lookup itself failed.
type ReferenceDirectory interface {
	PropertyPublished(ctx context.Context, propertyID string) (bool, error)
	CustomerActive(ctx context.Context, customerID string) (bool, error)
	SalespersonActive(ctx context.Context, userID string) (bool, error)
}

// Notifier receives domain events. Delivery is best effort and must never
// fail the triggering operation; implementations log their own failures.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// CachePort is an optional read cache for schedules. Implementations are
// best effort and log their own failures.
type CachePort interface {
	GetSchedule(ctx context.Context, bookingID string) ([]RentScheduleEntry, bool)
	SetSchedule(ctx context.Context, bookingID string, entries []RentScheduleEntry)
	Invalidate(ctx context.Context, bookingID string)
}

// ServiceConfig tunes the engine.
type ServiceConfig struct {
	GracePeriodDays      int
	DelinquencyThreshold int
	ConflictRetries      int
}

const defaultConflictRetries = 3

// Service coordinates the booking aggregate: schedule generation,
// identifier stamping, payment recording and lifecycle transitions.
// Mutations are serialized per booking through optimistic concurrency;
// a lost race is retried up to ConflictRetries times before surfacing
// ErrConflict.
type Service struct {
	repo     RepositoryPort
	refs     ReferenceDirectory
	notifier Notifier
	cache    CachePort
	cfg      ServiceConfig
	clock    func() time.Time
}

// NewService builds a Service instance. refs, notifier and cache may be nil
// when the corresponding collaborator is not wired (tests, worker-only use).
func NewService(repo RepositoryPort, refs ReferenceDirectory, notifier Notifier, cache CachePort, cfg ServiceConfig) *Service {
	if cfg.ConflictRetries <= 0 {
		cfg.ConflictRetries = defaultConflictRetries
	}
	if cfg.DelinquencyThreshold <= 0 {
		cfg.DelinquencyThreshold = 2
	}
	return &Service{
		repo:     repo,
		refs:     refs,
		notifier: notifier,
		cache:    cache,
		cfg:      cfg,
		clock:    time.Now,
	}
}

func (s *Service) lifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		DelinquencyThreshold: s.cfg.DelinquencyThreshold,
		GracePeriodDays:      s.cfg.GracePeriodDays,
	}
}

func (s *Service) feePolicy() LateFeePolicy {
	return LateFeePolicy{GracePeriodDays: s.cfg.GracePeriodDays}
}

func (s *Service) notify(ctx context.Context, event Event) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, event)
	}
}

// CreateBooking validates lease terms, checks external references, runs the
// schedule generator and persists the aggregate atomically with status
// PENDING. Nothing is persisted when validation fails.
func (s *Service) CreateBooking(ctx context.Context, terms LeaseTerms) (*RentalBooking, error) {
	if err := s.validateTerms(terms); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, terms); err != nil {
		return nil, err
	}

	schedule, duration, err := GenerateSchedule(terms)
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	booking := &RentalBooking{
		PropertyID:            terms.PropertyID,
		CustomerID:            terms.CustomerID,
		AssignedSalespersonID: terms.AssignedSalespersonID,
		StartDate:             dateOnly(terms.StartDate),
		EndDate:               dateOnly(terms.EndDate),
		MonthlyRent:           terms.MonthlyRent,
		SecurityDeposit:       terms.SecurityDeposit,
		MaintenanceCharges:    terms.MaintenanceCharges,
		AdvanceRent:           terms.AdvanceRent,
		RentDueDate:           terms.RentDueDate,
		LateFeePercentage:     terms.LateFeePercentage,
		Duration:              duration,
		Status:                StatusPending,
		Schedule:              schedule,
		CreatedBy:             terms.CreatedBy,
		UpdatedBy:             terms.CreatedBy,
		Published:             true,
		CreatedAt:             now,
		UpdatedAt:             now,
		Version:               1,
	}

	// A duplicate identifier is vanishingly rare; regenerate and retry.
	var lastErr error
	for attempt := 0; attempt < s.cfg.ConflictRetries; attempt++ {
		booking.BookingID = NewBookingID(now)
		lastErr = s.repo.Create(ctx, booking)
		if lastErr == nil {
			s.notify(ctx, BookingCreated{
				BookingID:  booking.BookingID,
				PropertyID: booking.PropertyID,
				CustomerID: booking.CustomerID,
				Duration:   booking.Duration,
				At:         now,
			})
			return booking, nil
		}
		if !errors.Is(lastErr, ErrConflict) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func (s *Service) validateTerms(terms LeaseTerms) error {
	if terms.PropertyID == "" {
		return validationErr("property id required")
	}
	if terms.CustomerID == "" {
		return validationErr("customer id required")
	}
	if terms.AssignedSalespersonID == "" {
		return validationErr("assigned salesperson id required")
	}
	if terms.CreatedBy == "" {
		return validationErr("created-by user id required")
	}
	if !terms.EndDate.After(terms.StartDate) {
		return validationErr("end date must be after start date")
	}
	if terms.SecurityDeposit < 0 {
		return validationErr("security deposit must not be negative")
	}
	if terms.LateFeePercentage < 0 {
		return validationErr("late fee percentage must not be negative")
	}
	return nil
}

func (s *Service) checkReferences(ctx context.Context, terms LeaseTerms) error {
	if s.refs == nil {
		return nil
	}
	ok, err := s.refs.PropertyPublished(ctx, terms.PropertyID)
	if err != nil {
		return persistenceErr("check property", err)
	}
	if !ok {
		return referentialErr("property %s not found or unpublished", terms.PropertyID)
	}
	ok, err = s.refs.CustomerActive(ctx, terms.CustomerID)
	if err != nil {
		return persistenceErr("check customer", err)
	}
	if !ok {
		return referentialErr("customer %s not found or inactive", terms.CustomerID)
	}
	ok, err = s.refs.SalespersonActive(ctx, terms.AssignedSalespersonID)
	if err != nil {
		return persistenceErr("check salesperson", err)
	}
	if !ok {
		return referentialErr("salesperson %s not found or inactive", terms.AssignedSalespersonID)
	}
	return nil
}

// GetBooking loads a booking aggregate.
func (s *Service) GetBooking(ctx context.Context, bookingID string) (*RentalBooking, error) {
	if bookingID == "" {
		return nil, validationErr("booking id required")
	}
	return s.repo.Get(ctx, bookingID)
}

// GetSchedule returns the ordered obligation ledger for a booking, serving
// from cache when possible.
func (s *Service) GetSchedule(ctx context.Context, bookingID string) ([]RentScheduleEntry, error) {
	if bookingID == "" {
		return nil, validationErr("booking id required")
	}
	if s.cache != nil {
		if entries, ok := s.cache.GetSchedule(ctx, bookingID); ok {
			return entries, nil
		}
	}
	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetSchedule(ctx, bookingID, b.Schedule)
	}
	return b.Schedule, nil
}

// RecordPayment applies a payment to one schedule entry, recomputing its
// late fee and payment status, and re-persists the aggregate. The payment
// never decreases AmountPaid and never pushes it past the entry's
// outstanding total including the applied fee.
func (s *Service) RecordPayment(ctx context.Context, bookingID string, sequenceNumber int, amount int64, paidDate time.Time) (*RentScheduleEntry, error) {
	if bookingID == "" {
		return nil, validationErr("booking id required")
	}
	if amount <= 0 {
		return nil, validationErr("payment amount must be positive")
	}
	if paidDate.IsZero() {
		return nil, validationErr("payment date required")
	}
	paidDay := dateOnly(paidDate)

	var result RentScheduleEntry
	err := s.withConflictRetry(ctx, func() error {
		b, err := s.repo.Get(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status.Terminal() {
			return &StateError{Current: b.Status, Attempted: "record payment"}
		}
		entry := b.Entry(sequenceNumber)
		if entry == nil {
			return validationErr("booking %s has no schedule entry %d", bookingID, sequenceNumber)
		}

		fee := ComputeLateFee(*entry, paidDay, b.LateFeePercentage, s.feePolicy())
		payable := entry.AmountDue + fee - entry.AmountPaid
		if amount > payable {
			return validationErr("payment %d exceeds outstanding %d on entry %d", amount, payable, sequenceNumber)
		}

		entry.AmountPaid += amount
		entry.PaidDate = &paidDay
		entry.LateFeeApplied = fee
		entry.PaymentStatus = DerivePaymentStatus(*entry, paidDay, s.cfg.GracePeriodDays)

		b.UpdatedAt = s.clock().UTC()
		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}
		result = *entry
		s.invalidate(ctx, bookingID)
		s.notify(ctx, PaymentRecorded{
			BookingID:      bookingID,
			SequenceNumber: sequenceNumber,
			Amount:         amount,
			PaymentStatus:  entry.PaymentStatus,
			At:             b.UpdatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ChangeStatus runs a lifecycle trigger through the state machine and
// persists the transition. Unmet guards and undefined edges fail closed
// with a StateError.
func (s *Service) ChangeStatus(ctx context.Context, bookingID string, trigger Trigger) (BookingStatus, error) {
	if bookingID == "" {
		return "", validationErr("booking id required")
	}
	var status BookingStatus
	err := s.withConflictRetry(ctx, func() error {
		b, err := s.repo.Get(ctx, bookingID)
		if err != nil {
			return err
		}
		next, err := NextStatus(b, trigger, s.clock(), s.lifecycleConfig())
		if err != nil {
			return err
		}
		from := b.Status
		b.Status = next
		b.UpdatedAt = s.clock().UTC()
		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}
		status = next
		s.invalidate(ctx, bookingID)
		s.notify(ctx, StatusChanged{
			BookingID: bookingID,
			From:      from,
			To:        next,
			Trigger:   trigger,
			At:        b.UpdatedAt,
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

// RefreshOverdue re-derives payment statuses and late fees for all active
// bookings as of now, emits EntryOverdue events for entries that newly
// turned overdue, and marks bookings DEFAULTED once the delinquency
// threshold is met. It is invoked by the periodic worker; the engine never
// self-schedules. Returns the number of bookings updated.
func (s *Service) RefreshOverdue(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.repo.ListIDsByStatus(ctx, StatusActive)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, id := range ids {
		changed, err := s.refreshBooking(ctx, id, now)
		if err != nil {
			return updated, err
		}
		if changed {
			updated++
		}
	}
	return updated, nil
}

func (s *Service) refreshBooking(ctx context.Context, bookingID string, now time.Time) (bool, error) {
	var changed bool
	err := s.withConflictRetry(ctx, func() error {
		b, err := s.repo.Get(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != StatusActive {
			return nil
		}

		var newlyOverdue []RentScheduleEntry
		changed = false
		for i := range b.Schedule {
			entry := &b.Schedule[i]
			status := DerivePaymentStatus(*entry, now, s.cfg.GracePeriodDays)
			fee := ComputeLateFee(*entry, now, b.LateFeePercentage, s.feePolicy())
			if status == entry.PaymentStatus && fee == entry.LateFeeApplied {
				continue
			}
			if status == PaymentOverdue && entry.PaymentStatus != PaymentOverdue {
				newlyOverdue = append(newlyOverdue, *entry)
			}
			entry.PaymentStatus = status
			entry.LateFeeApplied = fee
			changed = true
		}

		var transitioned *StatusChanged
		if ConsecutiveOverdue(b, now, s.cfg.GracePeriodDays) >= s.cfg.DelinquencyThreshold {
			next, err := NextStatus(b, TriggerMarkDefault, now, s.lifecycleConfig())
			if err == nil {
				transitioned = &StatusChanged{
					BookingID: bookingID,
					From:      b.Status,
					To:        next,
					Trigger:   TriggerMarkDefault,
					At:        s.clock().UTC(),
				}
				b.Status = next
				changed = true
			}
		}

		if !changed {
			return nil
		}
		b.UpdatedAt = s.clock().UTC()
		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}
		s.invalidate(ctx, bookingID)
		for _, entry := range newlyOverdue {
			s.notify(ctx, EntryOverdue{
				BookingID:      bookingID,
				SequenceNumber: entry.SequenceNumber,
				DueDate:        entry.DueDate,
				AmountDue:      entry.AmountDue,
				AmountPaid:     entry.AmountPaid,
				At:             now,
			})
		}
		if transitioned != nil {
			s.notify(ctx, *transitioned)
		}
		return nil
	})
	return changed, err
}

func (s *Service) invalidate(ctx context.Context, bookingID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, bookingID)
	}
}

// withConflictRetry re-runs the load-mutate-save closure when the commit
// loses an optimistic-concurrency race, so at most one committed mutation
// wins each round and losers observe fresh state.
func (s *Service) withConflictRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < s.cfg.ConflictRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil || !errors.Is(lastErr, ErrConflict) {
			return lastErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return lastErr
}
