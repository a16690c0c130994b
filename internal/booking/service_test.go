package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryBookingRepo struct {
	bookings map[string]*RentalBooking

	// createConflicts forces ErrConflict on the next N Create calls to
	// exercise identifier regeneration.
	createConflicts int
	// updateConflicts forces ErrConflict on the next N Update calls while
	// bumping the stored version, simulating a competing writer winning
	// the race first.
	updateConflicts int
}

func newMemoryBookingRepo() *memoryBookingRepo {
	return &memoryBookingRepo{bookings: make(map[string]*RentalBooking)}
}

func cloneBooking(b *RentalBooking) *RentalBooking {
	cp := *b
	cp.Schedule = make([]RentScheduleEntry, len(b.Schedule))
	copy(cp.Schedule, b.Schedule)
	for i := range b.Schedule {
		if b.Schedule[i].PaidDate != nil {
			paid := *b.Schedule[i].PaidDate
			cp.Schedule[i].PaidDate = &paid
		}
	}
	return &cp
}

func (r *memoryBookingRepo) Create(ctx context.Context, b *RentalBooking) error {
	if r.createConflicts > 0 {
		r.createConflicts--
		return ErrConflict
	}
	if _, exists := r.bookings[b.BookingID]; exists {
		return ErrConflict
	}
	r.bookings[b.BookingID] = cloneBooking(b)
	return nil
}

func (r *memoryBookingRepo) Get(ctx context.Context, bookingID string) (*RentalBooking, error) {
	b, ok := r.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBooking(b), nil
}

func (r *memoryBookingRepo) Update(ctx context.Context, b *RentalBooking) error {
	stored, ok := r.bookings[b.BookingID]
	if !ok {
		return ErrNotFound
	}
	if r.updateConflicts > 0 {
		r.updateConflicts--
		stored.Version++
		return ErrConflict
	}
	if stored.Version != b.Version {
		return ErrConflict
	}
	next := cloneBooking(b)
	next.Version++
	r.bookings[b.BookingID] = next
	b.Version++
	return nil
}

func (r *memoryBookingRepo) ListIDsByStatus(ctx context.Context, status BookingStatus) ([]string, error) {
	var ids []string
	for id, b := range r.bookings {
		if b.Status == status {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type stubDirectory struct {
	properties map[string]bool
	customers  map[string]bool
	users      map[string]bool
}

func openDirectory() *stubDirectory {
	return &stubDirectory{
		properties: map[string]bool{"prop-001": true},
		customers:  map[string]bool{"cust-001": true},
		users:      map[string]bool{"user-001": true},
	}
}

func (d *stubDirectory) PropertyPublished(ctx context.Context, id string) (bool, error) {
	return d.properties[id], nil
}

func (d *stubDirectory) CustomerActive(ctx context.Context, id string) (bool, error) {
	return d.customers[id], nil
}

func (d *stubDirectory) SalespersonActive(ctx context.Context, id string) (bool, error) {
	return d.users[id], nil
}

type captureNotifier struct {
	events []Event
}

func (n *captureNotifier) Notify(ctx context.Context, event Event) {
	n.events = append(n.events, event)
}

func (n *captureNotifier) names() []string {
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.EventName())
	}
	return out
}

func newTestService(repo *memoryBookingRepo) (*Service, *captureNotifier) {
	notifier := &captureNotifier{}
	svc := NewService(repo, openDirectory(), notifier, nil, ServiceConfig{DelinquencyThreshold: 2})
	svc.clock = func() time.Time { return date(2024, 1, 10) }
	return svc, notifier
}

func createTestBooking(t *testing.T, svc *Service) *RentalBooking {
	t.Helper()
	b, err := svc.CreateBooking(context.Background(), testTerms())
	require.NoError(t, err)
	return b
}

func TestCreateBooking(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	svc, notifier := newTestService(repo)

	b, err := svc.CreateBooking(ctx, testTerms())
	require.NoError(t, err)
	require.Regexp(t, `^RB-\d{8}-[0-9A-F]{6}$`, b.BookingID)
	require.Equal(t, StatusPending, b.Status)
	require.False(t, b.IsActive())
	require.Equal(t, 12, b.Duration)
	require.Len(t, b.Schedule, 12)
	require.Equal(t, int64(1), b.Version)

	stored, err := repo.Get(ctx, b.BookingID)
	require.NoError(t, err)
	require.Equal(t, b.Schedule, stored.Schedule)

	require.Equal(t, []string{"booking.created"}, notifier.names())
	created := notifier.events[0].(BookingCreated)
	require.Equal(t, b.BookingID, created.AggregateID())
	require.Equal(t, 12, created.Duration)
}

func TestCreateBookingRejectsInvalidTerms(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	svc, notifier := newTestService(repo)

	terms := testTerms()
	terms.EndDate = terms.StartDate
	_, err := svc.CreateBooking(ctx, terms)
	require.ErrorIs(t, err, ErrValidation)
	require.Empty(t, repo.bookings)
	require.Empty(t, notifier.events)
}

func TestCreateBookingRejectsUnknownReferences(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	svc, _ := newTestService(repo)

	terms := testTerms()
	terms.PropertyID = "prop-404"
	_, err := svc.CreateBooking(ctx, terms)
	require.ErrorIs(t, err, ErrReferential)
	require.Empty(t, repo.bookings)

	terms = testTerms()
	terms.CustomerID = "cust-404"
	_, err = svc.CreateBooking(ctx, terms)
	require.ErrorIs(t, err, ErrReferential)

	terms = testTerms()
	terms.AssignedSalespersonID = "user-404"
	_, err = svc.CreateBooking(ctx, terms)
	require.ErrorIs(t, err, ErrReferential)
}

func TestCreateBookingRetriesDuplicateIdentifier(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	repo.createConflicts = 2
	svc, _ := newTestService(repo)

	b, err := svc.CreateBooking(ctx, testTerms())
	require.NoError(t, err)
	require.Len(t, repo.bookings, 1)
	require.Contains(t, repo.bookings, b.BookingID)
}

func TestCreateBookingGivesUpAfterRetries(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	repo.createConflicts = 10
	svc, _ := newTestService(repo)

	_, err := svc.CreateBooking(ctx, testTerms())
	require.ErrorIs(t, err, ErrConflict)
}

func TestGetBooking(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	svc, _ := newTestService(repo)
	created := createTestBooking(t, svc)

	b, err := svc.GetBooking(ctx, created.BookingID)
	require.NoError(t, err)
	require.Equal(t, created.BookingID, b.BookingID)

	_, err = svc.GetBooking(ctx, "RB-19700101-000000")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetBooking(ctx, "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestRecordPayment(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	svc, notifier := newTestService(repo)
	b := createTestBooking(t, svc)

	entry, err := svc.RecordPayment(ctx, b.BookingID, 3, 1000, date(2024, 4, 1))
	require.NoError(t, err)
	require.Equal(t, int64(1000), entry.AmountPaid)
	require.Equal(t, PaymentPartial, entry.PaymentStatus)
	require.NotNil(t, entry.PaidDate)
	require.Equal(t, date(2024, 4, 1), *entry.PaidDate)

	entry, err = svc.RecordPayment(ctx, b.BookingID, 3, 1500, date(2024, 4, 3))
	require.NoError(t, err)
	require.Equal(t, int64(2500), entry.AmountPaid)
	require.Equal(t, PaymentPaid, entry.PaymentStatus)

	stored, err := repo.Get(ctx, b.BookingID)
	require.NoError(t, err)
	require.Equal(t, int64(2500), stored.Entry(3).AmountPaid)
	require.Equal(t, int64(3), stored.Version)

	require.Equal(t, []string{"booking.created", "booking.payment_recorded", "booking.payment_recorded"}, notifier.names())
}

func TestRecordPaymentAppliesLateFee(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	svc, _ := newTestService(repo)
	b := createTestBooking(t, svc)

	// Entry 3 is due 2024-04-05; paying on 2024-04-20 owes a 5% fee on
	// the outstanding 2500.
	entry, err := svc.RecordPayment(ctx, b.BookingID, 3, 2625, date(2024, 4, 20))
	require.NoError(t, err)
	require.Equal(t, int64(125), entry.LateFeeApplied)
	require.Equal(t, int64(2625), entry.AmountPaid)
	require.Equal(t, PaymentPaid, entry.PaymentStatus)
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	svc, _ := newTestService(repo)
	b := createTestBooking(t, svc)

	_, err := svc.RecordPayment(ctx, b.BookingID, 3, 2501, date(2024, 4, 1))
	require.ErrorIs(t, err, ErrValidation)

	stored, err := repo.Get(ctx, b.BookingID)
	require.NoError(t, err)
	require.Zero(t, stored.Entry(3).AmountPaid)
}

func TestRecordPaymentValidatesInput(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	svc, _ := newTestService(repo)
	b := createTestBooking(t, svc)

	_, err := svc.RecordPayment(ctx, b.BookingID, 3, 0, date(2024, 4, 1))
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.RecordPayment(ctx, b.BookingID, 99, 100, date(2024, 4, 1))
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.RecordPayment(ctx, b.BookingID, 3, 100, time.Time{})
	require.ErrorIs(t, err, ErrValidation)
}

func TestRecordPaymentOnTerminalBookingFails(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	svc, _ := newTestService(repo)
	b := createTestBooking(t, svc)

	_, err := svc.ChangeStatus(ctx, b.BookingID, TriggerCancel)
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, b.BookingID, 3, 100, date(2024, 4, 1))
	require.True(t, IsStateError(err))
}

func TestRecordPaymentRetriesLostRace(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	svc, _ := newTestService(repo)
	b := createTestBooking(t, svc)

	// The first commit loses; the retry reloads fresh state and wins.
	repo.updateConflicts = 1
	entry, err := svc.RecordPayment(ctx, b.BookingID, 3, 1000, date(2024, 4, 1))
	require.NoError(t, err)
	require.Equal(t, int64(1000), entry.AmountPaid)

	stored, err := repo.Get(ctx, b.BookingID)
	require.NoError(t, err)
	require.Equal(t, int64(1000), stored.Entry(3).AmountPaid)
}

func TestChangeStatusActivate(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	svc, notifier := newTestService(repo)
	b := createTestBooking(t, svc)

	svc.clock = func() time.Time { return date(2024, 1, 15) }
	status, err := svc.ChangeStatus(ctx, b.BookingID, TriggerActivate)
	require.NoError(t, err)
	require.Equal(t, StatusActive, status)

	stored, err := repo.Get(ctx, b.BookingID)
	require.NoError(t, err)
	require.True(t, stored.IsActive())

	last := notifier.events[len(notifier.events)-1].(StatusChanged)
	require.Equal(t, StatusPending, last.From)
	require.Equal(t, StatusActive, last.To)
	require.Equal(t, TriggerActivate, last.Trigger)
}

func TestChangeStatusGuardFailureDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	svc, _ := newTestService(repo)
	b := createTestBooking(t, svc)

	// Clock is before the lease start, so the activation guard fails.
	_, err := svc.ChangeStatus(ctx, b.BookingID, TriggerActivate)
	require.True(t, IsStateError(err))

	stored, err := repo.Get(ctx, b.BookingID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)
	require.Equal(t, int64(1), stored.Version)
}

func TestRefreshOverdueMarksEntriesAndDefaults(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	svc, notifier := newTestService(repo)
	b := createTestBooking(t, svc)

	svc.clock = func() time.Time { return date(2024, 1, 15) }
	_, err := svc.ChangeStatus(ctx, b.BookingID, TriggerActivate)
	require.NoError(t, err)

	// Entries 3 and 4 (due Apr 5, May 5) are unpaid as of June 1, which
	// meets the delinquency threshold of 2.
	updated, err := svc.RefreshOverdue(ctx, date(2024, 6, 1))
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	stored, err := repo.Get(ctx, b.BookingID)
	require.NoError(t, err)
	require.Equal(t, StatusDefaulted, stored.Status)
	require.Equal(t, PaymentOverdue, stored.Entry(3).PaymentStatus)
	require.Equal(t, PaymentOverdue, stored.Entry(4).PaymentStatus)
	require.Equal(t, int64(125), stored.Entry(3).LateFeeApplied)
	require.Equal(t, PaymentPaid, stored.Entry(1).PaymentStatus)

	names := notifier.names()
	require.Contains(t, names, "booking.entry_overdue")
	require.Equal(t, "booking.status_changed", names[len(names)-1])
	last := notifier.events[len(notifier.events)-1].(StatusChanged)
	require.Equal(t, StatusDefaulted, last.To)
	require.Equal(t, TriggerMarkDefault, last.Trigger)
}

func TestRefreshOverdueIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	svc, _ := newTestService(repo)
	b := createTestBooking(t, svc)

	svc.clock = func() time.Time { return date(2024, 1, 15) }
	_, err := svc.ChangeStatus(ctx, b.BookingID, TriggerActivate)
	require.NoError(t, err)

	updated, err := svc.RefreshOverdue(ctx, date(2024, 4, 10))
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	// Nothing changed since the last sweep.
	updated, err = svc.RefreshOverdue(ctx, date(2024, 4, 10))
	require.NoError(t, err)
	require.Zero(t, updated)
}

func TestRefreshOverdueBelowThresholdStaysActive(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	svc, _ := newTestService(repo)
	b := createTestBooking(t, svc)

	svc.clock = func() time.Time { return date(2024, 1, 15) }
	_, err := svc.ChangeStatus(ctx, b.BookingID, TriggerActivate)
	require.NoError(t, err)

	// Only entry 3 is overdue as of April 10.
	_, err = svc.RefreshOverdue(ctx, date(2024, 4, 10))
	require.NoError(t, err)

	stored, err := repo.Get(ctx, b.BookingID)
	require.NoError(t, err)
	require.True(t, stored.IsActive())
	require.Equal(t, PaymentOverdue, stored.Entry(3).PaymentStatus)
}

type stubCache struct {
	schedules map[string][]RentScheduleEntry
	hits      int
	sets      int
	dropped   []string
}

func newStubCache() *stubCache {
	return &stubCache{schedules: make(map[string][]RentScheduleEntry)}
}

func (c *stubCache) GetSchedule(ctx context.Context, bookingID string) ([]RentScheduleEntry, bool) {
	entries, ok := c.schedules[bookingID]
	if ok {
		c.hits++
	}
	return entries, ok
}

func (c *stubCache) SetSchedule(ctx context.Context, bookingID string, entries []RentScheduleEntry) {
	c.sets++
	c.schedules[bookingID] = entries
}

func (c *stubCache) Invalidate(ctx context.Context, bookingID string) {
	c.dropped = append(c.dropped, bookingID)
	delete(c.schedules, bookingID)
}

func TestGetScheduleCachesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryBookingRepo()
	cache := newStubCache()
	notifier := &captureNotifier{}
	svc := NewService(repo, openDirectory(), notifier, cache, ServiceConfig{DelinquencyThreshold: 2})
	svc.clock = func() time.Time { return date(2024, 1, 10) }
	b := createTestBooking(t, svc)

	entries, err := svc.GetSchedule(ctx, b.BookingID)
	require.NoError(t, err)
	require.Len(t, entries, 12)
	require.Equal(t, 1, cache.sets)

	_, err = svc.GetSchedule(ctx, b.BookingID)
	require.NoError(t, err)
	require.Equal(t, 1, cache.hits)
	require.Equal(t, 1, cache.sets)

	_, err = svc.RecordPayment(ctx, b.BookingID, 3, 500, date(2024, 4, 1))
	require.NoError(t, err)
	require.Equal(t, []string{b.BookingID}, cache.dropped)
}
