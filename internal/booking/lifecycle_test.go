package booking

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func lifecycleBooking(status BookingStatus) *RentalBooking {
	schedule, duration, err := GenerateSchedule(testTerms())
	if err != nil {
		panic(err)
	}
	return &RentalBooking{
		BookingID:   "RB-20240115-AAAAAA",
		StartDate:   date(2024, 1, 15),
		EndDate:     date(2025, 1, 14),
		AdvanceRent: 2,
		Duration:    duration,
		Status:      status,
		Schedule:    schedule,
	}
}

func payAll(b *RentalBooking) {
	for i := range b.Schedule {
		e := &b.Schedule[i]
		e.AmountPaid = e.AmountDue
		e.PaymentStatus = PaymentPaid
	}
}

func defaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{DelinquencyThreshold: 2}
}

func TestParseTrigger(t *testing.T) {
	for _, name := range []string{"ACTIVATE", "CANCEL", "COMPLETE", "MARK_DEFAULT", "CURE"} {
		trigger, err := ParseTrigger(name)
		require.NoError(t, err)
		require.Equal(t, Trigger(name), trigger)
	}
	_, err := ParseTrigger("PAUSE")
	require.ErrorIs(t, err, ErrValidation)
}

func TestActivatePendingBooking(t *testing.T) {
	b := lifecycleBooking(StatusPending)
	next, err := NextStatus(b, TriggerActivate, date(2024, 1, 15), defaultLifecycleConfig())
	require.NoError(t, err)
	require.Equal(t, StatusActive, next)
}

func TestActivateBeforeStartDateFails(t *testing.T) {
	b := lifecycleBooking(StatusPending)
	_, err := NextStatus(b, TriggerActivate, date(2024, 1, 14), defaultLifecycleConfig())
	require.True(t, IsStateError(err))
}

func TestActivateWithUnpaidAdvanceFails(t *testing.T) {
	b := lifecycleBooking(StatusPending)
	b.Schedule[1].AmountPaid = 0
	b.Schedule[1].PaymentStatus = PaymentUnpaid
	_, err := NextStatus(b, TriggerActivate, date(2024, 2, 1), defaultLifecycleConfig())
	require.True(t, IsStateError(err))
}

func TestCompleteActiveBooking(t *testing.T) {
	b := lifecycleBooking(StatusActive)
	payAll(b)
	next, err := NextStatus(b, TriggerComplete, date(2025, 1, 14), defaultLifecycleConfig())
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, next)
}

func TestCompleteBeforeEndDateFails(t *testing.T) {
	b := lifecycleBooking(StatusActive)
	payAll(b)
	_, err := NextStatus(b, TriggerComplete, date(2024, 12, 1), defaultLifecycleConfig())
	require.True(t, IsStateError(err))
}

func TestCompleteWithUnpaidEntriesFails(t *testing.T) {
	b := lifecycleBooking(StatusActive)
	_, err := NextStatus(b, TriggerComplete, date(2025, 2, 1), defaultLifecycleConfig())
	require.True(t, IsStateError(err))
}

func TestCancelFromPendingAndActive(t *testing.T) {
	for _, status := range []BookingStatus{StatusPending, StatusActive} {
		b := lifecycleBooking(status)
		next, err := NextStatus(b, TriggerCancel, date(2024, 6, 1), defaultLifecycleConfig())
		require.NoError(t, err)
		require.Equal(t, StatusCancelled, next)
	}
}

func TestMarkDefaultRequiresThreshold(t *testing.T) {
	b := lifecycleBooking(StatusActive)
	// Entries 1 and 2 are prepaid; as of June 1 entries 3 and 4 (due
	// Apr 5, May 5) are both past due.
	now := date(2024, 6, 1)

	next, err := NextStatus(b, TriggerMarkDefault, now, defaultLifecycleConfig())
	require.NoError(t, err)
	require.Equal(t, StatusDefaulted, next)

	// Paying one of them breaks the consecutive run below the threshold.
	b.Schedule[2].AmountPaid = b.Schedule[2].AmountDue
	_, err = NextStatus(b, TriggerMarkDefault, now, defaultLifecycleConfig())
	require.True(t, IsStateError(err))
}

func TestCureDefaultedBooking(t *testing.T) {
	b := lifecycleBooking(StatusDefaulted)
	now := date(2024, 6, 1)

	_, err := NextStatus(b, TriggerCure, now, defaultLifecycleConfig())
	require.True(t, IsStateError(err))

	b.Schedule[2].AmountPaid = b.Schedule[2].AmountDue
	b.Schedule[3].AmountPaid = b.Schedule[3].AmountDue
	next, err := NextStatus(b, TriggerCure, now, defaultLifecycleConfig())
	require.NoError(t, err)
	require.Equal(t, StatusActive, next)
}

func TestTerminalStatesAdmitNoTransitions(t *testing.T) {
	triggers := []Trigger{TriggerActivate, TriggerCancel, TriggerComplete, TriggerMarkDefault, TriggerCure}
	for _, status := range []BookingStatus{StatusCompleted, StatusCancelled} {
		b := lifecycleBooking(status)
		payAll(b)
		for _, trigger := range triggers {
			_, err := NextStatus(b, trigger, date(2025, 6, 1), defaultLifecycleConfig())
			require.True(t, IsStateError(err), "%s on %s", trigger, status)
		}
	}
}

func TestConsecutiveOverdue(t *testing.T) {
	b := lifecycleBooking(StatusActive)
	now := date(2024, 7, 1)
	// Entries 3, 4 and 5 (due Apr, May, Jun 5) are unpaid and past due.
	require.Equal(t, 3, ConsecutiveOverdue(b, now, 0))

	b.Schedule[3].AmountPaid = b.Schedule[3].AmountDue
	require.Equal(t, 1, ConsecutiveOverdue(b, now, 0))
	require.Equal(t, 2, OverdueEntries(b, now, 0))
}

func TestDerivePaymentStatus(t *testing.T) {
	entry := RentScheduleEntry{DueDate: date(2024, 4, 5), AmountDue: 2500}

	require.Equal(t, PaymentUnpaid, DerivePaymentStatus(entry, date(2024, 4, 5), 0))
	require.Equal(t, PaymentOverdue, DerivePaymentStatus(entry, date(2024, 4, 6), 0))
	require.Equal(t, PaymentUnpaid, DerivePaymentStatus(entry, date(2024, 4, 6), 3))

	entry.AmountPaid = 500
	require.Equal(t, PaymentPartial, DerivePaymentStatus(entry, date(2024, 4, 1), 0))

	entry.AmountPaid = 2500
	require.Equal(t, PaymentPaid, DerivePaymentStatus(entry, date(2024, 9, 1), 0))
}

func TestStateErrorMessage(t *testing.T) {
	err := &StateError{Current: StatusCancelled, Attempted: "record payment"}
	require.Equal(t, "booking: cannot record payment while CANCELLED", err.Error())
	require.True(t, IsStateError(err))
	require.False(t, IsStateError(ErrValidation))
}
