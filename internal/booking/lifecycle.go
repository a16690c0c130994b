package booking

import (
	"time"
)

// Trigger names a requested lifecycle transition.
type Trigger string

const (
	TriggerActivate    Trigger = "ACTIVATE"
	TriggerCancel      Trigger = "CANCEL"
	TriggerComplete    Trigger = "COMPLETE"
	TriggerMarkDefault Trigger = "MARK_DEFAULT"
	TriggerCure        Trigger = "CURE"
)

// ParseTrigger validates a wire-level trigger name.
func ParseTrigger(s string) (Trigger, error) {
	switch t := Trigger(s); t {
	case TriggerActivate, TriggerCancel, TriggerComplete, TriggerMarkDefault, TriggerCure:
		return t, nil
	default:
		return "", validationErr("unknown trigger %q", s)
	}
}

// LifecycleConfig holds transition guard tuning.
type LifecycleConfig struct {
	// DelinquencyThreshold is the number of consecutive overdue unpaid
	// entries that permits marking an active booking DEFAULTED.
	DelinquencyThreshold int
	// GracePeriodDays mirrors the late fee policy when judging overdue
	// entries for the default guard.
	GracePeriodDays int
}

// NextStatus resolves a trigger against the current status and guards.
// Undefined edges and unmet guards fail with a StateError naming both the
// attempted trigger and the current state; transitions never silently no-op.
func NextStatus(b *RentalBooking, trigger Trigger, now time.Time, cfg LifecycleConfig) (BookingStatus, error) {
	fail := func() (BookingStatus, error) {
		return "", &StateError{Current: b.Status, Attempted: string(trigger)}
	}
	today := dateOnly(now)

	switch b.Status {
	case StatusPending:
		switch trigger {
		case TriggerActivate:
			if today.Before(dateOnly(b.StartDate)) {
				return fail()
			}
			if !advanceEntriesPaid(b) {
				return fail()
			}
			return StatusActive, nil
		case TriggerCancel:
			return StatusCancelled, nil
		}
	case StatusActive:
		switch trigger {
		case TriggerComplete:
			if today.Before(dateOnly(b.EndDate)) {
				return fail()
			}
			if !allEntriesPaid(b) {
				return fail()
			}
			return StatusCompleted, nil
		case TriggerMarkDefault:
			threshold := cfg.DelinquencyThreshold
			if threshold <= 0 {
				threshold = 1
			}
			if ConsecutiveOverdue(b, now, cfg.GracePeriodDays) < threshold {
				return fail()
			}
			return StatusDefaulted, nil
		case TriggerCancel:
			return StatusCancelled, nil
		}
	case StatusDefaulted:
		if trigger == TriggerCure {
			if OverdueEntries(b, now, cfg.GracePeriodDays) > 0 {
				return fail()
			}
			return StatusActive, nil
		}
	}
	return fail()
}

func advanceEntriesPaid(b *RentalBooking) bool {
	prepaid := b.AdvanceRent
	if prepaid > len(b.Schedule) {
		prepaid = len(b.Schedule)
	}
	for i := 0; i < prepaid; i++ {
		if !b.Schedule[i].Settled() {
			return false
		}
	}
	return true
}

func allEntriesPaid(b *RentalBooking) bool {
	for i := range b.Schedule {
		if !b.Schedule[i].Settled() {
			return false
		}
	}
	return true
}

// ConsecutiveOverdue returns the longest run of consecutive entries that
// are past due and unsettled as of now.
func ConsecutiveOverdue(b *RentalBooking, now time.Time, graceDays int) int {
	today := dateOnly(now)
	longest, run := 0, 0
	for i := range b.Schedule {
		e := &b.Schedule[i]
		if !e.Settled() && today.After(e.DueDate.AddDate(0, 0, graceDays)) {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	return longest
}

// OverdueEntries counts entries past due and unsettled as of now.
func OverdueEntries(b *RentalBooking, now time.Time, graceDays int) int {
	today := dateOnly(now)
	count := 0
	for i := range b.Schedule {
		e := &b.Schedule[i]
		if !e.Settled() && today.After(e.DueDate.AddDate(0, 0, graceDays)) {
			count++
		}
	}
	return count
}

// DerivePaymentStatus recomputes an entry's payment status from its amounts
// and the evaluation date.
func DerivePaymentStatus(entry RentScheduleEntry, asOf time.Time, graceDays int) PaymentStatus {
	if entry.Settled() {
		return PaymentPaid
	}
	if dateOnly(asOf).After(entry.DueDate.AddDate(0, 0, graceDays)) {
		return PaymentOverdue
	}
	if entry.AmountPaid > 0 {
		return PaymentPartial
	}
	return PaymentUnpaid
}
