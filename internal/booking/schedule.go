package booking

import (
	"time"
)

// LeaseDuration computes the whole number of months covered by the lease,
// rounding a partial trailing month up. Returns 0 when end is not after
// start.
func LeaseDuration(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	months := 0
	for !monthsAfter(start, months+1).After(end) {
		months++
	}
	if monthsAfter(start, months).Before(end) {
		months++
	}
	return months
}

// monthsAfter anchors month arithmetic on the first of the month so that
// AddDate normalization (Jan 31 + 1 month = Mar 2) cannot skew duration.
func monthsAfter(start time.Time, n int) time.Time {
	y, m, d := start.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	day := d
	if last := lastDayOfMonth(first); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func lastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DueDateFor computes the due date of the given 1-based sequence number:
// the lease start shifted forward by sequenceNumber months, with the day
// overridden to dayOfMonth and clamped to the month's last valid day.
func DueDateFor(start time.Time, sequenceNumber, dayOfMonth int) time.Time {
	y, m, _ := start.Date()
	first := time.Date(y, m+time.Month(sequenceNumber), 1, 0, 0, 0, 0, time.UTC)
	day := dayOfMonth
	if last := lastDayOfMonth(first); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// GenerateSchedule turns lease terms into the full obligation ledger. It is
// a pure function: identical terms always yield an identical schedule. The
// first min(advanceRent, duration) entries are marked paid as of the lease
// start, modeling rent collected in advance at signing as pre-satisfied
// ledger entries rather than an out-of-band credit.
func GenerateSchedule(terms LeaseTerms) ([]RentScheduleEntry, int, error) {
	duration := LeaseDuration(terms.StartDate, terms.EndDate)
	if duration <= 0 {
		return nil, 0, validationErr("lease must span at least one month (start %s, end %s)",
			terms.StartDate.Format("2006-01-02"), terms.EndDate.Format("2006-01-02"))
	}
	if terms.MonthlyRent < 0 {
		return nil, 0, validationErr("monthly rent must not be negative")
	}
	if terms.MaintenanceCharges < 0 {
		return nil, 0, validationErr("maintenance charges must not be negative")
	}
	if terms.AdvanceRent < 0 {
		return nil, 0, validationErr("advance rent must not be negative")
	}
	if terms.RentDueDate < 1 || terms.RentDueDate > 31 {
		return nil, 0, validationErr("rent due date %d outside [1,31]", terms.RentDueDate)
	}

	prepaid := terms.AdvanceRent
	if prepaid > duration {
		prepaid = duration
	}
	startDay := dateOnly(terms.StartDate)

	entries := make([]RentScheduleEntry, 0, duration)
	for seq := 1; seq <= duration; seq++ {
		entry := RentScheduleEntry{
			SequenceNumber: seq,
			DueDate:        DueDateFor(startDay, seq, terms.RentDueDate),
			AmountDue:      terms.MonthlyRent + terms.MaintenanceCharges,
			PaymentStatus:  PaymentUnpaid,
		}
		if seq <= prepaid {
			paidDate := startDay
			entry.AmountPaid = entry.AmountDue
			entry.PaidDate = &paidDate
			entry.PaymentStatus = PaymentPaid
		}
		entries = append(entries, entry)
	}
	return entries, duration, nil
}

// dateOnly truncates a timestamp to a UTC calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
