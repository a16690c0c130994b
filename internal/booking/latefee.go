package booking

import (
	"math"
	"time"
)

// LateFeePolicy tunes lateness tolerance. GracePeriodDays defaults to 0:
// an entry is late the day after its due date.
type LateFeePolicy struct {
	GracePeriodDays int
}

// ComputeLateFee returns the late fee owed on the entry as of asOf. The
// result replaces any previously applied fee for the entry; repeated
// evaluation with unchanged payment state yields the same amount, so fees
// never compound from recalculation.
func ComputeLateFee(entry RentScheduleEntry, asOf time.Time, lateFeePercentage float64, policy LateFeePolicy) int64 {
	if lateFeePercentage <= 0 {
		return 0
	}
	if entry.Settled() {
		return 0
	}
	deadline := entry.DueDate.AddDate(0, 0, policy.GracePeriodDays)
	if !dateOnly(asOf).After(deadline) {
		return 0
	}
	fee := math.Ceil(float64(entry.Outstanding()) * lateFeePercentage / 100)
	return int64(fee)
}
