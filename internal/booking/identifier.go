package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const bookingIDPrefix = "RB"

// NewBookingID produces a human-readable booking identifier such as
// RB-20240105-9F3A2C: a fixed prefix, the creation date, and a random
// suffix. Uniqueness is probabilistic; the repository rejects the rare
// collision and the service retries with a fresh identifier.
func NewBookingID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("%s-%s-%s", bookingIDPrefix, now.UTC().Format("20060102"), suffix)
}
