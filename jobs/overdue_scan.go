package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/propflow/propflow/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// OverdueRefresher is the slice of the booking service the sweep needs.
type OverdueRefresher interface {
	RefreshOverdue(ctx context.Context, now time.Time) (int, error)
}

// OverdueScanJob walks active bookings, re-derives installment payment
// statuses and late fees, and escalates bookings that cross the
// delinquency threshold.
type OverdueScanJob struct {
	Service OverdueRefresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewOverdueScanJob initialises the overdue sweep handler.
func NewOverdueScanJob(service OverdueRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueScanJob {
	return &OverdueScanJob{
		Service: service,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one overdue sweep.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = j.now()
	}

	tracker := j.metrics().Track(TaskTypeOverdueScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Time("as_of", asOf))
	logger.Info("starting overdue scan")

	start := j.now()
	updated, err := j.Service.RefreshOverdue(ctx, asOf)
	if err != nil {
		resultErr = err
		logger.Error("overdue scan failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddOverdueBookings(updated)

	logger.Info("completed overdue scan",
		slog.Int("bookings_updated", updated),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeOverdueScan))
	}
	return slog.Default().With(slog.String("job", TaskTypeOverdueScan))
}

func (j *OverdueScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *OverdueScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
