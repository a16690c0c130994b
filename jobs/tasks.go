package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeOverdueScan is the task type for the periodic overdue sweep.
	TaskTypeOverdueScan = "booking:overdue_scan"
	// TaskTypeIdempotencyCleanup prunes expired idempotency records.
	TaskTypeIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// OverdueScanPayload parameterises an overdue sweep. AsOf defaults to the
// handler's clock when zero.
type OverdueScanPayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

// NewOverdueScanTask constructs an Asynq task for the overdue sweep.
func NewOverdueScanTask(payload OverdueScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeOverdueScan, data), nil
}

// IdempotencyCleanupPayload controls how far back records are kept.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs an Asynq task for idempotency pruning.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeIdempotencyCleanup, data), nil
}
